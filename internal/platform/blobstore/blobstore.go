// Package blobstore stores report artifacts (lab results, scans, discharge
// notes) outside the ledger. The ledger records only the content ref this
// package returns on upload; the bytes themselves never enter a case row.
// It defines the BlobStore interface, an in-memory implementation, and Echo
// handlers for multipart upload and download.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careledger/careledger/internal/platform/auth"
	"github.com/careledger/careledger/pkg/principal"
)

var (
	ErrNotFound           = errors.New("artifact not found")
	ErrTooLarge           = errors.New("artifact exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
)

// MaxArtifactSize caps uploads at 50 MB.
const MaxArtifactSize = 50 * 1024 * 1024

// AllowedCategories lists valid report categories.
var AllowedCategories = map[string]bool{
	"lab-report":        true,
	"scan":              true,
	"prescription":      true,
	"discharge-summary": true,
	"other":             true,
}

// AllowedContentTypes lists accepted report MIME types.
var AllowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/dicom":     true,
	"application/pdf": true,
	"text/plain":      true,
}

// Metadata describes a stored artifact. ContentRef is the opaque handle the
// custody store records against a case.
type Metadata struct {
	ID          string              `json:"id"`
	ContentRef  string              `json:"content_ref"`
	FileName    string              `json:"file_name"`
	ContentType string              `json:"content_type"`
	Size        int64               `json:"size"`
	Category    string              `json:"category"`
	CaseID      int64               `json:"case_id,omitempty"`
	Hash        string              `json:"hash"`
	UploadedBy  principal.Principal `json:"uploaded_by"`
	UploadedAt  time.Time           `json:"uploaded_at"`
}

// BlobStore is the storage contract for report artifacts.
type BlobStore interface {
	Upload(ctx context.Context, meta Metadata, content io.Reader) (*Metadata, error)
	Download(ctx context.Context, ref string) (io.ReadCloser, *Metadata, error)
	GetMetadata(ctx context.Context, ref string) (*Metadata, error)
	ListByCase(ctx context.Context, caseID int64) ([]*Metadata, error)
}

type storedArtifact struct {
	meta    Metadata
	content []byte
}

// InMemoryStore is a thread-safe in-memory BlobStore.
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]*storedArtifact
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]*storedArtifact)}
}

// Upload validates the artifact, assigns its id and content ref, and stores
// the bytes with a SHA-256 integrity hash.
func (s *InMemoryStore) Upload(_ context.Context, meta Metadata, content io.Reader) (*Metadata, error) {
	if meta.FileName == "" {
		return nil, ErrMissingFileName
	}
	if meta.ContentType != "" && !AllowedContentTypes[meta.ContentType] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContentType, meta.ContentType)
	}
	if meta.Category == "" {
		meta.Category = "other"
	}
	if !AllowedCategories[meta.Category] {
		return nil, fmt.Errorf("unknown category %q", meta.Category)
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxArtifactSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxArtifactSize {
		return nil, ErrTooLarge
	}

	meta.ID = uuid.New().String()
	meta.ContentRef = "blob://" + meta.ID
	meta.Size = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", sha256.Sum256(data))
	meta.UploadedAt = time.Now().UTC()

	s.mu.Lock()
	s.artifacts[meta.ID] = &storedArtifact{meta: meta, content: data}
	s.mu.Unlock()

	cp := meta
	return &cp, nil
}

func (s *InMemoryStore) Download(_ context.Context, ref string) (io.ReadCloser, *Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[refToID(ref)]
	if !ok {
		return nil, nil, ErrNotFound
	}
	cp := a.meta
	return io.NopCloser(bytes.NewReader(a.content)), &cp, nil
}

func (s *InMemoryStore) GetMetadata(_ context.Context, ref string) (*Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[refToID(ref)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := a.meta
	return &cp, nil
}

func (s *InMemoryStore) ListByCase(_ context.Context, caseID int64) ([]*Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Metadata
	for _, a := range s.artifacts {
		if a.meta.CaseID == caseID {
			cp := a.meta
			out = append(out, &cp)
		}
	}
	return out, nil
}

func refToID(ref string) string {
	return strings.TrimPrefix(ref, "blob://")
}

// Handler exposes upload/download over HTTP. Downloads are keyed by ref so
// the handler works from the value stored on a case report.
type Handler struct {
	store BlobStore
}

func NewHandler(store BlobStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/blobs/upload", h.Upload)
	api.GET("/blobs/:id", h.Download)
	api.GET("/blobs/:id/metadata", h.GetMetadata)
}

func (h *Handler) Upload(c echo.Context) error {
	caller := auth.CallerFromContext(c.Request().Context())
	if caller.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "caller principal required")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	var caseID int64
	if v := c.FormValue("case_id"); v != "" {
		caseID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid case_id")
		}
	}

	meta := Metadata{
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Category:    c.FormValue("category"),
		CaseID:      caseID,
		UploadedBy:  caller,
	}
	stored, err := h.store.Upload(c.Request().Context(), meta, src)
	if err != nil {
		switch {
		case errors.Is(err, ErrTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, ErrInvalidContentType), errors.Is(err, ErrMissingFileName):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, stored)
}

func (h *Handler) Download(c echo.Context) error {
	body, meta, err := h.store.Download(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer body.Close()

	c.Response().Header().Set("Content-Disposition", `attachment; filename="`+meta.FileName+`"`)
	return c.Stream(http.StatusOK, meta.ContentType, body)
}

func (h *Handler) GetMetadata(c echo.Context) error {
	meta, err := h.store.GetMetadata(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, meta)
}
