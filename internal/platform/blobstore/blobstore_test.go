package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/careledger/careledger/pkg/principal"
)

var uploader = principal.MustParse("0xaa00000000000000000000000000000000000001")

func TestUploadAssignsRefAndHash(t *testing.T) {
	store := NewInMemoryStore()
	meta, err := store.Upload(context.Background(), Metadata{
		FileName:    "cbc.pdf",
		ContentType: "application/pdf",
		Category:    "lab-report",
		CaseID:      7,
		UploadedBy:  uploader,
	}, strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(meta.ContentRef, "blob://") {
		t.Fatalf("unexpected ref %q", meta.ContentRef)
	}
	if meta.Size != int64(len("pdf bytes")) || meta.Hash == "" {
		t.Fatalf("size/hash not recorded: %+v", meta)
	}
}

func TestDownloadRoundTripByRef(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	meta, _ := store.Upload(ctx, Metadata{FileName: "scan.png", ContentType: "image/png", Category: "scan", UploadedBy: uploader}, strings.NewReader("png bytes"))

	body, got, err := store.Download(ctx, meta.ContentRef)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "png bytes" {
		t.Fatalf("content mismatch: %q", data)
	}
	if got.FileName != "scan.png" {
		t.Fatalf("metadata mismatch: %+v", got)
	}
}

func TestDownloadUnknownRef(t *testing.T) {
	store := NewInMemoryStore()
	_, _, err := store.Download(context.Background(), "blob://nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUploadValidation(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if _, err := store.Upload(ctx, Metadata{ContentType: "application/pdf"}, strings.NewReader("x")); !errors.Is(err, ErrMissingFileName) {
		t.Fatalf("missing file name: got %v", err)
	}
	if _, err := store.Upload(ctx, Metadata{FileName: "a.exe", ContentType: "application/x-msdownload"}, strings.NewReader("x")); !errors.Is(err, ErrInvalidContentType) {
		t.Fatalf("bad content type: got %v", err)
	}
	if _, err := store.Upload(ctx, Metadata{FileName: "a.pdf", ContentType: "application/pdf", Category: "selfies"}, strings.NewReader("x")); err == nil {
		t.Fatal("unknown category must be rejected")
	}
}

func TestListByCase(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	store.Upload(ctx, Metadata{FileName: "a.pdf", ContentType: "application/pdf", CaseID: 1, UploadedBy: uploader}, strings.NewReader("a"))
	store.Upload(ctx, Metadata{FileName: "b.pdf", ContentType: "application/pdf", CaseID: 2, UploadedBy: uploader}, strings.NewReader("b"))
	store.Upload(ctx, Metadata{FileName: "c.pdf", ContentType: "application/pdf", CaseID: 1, UploadedBy: uploader}, strings.NewReader("c"))

	got, err := store.ListByCase(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 artifacts for case 1, got %d", len(got))
	}
}
