// Package assistant is a thin client for the external document-QA service.
// The service is an opaque oracle: we send a question plus whatever context
// the caller is entitled to see and relay the answer verbatim. No clinical
// data is persisted on either side of this client.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careledger/careledger/internal/platform/auth"
	"github.com/careledger/careledger/internal/platform/errs"
	"github.com/careledger/careledger/pkg/principal"
)

const defaultTimeout = 30 * time.Second

// Client talks to the QA service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log.With().Str("component", "assistant").Logger(),
	}
}

// Enabled reports whether a QA service is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Chat sends a free-form message to the service's /chat endpoint.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	return c.post(ctx, "/chat", map[string]string{"message": message})
}

// AskDocument sends a question against the service's uploaded document
// corpus via /doc-qna.
func (c *Client) AskDocument(ctx context.Context, question string) (string, error) {
	return c.post(ctx, "/doc-qna", map[string]string{"question": question})
}

func (c *Client) post(ctx context.Context, path string, payload map[string]string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("assistant service is not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading assistant response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("assistant returned non-OK")
		return "", fmt.Errorf("assistant returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Response string `json:"response"`
		Answer   string `json:"answer"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decoding assistant response: %w", err)
	}
	if parsed.Answer != "" {
		return parsed.Answer, nil
	}
	return parsed.Response, nil
}

// CaseTitles lists the case titles owned by a principal. They ride along
// with chat questions so the oracle can ground its answer in the caller's
// own episodes of care without seeing any record content.
type CaseTitles func(ctx context.Context, p principal.Principal) ([]string, error)

// Handler proxies authenticated callers to the QA service.
type Handler struct {
	client *Client
	titles CaseTitles
}

func NewHandler(client *Client, titles CaseTitles) *Handler {
	return &Handler{client: client, titles: titles}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/assistant/ask", h.Ask)
}

func (h *Handler) Ask(c echo.Context) error {
	caller := auth.CallerFromContext(c.Request().Context())
	if caller.IsZero() {
		return echo.NewHTTPError(errs.HTTPStatus(errs.ErrUnauthenticated), "caller principal required")
	}
	var req struct {
		Question string `json:"question"`
		Document bool   `json:"document"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	if !h.client.Enabled() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "assistant service is not configured")
	}

	var (
		answer string
		err    error
	)
	if req.Document {
		answer, err = h.client.AskDocument(c.Request().Context(), req.Question)
	} else {
		answer, err = h.client.Chat(c.Request().Context(), h.withCaseContext(c.Request().Context(), caller, req.Question))
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"answer": answer})
}

// withCaseContext prefixes the question with the caller's case titles. A
// lookup failure drops the context rather than the question.
func (h *Handler) withCaseContext(ctx context.Context, caller principal.Principal, question string) string {
	if h.titles == nil {
		return question
	}
	titles, err := h.titles(ctx, caller)
	if err != nil || len(titles) == 0 {
		return question
	}
	return fmt.Sprintf("My cases: %s.\n%s", strings.Join(titles, "; "), question)
}
