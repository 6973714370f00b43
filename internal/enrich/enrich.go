// Package enrich fetches full text for a candidate from the extractor hub.
// Enrichment is best effort: any failure leaves the original snippet in place.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/types"
)

const (
	// DefaultMaxChars keeps enriched text within the local model's context.
	DefaultMaxChars = 3000
	// DefaultTimeout bounds one extraction request.
	DefaultTimeout = 15 * time.Second
)

// Error represents a failed extraction request.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("enrich error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("enrich error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the hub client.
type Options struct {
	HubURL   string
	APIKey   string
	MaxChars int
	Timeout  time.Duration
}

// Client talks to the extractor hub's POST /extract endpoint.
type Client struct {
	opts       Options
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient returns a client. An empty HubURL disables enrichment.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.HubURL = strings.TrimRight(opts.HubURL, "/")
	return &Client{opts: opts, httpClient: &http.Client{}, logger: logger}
}

// Enabled reports whether a hub is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.opts.HubURL != ""
}

type extractRequest struct {
	URI string `json:"uri"`
}

type extractResponse struct {
	Markdown string `json:"markdown"`
}

// Fetch returns the hub's markdown for url, truncated to MaxChars runes.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	if !c.Enabled() {
		return "", &Error{URL: url, Message: "extractor hub not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	body, err := json.Marshal(extractRequest{URI: url})
	if err != nil {
		return "", &Error{URL: url, Message: "failed to encode request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.HubURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return "", &Error{URL: url, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("X-API-Key", c.opts.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{URL: url, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &Error{URL: url, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{URL: url, Message: "failed to decode response", Cause: err}
	}
	md := strings.TrimSpace(out.Markdown)
	if md == "" {
		return "", &Error{URL: url, Message: "empty markdown"}
	}
	return truncateRunes(md, c.opts.MaxChars), nil
}

// Enrich replaces item.Snippet with full text when available and sets
// item.Enriched accordingly. It never fails.
func (c *Client) Enrich(ctx context.Context, item *types.Item) bool {
	item.Enriched = false
	if !c.Enabled() {
		return false
	}
	md, err := c.Fetch(ctx, item.Link)
	if err != nil {
		c.logger.Debug("enrichment unavailable, keeping snippet", zap.String("link", item.Link), zap.Error(err))
		return false
	}
	item.Snippet = md
	item.Enriched = true
	return true
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
