package sources

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/jonathan/research-scout/internal/fetch"
	"github.com/jonathan/research-scout/internal/types"
)

// googleMaxResults is the API's per-request ceiling.
const googleMaxResults = 10

// GoogleCSE queries Google Programmable Search.
type GoogleCSE struct {
	svc *customsearch.Service
	cx  string
	// Timeout bounds each API request.
	Timeout time.Duration
}

// NewGoogleCSE creates the search client. Extra options (such as
// option.WithEndpoint in tests) are appended after the API key.
func NewGoogleCSE(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*GoogleCSE, error) {
	if apiKey == "" || cx == "" {
		return nil, fmt.Errorf("google search requires an API key and a search engine id")
	}
	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &GoogleCSE{svc: svc, cx: cx, Timeout: fetch.DefaultTimeout}, nil
}

func (g *GoogleCSE) Name() string { return "google" }

func (g *GoogleCSE) Search(ctx context.Context, query string, limit int) ([]types.Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > googleMaxResults {
		limit = googleMaxResults
	}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = fetch.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := g.svc.Cse.List().Cx(g.cx).Q(query).Num(int64(limit)).Context(ctx).Do()
	if err != nil {
		return nil, &Error{Source: g.Name(), Query: query, Message: "search failed", Cause: err}
	}

	items := make([]types.Item, 0, len(resp.Items))
	for _, r := range resp.Items {
		if item, ok := newItem(g.Name(), r.Title, r.Link, r.Snippet); ok {
			items = append(items, item)
		}
	}
	return items, nil
}
