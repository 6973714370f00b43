// Package sources holds the search adapters that feed candidate items into
// the triage pipeline. The academic pass uses arXiv; the grey-literature
// pass uses DuckDuckGo's HTML endpoint and, when configured, Google
// Programmable Search.
package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/research-scout/internal/types"
)

// Source is one search backend.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]types.Item, error)
}

// Error is returned by an adapter when a query cannot be served.
type Error struct {
	Source  string
	Query   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s search %q: %s: %v", e.Source, e.Query, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s search %q: %s", e.Source, e.Query, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// newItem trims the fields and drops hits without a title or link.
func newItem(source, title, link, snippet string) (types.Item, bool) {
	title = strings.TrimSpace(title)
	link = strings.TrimSpace(link)
	if title == "" || link == "" {
		return types.Item{}, false
	}
	return types.Item{Title: title, Link: link, Snippet: strings.TrimSpace(snippet), Source: source}, true
}
