package sources

import (
	"context"
	"net/url"
	"strconv"

	"github.com/mmcdole/gofeed"

	"github.com/jonathan/research-scout/internal/fetch"
	"github.com/jonathan/research-scout/internal/types"
)

// DefaultArxivURL is the arXiv export API.
const DefaultArxivURL = "http://export.arxiv.org/api/query"

// Arxiv queries the arXiv Atom API. The query string is passed through as
// search_query, so boolean operators and quoted phrases work as arXiv defines them.
type Arxiv struct {
	BaseURL string
	Fetch   *fetch.Options
}

// NewArxiv returns an adapter for the public endpoint.
func NewArxiv() *Arxiv {
	return &Arxiv{BaseURL: DefaultArxivURL}
}

func (a *Arxiv) Name() string { return "arxiv" }

func (a *Arxiv) Search(ctx context.Context, query string, limit int) ([]types.Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(limit))
	params.Set("sortBy", "relevance")

	opts := a.Fetch
	if opts == nil {
		opts = fetch.DefaultOptions()
	}
	res, err := fetch.URL(ctx, a.BaseURL+"?"+params.Encode(), opts)
	if err != nil {
		return nil, &Error{Source: a.Name(), Query: query, Message: "request failed", Cause: err}
	}

	feed, err := gofeed.NewParser().ParseString(res.Body)
	if err != nil {
		return nil, &Error{Source: a.Name(), Query: query, Message: "failed to parse feed", Cause: err}
	}

	items := make([]types.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}
		snippet := entry.Description
		if snippet == "" {
			snippet = entry.Content
		}
		item, ok := newItem(a.Name(), fetch.CollapseSpace(entry.Title), entry.Link, fetch.HTMLText(snippet))
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}
