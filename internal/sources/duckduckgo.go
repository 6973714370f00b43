package sources

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/research-scout/internal/fetch"
	"github.com/jonathan/research-scout/internal/types"
)

// DefaultDuckDuckGoURL is the no-script results page.
const DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the HTML results page.
type DuckDuckGo struct {
	BaseURL string
	Fetch   *fetch.Options
}

// NewDuckDuckGo returns an adapter for the public endpoint.
func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{BaseURL: DefaultDuckDuckGoURL}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]types.Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	opts := d.Fetch
	if opts == nil {
		opts = fetch.DefaultOptions()
	}
	res, err := fetch.URL(ctx, d.BaseURL+"?"+url.Values{"q": {query}}.Encode(), opts)
	if err != nil {
		return nil, &Error{Source: d.Name(), Query: query, Message: "request failed", Cause: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Body))
	if err != nil {
		return nil, &Error{Source: d.Name(), Query: query, Message: "failed to parse results page", Cause: err}
	}

	var items []types.Item
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		anchor := s.Find("a.result__a").First()
		href, _ := anchor.Attr("href")
		item, ok := newItem(d.Name(), fetch.CollapseSpace(anchor.Text()), resultLink(href),
			fetch.CollapseSpace(s.Find(".result__snippet").First().Text()))
		if ok {
			items = append(items, item)
		}
		return len(items) < limit
	})
	return items, nil
}

// resultLink unwraps DuckDuckGo's redirect links (//duckduckgo.com/l/?uddg=<target>).
func resultLink(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
