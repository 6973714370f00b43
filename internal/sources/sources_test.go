package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/jonathan/research-scout/internal/fetch"
	"github.com/jonathan/research-scout/internal/types"
)

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query</title>
  <entry>
    <id>http://arxiv.org/abs/2401.00001v1</id>
    <title>Fail-Safe Defaults in
      Maritime OT Networks</title>
    <summary>  We study emergency overrides
      in shipboard control systems.  </summary>
    <link href="http://arxiv.org/abs/2401.00001v1" rel="alternate" type="text/html"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00002v1</id>
    <title>Rail Signalling Resilience</title>
    <summary>Life-safety interlocks.</summary>
    <link href="http://arxiv.org/abs/2401.00002v1" rel="alternate" type="text/html"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00003v1</id>
    <title>Third Paper</title>
    <summary>Extra.</summary>
    <link href="http://arxiv.org/abs/2401.00003v1" rel="alternate" type="text/html"/>
  </entry>
</feed>`

func TestArxiv_Search(t *testing.T) {
	var gotQuery, gotMax string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		gotMax = r.URL.Query().Get("max_results")
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(arxivFeed))
	}))
	defer srv.Close()

	a := &Arxiv{BaseURL: srv.URL}
	items, err := a.Search(context.Background(), `"fail-safe" AND maritime`, 2)
	require.NoError(t, err)

	assert.Equal(t, `"fail-safe" AND maritime`, gotQuery)
	assert.Equal(t, "2", gotMax)
	want := []types.Item{
		{
			Title:   "Fail-Safe Defaults in Maritime OT Networks",
			Link:    "http://arxiv.org/abs/2401.00001v1",
			Snippet: "We study emergency overrides in shipboard control systems.",
			Source:  "arxiv",
		},
		{
			Title:   "Rail Signalling Resilience",
			Link:    "http://arxiv.org/abs/2401.00002v1",
			Snippet: "Life-safety interlocks.",
			Source:  "arxiv",
		},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestArxiv_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "server error", status: http.StatusServiceUnavailable, wantMsg: "request failed"},
		{name: "not a feed", status: http.StatusOK, body: "<html>maintenance</html>", wantMsg: "failed to parse feed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := (&Arxiv{BaseURL: srv.URL}).Search(context.Background(), "q", 3)
			require.Error(t, err)
			var srcErr *Error
			require.ErrorAs(t, err, &srcErr)
			assert.Equal(t, "arxiv", srcErr.Source)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

const ddgPage = `<html><body>
<div class="result result--ad">
  <a class="result__a" href="https://ads.example/click">Sponsored</a>
  <a class="result__snippet">Buy now</a>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.cisa.gov%2Fot-guide%3Fa%3D1&amp;rut=abc">CISA <b>OT</b> Guide</a></h2>
  <a class="result__snippet" href="#">Guidance for  industrial control
     system owners.</a>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="https://www.nist.gov/800-82">NIST 800-82</a></h2>
  <a class="result__snippet">ICS security.</a>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="">No link</a></h2>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="https://example.org/4">Fourth</a></h2>
</div>
</body></html>`

func TestDuckDuckGo_Search(t *testing.T) {
	var gotQ string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQ = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	d := &DuckDuckGo{BaseURL: srv.URL + "/html/"}
	items, err := d.Search(context.Background(), "site:cisa.gov OT security", 2)
	require.NoError(t, err)

	assert.Equal(t, "site:cisa.gov OT security", gotQ)
	want := []types.Item{
		{Title: "CISA OT Guide", Link: "https://www.cisa.gov/ot-guide?a=1", Snippet: "Guidance for industrial control system owners.", Source: "duckduckgo"},
		{Title: "NIST 800-82", Link: "https://www.nist.gov/800-82", Snippet: "ICS security.", Source: "duckduckgo"},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestDuckDuckGo_SkipsUnlinkedResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	items, err := (&DuckDuckGo{BaseURL: srv.URL}).Search(context.Background(), "q", 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Fourth", items[2].Title)
}

func TestResultLink(t *testing.T) {
	assert.Equal(t, "https://a.example/x", resultLink("//duckduckgo.com/l/?uddg=https%3A%2F%2Fa.example%2Fx"))
	assert.Equal(t, "https://b.example/", resultLink("https://b.example/"))
	assert.Equal(t, "", resultLink(""))
}

func TestGoogleCSE_Search(t *testing.T) {
	var gotKey, gotCX, gotQ, gotNum string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotKey, gotCX, gotQ, gotNum = q.Get("key"), q.Get("cx"), q.Get("q"), q.Get("num")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"title": "FEMA Lifelines", "link": "https://www.fema.gov/lifelines", "snippet": "Cyber dependency."},
				{"title": "", "link": "https://www.fema.gov/blank"},
			},
		})
	}))
	defer srv.Close()

	g, err := NewGoogleCSE(context.Background(), "key-1", "cx-1", option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	items, err := g.Search(context.Background(), "site:fema.gov lifelines", 25)
	require.NoError(t, err)

	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, "cx-1", gotCX)
	assert.Equal(t, "site:fema.gov lifelines", gotQ)
	assert.Equal(t, "10", gotNum)
	assert.Equal(t, []types.Item{
		{Title: "FEMA Lifelines", Link: "https://www.fema.gov/lifelines", Snippet: "Cyber dependency.", Source: "google"},
	}, items)
}

func TestGoogleCSE_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"code": 429, "message": "quota"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g, err := NewGoogleCSE(context.Background(), "k", "cx", option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	_, err = g.Search(context.Background(), "q", 4)
	var srcErr *Error
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "google", srcErr.Source)
}

func TestGoogleCSE_StalledEndpointTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	g, err := NewGoogleCSE(context.Background(), "k", "cx", option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	assert.Equal(t, fetch.DefaultTimeout, g.Timeout)
	g.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err = g.Search(context.Background(), "q", 4)
	var srcErr *Error
	require.ErrorAs(t, err, &srcErr)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewGoogleCSE_RequiresCredentials(t *testing.T) {
	_, err := NewGoogleCSE(context.Background(), "", "cx")
	assert.Error(t, err)
}

func TestSearch_ZeroLimit(t *testing.T) {
	items, err := NewArxiv().Search(context.Background(), "q", 0)
	assert.NoError(t, err)
	assert.Empty(t, items)
	items, err = NewDuckDuckGo().Search(context.Background(), "q", 0)
	assert.NoError(t, err)
	assert.Empty(t, items)
}
