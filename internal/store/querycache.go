package store

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/jonathan/research-scout/internal/types"
)

// ErrNoCache is returned by QueryCache.Load when there is nothing usable on disk.
var ErrNoCache = errors.New("no query cache")

// QueryCache persists the active query set, replaced wholesale on regeneration.
type QueryCache struct {
	path string
	now  func() time.Time
}

// NewQueryCache returns a cache backed by path.
func NewQueryCache(path string) *QueryCache {
	return &QueryCache{path: path, now: time.Now}
}

type cacheFile struct {
	GeneratedOn    string   `json:"generated_on"`
	ScholarQueries []string `json:"scholar_queries"`
	GreyLitQueries []string `json:"grey_lit_queries"`
	// ddg_queries is the older name of grey_lit_queries.
	LegacyQueries []string `json:"ddg_queries,omitempty"`
}

// Load returns the cached set. Missing, malformed or empty caches return an
// error wrapping ErrNoCache so callers treat them the same way.
func (c *QueryCache) Load() (types.QuerySet, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return types.QuerySet{}, ErrNoCache
	}
	if err != nil {
		return types.QuerySet{}, errors.Join(ErrNoCache, &Error{Path: c.path, Message: "failed to read cache", Cause: err})
	}

	var f cacheFile
	if err := json.Unmarshal(data, &f); err != nil {
		return types.QuerySet{}, errors.Join(ErrNoCache, &Error{Path: c.path, Message: "malformed cache", Cause: err})
	}
	qs := types.QuerySet{
		GeneratedOn:    f.GeneratedOn,
		ScholarQueries: f.ScholarQueries,
		GreyLitQueries: f.GreyLitQueries,
	}
	if len(qs.GreyLitQueries) == 0 {
		qs.GreyLitQueries = f.LegacyQueries
	}
	if qs.Empty() {
		return types.QuerySet{}, errors.Join(ErrNoCache, &Error{Path: c.path, Message: "cache has an empty query list"})
	}
	return qs, nil
}

// Save replaces the cache. GeneratedOn defaults to today.
func (c *QueryCache) Save(qs types.QuerySet) (types.QuerySet, error) {
	if qs.GeneratedOn == "" {
		qs.GeneratedOn = c.now().Format(time.DateOnly)
	}
	data, err := json.MarshalIndent(cacheFile{
		GeneratedOn:    qs.GeneratedOn,
		ScholarQueries: qs.ScholarQueries,
		GreyLitQueries: qs.GreyLitQueries,
	}, "", "  ")
	if err != nil {
		return qs, &Error{Path: c.path, Message: "failed to encode cache", Cause: err}
	}
	return qs, WriteFileAtomic(c.path, data, 0o644)
}
