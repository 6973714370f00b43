package classify

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonathan/research-scout/internal/types"
)

// resultKeys are the object keys a model may wrap the results array in.
var resultKeys = []string{"results", "evaluations", "snippets", "output"}

var firstList = regexp.MustCompile(`(?s)\[.*?\]`)

// parseStrategy turns raw classifier text into a list of result elements.
type parseStrategy struct {
	name  string
	parse func(raw string) ([]json.RawMessage, bool)
}

// batchParsers run in order; the first success wins.
var batchParsers = []parseStrategy{
	{name: "results-key", parse: parseResultsKey},
	{name: "bare-list", parse: parseBareList},
	{name: "embedded-list", parse: parseEmbeddedList},
}

func parseResultsKey(raw string) ([]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, false
	}
	for _, key := range resultKeys {
		if v, ok := obj[key]; ok {
			if list, ok := decodeList(v); ok {
				return list, true
			}
		}
	}
	return nil, false
}

func parseBareList(raw string) ([]json.RawMessage, bool) {
	return decodeList([]byte(raw))
}

func parseEmbeddedList(raw string) ([]json.RawMessage, bool) {
	m := firstList.FindString(raw)
	if m == "" {
		return nil, false
	}
	return decodeList([]byte(m))
}

func decodeList(data []byte) ([]json.RawMessage, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, false
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, false
	}
	return list, true
}

// BatchEntry is one validated element of a batch response.
type BatchEntry struct {
	Index   int
	Verdict types.Verdict
}

// ParseBatchResponse applies the parser chain to raw and validates each
// element against a batch of n items. Elements with a missing, non-integer or
// out-of-range index are skipped, as are repeats of an index already seen.
// The strategy name is returned for logging.
func ParseBatchResponse(raw string, n int) ([]BatchEntry, string, error) {
	raw = strings.TrimSpace(raw)
	for _, p := range batchParsers {
		list, ok := p.parse(raw)
		if !ok {
			continue
		}
		return validateEntries(list, n), p.name, nil
	}
	return nil, "", &MalformedResponseError{Message: "no parser strategy accepted the response", Raw: truncate(raw, 200)}
}

type rawEntry struct {
	Index     json.RawMessage `json:"index"`
	Relevance string          `json:"relevance"`
	Rationale string          `json:"rationale"`
}

func validateEntries(list []json.RawMessage, n int) []BatchEntry {
	seen := make(map[int]bool, len(list))
	out := make([]BatchEntry, 0, len(list))
	for _, elem := range list {
		var e rawEntry
		if err := json.Unmarshal(elem, &e); err != nil || len(e.Index) == 0 {
			continue
		}
		// only bare JSON integers count; "1", 1.0 and true are skipped
		idx64, err := strconv.ParseInt(string(e.Index), 10, 64)
		if err != nil || idx64 < 0 || idx64 >= int64(n) {
			continue
		}
		idx := int(idx64)
		if seen[idx] {
			continue
		}
		seen[idx] = true

		rel := types.RelevanceLow
		if strings.TrimSpace(e.Relevance) != "" {
			rel, _ = types.ParseRelevance(e.Relevance)
		}
		rationale := strings.TrimSpace(e.Rationale)
		if rationale == "" {
			rationale = "No rationale."
		}
		out = append(out, BatchEntry{
			Index:   idx,
			Verdict: types.Verdict{Relevance: rel, Rationale: rationale, Stage: types.StageBatch},
		})
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
