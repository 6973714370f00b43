package classify

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/research-scout/internal/types"
)

func TestParseBatchResponse_Strategies(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		strategy string
		indexes  []int
	}{
		{
			name:     "results key",
			raw:      `{"results": [{"index": 0, "relevance": "HIGH", "rationale": "a"}, {"index": 1, "relevance": "LOW", "rationale": "b"}]}`,
			strategy: "results-key",
			indexes:  []int{0, 1},
		},
		{
			name:     "alternate key",
			raw:      `{"evaluations": [{"index": 1, "relevance": "MEDIUM", "rationale": "b"}]}`,
			strategy: "results-key",
			indexes:  []int{1},
		},
		{
			name:     "bare list when results key missing",
			raw:      `[{"index": 0, "relevance": "LOW", "rationale": "a"}]`,
			strategy: "bare-list",
			indexes:  []int{0},
		},
		{
			name:     "embedded list in prose",
			raw:      "Here you go:\n[{\"index\": 1, \"relevance\": \"SILENT_ANOMALY\", \"rationale\": \"gap\"}]\nThanks!",
			strategy: "embedded-list",
			indexes:  []int{1},
		},
		{
			name:     "object with unknown key falls to embedded list",
			raw:      `{"data": [{"index": 0, "relevance": "HIGH", "rationale": "a"}]}`,
			strategy: "embedded-list",
			indexes:  []int{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, strategy, err := ParseBatchResponse(tt.raw, 2)
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, strategy)

			got := make([]int, len(entries))
			for i, e := range entries {
				got[i] = e.Index
			}
			assert.Equal(t, tt.indexes, got)
		})
	}
}

func TestParseBatchResponse_Unparseable(t *testing.T) {
	for _, raw := range []string{"", "I cannot help with that.", `{"results": "none"}`, "[not json]"} {
		_, _, err := ParseBatchResponse(raw, 3)
		var malformed *MalformedResponseError
		assert.ErrorAs(t, err, &malformed, raw)
	}
}

func TestParseBatchResponse_SkipsBadIndexes(t *testing.T) {
	raw := `{"results": [
		{"index": -1, "relevance": "HIGH"},
		{"index": 3, "relevance": "HIGH"},
		{"index": 1.5, "relevance": "HIGH"},
		{"index": "0", "relevance": "HIGH"},
		{"relevance": "HIGH"},
		"just a string",
		{"index": 2, "relevance": "MEDIUM", "rationale": "kept"},
		{"index": 2, "relevance": "LOW", "rationale": "duplicate"}
	]}`

	entries, _, err := ParseBatchResponse(raw, 3)
	require.NoError(t, err)

	want := []BatchEntry{{Index: 2, Verdict: types.Verdict{Relevance: types.RelevanceMedium, Rationale: "kept", Stage: types.StageBatch}}}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBatchResponse_Defaults(t *testing.T) {
	entries, _, err := ParseBatchResponse(`[{"index": 0}, {"index": 1, "relevance": "weird"}]`, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, types.RelevanceLow, entries[0].Verdict.Relevance)
	assert.Equal(t, "No rationale.", entries[0].Verdict.Rationale)
	// unknown tokens are carried through for the router to handle
	assert.Equal(t, types.Relevance("WEIRD"), entries[1].Verdict.Relevance)
}

func TestParseBatchResponse_EmptyListIsSuccess(t *testing.T) {
	entries, strategy, err := ParseBatchResponse(`{"results": []}`, 4)
	require.NoError(t, err)
	assert.Equal(t, "results-key", strategy)
	assert.Empty(t, entries)
}
