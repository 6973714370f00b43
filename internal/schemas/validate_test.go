package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateQuerySet(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"valid", `{"scholar_queries": ["a"], "grey_lit_queries": ["b", "c"]}`, false},
		{"valid with date", `{"generated_on": "2026-01-01", "scholar_queries": ["a"], "grey_lit_queries": ["b"]}`, false},
		{"missing grey lit", `{"scholar_queries": ["a"]}`, true},
		{"empty scholar list", `{"scholar_queries": [], "grey_lit_queries": ["b"]}`, true},
		{"blank query", `{"scholar_queries": ["   "], "grey_lit_queries": ["b"]}`, true},
		{"wrong type", `{"scholar_queries": "a", "grey_lit_queries": ["b"]}`, true},
		{"bare list", `["a", "b"]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuerySet(tt.doc)
			if tt.wantErr {
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateQuerySet_MalformedJSON(t *testing.T) {
	err := ValidateQuerySet(`{"scholar_queries": [`)
	require.Error(t, err)

	var docErr *DocumentError
	assert.ErrorAs(t, err, &docErr)
}

func TestValidateJSONString_InvalidSchema(t *testing.T) {
	err := ValidateJSONString(`{"type": 12}`, `{}`)
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestValidateJSONString_FieldPaths(t *testing.T) {
	schema := `{"type": "object", "required": ["index"], "properties": {"index": {"type": "integer"}}}`

	err := ValidateJSONString(schema, `{"index": "zero"}`)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, "index", verr.Errors[0].Field)
	assert.Contains(t, verr.Error(), "validation failed")
}
