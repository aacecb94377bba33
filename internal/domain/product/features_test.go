package product

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureSetUnmarshalMixedShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  FeatureSet
	}{
		{
			name:  "plain strings",
			input: `["export", "sync"]`,
			want:  FeatureSet{"export", "sync"},
		},
		{
			name:  "legacy objects",
			input: `[{"slug": "export", "name": "Export"}, {"slug": "sync"}]`,
			want:  FeatureSet{"export", "sync"},
		},
		{
			name:  "mixed strings and objects",
			input: `["export", {"slug": "sync", "name": "Sync"}]`,
			want:  FeatureSet{"export", "sync"},
		},
		{
			name:  "object without slug falls back to name",
			input: `[{"name": "export"}]`,
			want:  FeatureSet{"export"},
		},
		{
			name:  "duplicates and blanks dropped",
			input: `["export", "Export", "", "  ", "sync"]`,
			want:  FeatureSet{"export", "sync"},
		},
		{
			name:  "empty array",
			input: `[]`,
			want:  FeatureSet{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fs FeatureSet
			require.NoError(t, json.Unmarshal([]byte(tt.input), &fs))
			assert.Equal(t, tt.want, fs)
		})
	}
}

func TestFeatureSetUnmarshalRejectsNonArray(t *testing.T) {
	var fs FeatureSet
	assert.Error(t, json.Unmarshal([]byte(`"export"`), &fs))
	assert.Error(t, json.Unmarshal([]byte(`{"export": true}`), &fs))
}

func TestFeatureSetMarshal(t *testing.T) {
	data, err := json.Marshal(FeatureSet(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	data, err = json.Marshal(FeatureSet{"export"})
	require.NoError(t, err)
	assert.JSONEq(t, `["export"]`, string(data))
}

func TestFeatureSetContains(t *testing.T) {
	fs := FeatureSet{"export", "sync"}

	assert.True(t, fs.Contains("export"))
	assert.True(t, fs.Contains("EXPORT"))
	assert.False(t, fs.Contains("billing"))
	assert.False(t, FeatureSet(nil).Contains("export"))
}
