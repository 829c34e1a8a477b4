package row

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatch_Apply_CoreFields(t *testing.T) {
	r := sampleRow()

	got, err := Patch{
		"name":     "X",
		"status":   "archived",
		"category": "layout",
		"value":    7,
		"date":     "2025-06-01T00:00:00Z",
		"tags":     []any{"a", "b"},
	}.Apply(r)
	require.NoError(t, err)

	assert.Equal(t, "X", got.Name)
	assert.Equal(t, StatusArchived, got.Status)
	assert.Equal(t, "layout", got.Category)
	assert.Equal(t, 7.0, got.Value)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got.Date)
	assert.Equal(t, []string{"a", "b"}, got.Tags)

	// original untouched
	assert.Equal(t, "Button Component", r.Name)
	assert.Equal(t, []string{"form", "primary"}, r.Tags)
}

func TestPatch_Apply_Metadata(t *testing.T) {
	r := sampleRow()

	got, err := Patch{"priority": "high", "owner": nil}.Apply(r)
	require.NoError(t, err)

	assert.Equal(t, "high", got.Metadata["priority"])
	_, hasOwner := got.Metadata["owner"]
	assert.False(t, hasOwner, "nil value deletes metadata key")
	assert.Equal(t, "design", r.Metadata["owner"], "source row keeps its metadata")
}

func TestPatch_Apply_MetadataOnRowWithoutMetadata(t *testing.T) {
	r := Row{ID: "1"}

	got, err := Patch{"flag": true}.Apply(r)
	require.NoError(t, err)
	assert.Equal(t, true, got.Metadata["flag"])
	assert.Nil(t, r.Metadata)
}

func TestPatch_Apply_Errors(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
		field string
	}{
		{"id change", Patch{"id": "other"}, "id"},
		{"name not string", Patch{"name": 5}, "name"},
		{"unknown status", Patch{"status": "deleted"}, "status"},
		{"negative value", Patch{"value": -1}, "value"},
		{"value not number", Patch{"value": "12"}, "value"},
		{"value NaN", Patch{"value": math.NaN()}, "value"},
		{"value infinite", Patch{"value": math.Inf(1)}, "value"},
		{"bad date", Patch{"date": "yesterday"}, "date"},
		{"tags not strings", Patch{"tags": []any{1}}, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.patch.Apply(sampleRow())
			require.Error(t, err)

			var pe *PatchError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestPatch_Apply_SameIDAllowed(t *testing.T) {
	got, err := Patch{"id": "r-1", "name": "Y"}.Apply(sampleRow())
	require.NoError(t, err)
	assert.Equal(t, "Y", got.Name)
}

func TestToFloat(t *testing.T) {
	for _, v := range []any{1, int64(1), float32(1), 1.0, uint8(1), json.Number("1")} {
		f, ok := ToFloat(v)
		assert.True(t, ok, "%T", v)
		assert.Equal(t, 1.0, f)
	}

	_, ok := ToFloat("1")
	assert.False(t, ok)
}
