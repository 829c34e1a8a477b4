package queryir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	q := Query{
		Page:     1,
		PageSize: 10,
		Sort:     &Sort{Field: "name", Direction: Asc},
		Filters:  []Filter{{Field: "status", Operator: OpEquals, Value: "active"}},
	}

	got, err := MarshalCanonical(q)
	require.NoError(t, err)
	assert.Equal(t,
		`{"filters":[{"field":"status","operator":"equals","value":"active"}],"page":1,"pageSize":10,"search":"","sort":{"direction":"asc","field":"name"}}`,
		string(got))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	q := Default()
	q.Search = "<a&b>"
	got, err := MarshalCanonical(q)
	require.NoError(t, err)
	assert.Contains(t, string(got), `"search":"<a&b>"`)
}

func TestMarshalCanonical_LineSeparators(t *testing.T) {
	q := Default()
	q.Search = "a\u2028b"
	got, err := MarshalCanonical(q)
	require.NoError(t, err)
	assert.Contains(t, string(got), "a\u2028b")
	assert.NotContains(t, string(got), `\u2028`)

	q.Search = `a\u2028b`
	got, err = MarshalCanonical(q)
	require.NoError(t, err)
	assert.Contains(t, string(got), `a\\u2028b`)
}

func TestMarshalCanonical_RejectsNonFinite(t *testing.T) {
	q := Default()
	q.Filters = []Filter{{Field: "value", Operator: OpGt, Value: math.Inf(1)}}
	_, err := MarshalCanonical(q)
	assert.Error(t, err)
}

func TestKey_NumericTypesAgree(t *testing.T) {
	a := Default()
	a.Filters = []Filter{{Field: "value", Operator: OpGte, Value: 5}}
	b := Default()
	b.Filters = []Filter{{Field: "value", Operator: OpGte, Value: 5.0}}

	ka, err := Key(a)
	require.NoError(t, err)
	kb, err := Key(b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
	assert.Len(t, ka, 64)
}

func TestKey_NilAndEmptyFiltersAgree(t *testing.T) {
	ka, err := Key(Query{Page: 1, PageSize: 10})
	require.NoError(t, err)
	kb, err := Key(Default())
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
}

func TestKey_NFCNormalization(t *testing.T) {
	composed := Default()
	composed.Search = "caf\u00e9"
	decomposed := Default()
	decomposed.Search = "cafe\u0301"

	ka, err := Key(composed)
	require.NoError(t, err)
	kb, err := Key(decomposed)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
}

func TestKey_DistinguishesQueries(t *testing.T) {
	base := Default()
	other := Default()
	other.Page = 2
	sorted := Default()
	sorted.Sort = &Sort{Field: "value", Direction: Desc}

	keys := map[string]bool{}
	for _, q := range []Query{base, other, sorted} {
		k, err := Key(q)
		require.NoError(t, err)
		keys[k] = true
	}
	assert.Len(t, keys, 3)
}

func TestKey_TypedSliceMatchesAnySlice(t *testing.T) {
	a := Default()
	a.Filters = []Filter{{Field: "status", Operator: OpIn, Value: []string{"active"}}}
	b := Default()
	b.Filters = []Filter{{Field: "status", Operator: OpIn, Value: []any{"active"}}}

	ka, err := Key(a)
	require.NoError(t, err)
	kb, err := Key(b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
}
