package resolver

import (
	"cmp"
	"math"
	"slices"
	"time"

	"golang.org/x/text/collate"

	"github.com/roach88/tablekit/internal/queryir"
	"github.com/roach88/tablekit/internal/row"
)

// ApplySort returns rows ordered by the query's sort field.
//
// With no sort the input is returned unchanged. Otherwise a new slice is
// sorted stably. Values group by kind, numbers first, then strings, then
// times. Within a kind strings collate and numbers and times compare by
// value; the direction applies within a kind. Rows whose value is absent,
// NaN or of any other type always come last, in their input order.
func (r *Resolver) ApplySort(rows []row.Row, q queryir.Query) []row.Row {
	if q.Sort == nil {
		return rows
	}

	// collate.Collator keeps internal buffers; one per call.
	c := collate.New(r.lang)
	field := q.Sort.Field
	desc := q.Sort.Direction == queryir.Desc

	keyed := make([]keyedRow, len(rows))
	for i, rw := range rows {
		keyed[i] = keyedRow{row: rw, key: keyOf(rw, field)}
	}
	slices.SortStableFunc(keyed, func(a, b keyedRow) int {
		if n := cmp.Compare(a.key.kind, b.key.kind); n != 0 || a.key.kind == kindOther {
			return n
		}
		n := compareKeys(c, a.key, b.key)
		if desc {
			return -n
		}
		return n
	})

	out := make([]row.Row, len(keyed))
	for i, k := range keyed {
		out[i] = k.row
	}
	return out
}

type sortKind int

const (
	kindNumber sortKind = iota
	kindString
	kindTime
	kindOther
)

type keyedRow struct {
	row row.Row
	key sortKey
}

type sortKey struct {
	kind sortKind
	num  float64
	str  string
	at   time.Time
}

func keyOf(rw row.Row, field string) sortKey {
	v, ok := rw.Field(field)
	if !ok {
		return sortKey{kind: kindOther}
	}
	switch t := v.(type) {
	case string:
		return sortKey{kind: kindString, str: t}
	case time.Time:
		return sortKey{kind: kindTime, at: t}
	}
	if f, ok := row.ToFloat(v); ok && !math.IsNaN(f) {
		return sortKey{kind: kindNumber, num: f}
	}
	return sortKey{kind: kindOther}
}

func compareKeys(c *collate.Collator, a, b sortKey) int {
	switch a.kind {
	case kindString:
		return c.CompareString(a.str, b.str)
	case kindTime:
		return a.at.Compare(b.at)
	}
	return cmp.Compare(a.num, b.num)
}
