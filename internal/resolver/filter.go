package resolver

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/roach88/tablekit/internal/queryir"
	"github.com/roach88/tablekit/internal/row"
)

// ApplyFilters returns the rows that match the search text and every filter,
// in their original order.
func (r *Resolver) ApplyFilters(rows []row.Row, q queryir.Query) []row.Row {
	// cases.Caser is stateful; one per call.
	fold := cases.Fold()
	search := fold.String(q.Search)

	out := make([]row.Row, 0, len(rows))
	for _, rw := range rows {
		if search != "" && !matchSearch(fold, rw, search) {
			continue
		}
		if !matchFilters(fold, rw, q.Filters) {
			continue
		}
		out = append(out, rw)
	}
	return out
}

func matchSearch(fold cases.Caser, rw row.Row, needle string) bool {
	if strings.Contains(fold.String(rw.Name), needle) ||
		strings.Contains(fold.String(rw.Category), needle) {
		return true
	}
	for _, tag := range rw.Tags {
		if strings.Contains(fold.String(tag), needle) {
			return true
		}
	}
	return false
}

func matchFilters(fold cases.Caser, rw row.Row, filters []queryir.Filter) bool {
	for _, f := range filters {
		v, ok := rw.Field(f.Field)
		if !ok {
			// absent fields pass
			continue
		}
		if !matchFilter(fold, v, f) {
			return false
		}
	}
	return true
}

func matchFilter(fold cases.Caser, v any, f queryir.Filter) bool {
	switch f.Operator {
	case queryir.OpEquals:
		return equal(v, f.Value)
	case queryir.OpContains:
		return strings.Contains(fold.String(row.Stringify(v)), fold.String(row.Stringify(f.Value)))
	case queryir.OpGt, queryir.OpLt, queryir.OpGte, queryir.OpLte:
		return compareNumeric(f.Operator, row.ToNumber(v), row.ToNumber(f.Value))
	case queryir.OpIn:
		return matchIn(v, f.Value)
	}
	// unknown operator
	return true
}

// compareNumeric applies a numeric operator. NaN on either side fails.
func compareNumeric(op queryir.Operator, a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	switch op {
	case queryir.OpGt:
		return a > b
	case queryir.OpLt:
		return a < b
	case queryir.OpGte:
		return a >= b
	case queryir.OpLte:
		return a <= b
	}
	return false
}

// equal is strict equality between a field value and a filter value.
// Numbers compare across Go numeric types, and against a string filter value
// that parses as a number, so textual filters from a URL can match. A time
// compares by instant with a time.Time or against its RFC 3339 rendering
// for a string.
func equal(field, want any) bool {
	if a, ok := row.ToFloat(field); ok {
		if s, isString := want.(string); isString {
			b, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			return err == nil && a == b
		}
		b, ok := row.ToFloat(want)
		return ok && a == b
	}
	switch a := field.(type) {
	case string:
		b, ok := want.(string)
		return ok && a == b
	case time.Time:
		switch b := want.(type) {
		case time.Time:
			return a.Equal(b)
		case string:
			return row.FormatDate(a) == b
		}
		return false
	}
	return reflect.DeepEqual(field, want)
}

// matchIn reports whether the field value appears in the filter's list.
// A list-valued field (tags) matches when any of its elements appears.
// A scalar filter value is treated as a one-element list.
func matchIn(field, list any) bool {
	candidates := toList(list)
	if tags, ok := field.([]string); ok {
		for _, tag := range tags {
			if containsEqual(candidates, tag) {
				return true
			}
		}
		return false
	}
	return containsEqual(candidates, field)
}

func containsEqual(candidates []any, v any) bool {
	for _, c := range candidates {
		if equal(v, c) {
			return true
		}
	}
	return false
}

func toList(v any) []any {
	if v == nil {
		return nil
	}
	if l, ok := v.([]any); ok {
		return l
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
