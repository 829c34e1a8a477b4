package queryir

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSort parses "field" or "field:direction". Direction defaults to asc.
func ParseSort(s string) (Sort, error) {
	field, dir, found := strings.Cut(strings.TrimSpace(s), ":")
	if field == "" {
		return Sort{}, fmt.Errorf("sort %q: field is required", s)
	}
	if !found || dir == "" {
		return Sort{Field: field, Direction: Asc}, nil
	}
	d := Direction(strings.ToLower(dir))
	if d != Asc && d != Desc {
		return Sort{}, fmt.Errorf("sort %q: direction must be %q or %q", s, Asc, Desc)
	}
	return Sort{Field: field, Direction: d}, nil
}

// ParseFilter parses "field:operator:value".
//
// For "in" the value is a comma-separated list. For numeric operators a
// value that parses as a number becomes a float64; everything else stays
// a string. The value may itself contain colons.
func ParseFilter(s string) (Filter, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Filter{}, fmt.Errorf("filter %q: expected field:operator:value", s)
	}
	field, op, raw := strings.TrimSpace(parts[0]), Operator(strings.TrimSpace(parts[1])), parts[2]
	if field == "" {
		return Filter{}, fmt.Errorf("filter %q: field is required", s)
	}
	if !op.Known() {
		return Filter{}, fmt.Errorf("filter %q: unknown operator %q", s, op)
	}

	f := Filter{Field: field, Operator: op}
	switch {
	case op == OpIn:
		items := strings.Split(raw, ",")
		values := make([]any, 0, len(items))
		for _, item := range items {
			if item = strings.TrimSpace(item); item != "" {
				values = append(values, item)
			}
		}
		f.Value = values
	case op.Numeric():
		if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			f.Value = n
		} else {
			f.Value = raw
		}
	default:
		f.Value = raw
	}
	return f, nil
}
