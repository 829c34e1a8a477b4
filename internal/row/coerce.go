package row

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ToNumber coerces a field or filter value to a number.
//
// Numbers convert directly, numeric strings parse, and timestamps (time.Time
// or RFC 3339 strings) become Unix milliseconds so dates order numerically.
// Anything else is NaN.
func ToNumber(v any) float64 {
	if f, ok := ToFloat(v); ok {
		return f
	}
	switch t := v.(type) {
	case time.Time:
		return float64(t.UnixMilli())
	case string:
		s := strings.TrimSpace(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return float64(ts.UnixMilli())
		}
	}
	return math.NaN()
}

// Stringify renders a value the way it is matched by substring filters.
// Lists join with commas; timestamps use FormatDate.
func Stringify(v any) string {
	if f, ok := ToFloat(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case Status:
		return string(t)
	case time.Time:
		return FormatDate(t)
	case []string:
		return strings.Join(t, ",")
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = Stringify(e)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}
