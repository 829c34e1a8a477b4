package row

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"
)

// Patch is a partial update: field name → new value.
//
// Core fields are type-checked. Keys that are not core fields are merged
// into Metadata; a nil value removes the metadata key.
type Patch map[string]any

// PatchError reports a patch value that cannot be applied to a row.
type PatchError struct {
	Field   string
	Message string
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("patch field %q: %s", e.Field, e.Message)
}

// Fields returns the patch keys in sorted order.
func (p Patch) Fields() []string {
	return slices.Sorted(maps.Keys(p))
}

// Apply returns a copy of r with the patch merged in. r is not modified.
// Keys are applied in sorted order so errors are reported deterministically.
func (p Patch) Apply(r Row) (Row, error) {
	out := r.Clone()
	for _, field := range p.Fields() {
		if err := applyField(&out, field, p[field]); err != nil {
			return Row{}, err
		}
	}
	return out, nil
}

func applyField(r *Row, field string, v any) error {
	switch field {
	case FieldID:
		s, ok := v.(string)
		if !ok || s != r.ID {
			return &PatchError{Field: field, Message: "id cannot be changed"}
		}
	case FieldName:
		s, ok := v.(string)
		if !ok {
			return &PatchError{Field: field, Message: fmt.Sprintf("expected string, got %T", v)}
		}
		r.Name = s
	case FieldCategory:
		s, ok := v.(string)
		if !ok {
			return &PatchError{Field: field, Message: fmt.Sprintf("expected string, got %T", v)}
		}
		r.Category = s
	case FieldStatus:
		s, ok := v.(string)
		if !ok {
			if st, isStatus := v.(Status); isStatus {
				s, ok = string(st), true
			}
		}
		if !ok {
			return &PatchError{Field: field, Message: fmt.Sprintf("expected string, got %T", v)}
		}
		if !ValidStatuses[Status(s)] {
			return &PatchError{Field: field, Message: fmt.Sprintf("unknown status %q", s)}
		}
		r.Status = Status(s)
	case FieldValue:
		n, ok := ToFloat(v)
		if !ok || math.IsNaN(n) {
			return &PatchError{Field: field, Message: fmt.Sprintf("expected number, got %T", v)}
		}
		if math.IsInf(n, 0) {
			return &PatchError{Field: field, Message: "value must be finite"}
		}
		if n < 0 {
			return &PatchError{Field: field, Message: "value must be >= 0"}
		}
		r.Value = n
	case FieldDate:
		switch d := v.(type) {
		case time.Time:
			r.Date = d
		case string:
			t, err := time.Parse(time.RFC3339Nano, d)
			if err != nil {
				return &PatchError{Field: field, Message: fmt.Sprintf("invalid timestamp: %v", err)}
			}
			r.Date = t
		default:
			return &PatchError{Field: field, Message: fmt.Sprintf("expected RFC 3339 timestamp, got %T", v)}
		}
	case FieldTags:
		tags, err := toStrings(v)
		if err != nil {
			return &PatchError{Field: field, Message: err.Error()}
		}
		r.Tags = tags
	default:
		if v == nil {
			delete(r.Metadata, field)
			return nil
		}
		if r.Metadata == nil {
			r.Metadata = make(map[string]any)
		}
		r.Metadata[field] = v
	}
	return nil
}

// ToFloat converts any Go numeric type (and json.Number) to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return slices.Clone(t), nil
	case []any:
		out := make([]string, 0, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("tags[%d]: expected string, got %T", i, e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected list of strings, got %T", v)
}
