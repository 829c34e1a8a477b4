package queryir

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/roach88/tablekit/internal/row"
)

// ValidationResult contains the problems found in a query.
//
// Errors describe queries the resolver would answer with an empty page or
// an always-true filter. Warnings describe queries that are well-formed but
// probably not what the caller meant (e.g. filtering on a metadata key that
// some rows lack, which passes those rows).
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Err returns the errors joined into one error, or nil when the query is valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid query: %s", strings.Join(r.Errors, "; "))
}

// Validate checks a query against the pagination bounds and the known
// operator set. It is a pure function; the resolver does not call it.
func Validate(q Query) ValidationResult {
	v := &validator{}
	v.validatePagination(q)
	if q.Sort != nil {
		v.validateSort(*q.Sort)
	}
	for i, f := range q.Filters {
		v.validateFilter(i, f)
	}

	return ValidationResult{
		Valid:    len(v.errors) == 0,
		Errors:   v.errors,
		Warnings: v.warnings,
	}
}

// validator accumulates findings during traversal.
type validator struct {
	errors   []string
	warnings []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validatePagination(q Query) {
	if q.Page < 1 {
		v.addError("page must be >= 1, got %d", q.Page)
	}
	if q.PageSize < MinPageSize || q.PageSize > MaxPageSize {
		v.addError("pageSize must be in [%d,%d], got %d", MinPageSize, MaxPageSize, q.PageSize)
	}
}

func (v *validator) validateSort(s Sort) {
	if s.Field == "" {
		v.addError("sort field is required")
	} else if !row.IsCoreField(s.Field) {
		v.addWarning("sort field %q is not a core field; rows without it keep their order", s.Field)
	}
	if s.Direction != Asc && s.Direction != Desc {
		v.addError("sort direction must be %q or %q, got %q", Asc, Desc, s.Direction)
	}
}

func (v *validator) validateFilter(i int, f Filter) {
	if f.Field == "" {
		v.addError("filters[%d]: field is required", i)
	} else if !row.IsCoreField(f.Field) {
		v.addWarning("filters[%d]: field %q is not a core field; rows without it pass", i, f.Field)
	}

	if !f.Operator.Known() {
		v.addError("filters[%d]: unknown operator %q", i, f.Operator)
		return
	}

	switch {
	case f.Operator == OpIn:
		if !isList(f.Value) {
			v.addError("filters[%d]: operator %q requires a list value, got %T", i, f.Operator, f.Value)
		}
	case f.Operator.Numeric():
		if math.IsNaN(row.ToNumber(f.Value)) {
			v.addWarning("filters[%d]: value %v is not numeric; no row can match", i, f.Value)
		}
	}
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}
