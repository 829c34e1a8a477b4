package queryir

import (
	"slices"
)

// Page size bounds accepted by Validate.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MinPageSize     = 1
	MaxPageSize     = 100
)

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Operator is a filter comparison.
type Operator string

const (
	OpEquals   Operator = "equals"
	OpContains Operator = "contains"
	OpGt       Operator = "gt"
	OpLt       Operator = "lt"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
)

// Operators lists the recognized filter operators.
var Operators = []Operator{OpEquals, OpContains, OpGt, OpLt, OpGte, OpLte, OpIn}

// Known reports whether op is a recognized operator.
func (op Operator) Known() bool {
	return slices.Contains(Operators, op)
}

// Numeric reports whether op coerces its operands to numbers.
func (op Operator) Numeric() bool {
	switch op {
	case OpGt, OpLt, OpGte, OpLte:
		return true
	}
	return false
}

// Sort orders rows by one field.
type Sort struct {
	Field     string    `json:"field" yaml:"field"`
	Direction Direction `json:"direction" yaml:"direction"`
}

// Filter restricts rows to those whose field satisfies Operator against Value.
type Filter struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value" yaml:"value"`
}

// Query is the combination of pagination, sort, filter and search
// parameters describing a view of the dataset.
type Query struct {
	Page     int      `json:"page" yaml:"page"`
	PageSize int      `json:"pageSize" yaml:"page_size"`
	Sort     *Sort    `json:"sort,omitempty" yaml:"sort,omitempty"`
	Filters  []Filter `json:"filters" yaml:"filters,omitempty"`
	Search   string   `json:"search,omitempty" yaml:"search,omitempty"`
}

// Default returns the initial query: first page of ten rows, no sort,
// no filters, empty search.
func Default() Query {
	return Query{
		Page:     DefaultPage,
		PageSize: DefaultPageSize,
		Filters:  []Filter{},
	}
}

// Clone returns a copy of q that shares no mutable state with it.
// Filter values are copied shallowly; they are treated as immutable.
func (q Query) Clone() Query {
	c := q
	if q.Sort != nil {
		s := *q.Sort
		c.Sort = &s
	}
	c.Filters = slices.Clone(q.Filters)
	if c.Filters == nil {
		c.Filters = []Filter{}
	}
	return c
}

// Offset returns the zero-based index of the first row on the page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.PageSize
}
