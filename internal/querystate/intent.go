package querystate

import "github.com/roach88/tablekit/internal/queryir"

// Intent is a discrete request to change the query state.
//
// This is a sealed interface: only types in this package implement it.
// Reduce switches over the concrete types exhaustively.
type Intent interface {
	intent() // Marker method - unexported to seal the interface
	// Name returns the canonical intent tag, e.g. "SET_PAGE".
	Name() string
}

// Canonical intent tags.
const (
	NameSetPage        = "SET_PAGE"
	NameSetPageSize    = "SET_PAGE_SIZE"
	NameSetSort        = "SET_SORT"
	NameAddFilter      = "ADD_FILTER"
	NameRemoveFilter   = "REMOVE_FILTER"
	NameClearFilters   = "CLEAR_FILTERS"
	NameSetSearch      = "SET_SEARCH"
	NameSelectRow      = "SELECT_ROW"
	NameDeselectRow    = "DESELECT_ROW"
	NameSelectAll      = "SELECT_ALL"
	NameClearSelection = "CLEAR_SELECTION"
	NameReset          = "RESET"
)

// SetPage moves to a page. Nothing else changes.
type SetPage struct {
	Page int `json:"page"`
}

// SetPageSize changes the page size and returns to page 1.
type SetPageSize struct {
	PageSize int `json:"pageSize"`
}

// SetSort changes the sort. A nil Sort removes sorting.
type SetSort struct {
	Sort *queryir.Sort `json:"sort"`
}

// AddFilter appends a filter.
type AddFilter struct {
	Filter queryir.Filter `json:"filter"`
}

// RemoveFilter drops every filter on Field.
type RemoveFilter struct {
	Field string `json:"field"`
}

// ClearFilters drops all filters.
type ClearFilters struct{}

// SetSearch sets the free-text search.
type SetSearch struct {
	Search string `json:"search"`
}

// SelectRow adds a row id to the selection.
type SelectRow struct {
	ID string `json:"id"`
}

// DeselectRow removes a row id from the selection.
type DeselectRow struct {
	ID string `json:"id"`
}

// SelectAll replaces the selection with IDs.
// The store does not check that the ids are on the current page.
type SelectAll struct {
	IDs []string `json:"ids"`
}

// ClearSelection empties the selection.
type ClearSelection struct{}

// Reset returns to the initial state.
type Reset struct{}

func (SetPage) intent()        {}
func (SetPageSize) intent()    {}
func (SetSort) intent()        {}
func (AddFilter) intent()      {}
func (RemoveFilter) intent()   {}
func (ClearFilters) intent()   {}
func (SetSearch) intent()      {}
func (SelectRow) intent()      {}
func (DeselectRow) intent()    {}
func (SelectAll) intent()      {}
func (ClearSelection) intent() {}
func (Reset) intent()          {}

func (SetPage) Name() string        { return NameSetPage }
func (SetPageSize) Name() string    { return NameSetPageSize }
func (SetSort) Name() string        { return NameSetSort }
func (AddFilter) Name() string      { return NameAddFilter }
func (RemoveFilter) Name() string   { return NameRemoveFilter }
func (ClearFilters) Name() string   { return NameClearFilters }
func (SetSearch) Name() string      { return NameSetSearch }
func (SelectRow) Name() string      { return NameSelectRow }
func (DeselectRow) Name() string    { return NameDeselectRow }
func (SelectAll) Name() string      { return NameSelectAll }
func (ClearSelection) Name() string { return NameClearSelection }
func (Reset) Name() string          { return NameReset }

// Compile-time interface satisfaction checks.
var (
	_ Intent = SetPage{}
	_ Intent = SetPageSize{}
	_ Intent = SetSort{}
	_ Intent = AddFilter{}
	_ Intent = RemoveFilter{}
	_ Intent = ClearFilters{}
	_ Intent = SetSearch{}
	_ Intent = SelectRow{}
	_ Intent = DeselectRow{}
	_ Intent = SelectAll{}
	_ Intent = ClearSelection{}
	_ Intent = Reset{}
)
