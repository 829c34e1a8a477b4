package querystate

import (
	"slices"

	"github.com/roach88/tablekit/internal/queryir"
)

// State is the live query plus the selected row ids.
// SelectedRows is an insertion-ordered set.
type State struct {
	Query        queryir.Query `json:"query"`
	SelectedRows []string      `json:"selectedRows"`
}

// Initial returns the state after construction or Reset.
func Initial() State {
	return State{
		Query:        queryir.Default(),
		SelectedRows: []string{},
	}
}

// Clone returns a copy of s that shares no slices with it.
func (s State) Clone() State {
	c := State{Query: s.Query.Clone()}
	c.SelectedRows = slices.Clone(s.SelectedRows)
	if c.SelectedRows == nil {
		c.SelectedRows = []string{}
	}
	return c
}

// IsSelected reports whether id is in the selection.
func (s State) IsSelected(id string) bool {
	return slices.Contains(s.SelectedRows, id)
}

// Reduce applies an intent and returns the next state.
//
// Reduce is a pure total function. The result never aliases slices of s.
// Changing filters, search, sort or page size resets the page to 1;
// selection intents leave the query untouched. Out-of-range values
// (page 0, negative page size) are stored as given.
func Reduce(s State, in Intent) State {
	next := s.Clone()

	switch i := in.(type) {
	case SetPage:
		next.Query.Page = i.Page
	case SetPageSize:
		next.Query.PageSize = i.PageSize
		next.Query.Page = 1
	case SetSort:
		if i.Sort == nil {
			next.Query.Sort = nil
		} else {
			sort := *i.Sort
			next.Query.Sort = &sort
		}
		next.Query.Page = 1
	case AddFilter:
		next.Query.Filters = append(next.Query.Filters, i.Filter)
		next.Query.Page = 1
	case RemoveFilter:
		next.Query.Filters = slices.DeleteFunc(next.Query.Filters, func(f queryir.Filter) bool {
			return f.Field == i.Field
		})
		next.Query.Page = 1
	case ClearFilters:
		next.Query.Filters = []queryir.Filter{}
		next.Query.Page = 1
	case SetSearch:
		next.Query.Search = i.Search
		next.Query.Page = 1
	case SelectRow:
		if !slices.Contains(next.SelectedRows, i.ID) {
			next.SelectedRows = append(next.SelectedRows, i.ID)
		}
	case DeselectRow:
		next.SelectedRows = slices.DeleteFunc(next.SelectedRows, func(id string) bool {
			return id == i.ID
		})
	case SelectAll:
		next.SelectedRows = dedupe(i.IDs)
	case ClearSelection:
		next.SelectedRows = []string{}
	case Reset:
		return Initial()
	default:
		// nil intent: no change
	}

	return next
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
