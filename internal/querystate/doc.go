// Package querystate holds the live query and row selection of a table view.
//
// State changes only through intents. Reduce is the pure transition
// function; Store wraps it with a lock and a listener list:
//
//	s := querystate.NewStore()
//	cancel := s.Subscribe(func(st querystate.State) { render(st) })
//	defer cancel()
//	s.AddFilter(queryir.Filter{Field: "status", Operator: queryir.OpEquals, Value: "active"})
//
// Any change to filters, search, sort or page size moves back to page 1.
// Selection survives paging and is cleared only by ClearSelection,
// SelectAll or Reset.
package querystate
