package querystate

import (
	"log/slog"
	"sync"

	"github.com/roach88/tablekit/internal/queryir"
)

// Listener receives every new state after a dispatch.
type Listener func(State)

// Store owns the live query state and broadcasts changes.
//
// Dispatch applies Reduce under a lock, then calls listeners synchronously
// in subscription order outside the lock, so a listener may dispatch.
// Listeners of concurrent dispatches may observe states out of order.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners []subscription
	nextID    int
}

type subscription struct {
	id int
	fn Listener
}

// NewStore creates a store in the initial state.
func NewStore() *Store {
	return &Store{state: Initial()}
}

// NewStoreWithState creates a store starting from s.
func NewStoreWithState(s State) *Store {
	return &Store{state: s.Clone()}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Dispatch applies an intent and returns the new state.
func (s *Store) Dispatch(in Intent) State {
	s.mu.Lock()
	s.state = Reduce(s.state, in)
	next := s.state.Clone()
	listeners := make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		listeners[i] = sub.fn
	}
	s.mu.Unlock()

	if in != nil {
		slog.Debug("intent dispatched",
			"intent", in.Name(),
			"page", next.Query.Page,
			"filters", len(next.Query.Filters),
			"selected", len(next.SelectedRows),
		)
	}

	for _, fn := range listeners {
		fn(next.Clone())
	}
	return next
}

// Subscribe registers a listener. The returned function unsubscribes it;
// calling it more than once is harmless.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetPage dispatches SetPage.
func (s *Store) SetPage(page int) State { return s.Dispatch(SetPage{Page: page}) }

// SetPageSize dispatches SetPageSize.
func (s *Store) SetPageSize(size int) State { return s.Dispatch(SetPageSize{PageSize: size}) }

// SetSort dispatches SetSort. Pass nil to clear sorting.
func (s *Store) SetSort(sort *queryir.Sort) State { return s.Dispatch(SetSort{Sort: sort}) }

// AddFilter dispatches AddFilter.
func (s *Store) AddFilter(f queryir.Filter) State { return s.Dispatch(AddFilter{Filter: f}) }

// RemoveFilter dispatches RemoveFilter.
func (s *Store) RemoveFilter(field string) State { return s.Dispatch(RemoveFilter{Field: field}) }

// ClearFilters dispatches ClearFilters.
func (s *Store) ClearFilters() State { return s.Dispatch(ClearFilters{}) }

// SetSearch dispatches SetSearch.
func (s *Store) SetSearch(text string) State { return s.Dispatch(SetSearch{Search: text}) }

// SelectRow dispatches SelectRow.
func (s *Store) SelectRow(id string) State { return s.Dispatch(SelectRow{ID: id}) }

// DeselectRow dispatches DeselectRow.
func (s *Store) DeselectRow(id string) State { return s.Dispatch(DeselectRow{ID: id}) }

// SelectAll dispatches SelectAll.
func (s *Store) SelectAll(ids []string) State { return s.Dispatch(SelectAll{IDs: ids}) }

// ClearSelection dispatches ClearSelection.
func (s *Store) ClearSelection() State { return s.Dispatch(ClearSelection{}) }

// Reset dispatches Reset.
func (s *Store) Reset() State { return s.Dispatch(Reset{}) }
