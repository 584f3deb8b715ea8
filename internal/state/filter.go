package state

import (
	"sync"

	"github.com/veloshop/storefront/pkg/filter"
)

// HistoryReplacer replaces the current history entry with a new query
// string without adding a back-stack entry
type HistoryReplacer interface {
	ReplaceQuery(rawQuery string)
}

// HistoryFunc adapts a function to HistoryReplacer
type HistoryFunc func(rawQuery string)

func (f HistoryFunc) ReplaceQuery(rawQuery string) { f(rawQuery) }

// FilterContainer holds the product browsing state of one session and
// keeps its query string form in sync
type FilterContainer struct {
	history HistoryReplacer

	mu    sync.RWMutex
	state filter.State
}

// NewFilterContainer starts from the default state. history may be nil.
func NewFilterContainer(history HistoryReplacer) *FilterContainer {
	return &FilterContainer{history: history, state: filter.Default()}
}

// State returns a copy of the current state
func (f *FilterContainer) State() filter.State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state.Clone()
}

// Query returns the canonical query string of the current state
func (f *FilterContainer) Query() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return filter.Encode(f.state)
}

// Navigate adopts the state encoded in rawQuery, as on back/forward
// navigation. The history is left alone.
func (f *FilterContainer) Navigate(rawQuery string) filter.State {
	next := filter.Parse(rawQuery)
	f.mu.Lock()
	f.state = next
	f.mu.Unlock()
	return next.Clone()
}

// Update merges p into the state and replaces the history entry with the
// new query string
func (f *FilterContainer) Update(p filter.Patch) (filter.State, string) {
	f.mu.Lock()
	f.state = f.state.Apply(p)
	next := f.state.Clone()
	f.mu.Unlock()
	return next, f.replace(next)
}

// Reset returns to the default state
func (f *FilterContainer) Reset() (filter.State, string) {
	next := filter.Default()
	f.mu.Lock()
	f.state = next
	f.mu.Unlock()
	return next.Clone(), f.replace(next)
}

func (f *FilterContainer) replace(s filter.State) string {
	query := filter.Encode(s)
	if f.history != nil {
		f.history.ReplaceQuery(query)
	}
	return query
}
