package query

import (
	"sort"
	"sync"
)

// Less compares two decoded documents for ordering purposes; used by
// SortedQuery to keep a stable, re-derived ordering of a Query's result
// set without ever rescanning the store.
type Less func(a, b map[string]any) bool

// SortedQuery wraps a Query and maintains a sorted []string of its
// matching keys, re-sorting only from the Query's already-incrementally
// maintained Results() rather than touching the store directly.
type SortedQuery struct {
	q    *Query
	less Less

	mu   sync.RWMutex
	keys []string

	unsubscribe func()
}

// Sorted wraps q, sorting its result set by less. The initial order is
// computed immediately; subsequent orderings are recomputed every time q
// reports a change.
func Sorted(q *Query, less Less) *SortedQuery {
	sq := &SortedQuery{q: q, less: less}
	sq.recompute()
	sq.unsubscribe = q.OnChange(sq.recompute)
	return sq
}

func (sq *SortedQuery) recompute() {
	results := sq.q.Results()
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return sq.less(results[keys[i]], results[keys[j]])
	})

	sq.mu.Lock()
	sq.keys = keys
	sq.mu.Unlock()
}

// Keys returns the current sorted key order.
func (sq *SortedQuery) Keys() []string {
	sq.mu.RLock()
	defer sq.mu.RUnlock()
	out := make([]string, len(sq.keys))
	copy(out, sq.keys)
	return out
}

// Dispose unregisters from the underlying Query. It does not dispose the
// Query itself, since SortedQuery doesn't own it.
func (sq *SortedQuery) Dispose() {
	if sq.unsubscribe != nil {
		sq.unsubscribe()
	}
}
