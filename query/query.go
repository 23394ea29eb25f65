// Package query implements reactive, incrementally maintained materialized
// views over a store.Store: a client predicate selects a set of keys, and
// the view updates itself in O(changed items) off the store's Change
// events instead of rescanning on every mutation.
package query

import (
	"fmt"
	"sync"

	"github.com/untoldecay/bdstore/store"
)

// Predicate decides whether a decoded document belongs in a Query's
// result set. Predicates must be pure; they're re-evaluated on every
// put/patch that touches their key, using the post-merge decoded value.
type Predicate func(value map[string]any) bool

// Option configures a Query at construction time.
type Option func(*Query)

// WithErrorHandler overrides what happens when the predicate panics
// (default: log via internal/debugging and continue).
func WithErrorHandler(cb func(error)) Option {
	return func(q *Query) { q.onFault = cb }
}

type subscriber struct {
	id int
	cb func()
}

// Query is a live materialized view over a single store for a
// caller-supplied predicate. Construction performs one scan of the
// store's current values; every update after that is driven by Change
// events via Store.Subscribe.
type Query struct {
	st        *store.Store
	predicate Predicate
	onFault   func(error)

	unsubscribe func()

	mu          sync.RWMutex
	matching    map[string]struct{}
	subscribers []subscriber
	nextSubID   int
	disposed    bool
}

// New creates a Query over st. It scans st.Values() once to seed the
// initial matching set and fires no event for that scan.
func New(st *store.Store, predicate Predicate, opts ...Option) *Query {
	q := &Query{
		st:        st,
		predicate: predicate,
		onFault:   defaultOnFault,
		matching:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	for _, kv := range st.Values() {
		if q.evalSafe(kv.Value) {
			q.matching[kv.Key] = struct{}{}
		}
	}

	q.unsubscribe = st.Subscribe(q)
	return q
}

func (q *Query) evalSafe(value map[string]any) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			q.onFault(fmt.Errorf("%w: %v", ErrPredicateFault, r))
		}
	}()
	return q.predicate(value)
}

// OnStoreChange implements store.ChangeListener. It applies puts, then
// patches, then deletes (§4.6) and fires every subscriber at most once per
// Change, regardless of how many of the query's keys the Change touched.
func (q *Query) OnStoreChange(ch store.Change) {
	q.mu.Lock()

	dirty := false

	for _, kv := range ch.Puts {
		_, already := q.matching[kv.Key]
		if q.evalSafe(kv.Value) {
			q.matching[kv.Key] = struct{}{}
			dirty = true
		} else if already {
			delete(q.matching, kv.Key)
			dirty = true
		}
	}

	for _, kv := range ch.Patches {
		_, already := q.matching[kv.Key]
		if q.evalSafe(kv.Value) {
			q.matching[kv.Key] = struct{}{}
			dirty = true // matches spec: content updated fires even when already matching
		} else if already {
			delete(q.matching, kv.Key)
			dirty = true
		}
	}

	for _, k := range ch.Deletes {
		if _, already := q.matching[k]; already {
			delete(q.matching, k)
			dirty = true
		}
	}

	subs := append([]subscriber(nil), q.subscribers...)
	q.mu.Unlock()

	if !dirty {
		return
	}
	for _, s := range subs {
		s.cb()
	}
}

// Results reassembles the current decoded view from the store, keyed by
// every key presently in the matching set.
func (q *Query) Results() map[string]map[string]any {
	q.mu.RLock()
	keys := make([]string, 0, len(q.matching))
	for k := range q.matching {
		keys = append(keys, k)
	}
	q.mu.RUnlock()

	out := make(map[string]map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := q.st.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// OnChange registers cb to be invoked (with no arguments) whenever the
// matching set or a matching item's content changes. Returns an
// unsubscribe func.
func (q *Query) OnChange(cb func()) func() {
	q.mu.Lock()
	id := q.nextSubID
	q.nextSubID++
	q.subscribers = append(q.subscribers, subscriber{id: id, cb: cb})
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		for i, s := range q.subscribers {
			if s.id == id {
				q.subscribers = append(q.subscribers[:i], q.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Dispose unregisters the query from its store and drops all
// subscribers. Safe to call more than once.
func (q *Query) Dispose() {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return
	}
	q.disposed = true
	q.subscribers = nil
	unsubscribe := q.unsubscribe
	q.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
