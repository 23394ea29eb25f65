// Package store implements the public mutation API over a DocumentMap: the
// encode-on-write path, transactional batching, Change event coalescing,
// and the registries that feed the query engine and plugin lifecycle.
package store

import (
	"sync"

	"github.com/untoldecay/bdstore/clock"
	"github.com/untoldecay/bdstore/docmap"
	"github.com/untoldecay/bdstore/encoding"

	"github.com/untoldecay/bdstore/internal/debugging"
)

func defaultOnError(err error) {
	debugging.Logf("adapter error: %v", err)
}

// Store is the façade holding one DocumentMap, one Clock, the registered
// plugin handles, and the change-dispatch machinery that drives query
// views and plugin hooks.
type Store struct {
	clock *clock.Clock
	data  *docmap.Map

	mu        sync.RWMutex
	listeners []listenerEntry
	handles   []Handle
	onError   func(error)

	changes chan Change
	done    chan struct{}

	nextListenerID int
}

type listenerEntry struct {
	id int
	l  ChangeListener
}

// New returns an empty Store and starts its dispatch goroutine.
func New() *Store {
	s := &Store{
		clock:   clock.New(),
		data:    docmap.New(),
		onError: defaultOnError,
		changes: make(chan Change, 256),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Close stops the dispatch goroutine once every already-queued Change has
// been delivered to listeners and plugin hooks.
func (s *Store) Close() {
	close(s.changes)
	<-s.done
}

// OnError overrides the callback invoked for entries that Merge rejects
// and for merge errors raised by Patch/Delete inside a transaction. The
// default logs via internal/debugging and continues. Adapter errors inside
// the persistence and sync plugins are logged by those plugins directly and
// do not reach this callback; query predicate faults go to the query's own
// handler (query.WithErrorHandler).
func (s *Store) OnError(cb func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = cb
}

func (s *Store) reportError(err error) {
	s.mu.RLock()
	cb := s.onError
	s.mu.RUnlock()
	if cb != nil {
		cb(err)
	}
}

// Put encodes value with a fresh eventstamp and overwrites key.
func (s *Store) Put(key string, value map[string]any) Change {
	tx := s.Begin()
	tx.Put(key, value)
	return tx.Commit()
}

// PutMany is the batch form of Put: every entry lands in one Change.
func (s *Store) PutMany(entries []KV) Change {
	tx := s.Begin()
	for _, e := range entries {
		tx.Put(e.Key, e.Value)
	}
	return tx.Commit()
}

// Patch merges partial into the existing document at key. Nonexistent
// keys are silently skipped.
func (s *Store) Patch(key string, partial map[string]any) Change {
	tx := s.Begin()
	tx.Patch(key, partial)
	return tx.Commit()
}

// PatchMany is the batch form of Patch.
func (s *Store) PatchMany(entries []KV) Change {
	tx := s.Begin()
	for _, e := range entries {
		tx.Patch(e.Key, e.Value)
	}
	return tx.Commit()
}

// Delete merges a fresh tombstone into key. Nonexistent keys are silently
// skipped.
func (s *Store) Delete(key string) Change {
	tx := s.Begin()
	tx.Delete(key)
	return tx.Commit()
}

// DeleteMany is the batch form of Delete.
func (s *Store) DeleteMany(keys []string) Change {
	tx := s.Begin()
	for _, k := range keys {
		tx.Delete(k)
	}
	return tx.Commit()
}

// Get returns the decoded value at key, or (nil, false) if key is absent
// or tombstoned.
func (s *Store) Get(key string) (map[string]any, bool) {
	doc, ok := s.data.Get(key)
	if !ok || encoding.IsTombstone(doc) {
		return nil, false
	}
	return encoding.Decode(doc), true
}

// Values returns every non-tombstone entry, decoded, in insertion order.
func (s *Store) Values() []KV {
	var out []KV
	s.data.Range(func(key string, doc encoding.Document) bool {
		if !encoding.IsTombstone(doc) {
			out = append(out, KV{Key: key, Value: encoding.Decode(doc)})
		}
		return true
	})
	return out
}

// Subscribe registers l to receive every Change this store emits, in
// commit order, until the returned unsubscribe func is called.
func (s *Store) Subscribe(l ChangeListener) func() {
	s.mu.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners = append(s.listeners, listenerEntry{id: id, l: l})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, le := range s.listeners {
			if le.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) dispatch(ch Change) {
	if ch.Empty() {
		return
	}
	s.changes <- ch
}

func (s *Store) run() {
	for ch := range s.changes {
		s.process(ch)
	}
	close(s.done)
}

func (s *Store) process(ch Change) {
	s.mu.RLock()
	listeners := append([]listenerEntry(nil), s.listeners...)
	handles := append([]Handle(nil), s.handles...)
	s.mu.RUnlock()

	for _, le := range listeners {
		le.l.OnStoreChange(ch)
	}
	for _, h := range handles {
		dispatchHooks(h, ch)
	}
}

func dispatchHooks(h Handle, ch Change) {
	if h.Hooks == nil {
		return
	}
	if len(ch.Puts) > 0 && h.Hooks.OnPut != nil {
		h.Hooks.OnPut(ch.Puts)
	}
	if len(ch.Patches) > 0 && h.Hooks.OnPatch != nil {
		h.Hooks.OnPatch(ch.Patches)
	}
	if len(ch.Deletes) > 0 && h.Hooks.OnDelete != nil {
		h.Hooks.OnDelete(ch.Deletes)
	}
}
