// Package docmap implements the insertion-ordered key→EncodedDocument
// container with copy-on-write transactions. It is the only mutable shared
// state in the system (§5): readers before a transaction's Commit see the
// pre-transaction map, readers after see the post-transaction map, and no
// intermediate state is ever visible.
package docmap

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/untoldecay/bdstore/encoding"
	"github.com/untoldecay/bdstore/merge"
)

type ordered = orderedmap.OrderedMap[string, encoding.Document]

// Map is the insertion-ordered hash map of key -> EncodedDocument,
// tombstones included. Every key ever written stays present; the core
// never garbage-collects tombstones (external compaction is allowed via
// the persistence plugin, which only affects what gets written out, never
// this live map).
type Map struct {
	mu   sync.RWMutex
	data *ordered
}

// New returns an empty Map.
func New() *Map {
	return &Map{data: orderedmap.New[string, encoding.Document]()}
}

// Get returns the raw EncodedDocument stored at key, if any.
func (m *Map) Get(key string) (encoding.Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.Get(key)
}

// Len returns the number of keys ever written, tombstones included.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.Len()
}

// Put overwrites key with doc, with no merge. Used only for pre-encoded
// ingests, such as loading a persisted snapshot verbatim.
func (m *Map) Put(key string, doc encoding.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Set(key, doc)
}

// Merge combines doc into whatever is stored at key (inserting it outright
// if key is new), returning the resulting document and whether it differs
// from what was there before.
func (m *Map) Merge(key string, doc encoding.Document) (encoding.Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return mergeInto(m.data, key, doc)
}

// Delete merges a fresh tombstone field into key.
func (m *Map) Delete(key, eventstamp string) (encoding.Document, bool, error) {
	return m.Merge(key, encoding.Document{encoding.DeletedKey: encoding.Tombstone(eventstamp)})
}

// Range visits every key in insertion order, stopping early if fn returns
// false.
func (m *Map) Range(fn func(key string, doc encoding.Document) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for pair := m.data.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

func mergeInto(data *ordered, key string, doc encoding.Document) (encoding.Document, bool, error) {
	existing, ok := data.Get(key)
	if !ok {
		data.Set(key, doc)
		return doc, true, nil
	}
	merged, changed, err := merge.MergeDoc(existing, doc)
	if err != nil {
		return nil, false, err
	}
	data.Set(key, merged)
	return merged, changed, nil
}

func cloneOrdered(src *ordered) *ordered {
	dst := orderedmap.New[string, encoding.Document]()
	for pair := src.Oldest(); pair != nil; pair = pair.Next() {
		dst.Set(pair.Key, pair.Value)
	}
	return dst
}

// Tx is a staged, copy-on-write view of a Map. Mutations against the Tx
// are invisible to the owning Map and to any other reader until Commit
// swaps the staged clone in as one atomic step; Rollback discards it.
type Tx struct {
	owner    *Map
	staged   *ordered
	finished bool
}

// Begin clones the current map and returns a Tx staged against the clone.
// The clone is O(n) in the number of keys; transactions are meant for
// batching a handful of mutations, not for long-lived background state.
func (m *Map) Begin() *Tx {
	m.mu.RLock()
	clone := cloneOrdered(m.data)
	m.mu.RUnlock()
	return &Tx{owner: m, staged: clone}
}

// Get reads the Tx's staged view, reflecting any mutations already made
// within this transaction.
func (tx *Tx) Get(key string) (encoding.Document, bool) {
	return tx.staged.Get(key)
}

// Put stages an overwrite of key within this transaction.
func (tx *Tx) Put(key string, doc encoding.Document) {
	tx.staged.Set(key, doc)
}

// Merge stages a merge of doc into key within this transaction.
func (tx *Tx) Merge(key string, doc encoding.Document) (encoding.Document, bool, error) {
	return mergeInto(tx.staged, key, doc)
}

// Delete stages a tombstone merge for key within this transaction.
func (tx *Tx) Delete(key, eventstamp string) (encoding.Document, bool, error) {
	return mergeInto(tx.staged, key, encoding.Document{encoding.DeletedKey: encoding.Tombstone(eventstamp)})
}

// Commit swaps the owning Map's data to the staged clone in a single
// locked step. Commit (and Rollback) may only be called once per Tx.
func (tx *Tx) Commit() {
	if tx.finished {
		return
	}
	tx.finished = true
	tx.owner.mu.Lock()
	tx.owner.data = tx.staged
	tx.owner.mu.Unlock()
}

// Rollback discards the staged clone; the owning Map is left untouched.
func (tx *Tx) Rollback() {
	tx.finished = true
	tx.staged = nil
}
