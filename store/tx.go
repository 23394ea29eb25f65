package store

import (
	"github.com/untoldecay/bdstore/docmap"
	"github.com/untoldecay/bdstore/encoding"
)

type txOp int

const (
	opPut txOp = iota
	opPatch
	opDelete
)

// Tx batches put/patch/delete mutations so they commit atomically and emit
// exactly one coalesced Change (§4.4, §4.5, §8 "Batch atomicity").
type Tx struct {
	store *Store
	dtx   *docmap.Tx

	order  []string
	ops    map[string]txOp
	values map[string]map[string]any

	finished bool
}

// Begin starts a transaction staged against a copy-on-write clone of the
// store's DocumentMap. Reads made through other Store methods before
// Commit see the pre-transaction state.
func (s *Store) Begin() *Tx {
	return &Tx{
		store:  s,
		dtx:    s.data.Begin(),
		ops:    make(map[string]txOp),
		values: make(map[string]map[string]any),
	}
}

func (tx *Tx) record(key string, op txOp, value map[string]any) {
	if _, exists := tx.ops[key]; !exists {
		tx.order = append(tx.order, key)
	}
	tx.ops[key] = op
	tx.values[key] = value
}

// Put stages an overwrite of key with a freshly encoded value.
func (tx *Tx) Put(key string, value map[string]any) {
	es := tx.store.clock.Now()
	tx.dtx.Put(key, encoding.Encode(value, es))
	tx.record(key, opPut, value)
}

// Patch stages a merge of partial into key's existing document. A key
// that doesn't exist yet within this transaction's staged view is
// silently skipped.
func (tx *Tx) Patch(key string, partial map[string]any) {
	if _, ok := tx.dtx.Get(key); !ok {
		return
	}
	es := tx.store.clock.Now()
	merged, changed, err := tx.dtx.Merge(key, encoding.Encode(partial, es))
	if err != nil {
		tx.store.reportError(err)
		return
	}
	if !changed {
		return
	}
	tx.record(key, opPatch, encoding.Decode(merged))
}

// Delete stages a tombstone merge for key. A key that doesn't exist yet
// within this transaction's staged view is silently skipped.
func (tx *Tx) Delete(key string) {
	if _, ok := tx.dtx.Get(key); !ok {
		return
	}
	es := tx.store.clock.Now()
	if _, _, err := tx.dtx.Delete(key, es); err != nil {
		tx.store.reportError(err)
		return
	}
	tx.record(key, opDelete, nil)
}

// Commit swaps the staged DocumentMap in atomically and emits one
// coalesced Change (suppressed entirely if nothing actually changed).
func (tx *Tx) Commit() Change {
	if tx.finished {
		return Change{}
	}
	tx.finished = true

	var ch Change
	for _, k := range tx.order {
		switch tx.ops[k] {
		case opPut:
			ch.Puts = append(ch.Puts, KV{Key: k, Value: tx.values[k]})
		case opPatch:
			ch.Patches = append(ch.Patches, KV{Key: k, Value: tx.values[k]})
		case opDelete:
			ch.Deletes = append(ch.Deletes, k)
		}
	}

	tx.dtx.Commit()
	tx.store.dispatch(ch)
	return ch
}

// Rollback discards every staged mutation; the store is left untouched
// and no Change is emitted.
func (tx *Tx) Rollback() {
	if tx.finished {
		return
	}
	tx.finished = true
	tx.dtx.Rollback()
}
