// Package adapter defines the contracts persistence and sync plugins are
// built against: a KV Backend for whole-collection load/store, and a
// Syncer for push/pull against a remote. Both speak the Snapshot wire
// form (§6), never the in-process EncodedDocument tree directly, so a
// Backend or Syncer never has to import the merge kernel.
package adapter

import "github.com/untoldecay/bdstore/encoding"

// Entry is one (key, EncodedDocument) pair as it appears on the wire.
type Entry struct {
	Key   string            `json:"key"`
	Value encoding.Document `json:"value"`
}

// Snapshot is an ordered sequence of entries — the wire form a Backend
// stores and a Syncer pushes/pulls (§6).
type Snapshot []Entry
