package store

import (
	"fmt"

	"github.com/untoldecay/bdstore/encoding"
	"github.com/untoldecay/bdstore/merge"
)

// MergeOptions configures a Merge ingest call.
type MergeOptions struct {
	// Silent suppresses the emitted Change entirely, used by the
	// persistence plugin's init-time load (§4.8) so subscribers don't see
	// "fake" initial writes.
	Silent bool
}

// MergeOption mutates a MergeOptions.
type MergeOption func(*MergeOptions)

// Silent is a MergeOption that suppresses the emitted Change.
func Silent() MergeOption {
	return func(o *MergeOptions) { o.Silent = true }
}

// Merge ingests a sequence of (key, EncodedDocument) entries, such as a
// persistence snapshot or a sync pull. For each entry: if the key is
// absent, it's treated as a put event; otherwise the existing document is
// merged and classified as unchanged (no emit), became-deleted (a delete
// event), or any other change (a patch event). A malformed eventstamp
// rejects just the offending entry (reported via onError and in the
// returned error slice) without corrupting the rest of the map.
func (s *Store) Merge(entries []merge.Entry, opts ...MergeOption) (Change, []error) {
	var cfg MergeOptions
	for _, o := range opts {
		o(&cfg)
	}

	tx := s.data.Begin()
	var ch Change
	var errs []error

	for _, e := range entries {
		if err := validateDocument(e.Doc); err != nil {
			wrapped := fmt.Errorf("store: merge rejected %q: %w", e.Key, err)
			errs = append(errs, wrapped)
			s.reportError(wrapped)
			continue
		}

		existing, existed := tx.Get(e.Key)
		merged, changed, err := tx.Merge(e.Key, e.Doc)
		if err != nil {
			errs = append(errs, err)
			s.reportError(err)
			continue
		}
		if !changed {
			continue
		}

		wasTombstone := existed && encoding.IsTombstone(existing)
		isTombstone := encoding.IsTombstone(merged)

		switch {
		case !existed:
			ch.Puts = append(ch.Puts, KV{Key: e.Key, Value: encoding.Decode(merged)})
		case isTombstone && !wasTombstone:
			ch.Deletes = append(ch.Deletes, e.Key)
		default:
			ch.Patches = append(ch.Patches, KV{Key: e.Key, Value: encoding.Decode(merged)})
		}
	}

	tx.Commit()

	for _, e := range entries {
		if es := maxEventstamp(e.Doc); es != "" {
			_ = s.clock.Forward(es)
		}
	}

	if !cfg.Silent {
		s.dispatch(ch)
	}
	return ch, errs
}

// Snapshot returns every raw (key, EncodedDocument) entry, tombstones
// included, in insertion order — the form persistence and sync consume.
func (s *Store) Snapshot() []merge.Entry {
	var out []merge.Entry
	s.data.Range(func(key string, doc encoding.Document) bool {
		out = append(out, merge.Entry{Key: key, Doc: doc})
		return true
	})
	return out
}

func validateDocument(doc encoding.Document) error {
	for _, v := range doc {
		if encoding.IsField(v) {
			if err := merge.ValidateEventstamp(encoding.AsField(v).Eventstamp); err != nil {
				return err
			}
			continue
		}
		if nested, ok := asNested(v); ok {
			if err := validateDocument(nested); err != nil {
				return err
			}
		}
	}
	return nil
}

func maxEventstamp(doc encoding.Document) string {
	var max string
	for _, v := range doc {
		if encoding.IsField(v) {
			if es := encoding.AsField(v).Eventstamp; es > max {
				max = es
			}
			continue
		}
		if nested, ok := asNested(v); ok {
			if es := maxEventstamp(nested); es > max {
				max = es
			}
		}
	}
	return max
}

func asNested(v any) (encoding.Document, bool) {
	switch d := v.(type) {
	case encoding.Document:
		return d, true
	case map[string]any:
		return encoding.Document(d), true
	default:
		return nil, false
	}
}
