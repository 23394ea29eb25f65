// Package merge implements the deterministic LWW merge kernel: combining
// two EncodedDocuments (or two batches of them) field-by-field so that
// replicas converge regardless of merge order, as long as eventstamps are
// strictly distinct.
package merge

import (
	"github.com/untoldecay/bdstore/encoding"
)

// MergeField returns whichever of a, b carries the greater eventstamp,
// with ties going to a. Ties only occur within a single clock instance,
// where eventstamps are already strictly monotone, so the tie-break never
// needs to be deterministic across distinct replicas in practice.
func MergeField(a, b encoding.Field) encoding.Field {
	if b.Eventstamp > a.Eventstamp {
		return b
	}
	return a
}

// MergeDoc combines a and b into a single Document, returning whether the
// result differs from a (i.e. whether b contributed a winning value
// anywhere). Returns ErrStructureMismatch (wrapped in a
// *StructureMismatchError) if some path is a field on one side and a
// nested document on the other.
func MergeDoc(a, b encoding.Document) (encoding.Document, bool, error) {
	return mergeDocAt("", a, b)
}

func mergeDocAt(path string, a, b encoding.Document) (encoding.Document, bool, error) {
	result := make(encoding.Document, len(a)+len(b))
	changed := false

	for k, av := range a {
		bv, inB := b[k]
		if !inB {
			result[k] = av
			continue
		}

		childPath := joinPath(path, k)
		aIsField, bIsField := encoding.IsField(av), encoding.IsField(bv)

		switch {
		case aIsField && bIsField:
			af, bf := encoding.AsField(av), encoding.AsField(bv)
			result[k] = MergeField(af, bf)
			changed = changed || winnerIsB(af, bf)
		case !aIsField && !bIsField:
			merged, sub, err := mergeDocAt(childPath, toDoc(av), toDoc(bv))
			if err != nil {
				return nil, false, err
			}
			result[k] = merged
			changed = changed || sub
		default:
			return nil, false, &StructureMismatchError{Path: childPath}
		}
	}

	for k, bv := range b {
		if _, inA := a[k]; !inA {
			result[k] = bv
			changed = true
		}
	}

	return result, changed, nil
}

func winnerIsB(a, b encoding.Field) bool {
	return b.Eventstamp > a.Eventstamp
}

func toDoc(v any) encoding.Document {
	switch d := v.(type) {
	case encoding.Document:
		return d
	case map[string]any:
		return encoding.Document(d)
	default:
		return nil
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// Entry is one (key, Document) pair, the unit MergeBatch operates over.
type Entry struct {
	Key string
	Doc encoding.Document
}

// BatchResult is the outcome of a single key's merge within MergeBatch.
type BatchResult struct {
	Key     string
	Doc     encoding.Document
	Changed bool
}

// MergeBatch merges updates into current: for each key present in only one
// side, that side's document is taken as-is (counted as changed only when
// it came from updates); for each key in both, MergeDoc resolves it.
// Complexity is O((len(current)+len(updates)) * avg-fields) via a hash
// lookup on updates.
func MergeBatch(current, updates []Entry) ([]BatchResult, bool, error) {
	updateIndex := make(map[string]encoding.Document, len(updates))
	order := make([]string, 0, len(current)+len(updates))
	seen := make(map[string]bool, len(current)+len(updates))

	for _, u := range updates {
		updateIndex[u.Key] = u.Doc
	}

	results := make([]BatchResult, 0, len(current)+len(updates))
	anyChanged := false

	for _, c := range current {
		order = append(order, c.Key)
		seen[c.Key] = true

		u, inUpdates := updateIndex[c.Key]
		if !inUpdates {
			results = append(results, BatchResult{Key: c.Key, Doc: c.Doc, Changed: false})
			continue
		}

		merged, changed, err := MergeDoc(c.Doc, u)
		if err != nil {
			return nil, false, err
		}
		results = append(results, BatchResult{Key: c.Key, Doc: merged, Changed: changed})
		anyChanged = anyChanged || changed
	}

	for _, u := range updates {
		if seen[u.Key] {
			continue
		}
		order = append(order, u.Key)
		seen[u.Key] = true
		results = append(results, BatchResult{Key: u.Key, Doc: u.Doc, Changed: true})
		anyChanged = true
	}

	return reorder(results, order), anyChanged, nil
}

func reorder(results []BatchResult, order []string) []BatchResult {
	index := make(map[string]BatchResult, len(results))
	for _, r := range results {
		index[r.Key] = r
	}
	out := make([]BatchResult, 0, len(order))
	for _, k := range order {
		out = append(out, index[k])
	}
	return out
}
