package httpsync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/untoldecay/bdstore/adapter"
	"github.com/untoldecay/bdstore/encoding"
)

// RedactingPreprocessor is an example adapter.Preprocessor that replaces
// the value of a configurable set of top-level fields with "[redacted]" in
// every entry's document before it's pushed to a remote, leaving the
// field and its eventstamp in place (this
// redacts, it doesn't delete — pulling the field back would rewrite it
// again from a replica that never redacted it). Fields are addressed as
// "<field>.value" within each entry's JSON-encoded document, matching the
// EncodedField wire shape (§6).
type RedactingPreprocessor struct {
	Fields []string
}

// Preprocess implements adapter.Preprocessor. It only acts on
// adapter.DirectionPush; pulls pass through unchanged.
func (r RedactingPreprocessor) Preprocess(ctx context.Context, dir adapter.Direction, data adapter.Snapshot) (adapter.Snapshot, error) {
	if dir != adapter.DirectionPush || len(r.Fields) == 0 {
		return data, nil
	}

	out := make(adapter.Snapshot, len(data))
	for i, entry := range data {
		raw, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("httpsync: redact %q: marshal: %w", entry.Key, err)
		}

		for _, field := range r.Fields {
			path := field + ".value"
			if !gjson.GetBytes(raw, path).Exists() {
				continue
			}
			raw, err = sjson.SetBytes(raw, path, "[redacted]")
			if err != nil {
				return nil, fmt.Errorf("httpsync: redact %q.%s: %w", entry.Key, field, err)
			}
		}

		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("httpsync: redact %q: unmarshal: %w", entry.Key, err)
		}
		out[i] = adapter.Entry{Key: entry.Key, Value: encoding.Document(doc)}
	}
	return out, nil
}
