// Package httpsync is a reference adapter.Syncer speaking the Snapshot
// wire form (§6) over plain net/http: POST to push, GET to pull.
// Grounded on the teacher pack's net/http sink-server idiom
// (DBAShand-cdc-sink-redshift), adapted to a client-side push/pull pair.
package httpsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/untoldecay/bdstore/adapter"
)

// Syncer pushes/pulls a Snapshot against a single HTTP endpoint: POST
// body is the pushed Snapshot, GET response body is the pulled one.
type Syncer struct {
	URL    string
	Client *http.Client
}

// New returns a Syncer against url, using http.DefaultClient if client is
// nil.
func New(url string, client *http.Client) *Syncer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Syncer{URL: url, Client: client}
}

// Push POSTs snapshot as JSON to s.URL.
func (s *Syncer) Push(ctx context.Context, snapshot adapter.Snapshot) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("httpsync: encode push body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("httpsync: build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("httpsync: push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("httpsync: push: unexpected status %s", resp.Status)
	}
	return nil
}

// Pull GETs a Snapshot from s.URL.
func (s *Syncer) Pull(ctx context.Context) (adapter.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("httpsync: build pull request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpsync: pull: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("httpsync: pull: unexpected status %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpsync: read pull body: %w", err)
	}

	var snap adapter.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("httpsync: decode pull body: %w", err)
	}
	return snap, nil
}
