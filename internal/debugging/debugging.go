// Package debugging provides the ambient diagnostic logging helper used
// across bdstore: a single gated Logf, never a structured/leveled logger,
// matching the teacher's ubiquitous debug.Logf call sites.
package debugging

import (
	"fmt"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	enabled = os.Getenv("BDSTORE_DEBUG") != ""
)

// SetEnabled overrides whether Logf writes anything, for tests that want
// to assert on (or silence) diagnostic output regardless of the
// environment.
func SetEnabled(v bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = v
}

// Logf writes a diagnostic line to stderr when BDSTORE_DEBUG is set (or
// SetEnabled(true) was called). It is the default sink for adapter and
// predicate errors that callers don't otherwise handle (§7: "default: log
// and continue").
func Logf(format string, args ...any) {
	mu.RLock()
	on := enabled
	mu.RUnlock()
	if !on {
		return
	}
	fmt.Fprintf(os.Stderr, "bdstore: "+format+"\n", args...)
}
