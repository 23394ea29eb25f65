// Package clock produces monotonically increasing eventstamps for the LWW
// merge kernel. An eventstamp combines a millisecond wall-clock reading with
// a counter that advances within the same millisecond, formatted so that
// lexicographic string comparison equals temporal comparison.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// layout is the wire form: <ISO-8601-ms-UTC>|<8-hex-counter>.
const layout = "2006-01-02T15:04:05.000Z07:00"

// Clock produces strictly increasing Eventstamp values.
//
// A Clock is safe for concurrent use: Now and Forward serialize on an
// internal mutex.
type Clock struct {
	mu      sync.Mutex
	nowFunc func() time.Time
	lastMs  int64
	counter uint32
}

// New returns a Clock using the real wall clock.
func New() *Clock {
	return &Clock{nowFunc: time.Now}
}

// NewWithNowFunc returns a Clock driven by a caller-supplied time source,
// for deterministic tests.
func NewWithNowFunc(nowFunc func() time.Time) *Clock {
	return &Clock{nowFunc: nowFunc}
}

// Now produces a new Eventstamp, strictly greater than any value this Clock
// instance has previously produced.
func (c *Clock) Now() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	nowMs := c.nowFunc().UTC().UnixMilli()
	if nowMs > c.lastMs {
		c.lastMs = nowMs
		c.counter = 0
	} else {
		c.counter++
	}
	return format(c.lastMs, c.counter)
}

// Forward advances the clock's internal state so that subsequent calls to
// Now sort strictly above es, if es is itself strictly greater than the
// clock's current position. Used when ingesting a remote snapshot whose
// eventstamps may be ahead of the local clock.
func (c *Clock) Forward(es string) error {
	ms, counter, err := parse(es)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ms > c.lastMs || (ms == c.lastMs && counter > c.counter) {
		c.lastMs = ms
		c.counter = counter
	}
	return nil
}

func format(ms int64, counter uint32) string {
	t := time.UnixMilli(ms).UTC()
	return fmt.Sprintf("%s|%08x", t.Format(layout), counter)
}

func parse(es string) (ms int64, counter uint32, err error) {
	if len(es) != len("2006-01-02T15:04:05.000Z")+1+8 {
		return 0, 0, fmt.Errorf("clock: malformed eventstamp %q", es)
	}
	sep := len(es) - 9
	if es[sep] != '|' {
		return 0, 0, fmt.Errorf("clock: malformed eventstamp %q", es)
	}
	t, err := time.Parse(layout, es[:sep])
	if err != nil {
		return 0, 0, fmt.Errorf("clock: malformed eventstamp %q: %w", es, err)
	}
	var c uint32
	if _, err := fmt.Sscanf(es[sep+1:], "%08x", &c); err != nil {
		return 0, 0, fmt.Errorf("clock: malformed eventstamp %q: %w", es, err)
	}
	return t.UnixMilli(), c, nil
}

// Less reports whether a sorts strictly before b. Eventstamps compare
// lexicographically, so this is equivalent to a plain string comparison,
// exposed here for callers who want the comparison to read as temporal
// rather than textual.
func Less(a, b string) bool {
	return a < b
}
