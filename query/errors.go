package query

import (
	"errors"

	"github.com/untoldecay/bdstore/internal/debugging"
)

// ErrPredicateFault wraps a panic recovered from a query predicate. The
// query treats the offending evaluation as "does not match" and reports
// the fault through the query's error handler (default: log and
// continue, §7).
var ErrPredicateFault = errors.New("query: predicate fault")

func defaultOnFault(err error) {
	debugging.Logf("%v", err)
}
