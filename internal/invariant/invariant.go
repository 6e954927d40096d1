// Package invariant provides a single assertion helper for programmer-error
// conditions that must never occur given correct callers (as opposed to
// recoverable input-validation failures, which are returned as errors).
package invariant

import "fmt"

// Assert panics with a formatted message if cond is false.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
