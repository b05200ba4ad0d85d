package core

import (
	"github.com/cockroachdb/errors"
)

// Assert panics with an error marked ErrContractViolation when cond is false.
// Contract violations are programming errors in the host and are not recoverable.
func Assert(cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	panic(errors.Mark(errors.Newf(format, args...), ErrContractViolation))
}

// IsContractViolation reports whether a recovered panic value came from Assert.
func IsContractViolation(v interface{}) bool {
	err, ok := v.(error)
	return ok && errors.Is(err, ErrContractViolation)
}
