package core

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrFatal marks device and allocation failures. The application cannot
	// continue once one surfaces.
	ErrFatal             = errors.New("fatal")
	ErrContractViolation = errors.New("contract violation")
)

// Fatal wraps err with the failing operation and marks it fatal.
// A nil err yields nil.
func Fatal(err error, op string) error {
	if err == nil {
		return nil
	}
	LogError("%s failed: %v", op, err)
	return errors.Mark(errors.Wrap(err, op), ErrFatal)
}

// Fatalf creates a new fatal error from a message.
func Fatalf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrFatal)
}

func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
