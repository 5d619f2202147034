// Package errors adapts cockroachdb/errors for internal use. Wrapping a nil
// error yields nil so call sites can wrap unconditionally.
package errors

import (
	"github.com/cockroachdb/errors"
)

// Wrap annotates err with a message. Returns nil if err is nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Wrapf annotates err with a formatted message. Returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// New creates a new error with a stack trace.
func New(msg string) error {
	return errors.New(msg)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}
