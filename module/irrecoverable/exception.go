package irrecoverable

import (
	"errors"
	"fmt"
)

// exception represents an unexpected error. An unexpected error is any error returned
// by a function, other than the error specifically documented as expected in that
// function's interface.
//
// It wraps an error, which could be a sentinel error. IT SHOULD NEVER BE CHECKED FOR
// USING errors.Is or errors.As, because the sentinel error it wraps is not expected
// in the caller's context.
type exception struct {
	err error
}

func (e exception) Error() string {
	return e.err.Error()
}

func (e exception) Unwrap() error {
	return e.err
}

// NewExceptionf returns an exception with a formatted error message.
func NewExceptionf(msg string, args ...interface{}) error {
	return exception{
		err: fmt.Errorf(msg, args...),
	}
}

// NewException wraps the input error as an exception, stripping any sentinel
// error information.
func NewException(err error) error {
	return exception{err: err}
}

// IsException returns whether err is an exception.
func IsException(err error) bool {
	var e exception
	return errors.As(err, &e)
}
