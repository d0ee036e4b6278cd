package codec

import (
	"errors"
	"fmt"
)

// ErrInvalidEncoding is returned when attempting to decode an empty or truncated payload.
var ErrInvalidEncoding = errors.New("invalid encoding")

// UnknownProcedureError indicates that a request names a procedure the peer does not serve.
type UnknownProcedureError struct {
	procedure string
}

func (e UnknownProcedureError) Error() string {
	return fmt.Sprintf("unknown procedure: %s", e.procedure)
}

// NewUnknownProcedureErr returns a new UnknownProcedureError
func NewUnknownProcedureErr(procedure string) UnknownProcedureError {
	return UnknownProcedureError{procedure: procedure}
}

// IsUnknownProcedureError returns true if an error is UnknownProcedureError
func IsUnknownProcedureError(err error) bool {
	var e UnknownProcedureError
	return errors.As(err, &e)
}

// MsgUnmarshalError indicates that the payload of a procedure call could not be unmarshalled.
type MsgUnmarshalError struct {
	msgType string
	err     error
}

func (e MsgUnmarshalError) Error() string {
	return fmt.Sprintf("failed to unmarshal payload with message type %s: %s", e.msgType, e.err)
}

func (e MsgUnmarshalError) Unwrap() error {
	return e.err
}

// NewMsgUnmarshalErr returns a new MsgUnmarshalError
func NewMsgUnmarshalErr(msgType string, err error) MsgUnmarshalError {
	return MsgUnmarshalError{msgType: msgType, err: err}
}

// IsMsgUnmarshalError returns true if an error is MsgUnmarshalError
func IsMsgUnmarshalError(err error) bool {
	var e MsgUnmarshalError
	return errors.As(err, &e)
}
