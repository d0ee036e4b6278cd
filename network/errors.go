package network

import (
	"errors"
	"fmt"
)

var (
	// ErrPeerNotConnected indicates that a request was addressed to a peer
	// which is not connected.
	ErrPeerNotConnected = errors.New("peer not connected")
)

// InvalidResponseError indicates that a peer answered a request with a
// response which could not be decoded or is inconsistent with the request.
type InvalidResponseError struct {
	PeerID    string
	Procedure string
	Err       error
}

func NewInvalidResponseErrorf(peerID string, procedure string, msg string, args ...interface{}) error {
	return InvalidResponseError{
		PeerID:    peerID,
		Procedure: procedure,
		Err:       fmt.Errorf(msg, args...),
	}
}

func (e InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid %s response from peer %s: %s", e.Procedure, e.PeerID, e.Err.Error())
}

func (e InvalidResponseError) Unwrap() error {
	return e.Err
}

// IsInvalidResponseError returns whether an error is InvalidResponseError
func IsInvalidResponseError(err error) bool {
	var e InvalidResponseError
	return errors.As(err, &e)
}
