package synchronization

import (
	"errors"
	"fmt"

	"github.com/dposnet/bft-core/consensus/forkchoice"
	"github.com/dposnet/bft-core/model/chain"
)

// AbortError indicates that a recovery mechanism gave up without changing
// the local chain. If PeerID is set, the peer caused the failure and is
// penalized.
type AbortError struct {
	PeerID string
	Err    error
}

func NewAbortErrorf(peerID string, msg string, args ...interface{}) error {
	return AbortError{
		PeerID: peerID,
		Err:    fmt.Errorf(msg, args...),
	}
}

func (e AbortError) Error() string {
	if e.PeerID == "" {
		return fmt.Sprintf("synchronization aborted: %s", e.Err.Error())
	}
	return fmt.Sprintf("synchronization with peer %s aborted: %s", e.PeerID, e.Err.Error())
}

func (e AbortError) Unwrap() error {
	return e.Err
}

// IsAbortError returns whether an error is AbortError
func IsAbortError(err error) bool {
	var e AbortError
	return errors.As(err, &e)
}

// RestartError indicates that the received block should be evaluated again.
type RestartError struct {
	Err error
}

func NewRestartErrorf(msg string, args ...interface{}) error {
	return RestartError{Err: fmt.Errorf(msg, args...)}
}

func (e RestartError) Error() string {
	return fmt.Sprintf("synchronization restarted: %s", e.Err.Error())
}

func (e RestartError) Unwrap() error {
	return e.Err
}

// IsRestartError returns whether an error is RestartError
func IsRestartError(err error) bool {
	var e RestartError
	return errors.As(err, &e)
}

// ApplyPenaltyAndRestartError indicates that the peer misbehaved and the
// received block should be evaluated again.
type ApplyPenaltyAndRestartError struct {
	PeerID string
	Err    error
}

func NewApplyPenaltyAndRestartErrorf(peerID string, msg string, args ...interface{}) error {
	return ApplyPenaltyAndRestartError{
		PeerID: peerID,
		Err:    fmt.Errorf(msg, args...),
	}
}

func (e ApplyPenaltyAndRestartError) Error() string {
	return fmt.Sprintf("penalizing peer %s and restarting: %s", e.PeerID, e.Err.Error())
}

func (e ApplyPenaltyAndRestartError) Unwrap() error {
	return e.Err
}

// IsApplyPenaltyAndRestartError returns whether an error is ApplyPenaltyAndRestartError
func IsApplyPenaltyAndRestartError(err error) bool {
	var e ApplyPenaltyAndRestartError
	return errors.As(err, &e)
}

// ForkChoiceViolationError indicates that the peer selected for block sync
// does not advertise a chain preferred over the local chain.
type ForkChoiceViolationError struct {
	PeerID string
	Status forkchoice.Status
}

func (e ForkChoiceViolationError) Error() string {
	return fmt.Sprintf("chain of peer %s is not preferred over the local chain (%s)", e.PeerID, e.Status)
}

// IsForkChoiceViolationError returns whether an error is ForkChoiceViolationError
func IsForkChoiceViolationError(err error) bool {
	var e ForkChoiceViolationError
	return errors.As(err, &e)
}

// AlreadyRunningError indicates that a recovery mechanism is already
// running.
type AlreadyRunningError struct {
	Mechanism string
}

func (e AlreadyRunningError) Error() string {
	return fmt.Sprintf("synchronizer is already running %s", e.Mechanism)
}

// IsAlreadyRunningError returns whether an error is AlreadyRunningError
func IsAlreadyRunningError(err error) bool {
	var e AlreadyRunningError
	return errors.As(err, &e)
}

// InvalidBlockError indicates that fork choice rejected the received block
// as a synchronization trigger.
type InvalidBlockError struct {
	BlockID chain.Identifier
	Height  uint64
	Status  forkchoice.Status
}

func (e InvalidBlockError) Error() string {
	return fmt.Sprintf("block %x at height %d does not trigger synchronization (%s)", e.BlockID, e.Height, e.Status)
}

// IsInvalidBlockError returns whether an error is InvalidBlockError
func IsInvalidBlockError(err error) bool {
	var e InvalidBlockError
	return errors.As(err, &e)
}
