package bft

import (
	"errors"
	"fmt"

	"github.com/dposnet/bft-core/model/chain"
)

// InvalidHeaderError indicates that a header is malformed and can never be
// admitted, independently of the window contents.
type InvalidHeaderError struct {
	err error
}

func NewInvalidHeaderErrorf(msg string, args ...interface{}) error {
	return InvalidHeaderError{err: fmt.Errorf(msg, args...)}
}

func (e InvalidHeaderError) Error() string { return e.err.Error() }
func (e InvalidHeaderError) Unwrap() error { return e.err }

// IsInvalidHeaderError returns whether err is an InvalidHeaderError
func IsInvalidHeaderError(err error) bool {
	var e InvalidHeaderError
	return errors.As(err, &e)
}

// InvalidAttributeError indicates that a header attribute contradicts the
// consensus state derived from the window, e.g. a wrong maxHeightPrevoted.
type InvalidAttributeError struct {
	Attribute string
	Expected  uint64
	Actual    uint64
}

func (e InvalidAttributeError) Error() string {
	return fmt.Sprintf("invalid %s: expected %d, got %d", e.Attribute, e.Expected, e.Actual)
}

// IsInvalidAttributeError returns whether err is an InvalidAttributeError
func IsInvalidAttributeError(err error) bool {
	var e InvalidAttributeError
	return errors.As(err, &e)
}

// ForkChoiceRuleError indicates that a generator forged two blocks without
// advancing its maxHeightPreviouslyForged.
type ForkChoiceRuleError struct {
	Generator chain.PublicKey
	Height    uint64
	Prior     uint64
}

func (e ForkChoiceRuleError) Error() string {
	return fmt.Sprintf("generator %s violated fork choice rule: header at height %d does not justify prior block at height %d",
		e.Generator, e.Height, e.Prior)
}

// IsForkChoiceRuleError returns whether err is a ForkChoiceRuleError
func IsForkChoiceRuleError(err error) bool {
	var e ForkChoiceRuleError
	return errors.As(err, &e)
}

// ChainDisjointError indicates that the generator's last block in the window
// is above the maxHeightPreviouslyForged it claims in the new header.
type ChainDisjointError struct {
	Generator                 chain.PublicKey
	Prior                     uint64
	MaxHeightPreviouslyForged uint64
}

func (e ChainDisjointError) Error() string {
	return fmt.Sprintf("generator %s is on a disjoint chain: prior block at height %d above claimed max height previously forged %d",
		e.Generator, e.Prior, e.MaxHeightPreviouslyForged)
}

// IsChainDisjointError returns whether err is a ChainDisjointError
func IsChainDisjointError(err error) bool {
	var e ChainDisjointError
	return errors.As(err, &e)
}

// LowerChainBranchError indicates that the generator previously built on a
// chain with a higher prevoted height than the one it builds on now.
type LowerChainBranchError struct {
	Generator         chain.PublicKey
	PriorPrevoted     uint64
	MaxHeightPrevoted uint64
}

func (e LowerChainBranchError) Error() string {
	return fmt.Sprintf("generator %s switched to a lower chain branch: prior max height prevoted %d, got %d",
		e.Generator, e.PriorPrevoted, e.MaxHeightPrevoted)
}

// IsLowerChainBranchError returns whether err is a LowerChainBranchError
func IsLowerChainBranchError(err error) bool {
	var e LowerChainBranchError
	return errors.As(err, &e)
}

// NonContiguousHeaderError indicates that a header would leave a gap in the
// header window. It signals a bug in the caller, which must feed headers in
// height order.
type NonContiguousHeaderError struct {
	Height    uint64
	MinHeight uint64
	MaxHeight uint64
}

func (e NonContiguousHeaderError) Error() string {
	return fmt.Sprintf("header at height %d is not contiguous with window [%d, %d]", e.Height, e.MinHeight, e.MaxHeight)
}

// IsNonContiguousHeaderError returns whether err is a NonContiguousHeaderError
func IsNonContiguousHeaderError(err error) bool {
	var e NonContiguousHeaderError
	return errors.As(err, &e)
}

// IsForkSafetyError returns whether err rejects a header for violating the
// fork safety rules of a generator.
func IsForkSafetyError(err error) bool {
	return IsForkChoiceRuleError(err) || IsChainDisjointError(err) || IsLowerChainBranchError(err)
}
