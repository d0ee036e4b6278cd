package processor

import (
	"errors"
	"fmt"

	"github.com/dposnet/bft-core/model/chain"
)

// InvalidBlockError indicates that a block cannot be applied on top of the
// local chain.
type InvalidBlockError struct {
	BlockID chain.Identifier
	Height  uint64
	Err     error
}

func NewInvalidBlockErrorf(block *chain.Block, msg string, args ...interface{}) error {
	return InvalidBlockError{
		BlockID: block.ID(),
		Height:  block.Height(),
		Err:     fmt.Errorf(msg, args...),
	}
}

func (e InvalidBlockError) Error() string {
	return fmt.Sprintf("invalid block %x at height %d: %s", e.BlockID, e.Height, e.Err.Error())
}

func (e InvalidBlockError) Unwrap() error {
	return e.Err
}

// IsInvalidBlockError returns whether an error is InvalidBlockError
func IsInvalidBlockError(err error) bool {
	var e InvalidBlockError
	return errors.As(err, &e)
}

// ErrFinalizedBlock is returned when deleting a block at or below the
// finalized height.
var ErrFinalizedBlock = errors.New("finalized blocks cannot be deleted")
