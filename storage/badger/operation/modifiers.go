package operation

import (
	"errors"

	"github.com/dgraph-io/badger/v2"
)

// RetryOnConflict runs the operation through the given badger action, for
// example db.Update, and repeats it as long as badger reports a transaction
// conflict.
func RetryOnConflict(action func(func(*badger.Txn) error) error, op func(tx *badger.Txn) error) error {
	for {
		err := action(op)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}
