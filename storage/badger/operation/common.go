package operation

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/dposnet/bft-core/module/irrecoverable"
	"github.com/dposnet/bft-core/storage"
)

// insert will encode the given entity and insert the resulting binary data
// in the badger DB under the provided key. It will error if the key already
// exists.
// Expected errors during normal operations:
//   - storage.ErrAlreadyExists if the key already exists in the database.
func insert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {

		// check if the key already exists in the db
		_, err := tx.Get(key)
		if err == nil {
			return storage.ErrAlreadyExists
		}

		if !errors.Is(err, badger.ErrKeyNotFound) {
			return irrecoverable.NewExceptionf("could not retrieve key: %w", err)
		}

		// serialize the entity data
		val, err := encodeEntity(entity)
		if err != nil {
			return err
		}

		// persist the entity data into the DB
		err = tx.Set(key, val)
		if err != nil {
			return irrecoverable.NewExceptionf("could not store data: %w", err)
		}
		return nil
	}
}

// upsert will encode the given entity and upsert the binary data under the
// given key in the badger DB.
func upsert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		val, err := encodeEntity(entity)
		if err != nil {
			return err
		}

		err = tx.Set(key, val)
		if err != nil {
			return irrecoverable.NewExceptionf("could not upsert data: %w", err)
		}
		return nil
	}
}

// remove removes the entity with the given key, if it exists.
// Expected errors during normal operations:
//   - storage.ErrNotFound if the key does not exist in the database.
func remove(key []byte) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return irrecoverable.NewExceptionf("could not check key: %w", err)
		}

		err = tx.Delete(key)
		if err != nil {
			return irrecoverable.NewExceptionf("could not delete item: %w", err)
		}
		return nil
	}
}

// retrieve will retrieve the binary data under the given key from the badger DB
// and decode it into the given entity. The provided entity needs to be a
// pointer to an initialized entity of the correct type.
// Expected errors during normal operations:
//   - storage.ErrNotFound if the key does not exist in the database.
func retrieve(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {

		// retrieve the item from the key-value store
		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return irrecoverable.NewExceptionf("could not load data: %w", err)
		}

		// get the value from the item
		err = item.Value(func(val []byte) error {
			return decodeValue(val, entity)
		})
		if err != nil {
			return irrecoverable.NewExceptionf("could not decode entity: %w", err)
		}
		return nil
	}
}

// createFunc returns a pointer to an initialized entity that we can
// decode the next value into during a badger DB iteration.
type createFunc func() interface{}

// handleFunc processes the current key-value pair during a badger iteration.
// It is called after the entity was decoded.
type handleFunc func(key []byte) error

// iterationFunc is called for each iteration step and returns the functions
// to create the decode target and to process the current key-value pair.
type iterationFunc func() (createFunc, handleFunc)

// traverse iterates over all keys sharing the given prefix, in ascending or,
// if reverse is set, descending key order. Iteration stops without error
// when a handler returns errStopIteration.
//
// On each iteration, it will call the iteration function to initialize
// functions specific to processing the given key-value pair.
func traverse(prefix []byte, reverse bool, iteration iterationFunc) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		if len(prefix) == 0 {
			return fmt.Errorf("prefix must not be empty")
		}

		opts := badger.DefaultIteratorOptions
		// NOTE: this is an optimization only, it does not enforce that all
		// results in the iteration have this prefix.
		opts.Prefix = prefix
		opts.Reverse = reverse

		it := tx.NewIterator(opts)
		defer it.Close()

		// for reverse iteration, seek to the largest key with this prefix
		seek := prefix
		if reverse {
			seek = append(append([]byte{}, prefix...), 0xff)
		}

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {

			item := it.Item()
			key := item.KeyCopy(nil)

			// initialize processing functions for iteration
			create, handle := iteration()

			// process the actual item
			err := item.Value(func(val []byte) error {

				// decode into the entity
				entity := create()
				err := decodeValue(val, entity)
				if err != nil {
					return fmt.Errorf("could not decode entity: %w", err)
				}

				// process the entity
				return handle(key)
			})
			if errors.Is(err, errStopIteration) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("could not process value: %w", err)
			}
		}

		return nil
	}
}

// errStopIteration is returned by handlers to end a traversal early.
var errStopIteration = errors.New("stop iteration")

// keysWithPrefix collects all keys sharing the prefix without decoding their
// values.
func keysWithPrefix(prefix []byte, keys *[][]byte) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			*keys = append(*keys, it.Item().KeyCopy(nil))
		}
		return nil
	}
}
