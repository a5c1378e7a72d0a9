// Package store persists the economy's state surface in a key-value
// database: supply, stake totals, the pause flag, the extinction history
// and every account position.
package store

import "errors"

// ErrNotFound is returned when a key is absent from the database.
var ErrNotFound = errors.New("store: not found")

// KeyValueStore is the minimum database contract the state codec needs.
// memorydb satisfies it for tests, leveldb for the daemon.
type KeyValueStore interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error

	// NewIterator returns an iterator over the subset of keys with the
	// given prefix, in ascending key order.
	NewIterator(prefix []byte) Iterator

	Close() error
}

// Iterator walks a key range. Next must be called before the first use of
// Key/Value; Release must always be called when done.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}
