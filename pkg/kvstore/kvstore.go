package kvstore

import "errors"

var ErrKeyNotFound = errors.New("key not found")

// KVStore defines the interface for a key-value store.
type KVStore interface {
	// Put stores a key-value pair in the store.
	Put(key string, value []byte) error

	// Get retrieves the value associated with a key. It returns
	// ErrKeyNotFound when the key is absent.
	Get(key string) ([]byte, error)

	// Delete removes a key-value pair from the store.
	Delete(key string) error

	// Scan calls fn for every key starting with prefix, in key order.
	Scan(prefix string, fn func(key string, value []byte) error) error

	// Close closes the key-value store.
	Close() error
}
