package kvstore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/fystack/mpcium-client/pkg/logger"
	"golang.org/x/crypto/scrypt"
)

const (
	saltFile = "JOURNAL_SALT"
	saltSize = 16
)

var (
	ErrEncryptionKeyNotProvided = errors.New("encryption key not provided")
)

type BadgerOptions struct {
	Path string
	// EncryptionKey must be 16, 24 or 32 bytes. It is required for on-disk
	// stores.
	EncryptionKey []byte
	InMemory      bool
}

// BadgerKVStore is an implementation of the KVStore interface using BadgerDB.
type BadgerKVStore struct {
	db *badger.DB
}

// NewBadgerKVStore creates a new BadgerKVStore instance.
func NewBadgerKVStore(o BadgerOptions) (*BadgerKVStore, error) {
	var opts badger.Options
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if len(o.EncryptionKey) == 0 {
			return nil, ErrEncryptionKeyNotProvided
		}
		opts = badger.DefaultOptions(o.Path).
			WithCompression(options.ZSTD).
			WithEncryptionKey(o.EncryptionKey).
			WithIndexCacheSize(16 << 20)
	}
	opts = opts.WithLogger(newQuietBadgerLogger())

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	logger.Info("Connected to BadgerDB successfully!", "path", o.Path, "in_memory", o.InMemory)

	return &BadgerKVStore{db: db}, nil
}

// DeriveEncryptionKey turns a passphrase into a 32 byte badger key. The salt
// is created on first use and kept next to the database.
func DeriveEncryptionKey(dbPath, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEncryptionKeyNotProvided
	}
	if err := os.MkdirAll(dbPath, 0700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	path := filepath.Join(dbPath, saltFile)
	salt, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		if err := os.WriteFile(path, salt, 0600); err != nil {
			return nil, fmt.Errorf("write salt: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}

	return scrypt.Key([]byte(passphrase), salt, 1<<15, 8, 1, 32)
}

// Put stores a key-value pair in the BadgerDB.
func (b *BadgerKVStore) Put(key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Get retrieves the value associated with a key from BadgerDB.
func (b *BadgerKVStore) Get(key string) ([]byte, error) {
	var result []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == nil {
			return item.Value(func(val []byte) error {
				result = append([]byte{}, val...)
				return nil
			})
		}
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}

	return result, err
}

// Delete removes a key-value pair from BadgerDB.
func (b *BadgerKVStore) Delete(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *BadgerKVStore) Scan(prefix string, fn func(key string, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(item.KeyCopy(nil)), val); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the BadgerDB.
func (b *BadgerKVStore) Close() error {
	return b.db.Close()
}
