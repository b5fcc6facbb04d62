// Package store caches canonical plan documents in BadgerDB, keyed by a hash
// of the source document and the options that shape its canonical form.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned by Get for keys that have no cached document.
var ErrNotFound = errors.New("plan not cached")

// keyPrefix namespaces cache entries; bump the version when the canonical
// encoding changes.
var keyPrefix = []byte("plancanon/v1/")

// Store is a BadgerDB-backed cache of canonical documents
type Store struct {
	db *badger.DB
}

// Open opens or creates the cache at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable BadgerDB logs

	// Small values, mostly reads
	opts.MemTableSize = 16 << 20   // 16MB memtables
	opts.BlockCacheSize = 32 << 20 // 32MB block cache
	opts.ValueThreshold = 1 << 10  // 1KB - store small documents in the LSM tree

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Key derives the cache key of a source document. Documents that differ in
// dialect or cardinality selection never share a key.
func Key(dialect string, useActualCardinality bool, data []byte) []byte {
	key := make([]byte, 0, len(keyPrefix)+len(dialect)+1+1+8)
	key = append(key, keyPrefix...)
	key = append(key, dialect...)
	key = append(key, '/')
	if useActualCardinality {
		key = append(key, 'a')
	} else {
		key = append(key, 'e')
	}
	return binary.BigEndian.AppendUint64(key, xxhash.Sum64(data))
}

// Get returns the cached document for key
func (s *Store) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	return value, nil
}

// Put stores a document under key, replacing any earlier one
func (s *Store) Put(key, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Count returns the number of cached documents
func (s *Store) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // Keys only
		opts.Prefix = keyPrefix

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close closes the store
func (s *Store) Close() error {
	return s.db.Close()
}
