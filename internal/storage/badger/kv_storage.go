package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/meridian/internal/interfaces"
)

// errKeyExists signals an aborted SetIfAbsent inside a transaction
var errKeyExists = errors.New("key exists")

// KVStorage implements the KeyValueStore interface on the raw Badger handle.
// Lease and result records depend on per-entry TTLs, which badgerhold records
// do not carry, so this bypasses the hold layer and works on badger entries
// directly. Each operation is a single transaction, which is what gives the
// lease manager its single-key atomicity.
type KVStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewKVStorage creates a new KVStorage instance
func NewKVStorage(db *BadgerDB, logger arbor.ILogger) interfaces.KeyValueStore {
	return &KVStorage{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a value by key. Expired entries are reported as not found.
func (s *KVStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.Store().Badger().View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

// Set writes a value with a TTL; ttl <= 0 stores without expiry
func (s *KVStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		entry := badgerdb.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// SetIfAbsent writes the value only when the key does not already exist.
// The existence check and the write share one transaction.
func (s *KVStorage) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			return errKeyExists
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		entry := badgerdb.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if errors.Is(err, errKeyExists) {
		return false, nil
	}
	// A commit conflict means another transaction wrote this key between our
	// read and commit: the key exists now, so the caller lost the race. It is
	// not a store failure.
	if errors.Is(err, badgerdb.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to set key %s if absent: %w", key, err)
	}
	return true, nil
}

// Delete removes a key; deleting an absent key is not an error
func (s *KVStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Ensure KVStorage implements the KeyValueStore interface
var _ interfaces.KeyValueStore = (*KVStorage)(nil)
