package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
)

// ValueCache keeps encoded process outputs in the store so they survive
// restarts. Entries expire after ttl; zero keeps them forever.
type ValueCache struct {
	store *Store
	ttl   time.Duration
}

var _ ports.ValueCache = (*ValueCache)(nil)

func (s *Store) ValueCache(ttl time.Duration) *ValueCache {
	return &ValueCache{store: s, ttl: ttl}
}

func (c *ValueCache) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	var raw json.RawMessage
	err := c.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(domain.ValueKey(key)))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.NewStorageError("get", domain.ValueKey(key), err)
	}
	return raw, true, nil
}

func (c *ValueCache) Put(_ context.Context, key string, raw json.RawMessage) error {
	err := c.store.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(domain.ValueKey(key)), raw)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return domain.NewStorageError("put", domain.ValueKey(key), err)
	}
	return nil
}
