// Package storage persists processes, chain elements, BioCompute Objects
// and cached values in BadgerDB.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v3"
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
	"github.com/eleven-am/playbook/internal/xjson"
	"github.com/google/uuid"
)

type Store struct {
	db     *badger.DB
	owned  bool
	prefix string
	logger *slog.Logger
}

var _ ports.StoragePort = (*Store)(nil)

// Open opens (or creates) a badger database at path. inMemory ignores path.
func Open(path string, inMemory bool, objectIDPrefix string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.NewStorageError("open", path, err)
	}

	s := NewStore(db, objectIDPrefix, logger)
	s.owned = true
	s.logger.Info("storage opened", "path", path, "in_memory", inMemory)
	return s, nil
}

// NewStore wraps an already open database. Close leaves db open.
func NewStore(db *badger.DB, objectIDPrefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		prefix: objectIDPrefix,
		logger: logger.With("component", "storage", "type", "badger"),
	}
}

func (s *Store) get(key string, v interface{}) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			return xjson.Unmarshal(raw, v)
		})
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		s.logger.Debug("key not found", "key", key)
		return domain.NewKeyNotFoundError(key)
	case errors.Is(err, badger.ErrDBClosed):
		return domain.NewStorageError("get", key, domain.ErrClosed)
	default:
		return domain.NewStorageError("get", key, err)
	}
}

func (s *Store) put(key string, v interface{}) error {
	raw, err := xjson.Marshal(v)
	if err != nil {
		return domain.NewStorageError("put", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			err = domain.ErrClosed
		}
		return domain.NewStorageError("put", key, err)
	}
	s.logger.Debug("stored", "key", key, "value_length", len(raw))
	return nil
}

func (s *Store) GetProcess(_ context.Context, id string) (*domain.Process, error) {
	var proc domain.Process
	if err := s.get(domain.ProcessKey(id), &proc); err != nil {
		return nil, err
	}
	return &proc, nil
}

func (s *Store) PutProcess(_ context.Context, proc *domain.Process) error {
	if proc == nil || proc.ID == "" {
		return domain.NewStorageError("put", domain.ProcessKey(""), domain.ErrInvalidInput)
	}
	return s.put(domain.ProcessKey(proc.ID), proc)
}

func (s *Store) GetChain(_ context.Context, id string) (*domain.FPL, error) {
	var el domain.FPL
	if err := s.get(domain.ChainKey(id), &el); err != nil {
		return nil, err
	}
	return &el, nil
}

func (s *Store) PutChain(_ context.Context, element domain.FPL) error {
	if element.ID == "" || element.ProcessID == "" {
		return domain.NewStorageError("put", domain.ChainKey(element.ID), domain.ErrInvalidInput)
	}
	return s.put(domain.ChainKey(element.ID), element)
}

func (s *Store) PutBCO(_ context.Context, doc *domain.BCO) (string, error) {
	if doc == nil {
		return "", domain.NewStorageError("put", domain.BCOKey(""), domain.ErrInvalidInput)
	}
	if doc.ObjectID == "" {
		doc.ObjectID = s.prefix + uuid.NewString()
	}
	if err := s.put(domain.BCOKey(doc.ObjectID), doc); err != nil {
		return "", err
	}
	return doc.ObjectID, nil
}

func (s *Store) GetBCO(_ context.Context, objectID string) (*domain.BCO, error) {
	var doc domain.BCO
	if err := s.get(domain.BCOKey(objectID), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListBCOs returns the object ids of every stored document.
func (s *Store) ListBCOs(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(domain.BCOPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(domain.BCOPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("list", domain.BCOPrefix, err)
	}
	return ids, nil
}

func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger: %w", err)
	}
	return nil
}
