package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
	"github.com/eleven-am/playbook/internal/xjson"
	"github.com/google/uuid"
)

// Store is an in-process StoragePort. Values are copied on the way in and
// out so callers never share memory with the store.
type Store struct {
	processes map[string]*domain.Process
	chains    map[string]domain.FPL
	bcos      map[string][]byte
	prefix    string
	closed    bool
	mu        sync.RWMutex
	logger    *slog.Logger
}

var _ ports.StoragePort = (*Store)(nil)

func NewStore(objectIDPrefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		processes: make(map[string]*domain.Process),
		chains:    make(map[string]domain.FPL),
		bcos:      make(map[string][]byte),
		prefix:    objectIDPrefix,
		logger:    logger.With("component", "storage", "type", "memory"),
	}
}

func (s *Store) GetProcess(_ context.Context, id string) (*domain.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, domain.ErrClosed
	}
	proc, ok := s.processes[id]
	if !ok {
		s.logger.Debug("process not found", "process_id", id)
		return nil, domain.NewKeyNotFoundError(domain.ProcessKey(id))
	}
	return proc.Clone(), nil
}

func (s *Store) PutProcess(_ context.Context, proc *domain.Process) error {
	if proc == nil || proc.ID == "" {
		return domain.NewStorageError("put", domain.ProcessKey(""), domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrClosed
	}
	s.processes[proc.ID] = proc.Clone()
	return nil
}

func (s *Store) GetChain(_ context.Context, id string) (*domain.FPL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, domain.ErrClosed
	}
	el, ok := s.chains[id]
	if !ok {
		return nil, domain.NewKeyNotFoundError(domain.ChainKey(id))
	}
	return &el, nil
}

func (s *Store) PutChain(_ context.Context, element domain.FPL) error {
	if element.ID == "" || element.ProcessID == "" {
		return domain.NewStorageError("put", domain.ChainKey(element.ID), domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrClosed
	}
	s.chains[element.ID] = element
	return nil
}

func (s *Store) PutBCO(_ context.Context, doc *domain.BCO) (string, error) {
	if doc == nil {
		return "", domain.NewStorageError("put", domain.BCOKey(""), domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", domain.ErrClosed
	}
	if doc.ObjectID == "" {
		doc.ObjectID = s.prefix + uuid.NewString()
	}
	// Documents are kept encoded so callers never share slices or maps
	// with the store.
	raw, err := xjson.Marshal(doc)
	if err != nil {
		return "", domain.NewStorageError("put", domain.BCOKey(doc.ObjectID), err)
	}
	s.bcos[doc.ObjectID] = raw
	s.logger.Debug("bco stored", "object_id", doc.ObjectID)
	return doc.ObjectID, nil
}

func (s *Store) GetBCO(_ context.Context, objectID string) (*domain.BCO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, domain.ErrClosed
	}
	raw, ok := s.bcos[objectID]
	if !ok {
		return nil, domain.NewKeyNotFoundError(domain.BCOKey(objectID))
	}
	var out domain.BCO
	if err := xjson.Unmarshal(raw, &out); err != nil {
		return nil, domain.NewStorageError("get", domain.BCOKey(objectID), err)
	}
	return &out, nil
}

func (s *Store) ListBCOs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, domain.ErrClosed
	}
	ids := make([]string, 0, len(s.bcos))
	for id := range s.bcos {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
