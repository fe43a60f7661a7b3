// Package valuecache keeps encoded process outputs between passes.
package valuecache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/eleven-am/playbook/internal/ports"
	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process ValueCache. Entries expire after the configured
// TTL and are swept every cleanup interval.
type Memory struct {
	cache  *gocache.Cache
	logger *slog.Logger
}

var _ ports.ValueCache = (*Memory)(nil)

func NewMemory(ttl, cleanupInterval time.Duration, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &Memory{
		cache:  gocache.New(ttl, cleanupInterval),
		logger: logger.With("component", "value-cache", "type", "memory"),
	}
}

func (m *Memory) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	value, found := m.cache.Get(key)
	if !found {
		return nil, false, nil
	}

	raw, ok := value.(json.RawMessage)
	if !ok {
		m.logger.Error("wrong type assertion when getting value", "key", key)
		return nil, false, nil
	}

	m.logger.Debug("cache hit", "key", key)
	return append(json.RawMessage(nil), raw...), true, nil
}

func (m *Memory) Put(_ context.Context, key string, raw json.RawMessage) error {
	m.cache.SetDefault(key, append(json.RawMessage(nil), raw...))
	return nil
}

func (m *Memory) Len() int {
	return m.cache.ItemCount()
}

func (m *Memory) Flush() {
	m.cache.Flush()
}
