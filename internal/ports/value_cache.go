package ports

import (
	"context"
	"encoding/json"
)

// ValueCache keeps encoded outputs across runs, keyed by
// domain.ValueCacheKey.
type ValueCache interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Put(ctx context.Context, key string, raw json.RawMessage) error
}
