package ports

import (
	"context"
	"encoding/json"
)

// ComputeRequest names a routine implemented outside the engine. Args and
// Kwargs are plain JSON values.
type ComputeRequest struct {
	Routine string         `json:"routine"`
	Args    []any          `json:"args,omitempty"`
	Kwargs  map[string]any `json:"kwargs,omitempty"`
}

type Notification struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Percent *int   `json:"percent,omitempty"`
}

// ComputePort runs a named routine. notify may be nil; implementations must
// not block on it.
type ComputePort interface {
	Compute(ctx context.Context, req ComputeRequest, notify func(Notification)) (json.RawMessage, error)
}

type Notifier interface {
	Notify(ctx context.Context, processID string, n Notification)
}
