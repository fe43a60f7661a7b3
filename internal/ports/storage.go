package ports

import (
	"context"

	"github.com/eleven-am/playbook/internal/domain"
)

type StoragePort interface {
	GetProcess(ctx context.Context, id string) (*domain.Process, error)
	PutProcess(ctx context.Context, proc *domain.Process) error

	GetChain(ctx context.Context, id string) (*domain.FPL, error)
	PutChain(ctx context.Context, element domain.FPL) error

	// PutBCO assigns doc.ObjectID when empty and persists the document.
	PutBCO(ctx context.Context, doc *domain.BCO) (string, error)
	GetBCO(ctx context.Context, objectID string) (*domain.BCO, error)

	Close() error
}
