package chain

import (
	"context"
	"fmt"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
)

const maxLoadDepth = 1 << 20

// Save writes every process and element of c, root first, so a partially
// saved chain is always a valid prefix.
func Save(ctx context.Context, store ports.StoragePort, c Chain) error {
	for _, el := range c.Elements() {
		proc, ok := c.Lookup(el.ProcessID)
		if !ok {
			return fmt.Errorf("chain %s: process %s: %w", c.ID(), el.ProcessID, domain.ErrNotFound)
		}
		if err := store.PutProcess(ctx, proc); err != nil {
			return fmt.Errorf("save process %s: %w", proc.ID, err)
		}
		if err := store.PutChain(ctx, el); err != nil {
			return fmt.Errorf("save chain element %s: %w", el.ID, err)
		}
	}
	return nil
}

// Load rebuilds the chain ending at chainID into arena. Every element is
// validated again through Append, so a tampered store cannot produce an
// ill-typed chain.
func Load(ctx context.Context, arena *Arena, store ports.StoragePort, chainID string) (Chain, error) {
	var elements []*domain.FPL
	for id := chainID; id != ""; {
		el, err := store.GetChain(ctx, id)
		if err != nil {
			return Chain{}, fmt.Errorf("load chain element %s: %w", id, err)
		}
		elements = append(elements, el)
		id = el.ParentID
		if len(elements) > maxLoadDepth {
			return Chain{}, domain.NewChainIntegrityError(el.ProcessID, "", domain.ErrCycle, "chain %s does not reach a root", chainID)
		}
	}

	var c Chain
	for i := len(elements) - 1; i >= 0; i-- {
		el := elements[i]
		proc, err := store.GetProcess(ctx, el.ProcessID)
		if err != nil {
			return Chain{}, fmt.Errorf("load process %s: %w", el.ProcessID, err)
		}
		if c.IsZero() {
			c, err = arena.Root(proc)
		} else {
			c, err = c.Append(proc)
		}
		if err != nil {
			return Chain{}, err
		}
		if c.ID() != el.ID {
			return Chain{}, domain.NewChainIntegrityError(el.ProcessID, "", domain.ErrInvalidInput, "stored element %s does not match derived id %s", el.ID, c.ID())
		}
	}
	return c, nil
}
