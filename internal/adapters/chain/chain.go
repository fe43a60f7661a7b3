package chain

import (
	"github.com/eleven-am/playbook/internal/domain"
)

// Chain is an immutable handle on an arena element. The zero value is an
// empty chain.
type Chain struct {
	arena *Arena
	head  int
}

func (c Chain) IsZero() bool {
	return c.arena == nil
}

// Append validates proc against this chain and returns a handle on the
// extended chain. The receiver is never modified.
func (c Chain) Append(proc *domain.Process) (Chain, error) {
	if c.arena == nil {
		return Chain{}, domain.NewChainIntegrityError("", "", domain.ErrInvalidInput, "cannot append to a zero chain; use Arena.Root")
	}
	return c.arena.appendAt(c.head, proc)
}

// ID is the id of the head element.
func (c Chain) ID() string {
	if c.arena == nil {
		return ""
	}
	c.arena.mu.RLock()
	defer c.arena.mu.RUnlock()
	return c.arena.elements[c.head].fpl.ID
}

func (c Chain) Head() *domain.Process {
	if c.arena == nil {
		return nil
	}
	c.arena.mu.RLock()
	defer c.arena.mu.RUnlock()
	return c.arena.processes[c.arena.elements[c.head].fpl.ProcessID]
}

// Len is the number of elements from the root to the head.
func (c Chain) Len() int {
	if c.arena == nil {
		return 0
	}
	c.arena.mu.RLock()
	defer c.arena.mu.RUnlock()

	n := 0
	for i := c.head; i >= 0; i = c.arena.elements[i].parent {
		n++
	}
	return n
}

// Lookup returns the process with the given id if it is part of this chain.
func (c Chain) Lookup(processID string) (*domain.Process, bool) {
	if c.arena == nil {
		return nil, false
	}
	c.arena.mu.RLock()
	defer c.arena.mu.RUnlock()

	for i := c.head; i >= 0; i = c.arena.elements[i].parent {
		if c.arena.elements[i].fpl.ProcessID == processID {
			return c.arena.processes[processID], true
		}
	}
	return nil, false
}

// Elements lists the chain's elements from the root to the head.
func (c Chain) Elements() []domain.FPL {
	if c.arena == nil {
		return nil
	}
	c.arena.mu.RLock()
	defer c.arena.mu.RUnlock()

	var out []domain.FPL
	for i := c.head; i >= 0; i = c.arena.elements[i].parent {
		out = append(out, c.arena.elements[i].fpl)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Resolve returns the distinct processes of the chain in root-first order.
// A process appearing more than once keeps the position of its first
// occurrence.
func (c Chain) Resolve() []domain.Step {
	elements := c.Elements()
	if len(elements) == 0 {
		return nil
	}

	c.arena.mu.RLock()
	defer c.arena.mu.RUnlock()

	seen := make(map[string]struct{}, len(elements))
	steps := make([]domain.Step, 0, len(elements))
	for _, el := range elements {
		if _, dup := seen[el.ProcessID]; dup {
			continue
		}
		seen[el.ProcessID] = struct{}{}
		steps = append(steps, domain.Step{
			ID:      el.ID,
			Process: c.arena.processes[el.ProcessID],
			Index:   len(steps),
		})
	}
	return steps
}
