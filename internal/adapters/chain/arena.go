// Package chain holds playbook pipelines as persistent singly-linked lists
// of process invocations. Elements live in an append-only Arena; a Chain is
// an immutable handle naming one element as its head.
package chain

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
)

type element struct {
	fpl    domain.FPL
	parent int
}

type Arena struct {
	registry  ports.NodeRegistryPort
	processes map[string]*domain.Process
	elements  []element
	byID      map[string]int
	mu        sync.RWMutex
	logger    *slog.Logger
}

func NewArena(registry ports.NodeRegistryPort, logger *slog.Logger) *Arena {
	if logger == nil {
		logger = slog.Default()
	}

	return &Arena{
		registry:  registry,
		processes: make(map[string]*domain.Process),
		byID:      make(map[string]int),
		logger:    logger.With("component", "chain"),
	}
}

// Root starts a new pipeline with a process that has no inputs.
func (a *Arena) Root(proc *domain.Process) (Chain, error) {
	return a.appendAt(-1, proc)
}

// Chain returns the handle whose head is the element with the given id.
func (a *Arena) Chain(id string) (Chain, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	idx, ok := a.byID[id]
	if !ok {
		return Chain{}, fmt.Errorf("chain %s: %w", id, domain.ErrNotFound)
	}
	return Chain{arena: a, head: idx}, nil
}

func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.elements)
}

func (a *Arena) appendAt(parent int, proc *domain.Process) (Chain, error) {
	if proc == nil {
		return Chain{}, domain.NewChainIntegrityError("", "", domain.ErrInvalidInput, "process cannot be nil")
	}

	candidate := proc.Clone()
	if err := candidate.EnsureID(); err != nil {
		return Chain{}, &domain.ChainIntegrityError{Kind: domain.ErrInvalidInput, Reason: "cannot derive process id", Cause: err}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.processes[candidate.ID]; ok {
		if !sameContent(existing, candidate) {
			return Chain{}, domain.NewChainIntegrityError(candidate.ID, "", domain.ErrInvalidInput, "id already names a different process")
		}
		candidate = existing
	}

	members := a.membersLocked(parent)
	if err := a.validateLocked(candidate, members); err != nil {
		a.logger.Debug("append rejected", "process_id", candidate.ID, "type", candidate.Type, "error", err)
		return Chain{}, err
	}

	parentID := ""
	if parent >= 0 {
		parentID = a.elements[parent].fpl.ID
	}
	fpl := domain.NewFPL(candidate.ID, parentID)
	if idx, ok := a.byID[fpl.ID]; ok {
		return Chain{arena: a, head: idx}, nil
	}

	a.processes[candidate.ID] = candidate
	a.elements = append(a.elements, element{fpl: fpl, parent: parent})
	idx := len(a.elements) - 1
	a.byID[fpl.ID] = idx

	a.logger.Debug("chain element appended", "chain_id", fpl.ID, "process_id", candidate.ID, "type", candidate.Type)
	return Chain{arena: a, head: idx}, nil
}

// membersLocked maps the process ids reachable from head to their processes.
func (a *Arena) membersLocked(head int) map[string]*domain.Process {
	members := make(map[string]*domain.Process)
	for i := head; i >= 0; i = a.elements[i].parent {
		id := a.elements[i].fpl.ProcessID
		members[id] = a.processes[id]
	}
	return members
}

func (a *Arena) validateLocked(proc *domain.Process, members map[string]*domain.Process) error {
	node, err := a.registry.ProcessNode(proc.Type)
	if err != nil {
		return &domain.ChainIntegrityError{
			ProcessID: proc.ID,
			Kind:      domain.ErrTypeMismatch,
			Reason:    fmt.Sprintf("unknown process type %q", proc.Type),
			Cause:     err,
		}
	}

	for slotName := range proc.Inputs {
		if _, ok := node.Slot(slotName); !ok {
			return domain.NewChainIntegrityError(proc.ID, slotName, domain.ErrTypeMismatch, "%s has no input slot %q", node.Spec, slotName)
		}
	}

	for _, slot := range node.Inputs {
		refs, ok := proc.Inputs[slot.Name]
		if !ok || len(refs) == 0 {
			return domain.NewChainIntegrityError(proc.ID, slot.Name, domain.ErrTypeMismatch, "input slot is not connected")
		}
		if !slot.Multi && len(refs) != 1 {
			return domain.NewChainIntegrityError(proc.ID, slot.Name, domain.ErrTypeMismatch, "slot takes one input, got %d", len(refs))
		}

		for _, ref := range refs {
			if ref == proc.ID {
				return domain.NewChainIntegrityError(proc.ID, slot.Name, domain.ErrCycle, "process references itself")
			}
			antecedent, inChain := members[ref]
			if !inChain {
				if _, known := a.processes[ref]; known {
					return domain.NewChainIntegrityError(proc.ID, slot.Name, domain.ErrCycle, "input %s is not an antecedent in this chain", ref)
				}
				return domain.NewChainIntegrityError(proc.ID, slot.Name, domain.ErrDanglingReference, "unknown input %s", ref)
			}

			antecedentNode, err := a.registry.ProcessNode(antecedent.Type)
			if err != nil {
				return &domain.ChainIntegrityError{ProcessID: proc.ID, Slot: slot.Name, Kind: domain.ErrTypeMismatch, Reason: "antecedent has unknown type", Cause: err}
			}
			if !slot.AcceptsType(antecedentNode.Output.Spec) {
				return domain.NewChainIntegrityError(proc.ID, slot.Name, domain.ErrTypeMismatch,
					"slot accepts %v, input %s produces %s", slot.AcceptedSpecs(), ref, antecedentNode.Output.Spec)
			}
		}
	}

	if proc.HasData() {
		if _, err := node.Output.Codec.Decode(proc.Data); err != nil {
			return &domain.ChainIntegrityError{
				ProcessID: proc.ID,
				Kind:      domain.ErrTypeMismatch,
				Reason:    fmt.Sprintf("data does not match output type %s", node.Output.Spec),
				Cause:     err,
			}
		}
	}
	return nil
}

func sameContent(a, b *domain.Process) bool {
	if a.Type != b.Type || len(a.Inputs) != len(b.Inputs) {
		return false
	}
	for slot, refs := range a.Inputs {
		other, ok := b.Inputs[slot]
		if !ok || len(other) != len(refs) {
			return false
		}
		for i := range refs {
			if refs[i] != other[i] {
				return false
			}
		}
	}
	if a.HasData() != b.HasData() {
		return false
	}
	if !a.HasData() {
		return true
	}
	ac, errA := (&domain.Process{Type: a.Type, Data: a.Data}).ContentID()
	bc, errB := (&domain.Process{Type: b.Type, Data: b.Data}).ContentID()
	return errA == nil && errB == nil && ac == bc
}
