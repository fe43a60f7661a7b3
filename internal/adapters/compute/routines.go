// Package compute runs named routines on behalf of resolve functions, either
// in-process, in a worker subprocess or on a remote gRPC worker.
package compute

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownRoutine   = errors.New("unknown compute routine")
	ErrDuplicateRoutine = errors.New("compute routine already registered")
)

// Call carries the arguments of one routine invocation. Notify is never nil.
type Call struct {
	Args   []any
	Kwargs map[string]any
	Notify func(message string)
}

// Arg returns the i-th positional argument, falling back to the keyword
// argument of the same name.
func (c Call) Arg(i int, name string) (any, bool) {
	if i < len(c.Args) {
		return c.Args[i], true
	}
	v, ok := c.Kwargs[name]
	return v, ok
}

type Routine func(ctx context.Context, call Call) (any, error)

type Routines struct {
	mu       sync.RWMutex
	routines map[string]Routine
}

func NewRoutines() *Routines {
	return &Routines{routines: make(map[string]Routine)}
}

// DefaultRoutines returns the routines the catalog relies on.
func DefaultRoutines() *Routines {
	r := NewRoutines()
	_ = r.Register(MetadataMatrixRoutine, MetadataMatrix)
	return r
}

func (r *Routines) Register(name string, fn Routine) error {
	if name == "" || fn == nil {
		return fmt.Errorf("compute: routine name and function are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routines[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRoutine, name)
	}
	r.routines[name] = fn
	return nil
}

func (r *Routines) Lookup(name string) (Routine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.routines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoutine, name)
	}
	return fn, nil
}

func (r *Routines) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.routines))
	for name := range r.routines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
