package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Pass is one resolution of a chain. Every resolve function runs at most
// once per pass, whether it succeeds or fails. Failures are only remembered
// for the lifetime of the pass; a new pass tries again.
type Pass struct {
	engine *Engine
	steps  []domain.Step
	procs  map[string]int
	dry    bool

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	settled map[string]outcome
	flights singleflight.Group

	logger *slog.Logger
}

func (p *Pass) Close() {
	p.cancel()
}

func (p *Pass) Steps() []domain.Step {
	return append([]domain.Step(nil), p.steps...)
}

func (p *Pass) process(id string) (*domain.Process, bool) {
	i, ok := p.procs[id]
	if !ok {
		return nil, false
	}
	return p.steps[i].Process, true
}

type outcome struct {
	value any
	err   error
}

func (p *Pass) lookupSettled(id string) (outcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.settled[id]
	return o, ok
}

func (p *Pass) settle(id string, v any) {
	p.mu.Lock()
	p.settled[id] = outcome{value: v}
	p.mu.Unlock()
}

// settleFailure remembers err for the rest of the pass unless the pass
// itself was cancelled.
func (p *Pass) settleFailure(id string, err error) {
	if p.ctx.Err() != nil {
		return
	}
	p.mu.Lock()
	if _, ok := p.settled[id]; !ok {
		p.settled[id] = outcome{err: err}
	}
	p.mu.Unlock()
}

// DecodeCompleteInputs returns the decoded value of every declared slot of
// proc. Single slots map to one value, multi slots to a []any in reference
// order.
func (p *Pass) DecodeCompleteInputs(ctx context.Context, proc *domain.Process) (map[string]any, error) {
	node, err := p.engine.registry.ProcessNode(proc.Type)
	if err != nil {
		return nil, err
	}

	values := make(map[string][]any, len(node.Inputs))
	g, gctx := errgroup.WithContext(ctx)
	for _, slot := range node.Inputs {
		refs := proc.Inputs[slot.Name]
		slotValues := make([]any, len(refs))
		values[slot.Name] = slotValues

		for i, ref := range refs {
			g.Go(func() error {
				v, err := p.decodeInput(gctx, proc, slot, ref)
				if err != nil {
					return err
				}
				slotValues[i] = v
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inputs := make(map[string]any, len(node.Inputs))
	for _, slot := range node.Inputs {
		vs := values[slot.Name]
		switch {
		case slot.Multi:
			inputs[slot.Name] = vs
		case len(vs) == 1:
			inputs[slot.Name] = vs[0]
		default:
			return nil, domain.NewChainIntegrityError(proc.ID, slot.Name, domain.ErrTypeMismatch, "slot takes one input, got %d", len(vs))
		}
	}
	return inputs, nil
}

func (p *Pass) decodeInput(ctx context.Context, proc *domain.Process, slot ports.InputSlot, ref string) (any, error) {
	antecedent, ok := p.process(ref)
	if !ok {
		return nil, &domain.AntecedentError{ProcessID: proc.ID, Slot: slot.Name, AntecedentID: ref}
	}

	v, err := p.DecodeCompleteOutput(ctx, antecedent)
	if err != nil {
		return nil, err
	}

	var first error
	for _, accepted := range slot.Accepts {
		err := accepted.Codec.Validate(v)
		if err == nil {
			return v, nil
		}
		if first == nil {
			first = err
		}
	}

	var ce *domain.CodecError
	if errors.As(first, &ce) {
		return nil, ce.At(proc.ID, slot.Name)
	}
	return nil, &domain.CodecError{ProcessID: proc.ID, Slot: slot.Name, Path: "$", Expected: fmt.Sprint(slot.AcceptedSpecs()), Kind: domain.ErrCodec, Cause: first}
}

// DecodeCompleteOutput returns the validated output of proc, computing it
// and its antecedents as needed. A caller giving up through ctx does not
// cancel a computation other callers share; only the pass context does.
func (p *Pass) DecodeCompleteOutput(ctx context.Context, proc *domain.Process) (any, error) {
	if o, ok := p.lookupSettled(proc.ID); ok {
		if o.err != nil {
			return nil, o.err
		}
		p.engine.opts.Metrics.CacheHit("pass")
		return o.value, nil
	}

	ch := p.flights.DoChan(proc.ID, func() (any, error) {
		if o, ok := p.lookupSettled(proc.ID); ok {
			return o.value, o.err
		}
		v, err := p.compute(proc)
		if err != nil {
			p.settleFailure(proc.ID, err)
		}
		return v, err
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pass) compute(proc *domain.Process) (any, error) {
	ctx := p.ctx
	fail := func(err error) (any, error) {
		return nil, domain.NewResolutionError(proc.ID, proc.Type, err)
	}

	node, err := p.engine.registry.ProcessNode(proc.Type)
	if err != nil {
		return fail(err)
	}
	codec := node.Output.Codec
	cacheKey := domain.ValueCacheKey(proc.ID, codec.Version())

	if v, ok := p.fromValueCache(ctx, cacheKey, codec); ok {
		p.settle(proc.ID, v)
		return v, nil
	}

	if !proc.HasData() {
		if p.dry {
			return fail(domain.ErrNotResolved)
		}
		if node.Resolve == nil {
			return fail(domain.ErrNoResolver)
		}
	}

	inputs, err := p.DecodeCompleteInputs(ctx, proc)
	if err != nil {
		return fail(err)
	}

	if proc.HasData() {
		v, err := codec.Decode(proc.Data)
		if err != nil {
			var ce *domain.CodecError
			if errors.As(err, &ce) {
				err = ce.AsOutputMismatch(proc.ID)
			}
			return fail(err)
		}
		p.settle(proc.ID, v)
		return v, nil
	}

	result, err := p.runResolve(ctx, proc, node, inputs)
	if err != nil {
		return fail(err)
	}

	raw, err := codec.Encode(result)
	if err != nil {
		var ce *domain.CodecError
		if errors.As(err, &ce) {
			err = ce.AsOutputMismatch(proc.ID)
		}
		p.logger.Warn("resolve output rejected by codec", "process_id", proc.ID, "type", proc.Type, "error", err)
		return fail(err)
	}
	v, err := codec.Decode(raw)
	if err != nil {
		return fail(err)
	}

	p.settle(proc.ID, v)
	if cache := p.engine.opts.ValueCache; cache != nil {
		if err := cache.Put(ctx, cacheKey, raw); err != nil {
			p.logger.Warn("failed to store value in cache", "key", cacheKey, "error", err)
		}
	}
	return v, nil
}

func (p *Pass) fromValueCache(ctx context.Context, key string, codec domain.Codec) (any, bool) {
	cache := p.engine.opts.ValueCache
	if cache == nil {
		return nil, false
	}

	raw, ok, err := cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn("value cache lookup failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	v, err := codec.Decode(raw)
	if err != nil {
		p.logger.Warn("discarding cached value that no longer decodes", "key", key, "error", err)
		return nil, false
	}
	p.engine.opts.Metrics.CacheHit("value_cache")
	return v, true
}

func (p *Pass) runResolve(ctx context.Context, proc *domain.Process, node *ports.ProcessNode, inputs map[string]any) (result any, err error) {
	e := p.engine

	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer e.sem.Release(1)
	}

	if e.opts.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.ResolveTimeout)
		defer cancel()
	}

	ctx, span := e.opts.Tracer.Start(ctx, "playbook.resolve", map[string]any{
		"process.id":   proc.ID,
		"process.type": proc.Type,
	})
	start := time.Now()
	defer func() {
		duration := time.Since(start)
		e.opts.Metrics.ObserveResolve(proc.Type, duration, err)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	logger := p.logger.With("process_id", proc.ID, "type", proc.Type)
	rc := ports.ResolveContext{
		ProcessID: proc.ID,
		Inputs:    inputs,
		Compute:   e.opts.Compute,
		Notify:    p.notifyFunc(proc.ID),
		Logger:    logger,
	}

	logger.Debug("running resolve function")
	result, err = executeWithRecovery(ctx, proc, node, rc, logger)
	if err != nil {
		logger.Debug("resolve function failed", "error", err, "duration", time.Since(start))
		return nil, err
	}
	logger.Debug("resolve function completed", "duration", time.Since(start))
	return result, nil
}

func (p *Pass) notifyFunc(processID string) func(ports.Notification) {
	notifier := p.engine.opts.Notifier
	return func(n ports.Notification) {
		if notifier == nil {
			return
		}
		notifier.Notify(p.ctx, processID, n)
	}
}

// Run resolves every step of the chain. Independent branches keep going
// when one fails; the returned map holds every output that resolved and
// the error joins the failures in step order.
func (p *Pass) Run(ctx context.Context) (map[string]any, error) {
	type failure struct {
		index int
		err   error
	}

	var (
		mu       sync.Mutex
		outputs  = make(map[string]any, len(p.steps))
		failures []failure
		wg       sync.WaitGroup
	)

	for _, step := range p.steps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := p.DecodeCompleteOutput(ctx, step.Process)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, failure{index: step.Index, err: err})
				return
			}
			outputs[step.Process.ID] = v
		}()
	}
	wg.Wait()

	if len(failures) == 0 {
		return outputs, nil
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].index < failures[j].index })
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f.err
	}
	return outputs, errors.Join(errs...)
}
