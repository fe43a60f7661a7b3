// Package engine resolves process chains: it decodes inputs, runs resolve
// functions at most once per pass and validates every output through its
// codec.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/eleven-am/playbook/internal/adapters/chain"
	"github.com/eleven-am/playbook/internal/ports"
	"golang.org/x/sync/semaphore"
)

type Options struct {
	Compute    ports.ComputePort
	Notifier   ports.Notifier
	ValueCache ports.ValueCache
	Tracer     ports.Tracer
	Metrics    ports.MetricsRecorder

	// MaxConcurrentResolves caps resolve function executions across all
	// passes of the engine. Zero means unlimited.
	MaxConcurrentResolves int
	ResolveTimeout        time.Duration
	Logger                *slog.Logger
}

type Engine struct {
	registry ports.NodeRegistryPort
	opts     Options
	sem      *semaphore.Weighted
	logger   *slog.Logger
}

func New(registry ports.NodeRegistryPort, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Compute == nil {
		opts.Compute = unavailableCompute{}
	}
	if opts.Tracer == nil {
		opts.Tracer = noopTracer{}
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}

	e := &Engine{
		registry: registry,
		opts:     opts,
		logger:   opts.Logger.With("component", "engine"),
	}
	if opts.MaxConcurrentResolves > 0 {
		e.sem = semaphore.NewWeighted(int64(opts.MaxConcurrentResolves))
	}
	return e
}

func (e *Engine) Registry() ports.NodeRegistryPort {
	return e.registry
}

func (e *Engine) Tracer() ports.Tracer {
	return e.opts.Tracer
}

func (e *Engine) Metrics() ports.MetricsRecorder {
	return e.opts.Metrics
}

type PassOptions struct {
	// Dry passes never run resolve functions; outputs come only from
	// literal data or the cross-run value cache.
	Dry bool
}

// NewPass starts a resolution pass over c. ctx bounds every computation the
// pass starts; Close cancels them.
func (e *Engine) NewPass(ctx context.Context, c chain.Chain, opts PassOptions) *Pass {
	passCtx, cancel := context.WithCancel(ctx)

	steps := c.Resolve()
	p := &Pass{
		engine:  e,
		steps:   steps,
		procs:   make(map[string]int, len(steps)),
		dry:     opts.Dry,
		ctx:     passCtx,
		cancel:  cancel,
		settled: make(map[string]outcome, len(steps)),
		logger:  e.logger.With("chain_id", c.ID(), "dry", opts.Dry),
	}
	for i, step := range steps {
		p.procs[step.Process.ID] = i
	}
	return p
}

var errNoCompute = errors.New("no compute collaborator configured")

type unavailableCompute struct{}

func (unavailableCompute) Compute(context.Context, ports.ComputeRequest, func(ports.Notification)) (json.RawMessage, error) {
	return nil, errNoCompute
}

type noopSpan struct{}

func (noopSpan) SetAttribute(string, any) {}
func (noopSpan) RecordError(error)        {}
func (noopSpan) End()                     {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string, _ map[string]any) (context.Context, ports.Span) {
	return ctx, noopSpan{}
}

type noopMetrics struct{}

func (noopMetrics) ObserveResolve(string, time.Duration, error) {}
func (noopMetrics) CacheHit(string)                             {}
func (noopMetrics) ObserveExport(time.Duration, error)          {}
