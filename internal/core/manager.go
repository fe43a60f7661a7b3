// Package core wires the configured adapters into a running playbook
// manager.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/eleven-am/playbook/internal/adapters/bco"
	"github.com/eleven-am/playbook/internal/adapters/chain"
	"github.com/eleven-am/playbook/internal/adapters/compute"
	"github.com/eleven-am/playbook/internal/adapters/engine"
	grpcadapter "github.com/eleven-am/playbook/internal/adapters/grpc"
	"github.com/eleven-am/playbook/internal/adapters/loader"
	"github.com/eleven-am/playbook/internal/adapters/memory"
	"github.com/eleven-am/playbook/internal/adapters/metrics"
	"github.com/eleven-am/playbook/internal/adapters/node_registry"
	"github.com/eleven-am/playbook/internal/adapters/sqlstore"
	"github.com/eleven-am/playbook/internal/adapters/storage"
	"github.com/eleven-am/playbook/internal/adapters/tracing"
	"github.com/eleven-am/playbook/internal/adapters/valuecache"
	"github.com/eleven-am/playbook/internal/catalog"
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
)

// bcoLister is implemented by every bundled store.
type bcoLister interface {
	ListBCOs(ctx context.Context) ([]string, error)
}

type Manager struct {
	config   *domain.Config
	logger   *slog.Logger
	registry *node_registry.Registry
	arena    *chain.Arena
	store    ports.StoragePort
	engine   *engine.Engine
	exporter *bco.Exporter
	tracing  *tracing.Provider
	metrics  *prometheus.Registry
	compute  ports.ComputePort

	closers []func() error
}

type options struct {
	registry       *node_registry.Registry
	routines       *compute.Routines
	notifier       ports.Notifier
	metrics        *prometheus.Registry
	tracerProvider []sdktrace.TracerProviderOption
}

type Option func(*options)

// WithRegistry replaces the built-in catalog.
func WithRegistry(registry *node_registry.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithRoutines replaces the routines run by the local compute mode.
func WithRoutines(routines *compute.Routines) Option {
	return func(o *options) { o.routines = routines }
}

func WithNotifier(notifier ports.Notifier) Option {
	return func(o *options) { o.notifier = notifier }
}

// WithMetricsRegistry registers the resolution metrics on registry instead
// of a private one.
func WithMetricsRegistry(registry *prometheus.Registry) Option {
	return func(o *options) { o.metrics = registry }
}

func WithTracerProviderOptions(opts ...sdktrace.TracerProviderOption) Option {
	return func(o *options) { o.tracerProvider = append(o.tracerProvider, opts...) }
}

func New(config *domain.Config, opts ...Option) (m *Manager, err error) {
	if config == nil {
		return nil, domain.NewConfigError("config", domain.ErrInvalidInput)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger := config.Logger.With("component", "playbook")
	m = &Manager{config: config, logger: logger}
	defer func() {
		if err != nil {
			m.Close()
			m = nil
		}
	}()

	m.registry = o.registry
	if m.registry == nil {
		if m.registry, err = catalog.Build(config.Logger); err != nil {
			return nil, err
		}
	}
	m.arena = chain.NewArena(m.registry, config.Logger)

	if m.store, err = openStore(config); err != nil {
		return nil, err
	}
	m.closers = append(m.closers, m.store.Close)

	valueCache, err := m.openValueCache()
	if err != nil {
		return nil, err
	}

	if m.compute, err = m.openCompute(o.routines); err != nil {
		return nil, err
	}

	m.tracing, err = tracing.NewProvider(config.Tracing, config.Logger, o.tracerProvider...)
	if err != nil {
		return nil, err
	}
	m.closers = append(m.closers, func() error {
		return m.tracing.Shutdown(context.Background())
	})

	var recorder ports.MetricsRecorder
	if config.Metrics.Enabled {
		m.metrics = o.metrics
		if m.metrics == nil {
			m.metrics = prometheus.NewRegistry()
		}
		recorder = metrics.NewRecorder(m.metrics)
	}

	notifier := o.notifier
	if notifier == nil {
		notifier = compute.NewLogNotifier(config.Logger)
	}

	m.engine = engine.New(m.registry, engine.Options{
		Compute:               m.compute,
		Notifier:              notifier,
		ValueCache:            valueCache,
		Tracer:                m.tracing.Tracer(),
		Metrics:               recorder,
		MaxConcurrentResolves: config.Engine.MaxConcurrentResolves,
		ResolveTimeout:        config.Engine.ResolveTimeout,
		Logger:                config.Logger,
	})
	m.exporter = bco.NewExporter(m.registry, m.engine, config.Export, config.Logger)

	logger.Info("playbook manager ready",
		"storage", config.Storage.Backend,
		"value_cache", config.ValueCache.Backend,
		"compute", config.Compute.Mode,
		"nodes", m.registry.Len(),
	)
	return m, nil
}

func openStore(config *domain.Config) (ports.StoragePort, error) {
	prefix := config.Storage.ObjectIDPrefix
	switch config.Storage.Backend {
	case domain.StorageMemory:
		return memory.NewStore(prefix, config.Logger), nil
	case domain.StorageSQLite:
		path := config.StoragePath()
		if config.Storage.InMemory {
			path = ""
		}
		return sqlstore.Open(path, prefix, config.Logger)
	default:
		return storage.Open(config.StoragePath(), config.Storage.InMemory, prefix, config.Logger)
	}
}

func (m *Manager) openValueCache() (ports.ValueCache, error) {
	cfg := m.config.ValueCache
	switch cfg.Backend {
	case domain.ValueCacheMemory:
		return valuecache.NewMemory(cfg.TTL, cfg.CleanupInterval, m.config.Logger), nil
	case domain.ValueCacheStorage:
		badgerStore, ok := m.store.(*storage.Store)
		if !ok {
			return nil, domain.NewConfigError("value_cache.backend",
				fmt.Errorf("%w: the storage value cache needs the badger backend", domain.ErrInvalidInput))
		}
		return badgerStore.ValueCache(cfg.TTL), nil
	default:
		return nil, nil
	}
}

func (m *Manager) openCompute(routines *compute.Routines) (ports.ComputePort, error) {
	cfg := m.config.Compute
	if routines == nil {
		routines = compute.DefaultRoutines()
	}

	switch cfg.Mode {
	case domain.ComputeNone:
		return nil, nil
	case domain.ComputeProcess:
		return compute.NewGuarded(compute.NewProcess(cfg.Command, m.config.Logger), cfg, m.config.Logger), nil
	case domain.ComputeGRPC:
		client, err := grpcadapter.NewClient(cfg.Address, grpcadapter.DefaultClientConfig(), m.config.Logger)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, client.Close)
		return compute.NewGuarded(client, cfg, m.config.Logger), nil
	default:
		return compute.NewLocal(routines, m.config.Logger), nil
	}
}

func (m *Manager) Config() *domain.Config {
	return m.config
}

func (m *Manager) Registry() *node_registry.Registry {
	return m.registry
}

func (m *Manager) Engine() *engine.Engine {
	return m.engine
}

func (m *Manager) Store() ports.StoragePort {
	return m.store
}

// MetricsRegistry is nil when metrics are disabled.
func (m *Manager) MetricsRegistry() *prometheus.Registry {
	return m.metrics
}

// Root starts a new chain with proc.
func (m *Manager) Root(proc *domain.Process) (chain.Chain, error) {
	return m.arena.Root(proc)
}

// Chain returns the chain whose head element is id, loading it from the
// store when it is not in memory yet.
func (m *Manager) Chain(ctx context.Context, id string) (chain.Chain, error) {
	if c, err := m.arena.Chain(id); err == nil {
		return c, nil
	}
	return chain.Load(ctx, m.arena, m.store, id)
}

func (m *Manager) Save(ctx context.Context, c chain.Chain) error {
	if c.IsZero() {
		return fmt.Errorf("save chain: %w", domain.ErrInvalidInput)
	}
	if err := chain.Save(ctx, m.store, c); err != nil {
		return err
	}
	m.logger.Debug("chain saved", "chain_id", c.ID(), "length", c.Len())
	return nil
}

// LoadPlaybook builds the chain described by pb and persists it.
func (m *Manager) LoadPlaybook(ctx context.Context, pb *loader.Playbook) (chain.Chain, map[string]string, error) {
	c, ids, err := pb.Build(m.arena)
	if err != nil {
		return chain.Chain{}, nil, err
	}
	if err := m.Save(ctx, c); err != nil {
		return chain.Chain{}, nil, err
	}
	return c, ids, nil
}

// Resolve runs every step of c in a fresh pass. Outputs are keyed by
// process id; failed steps are absent and reported in the joined error.
func (m *Manager) Resolve(ctx context.Context, c chain.Chain, opts engine.PassOptions) (map[string]any, error) {
	pass := m.engine.NewPass(ctx, c, opts)
	defer pass.Close()
	return pass.Run(ctx)
}

// Output resolves a single process of c.
func (m *Manager) Output(ctx context.Context, c chain.Chain, processID string) (any, error) {
	proc, ok := c.Lookup(processID)
	if !ok {
		return nil, fmt.Errorf("process %s: %w", processID, domain.ErrNotFound)
	}
	pass := m.engine.NewPass(ctx, c, engine.PassOptions{})
	defer pass.Close()
	return pass.DecodeCompleteOutput(ctx, proc)
}

func (m *Manager) Export(ctx context.Context, c chain.Chain, opts bco.ExportOptions) (*domain.BCO, error) {
	return m.exporter.Export(ctx, c, opts)
}

// Publish stores doc and returns its object id.
func (m *Manager) Publish(ctx context.Context, doc *domain.BCO) (string, error) {
	return m.store.PutBCO(ctx, doc)
}

func (m *Manager) GetBCO(ctx context.Context, objectID string) (*domain.BCO, error) {
	return m.store.GetBCO(ctx, objectID)
}

func (m *Manager) ListBCOs(ctx context.Context) ([]string, error) {
	lister, ok := m.store.(bcoLister)
	if !ok {
		return nil, fmt.Errorf("list bcos: %w", errors.ErrUnsupported)
	}
	return lister.ListBCOs(ctx)
}

// Close releases every adapter in reverse order of creation.
func (m *Manager) Close() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}
