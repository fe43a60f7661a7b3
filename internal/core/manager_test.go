package core

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/eleven-am/playbook/internal/adapters/bco"
	"github.com/eleven-am/playbook/internal/adapters/chain"
	"github.com/eleven-am/playbook/internal/adapters/compute"
	"github.com/eleven-am/playbook/internal/adapters/engine"
	grpcadapter "github.com/eleven-am/playbook/internal/adapters/grpc"
	"github.com/eleven-am/playbook/internal/adapters/loader"
	"github.com/eleven-am/playbook/internal/catalog"
	"github.com/eleven-am/playbook/internal/domain"
)

const genePlaybook = `
steps:
  - id: gene
    type: Input[Gene]
    data: ACE2
  - id: set
    type: GeneSetFromTerm
    inputs:
      gene: gene
  - id: more
    type: Input[Set[Gene]]
    data:
      set: [TP53, ACE2]
  - type: GeneSetUnion
    inputs:
      sets: [set, more]
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig() *domain.Config {
	return domain.NewConfigFromSimple("", testLogger()).
		WithStorage(domain.StorageMemory, "")
}

func newManager(t *testing.T, config *domain.Config, opts ...Option) *Manager {
	t.Helper()
	m, err := New(config, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func loadGenes(t *testing.T, m *Manager) (string, map[string]string) {
	t.Helper()
	pb, err := loader.Load(strings.NewReader(genePlaybook))
	require.NoError(t, err)
	c, ids, err := m.LoadPlaybook(context.Background(), pb)
	require.NoError(t, err)
	return c.ID(), ids
}

func TestManager_ResolveAndExport(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, memoryConfig())

	chainID, ids := loadGenes(t, m)
	c, err := m.Chain(ctx, chainID)
	require.NoError(t, err)

	outputs, err := m.Resolve(ctx, c, engine.PassOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"set": []any{"ACE2", "TP53"}}, outputs[c.Head().ID])
	assert.Equal(t, map[string]any{"set": []any{"ACE2"}}, outputs[ids["set"]])

	out, err := m.Output(ctx, c, ids["gene"])
	require.NoError(t, err)
	assert.Equal(t, "ACE2", out)

	_, err = m.Output(ctx, c, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	doc, err := m.Export(ctx, c, bco.ExportOptions{Execute: true})
	require.NoError(t, err)
	assert.Contains(t, doc.UsabilityDomain[0], "The workflow starts with selecting ACE2 as the search term.")

	objectID, err := m.Publish(ctx, doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(objectID, "urn:playbook:bco:"))

	stored, err := m.GetBCO(ctx, objectID)
	require.NoError(t, err)
	assert.Equal(t, doc.ETag, stored.ETag)

	listed, err := m.ListBCOs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{objectID}, listed)
}

func TestManager_ReopensPersistedChain(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []domain.StorageBackend{domain.StorageBadger, domain.StorageSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			dir := t.TempDir()
			config := domain.NewConfigFromSimple(dir, testLogger()).WithStorage(backend, "")

			first, err := New(config)
			require.NoError(t, err)
			chainID, _ := loadGenes(t, first)
			require.NoError(t, first.Close())

			second := newManager(t, domain.NewConfigFromSimple(dir, testLogger()).WithStorage(backend, ""))
			c, err := second.Chain(ctx, chainID)
			require.NoError(t, err)
			assert.Equal(t, 4, c.Len())

			outputs, err := second.Resolve(ctx, c, engine.PassOptions{})
			require.NoError(t, err)
			assert.Len(t, outputs, 4)
		})
	}
}

func TestManager_StorageValueCacheSkipsRecomputation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	config := func() *domain.Config {
		return domain.NewConfigFromSimple(dir, testLogger()).
			WithValueCache(domain.ValueCacheStorage, 0)
	}

	first, err := New(config())
	require.NoError(t, err)
	chainID, _ := loadGenes(t, first)
	c, err := first.Chain(ctx, chainID)
	require.NoError(t, err)
	_, err = first.Resolve(ctx, c, engine.PassOptions{})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newManager(t, config())
	c, err = second.Chain(ctx, chainID)
	require.NoError(t, err)

	outputs, err := second.Resolve(ctx, c, engine.PassOptions{Dry: true})
	require.NoError(t, err, "a dry pass succeeds only from cached values")
	assert.Equal(t, map[string]any{"set": []any{"ACE2", "TP53"}}, outputs[c.Head().ID])
	hits, err := testutil.GatherAndCount(second.MetricsRegistry(), "playbook_cache_hits_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, hits, 1)
}

func TestManager_ConfigErrors(t *testing.T) {
	_, err := New(nil)
	assert.True(t, domain.IsInvalidConfig(err))

	bad := memoryConfig()
	bad.Engine.MaxConcurrentResolves = 0
	_, err = New(bad)
	assert.True(t, domain.IsInvalidConfig(err))

	storageCache := memoryConfig().WithValueCache(domain.ValueCacheStorage, 0)
	_, err = New(storageCache)
	assert.True(t, domain.IsInvalidConfig(err))
}

func TestManager_NoComputeMode(t *testing.T) {
	ctx := context.Background()
	config := memoryConfig()
	config.Compute.Mode = domain.ComputeNone
	m := newManager(t, config)

	path := filepath.Join(t.TempDir(), "meta.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,class\na,x\n"), 0o644))

	c := fileChain(t, m, path)
	_, err := m.Resolve(ctx, c, engine.PassOptions{})
	require.Error(t, err)
	assert.Equal(t, c.Head().ID, domain.FailedProcessID(err))
}

func TestManager_GRPCCompute(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := grpcadapter.NewServer(compute.DefaultRoutines(), grpcadapter.ServerConfig{Address: "127.0.0.1:0"}, testLogger())
	require.NoError(t, worker.Start(ctx))
	defer worker.Stop()

	config := memoryConfig().WithGRPCCompute(worker.Address())
	m := newManager(t, config)

	path := filepath.Join(t.TempDir(), "meta.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,class\na,control\nb,treated\n"), 0o644))

	c := fileChain(t, m, path)
	out, err := m.Output(ctx, c, c.Head().ID)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out.(map[string]any)["index"])
}

func TestManager_TracesResolutions(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	config := memoryConfig()
	config.Tracing = domain.TracingConfig{Enabled: true, Exporter: "none", SampleRate: 1}

	m := newManager(t, config, WithTracerProviderOptions(sdktrace.WithSpanProcessor(recorder)))
	chainID, _ := loadGenes(t, m)
	c, err := m.Chain(context.Background(), chainID)
	require.NoError(t, err)

	_, err = m.Export(context.Background(), c, bco.ExportOptions{Execute: true})
	require.NoError(t, err)

	names := map[string]bool{}
	for _, s := range recorder.Ended() {
		names[s.Name()] = true
	}
	assert.True(t, names["playbook.export"])
}

func fileChain(t *testing.T, m *Manager, path string) chain.Chain {
	t.Helper()
	pb := &loader.Playbook{Steps: []loader.Step{
		{ID: "file", Type: catalog.InputFileSpec, Data: map[string]any{"url": path, "filename": filepath.Base(path)}},
		{Type: catalog.MetadataMatrixFromFileSpec, Inputs: map[string]loader.Refs{"file": {"file"}}},
	}}
	c, _, err := m.LoadPlaybook(context.Background(), pb)
	require.NoError(t, err)
	return c
}
