package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/playbook/internal/adapters/chain"
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
	"github.com/eleven-am/playbook/internal/ports/mocks"
	"github.com/eleven-am/playbook/internal/testutil/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type harness struct {
	cat   *fixtures.Catalog
	arena *chain.Arena
	c     chain.Chain
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat := fixtures.NewCatalog()
	return &harness{cat: cat, arena: chain.NewArena(cat.Registry, fixtures.Logger())}
}

func (h *harness) add(t *testing.T, processType string, inputs map[string][]string, data any) *domain.Process {
	t.Helper()
	proc := fixtures.MustProcess(processType, inputs, data)
	var err error
	if h.c.IsZero() {
		h.c, err = h.arena.Root(proc)
	} else {
		h.c, err = h.c.Append(proc)
	}
	require.NoError(t, err)
	return proc
}

func (h *harness) engine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = fixtures.Logger()
	}
	return New(h.cat.Registry, opts)
}

type mapCache struct {
	mu     sync.Mutex
	values map[string]json.RawMessage
}

func newMapCache() *mapCache {
	return &mapCache{values: make(map[string]json.RawMessage)}
}

func (m *mapCache) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapCache) Put(_ context.Context, key string, raw json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = raw
	return nil
}

func TestPass_LinearChain(t *testing.T) {
	h := newHarness(t)
	input := h.add(t, fixtures.InputGene, nil, "ACE2")
	expand := h.add(t, fixtures.GeneSetFromGene, map[string][]string{"gene": {input.ID}}, nil)
	count := h.add(t, fixtures.CountGenes, map[string][]string{"set": {expand.ID}}, nil)

	pass := h.engine(Options{}).NewPass(context.Background(), h.c, PassOptions{})
	defer pass.Close()

	outputs, err := pass.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ACE2", outputs[input.ID])
	assert.Equal(t, map[string]any{"set": []any{"ACE2"}}, outputs[expand.ID])
	assert.Equal(t, float64(1), outputs[count.ID])

	inputs, err := pass.DecodeCompleteInputs(context.Background(), count)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"set": map[string]any{"set": []any{"ACE2"}}}, inputs)
}

func TestPass_SharedAntecedentResolvesOnce(t *testing.T) {
	h := newHarness(t)
	input := h.add(t, fixtures.InputGene, nil, "ACE2")
	expand := h.add(t, fixtures.GeneSetFromGene, map[string][]string{"gene": {input.ID}}, nil)
	union := h.add(t, fixtures.GeneSetUnion, map[string][]string{"sets": {expand.ID, expand.ID}}, nil)
	h.add(t, fixtures.CountGenes, map[string][]string{"set": {union.ID}}, nil)
	h.add(t, fixtures.CountGenes, map[string][]string{"set": {expand.ID}}, nil)

	pass := h.engine(Options{MaxConcurrentResolves: 4}).NewPass(context.Background(), h.c, PassOptions{})
	defer pass.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pass.DecodeCompleteOutput(context.Background(), union)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := pass.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), h.cat.Calls(fixtures.GeneSetFromGene))
	assert.Equal(t, int64(1), h.cat.Calls(fixtures.GeneSetUnion))
	assert.Equal(t, int64(2), h.cat.Calls(fixtures.CountGenes))

	inputs, err := pass.DecodeCompleteInputs(context.Background(), union)
	require.NoError(t, err)
	assert.Len(t, inputs["sets"], 2)
}

func TestPass_FailureIsolation(t *testing.T) {
	h := newHarness(t)
	input := h.add(t, fixtures.InputGene, nil, "ACE2")
	failing := h.add(t, fixtures.Failing, map[string][]string{"gene": {input.ID}}, nil)
	expand := h.add(t, fixtures.GeneSetFromGene, map[string][]string{"gene": {input.ID}}, nil)
	count := h.add(t, fixtures.CountGenes, map[string][]string{"set": {expand.ID}}, nil)
	union := h.add(t, fixtures.GeneSetUnion, map[string][]string{"sets": {expand.ID, failing.ID}}, nil)

	pass := h.engine(Options{}).NewPass(context.Background(), h.c, PassOptions{})
	defer pass.Close()

	outputs, err := pass.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fixtures.ErrInjected)

	assert.Contains(t, outputs, expand.ID)
	assert.Contains(t, outputs, count.ID)
	assert.NotContains(t, outputs, failing.ID)
	assert.NotContains(t, outputs, union.ID)

	_, err = pass.DecodeCompleteOutput(context.Background(), union)
	require.Error(t, err)

	var re *domain.ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, union.ID, re.ProcessID)

	var cause *domain.ResolutionError
	require.True(t, errors.As(re.Cause, &cause))
	assert.Equal(t, failing.ID, cause.ProcessID)
	assert.Equal(t, failing.ID, domain.FailedProcessID(err))
}

func TestPass_FailuresRetryInNewPass(t *testing.T) {
	h := newHarness(t)
	input := h.add(t, fixtures.InputGene, nil, "ACE2")
	failing := h.add(t, fixtures.Failing, map[string][]string{"gene": {input.ID}}, nil)
	eng := h.engine(Options{})

	pass := eng.NewPass(context.Background(), h.c, PassOptions{})
	_, first := pass.DecodeCompleteOutput(context.Background(), failing)
	require.Error(t, first)
	_, again := pass.DecodeCompleteOutput(context.Background(), failing)
	require.Error(t, again)
	assert.Same(t, first, again)
	assert.Equal(t, int64(1), h.cat.Calls(fixtures.Failing))
	pass.Close()

	next := eng.NewPass(context.Background(), h.c, PassOptions{})
	defer next.Close()
	_, err := next.DecodeCompleteOutput(context.Background(), failing)
	require.Error(t, err)
	assert.Equal(t, int64(2), h.cat.Calls(fixtures.Failing))
}

func TestPass_FailedSharedAntecedentRunsOncePerPass(t *testing.T) {
	h := newHarness(t)
	input := h.add(t, fixtures.InputGene, nil, "ACE2")
	failing := h.add(t, fixtures.Failing, map[string][]string{"gene": {input.ID}}, nil)
	count := h.add(t, fixtures.CountGenes, map[string][]string{"set": {failing.ID}}, nil)
	union := h.add(t, fixtures.GeneSetUnion, map[string][]string{"sets": {failing.ID, failing.ID}}, nil)
	eng := h.engine(Options{MaxConcurrentResolves: 4})

	for run := int64(1); run <= 3; run++ {
		pass := eng.NewPass(context.Background(), h.c, PassOptions{})
		outputs, err := pass.Run(context.Background())
		pass.Close()

		require.Error(t, err)
		assert.ErrorIs(t, err, fixtures.ErrInjected)
		assert.NotContains(t, outputs, count.ID)
		assert.NotContains(t, outputs, union.ID)
		assert.Equal(t, run, h.cat.Calls(fixtures.Failing))
	}
	assert.Zero(t, h.cat.Calls(fixtures.CountGenes))
	assert.Zero(t, h.cat.Calls(fixtures.GeneSetUnion))
}

func TestPass_OutputTypeMismatch(t *testing.T) {
	h := newHarness(t)
	input := h.add(t, fixtures.InputGene, nil, "ACE2")
	wrong := h.add(t, fixtures.WrongShape, map[string][]string{"gene": {input.ID}}, nil)

	pass := h.engine(Options{}).NewPass(context.Background(), h.c, PassOptions{})
	defer pass.Close()

	_, err := pass.DecodeCompleteOutput(context.Background(), wrong)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOutputTypeMismatch)

	var ce *domain.CodecError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "$.set[1]", ce.Path)
	assert.Equal(t, wrong.ID, ce.ProcessID)
}

func TestPass_PanicIsRecovered(t *testing.T) {
	h := newHarness(t)
	input := h.add(t, fixtures.InputGene, nil, "ACE2")
	panicking := h.add(t, fixtures.Panicking, map[string][]string{"gene": {input.ID}}, nil)

	pass := h.engine(Options{}).NewPass(context.Background(), h.c, PassOptions{})
	defer pass.Close()

	_, err := pass.DecodeCompleteOutput(context.Background(), panicking)
	require.Error(t, err)
	assert.True(t, domain.IsResolutionError(err))

	var pe *domain.PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "resolver exploded", pe.Value)
	assert.NotEmpty(t, pe.StackTrace)
}

func TestPass_DryMode(t *testing.T) {
	h := newHarness(t)
	input := h.add(t, fixtures.InputGene, nil, "ACE2")
	expand := h.add(t, fixtures.GeneSetFromGene, map[string][]string{"gene": {input.ID}}, nil)

	pass := h.engine(Options{}).NewPass(context.Background(), h.c, PassOptions{Dry: true})
	defer pass.Close()

	v, err := pass.DecodeCompleteOutput(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "ACE2", v)

	_, err = pass.DecodeCompleteOutput(context.Background(), expand)
	assert.ErrorIs(t, err, domain.ErrNotResolved)
	assert.Equal(t, int64(0), h.cat.Calls(fixtures.GeneSetFromGene))
}

func TestPass_ValueCacheAcrossRuns(t *testing.T) {
	h := newHarness(t)
	input := h.add(t, fixtures.InputGene, nil, "ACE2")
	expand := h.add(t, fixtures.GeneSetFromGene, map[string][]string{"gene": {input.ID}}, nil)

	cache := newMapCache()
	e := h.engine(Options{ValueCache: cache})

	first := e.NewPass(context.Background(), h.c, PassOptions{})
	_, err := first.Run(context.Background())
	require.NoError(t, err)
	first.Close()

	key := domain.ValueCacheKey(expand.ID, h.cat.GeneSet.Codec.Version())
	_, ok, _ := cache.Get(context.Background(), key)
	assert.True(t, ok)

	dry := e.NewPass(context.Background(), h.c, PassOptions{Dry: true})
	defer dry.Close()
	v, err := dry.DecodeCompleteOutput(context.Background(), expand)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"set": []any{"ACE2"}}, v)
	assert.Equal(t, int64(1), h.cat.Calls(fixtures.GeneSetFromGene))
}

func TestPass_StaleCacheEntryIsIgnored(t *testing.T) {
	h := newHarness(t)
	input := h.add(t, fixtures.InputGene, nil, "ACE2")
	expand := h.add(t, fixtures.GeneSetFromGene, map[string][]string{"gene": {input.ID}}, nil)

	cache := mocks.NewMockValueCache(t)
	key := domain.ValueCacheKey(expand.ID, h.cat.GeneSet.Codec.Version())
	cache.On("Get", mock.Anything, domain.ValueCacheKey(input.ID, h.cat.Gene.Codec.Version())).Return(nil, false, nil)
	cache.On("Get", mock.Anything, key).Return(json.RawMessage(`{"genes": []}`), true, nil)
	cache.On("Put", mock.Anything, key, mock.Anything).Return(nil)

	pass := h.engine(Options{ValueCache: cache}).NewPass(context.Background(), h.c, PassOptions{})
	defer pass.Close()

	v, err := pass.DecodeCompleteOutput(context.Background(), expand)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"set": []any{"ACE2"}}, v)
	assert.Equal(t, int64(1), h.cat.Calls(fixtures.GeneSetFromGene))
}

func TestPass_AbandonedCallerDoesNotCancelSharedWork(t *testing.T) {
	h := newHarness(t)
	input := h.add(t, fixtures.InputGene, nil, "ACE2")
	gated := h.add(t, fixtures.Gated, map[string][]string{"gene": {input.ID}}, nil)

	pass := h.engine(Options{}).NewPass(context.Background(), h.c, PassOptions{})
	defer pass.Close()

	callerCtx, cancel := context.WithCancel(context.Background())
	abandoned := make(chan error, 1)
	go func() {
		_, err := pass.DecodeCompleteOutput(callerCtx, gated)
		abandoned <- err
	}()

	require.Eventually(t, func() bool { return h.cat.Calls(fixtures.Gated) == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-abandoned, context.Canceled)

	done := make(chan any, 1)
	go func() {
		v, err := pass.DecodeCompleteOutput(context.Background(), gated)
		assert.NoError(t, err)
		done <- v
	}()
	close(h.cat.Gate)

	assert.Equal(t, "ACE2", <-done)
	assert.Equal(t, int64(1), h.cat.Calls(fixtures.Gated))
}

func TestPass_CloseCancelsComputations(t *testing.T) {
	h := newHarness(t)
	input := h.add(t, fixtures.InputGene, nil, "ACE2")
	gated := h.add(t, fixtures.Gated, map[string][]string{"gene": {input.ID}}, nil)

	pass := h.engine(Options{}).NewPass(context.Background(), h.c, PassOptions{})

	result := make(chan error, 1)
	go func() {
		_, err := pass.DecodeCompleteOutput(context.Background(), gated)
		result <- err
	}()

	require.Eventually(t, func() bool { return h.cat.Calls(fixtures.Gated) == 1 }, time.Second, time.Millisecond)
	pass.Close()

	err := <-result
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, domain.IsResolutionError(err))
}

func TestPass_ConcurrencyLimit(t *testing.T) {
	h := newHarness(t)
	a := h.add(t, fixtures.InputGene, nil, "ACE2")
	b := h.add(t, fixtures.InputGene, nil, "TP53")
	h.add(t, fixtures.Gated, map[string][]string{"gene": {a.ID}}, nil)
	h.add(t, fixtures.Gated, map[string][]string{"gene": {b.ID}}, nil)

	pass := h.engine(Options{MaxConcurrentResolves: 1}).NewPass(context.Background(), h.c, PassOptions{})
	defer pass.Close()

	done := make(chan error, 1)
	go func() {
		_, err := pass.Run(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return h.cat.Calls(fixtures.Gated) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), h.cat.Calls(fixtures.Gated), "second resolve waits for the semaphore")

	close(h.cat.Gate)
	require.NoError(t, <-done)
	assert.Equal(t, int64(2), h.cat.Calls(fixtures.Gated))
}

func TestPass_MissingAntecedent(t *testing.T) {
	h := newHarness(t)
	h.add(t, fixtures.InputGene, nil, "ACE2")

	pass := h.engine(Options{}).NewPass(context.Background(), h.c, PassOptions{})
	defer pass.Close()

	orphan := fixtures.MustProcess(fixtures.GeneSetFromGene, map[string][]string{"gene": {"ghost"}}, nil)
	_, err := pass.DecodeCompleteInputs(context.Background(), orphan)
	assert.ErrorIs(t, err, domain.ErrMissingAntecedent)

	var ae *domain.AntecedentError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "ghost", ae.AntecedentID)
	assert.Equal(t, "gene", ae.Slot)
}

func TestPass_ComputeAndNotifications(t *testing.T) {
	h := newHarness(t)
	input := h.add(t, fixtures.InputGene, nil, "ACE2")
	remote := h.add(t, fixtures.Remote, map[string][]string{"gene": {input.ID}}, nil)

	compute := mocks.NewMockComputePort(t)
	compute.On("Compute", mock.Anything, ports.ComputeRequest{Routine: "expand", Args: []any{"ACE2"}}, mock.Anything).
		Run(func(args mock.Arguments) {
			notify := args.Get(2).(func(ports.Notification))
			notify(ports.Notification{Type: "info", Message: "expanding"})
		}).
		Return(json.RawMessage(`{"set": ["ACE2", "TMPRSS2"]}`), nil).
		Once()

	notifier := mocks.NewMockNotifier(t)
	notifier.On("Notify", mock.Anything, remote.ID, ports.Notification{Type: "info", Message: "expanding"}).Once()

	pass := h.engine(Options{Compute: compute, Notifier: notifier}).NewPass(context.Background(), h.c, PassOptions{})
	defer pass.Close()

	v, err := pass.DecodeCompleteOutput(context.Background(), remote)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"set": []any{"ACE2", "TMPRSS2"}}, v)
}

func TestPass_NoComputeConfigured(t *testing.T) {
	h := newHarness(t)
	input := h.add(t, fixtures.InputGene, nil, "ACE2")
	remote := h.add(t, fixtures.Remote, map[string][]string{"gene": {input.ID}}, nil)

	pass := h.engine(Options{}).NewPass(context.Background(), h.c, PassOptions{})
	defer pass.Close()

	_, err := pass.DecodeCompleteOutput(context.Background(), remote)
	assert.ErrorIs(t, err, errNoCompute)
}

func TestPass_PromptWithoutData(t *testing.T) {
	h := newHarness(t)
	h.add(t, fixtures.InputGene, nil, nil)

	pass := h.engine(Options{}).NewPass(context.Background(), h.c, PassOptions{})
	defer pass.Close()

	_, err := pass.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoResolver)
}
