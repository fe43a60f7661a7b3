package memory

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() *Store {
	return NewStore("urn:test:", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStore_ProcessRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	proc, err := domain.NewProcess("Input[Gene]", nil, json.RawMessage(`"ACE2"`))
	require.NoError(t, err)
	require.NoError(t, s.PutProcess(ctx, proc))

	got, err := s.GetProcess(ctx, proc.ID)
	require.NoError(t, err)
	assert.Equal(t, proc, got)

	got.Type = "mutated"
	again, _ := s.GetProcess(ctx, proc.ID)
	assert.Equal(t, "Input[Gene]", again.Type)

	_, err = s.GetProcess(ctx, "missing")
	assert.True(t, domain.IsKeyNotFound(err))
}

func TestStore_ChainAndBCO(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	el := domain.NewFPL("p1", "")
	require.NoError(t, s.PutChain(ctx, el))
	got, err := s.GetChain(ctx, el.ID)
	require.NoError(t, err)
	assert.Equal(t, el, *got)

	assert.Error(t, s.PutChain(ctx, domain.FPL{}))

	doc := &domain.BCO{SpecVersion: domain.BCOSpecVersion}
	id, err := s.PutBCO(ctx, doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "urn:test:"))
	assert.Equal(t, id, doc.ObjectID)

	stored, err := s.GetBCO(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.BCOSpecVersion, stored.SpecVersion)
}

func TestStore_BCOIsolatedFromCallers(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	doc := &domain.BCO{SpecVersion: domain.BCOSpecVersion}
	doc.UsabilityDomain = []string{"original story"}
	doc.ProvenanceDomain.Name = "ACE2"
	id, err := s.PutBCO(ctx, doc)
	require.NoError(t, err)

	doc.UsabilityDomain[0] = "edited after put"
	doc.ProvenanceDomain.Name = "changed"

	first, err := s.GetBCO(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"original story"}, first.UsabilityDomain)
	assert.Equal(t, "ACE2", first.ProvenanceDomain.Name)

	first.UsabilityDomain[0] = "edited after get"

	second, err := s.GetBCO(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"original story"}, second.UsabilityDomain)
}

func TestStore_Closed(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Close())

	_, err := s.GetProcess(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrClosed)
}

func TestStore_ListBCOs(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	for _, id := range []string{"urn:test:b", "urn:test:a"} {
		_, err := s.PutBCO(ctx, &domain.BCO{ObjectID: id})
		require.NoError(t, err)
	}

	ids, err := s.ListBCOs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:test:a", "urn:test:b"}, ids)

	require.NoError(t, s.Close())
	_, err = s.ListBCOs(ctx)
	assert.ErrorIs(t, err, domain.ErrClosed)
}
