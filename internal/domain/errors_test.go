package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationError_UnwrapsKind(t *testing.T) {
	err := NewRegistrationError("Gene", ErrDuplicateName, "spec %q already registered", "Gene")

	assert.True(t, errors.Is(err, ErrDuplicateName))
	assert.False(t, errors.Is(err, ErrUnknownType))
	assert.True(t, IsRegistrationError(fmt.Errorf("wrapped: %w", err)))
	assert.Contains(t, err.Error(), "Gene")
}

func TestChainIntegrityError_KindAndCause(t *testing.T) {
	cause := NewCodecError("$", "string", "number")
	err := NewChainIntegrityError("p1", "", ErrTypeMismatch, "literal rejected")
	err.Cause = cause

	assert.True(t, errors.Is(err, ErrTypeMismatch))
	assert.True(t, errors.Is(err, ErrCodec))
	assert.True(t, IsChainIntegrityError(err))
	assert.Contains(t, err.Error(), "process=p1")
}

func TestCodecError_Annotations(t *testing.T) {
	base := NewCodecError("$.values[2][0]", "number", "string")

	at := base.At("proc", "gene")
	assert.Equal(t, "proc", at.ProcessID)
	assert.Equal(t, "gene", at.Slot)
	assert.Empty(t, base.ProcessID, "At must not mutate the original")
	assert.Contains(t, at.Error(), "$.values[2][0]")

	mismatch := base.AsOutputMismatch("proc")
	assert.True(t, errors.Is(mismatch, ErrOutputTypeMismatch))
	assert.True(t, errors.Is(mismatch, ErrCodec))
	assert.False(t, errors.Is(base, ErrOutputTypeMismatch))
}

func TestFailedProcessID_WalksCausalChain(t *testing.T) {
	root := NewResolutionError("a", "A", errors.New("boom"))
	mid := NewResolutionError("b", "B", root)
	top := NewResolutionError("c", "C", mid)

	assert.Equal(t, "a", FailedProcessID(top))
	assert.True(t, IsResolutionError(top))
	assert.True(t, errors.Is(top, ErrResolve))
}

func TestFailedProcessID_PrefersCodecLocation(t *testing.T) {
	codec := NewCodecError("$", "string", "number").AsOutputMismatch("inner")
	err := NewResolutionError("outer", "X", codec)

	assert.Equal(t, "inner", FailedProcessID(err))
	assert.Equal(t, "", FailedProcessID(errors.New("plain")))
}

func TestAntecedentError(t *testing.T) {
	err := &AntecedentError{ProcessID: "p", Slot: "s", AntecedentID: "missing"}
	assert.True(t, errors.Is(err, ErrMissingAntecedent))
	assert.Contains(t, err.Error(), "missing")
}

func TestStorageErrors(t *testing.T) {
	err := NewKeyNotFoundError("process:x")
	require.Error(t, err)
	assert.True(t, IsKeyNotFound(err))
	assert.True(t, IsNotFound(err))

	other := NewStorageError("put", "k", errors.New("disk full"))
	assert.False(t, IsKeyNotFound(other))
}

func TestExportError(t *testing.T) {
	err := NewExportError("resolve", ErrNotResolved)
	assert.True(t, IsExportError(err))
	assert.True(t, errors.Is(err, ErrExport))
	assert.True(t, errors.Is(err, ErrNotResolved))
}
