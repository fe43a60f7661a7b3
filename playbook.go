// Package playbook assembles reproducible analysis pipelines out of typed
// metanodes, resolves them lazily and exports them as BioCompute Objects.
//
// Basic usage:
//
//	config := playbook.NewConfigBuilder("./data").Build()
//	manager, err := playbook.New(config)
//	if err != nil {
//	    return err
//	}
//	defer manager.Close()
//
//	pb, _ := playbook.LoadPlaybookFile("ace2.yaml")
//	chain, _, err := manager.LoadPlaybook(ctx, pb)
//	outputs, err := manager.Resolve(ctx, chain, playbook.PassOptions{})
//	doc, err := manager.Export(ctx, chain, playbook.ExportOptions{Execute: true})
package playbook

import (
	"io"

	"github.com/eleven-am/playbook/internal/adapters/bco"
	"github.com/eleven-am/playbook/internal/adapters/chain"
	"github.com/eleven-am/playbook/internal/adapters/compute"
	"github.com/eleven-am/playbook/internal/adapters/engine"
	"github.com/eleven-am/playbook/internal/adapters/loader"
	"github.com/eleven-am/playbook/internal/core"
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
)

// Manager owns the catalog, the store, the resolution engine and the
// exporter configured for one process.
type Manager = core.Manager

// Option customises a Manager at construction time.
type Option = core.Option

// Chain is an immutable handle on a pipeline. Appending returns a new chain.
type Chain = chain.Chain

// Process is one invocation of a process metanode.
type Process = domain.Process

// PassOptions controls a single resolution pass.
type PassOptions = engine.PassOptions

// ExportOptions controls BioCompute Object export.
type ExportOptions = bco.ExportOptions

// ExportMetadata overrides the generated title and story of an export.
type ExportMetadata = bco.Metadata

// Author is credited first in an exported document.
type Author = bco.Author

// BCO is an exported BioCompute Object.
type BCO = domain.BCO

// Playbook is a parsed playbook definition file.
type Playbook = loader.Playbook

// Notification is a progress message sent by a running resolve function.
type Notification = ports.Notification

// Notifier receives notifications of every resolve function.
type Notifier = ports.Notifier

// Routine is a computation served by the local or remote compute workers.
type Routine = compute.Routine

// Routines is a registry of compute routines.
type Routines = compute.Routines

var (
	WithRegistry              = core.WithRegistry
	WithRoutines              = core.WithRoutines
	WithNotifier              = core.WithNotifier
	WithMetricsRegistry       = core.WithMetricsRegistry
	WithTracerProviderOptions = core.WithTracerProviderOptions
)

// New validates config and opens every configured adapter.
func New(config *Config, opts ...Option) (*Manager, error) {
	return core.New(config, opts...)
}

// NewProcess builds an invocation with a content-derived id.
func NewProcess(processType string, inputs map[string][]string, data []byte) (*Process, error) {
	return domain.NewProcess(processType, inputs, data)
}

// DefaultRoutines returns the routines the built-in catalog relies on.
func DefaultRoutines() *Routines {
	return compute.DefaultRoutines()
}

func LoadPlaybookFile(path string) (*Playbook, error) {
	return loader.LoadFile(path)
}

// VerifyETag reports whether doc's etag matches its content.
func VerifyETag(doc *BCO) (bool, error) {
	return bco.VerifyETag(doc)
}

// FailedProcessID returns the innermost invocation that caused err.
func FailedProcessID(err error) string {
	return domain.FailedProcessID(err)
}

var (
	ErrNotFound           = domain.ErrNotFound
	ErrInvalidConfig      = domain.ErrInvalidConfig
	ErrCycle              = domain.ErrCycle
	ErrDanglingReference  = domain.ErrDanglingReference
	ErrTypeMismatch       = domain.ErrTypeMismatch
	ErrCodec              = domain.ErrCodec
	ErrOutputTypeMismatch = domain.ErrOutputTypeMismatch
	ErrNotResolved        = domain.ErrNotResolved
	ErrResolve            = domain.ErrResolve
	ErrExport             = domain.ErrExport
)

// LoadPlaybook parses a playbook definition from r.
func LoadPlaybook(r io.Reader) (*Playbook, error) {
	return loader.Load(r)
}
