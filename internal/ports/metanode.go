package ports

import (
	"context"
	"log/slog"

	"github.com/eleven-am/playbook/internal/domain"
)

// MetaNode is either a *DataNode or a *ProcessNode.
type MetaNode interface {
	Kind() domain.NodeKind
	SpecName() string
	Metadata() domain.Meta
}

// DataNode declares a value type flowing between processes.
type DataNode struct {
	Spec  string
	Meta  domain.Meta
	Codec domain.Codec
}

func (n *DataNode) Kind() domain.NodeKind { return domain.KindData }
func (n *DataNode) SpecName() string      { return n.Spec }
func (n *DataNode) Metadata() domain.Meta { return n.Meta }

// InputSlot is a named input of a process. Accepts lists every data type the
// slot takes; Multi slots receive a list of references.
type InputSlot struct {
	Name    string
	Accepts []*DataNode
	Multi   bool
}

func (s InputSlot) AcceptsType(spec string) bool {
	for _, accepted := range s.Accepts {
		if accepted != nil && accepted.Spec == spec {
			return true
		}
	}
	return false
}

func (s InputSlot) AcceptedSpecs() []string {
	specs := make([]string, 0, len(s.Accepts))
	for _, accepted := range s.Accepts {
		if accepted != nil {
			specs = append(specs, accepted.Spec)
		}
	}
	return specs
}

type StoryProps struct {
	Inputs map[string]any
	Output any
}

type StoryFunc func(props StoryProps) string

// ResolveContext is handed to a resolve function. Inputs are already decoded
// through their slot codecs.
type ResolveContext struct {
	ProcessID string
	Inputs    map[string]any
	Compute   ComputePort
	Notify    func(Notification)
	Logger    *slog.Logger
}

type ResolveFunc func(ctx context.Context, rc ResolveContext) (any, error)

// ProcessNode declares a computational step. Prompt processes take their
// value from user supplied data instead of running Resolve.
type ProcessNode struct {
	Spec    string
	Meta    domain.Meta
	Inputs  []InputSlot
	Output  *DataNode
	Prompt  bool
	Story   StoryFunc
	Resolve ResolveFunc
}

func (n *ProcessNode) Kind() domain.NodeKind { return domain.KindProcess }
func (n *ProcessNode) SpecName() string      { return n.Spec }
func (n *ProcessNode) Metadata() domain.Meta { return n.Meta }

func (n *ProcessNode) Slot(name string) (InputSlot, bool) {
	for _, slot := range n.Inputs {
		if slot.Name == name {
			return slot, true
		}
	}
	return InputSlot{}, false
}
