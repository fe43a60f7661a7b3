package node_registry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
)

// Builder collects metanodes at startup. Registration order is strict: a
// process can only reference data types that are already registered.
type Builder struct {
	data      map[string]*ports.DataNode
	processes map[string]*ports.ProcessNode
	mu        sync.Mutex
	logger    *slog.Logger
}

func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Builder{
		data:      make(map[string]*ports.DataNode),
		processes: make(map[string]*ports.ProcessNode),
		logger:    logger.With("component", "node-registry"),
	}
}

func (b *Builder) Register(node ports.MetaNode) error {
	if node == nil {
		b.logger.Error("attempted to register nil metanode")
		return domain.NewRegistrationError("<nil>", domain.ErrInvalidNode, "metanode cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch n := node.(type) {
	case *ports.DataNode:
		return b.registerData(n)
	case *ports.ProcessNode:
		return b.registerProcess(n)
	default:
		return domain.NewRegistrationError(node.SpecName(), domain.ErrInvalidNode, "unsupported metanode %T", node)
	}
}

// RegisterAll registers nodes in order and stops at the first failure.
func (b *Builder) RegisterAll(nodes ...ports.MetaNode) error {
	for _, node := range nodes {
		if err := b.Register(node); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) registerData(n *ports.DataNode) error {
	if n == nil || n.Spec == "" {
		return domain.NewRegistrationError("", domain.ErrInvalidNode, "data node spec cannot be empty")
	}
	if n.Codec == nil {
		return domain.NewRegistrationError(n.Spec, domain.ErrInvalidNode, "data node has no codec")
	}
	if b.exists(n.Spec) {
		b.logger.Debug("metanode registration failed - already exists", "spec", n.Spec)
		return domain.NewRegistrationError(n.Spec, domain.ErrDuplicateName, "spec already registered")
	}

	b.data[n.Spec] = n
	b.logger.Debug("data node registered", "spec", n.Spec, "codec", n.Codec.Describe())
	return nil
}

func (b *Builder) registerProcess(n *ports.ProcessNode) error {
	if n == nil || n.Spec == "" {
		return domain.NewRegistrationError("", domain.ErrInvalidNode, "process node spec cannot be empty")
	}
	if b.exists(n.Spec) {
		b.logger.Debug("metanode registration failed - already exists", "spec", n.Spec)
		return domain.NewRegistrationError(n.Spec, domain.ErrDuplicateName, "spec already registered")
	}
	if n.Output == nil {
		return domain.NewRegistrationError(n.Spec, domain.ErrInvalidNode, "process node has no output type")
	}
	if !n.Prompt && n.Resolve == nil {
		return domain.NewRegistrationError(n.Spec, domain.ErrInvalidNode, "process node is neither a prompt nor has a resolve function")
	}
	if err := b.checkType(n.Spec, "output", n.Output); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(n.Inputs))
	for _, slot := range n.Inputs {
		if slot.Name == "" {
			return domain.NewRegistrationError(n.Spec, domain.ErrInvalidNode, "input slot without a name")
		}
		if _, dup := seen[slot.Name]; dup {
			return domain.NewRegistrationError(n.Spec, domain.ErrInvalidNode, "input slot %q declared twice", slot.Name)
		}
		seen[slot.Name] = struct{}{}

		if len(slot.Accepts) == 0 {
			return domain.NewRegistrationError(n.Spec, domain.ErrInvalidNode, "input slot %q accepts no types", slot.Name)
		}
		for _, accepted := range slot.Accepts {
			if err := b.checkType(n.Spec, "input "+slot.Name, accepted); err != nil {
				return err
			}
		}
	}

	b.processes[n.Spec] = n
	b.logger.Debug("process node registered", "spec", n.Spec, "inputs", len(n.Inputs), "output", n.Output.Spec)
	return nil
}

// checkType verifies that ref is the registered data node of that name, so a
// process never points at a shadow copy of a type.
func (b *Builder) checkType(spec, where string, ref *ports.DataNode) error {
	if ref == nil {
		return domain.NewRegistrationError(spec, domain.ErrInvalidNode, "%s references a nil data type", where)
	}
	registered, ok := b.data[ref.Spec]
	if !ok {
		return domain.NewRegistrationError(spec, domain.ErrUnknownType, "%s references unregistered data type %q", where, ref.Spec)
	}
	if registered != ref {
		return domain.NewRegistrationError(spec, domain.ErrUnknownType, "%s references a different definition of data type %q", where, ref.Spec)
	}
	return nil
}

func (b *Builder) exists(spec string) bool {
	if _, ok := b.data[spec]; ok {
		return true
	}
	_, ok := b.processes[spec]
	return ok
}

// Build freezes the collected catalog. The builder may keep registering but
// the returned Registry never changes.
func (b *Builder) Build() *Registry {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := &Registry{
		nodes:      make(map[string]ports.MetaNode, len(b.data)+len(b.processes)),
		downstream: make(map[string][]*ports.ProcessNode),
		byTag:      make(map[string][]*ports.ProcessNode),
	}

	for spec, n := range b.data {
		r.nodes[spec] = n
		r.dataList = append(r.dataList, n)
	}
	for spec, n := range b.processes {
		r.nodes[spec] = n
		r.processList = append(r.processList, n)
	}
	sort.Slice(r.dataList, func(i, j int) bool { return r.dataList[i].Spec < r.dataList[j].Spec })
	sort.Slice(r.processList, func(i, j int) bool { return r.processList[i].Spec < r.processList[j].Spec })

	for _, n := range r.processList {
		accepted := make(map[string]struct{})
		for _, slot := range n.Inputs {
			for _, t := range slot.Accepts {
				if _, dup := accepted[t.Spec]; dup {
					continue
				}
				accepted[t.Spec] = struct{}{}
				r.downstream[t.Spec] = append(r.downstream[t.Spec], n)
			}
		}
		for _, category := range n.Meta.TagCategories() {
			r.byTag[category] = append(r.byTag[category], n)
		}
	}
	for category := range r.byTag {
		r.categories = append(r.categories, category)
	}
	sort.Strings(r.categories)

	b.logger.Info("node registry built", "data_nodes", len(r.dataList), "process_nodes", len(r.processList))
	return r
}
