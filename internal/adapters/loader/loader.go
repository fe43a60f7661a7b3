// Package loader reads playbook definition files. Steps refer to each other
// by a local id that is replaced with the content-derived process id while
// loading. Steps may be listed in any order as long as their references do
// not form a cycle.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/heimdalr/dag"
	"gopkg.in/yaml.v3"

	"github.com/eleven-am/playbook/internal/adapters/bco"
	"github.com/eleven-am/playbook/internal/adapters/chain"
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/xjson"
)

var ErrInvalidPlaybook = errors.New("invalid playbook")

type Playbook struct {
	Metadata *bco.Metadata `yaml:"metadata,omitempty"`
	Author   *bco.Author   `yaml:"author,omitempty"`
	Steps    []Step        `yaml:"steps"`
}

type Step struct {
	ID     string          `yaml:"id,omitempty"`
	Type   string          `yaml:"type"`
	Data   interface{}     `yaml:"data,omitempty"`
	Inputs map[string]Refs `yaml:"inputs,omitempty"`
}

// Refs accepts either a single reference or a list of them.
type Refs []string

func (r *Refs) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var ref string
		if err := node.Decode(&ref); err != nil {
			return err
		}
		*r = Refs{ref}
		return nil
	case yaml.SequenceNode:
		var refs []string
		if err := node.Decode(&refs); err != nil {
			return err
		}
		*r = refs
		return nil
	default:
		return fmt.Errorf("line %d: input must be a reference or a list of references", node.Line)
	}
}

func (r Refs) MarshalYAML() (interface{}, error) {
	if len(r) == 1 {
		return r[0], nil
	}
	return []string(r), nil
}

// Error points at the step that could not be loaded.
type Error struct {
	Step  int
	ID    string
	Cause error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("playbook step %d (%s): %v", e.Step+1, e.ID, e.Cause)
	}
	return fmt.Sprintf("playbook step %d: %v", e.Step+1, e.Cause)
}

func (e *Error) Unwrap() []error {
	return []error{ErrInvalidPlaybook, e.Cause}
}

func Load(r io.Reader) (*Playbook, error) {
	var pb Playbook
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&pb); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidPlaybook)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlaybook, err)
	}
	if len(pb.Steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrInvalidPlaybook)
	}
	return &pb, nil
}

func LoadFile(path string) (*Playbook, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading playbook %s: %w", path, err)
	}
	return Load(bytes.NewReader(content))
}

// vertexID names step i in the dependency graph.
func vertexID(i int) string {
	return fmt.Sprintf("step-%d", i)
}

// Order returns the step indices so that every step comes after the local
// steps it references. Among steps that are ready at the same time file
// order is kept.
func (pb *Playbook) Order() ([]int, error) {
	local := make(map[string]int, len(pb.Steps))
	for i, step := range pb.Steps {
		if step.ID == "" {
			continue
		}
		if _, dup := local[step.ID]; dup {
			return nil, &Error{Step: i, ID: step.ID, Cause: fmt.Errorf("%w: duplicate step id", domain.ErrInvalidInput)}
		}
		local[step.ID] = i
	}

	graph := dag.NewDAG()
	for i := range pb.Steps {
		if err := graph.AddVertexByID(vertexID(i), i); err != nil {
			return nil, &Error{Step: i, ID: pb.Steps[i].ID, Cause: err}
		}
	}

	for i, step := range pb.Steps {
		for _, slot := range sortedSlots(step.Inputs) {
			for _, ref := range step.Inputs[slot] {
				j, ok := local[ref]
				if !ok {
					continue
				}
				err := graph.AddEdge(vertexID(j), vertexID(i))
				if err == nil {
					continue
				}
				if _, ok := err.(dag.EdgeDuplicateError); ok {
					continue
				}
				return nil, &Error{Step: i, ID: step.ID, Cause: domain.NewChainIntegrityError("", slot, domain.ErrCycle, "reference to %s closes a cycle: %v", ref, err)}
			}
		}
	}

	placed := make(map[string]bool, len(pb.Steps))
	order := make([]int, 0, len(pb.Steps))
	for len(order) < len(pb.Steps) {
		progressed := false
		for i := range pb.Steps {
			id := vertexID(i)
			if placed[id] {
				continue
			}
			parents, err := graph.GetParents(id)
			if err != nil {
				return nil, &Error{Step: i, ID: pb.Steps[i].ID, Cause: err}
			}
			ready := true
			for parent := range parents {
				if !placed[parent] {
					ready = false
					break
				}
			}
			if ready {
				placed[id] = true
				order = append(order, i)
				progressed = true
				break
			}
		}
		if !progressed {
			return nil, fmt.Errorf("%w: steps cannot be ordered", ErrInvalidPlaybook)
		}
	}
	return order, nil
}

func sortedSlots(inputs map[string]Refs) []string {
	slots := make([]string, 0, len(inputs))
	for slot := range inputs {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}

// Processes converts the steps into invocations in dependency order; see
// Order. The second result maps each invocation back to its step index and
// the third resolves local step ids to process ids. A reference that is not
// a local id is kept verbatim so playbooks may cite process ids directly.
func (pb *Playbook) Processes() ([]*domain.Process, []int, map[string]string, error) {
	order, err := pb.Order()
	if err != nil {
		return nil, nil, nil, err
	}

	ids := make(map[string]string, len(pb.Steps))
	procs := make([]*domain.Process, 0, len(pb.Steps))

	for _, i := range order {
		step := pb.Steps[i]
		if step.Type == "" {
			return nil, nil, nil, &Error{Step: i, ID: step.ID, Cause: fmt.Errorf("%w: missing type", domain.ErrInvalidInput)}
		}

		var inputs map[string][]string
		if len(step.Inputs) > 0 {
			inputs = make(map[string][]string, len(step.Inputs))
			for slot, refs := range step.Inputs {
				resolved := make([]string, len(refs))
				for j, ref := range refs {
					if id, ok := ids[ref]; ok {
						resolved[j] = id
					} else {
						resolved[j] = ref
					}
				}
				inputs[slot] = resolved
			}
		}

		var data []byte
		if step.Data != nil {
			raw, err := xjson.Marshal(step.Data)
			if err != nil {
				return nil, nil, nil, &Error{Step: i, ID: step.ID, Cause: err}
			}
			data = raw
		}

		proc, err := domain.NewProcess(step.Type, inputs, data)
		if err != nil {
			return nil, nil, nil, &Error{Step: i, ID: step.ID, Cause: err}
		}

		if step.ID != "" {
			ids[step.ID] = proc.ID
		}
		procs = append(procs, proc)
	}
	return procs, order, ids, nil
}

// Build appends every step to a new chain rooted in arena.
func (pb *Playbook) Build(arena *chain.Arena) (chain.Chain, map[string]string, error) {
	procs, order, ids, err := pb.Processes()
	if err != nil {
		return chain.Chain{}, nil, err
	}

	var c chain.Chain
	for k, proc := range procs {
		if c.IsZero() {
			c, err = arena.Root(proc)
		} else {
			c, err = c.Append(proc)
		}
		if err != nil {
			i := order[k]
			return chain.Chain{}, nil, &Error{Step: i, ID: pb.Steps[i].ID, Cause: err}
		}
	}
	return c, ids, nil
}

// FromChain writes c back as a playbook. Steps get local ids step1, step2...
// in resolution order.
func FromChain(c chain.Chain) (*Playbook, error) {
	steps := c.Resolve()
	local := make(map[string]string, len(steps))
	pb := &Playbook{Steps: make([]Step, 0, len(steps))}

	for i, s := range steps {
		id := fmt.Sprintf("step%d", i+1)
		local[s.Process.ID] = id

		step := Step{ID: id, Type: s.Process.Type}
		if s.Process.HasData() {
			if err := xjson.Unmarshal(s.Process.Data, &step.Data); err != nil {
				return nil, err
			}
		}
		if len(s.Process.Inputs) > 0 {
			step.Inputs = make(map[string]Refs, len(s.Process.Inputs))
			for slot, refs := range s.Process.Inputs {
				out := make(Refs, len(refs))
				for j, ref := range refs {
					out[j] = local[ref]
				}
				step.Inputs[slot] = out
			}
		}
		pb.Steps = append(pb.Steps, step)
	}
	return pb, nil
}

// Encode writes pb as YAML.
func Encode(w io.Writer, pb *Playbook) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(pb); err != nil {
		return err
	}
	return encoder.Close()
}
