package domain

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/eleven-am/playbook/internal/xjson"
	"github.com/google/uuid"
)

var (
	processNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:playbook:process"))
	chainNamespace   = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:playbook:fpl"))
)

// Process is a single invocation of a process metanode. Inputs maps slot
// names to the ids of the invocations feeding them; a multi slot holds more
// than one id. Data is set for prompt/literal invocations.
type Process struct {
	ID     string              `json:"id"`
	Type   string              `json:"type"`
	Inputs map[string][]string `json:"inputs,omitempty"`
	Data   json.RawMessage     `json:"data,omitempty"`
}

func NewProcess(processType string, inputs map[string][]string, data json.RawMessage) (*Process, error) {
	p := &Process{Type: processType, Inputs: inputs, Data: data}
	if err := p.EnsureID(); err != nil {
		return nil, err
	}
	return p, nil
}

// ContentID derives the id from the canonical JSON of type, inputs and data,
// so equal invocations always share an id.
func (p *Process) ContentID() (string, error) {
	canonical := map[string]interface{}{
		"type": p.Type,
	}

	inputs := make(map[string]interface{}, len(p.Inputs))
	for slot, ids := range p.Inputs {
		refs := make([]interface{}, len(ids))
		for i, id := range ids {
			refs[i] = id
		}
		inputs[slot] = refs
	}
	canonical["inputs"] = inputs

	if p.HasData() {
		var data interface{}
		if err := xjson.Unmarshal(p.Data, &data); err != nil {
			return "", fmt.Errorf("%w: process data is not valid JSON: %v", ErrInvalidInput, err)
		}
		canonical["data"] = data
	} else {
		canonical["data"] = nil
	}

	raw, err := xjson.Marshal(canonical)
	if err != nil {
		return "", err
	}
	return uuid.NewSHA1(processNamespace, raw).String(), nil
}

func (p *Process) EnsureID() error {
	if p.ID != "" {
		return nil
	}
	id, err := p.ContentID()
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (p *Process) HasData() bool {
	return len(p.Data) > 0 && string(p.Data) != "null"
}

// Slots returns the input slot names in sorted order.
func (p *Process) Slots() []string {
	slots := make([]string, 0, len(p.Inputs))
	for slot := range p.Inputs {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}

// InputIDs returns every referenced id in slot-name order.
func (p *Process) InputIDs() []string {
	var ids []string
	for _, slot := range p.Slots() {
		ids = append(ids, p.Inputs[slot]...)
	}
	return ids
}

func (p *Process) Clone() *Process {
	clone := &Process{ID: p.ID, Type: p.Type}
	if p.Inputs != nil {
		clone.Inputs = make(map[string][]string, len(p.Inputs))
		for slot, ids := range p.Inputs {
			clone.Inputs[slot] = append([]string(nil), ids...)
		}
	}
	if p.Data != nil {
		clone.Data = append(json.RawMessage(nil), p.Data...)
	}
	return clone
}

// FPL is a persisted element of a chain: a process plus a link to the
// previous element. An empty ParentID marks the root.
type FPL struct {
	ID        string `json:"id"`
	ProcessID string `json:"process_id"`
	ParentID  string `json:"parent_id,omitempty"`
}

func NewFPL(processID, parentID string) FPL {
	return FPL{
		ID:        ChainElementID(processID, parentID),
		ProcessID: processID,
		ParentID:  parentID,
	}
}

func ChainElementID(processID, parentID string) string {
	return uuid.NewSHA1(chainNamespace, []byte(parentID+"/"+processID)).String()
}

// Step is one entry of a resolved chain. Index is its 0-based position.
type Step struct {
	ID      string   `json:"id"`
	Process *Process `json:"process"`
	Index   int      `json:"index"`
}
