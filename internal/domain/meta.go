package domain

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

type NodeKind string

const (
	KindData    NodeKind = "data"
	KindProcess NodeKind = "process"
)

const DefaultNodeVersion = "0.0.0"

// Meta is the descriptive metadata attached to every metanode.
type Meta struct {
	Label       string                        `json:"label" yaml:"label"`
	Description string                        `json:"description" yaml:"description"`
	Icon        []string                      `json:"icon,omitempty" yaml:"icon,omitempty"`
	Tags        map[string]map[string]float64 `json:"tags,omitempty" yaml:"tags,omitempty"`
	Author      string                        `json:"author,omitempty" yaml:"author,omitempty"`
	Version     string                        `json:"version,omitempty" yaml:"version,omitempty"`
	Example     json.RawMessage               `json:"example,omitempty" yaml:"-"`
}

// TagCategories returns the top-level tag names in sorted order.
func (m Meta) TagCategories() []string {
	out := make([]string, 0, len(m.Tags))
	for category := range m.Tags {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

func (m Meta) HasTag(category, value string) bool {
	values, ok := m.Tags[category]
	if !ok {
		return false
	}
	if value == "" {
		return true
	}
	_, ok = values[value]
	return ok
}

type NodeAuthor struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

var authorPattern = regexp.MustCompile(`^(.+?)\s*(<(.+?)>)?$`)

// ParseAuthor splits "Name <email>" into its parts. Strings without an
// email yield only a name.
func ParseAuthor(author string) NodeAuthor {
	author = strings.TrimSpace(author)
	m := authorPattern.FindStringSubmatch(author)
	if m == nil {
		return NodeAuthor{Name: author}
	}
	return NodeAuthor{Name: m[1], Email: m[3]}
}
