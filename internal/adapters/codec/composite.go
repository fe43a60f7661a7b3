package codec

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/eleven-am/playbook/internal/domain"
)

func validateChild(c domain.Codec, v any, path string) error {
	if s, ok := c.(shape); ok {
		return s.validateAt(v, path)
	}
	if err := c.Validate(v); err != nil {
		var ce *domain.CodecError
		if errors.As(err, &ce) {
			clone := *ce
			clone.Path = path + strings.TrimPrefix(ce.Path, "$")
			return &clone
		}
		return domain.NewCodecError(path, c.Describe(), err.Error())
	}
	return nil
}

type literalCodec struct {
	plain
	value any
}

// Literal accepts exactly one value, compared in its JSON shape.
func Literal(v any) domain.Codec {
	normalized, err := normalize(v, "literal")
	if err != nil {
		panic(fmt.Sprintf("codec: literal value is not JSON serializable: %v", err))
	}
	c := &literalCodec{value: normalized}
	c.self = c
	return c
}

func (c *literalCodec) Describe() string {
	switch v := c.value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (c *literalCodec) validateAt(v any, path string) error {
	if !reflect.DeepEqual(v, c.value) {
		return mismatch(c, path, v)
	}
	return nil
}

type arrayCodec struct {
	plain
	elem domain.Codec
}

func Array(elem domain.Codec) domain.Codec {
	c := &arrayCodec{elem: elem}
	c.self = c
	return c
}

func (c *arrayCodec) Describe() string { return "array<" + c.elem.Describe() + ">" }

func (c *arrayCodec) validateAt(v any, path string) error {
	items, ok := v.([]any)
	if !ok {
		return mismatch(c, path, v)
	}
	for i, item := range items {
		if err := validateChild(c.elem, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

type tupleCodec struct {
	plain
	elems []domain.Codec
}

func Tuple(elems ...domain.Codec) domain.Codec {
	c := &tupleCodec{elems: elems}
	c.self = c
	return c
}

func (c *tupleCodec) Describe() string {
	parts := make([]string, len(c.elems))
	for i, e := range c.elems {
		parts[i] = e.Describe()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (c *tupleCodec) validateAt(v any, path string) error {
	items, ok := v.([]any)
	if !ok {
		return mismatch(c, path, v)
	}
	if len(items) != len(c.elems) {
		return domain.NewCodecError(path, c.Describe(), fmt.Sprintf("array of length %d", len(items)))
	}
	for i, item := range items {
		if err := validateChild(c.elems[i], item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

type FieldSpec struct {
	Name     string
	Codec    domain.Codec
	Optional bool
}

func Field(name string, c domain.Codec) FieldSpec {
	return FieldSpec{Name: name, Codec: c}
}

func Optional(name string, c domain.Codec) FieldSpec {
	return FieldSpec{Name: name, Codec: c, Optional: true}
}

// ObjectCodec validates a JSON object field by field. Unknown keys pass
// unless the codec is Strict.
type ObjectCodec struct {
	plain
	fields []FieldSpec
	strict bool
}

func Object(fields ...FieldSpec) *ObjectCodec {
	c := &ObjectCodec{fields: fields}
	c.self = c
	return c
}

func (c *ObjectCodec) Strict() *ObjectCodec {
	clone := &ObjectCodec{fields: c.fields, strict: true}
	clone.self = clone
	return clone
}

// Merge returns an object holding the fields of both; fields of other win
// on name clashes.
func (c *ObjectCodec) Merge(other *ObjectCodec) *ObjectCodec {
	fields := make([]FieldSpec, 0, len(c.fields)+len(other.fields))
	index := make(map[string]int, len(c.fields))
	for _, f := range c.fields {
		index[f.Name] = len(fields)
		fields = append(fields, f)
	}
	for _, f := range other.fields {
		if i, ok := index[f.Name]; ok {
			fields[i] = f
			continue
		}
		fields = append(fields, f)
	}
	merged := &ObjectCodec{fields: fields, strict: c.strict || other.strict}
	merged.self = merged
	return merged
}

func (c *ObjectCodec) Describe() string {
	fields := append([]FieldSpec(nil), c.fields...)
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	parts := make([]string, len(fields))
	for i, f := range fields {
		mark := ""
		if f.Optional {
			mark = "?"
		}
		parts[i] = fmt.Sprintf("%s%s: %s", f.Name, mark, f.Codec.Describe())
	}
	prefix := "{"
	if c.strict {
		prefix = "{|"
	}
	return prefix + strings.Join(parts, ", ") + "}"
}

func (c *ObjectCodec) validateAt(v any, path string) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return mismatch(c, path, v)
	}

	known := make(map[string]struct{}, len(c.fields))
	for _, f := range c.fields {
		known[f.Name] = struct{}{}
		value, present := obj[f.Name]
		fieldPath := path + "." + f.Name
		if !present {
			if f.Optional {
				continue
			}
			return domain.NewCodecError(fieldPath, f.Codec.Describe(), "missing")
		}
		if err := validateChild(f.Codec, value, fieldPath); err != nil {
			return err
		}
	}

	if c.strict {
		keys := make([]string, 0, len(obj))
		for key := range obj {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, ok := known[key]; !ok {
				return domain.NewCodecError(path+"."+key, "no such field", kindOf(obj[key]))
			}
		}
	}
	return nil
}

type unionCodec struct {
	plain
	options []domain.Codec
}

// Union accepts a value matching any option, tried in order.
func Union(options ...domain.Codec) domain.Codec {
	c := &unionCodec{options: options}
	c.self = c
	return c
}

func (c *unionCodec) Describe() string {
	parts := make([]string, len(c.options))
	for i, o := range c.options {
		parts[i] = o.Describe()
	}
	return strings.Join(parts, " | ")
}

func (c *unionCodec) validateAt(v any, path string) error {
	for _, option := range c.options {
		if validateChild(option, v, path) == nil {
			return nil
		}
	}
	return mismatch(c, path, v)
}

func Nullable(c domain.Codec) domain.Codec {
	return Union(c, Null())
}
