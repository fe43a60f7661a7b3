package codec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/xjson"
)

type selfValidator interface {
	Validate() error
}

// StructCodec binds values to the Go type T. Unknown JSON keys are rejected
// and T's own Validate method, when present, runs after decoding. Decode
// returns a T.
type StructCodec[T any] struct {
	version string
}

func Struct[T any]() *StructCodec[T] {
	return &StructCodec[T]{}
}

func (c *StructCodec[T]) WithVersion(version string) *StructCodec[T] {
	return &StructCodec[T]{version: version}
}

func (c *StructCodec[T]) Describe() string {
	var zero T
	return "struct " + reflect.TypeOf(&zero).Elem().String()
}

func (c *StructCodec[T]) Version() string {
	if c.version != "" {
		return c.version
	}
	var zero T
	return describeVersion(c.Describe() + typeSignature(reflect.TypeOf(&zero).Elem()))
}

// typeSignature lists the fields of a struct type so that a changed layout
// yields a new version.
func typeSignature(t reflect.Type) string {
	if t.Kind() != reflect.Struct {
		return t.String()
	}
	sig := "{"
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		sig += fmt.Sprintf("%s %s %q;", f.Name, f.Type.String(), f.Tag)
	}
	return sig + "}"
}

func (c *StructCodec[T]) Validate(v any) error {
	_, err := c.bind(v, "$")
	return err
}

func (c *StructCodec[T]) validateAt(v any, path string) error {
	_, err := c.bind(v, path)
	return err
}

func (c *StructCodec[T]) Encode(v any) (json.RawMessage, error) {
	bound, err := c.bind(v, "$")
	if err != nil {
		return nil, err
	}
	raw, err := xjson.Marshal(bound)
	if err != nil {
		return nil, domain.NewCodecError("$", c.Describe(), err.Error())
	}
	return raw, nil
}

func (c *StructCodec[T]) Decode(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, domain.NewCodecError("$", c.Describe(), "empty document")
	}
	return c.decode(raw, "$")
}

func (c *StructCodec[T]) bind(v any, path string) (T, error) {
	switch t := v.(type) {
	case T:
		return t, c.check(t, path)
	case *T:
		if t != nil {
			return *t, c.check(*t, path)
		}
	}

	raw, err := xjson.Marshal(v)
	if err != nil {
		var zero T
		ce := domain.NewCodecError(path, c.Describe(), fmt.Sprintf("%T", v))
		ce.Cause = err
		return zero, ce
	}
	return c.decode(raw, path)
}

func (c *StructCodec[T]) decode(raw []byte, path string) (T, error) {
	var out T
	if err := xjson.UnmarshalStrict(raw, &out); err != nil {
		var decoded any
		got := "invalid JSON"
		if xjson.Unmarshal(raw, &decoded) == nil {
			got = kindOf(decoded)
		}
		ce := domain.NewCodecError(path, c.Describe(), got)
		ce.Cause = err
		return out, ce
	}
	return out, c.check(out, path)
}

func (c *StructCodec[T]) check(v T, path string) error {
	var sv selfValidator
	if x, ok := any(v).(selfValidator); ok {
		sv = x
	} else if x, ok := any(&v).(selfValidator); ok {
		sv = x
	}
	if sv == nil {
		return nil
	}
	if err := sv.Validate(); err != nil {
		ce := domain.NewCodecError(path, c.Describe(), "invalid value")
		ce.Cause = err
		return ce
	}
	return nil
}
