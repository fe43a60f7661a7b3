package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/xjson"
)

// shape is implemented by every codec in this package. validateAt checks a
// value already in plain JSON shape and reports failures at path.
type shape interface {
	domain.Codec
	validateAt(v any, path string) error
}

// plain is embedded by codecs whose values are plain JSON. It provides
// Validate, Encode, Decode and Version in terms of the outer shape.
type plain struct {
	self    shape
	version string
}

func (p plain) Version() string {
	if p.version != "" {
		return p.version
	}
	return describeVersion(p.self.Describe())
}

func (p plain) Validate(v any) error {
	normalized, err := normalize(v, p.self.Describe())
	if err != nil {
		return err
	}
	return p.self.validateAt(normalized, "$")
}

func (p plain) Encode(v any) (json.RawMessage, error) {
	normalized, err := normalize(v, p.self.Describe())
	if err != nil {
		return nil, err
	}
	if err := p.self.validateAt(normalized, "$"); err != nil {
		return nil, err
	}
	raw, err := xjson.Marshal(normalized)
	if err != nil {
		return nil, domain.NewCodecError("$", p.self.Describe(), err.Error())
	}
	return raw, nil
}

func (p plain) Decode(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, domain.NewCodecError("$", p.self.Describe(), "empty document")
	}
	var v any
	if err := xjson.Unmarshal(raw, &v); err != nil {
		ce := domain.NewCodecError("$", p.self.Describe(), "invalid JSON")
		ce.Cause = err
		return nil, ce
	}
	if err := p.self.validateAt(v, "$"); err != nil {
		return nil, err
	}
	return v, nil
}

func describeVersion(describe string) string {
	sum := sha256.Sum256([]byte(describe))
	return hex.EncodeToString(sum[:6])
}

func normalize(v any, expected string) (any, error) {
	switch v.(type) {
	case nil, string, float64, bool:
		return v, nil
	}
	out, err := xjson.Normalize(v)
	if err != nil {
		ce := domain.NewCodecError("$", expected, fmt.Sprintf("%T", v))
		ce.Cause = err
		return nil, ce
	}
	return out, nil
}

func kindOf(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		if t == math.Trunc(t) {
			return "integer"
		}
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func mismatch(c domain.Codec, path string, v any) error {
	return domain.NewCodecError(path, c.Describe(), kindOf(v))
}

type stringCodec struct{ plain }

func String() domain.Codec {
	c := &stringCodec{}
	c.self = c
	return c
}

func (c *stringCodec) Describe() string { return "string" }

func (c *stringCodec) validateAt(v any, path string) error {
	if _, ok := v.(string); !ok {
		return mismatch(c, path, v)
	}
	return nil
}

type numberCodec struct{ plain }

func Number() domain.Codec {
	c := &numberCodec{}
	c.self = c
	return c
}

func (c *numberCodec) Describe() string { return "number" }

func (c *numberCodec) validateAt(v any, path string) error {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return mismatch(c, path, v)
	}
	return nil
}

type integerCodec struct{ plain }

func Integer() domain.Codec {
	c := &integerCodec{}
	c.self = c
	return c
}

func (c *integerCodec) Describe() string { return "integer" }

// maxExactInteger is the largest magnitude a JSON number holds without
// rounding once decoded. Anything at or past 2^53 may already have been
// rounded, so it is rejected instead of stored imprecisely.
const maxExactInteger = 1<<53 - 1

func (c *integerCodec) validateAt(v any, path string) error {
	f, ok := v.(float64)
	if !ok || math.IsInf(f, 0) || f != math.Trunc(f) {
		return mismatch(c, path, v)
	}
	if math.Abs(f) > maxExactInteger {
		return domain.NewCodecError(path, c.Describe(), "integer out of exact range")
	}
	return nil
}

type booleanCodec struct{ plain }

func Boolean() domain.Codec {
	c := &booleanCodec{}
	c.self = c
	return c
}

func (c *booleanCodec) Describe() string { return "boolean" }

func (c *booleanCodec) validateAt(v any, path string) error {
	if _, ok := v.(bool); !ok {
		return mismatch(c, path, v)
	}
	return nil
}

type nullCodec struct{ plain }

func Null() domain.Codec {
	c := &nullCodec{}
	c.self = c
	return c
}

func (c *nullCodec) Describe() string { return "null" }

func (c *nullCodec) validateAt(v any, path string) error {
	if v != nil {
		return mismatch(c, path, v)
	}
	return nil
}

type anyCodec struct{ plain }

// Any accepts every JSON value.
func Any() domain.Codec {
	c := &anyCodec{}
	c.self = c
	return c
}

func (c *anyCodec) Describe() string { return "any" }

func (c *anyCodec) validateAt(any, string) error { return nil }

type versioned struct {
	domain.Codec
	version string
}

func (v versioned) Version() string { return v.version }

// WithVersion pins the version reported by c, which otherwise derives from
// its description.
func WithVersion(c domain.Codec, version string) domain.Codec {
	if s, ok := c.(shape); ok {
		return versionedShape{shape: s, version: version}
	}
	return versioned{Codec: c, version: version}
}

type versionedShape struct {
	shape
	version string
}

func (v versionedShape) Version() string { return v.version }
