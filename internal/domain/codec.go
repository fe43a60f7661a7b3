package domain

import "encoding/json"

// Codec validates and (de)serializes values crossing a storage, transport or
// process boundary. Values are in their plain JSON shape: map[string]any,
// []any, float64, string, bool or nil, unless the codec binds a Go type.
type Codec interface {
	Describe() string
	Version() string
	Validate(v any) error
	Encode(v any) (json.RawMessage, error)
	Decode(raw json.RawMessage) (any, error)
}
