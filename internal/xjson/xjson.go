package xjson

import (
	"bytes"
	stdjson "encoding/json"

	gjson "github.com/goccy/go-json"
)

// Marshal/Unmarshal wrappers to allow a single import site to switch
// between standard encoding/json and goccy/go-json without touching callers.

func Marshal(v interface{}) ([]byte, error) {
	return gjson.Marshal(v)
}

func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gjson.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v interface{}) error {
	return gjson.Unmarshal(data, v)
}

// UnmarshalStrict rejects object keys that have no matching struct field.
func UnmarshalStrict(data []byte, v interface{}) error {
	dec := gjson.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Normalize converts v into its plain JSON shape (map[string]interface{},
// []interface{}, float64, string, bool, nil). Map keys come out sorted when
// the result is marshalled again, which keeps hashes over it stable.
func Normalize(v interface{}) (interface{}, error) {
	raw, err := gjson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := gjson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RawMessage is kept compatible with encoding/json's RawMessage type.
type RawMessage = stdjson.RawMessage
