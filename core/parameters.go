package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type Parameter struct {
	Key   string
	Value any
}

// Parameters is a string-keyed map of loosely typed values that keeps insertion order, including
// through JSON encoding. Values are whatever encoding/json produces for an `any`: strings, float64,
// bool, nil, []any, or map[string]any.
type Parameters []Parameter

func (p Parameters) Get(key string) (any, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}

	return nil, false
}

// Set replaces the value of an existing key in place, or appends a new key.
func (p *Parameters) Set(key string, value any) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Value = value
			return
		}
	}

	*p = append(*p, Parameter{Key: key, Value: value})
}

func (p Parameters) Keys() []string {
	keys := make([]string, 0, len(p))
	for _, param := range p {
		keys = append(keys, param.Key)
	}

	return keys
}

func (p Parameters) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, param := range p {
		if i > 0 {
			buf.WriteByte(',')
		}

		k, err := json.Marshal(param.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')

		v, err := json.Marshal(param.Value)
		if err != nil {
			return nil, fmt.Errorf("marshaling parameter %q: %w", param.Key, err)
		}
		buf.Write(v)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

var errParametersNotObject = errors.New("parameters must be a JSON object")

func (p *Parameters) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errParametersNotObject
	}

	params := Parameters{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}

		key, ok := tok.(string)
		if !ok {
			return errParametersNotObject
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decoding parameter %q: %w", key, err)
		}

		params.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*p = params

	return nil
}
