package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is a single member of a canonical signing payload.
type Field struct {
	Key   string
	Value interface{}
}

// CanonicalFields is an ordered set of fields. The order is part of the wire
// contract: the verifier rebuilds the same sequence and compares bytes.
type CanonicalFields []Field

// Encode renders the fields as a compact JSON object, members in slice order.
func (f CanonicalFields) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Key)
		if err != nil {
			return nil, fmt.Errorf("encode key %q: %w", field.Key, err)
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, fmt.Errorf("encode value of %q: %w", field.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Keys returns the field names in encoding order.
func (f CanonicalFields) Keys() []string {
	keys := make([]string, len(f))
	for i, field := range f {
		keys[i] = field.Key
	}
	return keys
}
