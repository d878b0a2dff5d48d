package utils

import (
	"bytes"
	"encoding/json"
)

// MarshalOrdered serializes key/value pairs as a JSON object preserving
// the given key order, which encoding/json's map marshalling does not.
func MarshalOrdered(keys []string, get func(string) (any, bool)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, k := range keys {
		v, ok := get(k)
		if !ok {
			continue
		}

		if !first {
			buf.WriteByte(',')
		}
		first = false

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valueBytes, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(valueBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
