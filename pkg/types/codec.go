package types

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes v with the canonical encoding used for signing,
// the wire and storage. Struct fields are written in declaration order
// so equal values always produce equal bytes.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer

	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)

	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "encoding")
	}

	return buf.Bytes(), nil
}

func Decode(b []byte, v interface{}) error {
	if err := msgpack.Unmarshal(b, v); err != nil {
		return errors.Wrap(err, "decoding")
	}

	return nil
}
