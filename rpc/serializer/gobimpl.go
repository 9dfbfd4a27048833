package serializer

import (
	"bytes"
	"encoding/gob"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format
// for any wire message type T.
func NewGOBSerializer[T any]() IRPCSerializer[T] {
	return &gobSerializerImpl[T]{}
}

type gobSerializerImpl[T any] struct{}

func (g gobSerializerImpl[T]) Serialize(msg T) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl[T]) Deserialize(b []byte, msg *T) error {
	buf := bytes.NewBuffer(b)
	dec := gob.NewDecoder(buf)
	return dec.Decode(msg)
}
