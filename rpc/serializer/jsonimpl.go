package serializer

import "encoding/json"

// NewJSONSerializer creates a new serializer using json encoding for any
// wire message type T (common.Message or common.FloodMessage).
func NewJSONSerializer[T any]() IRPCSerializer[T] {
	return &jsonSerializerImpl[T]{}
}

type jsonSerializerImpl[T any] struct{}

func (j jsonSerializerImpl[T]) Serialize(msg T) ([]byte, error) {
	return json.Marshal(msg)
}

func (j jsonSerializerImpl[T]) Deserialize(b []byte, msg *T) error {
	return json.Unmarshal(b, msg)
}
