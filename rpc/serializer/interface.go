package serializer

// IRPCSerializer encodes and decodes one wire message type T, shared by
// the control-plane common.Message and the flood common.FloodMessage so
// both ride the same transport/serializer stack.
type IRPCSerializer[T any] interface {
	// Serialize serializes msg into a byte array.
	Serialize(msg T) ([]byte, error)
	// Deserialize decodes b into msg.
	Deserialize(b []byte, msg *T) error
}
