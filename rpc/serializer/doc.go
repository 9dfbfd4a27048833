// Package serializer provides message serialization for the control-plane
// RPC surface and the flood protocol. It defines a common generic
// interface and two implementations for encoding and decoding messages
// between client, server and peer.
//
// Key Components:
//
//   - IRPCSerializer[T]: Core interface every serializer implementation
//     satisfies, parameterized over the wire message type (common.Message
//     for the control plane, common.FloodMessage for the flood protocol).
//
//   - jsonSerializerImpl: JSON encoding, useful for debugging or
//     interoperability with other systems.
//
//   - gobSerializerImpl: Go's built-in gob encoding, offering good
//     compatibility with Go's type system.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent
//	use across multiple goroutines without additional synchronization.
//
// Usage:
//
//	ser := serializer.NewJSONSerializer[common.Message]()
//	data, err := ser.Serialize(msg)
//	var received common.Message
//	err = ser.Deserialize(data, &received)
package serializer
