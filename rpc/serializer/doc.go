// Package serializer provides message serialization for the ddbx RPC system.
// It defines a common interface and multiple implementations for serializing
// and deserializing messages between client and server components.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - avroSerializerImpl: Avro binary encoding of the message record (goavro). Compact
//     and schema checked, recommended for production use.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     or interoperability with other systems. Header values stay readable
//     (DynamoDB JSON for attribute maps).
//
//   - gobSerializerImpl: Implementation using Go's built-in gob encoding, offering
//     good compatibility with Go's type system but with larger serialized sizes.
//
// Header values are encoded by the header codec of the common package before they
// reach a serializer, so every serializer only deals with the flat Message struct.
//
// Thread Safety:
//
//	All serializer implementations are stateless (the Avro codec is immutable) and
//	safe for concurrent use across multiple goroutines without additional synchronization.
//
// Usage:
//
//	Serializers are typically created once and reused throughout the application:
//
//	  serializer := serializer.NewAvroSerializer()
//	  data, err := serializer.Serialize(message)
//	  // ... send data ...
//	  var receivedMsg common.Message
//	  err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
