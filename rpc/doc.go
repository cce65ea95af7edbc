// Package rpc exposes the ddbx command set over the network. A server owns the
// store client and runs envelopes sent by clients through the command dispatcher.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures used across the RPC system, including the
//     Message protocol, the header wire codec, configuration structures and logging.
//
//   - transport: Network communication abstractions with an HTTP and a socket
//     (tcp, unix) implementation.
//
//   - serializer: Message serialization with multiple format options (Avro, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: The RPC dispatcher, which runs envelopes on a remote shard.
//
//   - server: RPC server components that handle incoming requests.
package rpc
