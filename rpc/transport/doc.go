// Package transport defines the interfaces for RPC communication between the
// ddbx CLI and the ddbx server. It provides a common contract that all transport
// implementations must fulfill, so the server and client are protocol-agnostic.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Supporting shard-based request routing
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and routes them to appropriate handlers.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
// Implementations: http (HTTP/1.1, also serves the Prometheus metrics) and socket
// (framed requests over tcp or unix domain sockets).
package transport
