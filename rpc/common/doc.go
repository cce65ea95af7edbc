// Package common provides core data structures and utilities shared across
// the ddbx RPC system. It defines the wire protocol, configuration structures
// and the logger setup used by other packages.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. A dispatch request
//     carries the operation id, the exchange pattern and the input section of an
//     envelope; a response carries the response section or the error with its
//     ddb.RetCode, so the client can rebuild a *ddb.Error.
//
//   - Header codec: EncodeSection / DecodeSection turn envelope headers into
//     WireHeader values tagged with their Go type. Attribute maps and request
//     parameters travel as DynamoDB JSON, so the receiving side rebuilds exactly
//     the types the commands expect.
//
//   - ServerConfig: Configuration of the server: shards (id -> table and default
//     operation), store backend, table bootstrap defaults, network and logging.
//
//   - ClientConfig: Configuration for client components, controlling connection
//     parameters, timeouts, and retry behavior.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging facade while providing consistent formatting across the application.
package common
