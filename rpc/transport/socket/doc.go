// Package socket implements the RPC transport over stream sockets: tcp for remote
// servers and unix domain sockets for processes on the same machine.
//
// Requests and responses travel as frames:
//
//	8 bytes shardId | 8 bytes requestID | 4 bytes length | payload
//
// All values are big endian. The request id lets one connection carry many requests
// at once: the server handles the requests of a connection concurrently (bounded by
// its worker limit) and answers them in any order, the client hands every response
// to the request waiting for its id.
//
// The client balances requests round-robin over ConnectionsPerEndpoint connections per
// endpoint, retries failed requests with exponential backoff and dials a broken
// connection again on its next use. The server reuses read buffers through a sync.Pool
// and closes all connections once the context passed to Listen is done.
package socket
