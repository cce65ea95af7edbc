// Package server implements the RPC server of ddbx. It owns the store client,
// maps shard ids to command configurations and runs incoming envelopes through
// the command dispatcher.
//
// The package focuses on:
//   - Server-side RPC request handling for dispatched envelopes
//   - Adapter pattern to decouple the command set from RPC mechanisms
//   - Creating the store client from the configured backend (aws, memory, badger)
//   - Optional table bootstrap for every shard on startup
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a ddb.Client.
//
//   - NewDispatchServerAdapter: Factory function creating the adapter that decodes
//     the envelope, runs it through the dispatcher and encodes the response section.
//     Every dispatch is counted (ddbx_dispatch_total by shard, operation and return
//     code) and timed (ddbx_dispatch_duration_seconds) in the VictoriaMetrics default set.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Table: "Orders"},
//	    {ShardID: 200, Table: "Events", Operation: "Query"},
//	  },
//	  Backend:       common.StoreBackendBadger,
//	  DataDir:       "./data",
//	  CreateTables:  true,
//	  Endpoint:      "0.0.0.0:8080",
//	  MetricsPath:   "/metrics",
//	  TimeoutSecond: 5,
//	  LogLevel:      "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  http.NewHttpServerTransport(),
//	  serializer.NewAvroSerializer(),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed with its own envelope.
//	Serve is not thread-safe and should be called only once.
package server
