// Package client implements the RPC client of the ddbx server.
//
// The package focuses on:
//   - Running envelopes on a remote shard as if they were dispatched locally
//   - Integration with the transport and serialization layers
//   - Rebuilding the *ddb.Error of failed commands from the wire return code
//
// Key Components:
//
//   - NewRPCDispatcher: Factory function that creates a dispatcher forwarding
//     envelopes to a shard of the server via the configured transport layer.
//     The response section written by the remote command becomes the output
//     section of the envelope (or replaces the input section for InOnly envelopes).
//
// Usage Example:
//
//	// Configure the client
//	cfg := common.ClientConfig{
//	  Endpoints:     []string{"localhost:8080"},
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	}
//
//	// Create the dispatcher for shard 100
//	d, _ := client.NewRPCDispatcher(100, cfg, http.NewHttpClientTransport(), serializer.NewAvroSerializer())
//
//	env := envelope.NewWithHeaders(envelope.PatternInOut, map[string]any{
//	  ddb.HeaderKey: map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "o-1"}},
//	})
//	if err := d.Dispatch(ctx, "GetItem", env); errors.Is(err, ddb.ErrOperationFailed) {
//	  ...
//	}
//
// Thread Safety:
//
//	The dispatcher is thread-safe and can be used concurrently from multiple
//	goroutines as long as every call uses its own envelope.
package client
