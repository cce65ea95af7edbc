package client

import (
	"context"
	"errors"

	"github.com/ValentinKolb/ddbx/lib/ddb"
	"github.com/ValentinKolb/ddbx/lib/envelope"
	"github.com/ValentinKolb/ddbx/rpc/common"
	"github.com/ValentinKolb/ddbx/rpc/serializer"
	"github.com/ValentinKolb/ddbx/rpc/transport"
)

// NewRPCDispatcher creates a new RPC dispatcher
// The function takes a shard ID, a config, a transport and a serializer as parameters
// Commands run on the server against the store client and configuration of the shard
func NewRPCDispatcher(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCDispatcher, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Return the RPC dispatcher
	return &RPCDispatcher{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

// RPCDispatcher runs envelopes on a remote shard. Results and errors are applied
// to the envelope the same way the local dispatcher applies them.
type RPCDispatcher struct {
	rpcClientAdapter
}

// Dispatch runs the command registered under operationID on the shard.
// Unknown operation ids fail before any request is sent.
func (d *RPCDispatcher) Dispatch(ctx context.Context, operationID string, env *envelope.Envelope) error {
	if _, err := ddb.ParseOperation(operationID); err != nil {
		return err
	}
	return d.invoke(ctx, operationID, env)
}

// DispatchEnvelope runs the operation named by the envelope, falling back to the
// default operation of the shard.
func (d *RPCDispatcher) DispatchEnvelope(ctx context.Context, env *envelope.Envelope) error {
	return d.invoke(ctx, "", env)
}

// Close closes the underlying transport
func (d *RPCDispatcher) Close() error {
	return d.transport.Close()
}

func (d *RPCDispatcher) invoke(ctx context.Context, operationID string, env *envelope.Envelope) error {
	req, err := common.NewDispatchRequest(operationID, env)
	var ddbErr *ddb.Error
	if errors.As(err, &ddbErr) {
		return ddbErr
	}
	if err != nil {
		return rpcError("failed to encode envelope", err)
	}

	resp, err := invokeRPCRequest(ctx, d.shardId, req, d.transport, d.serializer)
	if err != nil {
		return err
	}

	section := envelope.NewMessage()
	if err = common.DecodeSection(section, resp.Headers, resp.Body); err != nil {
		return rpcError("failed to decode response", err)
	}

	// the server wrote into the existing output section or a copy of the input
	sent := env.In()
	if env.IsResponseCapable() && env.HasOut() {
		sent = env.Out()
	}
	common.RestoreSection(section, sent)

	if env.IsResponseCapable() {
		env.SetOut(section)
	} else {
		env.In().CopyFrom(section)
	}
	return nil
}
