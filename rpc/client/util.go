package client

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/ddbx/lib/ddb"
	"github.com/ValentinKolb/ddbx/rpc/common"
	"github.com/ValentinKolb/ddbx/rpc/serializer"
	"github.com/ValentinKolb/ddbx/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc/client")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a shard ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// Error responses are returned as the *ddb.Error the server reported, transport and
// serialization failures as ddb.RetCOperationFailed
func invokeRPCRequest(ctx context.Context, shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, rpcError("failed to serialize request", err)
	}

	// Send the request
	respBytes, err := transport.Send(ctx, shardId, reqBytes)
	if err != nil {
		return nil, rpcError("request failed", err)
	}

	// Deserialize the response
	resp := &common.Message{}
	err = serializer.Deserialize(respBytes, resp)
	if err != nil {
		return nil, rpcError("failed to deserialize response", err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError {
		return nil, resp.AsError()
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != common.MsgTSuccess {
		return nil, ddb.NewError(ddb.RetCOperationFailed, fmt.Sprintf("RPC - Unexpected message type: %s", resp.MsgType))
	}

	// Return the response
	return resp, nil
}

func rpcError(msg string, err error) *ddb.Error {
	return &ddb.Error{
		Code: ddb.RetCOperationFailed,
		Msg:  "RPC - " + msg,
		Err:  err,
	}
}
