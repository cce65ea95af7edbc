package server

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/ddbx/lib/ddb"
	"github.com/ValentinKolb/ddbx/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

// NewDispatchServerAdapter creates the adapter that runs envelopes through the command dispatcher.
// A timeout > 0 bounds every dispatched command.
func NewDispatchServerAdapter(shardId uint64, timeout time.Duration) IRPCServerAdapter {
	return &dispatchServerAdapter{
		shardId:    shardId,
		timeout:    timeout,
		dispatcher: ddb.NewDispatcher(),
	}
}

type dispatchServerAdapter struct {
	shardId    uint64
	timeout    time.Duration
	dispatcher *ddb.Dispatcher
}

func (adapter *dispatchServerAdapter) Handle(ctx context.Context, req *common.Message, client ddb.Client, config ddb.Configuration) *common.Message {
	// Check for nil client
	if client == nil {
		return common.NewErrorResponse(ddb.NewError(ddb.RetCOperationFailed, "handler: store client is nil"))
	}

	if req.MsgType != common.MsgTDispatch {
		return common.NewErrorResponse(ddb.NewError(ddb.RetCOperationFailed,
			fmt.Sprintf("RPC DispatchAdapter - Unsupported message type: %s", req.MsgType)))
	}

	env, err := req.Envelope()
	if err != nil {
		return common.NewErrorResponse(&ddb.Error{
			Code: ddb.RetCOperationFailed,
			Msg:  "failed to decode envelope",
			Err:  err,
		})
	}

	if adapter.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, adapter.timeout)
		defer cancel()
	}

	start := time.Now()

	// The operation named in the request wins over the envelope and the configuration
	opName := "unknown"
	if req.Operation != "" {
		err = adapter.dispatcher.Dispatch(ctx, req.Operation, client, config, env)
		if op, parseErr := ddb.ParseOperation(req.Operation); parseErr == nil {
			opName = op.String()
		}
	} else {
		err = adapter.dispatcher.DispatchEnvelope(ctx, client, config, env)
		if op, opErr := ddb.DetermineOperation(env, config); opErr == nil {
			opName = op.String()
		}
	}

	adapter.record(opName, err, start)

	if err != nil {
		Logger.Debugf("shard %d: %s failed: %v", adapter.shardId, opName, err)
	} else {
		Logger.Debugf("shard %d: %s took %s", adapter.shardId, opName, time.Since(start))
	}

	return common.NewDispatchResponse(env, err)
}

// record updates the dispatch metrics of the shard
func (adapter *dispatchServerAdapter) record(opName string, err error, start time.Time) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`ddbx_dispatch_total{shard="%d",operation=%q,code=%q}`,
		adapter.shardId, opName, ddb.CodeOf(err))).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`ddbx_dispatch_duration_seconds{shard="%d",operation=%q}`,
		adapter.shardId, opName)).UpdateDuration(start)
}
