package client_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ValentinKolb/ddbx/lib/ddb"
	"github.com/ValentinKolb/ddbx/lib/ddb/local"
	"github.com/ValentinKolb/ddbx/lib/envelope"
	"github.com/ValentinKolb/ddbx/rpc/client"
	"github.com/ValentinKolb/ddbx/rpc/common"
	"github.com/ValentinKolb/ddbx/rpc/serializer"
	"github.com/ValentinKolb/ddbx/rpc/server"
	"github.com/ValentinKolb/ddbx/rpc/transport"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// loopbackTransport connects a client directly to the handler of an in-process server
type loopbackTransport struct {
	ready   chan struct{}
	handler transport.ServerHandleFunc
	sent    int
}

func newLoopback() *loopbackTransport {
	return &loopbackTransport{ready: make(chan struct{})}
}

func (t *loopbackTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *loopbackTransport) Listen(ctx context.Context, _ common.ServerConfig) error {
	close(t.ready)
	<-ctx.Done()
	return nil
}

func (t *loopbackTransport) Connect(common.ClientConfig) error { return nil }

func (t *loopbackTransport) Send(ctx context.Context, shardId uint64, req []byte) ([]byte, error) {
	<-t.ready
	t.sent++
	return t.handler(ctx, shardId, req), nil
}

func (t *loopbackTransport) Close() error { return nil }

func newDispatcher(t *testing.T) (*client.RPCDispatcher, *loopbackTransport) {
	t.Helper()

	store, err := local.New(local.NewMemoryBackend())
	if err != nil {
		t.Fatalf("failed to create local client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	lb := newLoopback()
	s := server.NewRPCServer(common.ServerConfig{
		Shards:        []common.ServerShard{{ShardID: 7, Table: "Orders"}},
		CreateTables:  true,
		TimeoutSecond: 5,
	}, lb, serializer.NewAvroSerializer(), server.WithClient(store))

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve failed: %v", err)
		}
		_ = store.Close()
	})

	d, err := client.NewRPCDispatcher(7, common.ClientConfig{}, lb, serializer.NewAvroSerializer())
	if err != nil {
		t.Fatalf("NewRPCDispatcher failed: %v", err)
	}
	return d, lb
}

func TestRemoteDispatch(t *testing.T) {
	d, _ := newDispatcher(t)
	defer d.Close()
	ctx := context.Background()

	item := map[string]types.AttributeValue{
		"id":  &types.AttributeValueMemberS{Value: "o-1"},
		"qty": &types.AttributeValueMemberN{Value: "2"},
	}
	key := map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "o-1"}}

	env := envelope.NewWithHeaders(envelope.PatternInOut, map[string]any{ddb.HeaderItem: item})
	if err := d.Dispatch(ctx, "PutItem", env); err != nil {
		t.Fatalf("PutItem failed: %v", err)
	}

	// InOut: results land in the output section, the input is untouched
	env = envelope.NewWithHeaders(envelope.PatternInOut, map[string]any{
		ddb.HeaderOperation: ddb.OpGetItem,
		ddb.HeaderKey:       key,
	})
	if err := d.DispatchEnvelope(ctx, env); err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	attrs, found, _ := envelope.Header[map[string]types.AttributeValue](env.Out(), ddb.HeaderAttributes)
	if !found || attrs["qty"].(*types.AttributeValueMemberN).Value != "2" {
		t.Errorf("Unexpected GetItem result: %v", attrs)
	}
	if env.In().HasHeader(ddb.HeaderAttributes) {
		t.Error("Result must not be written to the input section")
	}

	// InOnly: results land in the input section
	env = envelope.New(envelope.PatternInOnly)
	if err := d.Dispatch(ctx, "Scan", env); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if env.HasOut() {
		t.Error("InOnly envelope must not get an output section")
	}
	if count, _, _ := envelope.Header[int32](env.In(), ddb.HeaderCount); count != 1 {
		t.Errorf("Expected 1 item, got %d", count)
	}
	items, _, _ := envelope.Header[[]map[string]types.AttributeValue](env.In(), ddb.HeaderItems)
	if len(items) != 1 {
		t.Errorf("Expected 1 item, got %v", items)
	}
}

func TestRemoteDispatchKeepsOutputSection(t *testing.T) {
	d, _ := newDispatcher(t)
	defer d.Close()
	ctx := context.Background()

	key := map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "o-2"}}
	env := envelope.NewWithHeaders(envelope.PatternInOut, map[string]any{
		ddb.HeaderItem: map[string]types.AttributeValue{
			"id":  &types.AttributeValueMemberS{Value: "o-2"},
			"qty": &types.AttributeValueMemberN{Value: "4"},
		},
	})
	if err := d.Dispatch(ctx, "PutItem", env); err != nil {
		t.Fatalf("PutItem failed: %v", err)
	}

	// results are added to an existing output section, as with local dispatch
	env = envelope.NewWithHeaders(envelope.PatternInOut, map[string]any{ddb.HeaderKey: key})
	out := envelope.NewMessage()
	out.SetHeader("TraceId", "t-1")
	env.SetOut(out)

	if err := d.Dispatch(ctx, "GetItem", env); err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if trace, _, _ := envelope.Header[string](env.Out(), "TraceId"); trace != "t-1" {
		t.Errorf("Expected TraceId t-1 in the output section, got %q", trace)
	}
	if !env.Out().HasHeader(ddb.HeaderAttributes) {
		t.Error("Expected DdbAttributes in the output section")
	}
	if env.Out().HasHeader(ddb.HeaderKey) {
		t.Error("Input headers must not be copied into an existing output section")
	}
}

func TestRemoteDispatchLocalHeaders(t *testing.T) {
	d, lb := newDispatcher(t)
	defer d.Close()
	ctx := context.Background()

	// headers the wire codec does not know stay with the caller
	for _, pattern := range []envelope.Pattern{envelope.PatternInOnly, envelope.PatternInOut} {
		env := envelope.NewWithHeaders(pattern, map[string]any{"Retries": []int{1, 2}})
		if err := d.Dispatch(ctx, "Scan", env); err != nil {
			t.Fatalf("%s: Scan failed: %v", pattern, err)
		}
		section := env.In()
		if pattern == envelope.PatternInOut {
			section = env.Out()
		}
		if retries, _, _ := envelope.Header[[]int](section, "Retries"); len(retries) != 2 {
			t.Errorf("%s: Expected the Retries header to be kept, got %v", pattern, retries)
		}
		if !section.HasHeader(ddb.HeaderCount) {
			t.Errorf("%s: Expected the scan result", pattern)
		}
	}

	// an unsendable Ddb header fails like a local type mismatch, without a request
	sent := lb.sent
	env := envelope.NewWithHeaders(envelope.PatternInOut, map[string]any{ddb.HeaderLimit: []int{5}})
	err := d.Dispatch(ctx, "Scan", env)
	var e *ddb.Error
	if !errors.As(err, &e) || e.Code != ddb.RetCTypeMismatch || e.Header != ddb.HeaderLimit {
		t.Errorf("Expected TypeMismatch for %s, got %v", ddb.HeaderLimit, err)
	}
	if lb.sent != sent {
		t.Error("Request must not be sent")
	}
}

func TestRemoteErrors(t *testing.T) {
	d, lb := newDispatcher(t)
	defer d.Close()
	ctx := context.Background()

	// unknown operations never reach the server
	env := envelope.New(envelope.PatternInOut)
	if err := d.Dispatch(ctx, "CreateTable", env); !errors.Is(err, ddb.ErrUnknownOperation) {
		t.Errorf("Expected UnknownOperation, got %v", err)
	}
	if lb.sent != 0 {
		t.Errorf("Expected no request, got %d", lb.sent)
	}

	err := d.Dispatch(ctx, "DeleteItem", env)
	var e *ddb.Error
	if !errors.As(err, &e) || e.Code != ddb.RetCMissingParameter || e.Header != ddb.HeaderKey {
		t.Errorf("Expected MissingParameter for DdbKey, got %v", err)
	}
	if env.HasOut() {
		t.Error("Failed commands must not produce an output section")
	}

	// a Ddb header the wire cannot carry fails before sending
	env = envelope.NewWithHeaders(envelope.PatternInOut, map[string]any{ddb.HeaderStartKey: struct{}{}})
	if err = d.Dispatch(ctx, "Scan", env); !errors.Is(err, ddb.ErrTypeMismatch) {
		t.Errorf("Expected TypeMismatch, got %v", err)
	}

	cond := envelope.NewWithHeaders(envelope.PatternInOut, map[string]any{
		ddb.HeaderKey: map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "o-9"}},
		ddb.HeaderUpdateCondition: map[string]types.ExpectedAttributeValue{
			"id": {ComparisonOperator: types.ComparisonOperatorNotNull},
		},
	})
	if err = d.Dispatch(ctx, "DeleteItem", cond); !errors.Is(err, ddb.ErrConditionFailed) {
		t.Errorf("Expected ConditionFailed, got %v", err)
	}
}
