package ddb

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/ValentinKolb/ddbx/lib/envelope"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TestDispatchUnknownOperation checks that unregistered ids never build a command
func TestDispatchUnknownOperation(t *testing.T) {
	built := 0
	counting := make(map[Operation]factory, len(commands))
	for op, create := range commands {
		create := create
		counting[op] = func(c command) Command {
			built++
			return create(c)
		}
	}
	d := &Dispatcher{commands: counting}

	for _, id := range []string{"", "putitem", "CreateTable", "Unknown(0)", "PutItem "} {
		client := &fakeClient{}
		env := envelope.New(envelope.PatternInOut)
		env.In().SetHeader(HeaderItem, key("1"))

		err := d.Dispatch(context.Background(), id, client, Configuration{TableName: "Orders"}, env)
		if !errors.Is(err, ErrUnknownOperation) {
			t.Errorf("Dispatch(%q): expected UnknownOperation, got %v", id, err)
		}
		if len(client.calls) != 0 {
			t.Errorf("Dispatch(%q): client was called: %v", id, client.calls)
		}
	}
	if built != 0 {
		t.Errorf("expected no command to be constructed, got %d", built)
	}
}

// TestDispatchAllOperationsRegistered checks that every named operation has a command
func TestDispatchAllOperationsRegistered(t *testing.T) {
	want := []Operation{
		OpPutItem, OpGetItem, OpDeleteItem, OpUpdateItem, OpQuery,
		OpScan, OpBatchGetItems, OpDescribeTable, OpDeleteTable,
	}
	if got := NewDispatcher().Operations(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Operations() = %v, want %v", got, want)
	}
	for _, op := range want {
		parsed, err := ParseOperation(op.String())
		if err != nil || parsed != op {
			t.Errorf("ParseOperation(%s) = (%v, %v)", op, parsed, err)
		}
	}
}

// TestDispatchPutItemScenario: PutItem on table "Orders" with an item and returned attributes
func TestDispatchPutItemScenario(t *testing.T) {
	item := map[string]types.AttributeValue{"id": n("1"), "qty": n("2")}
	old := map[string]types.AttributeValue{"id": n("1"), "qty": n("1")}

	client := &fakeClient{attributes: old}
	env := envelope.New(envelope.PatternInOut)
	env.In().SetHeader(HeaderItem, item)
	env.In().SetHeader(HeaderReturnValues, "ALL_OLD")

	if err := Dispatch(context.Background(), "PutItem", client, Configuration{TableName: "Orders"}, env); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if aws.ToString(client.put.TableName) != "Orders" {
		t.Errorf("expected table Orders, got %s", aws.ToString(client.put.TableName))
	}
	if !reflect.DeepEqual(client.put.Item, item) {
		t.Errorf("client received wrong item: %v", client.put.Item)
	}
	if client.put.ReturnValues != types.ReturnValueAllOld {
		t.Errorf("expected ReturnValues ALL_OLD, got %s", client.put.ReturnValues)
	}

	attrs, found, err := envelope.Header[map[string]types.AttributeValue](env.Out(), HeaderAttributes)
	if err != nil || !found {
		t.Fatalf("DdbAttributes missing from output: found=%v err=%v", found, err)
	}
	if !reflect.DeepEqual(attrs, old) {
		t.Errorf("DdbAttributes = %v, want %v", attrs, old)
	}
	if env.In().HasHeader(HeaderAttributes) {
		t.Errorf("result must not be written into the input section of an InOut envelope")
	}
}

// TestDispatchGetItemConsistencyFromConfiguration: no header -> configuration default
func TestDispatchGetItemConsistencyFromConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		config *bool
		header any
		want   bool
	}{
		{name: "config false", config: aws.Bool(false), want: false},
		{name: "config true", config: aws.Bool(true), want: true},
		{name: "header wins", config: aws.Bool(false), header: true, want: true},
		{name: "header false wins", config: aws.Bool(true), header: false, want: false},
		{name: "global default", want: DefaultConsistentRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{attributes: key("k1")}
			env := envelope.New(envelope.PatternInOnly)
			env.In().SetHeader(HeaderKey, key("k1"))
			if tt.header != nil {
				env.In().SetHeader(HeaderConsistentRead, tt.header)
			}

			cfg := Configuration{TableName: "Orders", ConsistentRead: tt.config}
			if err := Dispatch(context.Background(), "GetItem", client, cfg, env); err != nil {
				t.Fatalf("Dispatch failed: %v", err)
			}
			if got := aws.ToBool(client.get.ConsistentRead); got != tt.want {
				t.Errorf("ConsistentRead = %v, want %v", got, tt.want)
			}

			// InOnly: result lands in the input section
			if _, found, _ := envelope.Header[map[string]types.AttributeValue](env.In(), HeaderAttributes); !found {
				t.Errorf("DdbAttributes missing from input section")
			}
		})
	}
}

// TestDispatchConditionFailed: conditional update rejected by the store
func TestDispatchConditionFailed(t *testing.T) {
	client := &fakeClient{err: &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}}
	env := envelope.New(envelope.PatternInOut)
	env.In().SetHeader(HeaderKey, key("1"))
	env.In().SetHeader(HeaderUpdateValues, map[string]types.AttributeValueUpdate{
		"qty": {Action: types.AttributeActionPut, Value: n("3")},
	})
	env.In().SetHeader(HeaderUpdateCondition, map[string]types.ExpectedAttributeValue{
		"qty": {Value: n("2")},
	})

	err := Dispatch(context.Background(), "UpdateItem", client, Configuration{TableName: "Orders"}, env)
	if !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("expected ConditionFailed, got %v", err)
	}
	if errors.Is(err, ErrOperationFailed) {
		t.Errorf("condition failure must not be reported as OperationFailed")
	}
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		t.Errorf("expected the client error to be preserved as cause")
	}
	if len(client.update.Expected) != 1 {
		t.Errorf("condition was not passed to the client")
	}
}

// TestDispatchOperationFailed: any other client error is wrapped
func TestDispatchOperationFailed(t *testing.T) {
	cause := errors.New("connection reset")
	client := &fakeClient{err: cause}
	env := envelope.New(envelope.PatternInOut)
	env.In().SetHeader(HeaderKey, key("1"))

	err := Dispatch(context.Background(), "DeleteItem", client, Configuration{TableName: "Orders"}, env)
	if !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("expected OperationFailed, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be preserved")
	}
	if CodeOf(err) != RetCOperationFailed {
		t.Errorf("CodeOf = %s", CodeOf(err))
	}
}

// TestDispatchMissingParameters: no client call when required parameters are absent
func TestDispatchMissingParameters(t *testing.T) {
	tests := []struct {
		op      string
		headers map[string]any
		config  Configuration
		missing string
	}{
		{op: "PutItem", headers: map[string]any{HeaderItem: key("1")}, missing: HeaderTableName},
		{op: "PutItem", config: Configuration{TableName: "T"}, missing: HeaderItem},
		{op: "GetItem", config: Configuration{TableName: "T"}, missing: HeaderKey},
		{op: "DeleteItem", config: Configuration{TableName: "T"}, missing: HeaderKey},
		{op: "UpdateItem", headers: map[string]any{HeaderKey: key("1")}, config: Configuration{TableName: "T"}, missing: HeaderUpdateValues},
		{op: "Query", config: Configuration{TableName: "T"}, missing: HeaderKeyConditions},
		{op: "Scan", missing: HeaderTableName},
		{op: "BatchGetItems", config: Configuration{TableName: "T"}, missing: HeaderBatchItems},
		{op: "DescribeTable", missing: HeaderTableName},
		{op: "DeleteTable", missing: HeaderTableName},
	}

	for _, tt := range tests {
		t.Run(tt.op+"/"+tt.missing, func(t *testing.T) {
			client := &fakeClient{}
			env := envelope.NewWithHeaders(envelope.PatternInOut, tt.headers)

			err := Dispatch(context.Background(), tt.op, client, tt.config, env)
			if !errors.Is(err, ErrMissingParameter) {
				t.Fatalf("expected MissingParameter, got %v", err)
			}
			var e *Error
			if errors.As(err, &e) && e.Header != tt.missing {
				t.Errorf("expected missing header %s, got %s", tt.missing, e.Header)
			}
			if len(client.calls) != 0 {
				t.Errorf("client was called: %v", client.calls)
			}
			if env.HasOut() {
				t.Errorf("failed command must not create a response section")
			}
		})
	}
}

// TestDispatchTypeMismatch: wrongly typed headers fail before the client call
func TestDispatchTypeMismatch(t *testing.T) {
	tests := []struct {
		op     string
		header string
		value  any
	}{
		{op: "GetItem", header: HeaderAttributeNames, value: "single"},
		{op: "GetItem", header: HeaderKey, value: "1"},
		{op: "GetItem", header: HeaderConsistentRead, value: "true"},
		{op: "GetItem", header: HeaderTableName, value: 42},
		{op: "PutItem", header: HeaderReturnValues, value: true},
		{op: "PutItem", header: HeaderUpdateCondition, value: map[string]types.AttributeValue{}},
		{op: "Query", header: HeaderLimit, value: 10},
	}

	for _, tt := range tests {
		t.Run(tt.op+"/"+tt.header, func(t *testing.T) {
			client := &fakeClient{}
			env := envelope.NewWithHeaders(envelope.PatternInOut, map[string]any{
				HeaderKey:           key("1"),
				HeaderItem:          key("1"),
				HeaderKeyConditions: map[string]types.Condition{},
			})
			env.In().SetHeader(tt.header, tt.value)

			err := Dispatch(context.Background(), tt.op, client, Configuration{TableName: "T"}, env)
			if !errors.Is(err, ErrTypeMismatch) {
				t.Fatalf("expected TypeMismatch, got %v", err)
			}
			if !errors.Is(err, envelope.ErrTypeMismatch) {
				t.Errorf("expected envelope.ErrTypeMismatch as cause")
			}
			if len(client.calls) != 0 {
				t.Errorf("client was called: %v", client.calls)
			}
		})
	}
}

// TestDispatchEnvelopeOperation checks header vs configuration resolution of the operation
func TestDispatchEnvelopeOperation(t *testing.T) {
	t.Run("header wins", func(t *testing.T) {
		client := &fakeClient{}
		env := envelope.New(envelope.PatternInOut)
		env.In().SetHeader(HeaderOperation, "DeleteItem")
		env.In().SetHeader(HeaderKey, key("1"))
		cfg := Configuration{TableName: "T", Operation: OpGetItem}

		if err := DispatchEnvelope(context.Background(), client, cfg, env); err != nil {
			t.Fatalf("DispatchEnvelope failed: %v", err)
		}
		if !reflect.DeepEqual(client.calls, []string{"DeleteItem"}) {
			t.Errorf("calls = %v", client.calls)
		}
	})

	t.Run("typed header", func(t *testing.T) {
		env := envelope.New(envelope.PatternInOut)
		env.In().SetHeader(HeaderOperation, OpScan)
		op, err := DetermineOperation(env, Configuration{})
		if err != nil || op != OpScan {
			t.Errorf("DetermineOperation = (%v, %v)", op, err)
		}
	})

	t.Run("configuration fallback", func(t *testing.T) {
		client := &fakeClient{}
		env := envelope.New(envelope.PatternInOut)
		env.In().SetHeader(HeaderKey, key("1"))
		cfg := Configuration{TableName: "T", Operation: OpGetItem}

		if err := DispatchEnvelope(context.Background(), client, cfg, env); err != nil {
			t.Fatalf("DispatchEnvelope failed: %v", err)
		}
		if !reflect.DeepEqual(client.calls, []string{"GetItem"}) {
			t.Errorf("calls = %v", client.calls)
		}
	})

	t.Run("missing", func(t *testing.T) {
		env := envelope.New(envelope.PatternInOut)
		if _, err := DetermineOperation(env, Configuration{}); !errors.Is(err, ErrMissingParameter) {
			t.Errorf("expected MissingParameter, got %v", err)
		}
	})

	t.Run("unknown header", func(t *testing.T) {
		env := envelope.New(envelope.PatternInOut)
		env.In().SetHeader(HeaderOperation, "Truncate")
		if _, err := DetermineOperation(env, Configuration{Operation: OpGetItem}); !errors.Is(err, ErrUnknownOperation) {
			t.Errorf("expected UnknownOperation, got %v", err)
		}
	})

	t.Run("wrong header type", func(t *testing.T) {
		env := envelope.New(envelope.PatternInOut)
		env.In().SetHeader(HeaderOperation, 3)
		if _, err := DetermineOperation(env, Configuration{}); !errors.Is(err, ErrTypeMismatch) {
			t.Errorf("expected TypeMismatch, got %v", err)
		}
	})
}

// TestDispatchConcurrent runs dispatches against distinct envelopes sharing one configuration
func TestDispatchConcurrent(t *testing.T) {
	cfg := Configuration{TableName: "Orders"}
	var wg sync.WaitGroup
	errs := make(chan error, 32)

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &fakeClient{attributes: key("1")}
			env := envelope.New(envelope.PatternInOut)
			env.In().SetHeader(HeaderKey, key("1"))
			if err := Dispatch(context.Background(), "GetItem", client, cfg, env); err != nil {
				errs <- err
				return
			}
			if !env.Out().HasHeader(HeaderAttributes) {
				errs <- errors.New("missing result")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent dispatch failed: %v", err)
	}
}
