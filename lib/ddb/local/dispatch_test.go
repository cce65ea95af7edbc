package local_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/ddbx/lib/ddb"
	"github.com/ValentinKolb/ddbx/lib/ddb/local"
	"github.com/ValentinKolb/ddbx/lib/envelope"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TestDispatchOnLocalClient runs the command set end to end against the in-process client.
func TestDispatchOnLocalClient(t *testing.T) {
	ctx := context.Background()

	client, err := local.New(local.NewMemoryBackend())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer client.Close()

	cfg := ddb.DefaultConfiguration()
	cfg.TableName = "Orders"
	cfg.ConsistentRead = aws.Bool(true)

	if err = ddb.EnsureTable(ctx, client, cfg, 5*time.Second); err != nil {
		t.Fatalf("EnsureTable failed: %v", err)
	}
	// second call finds the table
	if err = ddb.EnsureTable(ctx, client, cfg, 5*time.Second); err != nil {
		t.Fatalf("EnsureTable on existing table failed: %v", err)
	}

	dispatch := func(op string, headers map[string]any) (*envelope.Envelope, error) {
		env := envelope.NewWithHeaders(envelope.PatternInOut, headers)
		return env, ddb.Dispatch(ctx, op, client, cfg, env)
	}

	orderKey := map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "o-1"}}
	order := map[string]types.AttributeValue{
		"id":  &types.AttributeValueMemberS{Value: "o-1"},
		"qty": &types.AttributeValueMemberN{Value: "2"},
	}

	if _, err = dispatch("PutItem", map[string]any{ddb.HeaderItem: order}); err != nil {
		t.Fatalf("PutItem failed: %v", err)
	}

	env, err := dispatch("GetItem", map[string]any{ddb.HeaderKey: orderKey})
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	attrs, found, _ := envelope.Header[map[string]types.AttributeValue](env.Out(), ddb.HeaderAttributes)
	if !found || attrs["qty"].(*types.AttributeValueMemberN).Value != "2" {
		t.Errorf("Unexpected GetItem result: %v", attrs)
	}

	// optimistic update: succeeds once, then the condition no longer holds
	update := map[string]any{
		ddb.HeaderKey:          orderKey,
		ddb.HeaderReturnValues: "ALL_NEW",
		ddb.HeaderUpdateValues: map[string]types.AttributeValueUpdate{
			"qty": {Action: types.AttributeActionPut, Value: &types.AttributeValueMemberN{Value: "3"}},
		},
		ddb.HeaderUpdateCondition: map[string]types.ExpectedAttributeValue{
			"qty": {Value: &types.AttributeValueMemberN{Value: "2"}},
		},
	}
	env, err = dispatch("UpdateItem", update)
	if err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}
	attrs, _, _ = envelope.Header[map[string]types.AttributeValue](env.Out(), ddb.HeaderAttributes)
	if attrs["qty"].(*types.AttributeValueMemberN).Value != "3" {
		t.Errorf("Expected ALL_NEW attributes, got %v", attrs)
	}

	if _, err = dispatch("UpdateItem", update); !errors.Is(err, ddb.ErrConditionFailed) {
		t.Errorf("Expected ConditionFailed, got %v", err)
	}

	// store-side validation errors are operation failures
	_, err = dispatch("PutItem", map[string]any{ddb.HeaderItem: map[string]types.AttributeValue{
		"qty": &types.AttributeValueMemberN{Value: "1"},
	}})
	if !errors.Is(err, ddb.ErrOperationFailed) {
		t.Errorf("Expected OperationFailed for an item without key, got %v", err)
	}

	env, err = dispatch("Scan", nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if count, _, _ := envelope.Header[int32](env.Out(), ddb.HeaderCount); count != 1 {
		t.Errorf("Expected 1 item, got %d", count)
	}

	env, err = dispatch("DescribeTable", nil)
	if err != nil {
		t.Fatalf("DescribeTable failed: %v", err)
	}
	if n, _, _ := envelope.Header[int64](env.Out(), ddb.HeaderItemCount); n != 1 {
		t.Errorf("Expected item count 1, got %d", n)
	}

	if _, err = dispatch("DeleteTable", nil); err != nil {
		t.Fatalf("DeleteTable failed: %v", err)
	}
	if _, err = dispatch("GetItem", map[string]any{ddb.HeaderKey: orderKey}); !errors.Is(err, ddb.ErrOperationFailed) {
		t.Errorf("Expected OperationFailed on a deleted table, got %v", err)
	}
}
