package ddb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient records every request and answers with canned results.
type fakeClient struct {
	calls []string
	err   error

	put      *dynamodb.PutItemInput
	get      *dynamodb.GetItemInput
	del      *dynamodb.DeleteItemInput
	update   *dynamodb.UpdateItemInput
	query    *dynamodb.QueryInput
	scan     *dynamodb.ScanInput
	batchGet *dynamodb.BatchGetItemInput
	create   *dynamodb.CreateTableInput

	attributes map[string]types.AttributeValue
	items      []map[string]types.AttributeValue
	lastKey    map[string]types.AttributeValue
	table      *types.TableDescription
	tableErr   error
	creating   int // number of DescribeTable calls that report CREATING
}

func (f *fakeClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.calls = append(f.calls, "PutItem")
	f.put = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.PutItemOutput{Attributes: f.attributes}, nil
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.calls = append(f.calls, "GetItem")
	f.get = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.attributes}, nil
}

func (f *fakeClient) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.calls = append(f.calls, "DeleteItem")
	f.del = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.DeleteItemOutput{Attributes: f.attributes}, nil
}

func (f *fakeClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.calls = append(f.calls, "UpdateItem")
	f.update = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.UpdateItemOutput{Attributes: f.attributes}, nil
}

func (f *fakeClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.calls = append(f.calls, "Query")
	f.query = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.QueryOutput{Items: f.items, Count: int32(len(f.items)), LastEvaluatedKey: f.lastKey}, nil
}

func (f *fakeClient) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.calls = append(f.calls, "Scan")
	f.scan = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.ScanOutput{Items: f.items, Count: int32(len(f.items)), ScannedCount: int32(len(f.items)) + 1, LastEvaluatedKey: f.lastKey}, nil
}

func (f *fakeClient) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.calls = append(f.calls, "BatchGetItem")
	f.batchGet = in
	if f.err != nil {
		return nil, f.err
	}
	responses := make(map[string][]map[string]types.AttributeValue)
	for table := range in.RequestItems {
		responses[table] = f.items
	}
	return &dynamodb.BatchGetItemOutput{Responses: responses}, nil
}

func (f *fakeClient) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.calls = append(f.calls, "CreateTable")
	f.create = in
	if f.err != nil {
		return nil, f.err
	}
	f.table = &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: types.TableStatusActive,
		KeySchema:   in.KeySchema,
	}
	f.tableErr = nil
	return &dynamodb.CreateTableOutput{TableDescription: f.table}, nil
}

func (f *fakeClient) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.calls = append(f.calls, "DescribeTable")
	if f.tableErr != nil {
		return nil, f.tableErr
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.creating > 0 {
		f.creating--
		desc := *f.table
		desc.TableStatus = types.TableStatusCreating
		return &dynamodb.DescribeTableOutput{Table: &desc}, nil
	}
	return &dynamodb.DescribeTableOutput{Table: f.table}, nil
}

func (f *fakeClient) DeleteTable(_ context.Context, in *dynamodb.DeleteTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	f.calls = append(f.calls, "DeleteTable")
	if f.err != nil {
		return nil, f.err
	}
	desc := *f.table
	desc.TableStatus = types.TableStatusDeleting
	return &dynamodb.DeleteTableOutput{TableDescription: &desc}, nil
}

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func n(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": s(id)}
}

func tableDescription(name string) *types.TableDescription {
	return &types.TableDescription{
		TableName:      aws.String(name),
		TableStatus:    types.TableStatusActive,
		ItemCount:      aws.Int64(3),
		TableSizeBytes: aws.Int64(120),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		ProvisionedThroughput: &types.ProvisionedThroughputDescription{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(2),
		},
	}
}
