package ddb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --------------------------------------------------------------------------
// Query
// --------------------------------------------------------------------------

// QueryCommand reads the items matching DdbKeyConditions.
// Results: DdbItems, DdbCount and, if there are more pages, DdbLastEvaluatedKey.
type QueryCommand struct{ command }

func (cmd *QueryCommand) Execute(ctx context.Context) error {
	table, err := cmd.determineTableName(true)
	if err != nil {
		return err
	}
	conditions, err := cmd.determineKeyConditions(true)
	if err != nil {
		return err
	}
	names, err := cmd.determineAttributeNames()
	if err != nil {
		return err
	}
	consistent, err := cmd.determineConsistentRead()
	if err != nil {
		return err
	}
	limit, err := cmd.determineLimit()
	if err != nil {
		return err
	}
	forward, err := cmd.determineScanIndexForward()
	if err != nil {
		return err
	}
	startKey, err := cmd.determineStartKey()
	if err != nil {
		return err
	}

	out, err := cmd.client.Query(ctx, &dynamodb.QueryInput{
		TableName:         aws.String(table),
		KeyConditions:     conditions,
		AttributesToGet:   names,
		ConsistentRead:    aws.Bool(consistent),
		Limit:             limit,
		ScanIndexForward:  forward,
		ExclusiveStartKey: startKey,
	})
	if err != nil {
		return clientError(OpQuery, err)
	}

	cmd.addPage(out.Items, out.Count, out.LastEvaluatedKey)
	return nil
}

// --------------------------------------------------------------------------
// Scan
// --------------------------------------------------------------------------

// ScanCommand reads all items of the table passing the optional DdbScanFilter.
// Results: DdbItems, DdbCount, DdbScannedCount and DdbLastEvaluatedKey.
type ScanCommand struct{ command }

func (cmd *ScanCommand) Execute(ctx context.Context) error {
	table, err := cmd.determineTableName(true)
	if err != nil {
		return err
	}
	filter, err := cmd.determineScanFilter()
	if err != nil {
		return err
	}
	names, err := cmd.determineAttributeNames()
	if err != nil {
		return err
	}
	consistent, err := cmd.determineConsistentRead()
	if err != nil {
		return err
	}
	limit, err := cmd.determineLimit()
	if err != nil {
		return err
	}
	startKey, err := cmd.determineStartKey()
	if err != nil {
		return err
	}

	out, err := cmd.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:         aws.String(table),
		ScanFilter:        filter,
		AttributesToGet:   names,
		ConsistentRead:    aws.Bool(consistent),
		Limit:             limit,
		ExclusiveStartKey: startKey,
	})
	if err != nil {
		return clientError(OpScan, err)
	}

	cmd.addPage(out.Items, out.Count, out.LastEvaluatedKey)
	cmd.addToResult(HeaderScannedCount, out.ScannedCount)
	return nil
}

// addPage writes the result page of a Query or Scan.
func (c *command) addPage(items []map[string]types.AttributeValue, count int32, lastKey map[string]types.AttributeValue) {
	if items == nil {
		items = []map[string]types.AttributeValue{}
	}
	c.addToResult(HeaderItems, items)
	c.addToResult(HeaderCount, count)
	if len(lastKey) > 0 {
		c.addToResult(HeaderLastEvaluatedKey, lastKey)
	} else {
		c.env.ResponseSection().RemoveHeader(HeaderLastEvaluatedKey)
	}
}

// --------------------------------------------------------------------------
// BatchGetItems
// --------------------------------------------------------------------------

// BatchGetItemsCommand reads the keys listed per table in DdbBatchItems.
// The table name header is not used: every request names its tables.
type BatchGetItemsCommand struct{ command }

func (cmd *BatchGetItemsCommand) Execute(ctx context.Context) error {
	items, err := cmd.determineBatchItems()
	if err != nil {
		return err
	}

	out, err := cmd.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
		RequestItems: items,
	})
	if err != nil {
		return clientError(OpBatchGetItems, err)
	}

	responses := out.Responses
	if responses == nil {
		responses = map[string][]map[string]types.AttributeValue{}
	}
	cmd.addToResult(HeaderBatchResponse, responses)
	if len(out.UnprocessedKeys) > 0 {
		cmd.addToResult(HeaderUnprocessedKeys, out.UnprocessedKeys)
	} else {
		cmd.env.ResponseSection().RemoveHeader(HeaderUnprocessedKeys)
	}
	return nil
}
