package ddb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DescribeTableCommand writes the table metadata into the response headers.
type DescribeTableCommand struct{ command }

func (cmd *DescribeTableCommand) Execute(ctx context.Context) error {
	table, err := cmd.determineTableName(true)
	if err != nil {
		return err
	}

	out, err := cmd.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err != nil {
		return clientError(OpDescribeTable, err)
	}

	cmd.addTableDescription(out.Table)
	return nil
}

// DeleteTableCommand drops the table and reports its last known metadata.
type DeleteTableCommand struct{ command }

func (cmd *DeleteTableCommand) Execute(ctx context.Context) error {
	table, err := cmd.determineTableName(true)
	if err != nil {
		return err
	}

	out, err := cmd.client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(table),
	})
	if err != nil {
		return clientError(OpDeleteTable, err)
	}

	cmd.addTableDescription(out.TableDescription)
	return nil
}

// addTableDescription flattens the description into scalar headers.
func (c *command) addTableDescription(desc *types.TableDescription) {
	if desc == nil {
		return
	}
	c.addToResult(HeaderTableName, aws.ToString(desc.TableName))
	c.addToResult(HeaderTableStatus, string(desc.TableStatus))
	c.addToResult(HeaderItemCount, aws.ToInt64(desc.ItemCount))
	c.addToResult(HeaderTableSize, aws.ToInt64(desc.TableSizeBytes))
	if desc.KeySchema != nil {
		c.addToResult(HeaderKeySchema, desc.KeySchema)
	}
	if desc.CreationDateTime != nil {
		c.addToResult(HeaderCreationDate, *desc.CreationDateTime)
	}
	if pt := desc.ProvisionedThroughput; pt != nil {
		c.addToResult(HeaderReadCapacity, aws.ToInt64(pt.ReadCapacityUnits))
		c.addToResult(HeaderWriteCapacity, aws.ToInt64(pt.WriteCapacityUnits))
	}
}
