package ddb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("ddb")

// EnsureTable makes sure the configured table exists.
// A missing table is created from the key attributes and capacities of the
// configuration; the call then waits up to maxWait for the table to become active.
func EnsureTable(ctx context.Context, client Client, config Configuration, maxWait time.Duration) error {
	if config.TableName == "" {
		return missingParameter(HeaderTableName)
	}

	out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(config.TableName),
	})
	if err == nil {
		if out.Table != nil && out.Table.TableStatus == types.TableStatusActive {
			return nil
		}
		log.Infof("table %s exists but is not active yet, waiting", config.TableName)
		return waitActive(ctx, client, config.TableName, maxWait)
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return clientError(OpDescribeTable, err)
	}

	if config.KeyAttributeName == "" {
		return NewError(RetCMissingParameter, "key attribute name is required to create a table")
	}

	log.Infof("table %s does not exist, creating it", config.TableName)

	if _, err = client.CreateTable(ctx, createTableInput(config)); err != nil {
		return &Error{
			Code: RetCOperationFailed,
			Msg:  fmt.Sprintf("create table %s failed", config.TableName),
			Err:  err,
		}
	}

	return waitActive(ctx, client, config.TableName, maxWait)
}

// waitActive blocks until the table is ACTIVE or maxWait has passed.
func waitActive(ctx context.Context, client Client, table string, maxWait time.Duration) error {
	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, maxWait); err != nil {
		return &Error{
			Code: RetCOperationFailed,
			Msg:  fmt.Sprintf("table %s did not become active", table),
			Err:  err,
		}
	}

	log.Infof("table %s is active", table)
	return nil
}

// createTableInput builds the CreateTable request for the configured key schema.
func createTableInput(config Configuration) *dynamodb.CreateTableInput {
	keyType := config.KeyAttributeType
	if keyType == "" {
		keyType = types.ScalarAttributeTypeS
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(config.TableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(config.KeyAttributeName), AttributeType: keyType},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(config.KeyAttributeName), KeyType: types.KeyTypeHash},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(max(config.ReadCapacity, 1)),
			WriteCapacityUnits: aws.Int64(max(config.WriteCapacity, 1)),
		},
	}

	if config.RangeAttributeName != "" {
		rangeType := config.RangeAttributeType
		if rangeType == "" {
			rangeType = types.ScalarAttributeTypeS
		}
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(config.RangeAttributeName), AttributeType: rangeType,
		})
		input.KeySchema = append(input.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(config.RangeAttributeName), KeyType: types.KeyTypeRange,
		})
	}

	return input
}
