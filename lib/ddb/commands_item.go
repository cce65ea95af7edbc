package ddb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// --------------------------------------------------------------------------
// PutItem
// --------------------------------------------------------------------------

// PutItemCommand writes DdbItem into the table.
// Returned attributes (see DdbReturnValues) end up in DdbAttributes.
type PutItemCommand struct{ command }

func (cmd *PutItemCommand) Execute(ctx context.Context) error {
	table, err := cmd.determineTableName(true)
	if err != nil {
		return err
	}
	item, err := cmd.determineItem(true)
	if err != nil {
		return err
	}
	cond, err := cmd.determineUpdateCondition()
	if err != nil {
		return err
	}
	rv, err := cmd.determineReturnValues()
	if err != nil {
		return err
	}

	out, err := cmd.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:    aws.String(table),
		Item:         item,
		Expected:     cond,
		ReturnValues: rv,
	})
	if err != nil {
		return clientError(OpPutItem, err)
	}

	cmd.addAttributesToResult(out.Attributes)
	return nil
}

// --------------------------------------------------------------------------
// GetItem
// --------------------------------------------------------------------------

// GetItemCommand reads the item identified by DdbKey into DdbAttributes.
type GetItemCommand struct{ command }

func (cmd *GetItemCommand) Execute(ctx context.Context) error {
	table, err := cmd.determineTableName(true)
	if err != nil {
		return err
	}
	key, err := cmd.determineKey(true)
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

	out, err := cmd.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:       aws.String(table),
		Key:             key,
		AttributesToGet: names,
		ConsistentRead:  aws.Bool(consistent),
	})
	if err != nil {
		return clientError(OpGetItem, err)
	}

	cmd.addAttributesToResult(out.Item)
	return nil
}

// --------------------------------------------------------------------------
// DeleteItem
// --------------------------------------------------------------------------

// DeleteItemCommand removes the item identified by DdbKey.
type DeleteItemCommand struct{ command }

func (cmd *DeleteItemCommand) Execute(ctx context.Context) error {
	table, err := cmd.determineTableName(true)
	if err != nil {
		return err
	}
	key, err := cmd.determineKey(true)
	if err != nil {
		return err
	}
	cond, err := cmd.determineUpdateCondition()
	if err != nil {
		return err
	}
	rv, err := cmd.determineReturnValues()
	if err != nil {
		return err
	}

	out, err := cmd.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(table),
		Key:          key,
		Expected:     cond,
		ReturnValues: rv,
	})
	if err != nil {
		return clientError(OpDeleteItem, err)
	}

	cmd.addAttributesToResult(out.Attributes)
	return nil
}

// --------------------------------------------------------------------------
// UpdateItem
// --------------------------------------------------------------------------

// UpdateItemCommand applies DdbUpdateValues to the item identified by DdbKey.
// With DdbUpdateCondition set a failed check surfaces as RetCConditionFailed.
type UpdateItemCommand struct{ command }

func (cmd *UpdateItemCommand) Execute(ctx context.Context) error {
	table, err := cmd.determineTableName(true)
	if err != nil {
		return err
	}
	key, err := cmd.determineKey(true)
	if err != nil {
		return err
	}
	values, err := cmd.determineUpdateValues(true)
	if err != nil {
		return err
	}
	cond, err := cmd.determineUpdateCondition()
	if err != nil {
		return err
	}
	rv, err := cmd.determineReturnValues()
	if err != nil {
		return err
	}

	out, err := cmd.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(table),
		Key:              key,
		AttributeUpdates: values,
		Expected:         cond,
		ReturnValues:     rv,
	})
	if err != nil {
		return clientError(OpUpdateItem, err)
	}

	cmd.addAttributesToResult(out.Attributes)
	return nil
}
