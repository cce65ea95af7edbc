package local

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// maxBatchKeys is the maximum number of keys of one BatchGetItem request.
const maxBatchKeys = 100

// --------------------------------------------------------------------------
// Storage helpers
// --------------------------------------------------------------------------

// load returns the stored item or nil.
func (c *Client) load(table, key string) (map[string]types.AttributeValue, error) {
	buf, found, err := c.backend.Get(table, key)
	if err != nil || !found {
		return nil, err
	}
	return c.codec.decodeItem(buf)
}

func (c *Client) store(table, key string, item map[string]types.AttributeValue) error {
	buf, err := c.codec.encodeItem(item)
	if err != nil {
		return validationError("invalid item: %v", err)
	}
	return c.backend.Set(table, key, buf)
}

// project keeps only the named attributes, names == nil keeps all.
func project(item map[string]types.AttributeValue, names []string) map[string]types.AttributeValue {
	if item == nil || names == nil {
		return item
	}
	out := make(map[string]types.AttributeValue, len(names))
	for _, name := range names {
		if av, ok := item[name]; ok {
			out[name] = av
		}
	}
	return out
}

// validateItem rejects values DynamoDB does not accept (empty sets, unknown types).
func validateItem(item map[string]types.AttributeValue) error {
	for name, av := range item {
		if err := validateValue(name, av); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(name string, av types.AttributeValue) error {
	switch v := av.(type) {
	case nil:
		return validationError("attribute %s has no value", name)
	case *types.AttributeValueMemberN:
		_, err := parseNumber(v.Value)
		return err
	case *types.AttributeValueMemberSS:
		if len(v.Value) == 0 {
			return validationError("One or more parameter values were invalid: An string set may not be empty (%s)", name)
		}
	case *types.AttributeValueMemberNS:
		if len(v.Value) == 0 {
			return validationError("One or more parameter values were invalid: An number set may not be empty (%s)", name)
		}
		for _, n := range v.Value {
			if _, err := parseNumber(n); err != nil {
				return err
			}
		}
	case *types.AttributeValueMemberBS:
		if len(v.Value) == 0 {
			return validationError("One or more parameter values were invalid: An binary set may not be empty (%s)", name)
		}
	case *types.AttributeValueMemberL:
		for _, e := range v.Value {
			if err := validateValue(name, e); err != nil {
				return err
			}
		}
	case *types.AttributeValueMemberM:
		for k, e := range v.Value {
			if err := validateValue(name+"."+k, e); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeReturnValues checks the ReturnValues of PutItem and DeleteItem.
func writeReturnValues(rv types.ReturnValue) (bool, error) {
	switch rv {
	case "", types.ReturnValueNone:
		return false, nil
	case types.ReturnValueAllOld:
		return true, nil
	default:
		return false, validationError("ReturnValues can only be ALL_OLD or NONE, got %s", rv)
	}
}

// --------------------------------------------------------------------------
// Item operations
// --------------------------------------------------------------------------

func (c *Client) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	meta, err := c.table(in.TableName)
	if err != nil {
		return nil, err
	}
	returnOld, err := writeReturnValues(in.ReturnValues)
	if err != nil {
		return nil, err
	}
	_, key, err := meta.primaryKey(in.Item, false)
	if err != nil {
		return nil, err
	}
	if err = validateItem(in.Item); err != nil {
		return nil, err
	}

	unlock, err := c.lockTable(meta)
	if err != nil {
		return nil, err
	}
	defer unlock()

	old, err := c.load(meta.Name, key)
	if err != nil {
		return nil, err
	}
	if err = checkExpected(old, in.Expected, in.ConditionalOperator); err != nil {
		return nil, err
	}
	if err = c.store(meta.Name, key, in.Item); err != nil {
		return nil, err
	}

	out := &dynamodb.PutItemOutput{}
	if returnOld {
		out.Attributes = old
	}
	return out, nil
}

func (c *Client) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	meta, err := c.table(in.TableName)
	if err != nil {
		return nil, err
	}
	_, key, err := meta.primaryKey(in.Key, true)
	if err != nil {
		return nil, err
	}

	item, err := c.load(meta.Name, key)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: project(item, in.AttributesToGet)}, nil
}

func (c *Client) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	meta, err := c.table(in.TableName)
	if err != nil {
		return nil, err
	}
	returnOld, err := writeReturnValues(in.ReturnValues)
	if err != nil {
		return nil, err
	}
	_, key, err := meta.primaryKey(in.Key, true)
	if err != nil {
		return nil, err
	}

	unlock, err := c.lockTable(meta)
	if err != nil {
		return nil, err
	}
	defer unlock()

	old, err := c.load(meta.Name, key)
	if err != nil {
		return nil, err
	}
	if err = checkExpected(old, in.Expected, in.ConditionalOperator); err != nil {
		return nil, err
	}
	if old != nil {
		if err = c.backend.Delete(meta.Name, key); err != nil {
			return nil, err
		}
	}

	out := &dynamodb.DeleteItemOutput{}
	if returnOld {
		out.Attributes = old
	}
	return out, nil
}

// UpdateItem applies the legacy AttributeUpdates (PUT, ADD, DELETE). A missing item is
// created from the key and the updates.
func (c *Client) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	meta, err := c.table(in.TableName)
	if err != nil {
		return nil, err
	}
	switch in.ReturnValues {
	case "", types.ReturnValueNone, types.ReturnValueAllOld, types.ReturnValueAllNew,
		types.ReturnValueUpdatedOld, types.ReturnValueUpdatedNew:
	default:
		return nil, validationError("invalid ReturnValues %s", in.ReturnValues)
	}
	if in.UpdateExpression != nil {
		return nil, validationError("UpdateExpression is not supported, use AttributeUpdates")
	}
	keyAttrs, key, err := meta.primaryKey(in.Key, true)
	if err != nil {
		return nil, err
	}

	unlock, err := c.lockTable(meta)
	if err != nil {
		return nil, err
	}
	defer unlock()

	old, err := c.load(meta.Name, key)
	if err != nil {
		return nil, err
	}
	if err = checkExpected(old, in.Expected, in.ConditionalOperator); err != nil {
		return nil, err
	}

	base := old
	if base == nil {
		base = keyAttrs
	}
	updated, err := applyUpdates(meta, base, in.AttributeUpdates)
	if err != nil {
		return nil, err
	}
	if err = validateItem(updated); err != nil {
		return nil, err
	}
	if err = c.store(meta.Name, key, updated); err != nil {
		return nil, err
	}

	out := &dynamodb.UpdateItemOutput{}
	switch in.ReturnValues {
	case types.ReturnValueAllOld:
		out.Attributes = old
	case types.ReturnValueAllNew:
		out.Attributes = updated
	case types.ReturnValueUpdatedOld:
		out.Attributes = updatedAttributes(old, in.AttributeUpdates)
	case types.ReturnValueUpdatedNew:
		out.Attributes = updatedAttributes(updated, in.AttributeUpdates)
	}
	return out, nil
}

// updatedAttributes returns the attributes of item touched by updates, nil if none exist.
func updatedAttributes(item map[string]types.AttributeValue, updates map[string]types.AttributeValueUpdate) map[string]types.AttributeValue {
	var out map[string]types.AttributeValue
	for name := range updates {
		if av, ok := item[name]; ok {
			if out == nil {
				out = make(map[string]types.AttributeValue)
			}
			out[name] = av
		}
	}
	return out
}

// applyUpdates returns a copy of item with the updates applied.
func applyUpdates(meta *tableMeta, item map[string]types.AttributeValue, updates map[string]types.AttributeValueUpdate) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(item)+len(updates))
	for k, v := range item {
		out[k] = v
	}

	for name, u := range updates {
		if meta.isKeyAttribute(name) {
			return nil, validationError("Cannot update attribute %s. This attribute is part of the key", name)
		}

		switch u.Action {
		case "", types.AttributeActionPut:
			if u.Value == nil {
				return nil, validationError("PUT on attribute %s requires a value", name)
			}
			out[name] = u.Value

		case types.AttributeActionDelete:
			if u.Value == nil {
				delete(out, name)
				continue
			}
			current, ok := out[name]
			if !ok {
				continue
			}
			rest, err := removeFromSet(current, u.Value)
			if err != nil {
				return nil, err
			}
			if rest == nil {
				delete(out, name)
			} else {
				out[name] = rest
			}

		case types.AttributeActionAdd:
			if u.Value == nil {
				return nil, validationError("ADD on attribute %s requires a value", name)
			}
			sum, err := addValue(out[name], u.Value)
			if err != nil {
				return nil, err
			}
			out[name] = sum

		default:
			return nil, validationError("unknown attribute action %q", u.Action)
		}
	}
	return out, nil
}

// addValue implements ADD: numeric addition or set union. current may be nil.
func addValue(current, value types.AttributeValue) (types.AttributeValue, error) {
	switch v := value.(type) {
	case *types.AttributeValueMemberN:
		if current == nil {
			return v, nil
		}
		cur, ok := current.(*types.AttributeValueMemberN)
		if !ok {
			return nil, validationError("Type mismatch for attribute to update: ADD %s to %s", kindOf(value), kindOf(current))
		}
		a, err := parseNumber(cur.Value)
		if err != nil {
			return nil, err
		}
		b, err := parseNumber(v.Value)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberN{Value: formatNumber(a.Add(a, b))}, nil

	case *types.AttributeValueMemberSS:
		if current == nil {
			return v, nil
		}
		cur, ok := current.(*types.AttributeValueMemberSS)
		if !ok {
			return nil, validationError("Type mismatch for attribute to update: ADD SS to %s", kindOf(current))
		}
		return &types.AttributeValueMemberSS{Value: union(cur.Value, v.Value, func(p, q string) bool { return p == q })}, nil

	case *types.AttributeValueMemberNS:
		if current == nil {
			return v, nil
		}
		cur, ok := current.(*types.AttributeValueMemberNS)
		if !ok {
			return nil, validationError("Type mismatch for attribute to update: ADD NS to %s", kindOf(current))
		}
		return &types.AttributeValueMemberNS{Value: union(cur.Value, v.Value, numbersEqual)}, nil

	case *types.AttributeValueMemberBS:
		if current == nil {
			return v, nil
		}
		cur, ok := current.(*types.AttributeValueMemberBS)
		if !ok {
			return nil, validationError("Type mismatch for attribute to update: ADD BS to %s", kindOf(current))
		}
		return &types.AttributeValueMemberBS{Value: union(cur.Value, v.Value, bytes.Equal)}, nil

	default:
		return nil, validationError("ADD is only supported for numbers and sets, got %s", kindOf(value))
	}
}

// removeFromSet implements DELETE with a value. It returns nil if the set becomes empty.
func removeFromSet(current, value types.AttributeValue) (types.AttributeValue, error) {
	mismatch := func() error {
		return validationError("Type mismatch for attribute to update: DELETE %s from %s", kindOf(value), kindOf(current))
	}

	switch v := value.(type) {
	case *types.AttributeValueMemberSS:
		cur, ok := current.(*types.AttributeValueMemberSS)
		if !ok {
			return nil, mismatch()
		}
		if rest := difference(cur.Value, v.Value, func(p, q string) bool { return p == q }); len(rest) > 0 {
			return &types.AttributeValueMemberSS{Value: rest}, nil
		}
		return nil, nil
	case *types.AttributeValueMemberNS:
		cur, ok := current.(*types.AttributeValueMemberNS)
		if !ok {
			return nil, mismatch()
		}
		if rest := difference(cur.Value, v.Value, numbersEqual); len(rest) > 0 {
			return &types.AttributeValueMemberNS{Value: rest}, nil
		}
		return nil, nil
	case *types.AttributeValueMemberBS:
		cur, ok := current.(*types.AttributeValueMemberBS)
		if !ok {
			return nil, mismatch()
		}
		if rest := difference(cur.Value, v.Value, bytes.Equal); len(rest) > 0 {
			return &types.AttributeValueMemberBS{Value: rest}, nil
		}
		return nil, nil
	default:
		return nil, validationError("DELETE with a value is only supported for sets, got %s", kindOf(value))
	}
}

func union[T any](a, b []T, eq func(T, T) bool) []T {
	out := append(make([]T, 0, len(a)+len(b)), a...)
	for _, v := range b {
		if indexOf(out, v, eq) < 0 {
			out = append(out, v)
		}
	}
	return out
}

func difference[T any](a, b []T, eq func(T, T) bool) []T {
	out := make([]T, 0, len(a))
	for _, v := range a {
		if indexOf(b, v, eq) < 0 {
			out = append(out, v)
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Batch operations
// --------------------------------------------------------------------------

func (c *Client) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	if len(in.RequestItems) == 0 {
		return nil, validationError("RequestItems must not be empty")
	}

	total := 0
	for _, req := range in.RequestItems {
		total += len(req.Keys)
	}
	if total > maxBatchKeys {
		return nil, validationError("Too many items requested for the BatchGetItem call: %d", total)
	}

	responses := make(map[string][]map[string]types.AttributeValue, len(in.RequestItems))
	for name, req := range in.RequestItems {
		meta, err := c.table(&name)
		if err != nil {
			return nil, err
		}

		seen := make(map[string]struct{}, len(req.Keys))
		items := make([]map[string]types.AttributeValue, 0, len(req.Keys))
		for _, k := range req.Keys {
			_, key, err := meta.primaryKey(k, true)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[key]; dup {
				return nil, validationError("Provided list of item keys contains duplicates")
			}
			seen[key] = struct{}{}

			item, err := c.load(meta.Name, key)
			if err != nil {
				return nil, err
			}
			if item != nil {
				items = append(items, project(item, req.AttributesToGet))
			}
		}
		responses[name] = items
	}

	return &dynamodb.BatchGetItemOutput{Responses: responses}, nil
}
