package ddb

import (
	"context"

	"github.com/ValentinKolb/ddbx/lib/envelope"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Command is one operation bound to a client, a configuration and an envelope.
// All results are written into the envelope. A command is created per invocation
// and must not be executed twice.
type Command interface {
	// Execute resolves the parameters from the envelope, calls the store client and
	// writes the results back. The first failure is returned as an *Error.
	Execute(ctx context.Context) error
}

// command holds the state shared by all command variants.
type command struct {
	client Client
	config Configuration
	env    *envelope.Envelope
}

func newCommand(client Client, config Configuration, env *envelope.Envelope) command {
	return command{
		client: client,
		config: config,
		env:    env,
	}
}

// --------------------------------------------------------------------------
// Parameter resolution
// --------------------------------------------------------------------------

// header reads a typed header from the input section.
// Missing headers are reported as MissingParameter only if required is set.
func header[T any](c *command, name string, required bool) (T, bool, error) {
	v, found, err := envelope.Header[T](c.env.In(), name)
	if err != nil {
		return v, found, headerError(name, err)
	}
	if !found && required {
		return v, false, missingParameter(name)
	}
	return v, found, nil
}

// stringHeader accepts both plain strings and named string types (e.g. types.ReturnValue).
func stringHeader[S ~string](c *command, name string) (S, bool, error) {
	raw, ok := c.env.In().Header(name)
	if !ok {
		return "", false, nil
	}
	switch v := raw.(type) {
	case S:
		return v, true, nil
	case string:
		return S(v), true, nil
	default:
		var zero S
		return zero, true, typeMismatch(name, "string", raw)
	}
}

// determineTableName returns the DdbTableName header, falling back to the configured table.
func (c *command) determineTableName(required bool) (string, error) {
	name, found, err := header[string](c, HeaderTableName, false)
	if err != nil {
		return "", err
	}
	if found && name != "" {
		return name, nil
	}
	if c.config.TableName != "" {
		return c.config.TableName, nil
	}
	if required {
		return "", missingParameter(HeaderTableName)
	}
	return "", nil
}

func (c *command) determineKey(required bool) (map[string]types.AttributeValue, error) {
	key, _, err := header[map[string]types.AttributeValue](c, HeaderKey, required)
	return key, err
}

func (c *command) determineItem(required bool) (map[string]types.AttributeValue, error) {
	item, _, err := header[map[string]types.AttributeValue](c, HeaderItem, required)
	return item, err
}

// determineUpdateCondition returns nil if no condition is set.
func (c *command) determineUpdateCondition() (map[string]types.ExpectedAttributeValue, error) {
	cond, _, err := header[map[string]types.ExpectedAttributeValue](c, HeaderUpdateCondition, false)
	return cond, err
}

func (c *command) determineUpdateValues(required bool) (map[string]types.AttributeValueUpdate, error) {
	values, _, err := header[map[string]types.AttributeValueUpdate](c, HeaderUpdateValues, required)
	return values, err
}

// determineAttributeNames returns nil (= all attributes) if no projection is set.
func (c *command) determineAttributeNames() ([]string, error) {
	names, _, err := header[[]string](c, HeaderAttributeNames, false)
	return names, err
}

// determineConsistentRead: header, then configuration, then DefaultConsistentRead.
func (c *command) determineConsistentRead() (bool, error) {
	consistent, found, err := header[bool](c, HeaderConsistentRead, false)
	if err != nil {
		return false, err
	}
	if found {
		return consistent, nil
	}
	if c.config.ConsistentRead != nil {
		return *c.config.ConsistentRead, nil
	}
	return DefaultConsistentRead, nil
}

// determineReturnValues: header, then configuration, then DefaultReturnValues.
func (c *command) determineReturnValues() (types.ReturnValue, error) {
	rv, found, err := stringHeader[types.ReturnValue](c, HeaderReturnValues)
	if err != nil {
		return "", err
	}
	if found && rv != "" {
		return rv, nil
	}
	if c.config.ReturnValues != "" {
		return c.config.ReturnValues, nil
	}
	return DefaultReturnValues, nil
}

func (c *command) determineKeyConditions(required bool) (map[string]types.Condition, error) {
	cond, _, err := header[map[string]types.Condition](c, HeaderKeyConditions, required)
	return cond, err
}

func (c *command) determineScanFilter() (map[string]types.Condition, error) {
	filter, _, err := header[map[string]types.Condition](c, HeaderScanFilter, false)
	return filter, err
}

// determineLimit returns nil if no limit is set.
func (c *command) determineLimit() (*int32, error) {
	limit, found, err := header[int32](c, HeaderLimit, false)
	if err != nil || !found {
		return nil, err
	}
	return &limit, nil
}

// determineScanIndexForward returns nil if the order is not set (store default: ascending).
func (c *command) determineScanIndexForward() (*bool, error) {
	forward, found, err := header[bool](c, HeaderScanIndexForward, false)
	if err != nil || !found {
		return nil, err
	}
	return &forward, nil
}

func (c *command) determineStartKey() (map[string]types.AttributeValue, error) {
	key, _, err := header[map[string]types.AttributeValue](c, HeaderStartKey, false)
	return key, err
}

func (c *command) determineBatchItems() (map[string]types.KeysAndAttributes, error) {
	items, _, err := header[map[string]types.KeysAndAttributes](c, HeaderBatchItems, true)
	return items, err
}

// --------------------------------------------------------------------------
// Result handling
// --------------------------------------------------------------------------

// addAttributesToResult writes the attributes into the response section.
// nil attributes leave no header behind.
func (c *command) addAttributesToResult(attributes map[string]types.AttributeValue) {
	if attributes == nil {
		c.env.ResponseSection().RemoveHeader(HeaderAttributes)
		return
	}
	c.addToResult(HeaderAttributes, attributes)
}

// addToResult writes a single header into the response section.
func (c *command) addToResult(name string, value any) {
	c.env.ResponseSection().SetHeader(name, value)
}
