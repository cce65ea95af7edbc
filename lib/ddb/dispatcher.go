package ddb

import (
	"context"
	"sort"

	"github.com/ValentinKolb/ddbx/lib/envelope"
)

// factory constructs a command variant from the shared command state.
type factory func(c command) Command

// commands is the closed table of all command variants.
var commands = map[Operation]factory{
	OpPutItem:       func(c command) Command { return &PutItemCommand{c} },
	OpGetItem:       func(c command) Command { return &GetItemCommand{c} },
	OpDeleteItem:    func(c command) Command { return &DeleteItemCommand{c} },
	OpUpdateItem:    func(c command) Command { return &UpdateItemCommand{c} },
	OpQuery:         func(c command) Command { return &QueryCommand{c} },
	OpScan:          func(c command) Command { return &ScanCommand{c} },
	OpBatchGetItems: func(c command) Command { return &BatchGetItemsCommand{c} },
	OpDescribeTable: func(c command) Command { return &DescribeTableCommand{c} },
	OpDeleteTable:   func(c command) Command { return &DeleteTableCommand{c} },
}

// Dispatcher resolves operations to command variants and runs them.
// It keeps no state between calls and is safe for concurrent use as long as every
// call uses its own envelope.
type Dispatcher struct {
	commands map[Operation]factory
}

// NewDispatcher returns a dispatcher over all registered command variants.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{commands: commands}
}

var defaultDispatcher = NewDispatcher()

// Operations returns all registered operations in ascending order.
func (d *Dispatcher) Operations() []Operation {
	ops := make([]Operation, 0, len(d.commands))
	for op := range d.commands {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// NewCommand constructs the command variant for op without executing it.
func (d *Dispatcher) NewCommand(op Operation, client Client, config Configuration, env *envelope.Envelope) (Command, error) {
	create, ok := d.commands[op]
	if !ok {
		return nil, unknownOperation(op.String())
	}
	return create(newCommand(client, config, env)), nil
}

// Dispatch runs the command registered under operationID against env.
// Unregistered ids fail with RetCUnknownOperation before any command is built;
// errors of the command are returned unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, operationID string, client Client, config Configuration, env *envelope.Envelope) error {
	op, err := ParseOperation(operationID)
	if err != nil {
		return err
	}
	return d.run(ctx, op, client, config, env)
}

// DispatchEnvelope resolves the operation from the envelope (see DetermineOperation) and runs it.
func (d *Dispatcher) DispatchEnvelope(ctx context.Context, client Client, config Configuration, env *envelope.Envelope) error {
	op, err := DetermineOperation(env, config)
	if err != nil {
		return err
	}
	return d.run(ctx, op, client, config, env)
}

func (d *Dispatcher) run(ctx context.Context, op Operation, client Client, config Configuration, env *envelope.Envelope) error {
	cmd, err := d.NewCommand(op, client, config, env)
	if err != nil {
		return err
	}
	return cmd.Execute(ctx)
}

// Dispatch runs operationID using the default dispatcher.
func Dispatch(ctx context.Context, operationID string, client Client, config Configuration, env *envelope.Envelope) error {
	return defaultDispatcher.Dispatch(ctx, operationID, client, config, env)
}

// DispatchEnvelope runs the operation named by the envelope using the default dispatcher.
func DispatchEnvelope(ctx context.Context, client Client, config Configuration, env *envelope.Envelope) error {
	return defaultDispatcher.DispatchEnvelope(ctx, client, config, env)
}

// DetermineOperation returns the operation named by the DdbOperation header
// (string or Operation), falling back to config.Operation.
func DetermineOperation(env *envelope.Envelope, config Configuration) (Operation, error) {
	raw, ok := env.In().Header(HeaderOperation)
	if ok {
		switch v := raw.(type) {
		case Operation:
			return v, nil
		case string:
			return ParseOperation(v)
		default:
			return OpUnknown, typeMismatch(HeaderOperation, "string", raw)
		}
	}
	if config.Operation != OpUnknown {
		return config.Operation, nil
	}
	return OpUnknown, missingParameter(HeaderOperation)
}
