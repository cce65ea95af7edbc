package ddb

import "fmt"

// Operation identifies one command variant. The set is closed: every value below
// has exactly one entry in the dispatcher's command table.
type Operation uint8

const (
	OpUnknown       Operation = iota
	OpPutItem                 // Insert or replace an item
	OpGetItem                 // Read one item by key
	OpDeleteItem              // Delete one item by key
	OpUpdateItem              // Modify attributes of one item
	OpQuery                   // Read items sharing a hash key
	OpScan                    // Read all items of a table
	OpBatchGetItems           // Read items from several tables at once
	OpDescribeTable           // Read table metadata
	OpDeleteTable             // Drop a table
)

// String returns the operation name as used in the DdbOperation header.
func (op Operation) String() string {
	switch op {
	case OpPutItem:
		return "PutItem"
	case OpGetItem:
		return "GetItem"
	case OpDeleteItem:
		return "DeleteItem"
	case OpUpdateItem:
		return "UpdateItem"
	case OpQuery:
		return "Query"
	case OpScan:
		return "Scan"
	case OpBatchGetItems:
		return "BatchGetItems"
	case OpDescribeTable:
		return "DescribeTable"
	case OpDeleteTable:
		return "DeleteTable"
	default:
		return fmt.Sprintf("Unknown(%d)", op)
	}
}

// ParseOperation converts an operation name into an Operation.
// Unknown names yield an UnknownOperation error.
func ParseOperation(name string) (Operation, error) {
	switch name {
	case "PutItem":
		return OpPutItem, nil
	case "GetItem":
		return OpGetItem, nil
	case "DeleteItem":
		return OpDeleteItem, nil
	case "UpdateItem":
		return OpUpdateItem, nil
	case "Query":
		return OpQuery, nil
	case "Scan":
		return OpScan, nil
	case "BatchGetItems":
		return OpBatchGetItems, nil
	case "DescribeTable":
		return OpDescribeTable, nil
	case "DeleteTable":
		return OpDeleteTable, nil
	default:
		return OpUnknown, unknownOperation(name)
	}
}
