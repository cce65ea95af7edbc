package ddb

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Global defaults used when neither a header nor the configuration provides a value.
const (
	// DefaultConsistentRead selects eventually consistent reads.
	DefaultConsistentRead = false
	// DefaultReturnValues asks the store to return nothing on writes.
	DefaultReturnValues = types.ReturnValueNone
)

// Configuration holds the static defaults of a command set. It is created once and
// passed by value; per-call headers override its fields.
type Configuration struct {
	// TableName is the default target table
	TableName string
	// Operation is used when the envelope carries no DdbOperation header
	Operation Operation
	// ConsistentRead is the default read consistency (nil = DefaultConsistentRead)
	ConsistentRead *bool
	// ReturnValues is the default for write operations ("" = DefaultReturnValues)
	ReturnValues types.ReturnValue

	// Table bootstrap parameters (see EnsureTable)
	KeyAttributeName   string
	KeyAttributeType   types.ScalarAttributeType
	RangeAttributeName string
	RangeAttributeType types.ScalarAttributeType
	ReadCapacity       int64
	WriteCapacity      int64
}

// DefaultConfiguration returns a configuration with the defaults used by the CLI.
func DefaultConfiguration() Configuration {
	return Configuration{
		Operation:        OpPutItem,
		KeyAttributeName: "id",
		KeyAttributeType: types.ScalarAttributeTypeS,
		ReadCapacity:     1,
		WriteCapacity:    1,
	}
}

// String returns a formatted string representation of the configuration
func (c Configuration) String() string {
	var sb strings.Builder

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	consistent := "default"
	if c.ConsistentRead != nil {
		consistent = fmt.Sprintf("%t", *c.ConsistentRead)
	}

	addField("Table", c.TableName)
	addField("Operation", c.Operation.String())
	addField("Consistent Read", consistent)
	addField("Return Values", string(c.ReturnValues))
	addField("Key Attribute", fmt.Sprintf("%s (%s)", c.KeyAttributeName, c.KeyAttributeType))
	if c.RangeAttributeName != "" {
		addField("Range Attribute", fmt.Sprintf("%s (%s)", c.RangeAttributeName, c.RangeAttributeType))
	}
	addField("Capacity (r/w)", fmt.Sprintf("%d/%d", c.ReadCapacity, c.WriteCapacity))

	return sb.String()
}
