package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ValentinKolb/ddbx/lib/ddb"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// StoreBackend selects the store client the server dispatches to.
type StoreBackend string

const (
	StoreBackendAWS    StoreBackend = "aws"    // DynamoDB (or any compatible endpoint) via the AWS SDK
	StoreBackendMemory StoreBackend = "memory" // local client, in-memory backend
	StoreBackendBadger StoreBackend = "badger" // local client, badger backend in DataDir
)

// ParseStoreBackend converts a string into a StoreBackend.
func ParseStoreBackend(s string) (StoreBackend, error) {
	switch b := StoreBackend(strings.ToLower(s)); b {
	case StoreBackendAWS, StoreBackendMemory, StoreBackendBadger:
		return b, nil
	default:
		return "", fmt.Errorf("invalid backend %q: must be one of aws, memory, badger", s)
	}
}

// ServerShard binds a shard id to a table and an optional default operation.
type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Table is the default table of the shard
	Table string
	// Operation is used when a request names no operation (empty = none)
	Operation string
}

// String returns the shard in its flag form (ID=TABLE[:OPERATION]).
func (s ServerShard) String() string {
	str := fmt.Sprintf("%d=%s", s.ShardID, s.Table)
	if s.Operation != "" {
		str += ":" + s.Operation
	}
	return str
}

// ParseServerShard parses a shard in its flag form (ID=TABLE[:OPERATION]).
func ParseServerShard(s string) (ServerShard, error) {
	id, rest, ok := strings.Cut(s, "=")
	if !ok {
		return ServerShard{}, fmt.Errorf("invalid shard %q: expected ID=TABLE[:OPERATION]", s)
	}
	shardID, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return ServerShard{}, fmt.Errorf("invalid shard id in %q: %w", s, err)
	}
	table, op, _ := strings.Cut(rest, ":")
	if table == "" {
		return ServerShard{}, fmt.Errorf("invalid shard %q: table name is empty", s)
	}
	if op != "" {
		if _, err = ddb.ParseOperation(op); err != nil {
			return ServerShard{}, fmt.Errorf("invalid shard %q: %w", s, err)
		}
	}
	return ServerShard{ShardID: shardID, Table: table, Operation: op}, nil
}

// ServerConfig holds all configuration parameters of the RPC server.
type ServerConfig struct {
	// Shards served by this server
	Shards []ServerShard

	// Store client
	Backend     StoreBackend
	DataDir     string // badger directory
	AWSRegion   string
	AWSEndpoint string // custom endpoint, e.g. a local DynamoDB

	// Defaults shared by all shards
	KeyAttributeName   string
	KeyAttributeType   string
	RangeAttributeName string
	RangeAttributeType string
	ReadCapacity       int64
	WriteCapacity      int64
	ConsistentRead     bool
	ReturnValues       string
	CreateTables       bool // create missing tables on startup

	// Timeout for store calls and table bootstrap
	TimeoutSecond int64

	// HTTP api settings
	Endpoint    string
	MetricsPath string // empty = metrics disabled

	// Logging configuration
	LogLevel string
}

// DdbConfiguration returns the command configuration of a shard.
func (c *ServerConfig) DdbConfiguration(shard ServerShard) (ddb.Configuration, error) {
	cfg := ddb.DefaultConfiguration()
	cfg.TableName = shard.Table
	cfg.Operation = ddb.OpUnknown
	if shard.Operation != "" {
		op, err := ddb.ParseOperation(shard.Operation)
		if err != nil {
			return cfg, err
		}
		cfg.Operation = op
	}

	cfg.ConsistentRead = aws.Bool(c.ConsistentRead)
	cfg.ReturnValues = types.ReturnValue(c.ReturnValues)

	if c.KeyAttributeName != "" {
		cfg.KeyAttributeName = c.KeyAttributeName
	}
	if c.KeyAttributeType != "" {
		cfg.KeyAttributeType = types.ScalarAttributeType(strings.ToUpper(c.KeyAttributeType))
	}
	if c.RangeAttributeName != "" {
		cfg.RangeAttributeName = c.RangeAttributeName
		cfg.RangeAttributeType = types.ScalarAttributeType(strings.ToUpper(c.RangeAttributeType))
	}
	if c.ReadCapacity > 0 {
		cfg.ReadCapacity = c.ReadCapacity
	}
	if c.WriteCapacity > 0 {
		cfg.WriteCapacity = c.WriteCapacity
	}
	return cfg, nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.MetricsPath != "" {
		addField("Metrics", c.MetricsPath)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Store client
	addSection("Store")
	addField("Backend", string(c.Backend))
	switch c.Backend {
	case StoreBackendBadger:
		addField("Data Directory", c.DataDir)
	case StoreBackendAWS:
		addField("Region", c.AWSRegion)
		if c.AWSEndpoint != "" {
			addField("Endpoint", c.AWSEndpoint)
		}
	}
	addField("Create Tables", fmt.Sprintf("%t", c.CreateTables))
	addField("Consistent Read", fmt.Sprintf("%t", c.ConsistentRead))
	if c.ReturnValues != "" {
		addField("Return Values", c.ReturnValues)
	}
	addField("Key Attribute", fmt.Sprintf("%s (%s)", c.KeyAttributeName, c.KeyAttributeType))
	if c.RangeAttributeName != "" {
		addField("Range Attribute", fmt.Sprintf("%s (%s)", c.RangeAttributeName, c.RangeAttributeType))
	}
	addField("Capacity (r/w)", fmt.Sprintf("%d/%d", c.ReadCapacity, c.WriteCapacity))

	// Shards
	addSection("Shards")
	for _, shard := range c.Shards {
		value := shard.Table
		if shard.Operation != "" {
			value += " (" + shard.Operation + ")"
		}
		addField(strconv.FormatUint(shard.ShardID, 10), value)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
