package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/ddbx/lib/ddb"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("local")

// catalogTable holds the table definitions. '#' is not allowed in table names,
// so it cannot collide with a user table.
const catalogTable = "#tables"

// Client is an in-process store client implementing ddb.Client.
//
// Writes to the same table are serialized, reads run concurrently.
// The client owns the backend and closes it on Close.
type Client struct {
	backend Backend
	codec   *codec
	tables  *xsync.MapOf[string, *tableMeta]
	locks   *xsync.MapOf[string, *sync.Mutex]
	now     func() time.Time
}

var _ ddb.Client = (*Client)(nil)

// New creates a client on top of backend and loads the stored table definitions.
func New(backend Backend) (*Client, error) {
	c, err := newCodec()
	if err != nil {
		return nil, err
	}

	client := &Client{
		backend: backend,
		codec:   c,
		tables:  xsync.NewMapOf[string, *tableMeta](),
		locks:   xsync.NewMapOf[string, *sync.Mutex](),
		now:     time.Now,
	}

	var decodeErr error
	err = backend.Range(catalogTable, "", func(name string, value []byte) bool {
		meta, err := c.decodeTable(value)
		if err != nil {
			decodeErr = fmt.Errorf("table %s: %w", name, err)
			return false
		}
		client.tables.Store(name, meta)
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	log.Infof("local client started with %d table(s)", client.tables.Size())
	return client, nil
}

// Close closes the backend.
func (c *Client) Close() error {
	return c.backend.Close()
}

// lock serializes writes to table.
func (c *Client) lock(table string) func() {
	mu, _ := c.locks.LoadOrCompute(table, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

// lockTable serializes writes to the table of meta. It fails with a
// ResourceNotFoundException if the table was dropped (or dropped and created
// again) while waiting for the lock.
func (c *Client) lockTable(meta *tableMeta) (func(), error) {
	unlock := c.lock(meta.Name)
	if current, ok := c.tables.Load(meta.Name); !ok || current != meta {
		unlock()
		return nil, tableNotFound(meta.Name)
	}
	return unlock, nil
}

// table returns the definition of an existing table.
func (c *Client) table(name *string) (*tableMeta, error) {
	if name == nil || *name == "" {
		return nil, validationError("TableName is required")
	}
	meta, ok := c.tables.Load(*name)
	if !ok {
		return nil, tableNotFound(*name)
	}
	return meta, nil
}

// --------------------------------------------------------------------------
// Table operations
// --------------------------------------------------------------------------

func (c *Client) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	meta, err := c.tableFromInput(in)
	if err != nil {
		return nil, err
	}

	unlock := c.lock(meta.Name)
	defer unlock()

	if _, exists := c.tables.Load(meta.Name); exists {
		return nil, tableInUse(meta.Name)
	}

	buf, err := c.codec.encodeTable(meta)
	if err != nil {
		return nil, err
	}
	if err = c.backend.Set(catalogTable, meta.Name, buf); err != nil {
		return nil, err
	}
	c.tables.Store(meta.Name, meta)

	log.Infof("created table %s (hash key %s)", meta.Name, meta.HashKey)
	return &dynamodb.CreateTableOutput{
		TableDescription: meta.description(types.TableStatusActive, 0, 0),
	}, nil
}

func (c *Client) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	meta, err := c.table(in.TableName)
	if err != nil {
		return nil, err
	}
	count, size, err := c.tableStats(meta.Name)
	if err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{
		Table: meta.description(types.TableStatusActive, count, size),
	}, nil
}

func (c *Client) DeleteTable(_ context.Context, in *dynamodb.DeleteTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	meta, err := c.table(in.TableName)
	if err != nil {
		return nil, err
	}

	unlock, err := c.lockTable(meta)
	if err != nil {
		return nil, err
	}
	defer unlock()

	count, size, err := c.tableStats(meta.Name)
	if err != nil {
		return nil, err
	}
	if err = c.backend.DropTable(meta.Name); err != nil {
		return nil, err
	}
	if err = c.backend.Delete(catalogTable, meta.Name); err != nil {
		return nil, err
	}
	c.tables.Delete(meta.Name)

	log.Infof("deleted table %s (%d items)", meta.Name, count)
	return &dynamodb.DeleteTableOutput{
		TableDescription: meta.description(types.TableStatusDeleting, count, size),
	}, nil
}

// tableStats counts the items and their encoded size.
func (c *Client) tableStats(table string) (count, size int64, err error) {
	err = c.backend.Range(table, "", func(_ string, value []byte) bool {
		count++
		size += int64(len(value))
		return true
	})
	return count, size, err
}

func (c *Client) tableFromInput(in *dynamodb.CreateTableInput) (*tableMeta, error) {
	name := aws.ToString(in.TableName)
	if err := validateTableName(name); err != nil {
		return nil, err
	}

	defs := make(map[string]types.ScalarAttributeType, len(in.AttributeDefinitions))
	for _, def := range in.AttributeDefinitions {
		switch def.AttributeType {
		case types.ScalarAttributeTypeS, types.ScalarAttributeTypeN, types.ScalarAttributeTypeB:
		default:
			return nil, validationError("invalid attribute type %q for %s", def.AttributeType, aws.ToString(def.AttributeName))
		}
		defs[aws.ToString(def.AttributeName)] = def.AttributeType
	}

	meta := &tableMeta{Name: name, Created: c.now().UTC()}
	for _, ks := range in.KeySchema {
		attr := aws.ToString(ks.AttributeName)
		typ, ok := defs[attr]
		if !ok {
			return nil, validationError("key attribute %s is not defined in AttributeDefinitions", attr)
		}
		switch {
		case ks.KeyType == types.KeyTypeHash && meta.HashKey == "":
			meta.HashKey, meta.HashType = attr, typ
		case ks.KeyType == types.KeyTypeRange && meta.RangeKey == "":
			meta.RangeKey, meta.RangeType = attr, typ
		default:
			return nil, validationError("invalid KeySchema: duplicate or unknown key type %q", ks.KeyType)
		}
	}
	if meta.HashKey == "" {
		return nil, validationError("invalid KeySchema: a HASH key is required")
	}
	if meta.HashKey == meta.RangeKey {
		return nil, validationError("invalid KeySchema: HASH and RANGE key must differ")
	}

	if pt := in.ProvisionedThroughput; pt != nil {
		meta.ReadCapacity = aws.ToInt64(pt.ReadCapacityUnits)
		meta.WriteCapacity = aws.ToInt64(pt.WriteCapacityUnits)
	}
	return meta, nil
}

// validateTableName applies the DynamoDB naming rules: 3-255 characters of
// a-z, A-Z, 0-9, '_', '-' and '.'.
func validateTableName(name string) error {
	if len(name) < 3 || len(name) > 255 {
		return validationError("TableName must be between 3 and 255 characters long: %q", name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return validationError("TableName contains invalid character %q", r)
		}
	}
	return nil
}
