package local

import (
	"encoding/base64"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// tableMeta is the persisted definition of a table.
type tableMeta struct {
	Name          string
	HashKey       string
	HashType      types.ScalarAttributeType
	RangeKey      string // empty if the table has no range key
	RangeType     types.ScalarAttributeType
	ReadCapacity  int64
	WriteCapacity int64
	Created       time.Time
}

func (t *tableMeta) hasRange() bool {
	return t.RangeKey != ""
}

func (t *tableMeta) isKeyAttribute(name string) bool {
	return name == t.HashKey || (t.hasRange() && name == t.RangeKey)
}

// description renders the table as returned by DescribeTable.
func (t *tableMeta) description(status types.TableStatus, count, size int64) *types.TableDescription {
	desc := &types.TableDescription{
		TableName:        aws.String(t.Name),
		TableStatus:      status,
		ItemCount:        aws.Int64(count),
		TableSizeBytes:   aws.Int64(size),
		CreationDateTime: aws.Time(t.Created),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(t.HashKey), AttributeType: t.HashType},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(t.HashKey), KeyType: types.KeyTypeHash},
		},
		ProvisionedThroughput: &types.ProvisionedThroughputDescription{
			ReadCapacityUnits:  aws.Int64(t.ReadCapacity),
			WriteCapacityUnits: aws.Int64(t.WriteCapacity),
		},
	}
	if t.hasRange() {
		desc.AttributeDefinitions = append(desc.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(t.RangeKey), AttributeType: t.RangeType,
		})
		desc.KeySchema = append(desc.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(t.RangeKey), KeyType: types.KeyTypeRange,
		})
	}
	return desc
}

// --------------------------------------------------------------------------
// Primary keys
// --------------------------------------------------------------------------

// primaryKey extracts the key attributes from attrs and returns them together with
// their storage key. With exact set attrs must not contain anything but the key.
func (t *tableMeta) primaryKey(attrs map[string]types.AttributeValue, exact bool) (map[string]types.AttributeValue, string, error) {
	hash, err := t.keyAttribute(attrs, t.HashKey, t.HashType)
	if err != nil {
		return nil, "", err
	}
	key := map[string]types.AttributeValue{t.HashKey: hash}
	storage := t.hashPrefix(hash)

	if t.hasRange() {
		rng, err := t.keyAttribute(attrs, t.RangeKey, t.RangeType)
		if err != nil {
			return nil, "", err
		}
		key[t.RangeKey] = rng
		storage += scalarString(rng)
	}

	if exact && len(attrs) != len(key) {
		return nil, "", validationError("The provided key element does not match the schema")
	}
	return key, storage, nil
}

func (t *tableMeta) keyAttribute(attrs map[string]types.AttributeValue, name string, typ types.ScalarAttributeType) (types.AttributeValue, error) {
	av, ok := attrs[name]
	if !ok || av == nil {
		return nil, validationError("One or more parameter values were invalid: Missing the key %s in the item", name)
	}
	if kindOf(av) != string(typ) {
		return nil, validationError("One or more parameter values were invalid: Type mismatch for key %s expected: %s actual: %s", name, typ, kindOf(av))
	}
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		if v.Value == "" {
			return nil, validationError("One or more parameter values are not valid. The AttributeValue for a key attribute cannot contain an empty string value. Key: %s", name)
		}
	case *types.AttributeValueMemberN:
		if _, err := parseNumber(v.Value); err != nil {
			return nil, err
		}
	case *types.AttributeValueMemberB:
		if len(v.Value) == 0 {
			return nil, validationError("One or more parameter values are not valid. The AttributeValue for a key attribute cannot contain an empty binary value. Key: %s", name)
		}
	}
	return av, nil
}

// hashPrefix returns the storage key prefix shared by all items with the given hash key.
// The length prefix keeps hash values from being prefixes of each other.
func (t *tableMeta) hashPrefix(hash types.AttributeValue) string {
	h := scalarString(hash)
	return strconv.Itoa(len(h)) + ":" + h
}

// scalarString encodes a validated key value. Numbers are normalized so that
// 1 and 1.0 address the same item.
func scalarString(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return "S" + v.Value
	case *types.AttributeValueMemberN:
		n, err := canonicalNumber(v.Value)
		if err != nil {
			return "N" + v.Value
		}
		return "N" + n
	case *types.AttributeValueMemberB:
		return "B" + base64.StdEncoding.EncodeToString(v.Value)
	default:
		return ""
	}
}
