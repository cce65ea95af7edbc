package local

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/linkedin/goavro/v2"
)

// Items and table metadata are persisted in Avro binary encoding.
// An attribute value is a record tagged by kind; only the field matching
// the kind carries data.

const attributeValueSchema = `{
	"type": "record",
	"name": "AttributeValue",
	"namespace": "ddbx",
	"fields": [
		{"name": "kind", "type": "string"},
		{"name": "s",    "type": "string"},
		{"name": "b",    "type": "bytes"},
		{"name": "bool", "type": "boolean"},
		{"name": "set",  "type": {"type": "array", "items": "string"}},
		{"name": "bset", "type": {"type": "array", "items": "bytes"}},
		{"name": "l",    "type": {"type": "array", "items": "AttributeValue"}},
		{"name": "m",    "type": {"type": "map", "values": "AttributeValue"}}
	]
}`

const itemSchema = `{"type": "map", "values": ` + attributeValueSchema + `}`

const tableSchema = `{
	"type": "record",
	"name": "Table",
	"namespace": "ddbx",
	"fields": [
		{"name": "name",      "type": "string"},
		{"name": "hashKey",   "type": "string"},
		{"name": "hashType",  "type": "string"},
		{"name": "rangeKey",  "type": "string"},
		{"name": "rangeType", "type": "string"},
		{"name": "read",      "type": "long"},
		{"name": "write",     "type": "long"},
		{"name": "created",   "type": "long"}
	]
}`

// codec converts items and table metadata to and from their stored form.
// goavro codecs are safe for concurrent use.
type codec struct {
	item  *goavro.Codec
	table *goavro.Codec
}

func newCodec() (*codec, error) {
	item, err := goavro.NewCodec(itemSchema)
	if err != nil {
		return nil, fmt.Errorf("item schema: %w", err)
	}
	table, err := goavro.NewCodec(tableSchema)
	if err != nil {
		return nil, fmt.Errorf("table schema: %w", err)
	}
	return &codec{item: item, table: table}, nil
}

// --------------------------------------------------------------------------
// Items
// --------------------------------------------------------------------------

func (c *codec) encodeItem(item map[string]types.AttributeValue) ([]byte, error) {
	native := make(map[string]any, len(item))
	for name, av := range item {
		v, err := attributeToNative(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		native[name] = v
	}
	return c.item.BinaryFromNative(nil, native)
}

func (c *codec) decodeItem(buf []byte) (map[string]types.AttributeValue, error) {
	native, _, err := c.item.NativeFromBinary(buf)
	if err != nil {
		return nil, err
	}
	m, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected item encoding %T", native)
	}
	item := make(map[string]types.AttributeValue, len(m))
	for name, v := range m {
		av, err := attributeFromNative(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		item[name] = av
	}
	return item, nil
}

func attributeToNative(av types.AttributeValue) (map[string]any, error) {
	rec := map[string]any{
		"kind": kindOf(av),
		"s":    "",
		"b":    []byte{},
		"bool": false,
		"set":  []any{},
		"bset": []any{},
		"l":    []any{},
		"m":    map[string]any{},
	}

	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		rec["s"] = v.Value
	case *types.AttributeValueMemberN:
		rec["s"] = v.Value
	case *types.AttributeValueMemberB:
		rec["b"] = v.Value
	case *types.AttributeValueMemberBOOL:
		rec["bool"] = v.Value
	case *types.AttributeValueMemberNULL:
		rec["bool"] = v.Value
	case *types.AttributeValueMemberSS:
		rec["set"] = toAny(v.Value)
	case *types.AttributeValueMemberNS:
		rec["set"] = toAny(v.Value)
	case *types.AttributeValueMemberBS:
		rec["bset"] = toAny(v.Value)
	case *types.AttributeValueMemberL:
		l := make([]any, 0, len(v.Value))
		for _, e := range v.Value {
			n, err := attributeToNative(e)
			if err != nil {
				return nil, err
			}
			l = append(l, n)
		}
		rec["l"] = l
	case *types.AttributeValueMemberM:
		m := make(map[string]any, len(v.Value))
		for k, e := range v.Value {
			n, err := attributeToNative(e)
			if err != nil {
				return nil, err
			}
			m[k] = n
		}
		rec["m"] = m
	default:
		return nil, fmt.Errorf("unsupported attribute value %T", av)
	}
	return rec, nil
}

func attributeFromNative(native any) (types.AttributeValue, error) {
	rec, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected attribute encoding %T", native)
	}
	kind, _ := rec["kind"].(string)

	switch kind {
	case "S":
		s, _ := rec["s"].(string)
		return &types.AttributeValueMemberS{Value: s}, nil
	case "N":
		s, _ := rec["s"].(string)
		return &types.AttributeValueMemberN{Value: s}, nil
	case "B":
		b, _ := rec["b"].([]byte)
		return &types.AttributeValueMemberB{Value: b}, nil
	case "BOOL":
		b, _ := rec["bool"].(bool)
		return &types.AttributeValueMemberBOOL{Value: b}, nil
	case "NULL":
		b, _ := rec["bool"].(bool)
		return &types.AttributeValueMemberNULL{Value: b}, nil
	case "SS":
		return &types.AttributeValueMemberSS{Value: fromAny[string](rec["set"])}, nil
	case "NS":
		return &types.AttributeValueMemberNS{Value: fromAny[string](rec["set"])}, nil
	case "BS":
		return &types.AttributeValueMemberBS{Value: fromAny[[]byte](rec["bset"])}, nil
	case "L":
		raw, _ := rec["l"].([]any)
		l := make([]types.AttributeValue, 0, len(raw))
		for _, e := range raw {
			av, err := attributeFromNative(e)
			if err != nil {
				return nil, err
			}
			l = append(l, av)
		}
		return &types.AttributeValueMemberL{Value: l}, nil
	case "M":
		raw, _ := rec["m"].(map[string]any)
		m := make(map[string]types.AttributeValue, len(raw))
		for k, e := range raw {
			av, err := attributeFromNative(e)
			if err != nil {
				return nil, err
			}
			m[k] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	default:
		return nil, fmt.Errorf("unknown attribute kind %q", kind)
	}
}

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func fromAny[T any](raw any) []T {
	values, _ := raw.([]any)
	out := make([]T, 0, len(values))
	for _, v := range values {
		if t, ok := v.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Table metadata
// --------------------------------------------------------------------------

func (c *codec) encodeTable(t *tableMeta) ([]byte, error) {
	return c.table.BinaryFromNative(nil, map[string]any{
		"name":      t.Name,
		"hashKey":   t.HashKey,
		"hashType":  string(t.HashType),
		"rangeKey":  t.RangeKey,
		"rangeType": string(t.RangeType),
		"read":      t.ReadCapacity,
		"write":     t.WriteCapacity,
		"created":   t.Created.UnixNano(),
	})
}

func (c *codec) decodeTable(buf []byte) (*tableMeta, error) {
	native, _, err := c.table.NativeFromBinary(buf)
	if err != nil {
		return nil, err
	}
	rec, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected table encoding %T", native)
	}

	str := func(name string) string {
		s, _ := rec[name].(string)
		return s
	}
	long := func(name string) int64 {
		n, _ := rec[name].(int64)
		return n
	}

	return &tableMeta{
		Name:          str("name"),
		HashKey:       str("hashKey"),
		HashType:      types.ScalarAttributeType(str("hashType")),
		RangeKey:      str("rangeKey"),
		RangeType:     types.ScalarAttributeType(str("rangeType")),
		ReadCapacity:  long("read"),
		WriteCapacity: long("write"),
		Created:       time.Unix(0, long("created")).UTC(),
	}, nil
}
