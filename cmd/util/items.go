package util

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ValentinKolb/ddbx/lib/envelope"
	"github.com/ValentinKolb/ddbx/rpc/common"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --------------------------------------------------------------------------
// Parsing
// --------------------------------------------------------------------------

// ParseItem parses an item or key given on the command line.
// Plain JSON objects are converted with the attributevalue encoder (numbers keep
// their literal), typed input is DynamoDB JSON ({"id":{"S":"o-1"}}).
func ParseItem(s string, typed bool) (map[string]types.AttributeValue, error) {
	if typed {
		item, err := decodeTyped[map[string]types.AttributeValue](common.WireTItem, s)
		if err != nil {
			return nil, fmt.Errorf("invalid item %s: %w", s, err)
		}
		return item, nil
	}

	var plain map[string]any
	if err := decodePlain(s, &plain); err != nil {
		return nil, fmt.Errorf("invalid item %s: %w", s, err)
	}
	if plain == nil {
		return nil, fmt.Errorf("invalid item %s: expected a JSON object", s)
	}
	return attributevalue.MarshalMap(withNumbers(plain))
}

// ParseItems parses a JSON array of items or keys, see ParseItem.
func ParseItems(s string, typed bool) ([]map[string]types.AttributeValue, error) {
	if typed {
		items, err := decodeTyped[[]map[string]types.AttributeValue](common.WireTItems, s)
		if err != nil {
			return nil, fmt.Errorf("invalid item list %s: %w", s, err)
		}
		return items, nil
	}

	var plain []map[string]any
	if err := decodePlain(s, &plain); err != nil {
		return nil, fmt.Errorf("invalid item list %s: %w", s, err)
	}
	items := make([]map[string]types.AttributeValue, 0, len(plain))
	for _, p := range plain {
		item, err := attributevalue.MarshalMap(withNumbers(p))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ParseConditions parses key conditions or a scan filter.
// The input is always DynamoDB JSON: {"id":{"ComparisonOperator":"EQ","AttributeValueList":[{"S":"o-1"}]}}
func ParseConditions(s string) (map[string]types.Condition, error) {
	conditions, err := decodeTyped[map[string]types.Condition](common.WireTConditions, s)
	if err != nil {
		return nil, fmt.Errorf("invalid conditions %s: %w", s, err)
	}
	return conditions, nil
}

// ParseExpected parses the expected values of a conditional write, see ParseConditions.
func ParseExpected(s string) (map[string]types.ExpectedAttributeValue, error) {
	expected, err := decodeTyped[map[string]types.ExpectedAttributeValue](common.WireTExpected, s)
	if err != nil {
		return nil, fmt.Errorf("invalid expected values %s: %w", s, err)
	}
	return expected, nil
}

func decodeTyped[T any](tag string, s string) (T, error) {
	var zero T
	v, err := common.DecodeValue(common.WireValue{Type: tag, Value: json.RawMessage(s)})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected value type %T", v)
	}
	return t, nil
}

func decodePlain(s string, v any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	return dec.Decode(v)
}

// withNumbers replaces json.Number with attributevalue.Number, so numbers become N
// attributes with their literal instead of float64 values
func withNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		return attributevalue.Number(val.String())
	case map[string]any:
		for k, elem := range val {
			val[k] = withNumbers(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = withNumbers(elem)
		}
		return val
	default:
		return v
	}
}

// --------------------------------------------------------------------------
// Output
// --------------------------------------------------------------------------

// Printable converts a header value into a value json.Marshal renders readably.
// Attribute maps become plain JSON (numbers as float64) or, if typed, DynamoDB JSON.
func Printable(v any, typed bool) (any, error) {
	switch val := v.(type) {
	case map[string]types.AttributeValue:
		if typed {
			return typedJSON(val)
		}
		var out map[string]any
		err := attributevalue.UnmarshalMap(val, &out)
		return out, err
	case []map[string]types.AttributeValue:
		if typed {
			return typedJSON(val)
		}
		out := make([]map[string]any, 0, len(val))
		err := attributevalue.UnmarshalListOfMaps(val, &out)
		return out, err
	case map[string][]map[string]types.AttributeValue:
		if typed {
			return typedJSON(val)
		}
		out := make(map[string]any, len(val))
		for table, items := range val {
			p, err := Printable(items, false)
			if err != nil {
				return nil, err
			}
			out[table] = p
		}
		return out, nil
	case map[string]types.KeysAndAttributes, map[string]types.Condition,
		map[string]types.ExpectedAttributeValue, map[string]types.AttributeValueUpdate,
		[]types.KeySchemaElement:
		// parameter types have no plain form
		return typedJSON(val)
	default:
		return v, nil
	}
}

func typedJSON(v any) (json.RawMessage, error) {
	w, err := common.EncodeValue(v)
	if err != nil {
		return nil, err
	}
	return w.Value, nil
}

// FormatResult renders the named headers of m as an indented JSON object.
// Missing headers are skipped, the "Ddb" prefix is removed from the names.
func FormatResult(m *envelope.Message, typed bool, names ...string) (string, error) {
	result := make(map[string]any, len(names))
	for _, name := range names {
		v, ok := m.Header(name)
		if !ok {
			continue
		}
		p, err := Printable(v, typed)
		if err != nil {
			return "", fmt.Errorf("failed to render %s: %w", name, err)
		}
		result[strings.TrimPrefix(name, "Ddb")] = p
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
