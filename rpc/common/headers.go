package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/ddbx/lib/ddb"
	"github.com/ValentinKolb/ddbx/lib/envelope"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --------------------------------------------------------------------------
// Wire Types
// --------------------------------------------------------------------------

// WireValue is a header value (or message body) tagged with its Go type, so the
// receiving side can rebuild exactly the type the commands expect.
type WireValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// WireHeader is a named WireValue.
type WireHeader struct {
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Type tags of the supported header value types
const (
	WireTString            = "string"
	WireTBool              = "bool"
	WireTInt               = "int"
	WireTInt32             = "int32"
	WireTInt64             = "int64"
	WireTFloat64           = "float64"
	WireTBytes             = "bytes"
	WireTStrings           = "strings"
	WireTTime              = "time"
	WireTOperation         = "operation"
	WireTReturnValue       = "returnValue"
	WireTItem              = "item"
	WireTItems             = "items"
	WireTBatchResponse     = "batchResponse"
	WireTExpected          = "expected"
	WireTUpdates           = "updates"
	WireTConditions        = "conditions"
	WireTKeysAndAttributes = "keysAndAttributes"
	WireTKeySchema         = "keySchema"
)

// --------------------------------------------------------------------------
// Section Encoding
// --------------------------------------------------------------------------

// ErrUnsupportedType is returned for values the header codec cannot encode.
var ErrUnsupportedType = errors.New("unsupported header type")

// EncodeSection encodes all headers (sorted by name) and the body of m.
func EncodeSection(m *envelope.Message) ([]WireHeader, *WireValue, error) {
	names := m.HeaderNames()
	headers := make([]WireHeader, 0, len(names))
	for _, name := range names {
		raw, _ := m.Header(name)
		v, err := EncodeValue(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("header %s: %w", name, err)
		}
		headers = append(headers, WireHeader{Name: name, Type: v.Type, Value: v.Value})
	}

	var body *WireValue
	if m.Body != nil {
		v, err := EncodeValue(m.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("body: %w", err)
		}
		body = &v
	}
	return headers, body, nil
}

// EncodeRequestSection encodes m like EncodeSection, but values of types the codec
// does not know are left out, the caller keeps them (see RestoreSection). Commands
// only read Ddb headers, so an unsupported Ddb header fails with RetCTypeMismatch.
func EncodeRequestSection(m *envelope.Message) ([]WireHeader, *WireValue, error) {
	names := m.HeaderNames()
	headers := make([]WireHeader, 0, len(names))
	for _, name := range names {
		raw, _ := m.Header(name)
		v, err := EncodeValue(raw)
		switch {
		case err == nil:
			headers = append(headers, WireHeader{Name: name, Type: v.Type, Value: v.Value})
		case !errors.Is(err, ErrUnsupportedType):
			return nil, nil, fmt.Errorf("header %s: %w", name, err)
		case strings.HasPrefix(name, ddb.HeaderPrefix):
			return nil, nil, &ddb.Error{
				Code:   ddb.RetCTypeMismatch,
				Header: name,
				Msg:    fmt.Sprintf("header %s: %T cannot be sent to the server", name, raw),
			}
		}
	}

	var body *WireValue
	if m.Body != nil {
		v, err := EncodeValue(m.Body)
		switch {
		case err == nil:
			body = &v
		case !errors.Is(err, ErrUnsupportedType):
			return nil, nil, fmt.Errorf("body: %w", err)
		}
	}
	return headers, body, nil
}

// RestoreSection copies the values EncodeRequestSection left out of sent into the
// decoded response section.
func RestoreSection(response, sent *envelope.Message) {
	for _, name := range sent.HeaderNames() {
		if strings.HasPrefix(name, ddb.HeaderPrefix) || response.HasHeader(name) {
			continue
		}
		raw, _ := sent.Header(name)
		if _, err := EncodeValue(raw); errors.Is(err, ErrUnsupportedType) {
			response.SetHeader(name, raw)
		}
	}
	if response.Body == nil && sent.Body != nil {
		if _, err := EncodeValue(sent.Body); errors.Is(err, ErrUnsupportedType) {
			response.Body = sent.Body
		}
	}
}

// DecodeSection replaces the headers and body of m with the decoded wire values.
func DecodeSection(m *envelope.Message, headers []WireHeader, body *WireValue) error {
	decoded := envelope.NewMessage()
	for _, h := range headers {
		v, err := DecodeValue(WireValue{Type: h.Type, Value: h.Value})
		if err != nil {
			return fmt.Errorf("header %s: %w", h.Name, err)
		}
		decoded.SetHeader(h.Name, v)
	}
	if body != nil {
		v, err := DecodeValue(*body)
		if err != nil {
			return fmt.Errorf("body: %w", err)
		}
		decoded.Body = v
	}
	m.CopyFrom(decoded)
	return nil
}

// --------------------------------------------------------------------------
// Value Encoding
// --------------------------------------------------------------------------

// EncodeValue encodes a single header value. Values of types the commands do not
// use are rejected.
func EncodeValue(value any) (WireValue, error) {
	var tag string
	var wire any
	var err error

	switch v := value.(type) {
	case string:
		tag, wire = WireTString, v
	case bool:
		tag, wire = WireTBool, v
	case int:
		tag, wire = WireTInt, v
	case int32:
		tag, wire = WireTInt32, v
	case int64:
		tag, wire = WireTInt64, v
	case float64:
		tag, wire = WireTFloat64, v
	case []byte:
		tag, wire = WireTBytes, v
	case []string:
		tag, wire = WireTStrings, v
	case time.Time:
		tag, wire = WireTTime, v
	case ddb.Operation:
		tag, wire = WireTOperation, v.String()
	case types.ReturnValue:
		tag, wire = WireTReturnValue, string(v)
	case map[string]types.AttributeValue:
		tag = WireTItem
		wire, err = toWireItem(v)
	case []map[string]types.AttributeValue:
		tag = WireTItems
		wire, err = convertSlice(v, toWireItem)
	case map[string][]map[string]types.AttributeValue:
		tag = WireTBatchResponse
		wire, err = convertMap(v, func(items []map[string]types.AttributeValue) ([]map[string]wireAttribute, error) {
			return convertSlice(items, toWireItem)
		})
	case map[string]types.ExpectedAttributeValue:
		tag = WireTExpected
		wire, err = convertMap(v, toWireExpected)
	case map[string]types.AttributeValueUpdate:
		tag = WireTUpdates
		wire, err = convertMap(v, toWireUpdate)
	case map[string]types.Condition:
		tag = WireTConditions
		wire, err = convertMap(v, toWireCondition)
	case map[string]types.KeysAndAttributes:
		tag = WireTKeysAndAttributes
		wire, err = convertMap(v, toWireKeysAndAttributes)
	case []types.KeySchemaElement:
		tag = WireTKeySchema
		wire, err = convertSlice(v, func(e types.KeySchemaElement) (wireKeySchemaElement, error) {
			return wireKeySchemaElement{AttributeName: aws.ToString(e.AttributeName), KeyType: string(e.KeyType)}, nil
		})
	default:
		return WireValue{}, fmt.Errorf("%w %T", ErrUnsupportedType, value)
	}
	if err != nil {
		return WireValue{}, err
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return WireValue{}, err
	}
	return WireValue{Type: tag, Value: raw}, nil
}

// DecodeValue decodes a single header value back into its Go type.
func DecodeValue(v WireValue) (any, error) {
	switch v.Type {
	case WireTString:
		return decodeAs[string](v.Value)
	case WireTBool:
		return decodeAs[bool](v.Value)
	case WireTInt:
		return decodeAs[int](v.Value)
	case WireTInt32:
		return decodeAs[int32](v.Value)
	case WireTInt64:
		return decodeAs[int64](v.Value)
	case WireTFloat64:
		return decodeAs[float64](v.Value)
	case WireTBytes:
		return decodeAs[[]byte](v.Value)
	case WireTStrings:
		return decodeAs[[]string](v.Value)
	case WireTTime:
		return decodeAs[time.Time](v.Value)
	case WireTOperation:
		s, err := decodeAs[string](v.Value)
		if err != nil {
			return nil, err
		}
		return ddb.ParseOperation(s)
	case WireTReturnValue:
		s, err := decodeAs[string](v.Value)
		return types.ReturnValue(s), err
	case WireTItem:
		return decodeWith(v.Value, fromWireItem)
	case WireTItems:
		return decodeWith(v.Value, func(w []map[string]wireAttribute) ([]map[string]types.AttributeValue, error) {
			return convertSlice(w, fromWireItem)
		})
	case WireTBatchResponse:
		return decodeWith(v.Value, func(w map[string][]map[string]wireAttribute) (map[string][]map[string]types.AttributeValue, error) {
			return convertMap(w, func(items []map[string]wireAttribute) ([]map[string]types.AttributeValue, error) {
				return convertSlice(items, fromWireItem)
			})
		})
	case WireTExpected:
		return decodeWith(v.Value, func(w map[string]wireExpected) (map[string]types.ExpectedAttributeValue, error) {
			return convertMap(w, fromWireExpected)
		})
	case WireTUpdates:
		return decodeWith(v.Value, func(w map[string]wireUpdate) (map[string]types.AttributeValueUpdate, error) {
			return convertMap(w, fromWireUpdate)
		})
	case WireTConditions:
		return decodeWith(v.Value, func(w map[string]wireCondition) (map[string]types.Condition, error) {
			return convertMap(w, fromWireCondition)
		})
	case WireTKeysAndAttributes:
		return decodeWith(v.Value, func(w map[string]wireKeysAndAttributes) (map[string]types.KeysAndAttributes, error) {
			return convertMap(w, fromWireKeysAndAttributes)
		})
	case WireTKeySchema:
		return decodeWith(v.Value, func(w []wireKeySchemaElement) ([]types.KeySchemaElement, error) {
			return convertSlice(w, func(e wireKeySchemaElement) (types.KeySchemaElement, error) {
				return types.KeySchemaElement{AttributeName: aws.String(e.AttributeName), KeyType: types.KeyType(e.KeyType)}, nil
			})
		})
	default:
		return nil, fmt.Errorf("unknown header type %q", v.Type)
	}
}

func decodeAs[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

// decodeWith unmarshals raw into the wire type W and converts it with fn.
func decodeWith[W, T any](raw json.RawMessage, fn func(W) (T, error)) (any, error) {
	w, err := decodeAs[W](raw)
	if err != nil {
		return nil, err
	}
	return fn(w)
}

func convertMap[A, B any](in map[string]A, fn func(A) (B, error)) (map[string]B, error) {
	if in == nil {
		return nil, nil
	}
	out := make(map[string]B, len(in))
	for k, v := range in {
		c, err := fn(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = c
	}
	return out, nil
}

func convertSlice[A, B any](in []A, fn func(A) (B, error)) ([]B, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]B, len(in))
	for i, v := range in {
		c, err := fn(v)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Attribute Values (DynamoDB JSON)
// --------------------------------------------------------------------------

// wireAttribute is the DynamoDB JSON form of an attribute value: exactly one
// field is set.
type wireAttribute struct {
	S    *string                   `json:"S,omitempty"`
	N    *string                   `json:"N,omitempty"`
	B    *[]byte                   `json:"B,omitempty"`
	BOOL *bool                     `json:"BOOL,omitempty"`
	NULL *bool                     `json:"NULL,omitempty"`
	SS   *[]string                 `json:"SS,omitempty"`
	NS   *[]string                 `json:"NS,omitempty"`
	BS   *[][]byte                 `json:"BS,omitempty"`
	L    *[]wireAttribute          `json:"L,omitempty"`
	M    *map[string]wireAttribute `json:"M,omitempty"`
}

func toWireAttribute(av types.AttributeValue) (wireAttribute, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return wireAttribute{S: &v.Value}, nil
	case *types.AttributeValueMemberN:
		return wireAttribute{N: &v.Value}, nil
	case *types.AttributeValueMemberB:
		return wireAttribute{B: &v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return wireAttribute{BOOL: &v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return wireAttribute{NULL: &v.Value}, nil
	case *types.AttributeValueMemberSS:
		return wireAttribute{SS: &v.Value}, nil
	case *types.AttributeValueMemberNS:
		return wireAttribute{NS: &v.Value}, nil
	case *types.AttributeValueMemberBS:
		return wireAttribute{BS: &v.Value}, nil
	case *types.AttributeValueMemberL:
		l, err := convertSlice(v.Value, toWireAttribute)
		if err != nil {
			return wireAttribute{}, err
		}
		if l == nil {
			l = []wireAttribute{}
		}
		return wireAttribute{L: &l}, nil
	case *types.AttributeValueMemberM:
		m, err := toWireItem(v.Value)
		if err != nil {
			return wireAttribute{}, err
		}
		if m == nil {
			m = map[string]wireAttribute{}
		}
		return wireAttribute{M: &m}, nil
	default:
		return wireAttribute{}, fmt.Errorf("unsupported attribute value %T", av)
	}
}

func fromWireAttribute(w wireAttribute) (types.AttributeValue, error) {
	switch {
	case w.S != nil:
		return &types.AttributeValueMemberS{Value: *w.S}, nil
	case w.N != nil:
		return &types.AttributeValueMemberN{Value: *w.N}, nil
	case w.B != nil:
		return &types.AttributeValueMemberB{Value: *w.B}, nil
	case w.BOOL != nil:
		return &types.AttributeValueMemberBOOL{Value: *w.BOOL}, nil
	case w.NULL != nil:
		return &types.AttributeValueMemberNULL{Value: *w.NULL}, nil
	case w.SS != nil:
		return &types.AttributeValueMemberSS{Value: *w.SS}, nil
	case w.NS != nil:
		return &types.AttributeValueMemberNS{Value: *w.NS}, nil
	case w.BS != nil:
		return &types.AttributeValueMemberBS{Value: *w.BS}, nil
	case w.L != nil:
		l, err := convertSlice(*w.L, fromWireAttribute)
		if err != nil {
			return nil, err
		}
		if l == nil {
			l = []types.AttributeValue{}
		}
		return &types.AttributeValueMemberL{Value: l}, nil
	case w.M != nil:
		m, err := fromWireItem(*w.M)
		if err != nil {
			return nil, err
		}
		if m == nil {
			m = map[string]types.AttributeValue{}
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	default:
		return nil, fmt.Errorf("attribute value without type")
	}
}

func toWireItem(item map[string]types.AttributeValue) (map[string]wireAttribute, error) {
	return convertMap(item, toWireAttribute)
}

func fromWireItem(item map[string]wireAttribute) (map[string]types.AttributeValue, error) {
	return convertMap(item, fromWireAttribute)
}

func toWireOptional(av types.AttributeValue) (*wireAttribute, error) {
	if av == nil {
		return nil, nil
	}
	w, err := toWireAttribute(av)
	return &w, err
}

func fromWireOptional(w *wireAttribute) (types.AttributeValue, error) {
	if w == nil {
		return nil, nil
	}
	return fromWireAttribute(*w)
}

// --------------------------------------------------------------------------
// Request Parameter Types
// --------------------------------------------------------------------------

type wireExpected struct {
	Value              *wireAttribute  `json:"Value,omitempty"`
	Exists             *bool           `json:"Exists,omitempty"`
	ComparisonOperator string          `json:"ComparisonOperator,omitempty"`
	AttributeValueList []wireAttribute `json:"AttributeValueList,omitempty"`
}

func toWireExpected(e types.ExpectedAttributeValue) (wireExpected, error) {
	value, err := toWireOptional(e.Value)
	if err != nil {
		return wireExpected{}, err
	}
	list, err := convertSlice(e.AttributeValueList, toWireAttribute)
	if err != nil {
		return wireExpected{}, err
	}
	return wireExpected{
		Value:              value,
		Exists:             e.Exists,
		ComparisonOperator: string(e.ComparisonOperator),
		AttributeValueList: list,
	}, nil
}

func fromWireExpected(w wireExpected) (types.ExpectedAttributeValue, error) {
	value, err := fromWireOptional(w.Value)
	if err != nil {
		return types.ExpectedAttributeValue{}, err
	}
	list, err := convertSlice(w.AttributeValueList, fromWireAttribute)
	if err != nil {
		return types.ExpectedAttributeValue{}, err
	}
	return types.ExpectedAttributeValue{
		Value:              value,
		Exists:             w.Exists,
		ComparisonOperator: types.ComparisonOperator(w.ComparisonOperator),
		AttributeValueList: list,
	}, nil
}

type wireUpdate struct {
	Action string         `json:"Action,omitempty"`
	Value  *wireAttribute `json:"Value,omitempty"`
}

func toWireUpdate(u types.AttributeValueUpdate) (wireUpdate, error) {
	value, err := toWireOptional(u.Value)
	return wireUpdate{Action: string(u.Action), Value: value}, err
}

func fromWireUpdate(w wireUpdate) (types.AttributeValueUpdate, error) {
	value, err := fromWireOptional(w.Value)
	return types.AttributeValueUpdate{Action: types.AttributeAction(w.Action), Value: value}, err
}

type wireCondition struct {
	ComparisonOperator string          `json:"ComparisonOperator"`
	AttributeValueList []wireAttribute `json:"AttributeValueList,omitempty"`
}

func toWireCondition(c types.Condition) (wireCondition, error) {
	list, err := convertSlice(c.AttributeValueList, toWireAttribute)
	return wireCondition{ComparisonOperator: string(c.ComparisonOperator), AttributeValueList: list}, err
}

func fromWireCondition(w wireCondition) (types.Condition, error) {
	list, err := convertSlice(w.AttributeValueList, fromWireAttribute)
	return types.Condition{ComparisonOperator: types.ComparisonOperator(w.ComparisonOperator), AttributeValueList: list}, err
}

type wireKeysAndAttributes struct {
	Keys            []map[string]wireAttribute `json:"Keys"`
	AttributesToGet []string                   `json:"AttributesToGet,omitempty"`
	ConsistentRead  *bool                      `json:"ConsistentRead,omitempty"`
}

func toWireKeysAndAttributes(k types.KeysAndAttributes) (wireKeysAndAttributes, error) {
	keys, err := convertSlice(k.Keys, toWireItem)
	return wireKeysAndAttributes{Keys: keys, AttributesToGet: k.AttributesToGet, ConsistentRead: k.ConsistentRead}, err
}

func fromWireKeysAndAttributes(w wireKeysAndAttributes) (types.KeysAndAttributes, error) {
	keys, err := convertSlice(w.Keys, fromWireItem)
	return types.KeysAndAttributes{Keys: keys, AttributesToGet: w.AttributesToGet, ConsistentRead: w.ConsistentRead}, err
}

type wireKeySchemaElement struct {
	AttributeName string `json:"AttributeName"`
	KeyType       string `json:"KeyType"`
}
