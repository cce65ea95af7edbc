package serializer

import (
	"fmt"

	"github.com/ValentinKolb/ddbx/rpc/common"
	"github.com/linkedin/goavro/v2"
)

// messageSchema is the Avro schema of common.Message. The optional body is
// encoded as an array holding zero or one value.
const messageSchema = `{
  "type": "record",
  "name": "Message",
  "namespace": "ddbx.rpc",
  "fields": [
    {"name": "msgType",   "type": "int"},
    {"name": "operation", "type": "string"},
    {"name": "pattern",   "type": "string"},
    {"name": "headers",   "type": {"type": "array", "items": {
      "type": "record", "name": "WireHeader",
      "fields": [
        {"name": "name",  "type": "string"},
        {"name": "type",  "type": "string"},
        {"name": "value", "type": "bytes"}
      ]}}},
    {"name": "body",      "type": {"type": "array", "items": {
      "type": "record", "name": "WireValue",
      "fields": [
        {"name": "type",  "type": "string"},
        {"name": "value", "type": "bytes"}
      ]}}},
    {"name": "hasOut",     "type": "boolean"},
    {"name": "outHeaders", "type": {"type": "array", "items": "WireHeader"}},
    {"name": "outBody",    "type": {"type": "array", "items": "WireValue"}},
    {"name": "err",       "type": "string"},
    {"name": "errCode",   "type": "long"},
    {"name": "errHeader", "type": "string"}
  ]
}`

// NewAvroSerializer creates a new serializer using Avro binary encoding
func NewAvroSerializer() IRPCSerializer {
	codec, err := goavro.NewCodec(messageSchema)
	if err != nil {
		// the schema is a constant, failing here is a programming error
		panic(fmt.Sprintf("invalid message schema: %v", err))
	}
	return &avroSerializerImpl{codec: codec}
}

// avroSerializerImpl implements the IRPCSerializer interface using Avro encoding
type avroSerializerImpl struct {
	codec *goavro.Codec
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (a *avroSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return a.codec.BinaryFromNative(nil, map[string]any{
		"msgType":    int32(msg.MsgType),
		"operation":  msg.Operation,
		"pattern":    msg.Pattern,
		"headers":    headersToNative(msg.Headers),
		"body":       bodyToNative(msg.Body),
		"hasOut":     msg.HasOut,
		"outHeaders": headersToNative(msg.OutHeaders),
		"outBody":    bodyToNative(msg.OutBody),
		"err":        msg.Err,
		"errCode":    int64(msg.ErrCode),
		"errHeader":  msg.ErrHeader,
	})
}

func (a *avroSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	native, _, err := a.codec.NativeFromBinary(b)
	if err != nil {
		return err
	}
	record, ok := native.(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected avro value %T", native)
	}

	*msg = common.Message{
		MsgType:    common.MessageType(record["msgType"].(int32)),
		Operation:  record["operation"].(string),
		Pattern:    record["pattern"].(string),
		Headers:    headersFromNative(record["headers"].([]any)),
		Body:       bodyFromNative(record["body"].([]any)),
		HasOut:     record["hasOut"].(bool),
		OutHeaders: headersFromNative(record["outHeaders"].([]any)),
		OutBody:    bodyFromNative(record["outBody"].([]any)),
		Err:        record["err"].(string),
		ErrCode:    uint64(record["errCode"].(int64)),
		ErrHeader:  record["errHeader"].(string),
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func headersToNative(headers []common.WireHeader) []any {
	native := make([]any, len(headers))
	for i, h := range headers {
		native[i] = map[string]any{
			"name":  h.Name,
			"type":  h.Type,
			"value": []byte(h.Value),
		}
	}
	return native
}

// headersFromNative returns nil for an empty array.
func headersFromNative(native []any) []common.WireHeader {
	if len(native) == 0 {
		return nil
	}
	headers := make([]common.WireHeader, len(native))
	for i, h := range native {
		fields := h.(map[string]any)
		headers[i] = common.WireHeader{
			Name:  fields["name"].(string),
			Type:  fields["type"].(string),
			Value: fields["value"].([]byte),
		}
	}
	return headers
}

func bodyToNative(body *common.WireValue) []any {
	if body == nil {
		return []any{}
	}
	return []any{map[string]any{
		"type":  body.Type,
		"value": []byte(body.Value),
	}}
}

func bodyFromNative(native []any) *common.WireValue {
	if len(native) == 0 {
		return nil
	}
	fields := native[0].(map[string]any)
	return &common.WireValue{
		Type:  fields["type"].(string),
		Value: fields["value"].([]byte),
	}
}
