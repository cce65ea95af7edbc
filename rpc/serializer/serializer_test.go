package serializer

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/ValentinKolb/ddbx/lib/ddb"
	"github.com/ValentinKolb/ddbx/lib/envelope"
	"github.com/ValentinKolb/ddbx/rpc/common"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON": NewJSONSerializer,
	"GOB":  NewGOBSerializer,
	"Avro": NewAvroSerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Dispatch request
		{
			MsgType:   common.MsgTDispatch,
			Operation: "PutItem",
			Pattern:   "InOut",
			Headers: []common.WireHeader{
				{Name: "DdbItem", Type: common.WireTItem, Value: json.RawMessage(`{"id":{"S":"o-1"}}`)},
				{Name: "DdbTableName", Type: common.WireTString, Value: json.RawMessage(`"Orders"`)},
			},
		},

		// Dispatch request with an existing output section
		{
			MsgType: common.MsgTDispatch,
			Pattern: "InOut",
			Headers: []common.WireHeader{
				{Name: "DdbKey", Type: common.WireTItem, Value: json.RawMessage(`{"id":{"S":"o-1"}}`)},
			},
			HasOut: true,
			OutHeaders: []common.WireHeader{
				{Name: "TraceId", Type: common.WireTString, Value: json.RawMessage(`"t-1"`)},
			},
			OutBody: &common.WireValue{Type: common.WireTString, Value: json.RawMessage(`"out"`)},
		},

		// Dispatch request with an empty output section
		{MsgType: common.MsgTDispatch, Pattern: "InOut", HasOut: true},

		// Success response with body
		{
			MsgType: common.MsgTSuccess,
			Headers: []common.WireHeader{
				{Name: "DdbCount", Type: common.WireTInt32, Value: json.RawMessage(`2`)},
			},
			Body: &common.WireValue{Type: common.WireTString, Value: json.RawMessage(`"payload"`)},
		},

		// Error response
		{
			MsgType:   common.MsgTError,
			Err:       "test error message",
			ErrCode:   uint64(ddb.RetCMissingParameter),
			ErrHeader: "DdbKey",
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTDispatch; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestEnvelopeRoundTrip sends an encoded envelope through every serializer and rebuilds it
func TestEnvelopeRoundTrip(t *testing.T) {
	env := envelope.NewWithHeaders(envelope.PatternInOut, map[string]any{
		ddb.HeaderOperation: ddb.OpUpdateItem,
		ddb.HeaderKey:       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "o-1"}},
		ddb.HeaderUpdateValues: map[string]types.AttributeValueUpdate{
			"qty": {Action: types.AttributeActionAdd, Value: &types.AttributeValueMemberN{Value: "1"}},
		},
		ddb.HeaderLimit: int32(5),
	})

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			req, err := common.NewDispatchRequest("", env)
			if err != nil {
				t.Fatalf("Failed to create request: %v", err)
			}
			data, err := serializer.Serialize(*req)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err = serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			decoded, err := result.Envelope()
			if err != nil {
				t.Fatalf("Failed to rebuild envelope: %v", err)
			}

			if decoded.Pattern() != envelope.PatternInOut {
				t.Errorf("Expected pattern InOut, got %s", decoded.Pattern())
			}
			if !reflect.DeepEqual(decoded.In().Headers(), env.In().Headers()) {
				t.Errorf("Headers differ after round trip:\nOriginal: %v\nResult: %v", env.In().Headers(), decoded.In().Headers())
			}
			if decoded.HasOut() {
				t.Error("Expected no output section")
			}

			// an existing output section travels with the request
			withOut := envelope.NewWithHeaders(envelope.PatternInOut, env.In().Headers())
			withOut.SetOut(envelope.NewMessage())
			withOut.Out().SetHeader("TraceId", "t-1")
			req, err = common.NewDispatchRequest("", withOut)
			if err != nil {
				t.Fatalf("Failed to create request: %v", err)
			}
			if data, err = serializer.Serialize(*req); err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			if err = serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if decoded, err = result.Envelope(); err != nil {
				t.Fatalf("Failed to rebuild envelope: %v", err)
			}
			if !decoded.HasOut() || !reflect.DeepEqual(decoded.Out().Headers(), map[string]any{"TraceId": "t-1"}) {
				t.Errorf("Output section differs after round trip: %v", decoded.Out())
			}
		})
	}
}
