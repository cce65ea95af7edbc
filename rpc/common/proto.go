package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/ddbx/lib/ddb"
	"github.com/ValentinKolb/ddbx/lib/envelope"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// A dispatch request carries the exchange pattern and the input section of an
// envelope (plus its output section if one exists), a success response carries the
// section the command wrote its results to.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Request fields
	Operation string `json:"operation,omitempty"` // Operation id, empty = resolve from headers / configuration
	Pattern   string `json:"pattern,omitempty"`   // Exchange pattern of the envelope

	// Envelope section (request: input section, response: response section)
	Headers []WireHeader `json:"headers,omitempty"`
	Body    *WireValue   `json:"body,omitempty"`

	// Output section the envelope already had when it was sent (requests only)
	HasOut     bool         `json:"hasOut,omitempty"`
	OutHeaders []WireHeader `json:"outHeaders,omitempty"`
	OutBody    *WireValue   `json:"outBody,omitempty"`

	// Error fields
	Err       string `json:"err,omitempty"`       // Empty if no error, otherwise contains the error message
	ErrCode   uint64 `json:"errCode,omitempty"`   // ddb.RetCode of the failure
	ErrHeader string `json:"errHeader,omitempty"` // Offending header, if any
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewDispatchRequest creates a new dispatch request for env.
// If operation is empty the server resolves the operation from the DdbOperation header
// or its shard configuration.
func NewDispatchRequest(operation string, env *envelope.Envelope) (*Message, error) {
	headers, body, err := EncodeRequestSection(env.In())
	if err != nil {
		return nil, err
	}
	msg := &Message{
		MsgType:   MsgTDispatch,
		Operation: operation,
		Pattern:   env.Pattern().String(),
		Headers:   headers,
		Body:      body,
	}

	// an existing output section receives the results, so it travels along
	if env.IsResponseCapable() && env.HasOut() {
		msg.HasOut = true
		if msg.OutHeaders, msg.OutBody, err = EncodeRequestSection(env.Out()); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// NewDispatchResponse creates the response for an executed envelope. On success it
// carries the response section of env, on failure the error and its return code.
func NewDispatchResponse(env *envelope.Envelope, err error) *Message {
	if err != nil {
		return NewErrorResponse(err)
	}
	headers, body, encErr := EncodeSection(env.ResponseSection())
	if encErr != nil {
		return NewErrorResponse(ddb.NewError(ddb.RetCOperationFailed, fmt.Sprintf("failed to encode response: %s", encErr)))
	}
	return &Message{
		MsgType: MsgTSuccess,
		Headers: headers,
		Body:    body,
	}
}

// NewErrorResponse creates a new error response. The return code and header of a
// *ddb.Error are kept so the client can rebuild it.
func NewErrorResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTError,
		Err:     err.Error(),
		ErrCode: uint64(ddb.CodeOf(err)),
	}
	var e *ddb.Error
	if errors.As(err, &e) {
		msg.Err = e.Msg
		if e.Err != nil {
			msg.Err += ": " + e.Err.Error()
		}
		msg.ErrHeader = e.Header
	}
	return msg
}

// Envelope rebuilds the envelope of a dispatch request.
func (m *Message) Envelope() (*envelope.Envelope, error) {
	pattern, err := envelope.ParsePattern(m.Pattern)
	if err != nil {
		return nil, err
	}
	env := envelope.New(pattern)
	if err = DecodeSection(env.In(), m.Headers, m.Body); err != nil {
		return nil, err
	}
	if m.HasOut {
		out := envelope.NewMessage()
		if err = DecodeSection(out, m.OutHeaders, m.OutBody); err != nil {
			return nil, err
		}
		env.SetOut(out)
	}
	return env, nil
}

// AsError rebuilds the *ddb.Error of an error response, nil for any other message.
func (m *Message) AsError() error {
	if m.MsgType != MsgTError {
		return nil
	}
	code := ddb.RetCode(m.ErrCode)
	if code == ddb.RetCSuccess {
		code = ddb.RetCOperationFailed
	}
	return &ddb.Error{
		Code:   code,
		Header: m.ErrHeader,
		Msg:    m.Err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTDispatch:
		return "dispatch"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "dispatch":
		*t = MsgTDispatch
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Command operations

	MsgTDispatch // Run a command against the shard's store
)
