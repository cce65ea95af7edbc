package ddb

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/ddbx/lib/envelope"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

// RetCode classifies a command failure.
type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Command executed successfully.
	RetCMissingParameter                // 1: Required parameter absent from headers and configuration.
	RetCTypeMismatch                    // 2: Header present but holds a value of the wrong type.
	RetCUnknownOperation                // 3: Operation id is not registered.
	RetCConditionFailed                 // 4: Store-side conditional check did not pass.
	RetCOperationFailed                 // 5: Any other store client failure.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCMissingParameter:
		return "MissingParameter"
	case RetCTypeMismatch:
		return "TypeMismatch"
	case RetCUnknownOperation:
		return "UnknownOperation"
	case RetCConditionFailed:
		return "ConditionFailed"
	case RetCOperationFailed:
		return "OperationFailed"
	default:
		return fmt.Sprintf("Unknown(%d)", uint64(c))
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type returned by commands and the dispatcher.
// Code tells callers whether the request was malformed, the operation is unsupported,
// a business precondition failed or the backend failed.
type Error struct {
	Code   RetCode // The return code
	Header string  // Offending header, if any
	Msg    string  // The error message
	Err    error   // Underlying cause, if any
}

// Sentinel errors to be used with errors.Is
var (
	ErrMissingParameter = &Error{Code: RetCMissingParameter}
	ErrTypeMismatch     = &Error{Code: RetCTypeMismatch}
	ErrUnknownOperation = &Error{Code: RetCUnknownOperation}
	ErrConditionFailed  = &Error{Code: RetCConditionFailed}
	ErrOperationFailed  = &Error{Code: RetCOperationFailed}
)

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("DdbError (code %s): %s", e.Code, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code when the target carries no message,
// which is how the sentinel errors are defined.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Msg == "" && t.Header == "" && t.Err == nil {
		return t.Code == e.Code
	}
	return t == e
}

// CodeOf returns the RetCode carried by err, RetCSuccess for nil and
// RetCOperationFailed for foreign errors.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCOperationFailed
}

// --------------------------------------------------------------------------
// Helper constructors
// --------------------------------------------------------------------------

func missingParameter(header string) *Error {
	return &Error{
		Code:   RetCMissingParameter,
		Header: header,
		Msg:    fmt.Sprintf("missing required parameter %s", header),
	}
}

// headerError converts an error from envelope.Header into an *Error.
func headerError(header string, err error) *Error {
	return &Error{
		Code:   RetCTypeMismatch,
		Header: header,
		Msg:    "invalid header value",
		Err:    err,
	}
}

func typeMismatch(header, want string, got any) *Error {
	return headerError(header, &envelope.TypeMismatchError{
		Header: header,
		Want:   want,
		Got:    fmt.Sprintf("%T", got),
	})
}

func unknownOperation(name string) *Error {
	return &Error{
		Code: RetCUnknownOperation,
		Msg:  fmt.Sprintf("unknown operation %q", name),
	}
}

// clientError translates a store client failure. Conditional check failures are kept
// apart so callers can tell contention from infrastructure failure.
func clientError(op Operation, err error) *Error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return &Error{
			Code: RetCConditionFailed,
			Msg:  fmt.Sprintf("%s: condition check failed", op),
			Err:  err,
		}
	}
	return &Error{
		Code: RetCOperationFailed,
		Msg:  fmt.Sprintf("%s failed", op),
		Err:  err,
	}
}
