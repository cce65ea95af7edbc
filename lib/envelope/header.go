package envelope

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrTypeMismatch is matched (via errors.Is) by every TypeMismatchError.
var ErrTypeMismatch = errors.New("header type mismatch")

// TypeMismatchError is returned when a header exists but holds a value of another type.
type TypeMismatchError struct {
	Header string // Name of the header
	Want   string // Requested type
	Got    string // Type of the stored value
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("header %s: expected %s, got %s", e.Header, e.Want, e.Got)
}

// Is makes errors.Is(err, ErrTypeMismatch) work.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// Header returns the value of the named header as T.
//
//   - absent header: zero value, found=false, no error
//   - present with the wrong type: zero value, found=true, *TypeMismatchError
//
// No conversion is attempted, a string is never turned into a []string.
func Header[T any](m *Message, name string) (value T, found bool, err error) {
	raw, ok := m.Header(name)
	if !ok {
		return value, false, nil
	}
	typed, ok := raw.(T)
	if !ok {
		return value, true, &TypeMismatchError{
			Header: name,
			Want:   typeName[T](),
			Got:    fmt.Sprintf("%T", raw),
		}
	}
	return typed, true, nil
}

// HeaderOr is like Header but returns def when the header is absent.
func HeaderOr[T any](m *Message, name string, def T) (T, error) {
	value, found, err := Header[T](m, name)
	if err != nil {
		return value, err
	}
	if !found {
		return def, nil
	}
	return value, nil
}

// typeName returns a readable name for T, also for interface types.
func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
