package envelope

import (
	"fmt"
	"sort"
)

// --------------------------------------------------------------------------
// Exchange Pattern
// --------------------------------------------------------------------------

// Pattern defines how an Envelope is exchanged between caller and callee.
type Pattern uint8

const (
	PatternInOnly        Pattern = iota // One-way, results are written into the input section
	PatternInOut                        // Request/response, results are written into the output section
	PatternInOptionalOut                // Request with an optional response
)

// String returns the string representation of a Pattern.
func (p Pattern) String() string {
	switch p {
	case PatternInOnly:
		return "InOnly"
	case PatternInOut:
		return "InOut"
	case PatternInOptionalOut:
		return "InOptionalOut"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// IsOutCapable reports whether the pattern carries a distinct output section.
func (p Pattern) IsOutCapable() bool {
	return p == PatternInOut || p == PatternInOptionalOut
}

// ParsePattern converts the string representation back into a Pattern.
func ParsePattern(s string) (Pattern, error) {
	switch s {
	case "InOnly", "":
		return PatternInOnly, nil
	case "InOut":
		return PatternInOut, nil
	case "InOptionalOut":
		return PatternInOptionalOut, nil
	default:
		return PatternInOnly, fmt.Errorf("unknown exchange pattern: %s", s)
	}
}

// --------------------------------------------------------------------------
// Message
// --------------------------------------------------------------------------

// Message is one section of an Envelope: a set of named headers plus an optional body.
// Headers are looked up by their exact name.
//
// Thread-safety: a Message is not safe for concurrent mutation.
type Message struct {
	headers map[string]any
	Body    any
}

// NewMessage creates an empty message.
func NewMessage() *Message {
	return &Message{headers: make(map[string]any)}
}

// Header returns the raw value stored under name.
func (m *Message) Header(name string) (any, bool) {
	v, ok := m.headers[name]
	return v, ok
}

// HasHeader reports whether a header with the given name is present.
func (m *Message) HasHeader(name string) bool {
	_, ok := m.headers[name]
	return ok
}

// SetHeader stores value under name. A nil value removes the header.
func (m *Message) SetHeader(name string, value any) {
	if value == nil {
		delete(m.headers, name)
		return
	}
	if m.headers == nil {
		m.headers = make(map[string]any)
	}
	m.headers[name] = value
}

// RemoveHeader removes the header with the given name (no-op if absent).
func (m *Message) RemoveHeader(name string) {
	delete(m.headers, name)
}

// HeaderNames returns the names of all headers in sorted order.
func (m *Message) HeaderNames() []string {
	names := make([]string, 0, len(m.headers))
	for name := range m.headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Headers returns a shallow copy of all headers.
func (m *Message) Headers() map[string]any {
	headers := make(map[string]any, len(m.headers))
	for k, v := range m.headers {
		headers[k] = v
	}
	return headers
}

// CopyFrom replaces the headers and body of m with a shallow copy of other.
func (m *Message) CopyFrom(other *Message) {
	m.headers = other.Headers()
	m.Body = other.Body
}

// --------------------------------------------------------------------------
// Envelope
// --------------------------------------------------------------------------

// Envelope carries one unit of work: an input section and, depending on the
// exchange pattern, an output section.
type Envelope struct {
	pattern Pattern
	in      *Message
	out     *Message
}

// New creates an envelope with an empty input section.
func New(pattern Pattern) *Envelope {
	return &Envelope{
		pattern: pattern,
		in:      NewMessage(),
	}
}

// NewWithHeaders creates an envelope whose input section holds the given headers.
func NewWithHeaders(pattern Pattern, headers map[string]any) *Envelope {
	e := New(pattern)
	for name, value := range headers {
		e.in.SetHeader(name, value)
	}
	return e
}

// Pattern returns the exchange pattern of the envelope.
func (e *Envelope) Pattern() Pattern {
	return e.pattern
}

// IsResponseCapable reports whether results go into a distinct output section.
func (e *Envelope) IsResponseCapable() bool {
	return e.pattern.IsOutCapable()
}

// In returns the input section.
func (e *Envelope) In() *Message {
	return e.in
}

// Out returns the output section, or nil if none was created yet.
func (e *Envelope) Out() *Message {
	return e.out
}

// HasOut reports whether an output section exists.
func (e *Envelope) HasOut() bool {
	return e.out != nil
}

// SetOut replaces the output section.
func (e *Envelope) SetOut(m *Message) {
	e.out = m
}

// ResponseSection returns the section results must be written to.
//
// For response capable envelopes this is the output section. It is created on first
// use as a copy of the input section, so callers reading the output still see the
// request headers. For one-way envelopes the input section itself is returned, so
// single-direction callers still observe results.
func (e *Envelope) ResponseSection() *Message {
	if !e.IsResponseCapable() {
		return e.in
	}
	if e.out == nil {
		e.out = NewMessage()
		e.out.CopyFrom(e.in)
	}
	return e.out
}
