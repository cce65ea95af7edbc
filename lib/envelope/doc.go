// Package envelope provides the per-request message carrier used by the command
// dispatcher.
//
// An Envelope has an input section and, depending on its exchange Pattern, an
// output section. Each section is a Message: a set of named headers holding
// arbitrary values plus an optional body.
//
// Headers are read through the generic Header and HeaderOr accessors, which never
// convert values. Asking for a header with the wrong type yields a
// *TypeMismatchError instead of a silent zero value:
//
//	names, found, err := envelope.Header[[]string](env.In(), "DdbAttributeNames")
//	if err != nil {
//		// header present but not a []string
//	}
//
// Results are written into Envelope.ResponseSection(), which is the output section
// for response capable envelopes (PatternInOut, PatternInOptionalOut) and the input
// section otherwise.
package envelope
