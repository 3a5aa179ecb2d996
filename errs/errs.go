// Package errs implements the error taxonomy shared by every core
// component: Validation, ToolExecution, CodeExecution, Evaluator, Hook,
// Learning, and Fatal. Every boundary (tool call, hook, evaluator, learning
// step) converts panics and failures into one of these kinds so that one
// misbehaving extension cannot halt a turn.
package errs

import "fmt"

// Kind classifies an Error by the boundary that produced it.
type Kind string

const (
	// KindValidation covers missing tool, missing suite, blank id, unknown
	// tool parameter, and cyclic dependency failures. Surfaced synchronously.
	KindValidation Kind = "validation"
	// KindToolExecution covers a tool call that raised.
	KindToolExecution Kind = "tool_execution"
	// KindCodeExecution covers a code snippet that failed to parse or raised
	// at runtime.
	KindCodeExecution Kind = "code_execution"
	// KindEvaluator covers a criterion evaluator that raised or timed out.
	KindEvaluator Kind = "evaluator"
	// KindHook covers an individual hook that raised.
	KindHook Kind = "hook"
	// KindLearning covers an extraction step that raised.
	KindLearning Kind = "learning"
	// KindFatal covers configuration invariants violated at startup; these
	// are the only errors that abort rather than recover locally.
	KindFatal Kind = "fatal"
)

// Error is the structured error type returned across component boundaries.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	// Fields carries structured context (tool name, suite id, criterion
	// name, ...) for logging without string-formatting it into Message.
	Fields map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithField returns a copy of e with the given field attached. Intended for
// chaining: errs.New(...).WithField("tool", name).
func (e *Error) WithField(key string, value any) *Error {
	out := *e
	fields := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = value
	out.Fields = fields
	return &out
}

// Is reports whether err is an *Error of the given kind, following wrapped
// causes.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		break
	}
	return false
}
