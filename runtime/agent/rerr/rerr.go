// Package rerr defines the runtime's error taxonomy. Every fatal condition
// raised by the execution core carries one of the Kind values below so
// callers can branch on failure class without string matching, following the
// same chain-preserving shape as toolerrors.ToolError.
package rerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind discriminates the taxonomy of errors the execution core can raise.
type Kind string

const (
	ManifestInvalid   Kind = "manifest_invalid"
	ModelUnresolved    Kind = "model_unresolved"
	MaxDepthExceeded   Kind = "max_depth_exceeded"
	PermissionDenied   Kind = "permission_denied"
	InputValidation    Kind = "input_validation"
	ToolNotFound       Kind = "tool_not_found"
	ScopeClosed        Kind = "scope_closed"
	AttachmentDenied   Kind = "attachment_denied"
	ToolsetCleanupErr  Kind = "toolset_cleanup_error"
	ExternalIO         Kind = "external_io"
)

// RuntimeError is the concrete error type for every fatal condition in the
// execution core. Entry and Stack are populated by the call site closest to
// the failure so a human can locate the offending worker without unwinding
// the Go call stack.
type RuntimeError struct {
	Kind Kind
	// Message is the human-readable summary of the failure.
	Message string
	// Entry is the offending entry or worker name, when known.
	Entry string
	// Stack is the invocation-name chain from the root entry to Entry.
	Stack []string
	// Cause links to the underlying error, if any.
	Cause error
}

// New constructs a RuntimeError of the given kind.
func New(kind Kind, message string) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: message}
}

// Errorf formats a RuntimeError message.
func Errorf(kind Kind, format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// FromError wraps an arbitrary error as a RuntimeError of the given kind,
// preserving err as Cause for errors.Is/As.
func FromError(kind Kind, message string, err error) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: message, Cause: err}
}

// WithEntry returns a copy of e annotated with the offending entry name.
func (e *RuntimeError) WithEntry(name string) *RuntimeError {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Entry = name
	return &cp
}

// WithStack returns a copy of e annotated with the invocation-name chain.
func (e *RuntimeError) WithStack(stack []string) *RuntimeError {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Stack = append([]string(nil), stack...)
	return &cp
}

func (e *RuntimeError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Entry != "" {
		fmt.Fprintf(&b, " (entry=%s)", e.Entry)
	}
	if len(e.Stack) > 0 {
		fmt.Fprintf(&b, " (stack=%s)", strings.Join(e.Stack, "->"))
	}
	return b.String()
}

func (e *RuntimeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is a RuntimeError with the same Kind, so callers
// can write errors.Is(err, rerr.New(rerr.ToolNotFound, "")).
func (e *RuntimeError) Is(target error) bool {
	var re *RuntimeError
	if !errors.As(target, &re) {
		return false
	}
	return re.Kind == e.Kind
}

// KindOf extracts the Kind from err, if err is (or wraps) a RuntimeError.
func KindOf(err error) (Kind, bool) {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return "", false
}
