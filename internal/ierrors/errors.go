// Package ierrors provides the structured error taxonomy used across
// indiseek: a semantic Kind (not an HTTP status, not a raw Go type) that
// every layer — pipeline stage, store, HTTP handler — can switch on.
package ierrors

import "fmt"

// Kind is the semantic classification of an error, independent of any
// transport-level status code.
type Kind string

const (
	NotFound             Kind = "NOT_FOUND"
	Conflict             Kind = "CONFLICT"
	BadRequest           Kind = "BAD_REQUEST"
	ProviderAuthError    Kind = "PROVIDER_AUTH_ERROR"
	ProviderTransientErr Kind = "PROVIDER_TRANSIENT_ERROR"
	ParseErr             Kind = "PARSE_ERROR"
	PipelineErr          Kind = "PIPELINE_ERROR"
	Internal             Kind = "INTERNAL"
)

// Error is indiseek's structured error type. It carries enough context to
// log usefully and to map deterministically to an HTTP status at the
// surface layer, without the surface layer needing to inspect messages.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is enables errors.Is(err, &Error{Kind: ...}) comparisons by Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind from an existing cause. Returns
// nil if err is nil, so call sites can write `return ierrors.Wrap(...)`
// unconditionally in a defer-free error path.
func Wrap(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// OfKind reports whether err (or something in its chain) is an *Error of
// the given Kind.
func OfKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// NotFoundf is a convenience constructor for the common NotFound case.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// Conflictf is a convenience constructor for the common Conflict case.
func Conflictf(format string, args ...any) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

// BadRequestf is a convenience constructor for the common BadRequest case.
func BadRequestf(format string, args ...any) *Error {
	return New(BadRequest, fmt.Sprintf(format, args...))
}
