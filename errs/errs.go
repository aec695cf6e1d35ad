// Package errs defines the typed error kinds shared by every mapcore subsystem.
package errs

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies an error the way the builder, reflection engine and pool report failures.
type Kind string

const (
	// KindBuilder marks a malformed document, unknown setting, or duplicate id with a
	// mismatched value. Fatal to the current parse.
	KindBuilder Kind = "BUILDER"
	// KindForwardReference marks a reference that cannot yet be resolved. Caught at the
	// enclosing element and enqueued to the matching pending queue.
	KindForwardReference Kind = "FORWARD_REFERENCE"
	// KindReflection marks invocation against an ambiguous accessor, a missing property, or
	// failed generic resolution.
	KindReflection Kind = "REFLECTION"
	// KindTypeAlias marks an unknown alias that also fails to resolve as a qualified type name.
	KindTypeAlias Kind = "TYPE_ALIAS"
	// KindConnection marks a pool exhausted beyond tolerance, or an interrupted wait.
	KindConnection Kind = "CONNECTION"
)

// Error is the concrete type behind every sentinel below. Context carries structured
// detail (id, property name, namespace, …) useful to a caller doing errors.As.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	cause   error
}

func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s %v", e.Kind, e.Message, e.Context)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, errs.Builder) match any *Error of the same Kind, regardless of
// message/context, the way a sentinel comparison would.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" && len(t.Context) == 0 {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// Sentinels usable with errors.Is for a bare Kind check: errors.Is(err, errs.Builder).
var (
	Builder          = &Error{Kind: KindBuilder}
	ForwardReference = &Error{Kind: KindForwardReference}
	Reflection       = &Error{Kind: KindReflection}
	TypeAlias        = &Error{Kind: KindTypeAlias}
	Connection       = &Error{Kind: KindConnection}
)

func new_(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewBuilder constructs a BuilderError wrapped with a stack trace via cockroachdb/errors.
func NewBuilder(format string, args ...any) error {
	return errors.WithStack(new_(KindBuilder, format, args...))
}

// NewForwardReference constructs a ForwardReferenceError naming the unresolved reference.
func NewForwardReference(format string, args ...any) error {
	return errors.WithStack(new_(KindForwardReference, format, args...))
}

// NewReflection constructs a ReflectionError naming the offending property or type.
func NewReflection(format string, args ...any) error {
	return errors.WithStack(new_(KindReflection, format, args...))
}

// NewTypeAlias constructs a TypeAliasError naming the unresolved alias.
func NewTypeAlias(format string, args ...any) error {
	return errors.WithStack(new_(KindTypeAlias, format, args...))
}

// NewConnection constructs a ConnectionError describing pool exhaustion or an interrupted wait.
func NewConnection(format string, args ...any) error {
	return errors.WithStack(new_(KindConnection, format, args...))
}

// WithContext attaches structured key/value detail to an *Error produced by one of the
// New* constructors above (it unwraps past the cockroachdb/errors stack frame to reach it).
func WithContext(err error, kv map[string]any) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	if e.Context == nil {
		e.Context = make(map[string]any, len(kv))
	}
	for k, v := range kv {
		e.Context[k] = v
	}
	return err
}

// Ignorable marks best-effort failures — final-field copy and similar paths — that §7 of
// the mapping model names as silently swallowed. It is never returned to a caller; it
// exists so call sites can express "record and move on" without inventing a bare bool.
type Ignorable struct{ cause error }

func (e *Ignorable) Error() string { return "ignorable: " + e.cause.Error() }
func (e *Ignorable) Unwrap() error { return e.cause }

// NewIgnorable wraps cause as an Ignorable. Callers log it at Debug and continue.
func NewIgnorable(cause error) error { return &Ignorable{cause: cause} }

// Is reports whether err is one of the typed kinds above (excluding Ignorable).
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
