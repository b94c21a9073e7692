package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad        Phase = "load"        // compiling guest code
	PhaseInstantiate Phase = "instantiate" // creating an instance
	PhaseInvoke      Phase = "invoke"      // dispatching to a guest handler
	PhaseHostCall    Phase = "host_call"   // guest calling back into the host
	PhaseRegister    Phase = "register"    // populating a dispatch table
	PhasePool        Phase = "pool"        // instance pool operations
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidBinary Kind = "invalid_binary"
	KindMissingExport Kind = "missing_export"
	KindClosed        Kind = "closed"
	KindNotFound      Kind = "not_found"
	KindGuestFault    Kind = "guest_fault"
	KindExhausted     Kind = "exhausted"
	KindInvalidInput  Kind = "invalid_input"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Cause     error
	Phase     Phase
	Kind      Kind
	Module    string
	Operation string
	Detail    string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Module != "" {
		b.WriteString(" module ")
		b.WriteString(e.Module)
	}
	if e.Operation != "" {
		fmt.Fprintf(&b, " operation %q", e.Operation)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Module sets the module name
func (b *Builder) Module(name string) *Builder {
	b.err.Module = name
	return b
}

// Operation sets the guest operation name
func (b *Builder) Operation(name string) *Builder {
	b.err.Operation = name
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidBinary creates a load error for code the engine could not compile
func InvalidBinary(cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidBinary,
		Detail: "compile guest code",
		Cause:  cause,
	}
}

// MissingExport creates an instantiation error for a guest lacking a
// required ABI export
func MissingExport(module, export string) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindMissingExport,
		Module: module,
		Detail: fmt.Sprintf("guest does not export %q", export),
	}
}

// Instantiation wraps a failure to create or initialize an instance
func Instantiation(module string, cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInvalidInput,
		Module: module,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Closed creates an error for operations on a closed module or instance
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: what + " is closed",
	}
}

// Unregistered creates an error for an operation no handler is registered for
func Unregistered(operation string) *Error {
	return &Error{
		Phase:     PhaseInvoke,
		Kind:      KindNotFound,
		Operation: operation,
		Detail:    "no handler registered",
	}
}

// GuestFault creates an error carrying a guest-reported failure message
// verbatim
func GuestFault(operation, msg string) *Error {
	return &Error{
		Phase:     PhaseInvoke,
		Kind:      KindGuestFault,
		Operation: operation,
		Detail:    msg,
	}
}

// InvokeFailed creates an error for an invocation the guest rejected without
// reporting a message
func InvokeFailed(operation string, cause error) *Error {
	return &Error{
		Phase:     PhaseInvoke,
		Kind:      KindInvalidInput,
		Operation: operation,
		Detail:    "call was unsuccessful",
		Cause:     cause,
	}
}

// PoolExhausted creates an error for a pool Get that timed out
func PoolExhausted(cause error) *Error {
	return &Error{
		Phase:  PhasePool,
		Kind:   KindExhausted,
		Detail: "get from pool timed out",
		Cause:  cause,
	}
}

// GuestMessage extracts the guest-reported message from err, if err is a
// guest fault. The second return reports whether it was one.
func GuestMessage(err error) (string, bool) {
	if e, ok := err.(*Error); ok && e.Kind == KindGuestFault {
		return e.Detail, true
	}
	return "", false
}
