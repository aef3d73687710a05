package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRegister Phase = "register" // module/class registration
	PhaseConvert  Phase = "convert"  // script to host
	PhaseLower    Phase = "lower"    // host to script
	PhaseCall     Phase = "call"     // sync dispatch
	PhaseAsync    Phase = "async"    // promise dispatch
	PhaseLifetime Phase = "lifetime" // shared objects, weak handles
	PhaseInvoke   Phase = "invoke"   // owning-thread hops
	PhaseLoad     Phase = "load"     // module loading
	PhaseConfig   Phase = "config"   // configuration
)

// Kind categorizes the error
type Kind string

const (
	KindConversion            Kind = "conversion"
	KindInvalidArgumentCount  Kind = "invalid_argument_count"
	KindUnsupportedConversion Kind = "unsupported_conversion"
	KindHostCallable          Kind = "host_callable"
	KindUnexpectedInternal    Kind = "unexpected_internal"
	KindTypeMismatch          Kind = "type_mismatch"
	KindOverflow              Kind = "overflow"
	KindFieldMissing          Kind = "field_missing"
	KindNotFound              Kind = "not_found"
	KindInvalidInput          Kind = "invalid_input"
	KindClosed                Kind = "closed"
	KindRegistration          Kind = "registration"
	KindAlreadySettled        Kind = "already_settled"
)

// Script-visible error codes
const (
	CodeArgumentCast          = "ERR_ARGUMENT_CAST"
	CodeInvalidArgsNumber     = "ERR_INVALID_ARGS_NUMBER"
	CodeUnsupportedConversion = "ERR_UNSUPPORTED_CONVERSION"
	CodeUnexpected            = "ERR_UNEXPECTED"
	CodeInternal              = "ERR_INTERNAL"
)

// CodedError is implemented by host errors that carry a script-visible code.
type CodedError interface {
	error
	ErrorCode() string
}

// Error is the structured error type used throughout the bridge
type Error struct {
	Value       any
	Cause       error
	Phase       Phase
	Kind        Kind
	Code        string
	GoType      string
	Descriptor  string
	Stringified string
	Module      string
	Method      string
	Detail      string
	Path        []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Module != "" || e.Method != "" {
		b.WriteString(" in ")
		if e.Module != "" {
			b.WriteString(e.Module)
			if e.Method != "" {
				b.WriteByte('.')
			}
		}
		b.WriteString(e.Method)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Descriptor != "" {
		b.WriteString(": expected ")
		b.WriteString(e.Descriptor)
		if e.Stringified != "" {
			b.WriteString(", got '")
			b.WriteString(e.Stringified)
			b.WriteByte('\'')
		}
	} else if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.Descriptor != "" || e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
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

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase == "" {
			return e.Kind == t.Kind
		}
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// ErrorCode returns the script-visible code for this error.
func (e *Error) ErrorCode() string {
	if e.Code != "" {
		return e.Code
	}
	switch e.Kind {
	case KindConversion, KindTypeMismatch, KindOverflow, KindFieldMissing:
		return CodeArgumentCast
	case KindInvalidArgumentCount:
		return CodeInvalidArgsNumber
	case KindUnsupportedConversion:
		return CodeUnsupportedConversion
	case KindHostCallable:
		if c, ok := findCode(e.Cause); ok {
			return c
		}
		return CodeUnexpected
	default:
		return CodeInternal
	}
}

// Message returns the message shown to scripts, without the phase prefix.
func (e *Error) Message() string {
	if e.Kind == KindHostCallable && e.Cause != nil {
		var coded *codedError
		if stderrors.As(e.Cause, &coded) {
			return coded.msg
		}
		return e.Cause.Error()
	}
	return e.Error()
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

// Path sets the argument/field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Descriptor sets the expected type descriptor
func (b *Builder) Descriptor(t string) *Builder {
	b.err.Descriptor = t
	return b
}

// Value sets the offending value and its string form
func (b *Builder) Value(v any, stringified string) *Builder {
	b.err.Value = v
	b.err.Stringified = stringified
	return b
}

// Call sets the module and method the error belongs to
func (b *Builder) Call(module, method string) *Builder {
	b.err.Module = module
	b.err.Method = method
	return b
}

// Code overrides the script-visible code
func (b *Builder) Code(code string) *Builder {
	b.err.Code = code
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

// Conversion creates an argument conversion error naming the offending value
func Conversion(path []string, descriptor string, value any, stringified string) *Error {
	return &Error{
		Phase:       PhaseConvert,
		Kind:        KindConversion,
		Path:        path,
		Descriptor:  descriptor,
		Value:       value,
		Stringified: stringified,
	}
}

// InvalidArgumentCount creates an arity error
func InvalidArgumentCount(method string, received, expected int) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindInvalidArgumentCount,
		Method: method,
		Value:  received,
		Detail: fmt.Sprintf("received %d arguments, but %d was expected", received, expected),
	}
}

// UnsupportedConversion creates an error for a descriptor without a converter
func UnsupportedConversion(descriptor string) *Error {
	return &Error{
		Phase:      PhaseConvert,
		Kind:       KindUnsupportedConversion,
		Descriptor: descriptor,
		Detail:     "no converter registered",
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, descriptor string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindTypeMismatch,
		Path:       path,
		GoType:     goType,
		Descriptor: descriptor,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// FieldMissing creates a missing field error
func FieldMissing(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required field %q not found", fieldName),
	}
}

// HostCallable wraps an error returned or thrown by a host body
func HostCallable(phase Phase, module, method string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindHostCallable,
		Module: module,
		Method: method,
		Cause:  cause,
	}
}

// UnexpectedInternal creates an internal failure error for a single call
func UnexpectedInternal(phase Phase, module, method string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnexpectedInternal,
		Module: module,
		Method: method,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Closed creates an error for operations on a torn-down bridge
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// Registration creates a registration error
func Registration(namespace, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s.%s", namespace, name),
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

type codedError struct {
	code string
	msg  string
}

func (e *codedError) Error() string     { return e.code + ": " + e.msg }
func (e *codedError) ErrorCode() string { return e.code }

// Coded creates a host error carrying a script-visible code.
func Coded(code, msg string, args ...any) error {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &codedError{code: code, msg: msg}
}

func findCode(err error) (string, bool) {
	var coded CodedError
	if err != nil && stderrors.As(err, &coded) {
		return coded.ErrorCode(), true
	}
	return "", false
}

// Classify returns the script-visible code and message for err.
// Uncoded errors are reported as ERR_UNEXPECTED with coded=false.
func Classify(err error) (code, msg string, coded bool) {
	if err == nil {
		return "", "", false
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.ErrorCode(), e.Message(), e.Kind != KindHostCallable || hasCode(e.Cause)
	}
	var c *codedError
	if stderrors.As(err, &c) {
		return c.code, c.msg, true
	}
	if code, ok := findCode(err); ok {
		return code, err.Error(), true
	}
	return CodeUnexpected, err.Error(), false
}

func hasCode(err error) bool {
	_, ok := findCode(err)
	return ok
}
