package tamd

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCode uint16

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeClosed
	ErrCodeReinitialized
	ErrCodeValidationFailed
	ErrCodeCircularDependency
	ErrCodeTypeMismatch
	ErrCodeHostFailed
)

var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:            "UNKNOWN",
	ErrCodeClosed:             "CLOSED",
	ErrCodeReinitialized:      "REINITIALIZED",
	ErrCodeValidationFailed:   "VALIDATION_FAILED",
	ErrCodeCircularDependency: "CIRCULAR_DEPENDENCY",
	ErrCodeTypeMismatch:       "TYPE_MISMATCH",
	ErrCodeHostFailed:         "HOST_FAILED",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", c)
}

type Error struct {
	Code    ErrorCode
	Message string
	Module  string
	Cause   error
	Stack   []string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s]", e.Code))

	if e.Module != "" {
		b.WriteString(fmt.Sprintf(" module=%q:", e.Module))
	}

	b.WriteString(" ")
	b.WriteString(e.Message)

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func (e *Error) WithModule(module string) *Error {
	e.Module = module
	return e
}

func (e *Error) WithStack(stack []string) *Error {
	e.Stack = stack
	return e
}

func newError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

var (
	ErrClosed        = newError(ErrCodeClosed, "runtime is closed", nil)
	ErrReinitialized = newError(ErrCodeReinitialized, "request discarded by reinitialize", nil)
)

func errHostFailed(op string, cause error) *Error {
	return newError(ErrCodeHostFailed, "host rejected "+op, cause)
}

func errValidationFailed(cause error) *Error {
	return newError(ErrCodeValidationFailed, "runtime validation failed", cause)
}

func errCircularDependency(chain []string) *Error {
	return newError(
		ErrCodeCircularDependency,
		fmt.Sprintf("circular dependency detected: %s", strings.Join(chain, " -> ")),
		nil,
	).WithStack(chain)
}

func errTypeMismatch(module string, got any, want string) *Error {
	return newError(
		ErrCodeTypeMismatch,
		fmt.Sprintf("module value %T is not assignable to %s", got, want),
		nil,
	).WithModule(module)
}

// hasCode walks the whole error tree, so codes joined under a validation
// failure are found too.
func hasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &Error{Code: code})
}

func IsClosed(err error) bool {
	return hasCode(err, ErrCodeClosed)
}

func IsReinitialized(err error) bool {
	return hasCode(err, ErrCodeReinitialized)
}

func IsValidationFailed(err error) bool {
	return hasCode(err, ErrCodeValidationFailed)
}

func IsCircularDependency(err error) bool {
	return hasCode(err, ErrCodeCircularDependency)
}

func IsTypeMismatch(err error) bool {
	return hasCode(err, ErrCodeTypeMismatch)
}

func IsHostFailed(err error) bool {
	return hasCode(err, ErrCodeHostFailed)
}

// Kind classifies a diagnostic report.
type Kind uint8

const (
	InvalidIdentifier Kind = iota + 1
	DuplicateDefinition
	InvalidValue
	MissingModule
)

var kindNames = map[Kind]string{
	InvalidIdentifier:   "InvalidIdentifier",
	DuplicateDefinition: "DuplicateDefinition",
	InvalidValue:        "InvalidValue",
	MissingModule:       "MissingModule",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Report is a non-fatal diagnostic about a registration or resolution
// anomaly. Reports are delivered to the runtime's Sink and never returned from
// Define or Require.
type Report struct {
	Kind    Kind
	Name    string
	Message string
}

func (r Report) Error() string {
	return fmt.Sprintf("[%s] module=%q: %s", r.Kind, r.Name, r.Message)
}

// Is matches any Report of the same kind, so errors.Is(report, ErrMissingModule)
// works for every missing module.
func (r Report) Is(target error) bool {
	var t Report
	if errors.As(target, &t) {
		return r.Kind == t.Kind
	}
	return false
}

var (
	ErrInvalidIdentifier   = Report{Kind: InvalidIdentifier}
	ErrDuplicateDefinition = Report{Kind: DuplicateDefinition}
	ErrInvalidValue        = Report{Kind: InvalidValue}
	ErrMissingModule       = Report{Kind: MissingModule}
)

const (
	msgInvalidIdentifier   = "module id cannot be relative"
	msgDuplicateDefinition = "module is already defined; keeping the first definition"
	msgInvalidValue        = "module definition must be an object or a function"
	msgMissingModule       = "missing module: not defined within %s of being required"
)

func IsInvalidIdentifier(err error) bool {
	return errors.Is(err, ErrInvalidIdentifier)
}

func IsDuplicateDefinition(err error) bool {
	return errors.Is(err, ErrDuplicateDefinition)
}

func IsInvalidValue(err error) bool {
	return errors.Is(err, ErrInvalidValue)
}

func IsMissingModule(err error) bool {
	return errors.Is(err, ErrMissingModule)
}
