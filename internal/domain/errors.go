package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer. Use with NewDomainError so that
// ErrorCodeOf can map them to machine-parseable codes.
var (
	ErrSpawn            = fmt.Errorf("shell process could not be started")
	ErrIOFailure        = fmt.Errorf("shell stream broken")
	ErrTimeout          = fmt.Errorf("command timed out")
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrInterrupted      = fmt.Errorf("wait interrupted")
	ErrSessionClosed    = fmt.Errorf("session closed")
	ErrInvalidInput     = fmt.Errorf("invalid input")
	ErrNotFound         = fmt.Errorf("not found")
	ErrUnsupported      = fmt.Errorf("operation not supported")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g. "Session.Submit")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring.
type ErrorCode string

const (
	CodeUnknown          ErrorCode = "UNKNOWN"
	CodeSpawn            ErrorCode = "SPAWN_FAILED"
	CodeIOFailure        ErrorCode = "IO_FAILURE"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeInterrupted      ErrorCode = "INTERRUPTED"
	CodeSessionClosed    ErrorCode = "SESSION_CLOSED"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeUnsupported      ErrorCode = "UNSUPPORTED"
)

// errorCodeMap maps sentinel errors to their codes. Every sentinel maps to
// exactly one code.
var errorCodeMap = map[error]ErrorCode{
	ErrSpawn:            CodeSpawn,
	ErrIOFailure:        CodeIOFailure,
	ErrTimeout:          CodeTimeout,
	ErrPermissionDenied: CodePermissionDenied,
	ErrInterrupted:      CodeInterrupted,
	ErrSessionClosed:    CodeSessionClosed,
	ErrInvalidInput:     CodeInvalidInput,
	ErrNotFound:         CodeNotFound,
	ErrUnsupported:      CodeUnsupported,
}

// ErrorCodeOf returns the machine-parseable code for the given error,
// unwrapping DomainError and walking the chain with errors.Is.
// Returns CodeUnknown if no sentinel matches.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}
	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return ErrorCodeOf(e.Err)
}
