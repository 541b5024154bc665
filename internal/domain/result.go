package domain

import "errors"

// ResultCode classifies the outcome of a device operation.
type ResultCode string

const (
	ResultOK          ResultCode = "OK"
	ResultFailed      ResultCode = "FAILED"
	ResultTimeout     ResultCode = "TIMEOUT"
	ResultDenied      ResultCode = "DENIED"
	ResultInterrupted ResultCode = "INTERRUPTED"
	ResultIOFailure   ResultCode = "IO_FAILURE"

	// Package-manager specific failures surfaced by install/uninstall.
	ResultNoSpace         ResultCode = "INSUFFICIENT_STORAGE"
	ResultBadCertificates ResultCode = "INCONSISTENT_CERTIFICATES"
	ResultContainerError  ResultCode = "CONTAINER_ERROR"
)

// Result is the caller-facing outcome of a device operation: whether it
// succeeded, the classified code, and the command's collected output.
type Result struct {
	OK      bool
	Code    ResultCode
	Message string
}

// OKResult builds a successful result carrying the command output.
func OKResult(message string) Result {
	return Result{OK: true, Code: ResultOK, Message: message}
}

// FailedResult builds a generic failure carrying the command output.
func FailedResult(message string) Result {
	return Result{OK: false, Code: ResultFailed, Message: message}
}

// ResultFromError classifies a core execution error into a Result.
func ResultFromError(err error) Result {
	switch {
	case err == nil:
		return OKResult("")
	case errors.Is(err, ErrTimeout):
		return Result{Code: ResultTimeout, Message: err.Error()}
	case errors.Is(err, ErrPermissionDenied):
		return Result{Code: ResultDenied, Message: err.Error()}
	case errors.Is(err, ErrInterrupted):
		return Result{Code: ResultInterrupted, Message: err.Error()}
	case errors.Is(err, ErrIOFailure), errors.Is(err, ErrSessionClosed), errors.Is(err, ErrSpawn):
		return Result{Code: ResultIOFailure, Message: err.Error()}
	default:
		return Result{Code: ResultFailed, Message: err.Error()}
	}
}
