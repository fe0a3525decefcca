package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
	ErrValidation   = errors.New("validation failed")

	ErrConnectivity   = errors.New("no network path to remote store")
	ErrConflict       = errors.New("duplicate record")
	ErrLocalStorage   = errors.New("local storage error")
	ErrOffline        = errors.New("no internet connection available")
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrNoSession      = errors.New("no signed-in user")
	ErrPassSuperseded = errors.New("sync pass superseded by reset")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Remote error constructors. The cause is kept for diagnostics; the kind is
// matched with errors.Is against the sentinel.

func ConnectivityError(message string, cause error) error {
	return NewAppError("CONNECTIVITY", message, withKind(ErrConnectivity, cause))
}

func UnauthorizedError(message string, cause error) error {
	return NewAppError("UNAUTHORIZED", message, withKind(ErrUnauthorized, cause))
}

func ConflictError(message string, cause error) error {
	return NewAppError("CONFLICT", message, withKind(ErrConflict, cause))
}

func ValidationFailed(message string, cause error) error {
	return NewAppError("VALIDATION", message, withKind(ErrValidation, cause))
}

func NotFound(message string) error {
	return NewAppError("NOT_FOUND", message, ErrNotFound)
}

func LocalStorageError(message string, cause error) error {
	return NewAppError("LOCAL_STORAGE", message, withKind(ErrLocalStorage, cause))
}

func withKind(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// StatusCode maps an error onto the gRPC code space.
func StatusCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrConnectivity), errors.Is(err, ErrOffline):
		return codes.Unavailable
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNoSession):
		return codes.Unauthenticated
	case errors.Is(err, ErrConflict):
		return codes.AlreadyExists
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return codes.InvalidArgument
	case errors.Is(err, ErrNotFound):
		return codes.NotFound
	case errors.Is(err, ErrSyncInProgress), errors.Is(err, ErrPassSuperseded):
		return codes.Aborted
	default:
		return codes.Internal
	}
}

// ToStatus converts an error into a gRPC status error carrying its mapped code.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(StatusCode(err), err.Error())
}
