package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error codes carried by AppError.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeInvalidInput = "INVALID_INPUT"
	CodeIO           = "IO_ERROR"
	CodeConfig       = "CONFIG_ERROR"
	CodeValidation   = "VALIDATION_ERROR"
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

// GRPCStatus lets status.FromError map store failures onto gRPC codes.
func (e *AppError) GRPCStatus() *status.Status {
	code := codes.Internal
	switch e.Code {
	case CodeNotFound:
		code = codes.NotFound
	case CodeInvalidInput, CodeValidation:
		code = codes.InvalidArgument
	case CodeConfig:
		code = codes.FailedPrecondition
	}
	return status.New(code, e.Error())
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrIO           = errors.New("i/o failure")
	ErrValidation   = errors.New("validation failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NotFound reports an identifier absent from a namespace.
func NotFound(format string, args ...any) error {
	return NewAppError(CodeNotFound, fmt.Sprintf(format, args...), ErrNotFound)
}

// InvalidInput reports a caller mistake such as an empty origin tag.
func InvalidInput(format string, args ...any) error {
	return NewAppError(CodeInvalidInput, fmt.Sprintf(format, args...), ErrInvalidInput)
}

// IOFailure wraps a backend failure, keeping the underlying message.
func IOFailure(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return NewAppError(CodeIO, op, fmt.Errorf("%w: %w", ErrIO, cause))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound reports whether err is (or wraps) a not-found failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
