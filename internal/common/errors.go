package common

import (
	"context"
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

// Error kinds. Every failure inside a pipeline run carries one of these codes.
const (
	CodeUnsupportedType   = "UNSUPPORTED_TYPE"
	CodeExtractionFailure = "EXTRACTION_FAILURE"
	CodeLLMUnavailable    = "LLM_UNAVAILABLE"
	CodeInvalidResponse   = "INVALID_RESPONSE"
	CodeMalformedPayload  = "MALFORMED_PAYLOAD"
	CodeTaskNotFound      = "TASK_NOT_FOUND"
	CodeCandidateNotFound = "CANDIDATE_NOT_FOUND"

	CodeDatabase   = "DATABASE_ERROR"
	CodeConfig     = "CONFIG_ERROR"
	CodeQueueFull  = "QUEUE_FULL"
	CodeTransition = "INVALID_TRANSITION"
	CodeInvalid    = "INVALID_INPUT"
	CodeInternal   = "INTERNAL_ERROR"
)

// Common application errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrValidation        = errors.New("validation failed")
	ErrTaskNotFound      = errors.New("task not found")
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrQueueFull         = errors.New("queue full")
	ErrTransition        = errors.New("illegal status transition")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode returns the code of the outermost AppError in err's chain, or "".
func ErrorCode(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// Kinded errors used by the extraction stages.
func UnsupportedType(format string, args ...any) error {
	return NewAppError(CodeUnsupportedType, fmt.Sprintf(format, args...), nil)
}

func ExtractionFailure(message string, cause error) error {
	return NewAppError(CodeExtractionFailure, message, cause)
}

func LLMUnavailable(message string, cause error) error {
	return NewAppError(CodeLLMUnavailable, message, cause)
}

func InvalidResponse(message string, cause error) error {
	return NewAppError(CodeInvalidResponse, message, cause)
}

func MalformedPayload(message string, cause error) error {
	return NewAppError(CodeMalformedPayload, message, cause)
}

func TaskNotFound(id string) error {
	return NewAppError(CodeTaskNotFound, "task "+id, ErrTaskNotFound)
}

func CandidateNotFound(id int64) error {
	return NewAppError(CodeCandidateNotFound, fmt.Sprintf("candidate %d", id), ErrCandidateNotFound)
}

func IllegalTransition(from, to string) error {
	return NewAppError(CodeTransition, from+" -> "+to, ErrTransition)
}

func DatabaseError(message string, cause error) error {
	return NewAppError(CodeDatabase, message, cause)
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// ToStatus maps an error kind onto a gRPC status.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	var c codes.Code
	switch ErrorCode(err) {
	case CodeUnsupportedType, CodeInvalid:
		c = codes.InvalidArgument
	case CodeTaskNotFound, CodeCandidateNotFound:
		c = codes.NotFound
	case CodeLLMUnavailable, CodeQueueFull:
		c = codes.Unavailable
	case CodeExtractionFailure, CodeInvalidResponse, CodeMalformedPayload, CodeTransition:
		c = codes.FailedPrecondition
	default:
		c = codes.Internal
	}
	return status.Error(c, err.Error())
}
