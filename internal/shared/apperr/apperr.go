// Package apperr defines the error taxonomy shared by the domain services
// and mapped to HTTP responses by the interfaces layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
)

// Error codes surfaced to clients.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeDuplicateCategory = "DUPLICATE_CATEGORY"
	CodeDuplicateLink     = "DUPLICATE_LINK"
	CodeExternalService   = "EXTERNAL_SERVICE_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
	CodeInternal          = "INTERNAL_ERROR"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound is returned for both missing and foreign-owned records.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: entity + " not found"}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: message}
}

func IsNotFound(err error) bool   { return kindOf(err) == KindNotFound }
func IsValidation(err error) bool { return kindOf(err) == KindValidation }
func IsConflict(err error) bool   { return kindOf(err) == KindConflict }

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ExternalServiceError describes a failed call to the bank aggregator.
type ExternalServiceError struct {
	Operation    string
	StatusCode   int
	ErrorType    string
	ErrorCode    string
	ErrorMessage string
	RequestID    string
	Retryable    bool
	Err          error
}

func (e *ExternalServiceError) Error() string {
	msg := fmt.Sprintf("aggregator %s failed", e.Operation)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.ErrorCode != "" {
		msg += fmt.Sprintf(": %s %s", e.ErrorCode, e.ErrorMessage)
	}
	if e.RequestID != "" {
		msg += " request_id=" + e.RequestID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ConsistencyWarning reports that a primary write succeeded but a follow-up
// step did not. It is logged, never returned to clients.
type ConsistencyWarning struct {
	Operation string
	UserID    string
	Err       error
}

func (w *ConsistencyWarning) Error() string {
	return fmt.Sprintf("consistency warning: %s for user %s: %v", w.Operation, w.UserID, w.Err)
}

func (w *ConsistencyWarning) Unwrap() error { return w.Err }

// HTTPStatus maps an error to a status code and client-facing code.
func HTTPStatus(err error) (int, string) {
	var ext *ExternalServiceError
	if errors.As(err, &ext) {
		return http.StatusBadGateway, CodeExternalService
	}
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, CodeInternal
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest, e.Code
	case KindNotFound:
		return http.StatusNotFound, e.Code
	case KindConflict:
		return http.StatusConflict, e.Code
	case KindUnauthorized:
		return http.StatusUnauthorized, e.Code
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
