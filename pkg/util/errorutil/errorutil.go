package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to the desk UI.
const (
	CodeValidation           = "VALIDATION_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInternal             = "INTERNAL_ERROR"
	CodeConfigurationMissing = "CONFIGURATION_MISSING"
	CodeRemoteRead           = "REMOTE_READ_FAILED"
	CodeRemoteWrite          = "REMOTE_WRITE_FAILED"
	CodeBindingUnresolved    = "BINDING_UNRESOLVED"
	CodePartialWrite         = "PARTIAL_WRITE_FAILED"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConfigurationMissing reports required settings that are absent. It is a
// blocking condition and is never retried.
func NewConfigurationMissing(fields []string) error {
	return &DomainError{
		Code:       CodeConfigurationMissing,
		Message:    "required configuration missing: " + strings.Join(fields, ", "),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"fields": fields},
	}
}

// NewRemoteReadFailure wraps a failed tracker GET.
func NewRemoteReadFailure(op string, err error) error {
	return &DomainError{
		Code:       CodeRemoteRead,
		Message:    op + " failed",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

// NewRemoteWriteFailure wraps a failed tracker PATCH.
func NewRemoteWriteFailure(op string, err error, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["operation"] = op
	return &DomainError{
		Code:       CodeRemoteWrite,
		Message:    op + " failed",
		HTTPStatus: http.StatusBadGateway,
		Details:    details,
		Err:        err,
	}
}

func NewBindingUnresolved(userID string) error {
	return NewDomainError(CodeBindingUnresolved, "presence issue not found for user", http.StatusConflict,
		map[string]any{"user_id": userID})
}

// NewPartialWriteFailure reports a multi-write operation where only some
// writes were applied remotely.
func NewPartialWriteFailure(op string, err error, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["operation"] = op
	return &DomainError{
		Code:       CodePartialWrite,
		Message:    op + " partially applied",
		HTTPStatus: http.StatusBadGateway,
		Details:    details,
		Err:        err,
	}
}

// IsCode reports whether err carries the given DomainError code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &DomainError{
			Code:       CodeNotFound,
			Message:    "resource not found",
			HTTPStatus: http.StatusNotFound,
			Details:    map[string]any{},
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
