package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes shared by the API error envelope and the form redirect mapping.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeMissingFields     = "MISSING_FIELDS"
	CodeUnprocessable     = "UNPROCESSABLE_PAYLOAD"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeIntakeDisabled    = "INTAKE_DISABLED"
	CodeRateLimited       = "RATE_LIMITED"
	CodeSpamDetected      = "SPAM_DETECTED"
	CodeNotFound          = "NOT_FOUND"
	CodeInternal          = "INTERNAL_ERROR"
	CodeDependencyFailure = "DEPENDENCY_UNAVAILABLE"
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

func NewMissingFields(fields ...string) error {
	var details map[string]any
	if len(fields) > 0 {
		details = map[string]any{"fields": fields}
	}
	return NewDomainError(CodeMissingFields, "required fields missing", http.StatusBadRequest, details)
}

func NewUnprocessablePayload(message string) error {
	return NewDomainError(CodeUnprocessable, message, http.StatusBadRequest, nil)
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

func NewIntakeDisabled() error {
	return NewDomainError(CodeIntakeDisabled, "public intake is disabled for this organization", http.StatusForbidden, nil)
}

func NewRateLimited() error {
	return NewDomainError(CodeRateLimited, "too many submissions, try again later", http.StatusTooManyRequests, nil)
}

// NewSpamDetected carries the abuse heuristic that tripped in Details["reason"].
func NewSpamDetected(reason string) error {
	return NewDomainError(CodeSpamDetected, "submission rejected", http.StatusUnprocessableEntity, map[string]any{"reason": reason})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
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
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}
