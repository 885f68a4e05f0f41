package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the session agent.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeInternal         = "INTERNAL_ERROR"
	CodeDecodeFailed     = "DECODE_FAILED"
	CodeProviderError    = "PROVIDER_ERROR"
	CodeUpgradeConflict  = "UPGRADE_CONFLICT"
	CodeUpgradeRejected  = "UPGRADE_REJECTED"
	CodeTransportFailure = "TRANSPORT_FAILURE"
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
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewDecodeError reports a credential that is absent, malformed or expired.
func NewDecodeError(message string, err error) error {
	return &DomainError{Code: CodeDecodeFailed, Message: message, HTTPStatus: http.StatusUnauthorized, Err: err}
}

// NewProviderError reports a failure code returned by the identity provider.
func NewProviderError(code string) error {
	return NewDomainError(CodeProviderError, "identity provider reported failure", http.StatusUnauthorized,
		map[string]any{"provider_error": code})
}

// NewUpgradeConflict reports that the backend considers the identity a seller already.
func NewUpgradeConflict(message string) error {
	return NewDomainError(CodeUpgradeConflict, message, http.StatusConflict, nil)
}

// NewUpgradeRejected reports that the backend declined a seller upgrade.
func NewUpgradeRejected(status int, message string) error {
	return NewDomainError(CodeUpgradeRejected, message, http.StatusBadGateway,
		map[string]any{"upstream_status": status})
}

// NewTransportFailure reports a request that produced no response.
func NewTransportFailure(err error) error {
	return &DomainError{
		Code:       CodeTransportFailure,
		Message:    "backend unreachable",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying code.
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
