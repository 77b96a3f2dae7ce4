package internal

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeUnavailable  ErrorType = "SERVICE_UNAVAILABLE"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidMethod    ErrorCode = "INVALID_METHOD"
	ErrCodeInvalidPayload   ErrorCode = "INVALID_PAYLOAD"
	ErrCodeInvalidDate      ErrorCode = "INVALID_DATE"
	ErrCodeInvalidRange     ErrorCode = "INVALID_RANGE"
	ErrCodeInvalidBarcode   ErrorCode = "INVALID_BARCODE"

	ErrCodeBarcodeNotFound         ErrorCode = "BARCODE_NOT_FOUND"
	ErrCodeIdentityNotLinked       ErrorCode = "IDENTITY_NOT_LINKED"
	ErrCodeNoCheckInFound          ErrorCode = "NO_CHECK_IN_FOUND"
	ErrCodeAlreadyCheckedOutToday  ErrorCode = "ALREADY_CHECKED_OUT_TODAY"
	ErrCodeCheckoutRequiresBarcode ErrorCode = "CHECKOUT_REQUIRES_BARCODE"
	ErrCodeDuplicateScan           ErrorCode = "DUPLICATE_SCAN"
	ErrCodeConcurrentUpdate        ErrorCode = "CONCURRENT_UPDATE"
	ErrCodeStorageUnavailable      ErrorCode = "STORAGE_UNAVAILABLE"

	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
)

// AppError is the error shape every handler renders. StatusCode and Cause
// never reach the client.
type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

var statusByType = map[ErrorType]int{
	ErrorTypeValidation:   http.StatusBadRequest,
	ErrorTypeNotFound:     http.StatusNotFound,
	ErrorTypeUnauthorized: http.StatusUnauthorized,
	ErrorTypeForbidden:    http.StatusForbidden,
	ErrorTypeConflict:     http.StatusConflict,
	ErrorTypeInternal:     http.StatusInternalServerError,
	ErrorTypeUnavailable:  http.StatusServiceUnavailable,
}

func newAppError(t ErrorType, code ErrorCode, message string) *AppError {
	return &AppError{Type: t, Code: code, Message: message, StatusCode: statusByType[t]}
}

func (e *AppError) validationMessages() []string {
	details, ok := e.Details.(ValidationErrors)
	if !ok {
		return nil
	}
	messages := make([]string, len(details.Errors))
	for i, fe := range details.Errors {
		messages[i] = fe.Message
	}
	return messages
}

func (e *AppError) Error() string {
	if messages := e.validationMessages(); len(messages) > 0 {
		return messages[0]
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// GetDetailedMessage joins field messages for validation failures and
// falls back to Message otherwise.
func (e *AppError) GetDetailedMessage() string {
	if messages := e.validationMessages(); len(messages) > 0 {
		return strings.Join(messages, "; ")
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches two AppErrors by code so sentinel values work with errors.Is
// even after WithCause/WithDetails produced a copy.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Type == t.Type
}

// WithCause returns a copy carrying cause; sentinels stay untouched.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeValidation, code, message)
}

// NewValidationFieldError reports a single bad field; code lands on the
// field entry, the error itself is always VALIDATION_FAILED.
func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return NewValidationError("Validation failed", ErrCodeValidationFailed).WithDetails(ValidationErrors{
		Errors: []ValidationError{{Field: field, Message: message, Code: string(code)}},
	})
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeNotFound, code, message)
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeUnauthorized, code, message)
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeForbidden, code, message)
}

func NewInternalError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, "INTERNAL_ERROR", message).WithCause(cause)
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeConflict, code, message)
}

func NewUnavailableError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeUnavailable, code, message)
}

var (
	ErrInvalidMethod           = NewValidationError("method must be one of face, fingerprint, barcode, manual", ErrCodeInvalidMethod)
	ErrBarcodeNotFound         = NewNotFoundError("Barcode not found", ErrCodeBarcodeNotFound)
	ErrIdentityNotLinked       = NewForbiddenError("Barcode is not linked to a user account", ErrCodeIdentityNotLinked)
	ErrNoCheckInFound          = NewNotFoundError("No check-in found for today", ErrCodeNoCheckInFound)
	ErrAlreadyCheckedOutToday  = NewConflictError("Already checked out today", ErrCodeAlreadyCheckedOutToday)
	ErrCheckoutRequiresBarcode = NewConflictError("An open session can only be closed by check-out or a barcode scan", ErrCodeCheckoutRequiresBarcode)
	ErrDuplicateScan           = NewConflictError("Scan repeated too quickly, please wait", ErrCodeDuplicateScan)
	ErrConcurrentUpdate        = NewConflictError("Attendance record was modified concurrently, please retry", ErrCodeConcurrentUpdate)
	ErrStorageUnavailable      = NewUnavailableError("Event stream is unavailable", ErrCodeStorageUnavailable)

	ErrInvalidToken = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
	ErrForbidden    = NewForbiddenError("Insufficient permissions", ErrCodeForbidden)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
