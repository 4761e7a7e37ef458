package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on the error code so clones of a predefined error compare equal to it.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache entry not found")

	// Credential errors reported by the credential gateway.
	ErrEmailInUse        = New("EMAIL_ALREADY_IN_USE", http.StatusConflict, "an account with this email already exists")
	ErrWeakPassword      = New("WEAK_PASSWORD", http.StatusBadRequest, "password is too weak, please choose a stronger password")
	ErrInvalidEmail      = New("INVALID_EMAIL", http.StatusBadRequest, "invalid email address format")
	ErrUserNotFound      = New("USER_NOT_FOUND", http.StatusNotFound, "no account found with this email address, please register first")
	ErrInvalidCredential = New("INVALID_CREDENTIAL", http.StatusUnauthorized, "incorrect email or password, please check your credentials")
	ErrRateLimited       = New("RATE_LIMITED", http.StatusTooManyRequests, "too many failed attempts, please try again later")
	ErrCredential        = New("CREDENTIAL_ERROR", http.StatusBadGateway, "credential provider error")

	// Profile and document errors.
	ErrProfileWrite        = New("PROFILE_WRITE_FAILED", http.StatusInternalServerError, "account created but the profile could not be saved")
	ErrProfileNotFound     = New("PROFILE_NOT_FOUND", http.StatusNotFound, "user profile not found, please contact support")
	ErrDocumentUpload      = New("DOCUMENT_UPLOAD_FAILED", http.StatusInternalServerError, "document upload failed")
	ErrDocumentUnavailable = New("DOCUMENT_UNAVAILABLE", http.StatusNotFound, "document link is invalid or expired")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// CloneWrap returns a copy of err carrying cause, keeping the predefined message unless overridden.
func CloneWrap(err *Error, cause error, message string) *Error {
	clone := Clone(err, message)
	if clone != nil {
		clone.Err = cause
	}
	return clone
}
