package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error beyond its HTTP status code.
// Verification failures share the 500 status with gateway errors but
// must stay distinguishable: conflating a signature mismatch with a
// transport failure risks accepting forged success notifications.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindGateway      Kind = "gateway"
	KindVerification Kind = "verification"
	KindInternal     Kind = "internal"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Validation is a 400-class input error.
func Validation(message string, err error) *Error {
	return New(http.StatusBadRequest, KindValidation, message, err)
}

// NotFound is a 404-class lookup miss (unknown user or transaction).
func NotFound(message string, err error) *Error {
	return New(http.StatusNotFound, KindNotFound, message, err)
}

// Gateway is a 500-class failure talking to the external gateway,
// including failed envelope decryption and non-2xx responses.
func Gateway(message string, err error) *Error {
	return New(http.StatusInternalServerError, KindGateway, message, err)
}

// Verification is a signature, audience, or time-window failure on a
// gateway-returned proof. Never to be mapped to "not found".
func Verification(message string, err error) *Error {
	return New(http.StatusInternalServerError, KindVerification, message, err)
}

// Internal is an unexpected 500.
func Internal(message string, err error) *Error {
	return New(http.StatusInternalServerError, KindInternal, message, err)
}

// KindOf extracts the Kind from any error, defaulting to internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// StatusOf extracts the HTTP status from any error, defaulting to 500.
func StatusOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// MessageOf extracts the client-safe message from any error.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}
