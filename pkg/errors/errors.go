package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeCanceled    ErrorType = "canceled"
	ErrorTypeUnknown     ErrorType = "unknown"
)

var (
	// ErrCredentialNotFound is returned when the site markup no longer
	// carries the access token marker, or carries an empty token.
	ErrCredentialNotFound = errors.New("access token not found in site response")

	// ErrEmptyCatalog is returned when a search response has no usable
	// payload at all. A page with zero items is not an empty catalog.
	ErrEmptyCatalog = errors.New("search returned no catalog payload")
)

// Error represents a transport or API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// SearchRequestFailedError reports a search call answered with a status other than 200.
type SearchRequestFailedError struct {
	Status int
}

func (e *SearchRequestFailedError) Error() string {
	return fmt.Sprintf("search responded with status %d", e.Status)
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(message string, err error) *Error {
	return &Error{Type: ErrorTypeNetwork, Message: message, Err: err}
}

// FromStatus maps a non-2xx HTTP status onto a typed error.
func FromStatus(statusCode int, message string) *Error {
	return &Error{Type: typeForStatus(statusCode), Message: message, Code: statusCode}
}

func typeForStatus(statusCode int) ErrorType {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrorTypeAuth
	case statusCode == http.StatusNotFound:
		return ErrorTypeNotFound
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}

// TypeOf returns the error type label used in logs and metrics.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeCanceled
	}
	if errors.Is(err, ErrCredentialNotFound) {
		return ErrorTypeAuth
	}
	if errors.Is(err, ErrEmptyCatalog) {
		return ErrorTypeNotFound
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type
	}
	var searchErr *SearchRequestFailedError
	if errors.As(err, &searchErr) {
		return typeForStatus(searchErr.Status)
	}
	return ErrorTypeUnknown
}

// IsTransient reports whether err belongs to the connection-reset class of
// failures that are worth another attempt. Everything else, including HTTP
// status errors and DNS failures, is permanent for the purpose of retries.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "broken pipe")
}
