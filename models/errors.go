package models

import (
	"errors"
	"net/http"
)

var (
	ErrAPI      = errors.New("api error")
	ErrNetwork  = errors.New("network error")
	ErrNotFound = errors.New("resource not found")
	ErrServer   = errors.New("server error")
)

const (
	DefaultErrorMessage    = "An unexpected error occurred"
	defaultNetworkMessage  = "Network connection failed"
	defaultNotFoundMessage = "Resource not found"
	defaultServerMessage   = "Server error occurred"
)

// APIError is the base of the taxonomy. NetworkError, NotFoundError and ServerError all match ErrAPI as well as
// their own sentinel.
type APIError struct {
	Message    string
	StatusCode int
	Err        error
}

type NetworkError struct {
	Message string
	Err     error
}

type NotFoundError struct {
	Message string
}

type ServerError struct {
	Message    string
	StatusCode int
}

func NewAPIError(message string, statusCode int) *APIError {
	if message == "" {
		message = DefaultErrorMessage
	}
	return &APIError{Message: message, StatusCode: statusCode}
}

func NewNetworkError(message string, cause error) *NetworkError {
	if message == "" {
		message = defaultNetworkMessage
	}
	return &NetworkError{Message: message, Err: cause}
}

func NewNotFoundError(message string) *NotFoundError {
	if message == "" {
		message = defaultNotFoundMessage
	}
	return &NotFoundError{Message: message}
}

func NewServerError(message string, statusCode int) *ServerError {
	if message == "" {
		message = defaultServerMessage
	}
	if statusCode < http.StatusInternalServerError {
		statusCode = http.StatusInternalServerError
	}
	return &ServerError{Message: message, StatusCode: statusCode}
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

func (e *NetworkError) Error() string {
	return e.Message
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork || target == ErrAPI
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == ErrAPI
}

func (e *ServerError) Error() string {
	return e.Message
}

func (e *ServerError) Is(target error) bool {
	return target == ErrServer || target == ErrAPI
}

// StatusCode returns the HTTP status attached to err, or 0 when there is none (network failures, foreign errors).
func StatusCode(err error) int {
	var notFoundErr *NotFoundError
	var serverErr *ServerError
	var apiErr *APIError

	switch {
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &serverErr):
		return serverErr.StatusCode
	case errors.As(err, &apiErr):
		return apiErr.StatusCode
	default:
		return 0
	}
}

func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return DefaultErrorMessage
}

// IsRetryable reports whether a later attempt could succeed. Not-found and every other client error are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)
}

func IsClientError(err error) bool {
	status := StatusCode(err)
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}

func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
