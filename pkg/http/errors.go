package http

import (
	"fmt"
	"net/http"
)

const (
	CodeBadRequest  = "ERR_BAD_REQUEST"
	CodeNotFound    = "ERR_NOT_FOUND"
	CodeRateLimited = "ERR_RATE_LIMITED"
	CodeInternal    = "ERR_INTERNAL"
	CodeUnavailable = "ERR_UNAVAILABLE"
)

// AppError is an error that knows the HTTP status it maps to.
// The wrapped cause is logged but never rendered.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.cause }

// NewAppError builds an AppError with a formatted message.
func NewAppError(status int, code, format string, a ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, a...), Status: status}
}

func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{}, 1)
	}
	e.Params[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.cause = err
	return e
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, format, a...)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return NewAppError(http.StatusBadRequest, CodeBadRequest, format, a...)
}

func RateLimitedError() *AppError {
	return NewAppError(http.StatusTooManyRequests, CodeRateLimited, "too many requests")
}

func InternalError(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternal, "%s", message)
}

func UnavailableError(message string) *AppError {
	return NewAppError(http.StatusServiceUnavailable, CodeUnavailable, "%s", message)
}
