// Package gwerrors defines the gateway's uniform error taxonomy and its
// {"detail","code"} wire envelope. Adapted from the framework's generic
// pantry/errors package: same code/message/status/wrap shape, reshaped
// response body and extended with the kinds the gateway surfaces.
package gwerrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is a structured gateway error: a machine-readable code, a short
// human message, and the HTTP status it maps to.
type Error struct {
	Code    string
	Message string
	Status  int
	Err     error
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status this error maps to, defaulting to 500.
func (e *Error) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// Body is the wire shape required by spec: {"detail": "...", "code": "..."}.
type Body struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// MarshalJSON renders the Body shape directly so callers can json.Marshal
// an *Error and get the wire envelope without an intermediate step.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(Body{Detail: e.Message, Code: e.Code})
}

// New constructs an Error with an explicit status.
func New(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// Wrap constructs an Error that carries an underlying cause for logging.
func Wrap(err error, code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status, Err: err}
}

// From extracts an *Error from err, or wraps it as an opaque internal error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: "internal_error", Message: "an internal error occurred", Status: http.StatusInternalServerError, Err: err}
}

// Error kinds the gateway's handlers return.
func Unauthorized(message string) *Error {
	return New("Unauthorized", message, http.StatusUnauthorized)
}

func ServerExecutionDisabled(message string) *Error {
	return New("ServerExecutionDisabled", message, http.StatusForbidden)
}

func NoProxyConnection(message string) *Error {
	return New("NoProxyConnection", message, http.StatusNotFound)
}

func ValidationFailed(message string) *Error {
	return New("ValidationFailed", message, http.StatusBadRequest)
}

func ParseError(message string) *Error {
	return New("ParseError", message, http.StatusBadRequest)
}

func ProxyTimeout(message string) *Error {
	return New("ProxyTimeout", message, http.StatusGatewayTimeout)
}

func ProxyBackpressure(message string) *Error {
	return New("ProxyBackpressure", message, http.StatusServiceUnavailable)
}

func UpstreamHttpError(status int, message string) *Error {
	return New("UpstreamHttpError", message, http.StatusBadGateway).WithDetail("upstream_status", status)
}

func UpstreamTransportError(message string) *Error {
	return New("UpstreamTransportError", message, http.StatusBadGateway)
}

// AuthStale maps to 502 and carries a re-auth hint.
func AuthStale(message string) *Error {
	if message == "" {
		message = "LinkedIn session appears stale; retry via the browser extension"
	}
	return New("AuthStale", message, http.StatusBadGateway)
}

func Internal(message string) *Error {
	return New("internal_error", message, http.StatusInternalServerError)
}

func NotFound(message string) *Error {
	return New("NotFound", message, http.StatusNotFound)
}

func MethodNotAllowed(message string) *Error {
	return New("MethodNotAllowed", message, http.StatusMethodNotAllowed)
}

// WithDetail stashes a non-wire-visible detail for logging; it does not
// appear in the JSON body since Body only carries detail/code.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}
