package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrNoToken is returned by the user client when the context carries no access token
	ErrNoToken = errors.New("apiclient: no user token in context")
	// ErrMissingAPIKey is returned when a server client is built without a key
	ErrMissingAPIKey = errors.New("apiclient: server api key is required")
	// ErrDecode wraps malformed response bodies
	ErrDecode = errors.New("apiclient: malformed response body")
)

// TransportError is a network-level failure: the request did not produce an
// HTTP response (dial, TLS, reset, deadline).
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport error: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline rather than a refused or reset connection
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// APIError is a response the backend produced but that reports failure, either
// through a non-2xx status or a {"status": false} envelope.
type APIError struct {
	StatusCode int
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Path, e.StatusCode, e.Message)
}

// Unauthorized reports an expired or rejected user session
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// NotFound reports a 404
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// ServerError reports a 5xx
func (e *APIError) ServerError() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// IsTimeout reports whether err is a transport timeout anywhere in its chain
func IsTimeout(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// AsAPIError unwraps err to an *APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
