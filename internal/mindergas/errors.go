package mindergas

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredential is returned for HTTP 401
	ErrInvalidCredential = errors.New("invalid API key")
	// ErrPaymentRequired is returned for HTTP 402
	ErrPaymentRequired = errors.New("payment required - API access expired")
	// ErrRateLimited is returned for HTTP 403
	ErrRateLimited = errors.New("API access blocked - too many requests")
	// ErrValidation is returned for HTTP 422 on meter reading submission
	ErrValidation = errors.New("meter reading rejected")
	// ErrUnexpectedResponse is returned for any other non-success status
	ErrUnexpectedResponse = errors.New("unexpected response")

	// ErrCannotConnect marks failures during credential validation that are
	// not an authentication problem
	ErrCannotConnect = errors.New("cannot connect to MinderGas")
)

// APIError is a non-success HTTP response from the MinderGas API
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	base := fmt.Sprintf("%s: status %d: %v", e.Endpoint, e.StatusCode, e.Unwrap())
	if e.Body != "" {
		base += ": " + e.Body
	}
	return base
}

// Unwrap maps the status code onto one of the package sentinels
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case 401:
		return ErrInvalidCredential
	case 402:
		return ErrPaymentRequired
	case 403:
		return ErrRateLimited
	case 422:
		return ErrValidation
	default:
		return ErrUnexpectedResponse
	}
}

// TransportError is a connection, DNS or timeout failure
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0 if there is none
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Detail returns the server-provided response text carried by err
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return ""
}
