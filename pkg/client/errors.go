package client

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the executor.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrCircuitOpen is returned without a network call while the circuit
	// breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrContextCancelled is returned when the caller's context ends while a
	// request is in flight or waiting to be retried.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures and attempt timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a successful status with a body that is
	// not JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// APIError is a permanent failure reported by (or about) the Lever API.
// It is never retried.
type APIError struct {
	Operation  string
	Route      string
	StatusCode int
	Class      ErrorClass
	Message    string
	Guidance   string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("lever %s error on %s: %s", e.Class, e.Route, e.Message)
	}
	return fmt.Sprintf("lever %s error (status %d) on %s: %s",
		e.Class, e.StatusCode, e.Route, e.Message)
}

// TransientError is a failure that may succeed if the caller tries again
// later: retries were exhausted or the circuit breaker is open.
type TransientError struct {
	Operation  string
	Route      string
	Attempts   int
	LastStatus int
	LastClass  ErrorClass

	// Reason is ErrRetryExhausted or ErrCircuitOpen.
	Reason error
	Err    error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	if errors.Is(e.Reason, ErrCircuitOpen) {
		return fmt.Sprintf("lever %s: %v", e.Route, e.Reason)
	}
	if e.LastStatus != 0 {
		return fmt.Sprintf("lever %s: %v after %d attempts (last status %d): %v",
			e.Route, e.Reason, e.Attempts, e.LastStatus, e.Err)
	}
	return fmt.Sprintf("lever %s: %v after %d attempts: %v", e.Route, e.Reason, e.Attempts, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransientError) Unwrap() []error {
	return []error{e.Reason, e.Err}
}

// attemptError is a retryable failure of a single attempt.
type attemptError struct {
	class      ErrorClass
	status     int
	retryAfter time.Duration
	message    string
	err        error
}

func (e *attemptError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s error: %v", e.class, e.err)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.class, e.status, e.message)
}

func (e *attemptError) Unwrap() error {
	return e.err
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// 4xx and undecodable bodies will fail the same way again
		return false
	}
}

// classifyStatus maps an HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// guidanceForStatus returns a hint for the caller on a permanent failure.
func guidanceForStatus(status int) string {
	switch status {
	case 400, 422:
		return "check the request parameters"
	case 401:
		return "check the Lever API key"
	case 403:
		return "check API key permissions for this endpoint"
	case 404:
		return "check the id; the record does not exist or is not visible to this API key"
	default:
		return ""
	}
}
