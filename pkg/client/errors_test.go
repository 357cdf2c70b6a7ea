package client

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{
			name:       "client error should not retry",
			errorClass: ErrorClassClient,
			expected:   false,
		},
		{
			name:       "server error should retry",
			errorClass: ErrorClassServer,
			expected:   true,
		},
		{
			name:       "rate limit should retry",
			errorClass: ErrorClassRateLimit,
			expected:   true,
		},
		{
			name:       "network error should retry",
			errorClass: ErrorClassNetwork,
			expected:   true,
		},
		{
			name:       "decode error should not retry",
			errorClass: ErrorClassDecode,
			expected:   false,
		},
		{
			name:       "empty error class should not retry",
			errorClass: "",
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shouldRetry(tt.errorClass)
			if result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{400, ErrorClassClient},
		{401, ErrorClassClient},
		{404, ErrorClassClient},
		{422, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{502, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name: "with status",
			err: &APIError{
				Route:      "/opportunities/{id}",
				StatusCode: 404,
				Class:      ErrorClassClient,
				Message:    "Resource not found",
			},
			expected: "lever client error (status 404) on /opportunities/{id}: Resource not found",
		},
		{
			name: "without status",
			err: &APIError{
				Route:   "/opportunities",
				Class:   ErrorClassClient,
				Message: "encode request body: boom",
			},
			expected: "lever client error on /opportunities: encode request body: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	last := &attemptError{class: ErrorClassServer, status: 503, message: "Service Unavailable"}
	err := error(&TransientError{
		Route:      "/postings",
		Attempts:   3,
		LastStatus: 503,
		Reason:     ErrRetryExhausted,
		Err:        last,
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Error("errors.Is(err, ErrRetryExhausted) = false, want true")
	}
	if errors.Is(err, ErrCircuitOpen) {
		t.Error("errors.Is(err, ErrCircuitOpen) = true, want false")
	}

	var ae *attemptError
	if !errors.As(err, &ae) || ae.status != 503 {
		t.Errorf("errors.As(err, *attemptError) = %v, want status 503", ae)
	}

	want := "lever /postings: retry attempts exhausted after 3 attempts (last status 503): server error (status 503): Service Unavailable"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestTransientError_CircuitOpen(t *testing.T) {
	err := error(&TransientError{
		Route:  "/stages",
		Reason: ErrCircuitOpen,
		Err:    gobreaker.ErrOpenState,
	})

	if !errors.Is(err, ErrCircuitOpen) {
		t.Error("errors.Is(err, ErrCircuitOpen) = false, want true")
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Error("errors.Is(err, gobreaker.ErrOpenState) = false, want true")
	}
	if got, want := err.Error(), "lever /stages: circuit breaker open"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestGuidanceForStatus(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 422} {
		if guidanceForStatus(status) == "" {
			t.Errorf("guidanceForStatus(%d) is empty", status)
		}
	}
	if got := guidanceForStatus(409); got != "" {
		t.Errorf("guidanceForStatus(409) = %q, want empty", got)
	}
}
