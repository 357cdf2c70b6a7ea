package lever

import (
	"context"
	"errors"

	"github.com/Sternrassler/lever-ats-client/pkg/client"
	"github.com/Sternrassler/lever-ats-client/pkg/config"
	"github.com/Sternrassler/lever-ats-client/pkg/pagination"
)

// Result is the outcome of a list or search operation.
type Result[T any] struct {
	Items []T
	Count int

	// Truncated is set when more matching records may exist than were returned.
	Truncated bool

	// Scanned is how many records a client-side search examined.
	Scanned int

	// ScanTruncated is set when the search stopped at the scan bound while
	// the server still had records.
	ScanTruncated bool

	DeadlineExceeded bool
	Warnings         []string

	// Context carries operation-specific facts such as the search mode or
	// the posting a referral search was run for.
	Context map[string]string
}

func newResult[T any](items []T) *Result[T] {
	if items == nil {
		items = []T{}
	}
	return &Result[T]{Items: items, Count: len(items), Context: map[string]string{}}
}

func (r *Result[T]) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// ErrorKind classifies a failure for the caller.
type ErrorKind string

// Error kinds.
const (
	KindConfiguration         ErrorKind = "configuration"
	KindValidation            ErrorKind = "validation"
	KindPermanentAPI          ErrorKind = "permanent_api"
	KindTransientAPI          ErrorKind = "transient_api"
	KindCapabilityUnsupported ErrorKind = "capability_unsupported"
	KindCancelled             ErrorKind = "cancelled"
	KindDeadlineExceeded      ErrorKind = "deadline_exceeded"
	KindInternal              ErrorKind = "internal"
)

// ErrorDescription is the structured form of an error returned to callers.
type ErrorDescription struct {
	Kind      ErrorKind `json:"kind"`
	Operation string    `json:"operation,omitempty"`
	Message   string    `json:"message"`
	Status    int       `json:"status,omitempty"`
	Retryable bool      `json:"retryable"`
	Guidance  string    `json:"guidance,omitempty"`
}

// Describe maps any error to an ErrorDescription. It returns nil for nil.
func Describe(err error) *ErrorDescription {
	if err == nil {
		return nil
	}

	var (
		validation *ValidationError
		capability *CapabilityError
		apiErr     *client.APIError
		transient  *client.TransientError
		cfgErr     *config.ConfigError
	)

	switch {
	case errors.As(err, &validation):
		return &ErrorDescription{
			Kind:      KindValidation,
			Operation: validation.Operation,
			Message:   validation.Error(),
			Guidance:  "fix the arguments and try again",
		}

	case errors.Is(err, pagination.ErrMaxItemsRequired):
		return &ErrorDescription{
			Kind:     KindValidation,
			Message:  err.Error(),
			Guidance: "pass a positive limit",
		}

	case errors.As(err, &capability):
		return &ErrorDescription{
			Kind:      KindCapabilityUnsupported,
			Operation: capability.Operation,
			Message:   capability.Error(),
			Guidance:  capability.Guidance,
		}

	case errors.As(err, &apiErr):
		return &ErrorDescription{
			Kind:      KindPermanentAPI,
			Operation: apiErr.Operation,
			Message:   apiErr.Error(),
			Status:    apiErr.StatusCode,
			Guidance:  apiErr.Guidance,
		}

	case errors.As(err, &transient):
		guidance := "Lever is unavailable or rate limiting; try again later"
		if errors.Is(err, client.ErrCircuitOpen) {
			guidance = "recent Lever requests kept failing; try again in a minute"
		}
		return &ErrorDescription{
			Kind:      KindTransientAPI,
			Operation: transient.Operation,
			Message:   transient.Error(),
			Status:    transient.LastStatus,
			Retryable: true,
			Guidance:  guidance,
		}

	case errors.As(err, &cfgErr):
		return &ErrorDescription{
			Kind:     KindConfiguration,
			Message:  cfgErr.Error(),
			Guidance: "fix the configuration and restart",
		}

	case errors.Is(err, context.DeadlineExceeded):
		return &ErrorDescription{
			Kind:      KindDeadlineExceeded,
			Message:   err.Error(),
			Retryable: true,
			Guidance:  "the request ran out of time; retry with a longer deadline or a narrower query",
		}

	case errors.Is(err, context.Canceled):
		return &ErrorDescription{
			Kind:    KindCancelled,
			Message: err.Error(),
		}

	default:
		return &ErrorDescription{
			Kind:    KindInternal,
			Message: err.Error(),
		}
	}
}
