package lever

import (
	"fmt"
	"strings"
)

// ValidationError reports invalid input caught before any network call.
type ValidationError struct {
	Operation string
	Field     string
	Reason    string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s: invalid %s: %s", e.Operation, e.Field, e.Reason)
}

// CapabilityError reports an operation Lever does not allow through this
// API key's integration. No request is ever sent for it.
type CapabilityError struct {
	Operation string
	Guidance  string
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s is not supported through the Lever API integration", e.Operation)
}

func requireField(operation, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Operation: operation, Field: field, Reason: "is required"}
	}
	return nil
}
