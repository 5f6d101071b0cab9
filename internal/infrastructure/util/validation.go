package util

import (
	"fmt"
	"net"
	"time"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// ValidateRequired checks if a string value is not empty
func ValidateRequired(value, fieldName string) error {
	if value == "" {
		return ValidationError{Field: fieldName, Message: "cannot be empty"}
	}
	return nil
}

// ValidatePositive checks if a numeric value is positive
func ValidatePositive(value int, fieldName string) error {
	if value <= 0 {
		return ValidationError{Field: fieldName, Message: "must be positive"}
	}
	return nil
}

// ValidateDuration checks that a duration lies in [min, max]
func ValidateDuration(d, min, max time.Duration, fieldName string) error {
	if d < min || d > max {
		return ValidationError{Field: fieldName, Message: fmt.Sprintf("%s outside [%s, %s]", d, min, max)}
	}
	return nil
}

// ValidateEndpoint checks if an endpoint string is valid
func ValidateEndpoint(endpoint, fieldName string) error {
	if err := ValidateRequired(endpoint, fieldName); err != nil {
		return err
	}
	_, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return ValidationError{Field: fieldName, Message: "invalid host:port format"}
	}
	if port == "" {
		return ValidationError{Field: fieldName, Message: "port cannot be empty"}
	}
	return nil
}

// ValidateSliceNotEmpty checks if a slice is not empty
func ValidateSliceNotEmpty[T any](slice []T, fieldName string) error {
	if len(slice) == 0 {
		return ValidationError{Field: fieldName, Message: "cannot be empty"}
	}
	return nil
}
