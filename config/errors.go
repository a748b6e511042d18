package config

import (
	"errors"
	"fmt"
)

// ErrInvalidDeployment is the sentinel all configuration validation failures
// match with errors.Is.
var ErrInvalidDeployment = errors.New("config: invalid deployment configuration")

// ValidationError reports a configuration key that failed validation after
// all layers were merged.
type ValidationError struct {
	// Key is the configuration key that failed.
	Key string

	// Value is the offending value, empty when the key was absent.
	Value string

	// Reason describes why validation failed.
	Reason string
}

// Error returns a human-readable description of the failure.
func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config: %s: %s: %q", e.Key, e.Reason, e.Value)
}

// Is matches ValidationError against ErrInvalidDeployment.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidDeployment
}
