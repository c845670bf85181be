package domain

import (
	"fmt"
	"strings"
)

// ConfigError reports an invalid engine or analyzer configuration detected
// before any computation starts.
type ConfigError struct {
	Reason string
}

func (e ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

// InvalidValueError reports a value outside the allowed set for a local,
// immediately-surfaced validation.
type InvalidValueError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s %q (allowed: %s)", e.Field, e.Value, strings.Join(e.Allowed, ", "))
}
