package config

import (
	"fmt"
	"strings"
)

// ConfigurationError lists every invalid or missing setting found at startup,
// so the operator can fix all of them in one pass.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid configuration: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid configuration (%d problems):\n  - %s", len(e.Problems), strings.Join(e.Problems, "\n  - "))
}
