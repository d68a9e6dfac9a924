package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Service errors. Handlers map them to HTTP statuses.
var (
	ErrConflict        = errors.New("resource already exists")
	ErrUnauthorized    = errors.New("invalid credentials")
	ErrLocked          = errors.New("too many failed attempts")
	ErrUnknownProvider = errors.New("unknown oauth provider")
	ErrNotFound        = errors.New("not found")
)

// ValidationError lists the offending fields with a message each
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// validation collects field problems and yields nil when there are none
type validation map[string]string

func (v validation) add(field, message string) {
	if _, exists := v[field]; !exists {
		v[field] = message
	}
}

func (v validation) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Fields: v}
}

// Fault tells which side of an external exchange failed
type Fault int

const (
	// FaultCaller means the request carried a bad code or state
	FaultCaller Fault = iota
	// FaultProvider means the provider failed or answered with something unusable
	FaultProvider
)

func (f Fault) String() string {
	if f == FaultCaller {
		return "caller"
	}
	return "provider"
}

// ExternalAuthError is a failed exchange with an identity provider
type ExternalAuthError struct {
	Provider string
	Fault    Fault
	Err      error
}

func (e *ExternalAuthError) Error() string {
	return fmt.Sprintf("%s sign-in failed (%s): %v", e.Provider, e.Fault, e.Err)
}

func (e *ExternalAuthError) Unwrap() error {
	return e.Err
}
