package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized is returned when the supplied token does not grant the operation.
	// The message is deliberately generic and never reveals whether the target exists.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict matches every *ConflictError via errors.Is.
	ErrConflict = errors.New("application: reservation conflict")
	// ErrStore matches every *StoreError via errors.Is.
	ErrStore = errors.New("application: store failure")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	reasons := make([]string, 0, len(fields))
	for _, field := range fields {
		reasons = append(reasons, field+": "+v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(reasons, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// ConflictError reports the existing reservations that overlap a candidate.
type ConflictError struct {
	Conflicts []Reservation
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c == nil {
		return ""
	}
	ids := make([]string, 0, len(c.Conflicts))
	for _, r := range c.Conflicts {
		ids = append(ids, r.ID)
	}
	return fmt.Sprintf("time slot is already booked for the selected facility (conflicts: %s)", strings.Join(ids, ", "))
}

// Is makes errors.Is(err, ErrConflict) succeed.
func (c *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// StoreError wraps a failure reported by the backing document store.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

// Error implements the error interface.
func (s *StoreError) Error() string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("store %s %s: %v", s.Op, s.Collection, s.Err)
}

// Unwrap exposes the underlying store error.
func (s *StoreError) Unwrap() error {
	if s == nil {
		return nil
	}
	return s.Err
}

// Is makes errors.Is(err, ErrStore) succeed.
func (s *StoreError) Is(target error) bool {
	return target == ErrStore
}

func storeError(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Collection: collection, Err: err}
}
