package plan

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the plan service.
var (
	// ErrNotFound is returned when no record exists for the requested key.
	ErrNotFound = errors.New("plan not found")

	// ErrPreconditionFailed is returned when a supplied If-Match tag does
	// not match the stored record, or when a required If-Match is absent.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrConflict is returned when a create targets a key that already
	// holds a record. Matchable via errors.Is against *ConflictError.
	ErrConflict = errors.New("plan already exists")

	// ErrValidationFailed is returned when a document (or the result of a
	// merge) violates the plan schema. Matchable via errors.Is against
	// *ValidationError.
	ErrValidationFailed = errors.New("plan failed validation")

	// ErrStoreUnavailable is returned when the underlying store errors.
	// The wrapped detail is for logs only, never for response bodies.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ConflictError carries the already-stored record so a create conflict can
// answer with the existing document and its tag.
type ConflictError struct {
	Existing Record
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("plan already exists: key %q, tag %s", e.Existing.Key, e.Existing.Tag)
}

// Is makes errors.Is(err, ErrConflict) work.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ValidationError carries the list of violated schema constraints.
type ValidationError struct {
	Violations []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("plan failed validation: %s", strings.Join(e.Violations, "; "))
}

// Is makes errors.Is(err, ErrValidationFailed) work.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
