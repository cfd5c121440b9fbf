/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error kinds in one place. Callers (the HTTP layer, tests) classify
  errors with errors.Is / the helper predicates and translate them to their
  own surface (HTTP status codes, CLI messages).

ERROR CATEGORIES:
  1. Validation errors - malformed or out-of-range input
  2. Domain errors     - operation invalid for the account's billing category
  3. Not-found errors  - referenced account/session/organization missing

USAGE:
  if ledger.IsValidation(err) { ... 400 ... }
  if ledger.IsNotFound(err)   { ... 404 ... }

SEE ALSO:
  - tuition.go, transition.go, report.go: Raise these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or out-of-range input:
	// hour quantity out of bounds, invalid month/year, missing fields.
	ErrValidation = errors.New("validation failed")

	// ErrDomain is returned when an operation is invalid for the account's
	// billing category, e.g. a tuition payment on an organization account.
	ErrDomain = errors.New("operation invalid for this account")

	// ErrNotFound is returned when a referenced account, session, or
	// organization does not exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes which input failed and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DomainError describes a category violation on a specific account.
type DomainError struct {
	AccountID AccountID
	Reason    string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("account %s: %s", e.AccountID, e.Reason)
}

func (e *DomainError) Unwrap() error { return ErrDomain }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string // "account", "session", "organization", "transaction"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is due to invalid input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsDomain returns true if the error is a billing-category violation.
func IsDomain(err error) bool { return errors.Is(err, ErrDomain) }

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
