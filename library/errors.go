/*
errors.go - Error taxonomy for the library engine

ERROR CATEGORIES:
  1. Validation - bad input shape, rejected before any persistence
  2. NotFound   - referenced id absent
  3. Conflict   - unique constraints, double return, unavailable copies
  4. Credentials/authorization - uniform login failure, missing privilege
  5. Operation failed - infrastructure faults, logged in full and hidden

Specific errors wrap their category so callers can match either level:

    errors.Is(err, library.ErrDuplicateISBN) // exact
    errors.Is(err, library.ErrConflict)      // category

SEE ALSO:
  - api/handlers.go: maps categories to HTTP status codes
*/
package library

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// ErrInvalidCredentials is the only outcome a caller sees for any failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden is returned when the acting session lacks a capability.
	ErrForbidden = errors.New("forbidden")

	// ErrOperationFailed hides infrastructure detail from the interactive layer.
	ErrOperationFailed = errors.New("operation failed")
)

var (
	ErrBookNotFound     = fmt.Errorf("book %w", ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrLoanNotFound     = fmt.Errorf("loan %w", ErrNotFound)

	ErrDuplicateISBN     = fmt.Errorf("%w: isbn already registered", ErrConflict)
	ErrDuplicateCategory = fmt.Errorf("%w: category name already exists", ErrConflict)
	ErrEmailInUse        = fmt.Errorf("%w: email already in use", ErrConflict)
	ErrBookUnavailable   = fmt.Errorf("%w: no copies available", ErrConflict)
	ErrBookAtCapacity    = fmt.Errorf("%w: all copies already on shelf", ErrConflict)
	ErrAlreadyReturned   = fmt.Errorf("%w: loan already returned", ErrConflict)
	ErrDuplicateLoan     = fmt.Errorf("%w: user already holds a copy of this book", ErrConflict)
	ErrUserInactive      = fmt.Errorf("%w: user account is inactive", ErrConflict)
	ErrBookHasLoans      = fmt.Errorf("%w: book has loan history", ErrConflict)
	ErrUserHasLoans      = fmt.Errorf("%w: user has loan history", ErrConflict)
	ErrCategoryInUse     = fmt.Errorf("%w: category still has books", ErrConflict)
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending field and carries a message fit for the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for uniqueness and state-transition conflicts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
