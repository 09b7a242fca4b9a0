/*
errors.go - Centralized error types for the scheduling engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Domain packages (coverage, extrashift) wrap these with added context.

ERROR CATEGORIES:
  1. NotFound     - referenced post/guard/installation/day does not exist
  2. Conflict     - double booking, reassigning a non-pending post,
                    deleting a paid extra shift
  3. InvalidInput - malformed dates, unsupported pattern parameters

  Batch operations (monthly generation, termination) never surface the
  per-post failures as errors; they accumulate them in structured results
  and the batch always completes.

USAGE:
  if errors.Is(err, rota.ErrConflict) { ... }

  var dup *rota.DoubleBookingError
  if errors.As(err, &dup) { ... }
*/
package rota

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an operation would violate a consistency
	// invariant (double booking, non-pending reassignment, paid deletion).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput is returned for malformed dates, ranges, or pattern
	// parameters.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DoubleBookingError reports a violation of the one-shift-per-guard-per-day
// invariant. Existing names which record blocked the booking: an extra-shift
// ledger row or a regular daily assignment.
type DoubleBookingError struct {
	GuardID  GuardID
	Date     Date
	Existing string // "extra_shift" or "assignment"
	PostID   PostID // post holding the existing record, when known
}

func (e *DoubleBookingError) Error() string {
	return fmt.Sprintf("guard %s already booked on %s (%s)", e.GuardID, e.Date, e.Existing)
}

func (e *DoubleBookingError) Unwrap() error { return ErrConflict }

// NotPendingError reports an attempt to assign a guard to a post that is
// not flagged pending-coverage.
type NotPendingError struct {
	PostID PostID
}

func (e *NotPendingError) Error() string {
	return fmt.Sprintf("post %s is not pending coverage", e.PostID)
}

func (e *NotPendingError) Unwrap() error { return ErrConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict returns true if the error is a consistency violation.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsInvalidInput returns true if the error is due to invalid caller input.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
