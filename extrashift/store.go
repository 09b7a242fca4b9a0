/*
store.go - Persistence contract for the extra-shift ledger

PURPOSE:
  The ledger validates in application code; the store backstops the
  one-shift-per-guard-per-day invariant with a uniqueness constraint so
  concurrent requests for the same guard/date cannot both succeed.
  A pre-check without the store-level constraint is subject to a race.

PAYMENT GUARDS:
  Status transitions are expected-status writes: the store only moves a
  row pending->batched or batched->paid, and only deletes pending rows.
  Violations surface as PaymentStateError.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: UNIQUE(guard_id, date) plus an in-transaction
    cross-check against daily_assignments
  - rota/store/memory.go:   mutex-serialized equivalent
*/
package extrashift

import (
	"context"
	"fmt"

	"github.com/vigil/shift-engine/rota"
)

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// InsertShift persists a new row with status pending. Returns a
	// DoubleBookingError (wrapping rota.ErrConflict) when the guard already
	// holds any shift - extra or regular presence-state assignment - on
	// that date. The check and insert are atomic at the store level.
	InsertShift(ctx context.Context, s ExtraShift) error

	// GetShift returns a row by ID, or nil when absent.
	GetShift(ctx context.Context, id string) (*ExtraShift, error)

	// QueryShifts returns rows matching the filter, ordered by date.
	QueryShifts(ctx context.Context, f Filter) ([]ExtraShift, error)

	// HasShiftOn reports whether the guard already has a row on the date,
	// returning its ID when so.
	HasShiftOn(ctx context.Context, guard rota.GuardID, date rota.Date) (bool, string, error)

	// AttachToBatch moves pending rows to batched under the batch ID.
	// Any row not pending aborts with PaymentStateError.
	AttachToBatch(ctx context.Context, ids []string, batchID string) error

	// MarkBatchPaid moves every batched row of the batch to paid and
	// returns how many rows were paid.
	MarkBatchPaid(ctx context.Context, batchID string) (int, error)

	// DeleteShift removes a row, permitted only while pending.
	DeleteShift(ctx context.Context, id string) error
}

// =============================================================================
// PAYMENT STATE ERROR
// =============================================================================

// PaymentStateError reports a payment-lifecycle violation: deleting or
// re-batching a row that is no longer pending.
type PaymentStateError struct {
	ShiftID string
	Status  PaymentStatus
}

func (e *PaymentStateError) Error() string {
	return fmt.Sprintf("extra shift %s is %s, operation requires pending", e.ShiftID, e.Status)
}

func (e *PaymentStateError) Unwrap() error { return rota.ErrConflict }
