/*
ledger.go - Extra-shift creation, querying and payment lifecycle

PURPOSE:
  The write path for ad-hoc coverage. Create() is where the engine's core
  invariant is enforced: before inserting, the ledger checks BOTH tables -
  existing extra shifts for the (guard, date) pair, and regular
  presence-state daily assignments for the guard on that date at any post.
  The cross-table check is mandatory; a guard cannot be double-booked via
  the two different mechanisms.

RACE NOTE:
  The application-level check is necessary but not sufficient. The store
  must also carry a uniqueness constraint (see store.go); on a store
  without transactional uniqueness an advisory lock per (guard, date)
  would be required. When the engine store is transactional the whole of
  Create - cross-check, insert, schedule mirror - runs inside one
  transaction, so a mirror failure rolls the ledger row back with it.

VIRTUAL ROWS:
  Query() merges real ledger rows with read-only rows synthesized from
  daily assignments that carry inline coverage metadata but have not been
  materialized into the ledger. A virtual row disappears once a real row
  exists for the same source day.

SEE ALSO:
  - rota/types.go: AttachCover, the day-state side of coverage
  - coverage: flags the vacancies this ledger resolves
*/
package extrashift

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vigil/shift-engine/rota"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger creates, values and pays extra shifts against the engine store.
type Ledger struct {
	shifts Store
	engine rota.Store
}

// NewLedger creates a ledger over the two stores. In production both are
// the same SQLite store; tests may mix implementations.
func NewLedger(shifts Store, engine rota.Store) *Ledger {
	return &Ledger{shifts: shifts, engine: engine}
}

// CreateInput identifies the schedule day being covered and the covering
// guard. The shift date is resolved from the source assignment, never
// passed by the caller.
type CreateInput struct {
	GuardID    rota.GuardID
	PostID     rota.PostID
	SourceDate rota.Date
	Kind       Kind
	Note       string
}

// CreateResult returns the persisted shift plus the resolved names for
// caller confirmation. Mirrored reports whether the coverage was written
// onto the schedule day; a day whose state cannot take the cover (a
// replacement against an absence day, say) leaves Mirrored false and the
// ledger row standing.
type CreateResult struct {
	Shift            ExtraShift
	GuardName        string
	InstallationName string
	Mirrored         bool
}

// txShiftStore is the slice of Store a transaction-scoped engine store
// exposes so Create can run the cross-check, the insert and the schedule
// mirror inside one transaction.
type txShiftStore interface {
	HasShiftOn(ctx context.Context, guard rota.GuardID, date rota.Date) (bool, string, error)
	InsertShift(ctx context.Context, shift ExtraShift) error
}

// Create records a new extra shift. Conflict when the guard already holds
// any paid shift - extra or regular - on the resolved date.
func (l *Ledger) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown extra-shift kind %q", rota.ErrInvalidInput, in.Kind)
	}

	guard, err := l.engine.GetGuard(ctx, in.GuardID)
	if err != nil {
		return nil, err
	}
	if guard == nil {
		return nil, fmt.Errorf("%w: guard %s", rota.ErrNotFound, in.GuardID)
	}

	post, err := l.engine.GetPost(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("%w: post %s", rota.ErrNotFound, in.PostID)
	}

	installation, err := l.engine.GetInstallation(ctx, post.InstallationID)
	if err != nil {
		return nil, err
	}
	if installation == nil {
		return nil, fmt.Errorf("%w: installation %s", rota.ErrNotFound, post.InstallationID)
	}

	source, err := l.engine.GetAssignment(ctx, in.PostID, in.SourceDate)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("%w: no schedule day for post %s on %s",
			rota.ErrNotFound, in.PostID, in.SourceDate)
	}
	date := source.Date

	shift := ExtraShift{
		ID:             uuid.NewString(),
		GuardID:        in.GuardID,
		InstallationID: post.InstallationID,
		PostID:         post.ID,
		SourcePostID:   source.PostID,
		Date:           date,
		Kind:           in.Kind,
		Value:          installation.ExtraShiftRate,
		Status:         PaymentPending,
		Note:           in.Note,
		CreatedAt:      time.Now().UTC(),
	}

	var mirrored bool
	write := func(s rota.Store) error {
		shiftStore := txShiftStore(l.shifts)
		if ts, ok := s.(txShiftStore); ok {
			shiftStore = ts
		}

		if err := checkDoubleBooking(ctx, shiftStore, s, in.GuardID, date); err != nil {
			return err
		}
		if err := shiftStore.InsertShift(ctx, shift); err != nil {
			return err
		}

		// Mirror the coverage onto the schedule day so dashboards see it
		// without joining the ledger. A day whose state cannot take the
		// cover is skipped and reported via Mirrored.
		if err := source.AttachCover(in.GuardID, in.Kind == KindReplacement); err != nil {
			return nil
		}
		source.CoverValue = shift.Value
		if err := s.UpsertAssignment(ctx, *source); err != nil {
			return err
		}
		mirrored = true
		return nil
	}

	// Insert and mirror commit or roll back together when the engine
	// store is transactional. A split shift/engine store pair falls back
	// to the sequential path, where a mirror failure leaves the ledger
	// row committed.
	if tx, ok := l.engine.(rota.TxStore); ok {
		err = tx.WithTx(ctx, write)
	} else {
		err = write(l.engine)
	}
	if err != nil {
		return nil, err
	}

	return &CreateResult{
		Shift:            shift,
		GuardName:        guard.Name,
		InstallationName: installation.Name,
		Mirrored:         mirrored,
	}, nil
}

// checkDoubleBooking enforces one shift per guard per day across both the
// ledger and the regular schedule.
func checkDoubleBooking(ctx context.Context, shifts txShiftStore, engine rota.Store, guard rota.GuardID, date rota.Date) error {
	booked, _, err := shifts.HasShiftOn(ctx, guard, date)
	if err != nil {
		return err
	}
	if booked {
		return &rota.DoubleBookingError{GuardID: guard, Date: date, Existing: "extra_shift"}
	}

	assignments, err := engine.LoadGuardDate(ctx, guard, date)
	if err != nil {
		return err
	}
	for _, a := range assignments {
		if a.State.IsPresence() {
			return &rota.DoubleBookingError{
				GuardID:  guard,
				Date:     date,
				Existing: "assignment",
				PostID:   a.PostID,
			}
		}
	}
	return nil
}

// =============================================================================
// QUERY - Real rows merged with virtual rows
// =============================================================================

// Query returns extra shifts matching the filter, including read-only
// virtual rows synthesized from schedule days with inline coverage that has
// not been materialized into the ledger.
func (l *Ledger) Query(ctx context.Context, f Filter) ([]ExtraShift, error) {
	real, err := l.shifts.QueryShifts(ctx, f)
	if err != nil {
		return nil, err
	}

	virtual, err := l.virtualRows(ctx, f, real)
	if err != nil {
		return nil, err
	}

	out := append(real, virtual...)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].GuardID < out[j].GuardID
	})
	return out, nil
}

func (l *Ledger) virtualRows(ctx context.Context, f Filter, real []ExtraShift) ([]ExtraShift, error) {
	from := rota.Date{}
	to := rota.NewDate(9999, time.December, 31)
	if f.From != nil {
		from = *f.From
	}
	if f.To != nil {
		to = *f.To
	}

	covered, err := l.engine.LoadCoveredAssignments(ctx, from, to)
	if err != nil {
		return nil, err
	}

	// A virtual row is excluded once a real row exists for its source day.
	materialized := make(map[string]bool, len(real))
	for _, s := range real {
		materialized[sourceKey(s.SourcePostID, s.Date)] = true
	}

	var out []ExtraShift
	for _, a := range covered {
		if materialized[sourceKey(a.PostID, a.Date)] {
			continue
		}

		kind := KindReplacement
		if a.State == rota.StateNoCoverage {
			kind = KindVacancy
		}

		post, err := l.engine.GetPost(ctx, a.PostID)
		if err != nil {
			return nil, err
		}
		var installation rota.InstallationID
		if post != nil {
			installation = post.InstallationID
		}

		v := ExtraShift{
			GuardID:        a.CoverGuardID,
			InstallationID: installation,
			PostID:         a.PostID,
			SourcePostID:   a.PostID,
			Date:           a.Date,
			Kind:           kind,
			Value:          a.CoverValue,
			Status:         PaymentPending,
			Note:           a.Note,
			Virtual:        true,
		}
		if f.Matches(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func sourceKey(post rota.PostID, date rota.Date) string {
	return string(post) + "|" + date.String()
}

// =============================================================================
// PAYMENT LIFECYCLE - pending -> batched -> paid
// =============================================================================

// AttachToBatch attaches pending shifts to a payment batch. Every shift
// must exist and be pending; the store applies the move atomically.
func (l *Ledger) AttachToBatch(ctx context.Context, ids []string, batchID string) error {
	if batchID == "" {
		return fmt.Errorf("%w: batch id required", rota.ErrInvalidInput)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: no shifts to batch", rota.ErrInvalidInput)
	}
	for _, id := range ids {
		s, err := l.shifts.GetShift(ctx, id)
		if err != nil {
			return err
		}
		if s == nil {
			return fmt.Errorf("%w: extra shift %s", rota.ErrNotFound, id)
		}
		if s.Status != PaymentPending {
			return &PaymentStateError{ShiftID: id, Status: s.Status}
		}
	}
	return l.shifts.AttachToBatch(ctx, ids, batchID)
}

// MarkBatchPaid marks every batched shift of the batch paid.
func (l *Ledger) MarkBatchPaid(ctx context.Context, batchID string) (int, error) {
	if batchID == "" {
		return 0, fmt.Errorf("%w: batch id required", rota.ErrInvalidInput)
	}
	n, err := l.shifts.MarkBatchPaid(ctx, batchID)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: batch %s has no batched shifts", rota.ErrNotFound, batchID)
	}
	return n, nil
}

// Delete removes an unpaid, unbatched shift. Corrections past that point
// go through payroll, never through deletion.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	s, err := l.shifts.GetShift(ctx, id)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("%w: extra shift %s", rota.ErrNotFound, id)
	}
	if s.Status != PaymentPending {
		return &PaymentStateError{ShiftID: id, Status: s.Status}
	}
	return l.shifts.DeleteShift(ctx, id)
}
