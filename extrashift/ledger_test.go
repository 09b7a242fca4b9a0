package extrashift_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil/shift-engine/extrashift"
	"github.com/vigil/shift-engine/rota"
	memstore "github.com/vigil/shift-engine/rota/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const inst = rota.InstallationID("inst-1")

var rate = decimal.RequireFromString("85.50")

func newTestLedger(t *testing.T) (*extrashift.Ledger, *memstore.Memory) {
	t.Helper()
	store := memstore.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.SaveInstallation(ctx, rota.Installation{
		ID: inst, Name: "Harbor Logistics Center", ExtraShiftRate: rate,
	}))
	require.NoError(t, store.SaveGuard(ctx, rota.Guard{ID: "g-cover", Name: "C. Okafor", Active: true}))
	require.NoError(t, store.SaveGuard(ctx, rota.Guard{ID: "g-sick", Name: "M. Alvarez", Active: true}))
	require.NoError(t, store.SavePost(ctx, rota.OperationalPost{
		ID: "post-1", InstallationID: inst, RoleID: "role-day", GuardID: "g-sick", Active: true,
	}))

	return extrashift.NewLedger(store, store), store
}

func seedDay(t *testing.T, s rota.Store, post rota.PostID, guard rota.GuardID, date rota.Date, state rota.DayState) {
	t.Helper()
	err := s.UpsertAssignment(context.Background(), rota.DailyAssignment{
		PostID: post, Date: date, GuardID: guard, State: state,
	})
	require.NoError(t, err)
}

var march10 = rota.NewDate(2025, time.March, 10)

// =============================================================================
// CREATE TESTS
// =============================================================================

func TestLedger_Create_Replacement(t *testing.T) {
	// GIVEN: A planned day on post-1
	// WHEN: g-cover takes it as a replacement
	// THEN: The shift is priced at the installation rate and the schedule
	// day flips to replacement with inline coverage metadata

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedDay(t, store, "post-1", "g-sick", march10, rota.StatePlanned)

	result, err := ledger.Create(ctx, extrashift.CreateInput{
		GuardID:    "g-cover",
		PostID:     "post-1",
		SourceDate: march10,
		Kind:       extrashift.KindReplacement,
		Note:       "sick cover",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Shift.ID)
	assert.Equal(t, "C. Okafor", result.GuardName)
	assert.Equal(t, "Harbor Logistics Center", result.InstallationName)
	assert.True(t, rate.Equal(result.Shift.Value))
	assert.Equal(t, extrashift.PaymentPending, result.Shift.Status)
	assert.Equal(t, march10, result.Shift.Date)
	assert.Equal(t, rota.PostID("post-1"), result.Shift.SourcePostID)
	assert.True(t, result.Mirrored)

	day, err := store.GetAssignment(ctx, "post-1", march10)
	require.NoError(t, err)
	assert.Equal(t, rota.StateReplacement, day.State)
	assert.Equal(t, rota.GuardID("g-cover"), day.CoverGuardID)
	assert.True(t, rate.Equal(day.CoverValue))
}

func TestLedger_Create_VacancyCoverage(t *testing.T) {
	// Vacancy coverage fills a no_coverage day without changing its state.
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, store.SavePost(ctx, rota.OperationalPost{
		ID: "post-vacant", InstallationID: inst, RoleID: "role-day",
		PendingCoverage: true, Active: true,
	}))
	seedDay(t, store, "post-vacant", "", march10, rota.StateNoCoverage)

	result, err := ledger.Create(ctx, extrashift.CreateInput{
		GuardID:    "g-cover",
		PostID:     "post-vacant",
		SourceDate: march10,
		Kind:       extrashift.KindVacancy,
	})
	require.NoError(t, err)
	assert.Equal(t, extrashift.KindVacancy, result.Shift.Kind)

	day, err := store.GetAssignment(ctx, "post-vacant", march10)
	require.NoError(t, err)
	assert.Equal(t, rota.StateNoCoverage, day.State)
	assert.Equal(t, rota.GuardID("g-cover"), day.CoverGuardID)
}

func TestLedger_Create_DuplicateShiftSameDay_Rejected(t *testing.T) {
	// GIVEN: g-cover already holds an extra shift on March 10
	// WHEN: Recording another one on any post that day
	// THEN: Rejected with DoubleBookingError naming the ledger

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedDay(t, store, "post-1", "g-sick", march10, rota.StatePlanned)

	require.NoError(t, store.SavePost(ctx, rota.OperationalPost{
		ID: "post-2", InstallationID: inst, RoleID: "role-night", GuardID: "g-sick", Active: true,
	}))
	seedDay(t, store, "post-2", "g-sick", march10, rota.StatePlanned)

	_, err := ledger.Create(ctx, extrashift.CreateInput{
		GuardID: "g-cover", PostID: "post-1", SourceDate: march10, Kind: extrashift.KindReplacement,
	})
	require.NoError(t, err)

	_, err = ledger.Create(ctx, extrashift.CreateInput{
		GuardID: "g-cover", PostID: "post-2", SourceDate: march10, Kind: extrashift.KindReplacement,
	})

	var dup *rota.DoubleBookingError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "extra_shift", dup.Existing)
	assert.Equal(t, march10, dup.Date)
	assert.True(t, rota.IsConflict(err))
}

func TestLedger_Create_GuardScheduledThatDay_Rejected(t *testing.T) {
	// GIVEN: The covering guard has their own planned day on March 10
	// WHEN: Recording an extra shift for them that day
	// THEN: Rejected with DoubleBookingError naming the regular schedule

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedDay(t, store, "post-1", "g-sick", march10, rota.StatePlanned)

	require.NoError(t, store.SavePost(ctx, rota.OperationalPost{
		ID: "post-own", InstallationID: inst, RoleID: "role-day", GuardID: "g-cover", Active: true,
	}))
	seedDay(t, store, "post-own", "g-cover", march10, rota.StatePlanned)

	_, err := ledger.Create(ctx, extrashift.CreateInput{
		GuardID: "g-cover", PostID: "post-1", SourceDate: march10, Kind: extrashift.KindReplacement,
	})

	var dup *rota.DoubleBookingError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "assignment", dup.Existing)
	assert.Equal(t, rota.PostID("post-own"), dup.PostID)
}

func TestLedger_Create_GuardRestingThatDay_Allowed(t *testing.T) {
	// A rest day on the guard's own schedule does not block an extra shift.
	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedDay(t, store, "post-1", "g-sick", march10, rota.StatePlanned)

	require.NoError(t, store.SavePost(ctx, rota.OperationalPost{
		ID: "post-own", InstallationID: inst, RoleID: "role-day", GuardID: "g-cover", Active: true,
	}))
	seedDay(t, store, "post-own", "g-cover", march10, rota.StateRest)

	_, err := ledger.Create(ctx, extrashift.CreateInput{
		GuardID: "g-cover", PostID: "post-1", SourceDate: march10, Kind: extrashift.KindReplacement,
	})

	assert.NoError(t, err)
}

func TestLedger_Create_NoScheduleDay_NotFound(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Create(context.Background(), extrashift.CreateInput{
		GuardID: "g-cover", PostID: "post-1", SourceDate: march10, Kind: extrashift.KindReplacement,
	})

	assert.True(t, rota.IsNotFound(err))
}

func TestLedger_Create_UnknownKind(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Create(context.Background(), extrashift.CreateInput{
		GuardID: "g-cover", PostID: "post-1", SourceDate: march10, Kind: "overtime",
	})

	assert.True(t, rota.IsInvalidInput(err))
}

func TestLedger_Create_UnattachableDay_NotMirrored(t *testing.T) {
	// GIVEN: An absence day on post-1
	// WHEN: Recording a replacement against it
	// THEN: The ledger row is created, but the day keeps its state and the
	// result reports the missing mirror

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedDay(t, store, "post-1", "g-sick", march10, rota.StateAbsence)

	result, err := ledger.Create(ctx, extrashift.CreateInput{
		GuardID:    "g-cover",
		PostID:     "post-1",
		SourceDate: march10,
		Kind:       extrashift.KindReplacement,
	})
	require.NoError(t, err)
	assert.False(t, result.Mirrored)

	booked, _, err := store.HasShiftOn(ctx, "g-cover", march10)
	require.NoError(t, err)
	assert.True(t, booked)

	day, err := store.GetAssignment(ctx, "post-1", march10)
	require.NoError(t, err)
	assert.Equal(t, rota.StateAbsence, day.State)
	assert.Empty(t, day.CoverGuardID)
}

// mirrorFailEngine wraps TxMemory so the schedule mirror write inside
// Create's transaction fails, while every other write succeeds.
type mirrorFailEngine struct {
	*memstore.TxMemory
}

func (e *mirrorFailEngine) WithTx(ctx context.Context, fn func(rota.Store) error) error {
	return e.TxMemory.WithTx(ctx, func(inner rota.Store) error {
		return fn(failingMirror{Store: inner})
	})
}

type failingMirror struct {
	rota.Store
}

func (f failingMirror) UpsertAssignment(ctx context.Context, a rota.DailyAssignment) error {
	if a.CoverGuardID != "" {
		return assert.AnError
	}
	return f.Store.UpsertAssignment(ctx, a)
}

func TestLedger_Create_MirrorFailureRollsBackShift(t *testing.T) {
	// GIVEN: An engine store whose schedule mirror write fails
	// WHEN: Creating a replacement shift
	// THEN: The error surfaces and the ledger row is rolled back with it

	store := memstore.NewTxMemory()
	ctx := context.Background()
	require.NoError(t, store.SaveInstallation(ctx, rota.Installation{
		ID: inst, Name: "Harbor Logistics Center", ExtraShiftRate: rate,
	}))
	require.NoError(t, store.SaveGuard(ctx, rota.Guard{ID: "g-cover", Name: "C. Okafor", Active: true}))
	require.NoError(t, store.SavePost(ctx, rota.OperationalPost{
		ID: "post-1", InstallationID: inst, RoleID: "role-day", GuardID: "g-sick", Active: true,
	}))
	seedDay(t, store, "post-1", "g-sick", march10, rota.StatePlanned)

	ledger := extrashift.NewLedger(store, &mirrorFailEngine{TxMemory: store})

	_, err := ledger.Create(ctx, extrashift.CreateInput{
		GuardID:    "g-cover",
		PostID:     "post-1",
		SourceDate: march10,
		Kind:       extrashift.KindReplacement,
	})
	require.Error(t, err)

	booked, _, err := store.HasShiftOn(ctx, "g-cover", march10)
	require.NoError(t, err)
	assert.False(t, booked, "ledger row should not survive the failed mirror")

	day, err := store.GetAssignment(ctx, "post-1", march10)
	require.NoError(t, err)
	assert.Equal(t, rota.StatePlanned, day.State)
	assert.Empty(t, day.CoverGuardID)
}

// =============================================================================
// QUERY AND VIRTUAL ROW TESTS
// =============================================================================

func TestLedger_Query_VirtualRowsFromCoveredDays(t *testing.T) {
	// GIVEN: A schedule day carrying inline coverage with no ledger row
	// WHEN: Querying the ledger
	// THEN: A virtual row is synthesized for it

	ledger, store := newTestLedger(t)
	ctx := context.Background()

	err := store.UpsertAssignment(ctx, rota.DailyAssignment{
		PostID:       "post-1",
		Date:         march10,
		GuardID:      "g-sick",
		State:        rota.StateReplacement,
		CoverGuardID: "g-cover",
		CoverValue:   rate,
	})
	require.NoError(t, err)

	shifts, err := ledger.Query(ctx, extrashift.Filter{})
	require.NoError(t, err)
	require.Len(t, shifts, 1)

	v := shifts[0]
	assert.True(t, v.Virtual)
	assert.Empty(t, v.ID)
	assert.Equal(t, rota.GuardID("g-cover"), v.GuardID)
	assert.Equal(t, extrashift.KindReplacement, v.Kind)
	assert.Equal(t, inst, v.InstallationID)
	assert.True(t, rate.Equal(v.Value))
}

func TestLedger_Query_MaterializedRowSuppressesVirtual(t *testing.T) {
	// GIVEN: A covered day whose shift was recorded in the ledger
	// WHEN: Querying
	// THEN: Only the real row appears, never a duplicate virtual one

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedDay(t, store, "post-1", "g-sick", march10, rota.StatePlanned)

	_, err := ledger.Create(ctx, extrashift.CreateInput{
		GuardID: "g-cover", PostID: "post-1", SourceDate: march10, Kind: extrashift.KindReplacement,
	})
	require.NoError(t, err)

	shifts, err := ledger.Query(ctx, extrashift.Filter{})
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.False(t, shifts[0].Virtual)
	assert.NotEmpty(t, shifts[0].ID)
}

func TestLedger_Query_NoCoverageDay_VirtualKindVacancy(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	err := store.UpsertAssignment(ctx, rota.DailyAssignment{
		PostID:       "post-1",
		Date:         march10,
		State:        rota.StateNoCoverage,
		CoverGuardID: "g-cover",
		CoverValue:   rate,
	})
	require.NoError(t, err)

	shifts, err := ledger.Query(ctx, extrashift.Filter{})
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, extrashift.KindVacancy, shifts[0].Kind)
}

func TestLedger_Query_Filters(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, store.SaveGuard(ctx, rota.Guard{ID: "g-extra", Name: "D. Petrov", Active: true}))
	seedDay(t, store, "post-1", "g-sick", march10, rota.StatePlanned)
	seedDay(t, store, "post-1", "g-sick", march10.AddDays(5), rota.StatePlanned)

	_, err := ledger.Create(ctx, extrashift.CreateInput{
		GuardID: "g-cover", PostID: "post-1", SourceDate: march10, Kind: extrashift.KindReplacement,
	})
	require.NoError(t, err)
	_, err = ledger.Create(ctx, extrashift.CreateInput{
		GuardID: "g-extra", PostID: "post-1", SourceDate: march10.AddDays(5), Kind: extrashift.KindReplacement,
	})
	require.NoError(t, err)

	guard := rota.GuardID("g-cover")
	shifts, err := ledger.Query(ctx, extrashift.Filter{GuardID: &guard})
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, guard, shifts[0].GuardID)

	to := march10.AddDays(1)
	shifts, err = ledger.Query(ctx, extrashift.Filter{To: &to})
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, march10, shifts[0].Date)
}

// =============================================================================
// PAYMENT LIFECYCLE TESTS
// =============================================================================

func createPendingShift(t *testing.T, ledger *extrashift.Ledger, store *memstore.Memory, guard rota.GuardID, date rota.Date) string {
	t.Helper()
	seedDay(t, store, "post-1", "g-sick", date, rota.StatePlanned)
	result, err := ledger.Create(context.Background(), extrashift.CreateInput{
		GuardID: guard, PostID: "post-1", SourceDate: date, Kind: extrashift.KindReplacement,
	})
	require.NoError(t, err)
	return result.Shift.ID
}

func TestLedger_PaymentLifecycle(t *testing.T) {
	// pending -> batched -> paid, with counts reported at settlement.
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	id1 := createPendingShift(t, ledger, store, "g-cover", march10)
	id2 := createPendingShift(t, ledger, store, "g-cover", march10.AddDays(1))

	require.NoError(t, ledger.AttachToBatch(ctx, []string{id1, id2}, "batch-2025-03"))

	status := extrashift.PaymentBatched
	batched, err := ledger.Query(ctx, extrashift.Filter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, batched, 2)
	assert.Equal(t, "batch-2025-03", batched[0].BatchID)

	n, err := ledger.MarkBatchPaid(ctx, "batch-2025-03")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	status = extrashift.PaymentPaid
	paid, err := ledger.Query(ctx, extrashift.Filter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, paid, 2)
}

func TestLedger_AttachToBatch_NonPendingShift_Rejected(t *testing.T) {
	// GIVEN: One shift already batched
	// WHEN: Batching it again together with a pending one
	// THEN: The whole batch is rejected and the pending shift stays pending

	ledger, store := newTestLedger(t)
	ctx := context.Background()

	id1 := createPendingShift(t, ledger, store, "g-cover", march10)
	require.NoError(t, ledger.AttachToBatch(ctx, []string{id1}, "batch-a"))

	id2 := createPendingShift(t, ledger, store, "g-cover", march10.AddDays(1))
	err := ledger.AttachToBatch(ctx, []string{id1, id2}, "batch-b")

	var stateErr *extrashift.PaymentStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, id1, stateErr.ShiftID)

	s2, err := store.GetShift(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, extrashift.PaymentPending, s2.Status)
}

func TestLedger_MarkBatchPaid_UnknownBatch(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.MarkBatchPaid(context.Background(), "batch-ghost")

	assert.True(t, rota.IsNotFound(err))
}

func TestLedger_Delete_PendingOnly(t *testing.T) {
	// GIVEN: A pending and a batched shift
	// WHEN: Deleting each
	// THEN: Pending deletes; batched is rejected with the payment state

	ledger, store := newTestLedger(t)
	ctx := context.Background()

	pending := createPendingShift(t, ledger, store, "g-cover", march10)
	batched := createPendingShift(t, ledger, store, "g-cover", march10.AddDays(1))
	require.NoError(t, ledger.AttachToBatch(ctx, []string{batched}, "batch-a"))

	require.NoError(t, ledger.Delete(ctx, pending))
	gone, err := store.GetShift(ctx, pending)
	require.NoError(t, err)
	assert.Nil(t, gone)

	err = ledger.Delete(ctx, batched)
	var stateErr *extrashift.PaymentStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, extrashift.PaymentBatched, stateErr.Status)
	assert.True(t, rota.IsConflict(err))
}

func TestLedger_Delete_Unknown(t *testing.T) {
	ledger, _ := newTestLedger(t)

	err := ledger.Delete(context.Background(), "shift-ghost")

	assert.True(t, rota.IsNotFound(err))
}
