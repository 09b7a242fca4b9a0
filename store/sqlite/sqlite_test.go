package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil/shift-engine/extrashift"
	"github.com/vigil/shift-engine/rota"
	"github.com/vigil/shift-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testShift(id string, guard rota.GuardID, date rota.Date) extrashift.ExtraShift {
	return extrashift.ExtraShift{
		ID:             id,
		GuardID:        guard,
		InstallationID: "inst-1",
		PostID:         "post-1",
		SourcePostID:   "post-1",
		Date:           date,
		Kind:           extrashift.KindReplacement,
		Value:          decimal.RequireFromString("85.50"),
		Status:         extrashift.PaymentPending,
		CreatedAt:      time.Now().UTC(),
	}
}

var march10 = rota.NewDate(2025, time.March, 10)

// =============================================================================
// ASSIGNMENT ROUND TRIPS
// =============================================================================

func TestSQLite_AssignmentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := rota.DailyAssignment{
		PostID:       "post-1",
		Date:         march10,
		GuardID:      "g-1",
		State:        rota.StateReplacement,
		Note:         "sick cover",
		CoverGuardID: "g-2",
		CoverValue:   decimal.RequireFromString("85.50"),
	}
	require.NoError(t, store.UpsertAssignment(ctx, a))

	got, err := store.GetAssignment(ctx, "post-1", march10)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.State, got.State)
	assert.Equal(t, a.Note, got.Note)
	assert.Equal(t, a.CoverGuardID, got.CoverGuardID)
	assert.True(t, a.CoverValue.Equal(got.CoverValue))
	assert.Equal(t, march10, got.Date)
}

func TestSQLite_UpsertReplacesDay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := rota.DailyAssignment{PostID: "post-1", Date: march10, GuardID: "g-1", State: rota.StatePlanned}
	require.NoError(t, store.UpsertAssignment(ctx, a))

	a.State = rota.StateWorked
	require.NoError(t, store.UpsertAssignment(ctx, a))

	days, err := store.LoadPostRange(ctx, "post-1", rota.MonthPeriod(2025, time.March))
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, rota.StateWorked, days[0].State)
}

func TestSQLite_LoadPostRange_Ordered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, d := range []int{20, 5, 12} {
		err := store.UpsertAssignment(ctx, rota.DailyAssignment{
			PostID: "post-1", Date: rota.NewDate(2025, time.March, d),
			GuardID: "g-1", State: rota.StatePlanned,
		})
		require.NoError(t, err)
	}

	days, err := store.LoadPostRange(ctx, "post-1", rota.MonthPeriod(2025, time.March))
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, 5, days[0].Date.Day)
	assert.Equal(t, 12, days[1].Date.Day)
	assert.Equal(t, 20, days[2].Date.Day)
}

func TestSQLite_DeleteGuardAssignmentsFrom(t *testing.T) {
	// GIVEN: A guard with days on two posts spanning the cutoff
	// WHEN: Deleting from the cutoff
	// THEN: Only later days go, and both posts are reported

	store := newTestStore(t)
	ctx := context.Background()

	for d := 8; d <= 12; d++ {
		for _, post := range []rota.PostID{"post-1", "post-2"} {
			err := store.UpsertAssignment(ctx, rota.DailyAssignment{
				PostID: post, Date: rota.NewDate(2025, time.March, d),
				GuardID: "g-1", State: rota.StatePlanned,
			})
			require.NoError(t, err)
		}
	}

	affected, err := store.DeleteGuardAssignmentsFrom(ctx, "g-1", march10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []rota.PostID{"post-1", "post-2"}, affected)

	days, err := store.LoadPostRange(ctx, "post-1", rota.MonthPeriod(2025, time.March))
	require.NoError(t, err)
	require.Len(t, days, 2)
	for _, a := range days {
		assert.True(t, a.Date.Before(march10))
	}
}

func TestSQLite_LoadCoveredAssignments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAssignment(ctx, rota.DailyAssignment{
		PostID: "post-1", Date: march10, GuardID: "g-1",
		State: rota.StateReplacement, CoverGuardID: "g-2",
		CoverValue: decimal.RequireFromString("85.50"),
	}))
	require.NoError(t, store.UpsertAssignment(ctx, rota.DailyAssignment{
		PostID: "post-1", Date: march10.AddDays(1), GuardID: "g-1",
		State: rota.StatePlanned,
	}))

	covered, err := store.LoadCoveredAssignments(ctx, rota.NewDate(2025, time.March, 1), rota.NewDate(2025, time.March, 31))
	require.NoError(t, err)
	require.Len(t, covered, 1)
	assert.Equal(t, rota.GuardID("g-2"), covered[0].CoverGuardID)
}

// =============================================================================
// POSTS AND DIRECTORY
// =============================================================================

func TestSQLite_PostRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := rota.OperationalPost{
		ID: "post-1", InstallationID: "inst-1", RoleID: "role-day",
		GuardID: "g-1", Active: true,
	}
	require.NoError(t, store.SavePost(ctx, p))

	got, err := store.GetPost(ctx, "post-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p, *got)

	missing, err := store.GetPost(ctx, "post-ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_UpdatePostGuard_Atomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SavePost(ctx, rota.OperationalPost{
		ID: "post-1", InstallationID: "inst-1", RoleID: "role-day",
		GuardID: "g-1", Active: true,
	}))

	require.NoError(t, store.UpdatePostGuard(ctx, "post-1", "", true))

	got, err := store.GetPost(ctx, "post-1")
	require.NoError(t, err)
	assert.Empty(t, got.GuardID)
	assert.True(t, got.PendingCoverage)

	err = store.UpdatePostGuard(ctx, "post-ghost", "g-1", false)
	assert.True(t, rota.IsNotFound(err))
}

func TestSQLite_ListUnassignedPosts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	posts := []rota.OperationalPost{
		{ID: "post-1", InstallationID: "inst-1", RoleID: "role-day", GuardID: "g-1", Active: true},
		{ID: "post-2", InstallationID: "inst-1", RoleID: "role-day", Active: true},
		{ID: "post-3", InstallationID: "inst-1", RoleID: "role-night", Active: true},
		{ID: "post-4", InstallationID: "inst-2", RoleID: "role-day", Active: true},
	}
	for _, p := range posts {
		require.NoError(t, store.SavePost(ctx, p))
	}

	unassigned, err := store.ListUnassignedPosts(ctx, "inst-1", "role-day")
	require.NoError(t, err)
	require.Len(t, unassigned, 1)
	assert.Equal(t, rota.PostID("post-2"), unassigned[0].ID)
}

func TestSQLite_InstallationRate_SurvivesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rate := decimal.RequireFromString("92.75")
	require.NoError(t, store.SaveInstallation(ctx, rota.Installation{
		ID: "inst-1", Name: "Atrium Business Park", ExtraShiftRate: rate,
	}))

	got, err := store.GetInstallation(ctx, "inst-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, rate.Equal(got.ExtraShiftRate))

	all, err := store.ListInstallations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLite_RolePatternRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := rota.RolePattern{
		RoleID: "role-day", Name: "Day Guard",
		WorkDays: 4, RestDays: 4, StartTime: "07:00", EndTime: "19:00",
	}
	require.NoError(t, store.SaveRolePattern(ctx, p))

	got, err := store.GetRolePattern(ctx, "role-day")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p, *got)

	p.WorkDays, p.RestDays = 5, 2
	require.NoError(t, store.SaveRolePattern(ctx, p))
	got, err = store.GetRolePattern(ctx, "role-day")
	require.NoError(t, err)
	assert.Equal(t, 5, got.WorkDays)

	missing, err := store.GetRolePattern(ctx, "role-ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s rota.Store) error {
		if err := s.UpsertAssignment(ctx, rota.DailyAssignment{
			PostID: "post-1", Date: march10, GuardID: "g-1", State: rota.StatePlanned,
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	got, err := store.GetAssignment(ctx, "post-1", march10)
	require.NoError(t, err)
	assert.Nil(t, got, "write should have been rolled back")
}

func TestSQLite_WithTx_ReadsOwnWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s rota.Store) error {
		if err := s.UpsertAssignment(ctx, rota.DailyAssignment{
			PostID: "post-1", Date: march10, GuardID: "g-1", State: rota.StatePlanned,
		}); err != nil {
			return err
		}
		got, err := s.GetAssignment(ctx, "post-1", march10)
		if err != nil {
			return err
		}
		assert.NotNil(t, got)
		return nil
	})
	require.NoError(t, err)
}

// shiftTxOps is the transaction-scoped surface the extra-shift ledger
// relies on for single-transaction creates.
type shiftTxOps interface {
	InsertShift(ctx context.Context, shift extrashift.ExtraShift) error
	HasShiftOn(ctx context.Context, guard rota.GuardID, date rota.Date) (bool, string, error)
}

func TestSQLite_WithTx_ShiftInsertRollsBack(t *testing.T) {
	// GIVEN: A shift inserted through the transaction-scoped store
	// WHEN: The transaction fails after the insert
	// THEN: The shift is rolled back with everything else

	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s rota.Store) error {
		ss, ok := s.(shiftTxOps)
		require.True(t, ok, "transaction store must expose shift operations")

		if err := ss.InsertShift(ctx, testShift("s-1", "g-1", march10)); err != nil {
			return err
		}
		booked, id, err := ss.HasShiftOn(ctx, "g-1", march10)
		require.NoError(t, err)
		assert.True(t, booked, "in-transaction read should see the insert")
		assert.Equal(t, "s-1", id)
		return assert.AnError
	})
	require.Error(t, err)

	booked, _, err := store.HasShiftOn(ctx, "g-1", march10)
	require.NoError(t, err)
	assert.False(t, booked)
}

// =============================================================================
// EXTRA SHIFT INVARIANT
// =============================================================================

func TestSQLite_InsertShift_UniqueGuardDay(t *testing.T) {
	// GIVEN: A shift for g-1 on March 10
	// WHEN: Inserting another shift for g-1 that day
	// THEN: The unique index rejects it as a double booking

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertShift(ctx, testShift("s-1", "g-1", march10)))

	err := store.InsertShift(ctx, testShift("s-2", "g-1", march10))

	var dup *rota.DoubleBookingError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "extra_shift", dup.Existing)
	assert.True(t, rota.IsConflict(err))

	// Same day, different guard is fine.
	assert.NoError(t, store.InsertShift(ctx, testShift("s-3", "g-2", march10)))
}

func TestSQLite_InsertShift_CrossTableCheck(t *testing.T) {
	// GIVEN: g-1 holds a planned day on March 10
	// WHEN: Inserting an extra shift for g-1 that day
	// THEN: The in-transaction cross-check rejects it

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAssignment(ctx, rota.DailyAssignment{
		PostID: "post-9", Date: march10, GuardID: "g-1", State: rota.StatePlanned,
	}))

	err := store.InsertShift(ctx, testShift("s-1", "g-1", march10))

	var dup *rota.DoubleBookingError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "assignment", dup.Existing)
}

func TestSQLite_InsertShift_RestDayDoesNotBlock(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAssignment(ctx, rota.DailyAssignment{
		PostID: "post-9", Date: march10, GuardID: "g-1", State: rota.StateRest,
	}))

	assert.NoError(t, store.InsertShift(ctx, testShift("s-1", "g-1", march10)))
}

func TestSQLite_ShiftLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertShift(ctx, testShift("s-1", "g-1", march10)))
	require.NoError(t, store.InsertShift(ctx, testShift("s-2", "g-1", march10.AddDays(1))))

	require.NoError(t, store.AttachToBatch(ctx, []string{"s-1", "s-2"}, "batch-a"))

	n, err := store.MarkBatchPaid(ctx, "batch-a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.GetShift(ctx, "s-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, extrashift.PaymentPaid, got.Status)
	assert.Equal(t, "batch-a", got.BatchID)

	// Paid shifts cannot be deleted.
	err = store.DeleteShift(ctx, "s-1")
	var stateErr *extrashift.PaymentStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, extrashift.PaymentPaid, stateErr.Status)
}

func TestSQLite_AttachToBatch_AllOrNothing(t *testing.T) {
	// GIVEN: One pending shift and one already batched
	// WHEN: Batching both
	// THEN: The transaction rolls back; the pending shift stays pending

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertShift(ctx, testShift("s-1", "g-1", march10)))
	require.NoError(t, store.AttachToBatch(ctx, []string{"s-1"}, "batch-a"))
	require.NoError(t, store.InsertShift(ctx, testShift("s-2", "g-1", march10.AddDays(1))))

	err := store.AttachToBatch(ctx, []string{"s-2", "s-1"}, "batch-b")
	require.Error(t, err)

	s2, err := store.GetShift(ctx, "s-2")
	require.NoError(t, err)
	assert.Equal(t, extrashift.PaymentPending, s2.Status)
	assert.Empty(t, s2.BatchID)
}

func TestSQLite_QueryShifts_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertShift(ctx, testShift("s-1", "g-1", march10)))
	s2 := testShift("s-2", "g-2", march10.AddDays(3))
	s2.Kind = extrashift.KindVacancy
	require.NoError(t, store.InsertShift(ctx, s2))

	guard := rota.GuardID("g-1")
	shifts, err := store.QueryShifts(ctx, extrashift.Filter{GuardID: &guard})
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, "s-1", shifts[0].ID)

	kind := extrashift.KindVacancy
	shifts, err = store.QueryShifts(ctx, extrashift.Filter{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, "s-2", shifts[0].ID)

	from := march10.AddDays(1)
	shifts, err = store.QueryShifts(ctx, extrashift.Filter{From: &from})
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, "s-2", shifts[0].ID)
}

func TestSQLite_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertShift(ctx, testShift("s-1", "g-1", march10)))
	require.NoError(t, store.Reset(ctx))

	shifts, err := store.QueryShifts(ctx, extrashift.Filter{})
	require.NoError(t, err)
	assert.Empty(t, shifts)

	// The unique index survives the reset.
	assert.NoError(t, store.InsertShift(ctx, testShift("s-1", "g-1", march10)))
}
