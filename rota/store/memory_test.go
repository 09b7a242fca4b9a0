package store_test

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

func TestTxMemory_RollbackRestoresEveryEntity(t *testing.T) {
	// GIVEN: A store holding one of each entity
	// WHEN: A transaction mutates all of them and fails
	// THEN: Every write is rolled back, not just assignments and posts

	store := memstore.NewTxMemory()
	ctx := context.Background()
	march10 := rota.NewDate(2025, time.March, 10)

	require.NoError(t, store.SaveGuard(ctx, rota.Guard{ID: "g-1", Name: "M. Alvarez", Active: true}))
	require.NoError(t, store.SaveInstallation(ctx, rota.Installation{
		ID: "inst-1", Name: "Harbor Logistics Center",
		ExtraShiftRate: decimal.RequireFromString("85.50"),
	}))
	require.NoError(t, store.SaveRolePattern(ctx, rota.RolePattern{
		RoleID: "role-day", Name: "Day Guard", WorkDays: 4, RestDays: 4,
	}))

	err := store.WithTx(ctx, func(s rota.Store) error {
		if err := s.SaveGuard(ctx, rota.Guard{ID: "g-2", Name: "C. Okafor", Active: true}); err != nil {
			return err
		}
		if err := s.SaveInstallation(ctx, rota.Installation{ID: "inst-2", Name: "Northern Depot"}); err != nil {
			return err
		}
		if err := s.SaveRolePattern(ctx, rota.RolePattern{
			RoleID: "role-night", Name: "Night Guard", WorkDays: 4, RestDays: 4,
		}); err != nil {
			return err
		}
		if err := store.InsertShift(ctx, extrashift.ExtraShift{
			ID: "s-1", GuardID: "g-1", InstallationID: "inst-1",
			PostID: "post-1", SourcePostID: "post-1", Date: march10,
			Kind: extrashift.KindReplacement, Value: decimal.Zero,
			Status: extrashift.PaymentPending,
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	g, err := store.GetGuard(ctx, "g-2")
	require.NoError(t, err)
	assert.Nil(t, g)

	in, err := store.GetInstallation(ctx, "inst-2")
	require.NoError(t, err)
	assert.Nil(t, in)

	rp, err := store.GetRolePattern(ctx, "role-night")
	require.NoError(t, err)
	assert.Nil(t, rp)

	booked, _, err := store.HasShiftOn(ctx, "g-1", march10)
	require.NoError(t, err)
	assert.False(t, booked)

	// Pre-transaction state survives.
	g, err = store.GetGuard(ctx, "g-1")
	require.NoError(t, err)
	require.NotNil(t, g)
}

func TestTxMemory_CommitKeepsWrites(t *testing.T) {
	store := memstore.NewTxMemory()
	ctx := context.Background()

	err := store.WithTx(ctx, func(s rota.Store) error {
		return s.SaveGuard(ctx, rota.Guard{ID: "g-1", Name: "M. Alvarez", Active: true})
	})
	require.NoError(t, err)

	g, err := store.GetGuard(ctx, "g-1")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "M. Alvarez", g.Name)
}

func TestMemory_RolePatternRoundTrip(t *testing.T) {
	store := memstore.NewMemory()
	ctx := context.Background()

	p := rota.RolePattern{
		RoleID: "role-day", Name: "Day Guard",
		WorkDays: 5, RestDays: 2, StartTime: "08:00", EndTime: "17:00",
	}
	require.NoError(t, store.SaveRolePattern(ctx, p))

	got, err := store.GetRolePattern(ctx, "role-day")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p, *got)

	missing, err := store.GetRolePattern(ctx, "role-ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
