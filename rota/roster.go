/*
roster.go - Store-backed daily assignment edits

PURPOSE:
  The administrative operations that move daily assignment records through
  the state machine after generation: attendance confirmation and
  range-based leave application. Coverage attachment lives in the
  extra-shift ledger, which owns the day-uniqueness invariant.
*/
package rota

import (
	"context"
	"fmt"
)

// Roster applies state-machine edits to stored daily assignments.
type Roster struct {
	store Store
}

func NewRoster(store Store) *Roster {
	return &Roster{store: store}
}

// ConfirmAttendance resolves a planned day into worked (present=true) or
// absence. Conflict when the day already progressed; NotFound when the day
// was never scheduled.
func (r *Roster) ConfirmAttendance(ctx context.Context, post PostID, date Date, present bool) (*DailyAssignment, error) {
	a, err := r.store.GetAssignment(ctx, post, date)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: no assignment for post %s on %s", ErrNotFound, post, date)
	}
	if err := a.ConfirmAttendance(present); err != nil {
		return nil, err
	}
	if err := r.store.UpsertAssignment(ctx, *a); err != nil {
		return nil, err
	}
	return a, nil
}

// ApplyLeave overwrites [from, to] on the post with a leave state
// (permit, medical_leave or vacation). Days with no record are created so
// the leave is visible even past the generated horizon.
func (r *Roster) ApplyLeave(ctx context.Context, post PostID, from, to Date, state DayState, note string) error {
	if !state.IsLeave() {
		return fmt.Errorf("%w: %s is not a leave state", ErrInvalidInput, state)
	}
	if to.Before(from) {
		return fmt.Errorf("%w: range end %s before start %s", ErrInvalidInput, to, from)
	}

	p, err := r.store.GetPost(ctx, post)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: post %s", ErrNotFound, post)
	}

	apply := func(s Store) error {
		for _, date := range (Period{Start: from, End: to}).Days() {
			a, err := s.GetAssignment(ctx, post, date)
			if err != nil {
				return err
			}
			if a == nil {
				a = &DailyAssignment{PostID: post, Date: date, GuardID: p.GuardID}
			}
			if err := a.ApplyLeave(state); err != nil {
				return err
			}
			if note != "" {
				a.Note = note
			}
			if err := s.UpsertAssignment(ctx, *a); err != nil {
				return err
			}
		}
		return nil
	}

	if ts, ok := r.store.(TxStore); ok {
		return ts.WithTx(ctx, apply)
	}
	return apply(r.store)
}
