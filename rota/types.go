/*
Package rota provides the shift-pattern continuity and coverage scheduling engine.

PURPOSE:
  This package contains the core types and algorithms for scheduling guards
  across operational posts: inferring a post's rotating work/rest cycle from
  its daily history, extending that cycle seamlessly into the next calendar
  month, and maintaining the per-day assignment state machine.

KEY CONCEPTS IN THIS FILE (types.go):
  - DayState: The finite-state daily assignment record (planned, worked,
    absence, replacement, no-coverage, rest, permit, medical-leave, vacation)
  - DailyAssignment: One record per (post, date)
  - OperationalPost: A staffing slot at an installation for a service role
  - Guard/Installation: Directory entities the engine resolves against

DESIGN PRINCIPLES:
  1. Type Safety: Strong typing for IDs prevents mixing guard/post/role IDs
  2. Precision: decimal.Decimal for monetary values, never float64
  3. Explicit state: every day holds exactly one DayState; transitions are
     validated functions, not ad-hoc field writes

SEE ALSO:
  - pattern.go: Cycle detection from daily history
  - continuity.go: Phase-preserving projection into the next period
  - generator.go: Monthly schedule replication across a whole installation
  - store.go: Persistence contracts
*/
package rota

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type GuardID string
type PostID string
type InstallationID string
type RoleID string

// =============================================================================
// DAY STATE - Finite-state daily assignment record
// =============================================================================

type DayState string

const (
	StatePlanned      DayState = "planned"       // Scheduled, not yet confirmed
	StateWorked       DayState = "worked"        // Attendance confirmed
	StateAbsence      DayState = "absence"       // Unexcused no-show
	StateReplacement  DayState = "replacement"   // Another guard covered the day
	StateNoCoverage   DayState = "no_coverage"   // Vacancy, nobody assigned
	StateRest         DayState = "rest"          // Scheduled day off
	StatePermit       DayState = "permit"        // Authorized leave
	StateMedicalLeave DayState = "medical_leave" // Medical leave
	StateVacation     DayState = "vacation"      // Vacation
)

// IsRest reports whether the day is a scheduled day off. Everything else
// counts as a duty day for cycle detection, regardless of how attendance
// eventually resolved (absence, leave and replacement days are still duty
// days of the underlying rotation).
func (s DayState) IsRest() bool { return s == StateRest }

// IsPresence reports whether the day counts as the guard holding a regular
// paid shift. Only these states conflict with an extra shift on the same
// date for the same guard.
func (s DayState) IsPresence() bool {
	return s == StatePlanned || s == StateWorked
}

// IsLeave reports whether the state is an administrative leave state.
func (s DayState) IsLeave() bool {
	return s == StatePermit || s == StateMedicalLeave || s == StateVacation
}

// Replicable reports whether monthly replication may overwrite the day.
// Days that have progressed past planning (worked, absence, leave,
// replacement) are never touched by the generator.
func (s DayState) Replicable() bool {
	return s == StatePlanned || s == StateRest || s == StateNoCoverage
}

// Valid reports whether s is one of the recognized states.
func (s DayState) Valid() bool {
	switch s {
	case StatePlanned, StateWorked, StateAbsence, StateReplacement,
		StateNoCoverage, StateRest, StatePermit, StateMedicalLeave, StateVacation:
		return true
	}
	return false
}

// =============================================================================
// DAILY ASSIGNMENT - One record per (post, date)
// =============================================================================

// DailyAssignment is the daily schedule record for a post. GuardID is the
// nominal guard and may be empty on a vacant post; CoverGuardID carries
// inline coverage metadata until an extra-shift ledger row is materialized
// for the day.
type DailyAssignment struct {
	PostID       PostID
	Date         Date
	GuardID      GuardID // nominal guard, empty when vacant
	State        DayState
	Note         string
	CoverGuardID GuardID         // guard who covered the day, if any
	CoverValue   decimal.Decimal // agreed value for inline coverage, may be zero
}

// Covered reports whether a vacancy day has been covered.
func (a *DailyAssignment) Covered() bool {
	return a.State == StateNoCoverage && a.CoverGuardID != ""
}

// =============================================================================
// STATE TRANSITIONS
// =============================================================================

// ConfirmAttendance resolves a planned day into worked or absence.
// Any other starting state is a conflict: the day already progressed.
func (a *DailyAssignment) ConfirmAttendance(present bool) error {
	if a.State != StatePlanned {
		return fmt.Errorf("%w: day %s on post %s is %s, not planned",
			ErrConflict, a.Date, a.PostID, a.State)
	}
	if present {
		a.State = StateWorked
	} else {
		a.State = StateAbsence
	}
	return nil
}

// ApplyLeave overwrites the day with an administrative leave state.
// Leave is applied over whatever was planned and supersedes worked/absence
// for the same day (the two are mutually exclusive by construction).
func (a *DailyAssignment) ApplyLeave(state DayState) error {
	if !state.IsLeave() {
		return fmt.Errorf("%w: %s is not a leave state", ErrInvalidInput, state)
	}
	a.State = state
	return nil
}

// AttachCover records coverage of this day by another guard.
// A replacement moves a planned/worked day to replacement; vacancy coverage
// keeps the no-coverage state and marks the day covered via CoverGuardID.
func (a *DailyAssignment) AttachCover(guard GuardID, replacement bool) error {
	if guard == "" {
		return fmt.Errorf("%w: cover guard required", ErrInvalidInput)
	}
	if replacement {
		if a.State != StatePlanned && a.State != StateWorked {
			return fmt.Errorf("%w: day %s on post %s is %s, cannot attach replacement",
				ErrConflict, a.Date, a.PostID, a.State)
		}
		a.State = StateReplacement
	} else {
		if a.State != StateNoCoverage {
			return fmt.Errorf("%w: day %s on post %s is %s, not a vacancy",
				ErrConflict, a.Date, a.PostID, a.State)
		}
	}
	a.CoverGuardID = guard
	return nil
}

// =============================================================================
// OPERATIONAL POST - Staffing slot at an installation
// =============================================================================

// OperationalPost is a staffing slot tied to an installation and a service
// role. INVARIANT: PendingCoverage is set only while GuardID is empty;
// assigning a guard clears the flag atomically with the assignment.
type OperationalPost struct {
	ID              PostID
	InstallationID  InstallationID
	RoleID          RoleID
	GuardID         GuardID // empty = unassigned
	PendingCoverage bool
	Active          bool
}

// Vacant reports whether the post has no guard assigned.
func (p *OperationalPost) Vacant() bool { return p.GuardID == "" }

// =============================================================================
// ROLE PATTERN - Nominal rotation for a service role
// =============================================================================

// RolePattern describes the nominal rotation for a role. WorkDays+RestDays
// defines the cycle length; StartTime/EndTime are the shift's time-of-day
// bounds in "15:04" form.
type RolePattern struct {
	RoleID    RoleID
	Name      string
	WorkDays  int
	RestDays  int
	StartTime string
	EndTime   string
}

// CycleLength returns the full rotation length.
func (r RolePattern) CycleLength() int { return r.WorkDays + r.RestDays }

// =============================================================================
// DIRECTORY ENTITIES
// =============================================================================

type Guard struct {
	ID     GuardID
	Name   string
	Active bool
}

// Installation carries the configured extra-shift rate resolved when the
// ledger values a replacement or vacancy-coverage shift.
type Installation struct {
	ID             InstallationID
	Name           string
	ExtraShiftRate decimal.Decimal
}
