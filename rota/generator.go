/*
generator.go - Monthly schedule replication

PURPOSE:
  Produces a full target-month DailyAssignment set for every active post of
  an installation by chaining the pattern detector and the continuity
  projector over each post's prior-month history.

MERGE RULE (idempotence):
  Replication is an explicit merge, not an overwrite. For each target day:
  - missing record            -> insert (planned / rest / no_coverage)
  - record still replicable   -> update state + nominal guard in place
  - record already progressed -> leave untouched (worked, absence, leave,
                                 replacement days are never clobbered)
  Running the generator twice for the same post/month with no intervening
  edits converges to the same assignment set.

BATCH SEMANTICS:
  Posts without prior-month history fall back to their role's configured
  rotation, opened at the top of the cycle; posts whose role has no
  rotation either are skipped with a recorded reason. Per-post failures
  are accumulated in the result; the batch always completes.

SEE ALSO:
  - pattern.go, continuity.go: The per-post algorithm
  - store.go: Assignment and post contracts
*/
package rota

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// GENERATOR
// =============================================================================

// Generator replicates monthly schedules. Each post is an independent unit
// of work; when the store supports transactions, every post's writes run
// inside one.
type Generator struct {
	store Store
	tx    TxStore // nil when the store has no transaction support
}

// NewGenerator creates a generator over the given store.
func NewGenerator(store Store) *Generator {
	g := &Generator{store: store}
	if ts, ok := store.(TxStore); ok {
		g.tx = ts
	}
	return g
}

// GenerationResult reports the outcome of one installation/month run.
// The batch always completes; failures are per-post, never fatal.
type GenerationResult struct {
	InstallationID InstallationID
	Year           int
	Month          time.Month
	Generated      []PostID
	Skipped        []PostIssue
	Failed         []PostIssue
}

// PostIssue names a post that was skipped or failed, with the reason.
type PostIssue struct {
	PostID PostID
	Reason string
}

// GenerateMonth replicates the schedule of every active post of the
// installation into (year, month), using each post's previous-month
// history to preserve cycle phase.
func (g *Generator) GenerateMonth(ctx context.Context, installation InstallationID, year int, month time.Month) (*GenerationResult, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: month %d out of range", ErrInvalidInput, month)
	}

	posts, err := g.store.ListActivePosts(ctx, installation)
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{InstallationID: installation, Year: year, Month: month}
	for _, post := range posts {
		switch err := g.generatePost(ctx, post, year, month); {
		case err == nil:
			result.Generated = append(result.Generated, post.ID)
		case IsNotFound(err):
			result.Skipped = append(result.Skipped, PostIssue{PostID: post.ID, Reason: err.Error()})
		default:
			result.Failed = append(result.Failed, PostIssue{PostID: post.ID, Reason: err.Error()})
		}
	}
	return result, nil
}

// generatePost replicates one post. A post with no prior-month history
// falls back to its role's configured rotation, opened at the top of the
// cycle; ErrNotFound when the role has no rotation either.
func (g *Generator) generatePost(ctx context.Context, post OperationalPost, year int, month time.Month) error {
	prevYear, prevMonth := PreviousMonth(year, month)
	history, err := g.store.LoadPostRange(ctx, post.ID, MonthPeriod(prevYear, prevMonth))
	if err != nil {
		return err
	}
	if len(history) == 0 {
		role, err := g.store.GetRolePattern(ctx, post.RoleID)
		if err != nil {
			return err
		}
		if role == nil {
			return fmt.Errorf("%w: post %s has no %d-%02d history and role %s has no rotation",
				ErrNotFound, post.ID, prevYear, prevMonth, post.RoleID)
		}
		return g.writeMonth(ctx, post, year, month,
			nominalMonth(role.Descriptor(), DaysInMonth(year, month)))
	}

	states := make([]DayState, len(history))
	for i, a := range history {
		states[i] = a.State
	}
	worked := StatesToWorked(states)
	pattern := DetectPattern(worked)
	projected := ProjectContinuity(pattern, worked, DaysInMonth(year, month))

	return g.writeMonth(ctx, post, year, month, projected)
}

// writeMonth applies the merge rule day by day, inside one transaction
// when the store supports them.
func (g *Generator) writeMonth(ctx context.Context, post OperationalPost, year int, month time.Month, projected []bool) error {
	write := func(s Store) error {
		for i, duty := range projected {
			date := NewDate(year, month, i+1)
			if err := g.mergeDay(ctx, s, post, date, duty); err != nil {
				return err
			}
		}
		return nil
	}

	if g.tx != nil {
		return g.tx.WithTx(ctx, write)
	}
	return write(g.store)
}

// nominalMonth opens a rotation at the top of its cycle: day 1 of the
// month is the first worked day.
func nominalMonth(p PatternDescriptor, days int) []bool {
	duty := make([]bool, days)
	for i := range duty {
		duty[i] = i%p.CycleLength < p.WorkDays
	}
	return duty
}

// mergeDay applies the merge rule for a single target day.
func (g *Generator) mergeDay(ctx context.Context, s Store, post OperationalPost, date Date, duty bool) error {
	existing, err := s.GetAssignment(ctx, post.ID, date)
	if err != nil {
		return err
	}
	if existing != nil && !existing.State.Replicable() {
		return nil
	}

	a := DailyAssignment{
		PostID:  post.ID,
		Date:    date,
		GuardID: post.GuardID,
		State:   replicatedState(post, duty),
	}
	if existing != nil {
		a.Note = existing.Note
		a.CoverGuardID = existing.CoverGuardID
		a.CoverValue = existing.CoverValue
	}
	return s.UpsertAssignment(ctx, a)
}

// replicatedState maps a projected duty flag to the stored state. Duty
// days on a vacant pending-coverage post open as no_coverage, not planned.
func replicatedState(post OperationalPost, duty bool) DayState {
	if !duty {
		return StateRest
	}
	if post.Vacant() {
		return StateNoCoverage
	}
	return StatePlanned
}
