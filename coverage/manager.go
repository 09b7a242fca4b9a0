/*
Package coverage manages pending-coverage posts (PPC).

PURPOSE:
  When a guard leaves, their future schedule must be dismantled and exactly
  one post per affected slot flagged pending-coverage so the vacancy is
  visible to planners. When a guard is later assigned, the flag clears
  atomically with the assignment.

INVARIANT:
  A post is pending-coverage only while its guard reference is empty.
  UpdatePostGuard writes both fields in one store call, so no request
  ordering can observe a flagged post that still has a guard.

TERMINATION SEMANTICS:
  On termination effective T, every DailyAssignment of the guard dated
  >= T+1 is deleted across all posts. For each affected post the manager
  prefers flagging an already-unassigned counterpart (same installation,
  same role) over the post itself; two posts are never merged. Posts that
  cannot be resolved are reported per post and never abort the batch.

SEE ALSO:
  - rota/store.go: PostDirectory and AssignmentStore contracts
  - extrashift: resolves vacancies through the ledger instead of
    reassignment
*/
package coverage

import (
	"context"
	"fmt"

	"github.com/vigil/shift-engine/rota"
)

// =============================================================================
// MANAGER
// =============================================================================

// Manager processes guard terminations and coverage assignments.
type Manager struct {
	store rota.Store
	tx    rota.TxStore // nil when the store has no transaction support
}

// NewManager creates a manager over the given store.
func NewManager(store rota.Store) *Manager {
	m := &Manager{store: store}
	if ts, ok := store.(rota.TxStore); ok {
		m.tx = ts
	}
	return m
}

// TerminationResult reports the outcome of one termination run. Failures
// are per-post and never abort the batch.
type TerminationResult struct {
	GuardID   rota.GuardID
	Effective rota.Date

	// DeletedFrom lists the posts that lost future assignments.
	DeletedFrom []rota.PostID

	// Cleared lists posts whose guard reference was cleared.
	Cleared []rota.PostID

	// Flagged lists the posts left pending-coverage (the affected post or
	// its unassigned counterpart).
	Flagged []rota.PostID

	// Failures lists posts the manager could not resolve, with reasons.
	Failures []rota.PostIssue
}

// ProcessTermination dismantles the guard's schedule from the day after
// the effective date and flags coverage per affected post.
func (m *Manager) ProcessTermination(ctx context.Context, guard rota.GuardID, effective rota.Date) (*TerminationResult, error) {
	if effective.IsZero() {
		return nil, fmt.Errorf("%w: effective date required", rota.ErrInvalidInput)
	}
	g, err := m.store.GetGuard(ctx, guard)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("%w: guard %s", rota.ErrNotFound, guard)
	}

	result := &TerminationResult{GuardID: guard, Effective: effective}
	run := func(s rota.Store) error {
		affected, err := s.DeleteGuardAssignmentsFrom(ctx, guard, effective.AddDays(1))
		if err != nil {
			return err
		}
		result.DeletedFrom = affected

		for _, postID := range affected {
			m.resolvePost(ctx, s, guard, postID, result)
		}
		return nil
	}

	if m.tx != nil {
		err = m.tx.WithTx(ctx, run)
	} else {
		err = run(m.store)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolvePost clears and flags coverage for one affected post. Misses are
// recorded on the result, not returned: termination processing must
// complete for the remaining posts.
func (m *Manager) resolvePost(ctx context.Context, s rota.Store, guard rota.GuardID, postID rota.PostID, result *TerminationResult) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		result.Failures = append(result.Failures, rota.PostIssue{PostID: postID, Reason: err.Error()})
		return
	}
	if post == nil {
		result.Failures = append(result.Failures, rota.PostIssue{PostID: postID, Reason: "post not found"})
		return
	}

	if post.GuardID != guard {
		// The post no longer belongs to the terminated guard (already
		// cleared, or handed over). Nothing to clear: no-op, reported.
		result.Failures = append(result.Failures, rota.PostIssue{
			PostID: postID,
			Reason: fmt.Sprintf("guard reference is %q, nothing to clear", post.GuardID),
		})
		return
	}

	// Prefer flagging an already-unassigned counterpart so an existing
	// vacancy absorbs the loss. The counterpart's guard reference is
	// already empty; two posts are never merged.
	counterpart, err := m.findCounterpart(ctx, s, post)
	if err != nil {
		result.Failures = append(result.Failures, rota.PostIssue{PostID: postID, Reason: err.Error()})
		return
	}

	if counterpart != nil {
		if err := s.UpdatePostGuard(ctx, counterpart.ID, "", true); err != nil {
			result.Failures = append(result.Failures, rota.PostIssue{PostID: counterpart.ID, Reason: err.Error()})
			return
		}
		if err := s.UpdatePostGuard(ctx, post.ID, "", false); err != nil {
			result.Failures = append(result.Failures, rota.PostIssue{PostID: post.ID, Reason: err.Error()})
			return
		}
		result.Flagged = append(result.Flagged, counterpart.ID)
		result.Cleared = append(result.Cleared, post.ID)
		return
	}

	if err := s.UpdatePostGuard(ctx, post.ID, "", true); err != nil {
		result.Failures = append(result.Failures, rota.PostIssue{PostID: post.ID, Reason: err.Error()})
		return
	}
	result.Flagged = append(result.Flagged, post.ID)
	result.Cleared = append(result.Cleared, post.ID)
}

// findCounterpart returns an unassigned, not-yet-pending post with the
// same installation and role, or nil.
func (m *Manager) findCounterpart(ctx context.Context, s rota.Store, post *rota.OperationalPost) (*rota.OperationalPost, error) {
	candidates, err := s.ListUnassignedPosts(ctx, post.InstallationID, post.RoleID)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		c := &candidates[i]
		if c.ID == post.ID || c.PendingCoverage {
			continue
		}
		return c, nil
	}
	return nil, nil
}

// =============================================================================
// COVERAGE ASSIGNMENT
// =============================================================================

// AssignGuard assigns a guard to a pending-coverage post, clearing the
// flag and setting the guard reference in the same update. Assigning to a
// post that is not pending-coverage is rejected with NotPendingError.
func (m *Manager) AssignGuard(ctx context.Context, postID rota.PostID, guard rota.GuardID) error {
	if guard == "" {
		return fmt.Errorf("%w: guard required", rota.ErrInvalidInput)
	}
	g, err := m.store.GetGuard(ctx, guard)
	if err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("%w: guard %s", rota.ErrNotFound, guard)
	}

	post, err := m.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("%w: post %s", rota.ErrNotFound, postID)
	}
	if !post.PendingCoverage {
		return &rota.NotPendingError{PostID: postID}
	}

	return m.store.UpdatePostGuard(ctx, postID, guard, false)
}
