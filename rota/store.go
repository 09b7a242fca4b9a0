/*
store.go - Persistence contracts for the scheduling engine

PURPOSE:
  Defines the interface between the engine and the data store. The engine
  is request-scoped and stateless; all state lives behind these contracts.
  Different implementations can use SQLite, PostgreSQL, or in-memory
  storage.

KEY INTERFACES:
  AssignmentStore: CRUD over one DailyAssignment per (post, date)
  PostDirectory:   Operational posts, including the atomic guard/flag write
  Directory:       Guards and installations (name + rate resolution)
  Store:           All three combined (what the engine components take)
  TxStore:         Store with transactional execution

ATOMICITY:
  UpdatePostGuard writes the guard reference and the pending-coverage flag
  in one store call so a post is never left half-updated. Multi-record
  operations (termination, per-post generation) run inside WithTx when the
  store provides it; components degrade gracefully when it does not, the
  same way ledger wrappers degrade without entity-wide queries.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - rota/store/memory.go:   In-memory for tests/dev
*/
package rota

import "context"

// =============================================================================
// ASSIGNMENT STORE - One record per (post, date)
// =============================================================================

type AssignmentStore interface {
	// UpsertAssignment inserts or replaces the record for (PostID, Date).
	UpsertAssignment(ctx context.Context, a DailyAssignment) error

	// GetAssignment returns the record for (post, date), or nil when absent.
	GetAssignment(ctx context.Context, post PostID, date Date) (*DailyAssignment, error)

	// LoadPostRange returns the post's records within the period, ordered
	// by date ascending.
	LoadPostRange(ctx context.Context, post PostID, period Period) ([]DailyAssignment, error)

	// LoadGuardDate returns every record naming the guard as nominal guard
	// on the given date, across all posts. Required for the cross-table
	// double-booking check.
	LoadGuardDate(ctx context.Context, guard GuardID, date Date) ([]DailyAssignment, error)

	// DeleteGuardAssignmentsFrom removes every record naming the guard as
	// nominal guard with date >= from, across all posts, and returns the
	// distinct posts that lost records.
	DeleteGuardAssignmentsFrom(ctx context.Context, guard GuardID, from Date) ([]PostID, error)

	// LoadCoveredAssignments returns records in [from, to] carrying inline
	// coverage metadata (CoverGuardID set). Used by the extra-shift ledger
	// to synthesize virtual rows.
	LoadCoveredAssignments(ctx context.Context, from, to Date) ([]DailyAssignment, error)
}

// =============================================================================
// POST DIRECTORY
// =============================================================================

type PostDirectory interface {
	// SavePost inserts or updates a post.
	SavePost(ctx context.Context, p OperationalPost) error

	// GetPost returns a post, or nil when absent.
	GetPost(ctx context.Context, id PostID) (*OperationalPost, error)

	// ListActivePosts returns the active posts of an installation.
	ListActivePosts(ctx context.Context, installation InstallationID) ([]OperationalPost, error)

	// ListUnassignedPosts returns active posts of the installation+role with
	// no guard assigned.
	ListUnassignedPosts(ctx context.Context, installation InstallationID, role RoleID) ([]OperationalPost, error)

	// UpdatePostGuard writes the guard reference and pending-coverage flag
	// in a single atomic update. An empty guard clears the reference.
	UpdatePostGuard(ctx context.Context, id PostID, guard GuardID, pendingCoverage bool) error
}

// =============================================================================
// DIRECTORY - Guards and installations
// =============================================================================

type Directory interface {
	SaveGuard(ctx context.Context, g Guard) error
	GetGuard(ctx context.Context, id GuardID) (*Guard, error)

	SaveInstallation(ctx context.Context, in Installation) error
	GetInstallation(ctx context.Context, id InstallationID) (*Installation, error)

	// ListInstallations returns every installation, ordered by ID. Used by
	// the background generation scheduler.
	ListInstallations(ctx context.Context) ([]Installation, error)

	// SaveRolePattern inserts or updates the nominal rotation of a role.
	SaveRolePattern(ctx context.Context, p RolePattern) error

	// GetRolePattern returns a role's nominal rotation, or nil when the
	// role has none configured.
	GetRolePattern(ctx context.Context, id RoleID) (*RolePattern, error)
}

// =============================================================================
// COMBINED CONTRACTS
// =============================================================================

// Store is what the engine components depend on.
type Store interface {
	AssignmentStore
	PostDirectory
	Directory
}

// TxStore wraps Store with transaction support. If fn returns an error the
// transaction is rolled back, otherwise committed.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
