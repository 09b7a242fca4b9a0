/*
Package sqlite provides a SQLite-backed implementation of the storage
contracts.

PURPOSE:
  Implements rota.Store, rota.TxStore and extrashift.Store over one
  database. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  guards, installations:  Directory entities
  posts:                  Operational posts (guard ref + pending flag)
  daily_assignments:      One row per (post, date)
  extra_shifts:           The ad-hoc shift ledger

INVARIANT ENFORCEMENT:
  idx_unique_guard_day on extra_shifts(guard_id, date) carries the
  one-shift-per-guard-per-day invariant at the store level; the
  in-application pre-check alone would be subject to a race. InsertShift
  additionally cross-checks daily_assignments inside the same database
  transaction. SQLite's single-writer model makes the pair serializable;
  a store without that property would need an advisory lock per
  (guard, date).

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  st, err := sqlite.New("./data/rota.db")  // ":memory:" for tests
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - rota/store.go, extrashift/store.go: Contract definitions
  - rota/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/vigil/shift-engine/extrashift"
	"github.com/vigil/shift-engine/rota"
)

// Store implements all storage contracts using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS guards (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS installations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		extra_shift_rate TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		installation_id TEXT NOT NULL,
		role_id TEXT NOT NULL,
		guard_id TEXT NOT NULL DEFAULT '',
		pending_coverage BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_posts_installation
		ON posts(installation_id, role_id);

	-- Nominal rotation per service role. Times are 'HH:MM'.
	CREATE TABLE IF NOT EXISTS role_patterns (
		role_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		work_days INTEGER NOT NULL,
		rest_days INTEGER NOT NULL,
		start_time TEXT NOT NULL DEFAULT '',
		end_time TEXT NOT NULL DEFAULT ''
	);

	-- One row per (post, date). Dates are 'YYYY-MM-DD'.
	CREATE TABLE IF NOT EXISTS daily_assignments (
		post_id TEXT NOT NULL,
		date TEXT NOT NULL,
		guard_id TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		cover_guard_id TEXT NOT NULL DEFAULT '',
		cover_value TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (post_id, date)
	);

	-- Double-booking cross-check and termination sweeps (hot paths)
	CREATE INDEX IF NOT EXISTS idx_assignments_guard_date
		ON daily_assignments(guard_id, date);
	CREATE INDEX IF NOT EXISTS idx_assignments_cover
		ON daily_assignments(cover_guard_id) WHERE cover_guard_id <> '';

	CREATE TABLE IF NOT EXISTS extra_shifts (
		id TEXT PRIMARY KEY,
		guard_id TEXT NOT NULL,
		installation_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		source_post_id TEXT NOT NULL,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		value TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		batch_id TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one extra shift per guard per calendar day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_guard_day
		ON extra_shifts(guard_id, date);

	CREATE INDEX IF NOT EXISTS idx_extra_shifts_batch
		ON extra_shifts(batch_id) WHERE batch_id <> '';
	CREATE INDEX IF NOT EXISTS idx_extra_shifts_date
		ON extra_shifts(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx abstracts *sql.DB and *sql.Tx so the same statements run inside and
// outside transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ASSIGNMENT STORE (rota.AssignmentStore)
// =============================================================================

func (s *Store) UpsertAssignment(ctx context.Context, a rota.DailyAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertAssignment(ctx, s.db, a)
}

func upsertAssignment(ctx context.Context, q dbtx, a rota.DailyAssignment) error {
	query := `
		INSERT INTO daily_assignments
		(post_id, date, guard_id, state, note, cover_guard_id, cover_value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(post_id, date) DO UPDATE SET
			guard_id = excluded.guard_id,
			state = excluded.state,
			note = excluded.note,
			cover_guard_id = excluded.cover_guard_id,
			cover_value = excluded.cover_value
	`
	_, err := q.ExecContext(ctx, query,
		a.PostID, a.Date.String(), a.GuardID, a.State, a.Note,
		a.CoverGuardID, a.CoverValue.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert assignment: %w", err)
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, post rota.PostID, date rota.Date) (*rota.DailyAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAssignment(ctx, s.db, post, date)
}

func getAssignment(ctx context.Context, q dbtx, post rota.PostID, date rota.Date) (*rota.DailyAssignment, error) {
	row := q.QueryRowContext(ctx, `
		SELECT post_id, date, guard_id, state, note, cover_guard_id, cover_value
		FROM daily_assignments WHERE post_id = ? AND date = ?`,
		post, date.String(),
	)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) LoadPostRange(ctx context.Context, post rota.PostID, period rota.Period) ([]rota.DailyAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAssignments(ctx, s.db, sqlPostRange,
		post, period.Start.String(), period.End.String())
}

func (s *Store) LoadGuardDate(ctx context.Context, guard rota.GuardID, date rota.Date) ([]rota.DailyAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAssignments(ctx, s.db, sqlGuardDate, guard, date.String())
}

func (s *Store) DeleteGuardAssignmentsFrom(ctx context.Context, guard rota.GuardID, from rota.Date) ([]rota.PostID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteGuardAssignmentsFrom(ctx, s.db, guard, from)
}

func deleteGuardAssignmentsFrom(ctx context.Context, q dbtx, guard rota.GuardID, from rota.Date) ([]rota.PostID, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT post_id FROM daily_assignments
		WHERE guard_id = ? AND date >= ?
		ORDER BY post_id ASC`,
		guard, from.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []rota.PostID
	for rows.Next() {
		var id rota.PostID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		posts = append(posts, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	_, err = q.ExecContext(ctx,
		`DELETE FROM daily_assignments WHERE guard_id = ? AND date >= ?`,
		guard, from.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete assignments: %w", err)
	}
	return posts, nil
}

func (s *Store) LoadCoveredAssignments(ctx context.Context, from, to rota.Date) ([]rota.DailyAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAssignments(ctx, s.db, sqlCoveredRange, from.String(), to.String())
}

const (
	sqlAssignmentCols = `post_id, date, guard_id, state, note, cover_guard_id, cover_value`

	sqlPostRange = `
		SELECT ` + sqlAssignmentCols + `
		FROM daily_assignments
		WHERE post_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`

	sqlGuardDate = `
		SELECT ` + sqlAssignmentCols + `
		FROM daily_assignments
		WHERE guard_id = ? AND date = ?
		ORDER BY post_id ASC`

	sqlCoveredRange = `
		SELECT ` + sqlAssignmentCols + `
		FROM daily_assignments
		WHERE cover_guard_id <> '' AND date >= ? AND date <= ?
		ORDER BY date ASC, post_id ASC`
)

func queryAssignments(ctx context.Context, q dbtx, query string, args ...any) ([]rota.DailyAssignment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []rota.DailyAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(sc rowScanner) (rota.DailyAssignment, error) {
	var (
		a          rota.DailyAssignment
		dateStr    string
		coverValue string
	)
	err := sc.Scan(&a.PostID, &dateStr, &a.GuardID, &a.State, &a.Note,
		&a.CoverGuardID, &coverValue)
	if err != nil {
		return a, err
	}
	a.Date, err = rota.ParseDate(dateStr)
	if err != nil {
		return a, err
	}
	a.CoverValue = parseDecimal(coverValue)
	return a, nil
}

// =============================================================================
// POST DIRECTORY (rota.PostDirectory)
// =============================================================================

func (s *Store) SavePost(ctx context.Context, p rota.OperationalPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePost(ctx, s.db, p)
}

func savePost(ctx context.Context, q dbtx, p rota.OperationalPost) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO posts (id, installation_id, role_id, guard_id, pending_coverage, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			installation_id = excluded.installation_id,
			role_id = excluded.role_id,
			guard_id = excluded.guard_id,
			pending_coverage = excluded.pending_coverage,
			active = excluded.active`,
		p.ID, p.InstallationID, p.RoleID, p.GuardID, p.PendingCoverage, p.Active)
	if err != nil {
		return fmt.Errorf("failed to save post: %w", err)
	}
	return nil
}

func (s *Store) GetPost(ctx context.Context, id rota.PostID) (*rota.OperationalPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPost(ctx, s.db, id)
}

func getPost(ctx context.Context, q dbtx, id rota.PostID) (*rota.OperationalPost, error) {
	var p rota.OperationalPost
	err := q.QueryRowContext(ctx, `
		SELECT id, installation_id, role_id, guard_id, pending_coverage, active
		FROM posts WHERE id = ?`, id,
	).Scan(&p.ID, &p.InstallationID, &p.RoleID, &p.GuardID, &p.PendingCoverage, &p.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListActivePosts(ctx context.Context, installation rota.InstallationID) ([]rota.OperationalPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryPosts(ctx, s.db, sqlActivePosts, installation)
}

func (s *Store) ListUnassignedPosts(ctx context.Context, installation rota.InstallationID, role rota.RoleID) ([]rota.OperationalPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryPosts(ctx, s.db, sqlUnassignedPosts, installation, role)
}

func (s *Store) UpdatePostGuard(ctx context.Context, id rota.PostID, guard rota.GuardID, pendingCoverage bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePostGuard(ctx, s.db, id, guard, pendingCoverage)
}

func updatePostGuard(ctx context.Context, q dbtx, id rota.PostID, guard rota.GuardID, pendingCoverage bool) error {
	res, err := q.ExecContext(ctx,
		`UPDATE posts SET guard_id = ?, pending_coverage = ? WHERE id = ?`,
		guard, pendingCoverage, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update post guard: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: post %s", rota.ErrNotFound, id)
	}
	return nil
}

const (
	sqlPostCols = `id, installation_id, role_id, guard_id, pending_coverage, active`

	sqlActivePosts = `
		SELECT ` + sqlPostCols + `
		FROM posts WHERE installation_id = ? AND active = TRUE
		ORDER BY id ASC`

	sqlUnassignedPosts = `
		SELECT ` + sqlPostCols + `
		FROM posts
		WHERE installation_id = ? AND role_id = ? AND guard_id = '' AND active = TRUE
		ORDER BY id ASC`
)

func queryPosts(ctx context.Context, q dbtx, query string, args ...any) ([]rota.OperationalPost, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var out []rota.OperationalPost
	for rows.Next() {
		var p rota.OperationalPost
		if err := rows.Scan(&p.ID, &p.InstallationID, &p.RoleID, &p.GuardID,
			&p.PendingCoverage, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// DIRECTORY (rota.Directory)
// =============================================================================

func (s *Store) SaveGuard(ctx context.Context, g rota.Guard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveGuard(ctx, s.db, g)
}

func saveGuard(ctx context.Context, q dbtx, g rota.Guard) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO guards (id, name, active) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, active = excluded.active`,
		g.ID, g.Name, g.Active)
	if err != nil {
		return fmt.Errorf("failed to save guard: %w", err)
	}
	return nil
}

func (s *Store) GetGuard(ctx context.Context, id rota.GuardID) (*rota.Guard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getGuard(ctx, s.db, id)
}

func getGuard(ctx context.Context, q dbtx, id rota.GuardID) (*rota.Guard, error) {
	var g rota.Guard
	err := q.QueryRowContext(ctx,
		`SELECT id, name, active FROM guards WHERE id = ?`, id,
	).Scan(&g.ID, &g.Name, &g.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) SaveInstallation(ctx context.Context, in rota.Installation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveInstallation(ctx, s.db, in)
}

func saveInstallation(ctx context.Context, q dbtx, in rota.Installation) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO installations (id, name, extra_shift_rate) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			extra_shift_rate = excluded.extra_shift_rate`,
		in.ID, in.Name, in.ExtraShiftRate.String())
	if err != nil {
		return fmt.Errorf("failed to save installation: %w", err)
	}
	return nil
}

func (s *Store) GetInstallation(ctx context.Context, id rota.InstallationID) (*rota.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getInstallation(ctx, s.db, id)
}

func getInstallation(ctx context.Context, q dbtx, id rota.InstallationID) (*rota.Installation, error) {
	var (
		in   rota.Installation
		rate string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, name, extra_shift_rate FROM installations WHERE id = ?`, id,
	).Scan(&in.ID, &in.Name, &rate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	in.ExtraShiftRate = parseDecimal(rate)
	return &in, nil
}

func (s *Store) ListInstallations(ctx context.Context) ([]rota.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listInstallations(ctx, s.db)
}

func listInstallations(ctx context.Context, q dbtx) ([]rota.Installation, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, extra_shift_rate FROM installations ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}
	defer rows.Close()

	var out []rota.Installation
	for rows.Next() {
		var (
			in   rota.Installation
			rate string
		)
		if err := rows.Scan(&in.ID, &in.Name, &rate); err != nil {
			return nil, err
		}
		in.ExtraShiftRate = parseDecimal(rate)
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *Store) SaveRolePattern(ctx context.Context, p rota.RolePattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRolePattern(ctx, s.db, p)
}

func saveRolePattern(ctx context.Context, q dbtx, p rota.RolePattern) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO role_patterns (role_id, name, work_days, rest_days, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(role_id) DO UPDATE SET name = excluded.name,
			work_days = excluded.work_days, rest_days = excluded.rest_days,
			start_time = excluded.start_time, end_time = excluded.end_time`,
		p.RoleID, p.Name, p.WorkDays, p.RestDays, p.StartTime, p.EndTime)
	if err != nil {
		return fmt.Errorf("failed to save role pattern: %w", err)
	}
	return nil
}

func (s *Store) GetRolePattern(ctx context.Context, id rota.RoleID) (*rota.RolePattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRolePattern(ctx, s.db, id)
}

func getRolePattern(ctx context.Context, q dbtx, id rota.RoleID) (*rota.RolePattern, error) {
	var p rota.RolePattern
	err := q.QueryRowContext(ctx, `
		SELECT role_id, name, work_days, rest_days, start_time, end_time
		FROM role_patterns WHERE role_id = ?`, id,
	).Scan(&p.RoleID, &p.Name, &p.WorkDays, &p.RestDays, &p.StartTime, &p.EndTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// TRANSACTIONAL STORE (rota.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction. Reads performed through
// the inner store see the transaction's own writes.
func (s *Store) WithTx(ctx context.Context, fn func(rota.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every statement through the open transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) UpsertAssignment(ctx context.Context, a rota.DailyAssignment) error {
	return upsertAssignment(ctx, ts.tx, a)
}

func (ts *txStore) GetAssignment(ctx context.Context, post rota.PostID, date rota.Date) (*rota.DailyAssignment, error) {
	return getAssignment(ctx, ts.tx, post, date)
}

func (ts *txStore) LoadPostRange(ctx context.Context, post rota.PostID, period rota.Period) ([]rota.DailyAssignment, error) {
	return queryAssignments(ctx, ts.tx, sqlPostRange,
		post, period.Start.String(), period.End.String())
}

func (ts *txStore) LoadGuardDate(ctx context.Context, guard rota.GuardID, date rota.Date) ([]rota.DailyAssignment, error) {
	return queryAssignments(ctx, ts.tx, sqlGuardDate, guard, date.String())
}

func (ts *txStore) DeleteGuardAssignmentsFrom(ctx context.Context, guard rota.GuardID, from rota.Date) ([]rota.PostID, error) {
	return deleteGuardAssignmentsFrom(ctx, ts.tx, guard, from)
}

func (ts *txStore) LoadCoveredAssignments(ctx context.Context, from, to rota.Date) ([]rota.DailyAssignment, error) {
	return queryAssignments(ctx, ts.tx, sqlCoveredRange, from.String(), to.String())
}

func (ts *txStore) SavePost(ctx context.Context, p rota.OperationalPost) error {
	return savePost(ctx, ts.tx, p)
}

func (ts *txStore) GetPost(ctx context.Context, id rota.PostID) (*rota.OperationalPost, error) {
	return getPost(ctx, ts.tx, id)
}

func (ts *txStore) ListActivePosts(ctx context.Context, installation rota.InstallationID) ([]rota.OperationalPost, error) {
	return queryPosts(ctx, ts.tx, sqlActivePosts, installation)
}

func (ts *txStore) ListUnassignedPosts(ctx context.Context, installation rota.InstallationID, role rota.RoleID) ([]rota.OperationalPost, error) {
	return queryPosts(ctx, ts.tx, sqlUnassignedPosts, installation, role)
}

func (ts *txStore) UpdatePostGuard(ctx context.Context, id rota.PostID, guard rota.GuardID, pendingCoverage bool) error {
	return updatePostGuard(ctx, ts.tx, id, guard, pendingCoverage)
}

func (ts *txStore) SaveGuard(ctx context.Context, g rota.Guard) error {
	return saveGuard(ctx, ts.tx, g)
}

func (ts *txStore) GetGuard(ctx context.Context, id rota.GuardID) (*rota.Guard, error) {
	return getGuard(ctx, ts.tx, id)
}

func (ts *txStore) SaveInstallation(ctx context.Context, in rota.Installation) error {
	return saveInstallation(ctx, ts.tx, in)
}

func (ts *txStore) GetInstallation(ctx context.Context, id rota.InstallationID) (*rota.Installation, error) {
	return getInstallation(ctx, ts.tx, id)
}

func (ts *txStore) ListInstallations(ctx context.Context) ([]rota.Installation, error) {
	return listInstallations(ctx, ts.tx)
}

func (ts *txStore) SaveRolePattern(ctx context.Context, p rota.RolePattern) error {
	return saveRolePattern(ctx, ts.tx, p)
}

func (ts *txStore) GetRolePattern(ctx context.Context, id rota.RoleID) (*rota.RolePattern, error) {
	return getRolePattern(ctx, ts.tx, id)
}

// InsertShift and HasShiftOn let the extra-shift ledger run its
// cross-check, insert and schedule mirror inside one transaction.
func (ts *txStore) InsertShift(ctx context.Context, shift extrashift.ExtraShift) error {
	return insertShift(ctx, ts.tx, shift)
}

func (ts *txStore) HasShiftOn(ctx context.Context, guard rota.GuardID, date rota.Date) (bool, string, error) {
	return hasShiftOn(ctx, ts.tx, guard, date)
}

// =============================================================================
// EXTRA SHIFT STORE (extrashift.Store)
// =============================================================================

// InsertShift checks both tables and inserts inside one database
// transaction. The unique index on (guard_id, date) backstops the
// pre-check against concurrent writers.
func (s *Store) InsertShift(ctx context.Context, shift extrashift.ExtraShift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := insertShift(ctx, sqlTx, shift); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// insertShift runs the cross-table check and the insert on q, which is
// either an open transaction or the database itself.
func insertShift(ctx context.Context, q dbtx, shift extrashift.ExtraShift) error {
	var blocked int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM daily_assignments
		WHERE guard_id = ? AND date = ? AND state IN (?, ?)`,
		shift.GuardID, shift.Date.String(), rota.StatePlanned, rota.StateWorked,
	).Scan(&blocked)
	if err != nil {
		return err
	}
	if blocked > 0 {
		return &rota.DoubleBookingError{
			GuardID:  shift.GuardID,
			Date:     shift.Date,
			Existing: "assignment",
		}
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO extra_shifts
		(id, guard_id, installation_id, post_id, source_post_id, date, kind,
		 value, status, batch_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		shift.ID, shift.GuardID, shift.InstallationID, shift.PostID,
		shift.SourcePostID, shift.Date.String(), shift.Kind,
		shift.Value.String(), shift.Status, shift.BatchID, shift.Note,
		shift.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &rota.DoubleBookingError{
				GuardID:  shift.GuardID,
				Date:     shift.Date,
				Existing: "extra_shift",
			}
		}
		return fmt.Errorf("failed to insert extra shift: %w", err)
	}
	return nil
}

func (s *Store) GetShift(ctx context.Context, id string) (*extrashift.ExtraShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shifts, err := s.queryShifts(ctx, `
		SELECT `+sqlShiftCols+`
		FROM extra_shifts WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(shifts) == 0 {
		return nil, nil
	}
	return &shifts[0], nil
}

func (s *Store) QueryShifts(ctx context.Context, f extrashift.Filter) ([]extrashift.ExtraShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + sqlShiftCols + `
		FROM extra_shifts WHERE 1=1`
	var args []any

	if f.GuardID != nil {
		query += " AND guard_id = ?"
		args = append(args, *f.GuardID)
	}
	if f.InstallationID != nil {
		query += " AND installation_id = ?"
		args = append(args, *f.InstallationID)
	}
	if f.Kind != nil {
		query += " AND kind = ?"
		args = append(args, *f.Kind)
	}
	if f.Status != nil {
		query += " AND status = ?"
		args = append(args, *f.Status)
	}
	if f.From != nil {
		query += " AND date >= ?"
		args = append(args, f.From.String())
	}
	if f.To != nil {
		query += " AND date <= ?"
		args = append(args, f.To.String())
	}
	query += " ORDER BY date ASC, guard_id ASC"

	return s.queryShifts(ctx, query, args...)
}

func (s *Store) HasShiftOn(ctx context.Context, guard rota.GuardID, date rota.Date) (bool, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hasShiftOn(ctx, s.db, guard, date)
}

func hasShiftOn(ctx context.Context, q dbtx, guard rota.GuardID, date rota.Date) (bool, string, error) {
	var id string
	err := q.QueryRowContext(ctx,
		`SELECT id FROM extra_shifts WHERE guard_id = ? AND date = ? LIMIT 1`,
		guard, date.String(),
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, id, nil
}

// AttachToBatch moves pending shifts to batched all-or-nothing.
func (s *Store) AttachToBatch(ctx context.Context, ids []string, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, id := range ids {
		res, err := sqlTx.ExecContext(ctx, `
			UPDATE extra_shifts SET status = ?, batch_id = ?
			WHERE id = ? AND status = ?`,
			extrashift.PaymentBatched, batchID, id, extrashift.PaymentPending,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Missing row or wrong payment state; resolve which for the error.
			var status extrashift.PaymentStatus
			err := sqlTx.QueryRowContext(ctx,
				`SELECT status FROM extra_shifts WHERE id = ?`, id).Scan(&status)
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: extra shift %s", rota.ErrNotFound, id)
			}
			if err != nil {
				return err
			}
			return &extrashift.PaymentStateError{ShiftID: id, Status: status}
		}
	}
	return sqlTx.Commit()
}

func (s *Store) MarkBatchPaid(ctx context.Context, batchID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE extra_shifts SET status = ?
		WHERE batch_id = ? AND status = ?`,
		extrashift.PaymentPaid, batchID, extrashift.PaymentBatched,
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) DeleteShift(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM extra_shifts WHERE id = ? AND status = ?`,
		id, extrashift.PaymentPending,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var status extrashift.PaymentStatus
	err = s.db.QueryRowContext(ctx,
		`SELECT status FROM extra_shifts WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: extra shift %s", rota.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	return &extrashift.PaymentStateError{ShiftID: id, Status: status}
}

const sqlShiftCols = `id, guard_id, installation_id, post_id, source_post_id,
	date, kind, value, status, batch_id, note, created_at`

func (s *Store) queryShifts(ctx context.Context, query string, args ...any) ([]extrashift.ExtraShift, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query extra shifts: %w", err)
	}
	defer rows.Close()

	var out []extrashift.ExtraShift
	for rows.Next() {
		var (
			sh        extrashift.ExtraShift
			dateStr   string
			value     string
			createdAt string
		)
		if err := rows.Scan(&sh.ID, &sh.GuardID, &sh.InstallationID, &sh.PostID,
			&sh.SourcePostID, &dateStr, &sh.Kind, &value, &sh.Status,
			&sh.BatchID, &sh.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan extra shift: %w", err)
		}
		sh.Date, err = rota.ParseDate(dateStr)
		if err != nil {
			return nil, err
		}
		sh.Value = parseDecimal(value)
		sh.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, sh)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"extra_shifts", "daily_assignments", "posts", "role_patterns", "guards", "installations"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
