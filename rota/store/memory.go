// Package store provides in-memory Store implementations for tests/dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/vigil/shift-engine/extrashift"
	"github.com/vigil/shift-engine/rota"
)

// =============================================================================
// MEMORY STORE - Implements rota.Store and extrashift.Store
// =============================================================================

type Memory struct {
	mu            sync.RWMutex
	assignments   map[dayKey]rota.DailyAssignment
	posts         map[rota.PostID]rota.OperationalPost
	guards        map[rota.GuardID]rota.Guard
	installations map[rota.InstallationID]rota.Installation
	rolePatterns  map[rota.RoleID]rota.RolePattern
	shifts        map[string]extrashift.ExtraShift
	shiftByDay    map[guardDayKey]string // invariant mirror of the sqlite unique index
}

type dayKey struct {
	Post rota.PostID
	Date rota.Date
}

type guardDayKey struct {
	Guard rota.GuardID
	Date  rota.Date
}

func NewMemory() *Memory {
	return &Memory{
		assignments:   make(map[dayKey]rota.DailyAssignment),
		posts:         make(map[rota.PostID]rota.OperationalPost),
		guards:        make(map[rota.GuardID]rota.Guard),
		installations: make(map[rota.InstallationID]rota.Installation),
		rolePatterns:  make(map[rota.RoleID]rota.RolePattern),
		shifts:        make(map[string]extrashift.ExtraShift),
		shiftByDay:    make(map[guardDayKey]string),
	}
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.assignments = make(map[dayKey]rota.DailyAssignment)
	m.posts = make(map[rota.PostID]rota.OperationalPost)
	m.guards = make(map[rota.GuardID]rota.Guard)
	m.installations = make(map[rota.InstallationID]rota.Installation)
	m.rolePatterns = make(map[rota.RoleID]rota.RolePattern)
	m.shifts = make(map[string]extrashift.ExtraShift)
	m.shiftByDay = make(map[guardDayKey]string)
	return nil
}

// =============================================================================
// ASSIGNMENT STORE
// =============================================================================

func (m *Memory) UpsertAssignment(_ context.Context, a rota.DailyAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[dayKey{Post: a.PostID, Date: a.Date}] = a
	return nil
}

func (m *Memory) GetAssignment(_ context.Context, post rota.PostID, date rota.Date) (*rota.DailyAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assignments[dayKey{Post: post, Date: date}]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) LoadPostRange(_ context.Context, post rota.PostID, period rota.Period) ([]rota.DailyAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []rota.DailyAssignment
	for k, a := range m.assignments {
		if k.Post == post && period.Contains(k.Date) {
			out = append(out, a)
		}
	}
	sortByDate(out)
	return out, nil
}

func (m *Memory) LoadGuardDate(_ context.Context, guard rota.GuardID, date rota.Date) ([]rota.DailyAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []rota.DailyAssignment
	for _, a := range m.assignments {
		if a.GuardID == guard && a.Date.Equal(date) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) DeleteGuardAssignmentsFrom(_ context.Context, guard rota.GuardID, from rota.Date) ([]rota.PostID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	affected := make(map[rota.PostID]bool)
	for k, a := range m.assignments {
		if a.GuardID == guard && a.Date.AfterOrEqual(from) {
			affected[k.Post] = true
			delete(m.assignments, k)
		}
	}

	posts := make([]rota.PostID, 0, len(affected))
	for id := range affected {
		posts = append(posts, id)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i] < posts[j] })
	return posts, nil
}

func (m *Memory) LoadCoveredAssignments(_ context.Context, from, to rota.Date) ([]rota.DailyAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []rota.DailyAssignment
	for _, a := range m.assignments {
		if a.CoverGuardID != "" && a.Date.AfterOrEqual(from) && a.Date.BeforeOrEqual(to) {
			out = append(out, a)
		}
	}
	sortByDate(out)
	return out, nil
}

// =============================================================================
// POST DIRECTORY
// =============================================================================

func (m *Memory) SavePost(_ context.Context, p rota.OperationalPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[p.ID] = p
	return nil
}

func (m *Memory) GetPost(_ context.Context, id rota.PostID) (*rota.OperationalPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListActivePosts(_ context.Context, installation rota.InstallationID) ([]rota.OperationalPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []rota.OperationalPost
	for _, p := range m.posts {
		if p.Active && p.InstallationID == installation {
			out = append(out, p)
		}
	}
	sortByID(out)
	return out, nil
}

func (m *Memory) ListUnassignedPosts(_ context.Context, installation rota.InstallationID, role rota.RoleID) ([]rota.OperationalPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []rota.OperationalPost
	for _, p := range m.posts {
		if p.Active && p.InstallationID == installation && p.RoleID == role && p.Vacant() {
			out = append(out, p)
		}
	}
	sortByID(out)
	return out, nil
}

func (m *Memory) UpdatePostGuard(_ context.Context, id rota.PostID, guard rota.GuardID, pendingCoverage bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[id]
	if !ok {
		return rota.ErrNotFound
	}
	p.GuardID = guard
	p.PendingCoverage = pendingCoverage
	m.posts[id] = p
	return nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) SaveGuard(_ context.Context, g rota.Guard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guards[g.ID] = g
	return nil
}

func (m *Memory) GetGuard(_ context.Context, id rota.GuardID) (*rota.Guard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.guards[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (m *Memory) SaveInstallation(_ context.Context, in rota.Installation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.installations[in.ID] = in
	return nil
}

func (m *Memory) GetInstallation(_ context.Context, id rota.InstallationID) (*rota.Installation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	in, ok := m.installations[id]
	if !ok {
		return nil, nil
	}
	return &in, nil
}

func (m *Memory) ListInstallations(_ context.Context) ([]rota.Installation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]rota.Installation, 0, len(m.installations))
	for _, in := range m.installations {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveRolePattern(_ context.Context, p rota.RolePattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolePatterns[p.RoleID] = p
	return nil
}

func (m *Memory) GetRolePattern(_ context.Context, id rota.RoleID) (*rota.RolePattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.rolePatterns[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// =============================================================================
// EXTRA SHIFT STORE
// =============================================================================

func (m *Memory) InsertShift(_ context.Context, s extrashift.ExtraShift) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := guardDayKey{Guard: s.GuardID, Date: s.Date}
	if _, exists := m.shiftByDay[k]; exists {
		return &rota.DoubleBookingError{GuardID: s.GuardID, Date: s.Date, Existing: "extra_shift"}
	}
	// Cross-table backstop, serialized by the store mutex.
	for _, a := range m.assignments {
		if a.GuardID == s.GuardID && a.Date.Equal(s.Date) && a.State.IsPresence() {
			return &rota.DoubleBookingError{GuardID: s.GuardID, Date: s.Date, Existing: "assignment", PostID: a.PostID}
		}
	}

	m.shifts[s.ID] = s
	m.shiftByDay[k] = s.ID
	return nil
}

func (m *Memory) GetShift(_ context.Context, id string) (*extrashift.ExtraShift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.shifts[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) QueryShifts(_ context.Context, f extrashift.Filter) ([]extrashift.ExtraShift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []extrashift.ExtraShift
	for _, s := range m.shifts {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) HasShiftOn(_ context.Context, guard rota.GuardID, date rota.Date) (bool, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.shiftByDay[guardDayKey{Guard: guard, Date: date}]
	return ok, id, nil
}

func (m *Memory) AttachToBatch(_ context.Context, ids []string, batchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// All-or-nothing: validate before mutating.
	for _, id := range ids {
		s, ok := m.shifts[id]
		if !ok {
			return rota.ErrNotFound
		}
		if s.Status != extrashift.PaymentPending {
			return &extrashift.PaymentStateError{ShiftID: id, Status: s.Status}
		}
	}
	for _, id := range ids {
		s := m.shifts[id]
		s.Status = extrashift.PaymentBatched
		s.BatchID = batchID
		m.shifts[id] = s
	}
	return nil
}

func (m *Memory) MarkBatchPaid(_ context.Context, batchID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.shifts {
		if s.BatchID == batchID && s.Status == extrashift.PaymentBatched {
			s.Status = extrashift.PaymentPaid
			m.shifts[id] = s
			n++
		}
	}
	return n, nil
}

func (m *Memory) DeleteShift(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shifts[id]
	if !ok {
		return rota.ErrNotFound
	}
	if s.Status != extrashift.PaymentPending {
		return &extrashift.PaymentStateError{ShiftID: id, Status: s.Status}
	}
	delete(m.shifts, id)
	delete(m.shiftByDay, guardDayKey{Guard: s.GuardID, Date: s.Date})
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func sortByDate(a []rota.DailyAssignment) {
	sort.Slice(a, func(i, j int) bool {
		if a[i].Date.Equal(a[j].Date) {
			return a[i].PostID < a[j].PostID
		}
		return a[i].Date.Before(a[j].Date)
	})
}

func sortByID(p []rota.OperationalPost) {
	sort.Slice(p, func(i, j int) bool { return p[i].ID < p[j].ID })
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with rota.TxStore support. Transactions are
// simulated with a snapshot + rollback on error.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against the store, restoring the pre-call snapshot if
// fn returns an error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(rota.Store) error) error {
	snapshot := tm.snapshot()
	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

// snapshot copies every map so a rollback restores the full store state,
// whichever entities the transaction touched.
func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	return memorySnapshot{
		assignments:   copyMap(tm.assignments),
		posts:         copyMap(tm.posts),
		guards:        copyMap(tm.guards),
		installations: copyMap(tm.installations),
		rolePatterns:  copyMap(tm.rolePatterns),
		shifts:        copyMap(tm.shifts),
		shiftByDay:    copyMap(tm.shiftByDay),
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.assignments = s.assignments
	tm.posts = s.posts
	tm.guards = s.guards
	tm.installations = s.installations
	tm.rolePatterns = s.rolePatterns
	tm.shifts = s.shifts
	tm.shiftByDay = s.shiftByDay
}

type memorySnapshot struct {
	assignments   map[dayKey]rota.DailyAssignment
	posts         map[rota.PostID]rota.OperationalPost
	guards        map[rota.GuardID]rota.Guard
	installations map[rota.InstallationID]rota.Installation
	rolePatterns  map[rota.RoleID]rota.RolePattern
	shifts        map[string]extrashift.ExtraShift
	shiftByDay    map[guardDayKey]string
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
