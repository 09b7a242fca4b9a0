/*
handlers.go - HTTP API handlers for the shift engine

PURPOSE:
  Exposes the scheduling engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Directory:
    POST   /api/guards                     Create/update guard
    GET    /api/guards/{id}                Get guard
    POST   /api/installations              Create/update installation
    GET    /api/installations/{id}         Get installation
    POST   /api/posts                      Create/update post
    GET    /api/posts?installation_id=     List active posts
    GET    /api/posts/{id}                 Get post
    POST   /api/posts/{id}/assign          Assign guard to pending post

  Schedule:
    POST   /api/schedules/generate         Generate a month
    GET    /api/posts/{id}/schedule        Month view (?year=&month=)
    POST   /api/posts/{id}/attendance      Confirm presence/absence
    POST   /api/posts/{id}/leaves          Apply leave range

  Coverage:
    POST   /api/terminations               Process guard termination

  Extra shifts:
    POST   /api/extra-shifts               Record covering shift
    GET    /api/extra-shifts               Query ledger (+virtual rows)
    DELETE /api/extra-shifts/{id}          Delete pending shift
    POST   /api/extra-shifts/batches       Attach shifts to a batch
    POST   /api/extra-shifts/batches/{id}/pay  Mark batch paid

  Scenarios:
    GET    /api/scenarios                  List demo scenarios
    POST   /api/scenarios/load             Load a demo scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (generator, roster, coverage manager, ledger)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (double booking, wrong state)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vigil/shift-engine/coverage"
	"github.com/vigil/shift-engine/extrashift"
	"github.com/vigil/shift-engine/rota"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the HTTP layer needs from persistence.
type Store interface {
	rota.Store
	extrashift.Store
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     Store
	Generator *rota.Generator
	Roster    *rota.Roster
	Coverage  *coverage.Manager
	Ledger    *extrashift.Ledger
	Logger    *zap.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:     store,
		Generator: rota.NewGenerator(store),
		Roster:    rota.NewRoster(store),
		Coverage:  coverage.NewManager(store),
		Ledger:    extrashift.NewLedger(store, store),
		Logger:    logger,
	}
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

// CreateGuard creates or updates a guard.
// POST /api/guards
func (h *Handler) CreateGuard(w http.ResponseWriter, r *http.Request) {
	var req CreateGuardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	g := rota.Guard{ID: rota.GuardID(req.ID), Name: req.Name, Active: true}
	if err := h.Store.SaveGuard(r.Context(), g); err != nil {
		h.serverError(w, "Failed to save guard", err)
		return
	}

	writeJSON(w, http.StatusCreated, GuardDTO{ID: string(g.ID), Name: g.Name, Active: g.Active})
}

// GetGuard returns a single guard.
// GET /api/guards/{id}
func (h *Handler) GetGuard(w http.ResponseWriter, r *http.Request) {
	id := rota.GuardID(chi.URLParam(r, "id"))

	g, err := h.Store.GetGuard(r.Context(), id)
	if err != nil {
		h.serverError(w, "Failed to get guard", err)
		return
	}
	if g == nil {
		writeError(w, http.StatusNotFound, "Guard not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, GuardDTO{ID: string(g.ID), Name: g.Name, Active: g.Active})
}

// CreateInstallation creates or updates an installation.
// POST /api/installations
func (h *Handler) CreateInstallation(w http.ResponseWriter, r *http.Request) {
	var req CreateInstallationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	rate := decimal.Zero
	if req.ExtraShiftRate != "" {
		var err error
		rate, err = decimal.NewFromString(req.ExtraShiftRate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid extra_shift_rate", err)
			return
		}
	}

	in := rota.Installation{
		ID:             rota.InstallationID(req.ID),
		Name:           req.Name,
		ExtraShiftRate: rate,
	}
	if err := h.Store.SaveInstallation(r.Context(), in); err != nil {
		h.serverError(w, "Failed to save installation", err)
		return
	}

	writeJSON(w, http.StatusCreated, InstallationDTO{
		ID:             string(in.ID),
		Name:           in.Name,
		ExtraShiftRate: in.ExtraShiftRate.String(),
	})
}

// GetInstallation returns a single installation.
// GET /api/installations/{id}
func (h *Handler) GetInstallation(w http.ResponseWriter, r *http.Request) {
	id := rota.InstallationID(chi.URLParam(r, "id"))

	in, err := h.Store.GetInstallation(r.Context(), id)
	if err != nil {
		h.serverError(w, "Failed to get installation", err)
		return
	}
	if in == nil {
		writeError(w, http.StatusNotFound, "Installation not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, InstallationDTO{
		ID:             string(in.ID),
		Name:           in.Name,
		ExtraShiftRate: in.ExtraShiftRate.String(),
	})
}

// CreatePost creates or updates an operational post.
// POST /api/posts
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.InstallationID == "" || req.RoleID == "" {
		writeError(w, http.StatusBadRequest, "id, installation_id and role_id are required", nil)
		return
	}

	p := rota.OperationalPost{
		ID:             rota.PostID(req.ID),
		InstallationID: rota.InstallationID(req.InstallationID),
		RoleID:         rota.RoleID(req.RoleID),
		GuardID:        rota.GuardID(req.GuardID),
		Active:         true,
	}
	if err := h.Store.SavePost(r.Context(), p); err != nil {
		h.serverError(w, "Failed to save post", err)
		return
	}

	writeJSON(w, http.StatusCreated, toPostDTO(p))
}

// ListPosts returns the active posts of an installation.
// GET /api/posts?installation_id=X
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	installation := rota.InstallationID(r.URL.Query().Get("installation_id"))
	if installation == "" {
		writeError(w, http.StatusBadRequest, "installation_id is required", nil)
		return
	}

	posts, err := h.Store.ListActivePosts(r.Context(), installation)
	if err != nil {
		h.serverError(w, "Failed to list posts", err)
		return
	}

	writeJSON(w, http.StatusOK, toPostDTOs(posts))
}

// GetPost returns a single post.
// GET /api/posts/{id}
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id := rota.PostID(chi.URLParam(r, "id"))

	p, err := h.Store.GetPost(r.Context(), id)
	if err != nil {
		h.serverError(w, "Failed to get post", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Post not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toPostDTO(*p))
}

// AssignGuard assigns a guard to a pending-coverage post.
// POST /api/posts/{id}/assign
func (h *Handler) AssignGuard(w http.ResponseWriter, r *http.Request) {
	id := rota.PostID(chi.URLParam(r, "id"))

	var req AssignGuardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Coverage.AssignGuard(r.Context(), id, rota.GuardID(req.GuardID)); err != nil {
		h.domainError(w, "Failed to assign guard", err)
		return
	}

	p, err := h.Store.GetPost(r.Context(), id)
	if err != nil || p == nil {
		h.serverError(w, "Failed to reload post", err)
		return
	}
	writeJSON(w, http.StatusOK, toPostDTO(*p))
}

// CreateRolePattern creates or updates a role's nominal rotation.
// POST /api/roles
func (h *Handler) CreateRolePattern(w http.ResponseWriter, r *http.Request) {
	var req CreateRolePatternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RoleID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "role_id and name are required", nil)
		return
	}
	if req.WorkDays < 1 || req.RestDays < 1 {
		writeError(w, http.StatusBadRequest, "work_days and rest_days must be at least 1", nil)
		return
	}
	for _, v := range []string{req.StartTime, req.EndTime} {
		if v == "" {
			continue
		}
		if _, err := time.Parse("15:04", v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid time of day", err)
			return
		}
	}

	p := rota.RolePattern{
		RoleID:    rota.RoleID(req.RoleID),
		Name:      req.Name,
		WorkDays:  req.WorkDays,
		RestDays:  req.RestDays,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := h.Store.SaveRolePattern(r.Context(), p); err != nil {
		h.serverError(w, "Failed to save role pattern", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRolePatternDTO(p))
}

// GetRolePattern returns a role's nominal rotation.
// GET /api/roles/{id}
func (h *Handler) GetRolePattern(w http.ResponseWriter, r *http.Request) {
	id := rota.RoleID(chi.URLParam(r, "id"))

	p, err := h.Store.GetRolePattern(r.Context(), id)
	if err != nil {
		h.serverError(w, "Failed to load role pattern", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Role pattern not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toRolePatternDTO(*p))
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// GenerateSchedule replicates the previous month's pattern into the
// requested month for every active post of an installation.
// POST /api/schedules/generate
func (h *Handler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	var req GenerateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.InstallationID == "" {
		writeError(w, http.StatusBadRequest, "installation_id is required", nil)
		return
	}

	result, err := h.Generator.GenerateMonth(r.Context(),
		rota.InstallationID(req.InstallationID), req.Year, time.Month(req.Month))
	if err != nil {
		h.domainError(w, "Failed to generate schedule", err)
		return
	}

	h.Logger.Info("schedule generated",
		zap.String("installation", req.InstallationID),
		zap.Int("year", req.Year),
		zap.Int("month", req.Month),
		zap.Int("generated", len(result.Generated)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)))

	writeJSON(w, http.StatusOK, toGenerationResultDTO(result))
}

// GetSchedule returns one post's schedule for a month.
// GET /api/posts/{id}/schedule?year=2025&month=3
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id := rota.PostID(chi.URLParam(r, "id"))

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	period := rota.MonthPeriod(year, time.Month(month))
	days, err := h.Store.LoadPostRange(r.Context(), id, period)
	if err != nil {
		h.serverError(w, "Failed to load schedule", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"post_id": string(id),
		"period":  period.String(),
		"days":    toAssignmentDTOs(days),
	})
}

// ConfirmAttendance resolves a planned day into worked or absence.
// POST /api/posts/{id}/attendance
func (h *Handler) ConfirmAttendance(w http.ResponseWriter, r *http.Request) {
	id := rota.PostID(chi.URLParam(r, "id"))

	var req AttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := rota.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	a, err := h.Roster.ConfirmAttendance(r.Context(), id, date, req.Present)
	if err != nil {
		h.domainError(w, "Failed to confirm attendance", err)
		return
	}

	writeJSON(w, http.StatusOK, toAssignmentDTO(*a))
}

// ApplyLeave overwrites a date range with a leave state.
// POST /api/posts/{id}/leaves
func (h *Handler) ApplyLeave(w http.ResponseWriter, r *http.Request) {
	id := rota.PostID(chi.URLParam(r, "id"))

	var req LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, err := rota.ParseDate(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, err := rota.ParseDate(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}

	err = h.Roster.ApplyLeave(r.Context(), id, from, to, rota.DayState(req.State), req.Note)
	if err != nil {
		h.domainError(w, "Failed to apply leave", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"post_id": string(id),
		"from":    from.String(),
		"to":      to.String(),
		"state":   req.State,
	})
}

// =============================================================================
// COVERAGE HANDLERS
// =============================================================================

// ProcessTermination removes a guard's future schedule and flags coverage.
// POST /api/terminations
func (h *Handler) ProcessTermination(w http.ResponseWriter, r *http.Request) {
	var req TerminationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	effective, err := rota.ParseDate(req.Effective)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective date", err)
		return
	}

	result, err := h.Coverage.ProcessTermination(r.Context(), rota.GuardID(req.GuardID), effective)
	if err != nil {
		h.domainError(w, "Failed to process termination", err)
		return
	}

	h.Logger.Info("termination processed",
		zap.String("guard", req.GuardID),
		zap.String("effective", effective.String()),
		zap.Int("posts_affected", len(result.DeletedFrom)),
		zap.Int("flagged", len(result.Flagged)))

	writeJSON(w, http.StatusOK, toTerminationResultDTO(result))
}

// =============================================================================
// EXTRA SHIFT HANDLERS
// =============================================================================

// CreateExtraShift records a covering shift against a schedule day.
// POST /api/extra-shifts
func (h *Handler) CreateExtraShift(w http.ResponseWriter, r *http.Request) {
	var req CreateExtraShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	sourceDate, err := rota.ParseDate(req.SourceDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid source_date", err)
		return
	}

	result, err := h.Ledger.Create(r.Context(), extrashift.CreateInput{
		GuardID:    rota.GuardID(req.GuardID),
		PostID:     rota.PostID(req.PostID),
		SourceDate: sourceDate,
		Kind:       extrashift.Kind(req.Kind),
		Note:       req.Note,
	})
	if err != nil {
		h.domainError(w, "Failed to create extra shift", err)
		return
	}

	if !result.Mirrored {
		h.Logger.Warn("extra shift recorded without schedule mirror",
			zap.String("shift", result.Shift.ID),
			zap.String("guard", string(result.Shift.GuardID)),
			zap.String("date", result.Shift.Date.String()))
	}

	writeJSON(w, http.StatusCreated, CreateExtraShiftResponse{
		Shift:            toExtraShiftDTO(result.Shift),
		GuardName:        result.GuardName,
		InstallationName: result.InstallationName,
		Mirrored:         result.Mirrored,
	})
}

// QueryExtraShifts returns ledger rows plus virtual rows synthesized from
// schedule coverage metadata.
// GET /api/extra-shifts?guard_id=&installation_id=&kind=&status=&from=&to=
func (h *Handler) QueryExtraShifts(w http.ResponseWriter, r *http.Request) {
	f, err := parseShiftFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	shifts, err := h.Ledger.Query(r.Context(), f)
	if err != nil {
		h.serverError(w, "Failed to query extra shifts", err)
		return
	}

	writeJSON(w, http.StatusOK, toExtraShiftDTOs(shifts))
}

// DeleteExtraShift removes a pending shift.
// DELETE /api/extra-shifts/{id}
func (h *Handler) DeleteExtraShift(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Ledger.Delete(r.Context(), id); err != nil {
		h.domainError(w, "Failed to delete extra shift", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// AttachToBatch moves pending shifts into a payment batch.
// POST /api/extra-shifts/batches
func (h *Handler) AttachToBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Ledger.AttachToBatch(r.Context(), req.ShiftIDs, req.BatchID); err != nil {
		h.domainError(w, "Failed to attach shifts to batch", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"batch_id": req.BatchID,
		"attached": len(req.ShiftIDs),
	})
}

// MarkBatchPaid settles every batched shift of a batch.
// POST /api/extra-shifts/batches/{id}/pay
func (h *Handler) MarkBatchPaid(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	n, err := h.Ledger.MarkBatchPaid(r.Context(), batchID)
	if err != nil {
		h.domainError(w, "Failed to mark batch paid", err)
		return
	}

	h.Logger.Info("batch paid", zap.String("batch", batchID), zap.Int("shifts", n))
	writeJSON(w, http.StatusOK, map[string]any{"batch_id": batchID, "paid": n})
}

func parseShiftFilter(r *http.Request) (extrashift.Filter, error) {
	var f extrashift.Filter
	q := r.URL.Query()

	if v := q.Get("guard_id"); v != "" {
		id := rota.GuardID(v)
		f.GuardID = &id
	}
	if v := q.Get("installation_id"); v != "" {
		id := rota.InstallationID(v)
		f.InstallationID = &id
	}
	if v := q.Get("kind"); v != "" {
		k := extrashift.Kind(v)
		f.Kind = &k
	}
	if v := q.Get("status"); v != "" {
		s := extrashift.PaymentStatus(v)
		f.Status = &s
	}
	if v := q.Get("from"); v != "" {
		d, err := rota.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.From = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := rota.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.To = &d
	}
	return f, nil
}

// =============================================================================
// ADMIN
// =============================================================================

// ResetDatabase clears all data (dev only).
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.serverError(w, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

// domainError maps engine errors onto HTTP statuses.
func (h *Handler) domainError(w http.ResponseWriter, message string, err error) {
	switch {
	case rota.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, message, err)
	case rota.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case rota.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.serverError(w, message, err)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, message string, err error) {
	h.Logger.Error(message, zap.Error(err))
	writeError(w, http.StatusInternalServerError, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
