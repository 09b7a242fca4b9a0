/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates an installation,
	guards, posts and a month of schedule history that demonstrates
	specific features.

AVAILABLE SCENARIOS:

	steady-rotation:   Four posts on a 4x4 rotation with full history
	office-hours:      A 5x2 reception post next to 4x4 rotations
	pending-coverage:  A vacant post producing no_coverage days

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create installation and guards
 3. Create posts
 4. Write the previous month's history per post
 5. Generate the current month from that history

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "steady-rotation"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - rota/generator.go: Monthly generation the scenarios exercise
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/vigil/shift-engine/rota"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "steady-rotation",
		Name:        "Steady Rotation",
		Description: "Four posts on a 4x4 rotation with a full month of history",
	},
	{
		ID:          "office-hours",
		Name:        "Office Hours",
		Description: "A 5x2 reception post alongside 4x4 rotations",
	},
	{
		ID:          "pending-coverage",
		Name:        "Pending Coverage",
		Description: "A vacant post generating no_coverage days for the PPC flow",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario resets the database and loads the requested scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		h.serverError(w, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "steady-rotation":
		err = h.loadSteadyRotationScenario(ctx)
	case "office-hours":
		err = h.loadOfficeHoursScenario(ctx)
	case "pending-coverage":
		err = h.loadPendingCoverageScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}
	if err != nil {
		h.serverError(w, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSteadyRotationScenario(ctx context.Context) error {
	const installation = "inst-harbor"
	if err := h.seedInstallation(ctx, installation, "Harbor Logistics Center", "85.50"); err != nil {
		return err
	}
	if err := h.Store.SaveRolePattern(ctx, rota.RolePattern{
		RoleID: "role-day-guard", Name: "Day Guard",
		WorkDays: 4, RestDays: 4, StartTime: "07:00", EndTime: "19:00",
	}); err != nil {
		return err
	}

	guards := []rota.Guard{
		{ID: "g-alvarez", Name: "M. Alvarez", Active: true},
		{ID: "g-okafor", Name: "C. Okafor", Active: true},
		{ID: "g-petrov", Name: "D. Petrov", Active: true},
		{ID: "g-lindgren", Name: "S. Lindgren", Active: true},
	}
	for _, g := range guards {
		if err := h.Store.SaveGuard(ctx, g); err != nil {
			return err
		}
	}

	// Staggered 4x4 phases so two posts are always on duty.
	for i, g := range guards {
		post := rota.OperationalPost{
			ID:             rota.PostID(fmt.Sprintf("post-harbor-%d", i+1)),
			InstallationID: installation,
			RoleID:         "role-day-guard",
			GuardID:        g.ID,
			Active:         true,
		}
		if err := h.Store.SavePost(ctx, post); err != nil {
			return err
		}
		if err := h.seedHistory(ctx, post, 4, 8, i*2); err != nil {
			return err
		}
	}

	return h.generateCurrentMonth(ctx, installation)
}

func (h *Handler) loadOfficeHoursScenario(ctx context.Context) error {
	const installation = "inst-atrium"
	if err := h.seedInstallation(ctx, installation, "Atrium Business Park", "92.00"); err != nil {
		return err
	}
	if err := h.Store.SaveRolePattern(ctx, rota.RolePattern{
		RoleID: "role-reception", Name: "Reception",
		WorkDays: 5, RestDays: 2, StartTime: "08:00", EndTime: "17:00",
	}); err != nil {
		return err
	}

	guards := []rota.Guard{
		{ID: "g-mori", Name: "K. Mori", Active: true},
		{ID: "g-haddad", Name: "R. Haddad", Active: true},
	}
	for _, g := range guards {
		if err := h.Store.SaveGuard(ctx, g); err != nil {
			return err
		}
	}

	reception := rota.OperationalPost{
		ID:             "post-atrium-reception",
		InstallationID: installation,
		RoleID:         "role-reception",
		GuardID:        "g-mori",
		Active:         true,
	}
	if err := h.Store.SavePost(ctx, reception); err != nil {
		return err
	}
	if err := h.seedHistory(ctx, reception, 5, 7, 0); err != nil {
		return err
	}

	rounds := rota.OperationalPost{
		ID:             "post-atrium-rounds",
		InstallationID: installation,
		RoleID:         "role-day-guard",
		GuardID:        "g-haddad",
		Active:         true,
	}
	if err := h.Store.SavePost(ctx, rounds); err != nil {
		return err
	}
	if err := h.seedHistory(ctx, rounds, 4, 8, 0); err != nil {
		return err
	}

	return h.generateCurrentMonth(ctx, installation)
}

func (h *Handler) loadPendingCoverageScenario(ctx context.Context) error {
	const installation = "inst-depot"
	if err := h.seedInstallation(ctx, installation, "Northern Depot", "78.25"); err != nil {
		return err
	}

	guards := []rota.Guard{
		{ID: "g-ferreira", Name: "L. Ferreira", Active: true},
		{ID: "g-novak", Name: "T. Novak", Active: true},
	}
	for _, g := range guards {
		if err := h.Store.SaveGuard(ctx, g); err != nil {
			return err
		}
	}

	staffed := rota.OperationalPost{
		ID:             "post-depot-gate",
		InstallationID: installation,
		RoleID:         "role-day-guard",
		GuardID:        "g-ferreira",
		Active:         true,
	}
	if err := h.Store.SavePost(ctx, staffed); err != nil {
		return err
	}
	if err := h.seedHistory(ctx, staffed, 4, 8, 0); err != nil {
		return err
	}

	// Vacant post awaiting coverage. Its duty days generate as no_coverage
	// and surface as virtual rows in the extra-shift ledger.
	vacant := rota.OperationalPost{
		ID:              "post-depot-yard",
		InstallationID:  installation,
		RoleID:          "role-day-guard",
		PendingCoverage: true,
		Active:          true,
	}
	if err := h.Store.SavePost(ctx, vacant); err != nil {
		return err
	}
	if err := h.seedHistory(ctx, vacant, 4, 8, 4); err != nil {
		return err
	}

	return h.generateCurrentMonth(ctx, installation)
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func (h *Handler) seedInstallation(ctx context.Context, id rota.InstallationID, name, rate string) error {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return err
	}
	return h.Store.SaveInstallation(ctx, rota.Installation{ID: id, Name: name, ExtraShiftRate: r})
}

// seedHistory writes the previous month's schedule for a post: duty on day
// d when ((d-1+offset) % cycle) < workDays. Past duty days are recorded as
// worked, not planned.
func (h *Handler) seedHistory(ctx context.Context, post rota.OperationalPost, workDays, cycle, offset int) error {
	today := rota.Today()
	year, month := rota.PreviousMonth(today.Year, today.Month)

	for d := 1; d <= rota.DaysInMonth(year, month); d++ {
		state := rota.StateRest
		if (d-1+offset)%cycle < workDays {
			state = rota.StateWorked
			if post.Vacant() {
				state = rota.StateNoCoverage
			}
		}
		a := rota.DailyAssignment{
			PostID:  post.ID,
			Date:    rota.NewDate(year, month, d),
			GuardID: post.GuardID,
			State:   state,
		}
		if err := h.Store.UpsertAssignment(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) generateCurrentMonth(ctx context.Context, installation rota.InstallationID) error {
	today := rota.Today()
	_, err := h.Generator.GenerateMonth(ctx, installation, today.Year, today.Month)
	return err
}
