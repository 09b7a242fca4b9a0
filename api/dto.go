/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Directory:
    GuardDTO, InstallationDTO, PostDTO + their Create requests

  Schedule:
    AssignmentDTO, GenerateScheduleRequest, GenerationResultDTO,
    AttendanceRequest, LeaveRequest

  Coverage:
    TerminationRequest, TerminationResultDTO, AssignGuardRequest

  Extra shifts:
    ExtraShiftDTO, CreateExtraShiftRequest, BatchRequest

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/vigil/shift-engine/coverage"
	"github.com/vigil/shift-engine/extrashift"
	"github.com/vigil/shift-engine/rota"
)

// =============================================================================
// DIRECTORY TYPES
// =============================================================================

// GuardDTO represents a guard in API responses.
type GuardDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// CreateGuardRequest is the request to create or update a guard.
type CreateGuardRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InstallationDTO represents an installation in API responses.
type InstallationDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ExtraShiftRate string `json:"extra_shift_rate"`
}

// CreateInstallationRequest is the request to create or update an
// installation. ExtraShiftRate is a decimal string ("85.50").
type CreateInstallationRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ExtraShiftRate string `json:"extra_shift_rate"`
}

// PostDTO represents an operational post.
type PostDTO struct {
	ID              string `json:"id"`
	InstallationID  string `json:"installation_id"`
	RoleID          string `json:"role_id"`
	GuardID         string `json:"guard_id,omitempty"`
	PendingCoverage bool   `json:"pending_coverage"`
	Active          bool   `json:"active"`
}

// CreatePostRequest is the request to create or update a post.
type CreatePostRequest struct {
	ID             string `json:"id"`
	InstallationID string `json:"installation_id"`
	RoleID         string `json:"role_id"`
	GuardID        string `json:"guard_id"`
}

// AssignGuardRequest assigns a guard to a pending-coverage post.
type AssignGuardRequest struct {
	GuardID string `json:"guard_id"`
}

// RolePatternDTO represents a role's nominal rotation.
type RolePatternDTO struct {
	RoleID    string `json:"role_id"`
	Name      string `json:"name"`
	WorkDays  int    `json:"work_days"`
	RestDays  int    `json:"rest_days"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// CreateRolePatternRequest is the request to create or update a role's
// nominal rotation. Times are "15:04" strings and optional.
type CreateRolePatternRequest struct {
	RoleID    string `json:"role_id"`
	Name      string `json:"name"`
	WorkDays  int    `json:"work_days"`
	RestDays  int    `json:"rest_days"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// =============================================================================
// SCHEDULE TYPES
// =============================================================================

// AssignmentDTO represents one schedule day of a post.
type AssignmentDTO struct {
	PostID       string `json:"post_id"`
	Date         string `json:"date"`
	GuardID      string `json:"guard_id,omitempty"`
	State        string `json:"state"`
	Note         string `json:"note,omitempty"`
	CoverGuardID string `json:"cover_guard_id,omitempty"`
	CoverValue   string `json:"cover_value,omitempty"`
}

// GenerateScheduleRequest triggers monthly schedule generation.
type GenerateScheduleRequest struct {
	InstallationID string `json:"installation_id"`
	Year           int    `json:"year"`
	Month          int    `json:"month"`
}

// PostIssueDTO names a post that was skipped or failed, with the reason.
type PostIssueDTO struct {
	PostID string `json:"post_id"`
	Reason string `json:"reason"`
}

// GenerationResultDTO reports the outcome of one generation run.
type GenerationResultDTO struct {
	InstallationID string         `json:"installation_id"`
	Year           int            `json:"year"`
	Month          int            `json:"month"`
	Generated      []string       `json:"generated"`
	Skipped        []PostIssueDTO `json:"skipped"`
	Failed         []PostIssueDTO `json:"failed"`
}

// AttendanceRequest confirms or denies presence on a planned day.
type AttendanceRequest struct {
	Date    string `json:"date"`
	Present bool   `json:"present"`
}

// LeaveRequest applies a leave state over an inclusive date range.
type LeaveRequest struct {
	From  string `json:"from"`
	To    string `json:"to"`
	State string `json:"state"`
	Note  string `json:"note"`
}

// =============================================================================
// COVERAGE TYPES
// =============================================================================

// TerminationRequest removes a guard from the schedule after a date.
type TerminationRequest struct {
	GuardID   string `json:"guard_id"`
	Effective string `json:"effective"`
}

// TerminationResultDTO reports what one termination run changed.
type TerminationResultDTO struct {
	GuardID     string         `json:"guard_id"`
	Effective   string         `json:"effective"`
	DeletedFrom []string       `json:"deleted_from"`
	Cleared     []string       `json:"cleared"`
	Flagged     []string       `json:"flagged"`
	Failures    []PostIssueDTO `json:"failures"`
}

// =============================================================================
// EXTRA SHIFT TYPES
// =============================================================================

// ExtraShiftDTO represents a ledger row. Virtual rows come from schedule
// coverage metadata and have no ledger identity.
type ExtraShiftDTO struct {
	ID             string `json:"id,omitempty"`
	GuardID        string `json:"guard_id"`
	InstallationID string `json:"installation_id"`
	PostID         string `json:"post_id"`
	SourcePostID   string `json:"source_post_id"`
	Date           string `json:"date"`
	Kind           string `json:"kind"`
	Value          string `json:"value"`
	Status         string `json:"status,omitempty"`
	BatchID        string `json:"batch_id,omitempty"`
	Note           string `json:"note,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	Virtual        bool   `json:"virtual"`
}

// CreateExtraShiftRequest records a covering shift against a schedule day.
type CreateExtraShiftRequest struct {
	GuardID    string `json:"guard_id"`
	PostID     string `json:"post_id"`
	SourceDate string `json:"source_date"`
	Kind       string `json:"kind"`
	Note       string `json:"note"`
}

// CreateExtraShiftResponse returns the persisted shift plus resolved
// names. Mirrored is false when the schedule day could not take the
// cover; the ledger row exists but the schedule does not show it.
type CreateExtraShiftResponse struct {
	Shift            ExtraShiftDTO `json:"shift"`
	GuardName        string        `json:"guard_name"`
	InstallationName string        `json:"installation_name"`
	Mirrored         bool          `json:"mirrored"`
}

// BatchRequest attaches pending shifts to a payment batch.
type BatchRequest struct {
	ShiftIDs []string `json:"shift_ids"`
	BatchID  string   `json:"batch_id"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest loads a demo scenario by ID.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toAssignmentDTO(a rota.DailyAssignment) AssignmentDTO {
	dto := AssignmentDTO{
		PostID:       string(a.PostID),
		Date:         a.Date.String(),
		GuardID:      string(a.GuardID),
		State:        string(a.State),
		Note:         a.Note,
		CoverGuardID: string(a.CoverGuardID),
	}
	if a.Covered() {
		dto.CoverValue = a.CoverValue.String()
	}
	return dto
}

func toAssignmentDTOs(as []rota.DailyAssignment) []AssignmentDTO {
	dtos := make([]AssignmentDTO, len(as))
	for i, a := range as {
		dtos[i] = toAssignmentDTO(a)
	}
	return dtos
}

func toExtraShiftDTO(s extrashift.ExtraShift) ExtraShiftDTO {
	dto := ExtraShiftDTO{
		ID:             s.ID,
		GuardID:        string(s.GuardID),
		InstallationID: string(s.InstallationID),
		PostID:         string(s.PostID),
		SourcePostID:   string(s.SourcePostID),
		Date:           s.Date.String(),
		Kind:           string(s.Kind),
		Value:          s.Value.String(),
		Status:         string(s.Status),
		BatchID:        s.BatchID,
		Note:           s.Note,
		Virtual:        s.Virtual,
	}
	if !s.CreatedAt.IsZero() {
		dto.CreatedAt = s.CreatedAt.Format(time.RFC3339)
	}
	if s.Virtual {
		// No ledger identity or payment state yet.
		dto.ID = ""
		dto.Status = ""
	}
	return dto
}

func toExtraShiftDTOs(shifts []extrashift.ExtraShift) []ExtraShiftDTO {
	dtos := make([]ExtraShiftDTO, len(shifts))
	for i, s := range shifts {
		dtos[i] = toExtraShiftDTO(s)
	}
	return dtos
}

func toGenerationResultDTO(r *rota.GenerationResult) GenerationResultDTO {
	return GenerationResultDTO{
		InstallationID: string(r.InstallationID),
		Year:           r.Year,
		Month:          int(r.Month),
		Generated:      postIDs(r.Generated),
		Skipped:        toPostIssueDTOs(r.Skipped),
		Failed:         toPostIssueDTOs(r.Failed),
	}
}

func toTerminationResultDTO(r *coverage.TerminationResult) TerminationResultDTO {
	return TerminationResultDTO{
		GuardID:     string(r.GuardID),
		Effective:   r.Effective.String(),
		DeletedFrom: postIDs(r.DeletedFrom),
		Cleared:     postIDs(r.Cleared),
		Flagged:     postIDs(r.Flagged),
		Failures:    toPostIssueDTOs(r.Failures),
	}
}

func toPostIssueDTOs(issues []rota.PostIssue) []PostIssueDTO {
	dtos := make([]PostIssueDTO, len(issues))
	for i, is := range issues {
		dtos[i] = PostIssueDTO{PostID: string(is.PostID), Reason: is.Reason}
	}
	return dtos
}

func postIDs(ids []rota.PostID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func toRolePatternDTO(p rota.RolePattern) RolePatternDTO {
	return RolePatternDTO{
		RoleID:    string(p.RoleID),
		Name:      p.Name,
		WorkDays:  p.WorkDays,
		RestDays:  p.RestDays,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
	}
}

func toPostDTO(p rota.OperationalPost) PostDTO {
	return PostDTO{
		ID:              string(p.ID),
		InstallationID:  string(p.InstallationID),
		RoleID:          string(p.RoleID),
		GuardID:         string(p.GuardID),
		PendingCoverage: p.PendingCoverage,
		Active:          p.Active,
	}
}

func toPostDTOs(posts []rota.OperationalPost) []PostDTO {
	dtos := make([]PostDTO, len(posts))
	for i, p := range posts {
		dtos[i] = toPostDTO(p)
	}
	return dtos
}
