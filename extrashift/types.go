/*
Package extrashift values, records, and pays ad-hoc coverage shifts.

PURPOSE:
  An extra shift is a one-off paid shift outside a guard's nominal
  rotation: either a replacement for a scheduled guard or coverage of a
  vacancy on a pending-coverage post. The ledger enforces the system's
  core consistency invariant: a guard holds at most one paid shift
  (regular or extra) per calendar day.

KEY CONCEPTS IN THIS FILE (types.go):
  - ExtraShift: the ledger row, with decimal monetary value
  - Kind: replacement | vacancy_coverage
  - PaymentStatus: pending -> batched -> paid, deletion only while pending
  - Filter: query shape, also applied to synthesized virtual rows

SEE ALSO:
  - ledger.go: Create/Query/payment lifecycle and the uniqueness checks
  - store.go: Persistence contract
*/
package extrashift

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vigil/shift-engine/rota"
)

// =============================================================================
// EXTRA SHIFT
// =============================================================================

type Kind string

const (
	KindReplacement Kind = "replacement"      // covering a scheduled guard
	KindVacancy     Kind = "vacancy_coverage" // covering a pending-coverage post
)

func (k Kind) Valid() bool { return k == KindReplacement || k == KindVacancy }

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentBatched PaymentStatus = "batched"
	PaymentPaid    PaymentStatus = "paid"
)

// ExtraShift records a guard covering a single calendar day outside their
// nominal schedule. Date always equals the source assignment's date;
// SourcePostID names the schedule day being covered.
type ExtraShift struct {
	ID             string
	GuardID        rota.GuardID
	InstallationID rota.InstallationID
	PostID         rota.PostID
	SourcePostID   rota.PostID
	Date           rota.Date
	Kind           Kind
	Value          decimal.Decimal
	Status         PaymentStatus
	BatchID        string
	Note           string
	CreatedAt      time.Time

	// Virtual marks a read-only row synthesized from a daily assignment's
	// inline coverage metadata; it has no ledger identity until created.
	Virtual bool
}

// =============================================================================
// QUERY FILTER
// =============================================================================

// Filter narrows ledger queries. Nil fields match everything; From/To
// bound the shift date inclusively.
type Filter struct {
	GuardID        *rota.GuardID
	InstallationID *rota.InstallationID
	Kind           *Kind
	Status         *PaymentStatus
	From           *rota.Date
	To             *rota.Date
}

// Matches applies the filter in memory; stores may also push it down.
func (f Filter) Matches(s ExtraShift) bool {
	if f.GuardID != nil && s.GuardID != *f.GuardID {
		return false
	}
	if f.InstallationID != nil && s.InstallationID != *f.InstallationID {
		return false
	}
	if f.Kind != nil && s.Kind != *f.Kind {
		return false
	}
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	if f.From != nil && s.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && s.Date.After(*f.To) {
		return false
	}
	return true
}
