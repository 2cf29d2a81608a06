package payroll

import "time"

// RunStatus enumerates payroll run states.
type RunStatus string

const (
	RunStatusDraft    RunStatus = "DRAFT"
	RunStatusApproved RunStatus = "APPROVED"
)

// Run aggregates one pay period. Gross always equals net plus withholding;
// the split drives the three-legged ledger posting on approval.
type Run struct {
	ID          int64
	Period      string
	Description string
	Gross       float64
	Net         float64
	Withholding float64
	Status      RunStatus
	CreatedBy   int64
	ApprovedBy  *int64
	ApprovedAt  *time.Time
	EntryID     *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
