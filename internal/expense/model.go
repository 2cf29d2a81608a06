package expense

import "time"

// Status enumerates expense review states.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Expense is a claim awaiting review. Approval posts it to the ledger.
type Expense struct {
	ID          int64
	Description string
	Category    string
	Amount      float64
	Status      Status
	IncurredAt  time.Time
	CreatedBy   int64
	ReviewedBy  *int64
	ReviewedAt  *time.Time
	EntryID     *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
