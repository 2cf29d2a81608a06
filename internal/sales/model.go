package sales

import "time"

// SaleStatus enumerates sale posting states.
type SaleStatus string

const (
	SaleStatusPending SaleStatus = "PENDING"
	SaleStatusPosted  SaleStatus = "POSTED"
)

// Sale is a recorded cash sale. Posting recognises the revenue in the ledger.
type Sale struct {
	ID          int64
	Customer    string
	Description string
	Amount      float64
	Status      SaleStatus
	SoldAt      time.Time
	CreatedBy   int64
	PostedBy    *int64
	PostedAt    *time.Time
	EntryID     *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
