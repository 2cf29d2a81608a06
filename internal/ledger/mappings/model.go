package mappings

import "time"

// AccountMapping links a business (module, category) pair to a ledger account.
type AccountMapping struct {
	Module    string
	Category  string
	AccountID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
