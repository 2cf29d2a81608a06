package journals

import (
	"time"

	"github.com/google/uuid"
)

// EntryStatus enumerates journal lifecycle values.
type EntryStatus string

const (
	StatusDraft    EntryStatus = "DRAFT"
	StatusPosted   EntryStatus = "POSTED"
	StatusReversed EntryStatus = "REVERSED"
)

// ReferenceType identifies the originating business object of an entry.
type ReferenceType string

const (
	ReferenceRevenue        ReferenceType = "REVENUE"
	ReferenceExpense        ReferenceType = "EXPENSE"
	ReferenceSale           ReferenceType = "SALE"
	ReferenceInventory      ReferenceType = "INVENTORY"
	ReferenceManual         ReferenceType = "MANUAL"
	ReferenceOpeningBalance ReferenceType = "OPENING_BALANCE"
	ReferenceAdjustment     ReferenceType = "ADJUSTMENT"
)

// Valid reports whether the reference type is a known value.
func (t ReferenceType) Valid() bool {
	switch t {
	case ReferenceRevenue, ReferenceExpense, ReferenceSale, ReferenceInventory,
		ReferenceManual, ReferenceOpeningBalance, ReferenceAdjustment:
		return true
	}
	return false
}

// JournalEntry captures posting metadata for one balanced transaction.
type JournalEntry struct {
	ID              int64
	EntryNumber     string
	EntryDate       time.Time
	Description     string
	ReferenceType   ReferenceType
	ReferenceID     uuid.UUID
	Status          EntryStatus
	PostedAt        *time.Time
	PostedBy        *int64
	ReversedAt      *time.Time
	ReversedBy      *int64
	ReversalEntryID *int64
	CreatedBy       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Lines           []JournalEntryLine
}

// JournalEntryLine stores a debit or credit amount for an account.
// Exactly one of Debit/Credit is strictly positive, the other is zero.
type JournalEntryLine struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	Debit       float64
	Credit      float64
	Description string
	CreatedAt   time.Time
}
