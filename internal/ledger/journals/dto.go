package journals

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-fin/meridian/internal/ledger/shared"
)

// balanceTolerance is the maximum accepted difference between total debits
// and total credits, in currency units.
const balanceTolerance = 0.01

// LineInput describes a journal line for a posting request.
type LineInput struct {
	AccountID   int64
	Debit       float64
	Credit      float64
	Description string
}

// CreateInput groups fields required to create a journal entry.
type CreateInput struct {
	Description   string
	ReferenceType ReferenceType
	// ReferenceID identifies the originating business object. uuid.Nil means
	// no source link (manual entries).
	ReferenceID uuid.UUID
	// Prefix overrides the entry number prefix; empty selects JE for manual
	// entries and AUTO otherwise.
	Prefix    string
	EntryDate time.Time
	Status    EntryStatus
	CreatedBy int64
	Lines     []LineInput
}

// Validate ensures the input satisfies the posting preconditions: a known
// reference type, a valid target status, single-sided lines, and balance
// within tolerance.
func (in CreateInput) Validate() error {
	if !in.ReferenceType.Valid() {
		return fmt.Errorf("ledger: unknown reference type %q", in.ReferenceType)
	}
	if in.Status != StatusDraft && in.Status != StatusPosted {
		return fmt.Errorf("ledger: entries are created DRAFT or POSTED, not %q", in.Status)
	}
	if in.CreatedBy == 0 {
		return errors.New("ledger: created_by required")
	}
	return ValidateLines(in.Lines)
}

// ValidateLines checks the line set invariants shared by creation, draft
// editing and posting-time re-validation.
func ValidateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return shared.ErrEmptyLines
	}
	var debit, credit float64
	for idx, line := range lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("%w: line %d has a negative amount", shared.ErrInvalidLine, idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("%w: line %d carries both debit and credit", shared.ErrInvalidLine, idx)
		}
		if line.Debit == 0 && line.Credit == 0 {
			return fmt.Errorf("%w: line %d carries neither debit nor credit", shared.ErrInvalidLine, idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if math.Abs(debit-credit) > balanceTolerance {
		return shared.ErrUnbalanced
	}
	return nil
}

// ListFilter narrows entry listings.
type ListFilter struct {
	Status  *EntryStatus
	Page    int
	PerPage int
}

// LineRequest is the JSON payload for one journal line.
type LineRequest struct {
	AccountID   int64   `json:"account_id" validate:"required,gt=0"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
	Description string  `json:"description,omitempty" validate:"max=255"`
}

// CreateEntryRequest is the JSON payload for manual entry creation.
type CreateEntryRequest struct {
	Description   string        `json:"description" validate:"required,max=255"`
	ReferenceType string        `json:"reference_type,omitempty" validate:"omitempty,oneof=REVENUE EXPENSE SALE INVENTORY MANUAL OPENING_BALANCE ADJUSTMENT"`
	EntryDate     *time.Time    `json:"entry_date,omitempty"`
	Status        string        `json:"status,omitempty" validate:"omitempty,oneof=DRAFT POSTED"`
	CreatedBy     int64         `json:"created_by" validate:"required,gt=0"`
	Lines         []LineRequest `json:"lines" validate:"required,min=2,dive"`
}

// UpdateLinesRequest replaces a draft entry's line set.
type UpdateLinesRequest struct {
	ActorID int64         `json:"actor_id" validate:"required,gt=0"`
	Lines   []LineRequest `json:"lines" validate:"required,min=2,dive"`
}

// ActorRequest carries the acting user for lifecycle transitions.
type ActorRequest struct {
	ActorID int64 `json:"actor_id" validate:"required,gt=0"`
}

// LineResponse is the JSON projection of a journal line.
type LineResponse struct {
	ID          int64   `json:"id,omitempty"`
	AccountID   int64   `json:"account_id"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Description string  `json:"description,omitempty"`
}

// EntryResponse is the JSON projection of a journal entry.
type EntryResponse struct {
	ID              int64          `json:"id"`
	EntryNumber     string         `json:"entry_number"`
	EntryDate       time.Time      `json:"entry_date"`
	Description     string         `json:"description"`
	ReferenceType   string         `json:"reference_type"`
	ReferenceID     string         `json:"reference_id,omitempty"`
	Status          string         `json:"status"`
	PostedAt        *time.Time     `json:"posted_at,omitempty"`
	PostedBy        *int64         `json:"posted_by,omitempty"`
	ReversedAt      *time.Time     `json:"reversed_at,omitempty"`
	ReversedBy      *int64         `json:"reversed_by,omitempty"`
	ReversalEntryID *int64         `json:"reversal_entry_id,omitempty"`
	CreatedBy       int64          `json:"created_by"`
	Lines           []LineResponse `json:"lines,omitempty"`
}

// ListEntriesResponse wraps a page of entries.
type ListEntriesResponse struct {
	Entries    []EntryResponse `json:"entries"`
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
}

func toEntryResponse(e JournalEntry) EntryResponse {
	resp := EntryResponse{
		ID:              e.ID,
		EntryNumber:     e.EntryNumber,
		EntryDate:       e.EntryDate,
		Description:     e.Description,
		ReferenceType:   string(e.ReferenceType),
		Status:          string(e.Status),
		PostedAt:        e.PostedAt,
		PostedBy:        e.PostedBy,
		ReversedAt:      e.ReversedAt,
		ReversedBy:      e.ReversedBy,
		ReversalEntryID: e.ReversalEntryID,
		CreatedBy:       e.CreatedBy,
	}
	if e.ReferenceID != uuid.Nil {
		resp.ReferenceID = e.ReferenceID.String()
	}
	for _, line := range e.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			ID:          line.ID,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return resp
}

func toLineInputsFromRequest(lines []LineRequest) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return out
}
