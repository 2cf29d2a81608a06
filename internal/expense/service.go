package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-fin/meridian/internal/ledger/accounts"
	"github.com/meridian-fin/meridian/internal/ledger/journals"
	"github.com/meridian-fin/meridian/internal/ledger/resolver"
	internalshared "github.com/meridian-fin/meridian/internal/shared"
)

var (
	debitDefault  = resolver.Default{Code: "6000", Name: "General Expense", Type: accounts.AccountTypeExpense}
	creditDefault = resolver.Default{Code: "1010", Name: "Cash and Bank", Type: accounts.AccountTypeAsset}
)

// Poster creates journal entries inside a caller-owned transaction.
type Poster interface {
	CreateInTx(ctx context.Context, tx journals.TxRepository, input journals.CreateInput) (journals.JournalEntry, error)
	RecordPosted(entry journals.JournalEntry)
}

// Service drives the expense review workflow.
type Service struct {
	repo   Repository
	poster Poster
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the expense service.
func NewService(repo Repository, poster Poster, logger *slog.Logger) *Service {
	return &Service{repo: repo, poster: poster, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create records a pending expense claim. Nothing touches the ledger until
// the claim is approved.
func (s *Service) Create(ctx context.Context, in CreateInput) (Expense, error) {
	if in.Description == "" || in.Category == "" {
		return Expense{}, errors.New("expense: description and category required")
	}
	if in.Amount <= 0 {
		return Expense{}, errors.New("expense: amount must be positive")
	}
	if in.CreatedBy == 0 {
		return Expense{}, errors.New("expense: created_by required")
	}
	if in.IncurredAt.IsZero() {
		in.IncurredAt = s.now()
	}
	return s.repo.Create(ctx, in)
}

// Get fetches one expense.
func (s *Service) Get(ctx context.Context, id int64) (Expense, error) {
	return s.repo.Get(ctx, id)
}

// List returns expenses, newest first.
func (s *Service) List(ctx context.Context, status *Status, page, perPage int) ([]Expense, internalshared.Pagination, error) {
	out, total, err := s.repo.List(ctx, status, page, perPage)
	if err != nil {
		return nil, internalshared.Pagination{}, err
	}
	return out, internalshared.NewPagination(page, perPage, total), nil
}

// Approve marks the expense APPROVED and posts it to the ledger in the same
// transaction: debit the category's expense account, credit cash. If either
// step fails the expense stays PENDING.
func (s *Service) Approve(ctx context.Context, id, approverID int64) (Expense, error) {
	var (
		approved Expense
		posted   journals.JournalEntry
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exp, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if exp.Status != StatusPending {
			return fmt.Errorf("%w: expense %d is %s", ErrAlreadyReviewed, id, exp.Status)
		}

		resolve := resolver.New(tx.Mappings(), tx.Accounts())
		debitAccount, err := resolve.Resolve(ctx, "expense", exp.Category, debitDefault)
		if err != nil {
			return err
		}
		creditAccount, err := resolve.Resolve(ctx, "banking", "default", creditDefault)
		if err != nil {
			return err
		}

		entry, err := s.poster.CreateInTx(ctx, tx.Ledger(), journals.CreateInput{
			Description:   fmt.Sprintf("Expense: %s", exp.Description),
			ReferenceType: journals.ReferenceExpense,
			ReferenceID:   sourceID(exp.ID),
			Prefix:        journals.PrefixAuto,
			EntryDate:     s.now(),
			Status:        journals.StatusPosted,
			CreatedBy:     approverID,
			Lines: []journals.LineInput{
				{AccountID: debitAccount.ID, Debit: exp.Amount, Description: exp.Description},
				{AccountID: creditAccount.ID, Credit: exp.Amount, Description: exp.Description},
			},
		})
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.MarkReviewed(ctx, id, StatusApproved, approverID, now, &entry.ID); err != nil {
			return err
		}
		approved = exp
		approved.Status = StatusApproved
		approved.ReviewedBy = &approverID
		approved.ReviewedAt = &now
		approved.EntryID = &entry.ID
		posted = entry
		return nil
	})
	if err != nil {
		return Expense{}, err
	}
	s.poster.RecordPosted(posted)
	s.logger.Info("expense approved",
		slog.Int64("expense_id", approved.ID),
		slog.Int64("entry_id", *approved.EntryID),
		slog.Float64("amount", approved.Amount))
	return approved, nil
}

// Reject marks the expense REJECTED without any ledger effect.
func (s *Service) Reject(ctx context.Context, id, reviewerID int64) (Expense, error) {
	var rejected Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exp, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if exp.Status != StatusPending {
			return fmt.Errorf("%w: expense %d is %s", ErrAlreadyReviewed, id, exp.Status)
		}
		now := s.now()
		if err := tx.MarkReviewed(ctx, id, StatusRejected, reviewerID, now, nil); err != nil {
			return err
		}
		rejected = exp
		rejected.Status = StatusRejected
		rejected.ReviewedBy = &reviewerID
		rejected.ReviewedAt = &now
		return nil
	})
	if err != nil {
		return Expense{}, err
	}
	return rejected, nil
}

// sourceID derives a stable ledger reference for an expense. Re-approving the
// same expense produces the same id, so the source_links uniqueness check
// catches duplicate postings even across processes.
func sourceID(expenseID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("EXPENSE:%d", expenseID)))
}
