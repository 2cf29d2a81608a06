package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-fin/meridian/internal/ledger/accounts"
	"github.com/meridian-fin/meridian/internal/ledger/journals"
	"github.com/meridian-fin/meridian/internal/ledger/resolver"
	internalshared "github.com/meridian-fin/meridian/internal/shared"
)

var (
	salaryDefault      = resolver.Default{Code: "6100", Name: "Salary Expense", Type: accounts.AccountTypeExpense}
	wagesDefault       = resolver.Default{Code: "2100", Name: "Wages Payable", Type: accounts.AccountTypeLiability}
	withholdingDefault = resolver.Default{Code: "2110", Name: "Withholding Payable", Type: accounts.AccountTypeLiability}
)

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Poster creates journal entries inside a caller-owned transaction.
type Poster interface {
	CreateInTx(ctx context.Context, tx journals.TxRepository, input journals.CreateInput) (journals.JournalEntry, error)
	RecordPosted(entry journals.JournalEntry)
}

// Service drives the payroll run workflow.
type Service struct {
	repo   Repository
	poster Poster
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the payroll service.
func NewService(repo Repository, poster Poster, logger *slog.Logger) *Service {
	return &Service{repo: repo, poster: poster, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create records a draft payroll run for a YYYY-MM period.
func (s *Service) Create(ctx context.Context, in CreateInput) (Run, error) {
	if !periodPattern.MatchString(in.Period) {
		return Run{}, errors.New("payroll: period must be YYYY-MM")
	}
	if in.Net <= 0 || in.Withholding < 0 {
		return Run{}, errors.New("payroll: net must be positive and withholding non-negative")
	}
	if in.CreatedBy == 0 {
		return Run{}, errors.New("payroll: created_by required")
	}
	if in.Description == "" {
		in.Description = fmt.Sprintf("Payroll %s", in.Period)
	}
	return s.repo.Create(ctx, in)
}

// Get fetches one run.
func (s *Service) Get(ctx context.Context, id int64) (Run, error) {
	return s.repo.Get(ctx, id)
}

// List returns runs, newest period first.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Run, internalshared.Pagination, error) {
	out, total, err := s.repo.List(ctx, page, perPage)
	if err != nil {
		return nil, internalshared.Pagination{}, err
	}
	return out, internalshared.NewPagination(page, perPage, total), nil
}

// Approve posts the run to the ledger and marks it APPROVED in the same
// transaction. The posting splits gross pay across three accounts: the full
// gross debits salary expense, net pay credits wages payable and the
// withheld remainder credits withholding payable.
func (s *Service) Approve(ctx context.Context, id, approverID int64) (Run, error) {
	var (
		approved    Run
		ledgerEntry journals.JournalEntry
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		run, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if run.Status != RunStatusDraft {
			return fmt.Errorf("%w: run %d is %s", ErrAlreadyApproved, id, run.Status)
		}

		resolve := resolver.New(tx.Mappings(), tx.Accounts())
		salary, err := resolve.Resolve(ctx, "payroll", "salary", salaryDefault)
		if err != nil {
			return err
		}
		wages, err := resolve.Resolve(ctx, "payroll", "wages_payable", wagesDefault)
		if err != nil {
			return err
		}

		lines := []journals.LineInput{
			{AccountID: salary.ID, Debit: run.Gross, Description: run.Description},
			{AccountID: wages.ID, Credit: run.Net, Description: "net pay"},
		}
		if run.Withholding > 0 {
			withholding, err := resolve.Resolve(ctx, "payroll", "withholding", withholdingDefault)
			if err != nil {
				return err
			}
			lines = append(lines, journals.LineInput{
				AccountID: withholding.ID, Credit: run.Withholding, Description: "tax withholding",
			})
		}

		entry, err := s.poster.CreateInTx(ctx, tx.Ledger(), journals.CreateInput{
			Description:   run.Description,
			ReferenceType: journals.ReferenceExpense,
			ReferenceID:   sourceID(run.ID),
			Prefix:        journals.PrefixAuto,
			EntryDate:     s.now(),
			Status:        journals.StatusPosted,
			CreatedBy:     approverID,
			Lines:         lines,
		})
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.MarkApproved(ctx, id, approverID, now, entry.ID); err != nil {
			return err
		}
		approved = run
		approved.Status = RunStatusApproved
		approved.ApprovedBy = &approverID
		approved.ApprovedAt = &now
		approved.EntryID = &entry.ID
		ledgerEntry = entry
		return nil
	})
	if err != nil {
		return Run{}, err
	}
	s.poster.RecordPosted(ledgerEntry)
	s.logger.Info("payroll run approved",
		slog.Int64("run_id", approved.ID),
		slog.String("period", approved.Period),
		slog.Float64("gross", approved.Gross))
	return approved, nil
}

func sourceID(runID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("PAYROLL:%d", runID)))
}
