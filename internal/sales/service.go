package sales

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
	cashDefault    = resolver.Default{Code: "1010", Name: "Cash and Bank", Type: accounts.AccountTypeAsset}
	revenueDefault = resolver.Default{Code: "4000", Name: "Sales Revenue", Type: accounts.AccountTypeRevenue}
)

// Poster creates journal entries inside a caller-owned transaction.
type Poster interface {
	CreateInTx(ctx context.Context, tx journals.TxRepository, input journals.CreateInput) (journals.JournalEntry, error)
	RecordPosted(entry journals.JournalEntry)
}

// Service drives sale recording and revenue recognition.
type Service struct {
	repo   Repository
	poster Poster
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the sales service.
func NewService(repo Repository, poster Poster, logger *slog.Logger) *Service {
	return &Service{repo: repo, poster: poster, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Record stores a pending sale.
func (s *Service) Record(ctx context.Context, in CreateInput) (Sale, error) {
	if in.Customer == "" {
		return Sale{}, errors.New("sales: customer required")
	}
	if in.Amount <= 0 {
		return Sale{}, errors.New("sales: amount must be positive")
	}
	if in.CreatedBy == 0 {
		return Sale{}, errors.New("sales: created_by required")
	}
	if in.SoldAt.IsZero() {
		in.SoldAt = s.now()
	}
	return s.repo.Create(ctx, in)
}

// Get fetches one sale.
func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	return s.repo.Get(ctx, id)
}

// List returns sales, newest first.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Sale, internalshared.Pagination, error) {
	out, total, err := s.repo.List(ctx, page, perPage)
	if err != nil {
		return nil, internalshared.Pagination{}, err
	}
	return out, internalshared.NewPagination(page, perPage, total), nil
}

// Post recognises the sale's revenue: cash is debited and sales revenue
// credited in the same transaction that marks the sale POSTED.
func (s *Service) Post(ctx context.Context, id, actorID int64) (Sale, error) {
	var (
		posted      Sale
		ledgerEntry journals.JournalEntry
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sale.Status != SaleStatusPending {
			return fmt.Errorf("%w: sale %d is %s", ErrAlreadyPosted, id, sale.Status)
		}

		resolve := resolver.New(tx.Mappings(), tx.Accounts())
		cash, err := resolve.Resolve(ctx, "banking", "default", cashDefault)
		if err != nil {
			return err
		}
		revenue, err := resolve.Resolve(ctx, "sales", "revenue", revenueDefault)
		if err != nil {
			return err
		}

		description := sale.Description
		if description == "" {
			description = fmt.Sprintf("Sale to %s", sale.Customer)
		}
		entry, err := s.poster.CreateInTx(ctx, tx.Ledger(), journals.CreateInput{
			Description:   description,
			ReferenceType: journals.ReferenceSale,
			ReferenceID:   sourceID(sale.ID),
			Prefix:        journals.PrefixAuto,
			EntryDate:     sale.SoldAt,
			Status:        journals.StatusPosted,
			CreatedBy:     actorID,
			Lines: []journals.LineInput{
				{AccountID: cash.ID, Debit: sale.Amount, Description: description},
				{AccountID: revenue.ID, Credit: sale.Amount, Description: description},
			},
		})
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.MarkPosted(ctx, id, actorID, now, entry.ID); err != nil {
			return err
		}
		posted = sale
		posted.Status = SaleStatusPosted
		posted.PostedBy = &actorID
		posted.PostedAt = &now
		posted.EntryID = &entry.ID
		ledgerEntry = entry
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.poster.RecordPosted(ledgerEntry)
	s.logger.Info("sale posted",
		slog.Int64("sale_id", posted.ID),
		slog.Int64("entry_id", *posted.EntryID),
		slog.Float64("amount", posted.Amount))
	return posted, nil
}

func sourceID(saleID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("SALE:%d", saleID)))
}
