package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-fin/meridian/internal/ledger/accounts"
	"github.com/meridian-fin/meridian/internal/ledger/journals"
	"github.com/meridian-fin/meridian/internal/ledger/resolver"
	ledgershared "github.com/meridian-fin/meridian/internal/ledger/shared"
	internalshared "github.com/meridian-fin/meridian/internal/shared"
)

var (
	expenseDefault     = resolver.Default{Code: "6200", Name: "Depreciation Expense", Type: accounts.AccountTypeExpense}
	accumulatedDefault = resolver.Default{Code: "1590", Name: "Accumulated Depreciation", Type: accounts.AccountTypeAsset}
)

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Poster creates journal entries inside a caller-owned transaction.
type Poster interface {
	CreateInTx(ctx context.Context, tx journals.TxRepository, input journals.CreateInput) (journals.JournalEntry, error)
	RecordPosted(entry journals.JournalEntry)
}

// Service manages fixed assets and periodic depreciation.
type Service struct {
	repo   Repository
	poster Poster
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the assets service.
func NewService(repo Repository, poster Poster, logger *slog.Logger) *Service {
	return &Service{repo: repo, poster: poster, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register records a new fixed asset at its acquisition cost.
func (s *Service) Register(ctx context.Context, in CreateInput) (FixedAsset, error) {
	if in.Name == "" || in.Category == "" {
		return FixedAsset{}, errors.New("assets: name and category required")
	}
	if in.AcquisitionCost <= 0 || in.ResidualValue < 0 || in.ResidualValue >= in.AcquisitionCost {
		return FixedAsset{}, errors.New("assets: cost must be positive and exceed residual value")
	}
	if in.LifeMonths <= 0 {
		return FixedAsset{}, errors.New("assets: life_months must be positive")
	}
	if in.AcquiredAt.IsZero() {
		in.AcquiredAt = s.now()
	}
	return s.repo.Create(ctx, in)
}

// Get fetches one asset.
func (s *Service) Get(ctx context.Context, id int64) (FixedAsset, error) {
	return s.repo.Get(ctx, id)
}

// List returns assets, newest acquisitions first.
func (s *Service) List(ctx context.Context, page, perPage int) ([]FixedAsset, internalshared.Pagination, error) {
	out, total, err := s.repo.List(ctx, page, perPage)
	if err != nil {
		return nil, internalshared.Pagination{}, err
	}
	return out, internalshared.NewPagination(page, perPage, total), nil
}

// RunDepreciation posts one month of straight-line depreciation for every
// depreciable asset. Each asset is processed in its own transaction so one
// failure does not abort the whole run, and a per-(asset, period) source id
// makes re-runs skip assets already charged for that period.
func (s *Service) RunDepreciation(ctx context.Context, period string, actorID int64) (RunResult, error) {
	if !periodPattern.MatchString(period) {
		return RunResult{}, errors.New("assets: period must be YYYY-MM")
	}
	depreciable, err := s.repo.ListDepreciable(ctx)
	if err != nil {
		return RunResult{}, err
	}

	result := RunResult{Period: period}
	for _, candidate := range depreciable {
		amount, err := s.depreciateOne(ctx, candidate.ID, period, actorID)
		switch {
		case errors.Is(err, ledgershared.ErrSourceAlreadyLinked):
			result.Skipped++
		case err != nil:
			s.logger.Error("depreciation failed",
				slog.Int64("asset_id", candidate.ID),
				slog.String("period", period),
				slog.Any("error", err))
			result.Failed++
		case amount == 0:
			result.Skipped++
		default:
			result.Processed++
			result.TotalAmount = math.Round((result.TotalAmount+amount)*100) / 100
		}
	}
	s.logger.Info("depreciation run complete",
		slog.String("period", period),
		slog.Int("processed", result.Processed),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
		slog.Float64("total", result.TotalAmount))
	return result, nil
}

func (s *Service) depreciateOne(ctx context.Context, assetID int64, period string, actorID int64) (float64, error) {
	var (
		amount      float64
		ledgerEntry journals.JournalEntry
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		asset, err := tx.GetForUpdate(ctx, assetID)
		if err != nil {
			return err
		}
		amount = math.Round(asset.MonthlyDepreciation()*100) / 100
		if amount == 0 {
			return nil
		}

		resolve := resolver.New(tx.Mappings(), tx.Accounts())
		expenseAccount, err := resolve.Resolve(ctx, "assets", "depreciation_expense", expenseDefault)
		if err != nil {
			return err
		}
		accumulated, err := resolve.Resolve(ctx, "assets", "accumulated_depreciation", accumulatedDefault)
		if err != nil {
			return err
		}

		entry, err := s.poster.CreateInTx(ctx, tx.Ledger(), journals.CreateInput{
			Description:   fmt.Sprintf("Depreciation %s: %s", period, asset.Name),
			ReferenceType: journals.ReferenceExpense,
			ReferenceID:   sourceID(asset.ID, period),
			Prefix:        journals.PrefixDepreciation,
			EntryDate:     s.now(),
			Status:        journals.StatusPosted,
			CreatedBy:     actorID,
			Lines: []journals.LineInput{
				{AccountID: expenseAccount.ID, Debit: amount, Description: asset.Name},
				{AccountID: accumulated.ID, Credit: amount, Description: asset.Name},
			},
		})
		if err != nil {
			return err
		}
		ledgerEntry = entry
		return tx.UpdateBookValue(ctx, asset.ID, asset.BookValue-amount)
	})
	if err != nil {
		return 0, err
	}
	s.poster.RecordPosted(ledgerEntry)
	return amount, nil
}

func sourceID(assetID int64, period string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("DEPRECIATION:%d:%s", assetID, period)))
}
