package assets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fin/meridian/internal/ledger/accounts"
	"github.com/meridian-fin/meridian/internal/ledger/journals"
	"github.com/meridian-fin/meridian/internal/ledger/mappings"
	"github.com/meridian-fin/meridian/internal/platform/db"
	internalshared "github.com/meridian-fin/meridian/internal/shared"
)

// ErrNotFound indicates the asset does not exist.
var ErrNotFound = errors.New("assets: not found")

// CreateInput carries fields for registering a fixed asset.
type CreateInput struct {
	Name            string
	Category        string
	AcquisitionCost float64
	ResidualValue   float64
	LifeMonths      int
	AcquiredAt      time.Time
}

// Repository encapsulates fixed asset storage.
type Repository interface {
	Create(ctx context.Context, in CreateInput) (FixedAsset, error)
	Get(ctx context.Context, id int64) (FixedAsset, error)
	List(ctx context.Context, page, perPage int) ([]FixedAsset, int, error)
	// ListDepreciable returns active assets whose book value still exceeds
	// their residual value.
	ListDepreciable(ctx context.Context) ([]FixedAsset, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository scopes one asset's depreciation charge and its ledger posting
// to a single transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (FixedAsset, error)
	UpdateBookValue(ctx context.Context, id int64, bookValue float64) error
	Ledger() journals.TxRepository
	Accounts() accounts.Repository
	Mappings() mappings.Repository
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a pool-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const assetColumns = `id, name, category, acquisition_cost, residual_value, book_value, life_months,
acquired_at, is_active, created_at, updated_at`

func scanAsset(row pgx.Row) (FixedAsset, error) {
	var a FixedAsset
	err := row.Scan(&a.ID, &a.Name, &a.Category, &a.AcquisitionCost, &a.ResidualValue, &a.BookValue,
		&a.LifeMonths, &a.AcquiredAt, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FixedAsset{}, ErrNotFound
		}
		return FixedAsset{}, err
	}
	return a, nil
}

func (r *repository) Create(ctx context.Context, in CreateInput) (FixedAsset, error) {
	return scanAsset(r.pool.QueryRow(ctx, `INSERT INTO fixed_assets
(name, category, acquisition_cost, residual_value, book_value, life_months, acquired_at, is_active)
VALUES ($1,$2,$3,$4,$3,$5,$6,TRUE)
RETURNING `+assetColumns,
		in.Name, in.Category, fmt.Sprintf("%.2f", in.AcquisitionCost),
		fmt.Sprintf("%.2f", in.ResidualValue), in.LifeMonths, in.AcquiredAt))
}

func (r *repository) Get(ctx context.Context, id int64) (FixedAsset, error) {
	return scanAsset(r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM fixed_assets WHERE id=$1`, id))
}

func (r *repository) List(ctx context.Context, page, perPage int) ([]FixedAsset, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fixed_assets`).Scan(&total); err != nil {
		return nil, 0, err
	}
	p := internalshared.NewPagination(page, perPage, total)
	rows, err := r.pool.Query(ctx, `SELECT `+assetColumns+` FROM fixed_assets
ORDER BY acquired_at DESC, id DESC LIMIT $1 OFFSET $2`, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []FixedAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *repository) ListDepreciable(ctx context.Context) ([]FixedAsset, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assetColumns+` FROM fixed_assets
WHERE is_active AND book_value > residual_value ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FixedAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (FixedAsset, error) {
	return scanAsset(r.tx.QueryRow(ctx, `SELECT `+assetColumns+` FROM fixed_assets WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdateBookValue(ctx context.Context, id int64, bookValue float64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE fixed_assets SET book_value=$2, updated_at=NOW() WHERE id=$1`,
		id, fmt.Sprintf("%.2f", bookValue))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) Ledger() journals.TxRepository {
	return journals.NewTx(r.tx)
}

func (r *txRepository) Accounts() accounts.Repository {
	return accounts.NewTx(r.tx)
}

func (r *txRepository) Mappings() mappings.Repository {
	return mappings.NewTx(r.tx)
}
