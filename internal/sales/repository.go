package sales

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

// ErrNotFound indicates the sale does not exist.
var ErrNotFound = errors.New("sales: not found")

// ErrAlreadyPosted indicates a second posting of the same sale.
var ErrAlreadyPosted = errors.New("sales: already posted")

// CreateInput carries fields for a new sale.
type CreateInput struct {
	Customer    string
	Description string
	Amount      float64
	SoldAt      time.Time
	CreatedBy   int64
}

// Repository encapsulates sale storage.
type Repository interface {
	Create(ctx context.Context, in CreateInput) (Sale, error)
	Get(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, page, perPage int) ([]Sale, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository scopes sale posting and its ledger entry to one transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Sale, error)
	MarkPosted(ctx context.Context, id, postedBy int64, at time.Time, entryID int64) error
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

const saleColumns = `id, customer, description, amount, status, sold_at, created_by,
posted_by, posted_at, entry_id, created_at, updated_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.Customer, &s.Description, &s.Amount, &s.Status, &s.SoldAt, &s.CreatedBy,
		&s.PostedBy, &s.PostedAt, &s.EntryID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrNotFound
		}
		return Sale{}, err
	}
	return s, nil
}

func (r *repository) Create(ctx context.Context, in CreateInput) (Sale, error) {
	return scanSale(r.pool.QueryRow(ctx, `INSERT INTO sales
(customer, description, amount, status, sold_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING `+saleColumns,
		in.Customer, in.Description, fmt.Sprintf("%.2f", in.Amount), SaleStatusPending, in.SoldAt, in.CreatedBy))
}

func (r *repository) Get(ctx context.Context, id int64) (Sale, error) {
	return scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id))
}

func (r *repository) List(ctx context.Context, page, perPage int) ([]Sale, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales`).Scan(&total); err != nil {
		return nil, 0, err
	}
	p := internalshared.NewPagination(page, perPage, total)
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+` FROM sales
ORDER BY sold_at DESC, id DESC LIMIT $1 OFFSET $2`, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Sale, error) {
	return scanSale(r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) MarkPosted(ctx context.Context, id, postedBy int64, at time.Time, entryID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE sales SET status=$2, posted_by=$3, posted_at=$4, entry_id=$5, updated_at=NOW()
WHERE id=$1`, id, SaleStatusPosted, postedBy, at, entryID)
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
