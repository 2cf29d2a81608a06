package expense

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

// ErrNotFound indicates the expense does not exist.
var ErrNotFound = errors.New("expense: not found")

// ErrAlreadyReviewed indicates a second approve/reject on the same expense.
var ErrAlreadyReviewed = errors.New("expense: already reviewed")

// CreateInput carries fields for a new expense claim.
type CreateInput struct {
	Description string
	Category    string
	Amount      float64
	IncurredAt  time.Time
	CreatedBy   int64
}

// Repository encapsulates expense storage.
type Repository interface {
	Create(ctx context.Context, in CreateInput) (Expense, error)
	Get(ctx context.Context, id int64) (Expense, error)
	List(ctx context.Context, status *Status, page, perPage int) ([]Expense, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository scopes expense review and its ledger posting to one
// transaction. Ledger, Accounts and Mappings are bound to the same
// underlying pgx.Tx so the review flag and the journal rows commit together.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Expense, error)
	MarkReviewed(ctx context.Context, id int64, status Status, reviewedBy int64, at time.Time, entryID *int64) error
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

const expenseColumns = `id, description, category, amount, status, incurred_at, created_by,
reviewed_by, reviewed_at, entry_id, created_at, updated_at`

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.Description, &e.Category, &e.Amount, &e.Status, &e.IncurredAt, &e.CreatedBy,
		&e.ReviewedBy, &e.ReviewedAt, &e.EntryID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, ErrNotFound
		}
		return Expense{}, err
	}
	return e, nil
}

func (r *repository) Create(ctx context.Context, in CreateInput) (Expense, error) {
	return scanExpense(r.pool.QueryRow(ctx, `INSERT INTO expenses
(description, category, amount, status, incurred_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING `+expenseColumns,
		in.Description, in.Category, fmt.Sprintf("%.2f", in.Amount), StatusPending, in.IncurredAt, in.CreatedBy))
}

func (r *repository) Get(ctx context.Context, id int64) (Expense, error) {
	return scanExpense(r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id=$1`, id))
}

func (r *repository) List(ctx context.Context, status *Status, page, perPage int) ([]Expense, int, error) {
	where := ``
	args := []any{}
	if status != nil {
		where = ` WHERE status=$1`
		args = append(args, *status)
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM expenses`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	p := internalshared.NewPagination(page, perPage, total)
	query := `SELECT ` + expenseColumns + ` FROM expenses` + where +
		fmt.Sprintf(` ORDER BY incurred_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, p.PerPage, p.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
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

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Expense, error) {
	return scanExpense(r.tx.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) MarkReviewed(ctx context.Context, id int64, status Status, reviewedBy int64, at time.Time, entryID *int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE expenses SET status=$2, reviewed_by=$3, reviewed_at=$4, entry_id=$5, updated_at=NOW()
WHERE id=$1`, id, status, reviewedBy, at, entryID)
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
