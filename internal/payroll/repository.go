package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fin/meridian/internal/ledger/accounts"
	"github.com/meridian-fin/meridian/internal/ledger/journals"
	"github.com/meridian-fin/meridian/internal/ledger/mappings"
	"github.com/meridian-fin/meridian/internal/platform/db"
	internalshared "github.com/meridian-fin/meridian/internal/shared"
)

// ErrNotFound indicates the payroll run does not exist.
var ErrNotFound = errors.New("payroll: run not found")

// ErrAlreadyApproved indicates a second approval of the same run.
var ErrAlreadyApproved = errors.New("payroll: run already approved")

// ErrDuplicatePeriod indicates a run already exists for the period.
var ErrDuplicatePeriod = errors.New("payroll: period already has a run")

// CreateInput carries fields for a new payroll run.
type CreateInput struct {
	Period      string
	Description string
	Net         float64
	Withholding float64
	CreatedBy   int64
}

// Repository encapsulates payroll run storage.
type Repository interface {
	Create(ctx context.Context, in CreateInput) (Run, error)
	Get(ctx context.Context, id int64) (Run, error)
	List(ctx context.Context, page, perPage int) ([]Run, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository scopes run approval and its ledger posting to one transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Run, error)
	MarkApproved(ctx context.Context, id, approvedBy int64, at time.Time, entryID int64) error
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

const runColumns = `id, period, description, gross, net, withholding, status, created_by,
approved_by, approved_at, entry_id, created_at, updated_at`

func scanRun(row pgx.Row) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Period, &r.Description, &r.Gross, &r.Net, &r.Withholding, &r.Status, &r.CreatedBy,
		&r.ApprovedBy, &r.ApprovedAt, &r.EntryID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}
	return r, nil
}

func (r *repository) Create(ctx context.Context, in CreateInput) (Run, error) {
	gross := in.Net + in.Withholding
	run, err := scanRun(r.pool.QueryRow(ctx, `INSERT INTO payroll_runs
(period, description, gross, net, withholding, status, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+runColumns,
		in.Period, in.Description, fmt.Sprintf("%.2f", gross), fmt.Sprintf("%.2f", in.Net),
		fmt.Sprintf("%.2f", in.Withholding), RunStatusDraft, in.CreatedBy))
	if err != nil {
		if isUniqueViolation(err) {
			return Run{}, ErrDuplicatePeriod
		}
		return Run{}, err
	}
	return run, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Run, error) {
	return scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM payroll_runs WHERE id=$1`, id))
}

func (r *repository) List(ctx context.Context, page, perPage int) ([]Run, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payroll_runs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	p := internalshared.NewPagination(page, perPage, total)
	rows, err := r.pool.Query(ctx, `SELECT `+runColumns+` FROM payroll_runs
ORDER BY period DESC, id DESC LIMIT $1 OFFSET $2`, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, run)
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

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Run, error) {
	return scanRun(r.tx.QueryRow(ctx, `SELECT `+runColumns+` FROM payroll_runs WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) MarkApproved(ctx context.Context, id, approvedBy int64, at time.Time, entryID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE payroll_runs SET status=$2, approved_by=$3, approved_at=$4, entry_id=$5, updated_at=NOW()
WHERE id=$1`, id, RunStatusApproved, approvedBy, at, entryID)
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
