package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fin/meridian/internal/ledger/shared"
	"github.com/meridian-fin/meridian/internal/platform/db"
	platformshared "github.com/meridian-fin/meridian/internal/shared"
)

const defaultCurrency = "USD"

// CreateInput carries fields for explicit account creation.
type CreateInput struct {
	Code     string
	Name     string
	Type     AccountType
	ParentID *int64
	Currency string
}

// Repository encapsulates chart of accounts storage.
type Repository interface {
	GetByID(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	// GetOrCreate returns the account with the given code, creating it as a
	// system account if absent. Safe under concurrent callers: uniqueness is
	// enforced by the accounts_code unique constraint, not a check-then-insert.
	GetOrCreate(ctx context.Context, code, name string, accountType AccountType) (Account, error)
	Create(ctx context.Context, in CreateInput) (Account, error)
	List(ctx context.Context, page, perPage int) ([]Account, int, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type repository struct {
	db db.Querier
}

// NewRepository builds a pool-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

// NewTx builds a repository bound to an open transaction.
func NewTx(tx pgx.Tx) Repository {
	return &repository{db: tx}
}

const accountColumns = `id, code, name, type, parent_id, currency, is_active, is_system, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Currency, &a.IsActive, &a.IsSystem, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
}

func (r *repository) GetOrCreate(ctx context.Context, code, name string, accountType AccountType) (Account, error) {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (code, name, type, currency, is_active, is_system)
VALUES ($1,$2,$3,$4,TRUE,TRUE)
ON CONFLICT (code) DO NOTHING`, code, name, accountType, defaultCurrency)
	if err != nil {
		return Account{}, err
	}
	return r.GetByCode(ctx, code)
}

func (r *repository) Create(ctx context.Context, in CreateInput) (Account, error) {
	currency := in.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (code, name, type, parent_id, currency, is_active, is_system)
VALUES ($1,$2,$3,$4,$5,TRUE,FALSE)
RETURNING `+accountColumns, in.Code, in.Name, in.Type, in.ParentID, currency)
	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, shared.ErrDuplicateCode
		}
		return Account{}, err
	}
	return account, nil
}

func (r *repository) List(ctx context.Context, page, perPage int) ([]Account, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	p := platformshared.NewPagination(page, perPage, total)
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code LIMIT $1 OFFSET $2`, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Currency, &a.IsActive, &a.IsSystem, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, a)
	}
	return accounts, total, rows.Err()
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}
