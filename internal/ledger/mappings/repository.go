package mappings

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fin/meridian/internal/ledger/shared"
	"github.com/meridian-fin/meridian/internal/platform/db"
)

// Repository encapsulates account mapping storage.
type Repository interface {
	Get(ctx context.Context, module, category string) (AccountMapping, error)
	Upsert(ctx context.Context, mapping AccountMapping) error
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

// Get resolves an account mapping for the specified module and category.
func (r *repository) Get(ctx context.Context, module, category string) (AccountMapping, error) {
	if module == "" || category == "" {
		return AccountMapping{}, errors.New("ledger: module and category required")
	}
	var mapping AccountMapping
	err := r.db.QueryRow(ctx, `SELECT module, category, account_id, created_at, updated_at
FROM account_mappings WHERE module=$1 AND category=$2`, normalize(module), normalize(category)).
		Scan(&mapping.Module, &mapping.Category, &mapping.AccountID, &mapping.CreatedAt, &mapping.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, shared.ErrMappingNotFound
		}
		return AccountMapping{}, err
	}
	return mapping, nil
}

// Upsert installs or replaces an administrator-managed mapping.
func (r *repository) Upsert(ctx context.Context, mapping AccountMapping) error {
	if mapping.Module == "" || mapping.Category == "" || mapping.AccountID == 0 {
		return errors.New("ledger: module, category and account required")
	}
	_, err := r.db.Exec(ctx, `INSERT INTO account_mappings (module, category, account_id)
VALUES ($1,$2,$3)
ON CONFLICT (module, category) DO UPDATE SET account_id=EXCLUDED.account_id, updated_at=NOW()`,
		normalize(mapping.Module), normalize(mapping.Category), mapping.AccountID)
	return err
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
