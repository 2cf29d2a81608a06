package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const integrityTolerance = 0.01

// NewLedgerIntegrityHandler returns the Asynq handler that verifies total
// posted debits equal total posted credits. An imbalance means a posting
// bypassed the engine's validation and needs manual investigation.
func NewLedgerIntegrityHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var debits, credits float64
		err := pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE e.status = 'POSTED'`).Scan(&debits, &credits)
		if err != nil {
			return err
		}
		if diff := math.Abs(debits - credits); diff > integrityTolerance {
			logger.Error("ledger out of balance",
				slog.Float64("debits", debits),
				slog.Float64("credits", credits),
				slog.Float64("difference", diff))
			return fmt.Errorf("jobs: ledger out of balance by %.2f", diff)
		}
		logger.Info("ledger integrity check passed",
			slog.Float64("debits", debits),
			slog.Float64("credits", credits))
		return nil
	}
}
