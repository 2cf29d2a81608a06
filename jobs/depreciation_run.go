package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-fin/meridian/internal/assets"
)

// systemActorID attributes scheduled postings in posted_by/created_by.
const systemActorID = 1

// NewDepreciationRunHandler returns the Asynq handler for scheduled and
// on-demand depreciation runs.
func NewDepreciationRunHandler(svc *assets.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload DepreciationRunPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}
		period := payload.Period
		if period == "" {
			// the cron fires on the 1st; charge the month that just ended
			period = time.Now().UTC().AddDate(0, -1, 0).Format("2006-01")
		}
		actorID := payload.ActorID
		if actorID == 0 {
			actorID = systemActorID
		}
		result, err := svc.RunDepreciation(ctx, period, actorID)
		if err != nil {
			logger.Error("scheduled depreciation run failed",
				slog.String("period", period),
				slog.Any("error", err))
			return err
		}
		logger.Info("scheduled depreciation run",
			slog.String("period", result.Period),
			slog.Int("processed", result.Processed),
			slog.Int("skipped", result.Skipped),
			slog.Int("failed", result.Failed),
			slog.Float64("total", result.TotalAmount))
		if result.Failed > 0 {
			return fmt.Errorf("jobs: depreciation run left %d assets uncharged", result.Failed)
		}
		return nil
	}
}
