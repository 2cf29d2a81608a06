package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDepreciationRun posts monthly straight-line depreciation.
	TaskDepreciationRun = "assets:depreciation"
	// TaskLedgerIntegrity verifies that posted debits equal posted credits.
	TaskLedgerIntegrity = "ledger:integrity"
)

// DepreciationRunPayload selects the period to depreciate. An empty period
// means the month before the task fires.
type DepreciationRunPayload struct {
	Period  string `json:"period,omitempty"`
	ActorID int64  `json:"actor_id,omitempty"`
}

// NewDepreciationRunTask constructs an Asynq task.
func NewDepreciationRunTask(payload DepreciationRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDepreciationRun, data), nil
}

// NewLedgerIntegrityTask constructs an Asynq task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}
