package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskUnitRemap is the task type for bulk free-text unit remapping.
	TaskUnitRemap = "migration:unit_remap"
)

// UnitRemapPayload identifies one queued migration run.
type UnitRemapPayload struct {
	RunID  string `json:"run_id"`
	Target string `json:"target"`
	Actor  string `json:"actor"`
}

// NewUnitRemapTask constructs an Asynq task for a migration run.
func NewUnitRemapTask(payload UnitRemapPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUnitRemap, data, asynq.Queue(QueueDefault)), nil
}
