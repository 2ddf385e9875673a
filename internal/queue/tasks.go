package queue

import (
	"encoding/json"
	"time"

	"github.com/sportfabrik/bonuscard/internal/constants"

	"github.com/hibiken/asynq"
)

// TaskIdempotencyPurge removes expired idempotency records.
const TaskIdempotencyPurge = constants.TaskIdempotencyPurge

// IdempotencyPurgePayload is the purge task payload.
type IdempotencyPurgePayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewIdempotencyPurgeTask creates a purge task.
func NewIdempotencyPurgeTask(payload IdempotencyPurgePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyPurge, body), nil
}
