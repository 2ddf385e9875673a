package worker

import (
	"context"
	"encoding/json"

	"github.com/sportfabrik/bonuscard/internal/logger"
	"github.com/sportfabrik/bonuscard/internal/provider"
	"github.com/sportfabrik/bonuscard/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer handles queued maintenance tasks.
type Consumer struct {
	*provider.Container
}

// NewConsumer creates a consumer.
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register wires task handlers onto the mux.
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskIdempotencyPurge, c.handleIdempotencyPurge)
}

func (c *Consumer) handleIdempotencyPurge(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_idempotency_purge_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.IdempotencyPurgePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_idempotency_purge_unmarshal_failed", "error", err)
		return err
	}
	if c.MaintenanceService == nil {
		logger.Warnw("worker_idempotency_purge_skip_service_nil")
		return nil
	}
	if _, err := c.MaintenanceService.PurgeExpiredIdempotency(); err != nil {
		logger.Warnw("worker_idempotency_purge_failed", "error", err)
		return err
	}
	return nil
}
