package worker

import (
	"context"
	"errors"
	"time"

	"github.com/sportfabrik/bonuscard/internal/config"
	"github.com/sportfabrik/bonuscard/internal/logger"
	"github.com/sportfabrik/bonuscard/internal/queue"

	"github.com/hibiken/asynq"
)

const defaultPurgeInterval = 10 * time.Minute

// Service runs the asynq consumer plus the scheduling loop that feeds
// it periodic maintenance tasks.
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	purgeInterval time.Duration
}

// NewService creates the maintenance queue service.
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	purgeInterval := defaultPurgeInterval
	if cfg.IdempotencyPurgeIntervalMins > 0 {
		purgeInterval = time.Duration(cfg.IdempotencyPurgeIntervalMins) * time.Minute
	}
	return &Service{
		name:          "worker",
		server:        server,
		mux:           mux,
		consumer:      consumer,
		purgeInterval: purgeInterval,
	}, nil
}

// Name returns the service name.
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start runs the consumer.
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	go s.runIdempotencyPurgeLoop(ctx)
	return s.server.Run(s.mux)
}

// Stop shuts the consumer down.
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

func (s *Service) runIdempotencyPurgeLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.QueueClient == nil {
		return
	}
	enqueueOnce := func() {
		err := s.consumer.QueueClient.EnqueueIdempotencyPurge(queue.IdempotencyPurgePayload{
			RequestedAt: time.Now(),
		})
		if err != nil {
			logger.Warnw("worker_idempotency_purge_enqueue_failed", "error", err)
		}
	}
	enqueueOnce()

	ticker := time.NewTicker(s.purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enqueueOnce()
		}
	}
}
