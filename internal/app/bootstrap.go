package app

import (
	"errors"
	"time"

	"github.com/sportfabrik/bonuscard/internal/config"
	"github.com/sportfabrik/bonuscard/internal/logger"
	"github.com/sportfabrik/bonuscard/internal/provider"
	"github.com/sportfabrik/bonuscard/internal/router"
	"github.com/sportfabrik/bonuscard/internal/worker"
)

// BuildRunner assembles the services for the requested mode.
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	container := provider.NewContainer(cfg)

	var services []Service

	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		services = append(services, NewHTTPService(addr, engine))
	}

	if mode == ModeAll || mode == ModeWorker {
		// The outbox poller always runs in worker mode; receipts queue
		// in the database regardless of redis availability.
		delivery := worker.NewEmailDeliveryService(
			container.ReceiptRepo,
			container.ReceiptRenderer,
			container.Mailer,
			worker.EmailDeliveryOptions{
				BatchSize:    cfg.Worker.BatchSize,
				Concurrency:  cfg.Worker.Concurrency,
				MaxRetries:   cfg.Worker.MaxRetries,
				RetryBackoff: time.Duration(cfg.Worker.RetryBackoffSeconds) * time.Second,
				PollInterval: time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
			},
		)
		services = append(services, delivery)

		if cfg.Queue.Enabled {
			consumer := worker.NewConsumer(container)
			maintenance, err := worker.NewService(&cfg.Queue, consumer)
			if err != nil {
				return nil, err
			}
			services = append(services, maintenance)
		} else {
			logger.Infow("app_maintenance_queue_disabled")
		}
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), nil
}

// Run is the application entry point.
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
