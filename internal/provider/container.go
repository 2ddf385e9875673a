package provider

import (
	"time"

	"github.com/sportfabrik/bonuscard/internal/cache"
	"github.com/sportfabrik/bonuscard/internal/config"
	"github.com/sportfabrik/bonuscard/internal/logger"
	"github.com/sportfabrik/bonuscard/internal/models"
	"github.com/sportfabrik/bonuscard/internal/queue"
	"github.com/sportfabrik/bonuscard/internal/repository"
	"github.com/sportfabrik/bonuscard/internal/service"
)

// Container wires repositories and services together.
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Location    *time.Location

	// Repositories
	MemberRepo      repository.MemberRepository
	StaffRepo       repository.StaffRepository
	CardRepo        repository.CardRepository
	CardEventRepo   repository.CardEventRepository
	IdempotencyRepo repository.IdempotencyRepository
	ReceiptRepo     repository.EmailReceiptRepository

	// Services
	CardService         *service.CardService
	ReceiptAdminService *service.ReceiptAdminService
	ReportService       *service.ReportService
	MaintenanceService  *service.MaintenanceService
	ReceiptRenderer     *service.ReceiptRenderer
	Mailer              service.Mailer
}

// NewContainer builds the container.
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Location:    loadLocation(cfg.Card.Timezone),
	}

	c.initRepositories()
	c.initServices()

	return c
}

func loadLocation(name string) *time.Location {
	if name == "" {
		name = "Europe/Berlin"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warnw("provider_load_location_failed", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}

func (c *Container) initRepositories() {
	db := models.DB
	c.MemberRepo = repository.NewMemberRepository(db)
	c.StaffRepo = repository.NewStaffRepository(db)
	c.CardRepo = repository.NewCardRepository(db)
	c.CardEventRepo = repository.NewCardEventRepository(db)
	c.IdempotencyRepo = repository.NewIdempotencyRepository(db)
	c.ReceiptRepo = repository.NewEmailReceiptRepository(db)
}

func (c *Container) initServices() {
	cfg := c.Config

	c.CardService = service.NewCardService(
		c.CardRepo,
		c.MemberRepo,
		c.CardEventRepo,
		c.IdempotencyRepo,
		c.ReceiptRepo,
		service.CardServiceOptions{
			BonusInitialUses:    cfg.Card.BonusInitialUses,
			BonusValidityMonths: cfg.Card.BonusValidityMonths,
			Location:            c.Location,
		},
	)
	c.ReceiptAdminService = service.NewReceiptAdminService(c.ReceiptRepo)
	c.ReportService = service.NewReportService(c.CardEventRepo)
	c.MaintenanceService = service.NewMaintenanceService(c.IdempotencyRepo)
	c.ReceiptRenderer = service.NewReceiptRenderer(c.Location, cfg.Card.BonusInitialUses)
	c.Mailer = service.NewMailer(&cfg.Email)
}
