package service

import (
	"time"

	"github.com/sportfabrik/bonuscard/internal/logger"
	"github.com/sportfabrik/bonuscard/internal/repository"
)

// MaintenanceService runs periodic housekeeping jobs.
type MaintenanceService struct {
	idemRepo repository.IdempotencyRepository
}

// NewMaintenanceService creates a maintenance service.
func NewMaintenanceService(idemRepo repository.IdempotencyRepository) *MaintenanceService {
	return &MaintenanceService{idemRepo: idemRepo}
}

// PurgeExpiredIdempotency removes idempotency records past their TTL.
// Lookups already ignore expired rows, this just keeps the table from
// growing without bound.
func (s *MaintenanceService) PurgeExpiredIdempotency() (int64, error) {
	purged, err := s.idemRepo.DeleteExpired(time.Now())
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		logger.Infow("idempotency_records_purged", "count", purged)
	}
	return purged, nil
}
