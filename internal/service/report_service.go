package service

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/sportfabrik/bonuscard/internal/repository"
)

// ReportService builds the CSV event export for admins.
type ReportService struct {
	eventRepo repository.CardEventRepository
}

// NewReportService creates a report service.
func NewReportService(eventRepo repository.CardEventRepository) *ReportService {
	return &ReportService{eventRepo: eventRepo}
}

var reportHeader = []string{
	"serial",
	"staff_username",
	"product",
	"timestamp",
	"event_type",
	"delta",
	"reason_code",
}

// WriteEventsCSV streams all card events in [from, to] as CSV.
func (s *ReportService) WriteEventsCSV(w io.Writer, from, to time.Time) error {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return ErrReportRangeInvalid
	}
	rows, err := s.eventRepo.ListForReport(repository.CardEventReportFilter{From: from, To: to})
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(reportHeader); err != nil {
		return err
	}
	for _, row := range rows {
		reason := ""
		if row.ReasonCode != nil {
			reason = *row.ReasonCode
		}
		record := []string{
			row.Serial,
			row.StaffUsername,
			row.Product,
			row.CreatedAt.UTC().Format(time.RFC3339),
			row.EventType,
			strconv.Itoa(row.Delta),
			reason,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
