package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sportfabrik/bonuscard/internal/constants"
	"github.com/sportfabrik/bonuscard/internal/models"
	"github.com/sportfabrik/bonuscard/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupReportTest(t *testing.T) (*ReportService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:report_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Card{}, &models.CardEvent{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewReportService(repository.NewCardEventRepository(db)), db
}

func TestWriteEventsCSV(t *testing.T) {
	svc, db := setupReportTest(t)

	card := &models.Card{
		ID:       "card-1",
		Serial:   "BC-2026-000007",
		MemberID: "member-1",
		Product:  constants.ProductCyclingBonus,
		State:    constants.CardStateActive,
		IssuedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := db.Create(card).Error; err != nil {
		t.Fatalf("create card failed: %v", err)
	}
	reason := constants.RollbackReasonMistake
	events := []models.CardEvent{
		{CardID: card.ID, EventType: constants.EventTypeDeduct, Delta: -1, StaffUsername: "empfang1", CreatedAt: time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)},
		{CardID: card.ID, EventType: constants.EventTypeRollback, Delta: 1, StaffUsername: "admin", ReasonCode: &reason, CreatedAt: time.Date(2026, 2, 3, 11, 0, 0, 0, time.UTC)},
		// Outside the report window.
		{CardID: card.ID, EventType: constants.EventTypeDeduct, Delta: -1, StaffUsername: "empfang1", CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	for i := range events {
		if err := db.Create(&events[i]).Error; err != nil {
			t.Fatalf("create event failed: %v", err)
		}
	}

	var buf bytes.Buffer
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC)
	if err := svc.WriteEventsCSV(&buf, from, to); err != nil {
		t.Fatalf("write csv failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("want header plus 2 rows, got %d records", len(records))
	}
	wantHeader := []string{"serial", "staff_username", "product", "timestamp", "event_type", "delta", "reason_code"}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Fatalf("header col %d want %s got %s", i, col, records[0][i])
		}
	}
	deduct := records[1]
	if deduct[0] != "BC-2026-000007" || deduct[1] != "empfang1" || deduct[4] != constants.EventTypeDeduct || deduct[5] != "-1" || deduct[6] != "" {
		t.Fatalf("deduct row unexpected: %v", deduct)
	}
	if deduct[3] != "2026-02-02T10:00:00Z" {
		t.Fatalf("timestamp should be RFC3339 UTC, got %s", deduct[3])
	}
	rollback := records[2]
	if rollback[4] != constants.EventTypeRollback || rollback[5] != "1" || rollback[6] != constants.RollbackReasonMistake {
		t.Fatalf("rollback row unexpected: %v", rollback)
	}
}

func TestWriteEventsCSVInvalidRange(t *testing.T) {
	svc, _ := setupReportTest(t)
	var buf bytes.Buffer

	from := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	if err := svc.WriteEventsCSV(&buf, from, to); !errors.Is(err, ErrReportRangeInvalid) {
		t.Fatalf("want ErrReportRangeInvalid got %v", err)
	}
	if err := svc.WriteEventsCSV(&buf, time.Time{}, to); !errors.Is(err, ErrReportRangeInvalid) {
		t.Fatalf("zero from: want ErrReportRangeInvalid got %v", err)
	}
}

func TestWriteEventsCSVEmptyWindow(t *testing.T) {
	svc, _ := setupReportTest(t)
	var buf bytes.Buffer

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if err := svc.WriteEventsCSV(&buf, from, from.AddDate(0, 0, 7)); err != nil {
		t.Fatalf("write csv failed: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("empty window should emit only the header, got %d records", len(records))
	}
}
