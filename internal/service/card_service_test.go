package service

import (
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

func setupCardServiceTest(t *testing.T) (*CardService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:card_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Member{},
		&models.Staff{},
		&models.Card{},
		&models.CardEvent{},
		&models.SerialCounter{},
		&models.IdempotencyRecord{},
		&models.EmailReceipt{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	svc := NewCardService(
		repository.NewCardRepository(db),
		repository.NewMemberRepository(db),
		repository.NewCardEventRepository(db),
		repository.NewIdempotencyRepository(db),
		repository.NewEmailReceiptRepository(db),
		CardServiceOptions{Location: time.UTC},
	)
	return svc, db
}

func createTestMember(t *testing.T, db *gorm.DB, active bool) *models.Member {
	t.Helper()
	member := &models.Member{
		Name:     "Anna Schmidt",
		Email:    fmt.Sprintf("member_%d@example.de", time.Now().UnixNano()),
		IsActive: active,
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("create member failed: %v", err)
	}
	return member
}

func issueTestCard(t *testing.T, svc *CardService, db *gorm.DB, product string) *CardSnapshot {
	t.Helper()
	member := createTestMember(t, db, true)
	snapshot, err := svc.IssueCard(IssueCardInput{
		MemberID:      member.ID,
		Product:       product,
		StaffUsername: "empfang1",
	})
	if err != nil {
		t.Fatalf("issue card failed: %v", err)
	}
	return snapshot
}

func TestIssueCardBonus(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	year := time.Now().UTC().Year()
	wantSerial := fmt.Sprintf("BC-%d-000001", year)
	if snapshot.Serial != wantSerial {
		t.Fatalf("serial want %s got %s", wantSerial, snapshot.Serial)
	}
	if snapshot.State != constants.CardStateActive {
		t.Fatalf("state want Active got %s", snapshot.State)
	}
	if snapshot.RemainingUses == nil || *snapshot.RemainingUses != 11 {
		t.Fatalf("remaining uses want 11 got %v", snapshot.RemainingUses)
	}
	if snapshot.ExpiresAt == nil {
		t.Fatal("bonus card should carry an expiry")
	}
	wantExpiry := snapshot.IssuedAt.AddDate(0, 12, 0)
	if !snapshot.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expiry want %v got %v", wantExpiry, *snapshot.ExpiresAt)
	}

	var events []models.CardEvent
	if err := db.Where("card_id = ?", snapshot.ID).Find(&events).Error; err != nil {
		t.Fatalf("load events failed: %v", err)
	}
	if len(events) != 1 || events[0].EventType != constants.EventTypeIssued || events[0].Delta != 0 {
		t.Fatalf("expected one Issued event with delta 0, got %+v", events)
	}
}

func TestIssueCardUnlimited(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingUnlimited)

	if snapshot.RemainingUses != nil {
		t.Fatalf("unlimited card should have nil remaining uses, got %d", *snapshot.RemainingUses)
	}
	if snapshot.ExpiresAt == nil {
		t.Fatal("unlimited card should expire at end of issue month")
	}
	issued := snapshot.IssuedAt
	firstOfNext := time.Date(issued.Year(), issued.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	wantExpiry := firstOfNext.Add(-time.Millisecond)
	if !snapshot.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expiry want %v got %v", wantExpiry, *snapshot.ExpiresAt)
	}
}

func TestIssueCardSerialSequence(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	first := issueTestCard(t, svc, db, constants.ProductCyclingBonus)
	second := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	year := time.Now().UTC().Year()
	if first.Serial != fmt.Sprintf("BC-%d-000001", year) {
		t.Fatalf("first serial unexpected: %s", first.Serial)
	}
	if second.Serial != fmt.Sprintf("BC-%d-000002", year) {
		t.Fatalf("second serial unexpected: %s", second.Serial)
	}
}

func TestIssueCardCustomExpiry(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	member := createTestMember(t, db, true)

	custom := time.Date(2027, 6, 30, 23, 59, 59, 0, time.UTC)
	snapshot, err := svc.IssueCard(IssueCardInput{
		MemberID:      member.ID,
		Product:       constants.ProductCyclingBonus,
		StaffUsername: "empfang1",
		ExpiresAt:     &custom,
	})
	if err != nil {
		t.Fatalf("issue card failed: %v", err)
	}
	if snapshot.ExpiresAt == nil || !snapshot.ExpiresAt.Equal(custom) {
		t.Fatalf("expiry want %v got %v", custom, snapshot.ExpiresAt)
	}
}

func TestIssueCardInactiveMember(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	member := createTestMember(t, db, false)

	_, err := svc.IssueCard(IssueCardInput{MemberID: member.ID, Product: constants.ProductCyclingBonus})
	if !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("want ErrMemberNotFound got %v", err)
	}
}

func TestIssueCardInvalidProduct(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	member := createTestMember(t, db, true)

	_, err := svc.IssueCard(IssueCardInput{MemberID: member.ID, Product: "yoga_unlimited"})
	if !errors.Is(err, ErrInvalidProduct) {
		t.Fatalf("want ErrInvalidProduct got %v", err)
	}
}

func TestDeductWithoutKey(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	// The key is optional; without one every call deducts.
	for i := 0; i < 2; i++ {
		if _, err := svc.Deduct(DeductInput{CardID: snapshot.ID, StaffUsername: "empfang1"}); err != nil {
			t.Fatalf("deduct %d failed: %v", i+1, err)
		}
	}

	var card models.Card
	if err := db.First(&card, "id = ?", snapshot.ID).Error; err != nil {
		t.Fatalf("load card failed: %v", err)
	}
	if card.RemainingUses == nil || *card.RemainingUses != 9 {
		t.Fatalf("remaining uses want 9 got %v", card.RemainingUses)
	}
	var eventCount int64
	db.Model(&models.CardEvent{}).Where("card_id = ? AND event_type = ?", snapshot.ID, constants.EventTypeDeduct).Count(&eventCount)
	if eventCount != 2 {
		t.Fatalf("want 2 deduct events got %d", eventCount)
	}
	var recordCount int64
	db.Model(&models.IdempotencyRecord{}).Count(&recordCount)
	if recordCount != 0 {
		t.Fatalf("keyless deducts must not store idempotency records, got %d", recordCount)
	}
}

func TestRollbackWithoutKeyCapsAtAllotment(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	// Double rollback without a key is allowed and simply caps.
	for i := 0; i < 2; i++ {
		restored, err := svc.Rollback(RollbackInput{
			CardID:        snapshot.ID,
			StaffUsername: "admin",
			ReasonCode:    constants.RollbackReasonMistake,
		})
		if err != nil {
			t.Fatalf("rollback %d failed: %v", i+1, err)
		}
		if restored.RemainingUses == nil || *restored.RemainingUses != 11 {
			t.Fatalf("remaining uses should stay capped at 11, got %v", restored.RemainingUses)
		}
	}
	var eventCount int64
	db.Model(&models.CardEvent{}).Where("card_id = ? AND event_type = ?", snapshot.ID, constants.EventTypeRollback).Count(&eventCount)
	if eventCount != 2 {
		t.Fatalf("want 2 rollback events got %d", eventCount)
	}
}

func TestDeductBonusDownToUsedUp(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	var last *CardSnapshot
	for i := 0; i < 11; i++ {
		var err error
		last, err = svc.Deduct(DeductInput{
			CardID:         snapshot.ID,
			StaffUsername:  "empfang1",
			IdempotencyKey: fmt.Sprintf("visit-%d", i),
		})
		if err != nil {
			t.Fatalf("deduct %d failed: %v", i+1, err)
		}
	}
	if last.RemainingUses == nil || *last.RemainingUses != 0 {
		t.Fatalf("remaining uses want 0 got %v", last.RemainingUses)
	}
	if last.State != constants.CardStateUsedUp {
		t.Fatalf("state want UsedUp got %s", last.State)
	}

	_, err := svc.Deduct(DeductInput{
		CardID:         snapshot.ID,
		StaffUsername:  "empfang1",
		IdempotencyKey: "visit-12",
	})
	if !errors.Is(err, ErrCardStateInvalid) {
		t.Fatalf("deduct on used-up card want ErrCardStateInvalid got %v", err)
	}
}

func TestDeductIdempotentReplay(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	first, err := svc.Deduct(DeductInput{
		CardID:         snapshot.ID,
		StaffUsername:  "empfang1",
		IdempotencyKey: "scan-1",
	})
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	second, err := svc.Deduct(DeductInput{
		CardID:         snapshot.ID,
		StaffUsername:  "empfang1",
		IdempotencyKey: "scan-1",
	})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if *first.RemainingUses != *second.RemainingUses {
		t.Fatalf("replay should return the stored result, got %d vs %d", *first.RemainingUses, *second.RemainingUses)
	}

	var card models.Card
	if err := db.First(&card, "id = ?", snapshot.ID).Error; err != nil {
		t.Fatalf("load card failed: %v", err)
	}
	if card.RemainingUses == nil || *card.RemainingUses != 10 {
		t.Fatalf("card should be deducted exactly once, remaining %v", card.RemainingUses)
	}

	var eventCount int64
	db.Model(&models.CardEvent{}).Where("card_id = ? AND event_type = ?", snapshot.ID, constants.EventTypeDeduct).Count(&eventCount)
	if eventCount != 1 {
		t.Fatalf("want 1 deduct event got %d", eventCount)
	}
	var receiptCount int64
	db.Model(&models.EmailReceipt{}).Where("card_id = ?", snapshot.ID).Count(&receiptCount)
	if receiptCount != 1 {
		t.Fatalf("want 1 receipt got %d", receiptCount)
	}
}

func TestDeductReplayReturnsCachedAfterStateChange(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	first, err := svc.Deduct(DeductInput{
		CardID:         snapshot.ID,
		StaffUsername:  "empfang1",
		IdempotencyKey: "scan-1",
	})
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}

	// The guard is consulted under the card lock before any state
	// checks, so a replay short-circuits even after the card expired.
	past := time.Now().UTC().Add(-time.Hour)
	if err := db.Model(&models.Card{}).Where("id = ?", snapshot.ID).Update("expires_at", past).Error; err != nil {
		t.Fatalf("backdate expiry failed: %v", err)
	}

	replay, err := svc.Deduct(DeductInput{
		CardID:         snapshot.ID,
		StaffUsername:  "empfang1",
		IdempotencyKey: "scan-1",
	})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if *replay.RemainingUses != *first.RemainingUses {
		t.Fatalf("replay should return the stored result, got %d vs %d", *replay.RemainingUses, *first.RemainingUses)
	}

	var eventCount int64
	db.Model(&models.CardEvent{}).Where("card_id = ? AND event_type = ?", snapshot.ID, constants.EventTypeDeduct).Count(&eventCount)
	if eventCount != 1 {
		t.Fatalf("replay must not deduct again, want 1 event got %d", eventCount)
	}
}

func TestDeductQueuesReceipt(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	if _, err := svc.Deduct(DeductInput{
		CardID:         snapshot.ID,
		StaffUsername:  "empfang1",
		IdempotencyKey: "scan-1",
	}); err != nil {
		t.Fatalf("deduct failed: %v", err)
	}

	var receipt models.EmailReceipt
	if err := db.First(&receipt, "card_id = ?", snapshot.ID).Error; err != nil {
		t.Fatalf("load receipt failed: %v", err)
	}
	if receipt.Status != constants.ReceiptStatusQueued {
		t.Fatalf("receipt status want Queued got %s", receipt.Status)
	}
	if receipt.ToEmail == "" || receipt.MemberName == "" {
		t.Fatalf("receipt snapshot missing recipient: %+v", receipt)
	}
	if receipt.CardSerial != snapshot.Serial {
		t.Fatalf("receipt serial want %s got %s", snapshot.Serial, receipt.CardSerial)
	}
	if receipt.ProductLabel != constants.ProductLabelCyclingBonus {
		t.Fatalf("product label want %s got %s", constants.ProductLabelCyclingBonus, receipt.ProductLabel)
	}
	if receipt.EventType != constants.EventTypeDeduct {
		t.Fatalf("event type want Deduct got %s", receipt.EventType)
	}
	if receipt.RemainingUses == nil || *receipt.RemainingUses != 10 {
		t.Fatalf("receipt remaining uses want 10 got %v", receipt.RemainingUses)
	}
}

func TestDeductUnlimitedKeepsNilUses(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingUnlimited)

	result, err := svc.Deduct(DeductInput{
		CardID:         snapshot.ID,
		StaffUsername:  "empfang1",
		IdempotencyKey: "scan-1",
	})
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if result.RemainingUses != nil {
		t.Fatalf("unlimited card should keep nil remaining uses, got %d", *result.RemainingUses)
	}
	if result.State != constants.CardStateActive {
		t.Fatalf("state want Active got %s", result.State)
	}
}

func TestDeductExpiredCard(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	past := time.Now().UTC().Add(-time.Hour)
	if err := db.Model(&models.Card{}).Where("id = ?", snapshot.ID).Update("expires_at", past).Error; err != nil {
		t.Fatalf("backdate expiry failed: %v", err)
	}

	_, err := svc.Deduct(DeductInput{
		CardID:         snapshot.ID,
		StaffUsername:  "empfang1",
		IdempotencyKey: "scan-1",
	})
	if !errors.Is(err, ErrCardExpired) {
		t.Fatalf("want ErrCardExpired got %v", err)
	}

	// The flip to Expired persists even though the deduction failed.
	var card models.Card
	if err := db.First(&card, "id = ?", snapshot.ID).Error; err != nil {
		t.Fatalf("load card failed: %v", err)
	}
	if card.State != constants.CardStateExpired {
		t.Fatalf("card state want Expired got %s", card.State)
	}
}

func TestDeductCancelledCard(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	if _, err := svc.Cancel(CancelInput{CardID: snapshot.ID, StaffUsername: "admin"}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	_, err := svc.Deduct(DeductInput{
		CardID:         snapshot.ID,
		StaffUsername:  "empfang1",
		IdempotencyKey: "scan-1",
	})
	if !errors.Is(err, ErrCardStateInvalid) {
		t.Fatalf("want ErrCardStateInvalid got %v", err)
	}
}

func TestDeductUnknownCard(t *testing.T) {
	svc, _ := setupCardServiceTest(t)
	_, err := svc.Deduct(DeductInput{
		CardID:         "no-such-card",
		StaffUsername:  "empfang1",
		IdempotencyKey: "scan-1",
	})
	if !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("want ErrCardNotFound got %v", err)
	}
}

func TestRollbackRestoresUseAndCaps(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	if _, err := svc.Deduct(DeductInput{
		CardID:         snapshot.ID,
		StaffUsername:  "empfang1",
		IdempotencyKey: "scan-1",
	}); err != nil {
		t.Fatalf("deduct failed: %v", err)
	}

	restored, err := svc.Rollback(RollbackInput{
		CardID:         snapshot.ID,
		StaffUsername:  "admin",
		ReasonCode:     constants.RollbackReasonMistake,
		IdempotencyKey: "fix-1",
	})
	if err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	if restored.RemainingUses == nil || *restored.RemainingUses != 11 {
		t.Fatalf("remaining uses want 11 got %v", restored.RemainingUses)
	}

	// A second correction cannot push the balance past the allotment.
	capped, err := svc.Rollback(RollbackInput{
		CardID:         snapshot.ID,
		StaffUsername:  "admin",
		ReasonCode:     constants.RollbackReasonOther,
		Note:           "doppelte Korrektur",
		IdempotencyKey: "fix-2",
	})
	if err != nil {
		t.Fatalf("second rollback failed: %v", err)
	}
	if capped.RemainingUses == nil || *capped.RemainingUses != 11 {
		t.Fatalf("remaining uses should stay capped at 11, got %v", capped.RemainingUses)
	}
}

func TestRollbackReactivatesUsedUpCard(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	zero := 0
	if err := db.Model(&models.Card{}).Where("id = ?", snapshot.ID).Updates(map[string]interface{}{
		"remaining_uses": &zero,
		"state":          constants.CardStateUsedUp,
	}).Error; err != nil {
		t.Fatalf("force used-up failed: %v", err)
	}

	restored, err := svc.Rollback(RollbackInput{
		CardID:         snapshot.ID,
		StaffUsername:  "admin",
		ReasonCode:     constants.RollbackReasonCardLost,
		IdempotencyKey: "fix-1",
	})
	if err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	if restored.State != constants.CardStateActive {
		t.Fatalf("state want Active got %s", restored.State)
	}
	if restored.RemainingUses == nil || *restored.RemainingUses != 1 {
		t.Fatalf("remaining uses want 1 got %v", restored.RemainingUses)
	}
}

func TestRollbackInvalidReason(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	_, err := svc.Rollback(RollbackInput{
		CardID:         snapshot.ID,
		StaffUsername:  "admin",
		ReasonCode:     "BECAUSE",
		IdempotencyKey: "fix-1",
	})
	if !errors.Is(err, ErrInvalidReasonCode) {
		t.Fatalf("want ErrInvalidReasonCode got %v", err)
	}
}

func TestRollbackIdempotentReplay(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	if _, err := svc.Deduct(DeductInput{
		CardID:         snapshot.ID,
		StaffUsername:  "empfang1",
		IdempotencyKey: "scan-1",
	}); err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Rollback(RollbackInput{
			CardID:         snapshot.ID,
			StaffUsername:  "admin",
			ReasonCode:     constants.RollbackReasonMistake,
			IdempotencyKey: "fix-1",
		}); err != nil {
			t.Fatalf("rollback attempt %d failed: %v", i+1, err)
		}
	}

	var eventCount int64
	db.Model(&models.CardEvent{}).Where("card_id = ? AND event_type = ?", snapshot.ID, constants.EventTypeRollback).Count(&eventCount)
	if eventCount != 1 {
		t.Fatalf("want 1 rollback event got %d", eventCount)
	}
}

func TestCancelCard(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	cancelled, err := svc.Cancel(CancelInput{CardID: snapshot.ID, StaffUsername: "admin"})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.State != constants.CardStateCancelled {
		t.Fatalf("state want Cancelled got %s", cancelled.State)
	}

	// Cancellation never emails the member.
	var receiptCount int64
	db.Model(&models.EmailReceipt{}).Where("card_id = ?", snapshot.ID).Count(&receiptCount)
	if receiptCount != 0 {
		t.Fatalf("cancel should not queue a receipt, got %d", receiptCount)
	}
}

func TestCancelCardRecordsReasonAndNote(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	if _, err := svc.Cancel(CancelInput{
		CardID:        snapshot.ID,
		StaffUsername: "admin",
		ReasonCode:    constants.RollbackReasonCardLost,
		Note:          "Karte als verloren gemeldet",
	}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	var event models.CardEvent
	if err := db.First(&event, "card_id = ? AND event_type = ?", snapshot.ID, constants.EventTypeCancel).Error; err != nil {
		t.Fatalf("load cancel event failed: %v", err)
	}
	if event.ReasonCode == nil || *event.ReasonCode != constants.RollbackReasonCardLost {
		t.Fatalf("reason code want %s got %v", constants.RollbackReasonCardLost, event.ReasonCode)
	}
	if event.Note == nil || *event.Note != "Karte als verloren gemeldet" {
		t.Fatalf("note not recorded, got %v", event.Note)
	}
}

func TestGetCardLazyExpiry(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	past := time.Now().UTC().Add(-time.Hour)
	if err := db.Model(&models.Card{}).Where("id = ?", snapshot.ID).Update("expires_at", past).Error; err != nil {
		t.Fatalf("backdate expiry failed: %v", err)
	}

	got, err := svc.GetCard(snapshot.ID)
	if err != nil {
		t.Fatalf("get card failed: %v", err)
	}
	if got.State != constants.CardStateExpired {
		t.Fatalf("read should flip expired card, state %s", got.State)
	}
	var card models.Card
	if err := db.First(&card, "id = ?", snapshot.ID).Error; err != nil {
		t.Fatalf("load card failed: %v", err)
	}
	if card.State != constants.CardStateExpired {
		t.Fatalf("expiry flip should persist, state %s", card.State)
	}
}

func TestFindCardBySerial(t *testing.T) {
	svc, db := setupCardServiceTest(t)
	snapshot := issueTestCard(t, svc, db, constants.ProductCyclingBonus)

	found, err := svc.FindCardBySerial(snapshot.Serial)
	if err != nil {
		t.Fatalf("find by serial failed: %v", err)
	}
	if found.ID != snapshot.ID {
		t.Fatalf("card id want %s got %s", snapshot.ID, found.ID)
	}

	if _, err := svc.FindCardBySerial("BC-1999-999999"); !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("want ErrCardNotFound got %v", err)
	}
}

func TestGetCardNotFound(t *testing.T) {
	svc, _ := setupCardServiceTest(t)
	if _, err := svc.GetCard("missing"); !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("want ErrCardNotFound got %v", err)
	}
}
