package worker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sportfabrik/bonuscard/internal/constants"
	"github.com/sportfabrik/bonuscard/internal/models"
	"github.com/sportfabrik/bonuscard/internal/repository"
	"github.com/sportfabrik/bonuscard/internal/service"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type stubMailer struct {
	mu      sync.Mutex
	sendErr error
	sent    []service.OutboundEmail
}

func (m *stubMailer) Send(email service.OutboundEmail) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, email)
	return fmt.Sprintf("<stub-%d@test>", len(m.sent)), nil
}

func (m *stubMailer) Verify() error { return nil }

func (m *stubMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func setupEmailWorkerTest(t *testing.T, mailer service.Mailer, opts EmailDeliveryOptions) (*EmailDeliveryService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:email_worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.EmailReceipt{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	repo := repository.NewEmailReceiptRepository(db)
	renderer := service.NewReceiptRenderer(time.UTC, 11)
	return NewEmailDeliveryService(repo, renderer, mailer, opts), db
}

func queuedReceipt(t *testing.T, db *gorm.DB, mutate func(r *models.EmailReceipt)) *models.EmailReceipt {
	t.Helper()
	remaining := 9
	receipt := &models.EmailReceipt{
		CardID:        "card-1",
		EventID:       1,
		Status:        constants.ReceiptStatusQueued,
		NextAttemptAt: time.Now().Add(-time.Second),
		ToEmail:       "anna.schmidt@example.de",
		MemberName:    "Anna Schmidt",
		CardSerial:    "BC-2026-000001",
		ProductLabel:  constants.ProductLabelCyclingBonus,
		EventType:     constants.EventTypeDeduct,
		EventTime:     time.Now().Add(-time.Minute),
		RemainingUses: &remaining,
	}
	if mutate != nil {
		mutate(receipt)
	}
	if err := db.Create(receipt).Error; err != nil {
		t.Fatalf("create receipt failed: %v", err)
	}
	return receipt
}

func reloadReceipt(t *testing.T, db *gorm.DB, id uint) *models.EmailReceipt {
	t.Helper()
	var receipt models.EmailReceipt
	if err := db.First(&receipt, id).Error; err != nil {
		t.Fatalf("reload receipt failed: %v", err)
	}
	return &receipt
}

func TestDeliverSendsReceipt(t *testing.T) {
	mailer := &stubMailer{}
	svc, db := setupEmailWorkerTest(t, mailer, EmailDeliveryOptions{})
	receipt := queuedReceipt(t, db, nil)

	svc.deliver(receipt)

	got := reloadReceipt(t, db, receipt.ID)
	if got.Status != constants.ReceiptStatusSent {
		t.Fatalf("status want Sent got %s", got.Status)
	}
	if got.SentAt == nil {
		t.Fatal("sent_at should be set")
	}
	if got.MessageID == nil || *got.MessageID == "" {
		t.Fatal("message id should be recorded")
	}
	if got.LastError != nil {
		t.Fatalf("last error should be nil, got %q", *got.LastError)
	}
	if mailer.sentCount() != 1 {
		t.Fatalf("mailer should be called once, got %d", mailer.sentCount())
	}
}

func TestDeliverTransientFailureReschedules(t *testing.T) {
	mailer := &stubMailer{sendErr: fmt.Errorf("dial tcp: connection refused")}
	svc, db := setupEmailWorkerTest(t, mailer, EmailDeliveryOptions{MaxRetries: 3, RetryBackoff: time.Minute})
	receipt := queuedReceipt(t, db, nil)

	before := time.Now()
	svc.deliver(receipt)

	got := reloadReceipt(t, db, receipt.ID)
	if got.Status != constants.ReceiptStatusQueued {
		t.Fatalf("status want Queued got %s", got.Status)
	}
	if got.Attempts != 1 {
		t.Fatalf("attempts want 1 got %d", got.Attempts)
	}
	if got.LastError == nil {
		t.Fatal("last error should be recorded")
	}
	if !got.NextAttemptAt.After(before.Add(30 * time.Second)) {
		t.Fatalf("next attempt should be pushed by the backoff, got %v", got.NextAttemptAt)
	}
}

func TestDeliverRetriesExhausted(t *testing.T) {
	mailer := &stubMailer{sendErr: fmt.Errorf("dial tcp: connection refused")}
	svc, db := setupEmailWorkerTest(t, mailer, EmailDeliveryOptions{MaxRetries: 3})
	receipt := queuedReceipt(t, db, func(r *models.EmailReceipt) { r.Attempts = 2 })

	svc.deliver(receipt)

	got := reloadReceipt(t, db, receipt.ID)
	if got.Status != constants.ReceiptStatusFailed {
		t.Fatalf("status want Failed got %s", got.Status)
	}
	if got.Attempts != 3 {
		t.Fatalf("attempts want 3 got %d", got.Attempts)
	}
}

func TestDeliverPermanentRejectFailsImmediately(t *testing.T) {
	mailer := &stubMailer{sendErr: service.ErrEmailRecipientRejected}
	svc, db := setupEmailWorkerTest(t, mailer, EmailDeliveryOptions{MaxRetries: 3})
	receipt := queuedReceipt(t, db, nil)

	svc.deliver(receipt)

	got := reloadReceipt(t, db, receipt.ID)
	if got.Status != constants.ReceiptStatusFailed {
		t.Fatalf("rejected recipient should fail without retries, got %s", got.Status)
	}
	if got.Attempts != 1 {
		t.Fatalf("attempts want 1 got %d", got.Attempts)
	}
}

func TestDeliverInvalidSnapshotFailsClosed(t *testing.T) {
	mailer := &stubMailer{}
	svc, db := setupEmailWorkerTest(t, mailer, EmailDeliveryOptions{})
	receipt := queuedReceipt(t, db, func(r *models.EmailReceipt) { r.ToEmail = "" })

	svc.deliver(receipt)

	got := reloadReceipt(t, db, receipt.ID)
	if got.Status != constants.ReceiptStatusFailed {
		t.Fatalf("unrenderable receipt should fail, got %s", got.Status)
	}
	if mailer.sentCount() != 0 {
		t.Fatalf("mailer must not be called for an invalid snapshot, got %d calls", mailer.sentCount())
	}
}

func TestClaimBatchLeasesDueReceipts(t *testing.T) {
	svc, db := setupEmailWorkerTest(t, &stubMailer{}, EmailDeliveryOptions{BatchSize: 10, RetryBackoff: time.Minute})
	due1 := queuedReceipt(t, db, nil)
	due2 := queuedReceipt(t, db, nil)
	queuedReceipt(t, db, func(r *models.EmailReceipt) { r.NextAttemptAt = time.Now().Add(time.Hour) })
	queuedReceipt(t, db, func(r *models.EmailReceipt) { r.Status = constants.ReceiptStatusSent })

	batch, err := svc.claimBatch()
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("want 2 due receipts got %d", len(batch))
	}

	// Leased rows must be invisible to the next poll.
	for _, id := range []uint{due1.ID, due2.ID} {
		got := reloadReceipt(t, db, id)
		if !got.NextAttemptAt.After(time.Now().Add(30 * time.Second)) {
			t.Fatalf("receipt %d should be leased into the future, got %v", id, got.NextAttemptAt)
		}
	}
	again, err := svc.claimBatch()
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("leased receipts must not be reclaimed, got %d", len(again))
	}
}

func TestClaimBatchRespectsBatchSize(t *testing.T) {
	svc, db := setupEmailWorkerTest(t, &stubMailer{}, EmailDeliveryOptions{BatchSize: 2})
	for i := 0; i < 5; i++ {
		queuedReceipt(t, db, nil)
	}

	batch, err := svc.claimBatch()
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("batch size should cap the claim, got %d", len(batch))
	}
}
