package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sportfabrik/bonuscard/internal/constants"
	"github.com/sportfabrik/bonuscard/internal/logger"
	"github.com/sportfabrik/bonuscard/internal/models"
	"github.com/sportfabrik/bonuscard/internal/repository"

	"gorm.io/gorm"
)

// idempotencyTTL is how long a deduct/rollback result stays replayable.
const idempotencyTTL = 2 * time.Minute

// CardServiceOptions tunes issuance behaviour.
type CardServiceOptions struct {
	BonusInitialUses    int
	BonusValidityMonths int
	Location            *time.Location
}

func (o CardServiceOptions) normalized() CardServiceOptions {
	if o.BonusInitialUses <= 0 {
		o.BonusInitialUses = 11
	}
	if o.BonusValidityMonths <= 0 {
		o.BonusValidityMonths = 12
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// CardService implements the card lifecycle: issue, read, deduct,
// rollback and cancel. Deduct and rollback are idempotency guarded and
// queue a receipt email in the same transaction as the mutation.
type CardService struct {
	cardRepo    repository.CardRepository
	memberRepo  repository.MemberRepository
	eventRepo   repository.CardEventRepository
	idemRepo    repository.IdempotencyRepository
	receiptRepo repository.EmailReceiptRepository
	opts        CardServiceOptions
}

// NewCardService creates a card service.
func NewCardService(
	cardRepo repository.CardRepository,
	memberRepo repository.MemberRepository,
	eventRepo repository.CardEventRepository,
	idemRepo repository.IdempotencyRepository,
	receiptRepo repository.EmailReceiptRepository,
	opts CardServiceOptions,
) *CardService {
	return &CardService{
		cardRepo:    cardRepo,
		memberRepo:  memberRepo,
		eventRepo:   eventRepo,
		idemRepo:    idemRepo,
		receiptRepo: receiptRepo,
		opts:        opts.normalized(),
	}
}

// CardSnapshot is the externally visible card state.
type CardSnapshot struct {
	ID            string     `json:"id"`
	Serial        string     `json:"serial"`
	MemberID      string     `json:"member_id"`
	Product       string     `json:"product"`
	State         string     `json:"state"`
	RemainingUses *int       `json:"remaining_uses"`
	IssuedAt      time.Time  `json:"issued_at"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

func snapshotOf(card *models.Card) *CardSnapshot {
	if card == nil {
		return nil
	}
	return &CardSnapshot{
		ID:            card.ID,
		Serial:        card.Serial,
		MemberID:      card.MemberID,
		Product:       card.Product,
		State:         card.State,
		RemainingUses: card.RemainingUses,
		IssuedAt:      card.IssuedAt,
		ExpiresAt:     card.ExpiresAt,
	}
}

// IssueCardInput describes a card issuance request. ExpiresAt
// overrides the computed expiry when set.
type IssueCardInput struct {
	MemberID      string
	Product       string
	StaffUsername string
	ExpiresAt     *time.Time
}

// IssueCard creates a card for an active member and records the Issued
// event. The serial comes from the per-year counter reserved inside
// the same transaction.
func (s *CardService) IssueCard(input IssueCardInput) (*CardSnapshot, error) {
	product := strings.TrimSpace(input.Product)
	if product != constants.ProductCyclingBonus && product != constants.ProductCyclingUnlimited {
		return nil, ErrInvalidProduct
	}

	var snapshot *CardSnapshot
	err := s.cardRepo.Transaction(func(tx *gorm.DB) error {
		member, err := s.memberRepo.WithTx(tx).GetByID(input.MemberID)
		if err != nil {
			return err
		}
		if member == nil || !member.IsActive {
			return ErrMemberNotFound
		}

		now := time.Now().In(s.opts.Location)
		serialValue, err := s.cardRepo.WithTx(tx).NextSerialValue(now.Year())
		if err != nil {
			return err
		}

		card := &models.Card{
			Serial:   fmt.Sprintf("%s-%d-%06d", constants.SerialPrefix, now.Year(), serialValue),
			MemberID: member.ID,
			Product:  product,
			State:    constants.CardStateActive,
			IssuedAt: now,
		}
		if product == constants.ProductCyclingBonus {
			remaining := s.opts.BonusInitialUses
			card.RemainingUses = &remaining
		}
		expiresAt := s.computeExpiry(product, now)
		if input.ExpiresAt != nil && !input.ExpiresAt.IsZero() {
			expiresAt = input.ExpiresAt.In(s.opts.Location)
		}
		card.ExpiresAt = &expiresAt

		if err := s.cardRepo.WithTx(tx).Create(card); err != nil {
			return err
		}
		event := &models.CardEvent{
			CardID:        card.ID,
			EventType:     constants.EventTypeIssued,
			Delta:         0,
			StaffUsername: input.StaffUsername,
			CreatedAt:     now,
		}
		if err := s.eventRepo.WithTx(tx).Create(event); err != nil {
			return err
		}

		snapshot = snapshotOf(card)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("card_issued",
		"card_id", snapshot.ID,
		"serial", snapshot.Serial,
		"product", snapshot.Product,
		"staff", input.StaffUsername,
	)
	return snapshot, nil
}

// GetCard returns a card snapshot, flipping Active cards past their
// expiry before the caller sees them.
func (s *CardService) GetCard(cardID string) (*CardSnapshot, error) {
	var snapshot *CardSnapshot
	err := s.cardRepo.Transaction(func(tx *gorm.DB) error {
		card, err := s.cardRepo.WithTx(tx).GetByIDForUpdate(cardID)
		if err != nil {
			return err
		}
		if card == nil {
			return ErrCardNotFound
		}
		if s.reconcileExpiry(card, time.Now().In(s.opts.Location)) {
			if err := s.cardRepo.WithTx(tx).Update(card); err != nil {
				return err
			}
		}
		snapshot = snapshotOf(card)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// FindCardBySerial resolves a scanned serial to a card snapshot.
func (s *CardService) FindCardBySerial(serial string) (*CardSnapshot, error) {
	card, err := s.cardRepo.GetBySerial(serial)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrCardNotFound
	}
	return s.GetCard(card.ID)
}

// DeductInput describes a visit deduction request.
type DeductInput struct {
	CardID         string
	StaffUsername  string
	IdempotencyKey string
}

// Deduct burns one visit from the card. When an idempotency key is
// supplied, a replay inside the TTL returns the stored result without
// touching the card again; without a key every call deducts.
func (s *CardService) Deduct(input DeductInput) (*CardSnapshot, error) {
	key := strings.TrimSpace(input.IdempotencyKey)

	var snapshot *CardSnapshot
	var replayed bool
	var stateErr error
	err := s.cardRepo.Transaction(func(tx *gorm.DB) error {
		now := time.Now().In(s.opts.Location)

		card, err := s.cardRepo.WithTx(tx).GetByIDForUpdate(input.CardID)
		if err != nil {
			return err
		}
		if card == nil {
			return ErrCardNotFound
		}

		// Guard check under the card lock. A concurrent duplicate
		// blocks on the lock until the original commits, then sees
		// its record here instead of deducting a second time.
		if key != "" {
			cached, err := s.idemRepo.WithTx(tx).GetValid(key, input.CardID, constants.IdempotencyActionDeduct, now)
			if err != nil {
				return err
			}
			if cached != nil {
				replayed = true
				return json.Unmarshal([]byte(cached.Response), &snapshot)
			}
		}

		if s.reconcileExpiry(card, now) {
			if err := s.cardRepo.WithTx(tx).Update(card); err != nil {
				return err
			}
		}
		if card.State == constants.CardStateExpired {
			// Commit so the Expired flip survives the failed
			// deduction; the conflict surfaces after the transaction.
			stateErr = ErrCardExpired
			return nil
		}
		if card.State != constants.CardStateActive {
			return ErrCardStateInvalid
		}
		if card.Product == constants.ProductCyclingBonus {
			if card.RemainingUses == nil || *card.RemainingUses <= 0 {
				return ErrNoRemainingUses
			}
			remaining := *card.RemainingUses - 1
			card.RemainingUses = &remaining
			if remaining == 0 {
				card.State = constants.CardStateUsedUp
			}
		}
		if err := s.cardRepo.WithTx(tx).Update(card); err != nil {
			return err
		}

		event := &models.CardEvent{
			CardID:        card.ID,
			EventType:     constants.EventTypeDeduct,
			Delta:         -1,
			StaffUsername: input.StaffUsername,
			CreatedAt:     now,
		}
		if err := s.eventRepo.WithTx(tx).Create(event); err != nil {
			return err
		}

		snapshot = snapshotOf(card)
		if key != "" {
			if err := s.storeIdempotencyResult(tx, key, card.ID, constants.IdempotencyActionDeduct, snapshot, now); err != nil {
				return err
			}
		}
		return s.enqueueReceipt(tx, card, event, nil)
	})
	if err != nil {
		return nil, err
	}
	if stateErr != nil {
		return nil, stateErr
	}
	if replayed {
		logger.Infow("card_deduct_replayed", "card_id", input.CardID, "idempotency_key", key)
	} else {
		logger.Infow("card_deducted",
			"card_id", snapshot.ID,
			"serial", snapshot.Serial,
			"state", snapshot.State,
			"staff", input.StaffUsername,
		)
	}
	return snapshot, nil
}

// RollbackInput describes a deduction correction request.
type RollbackInput struct {
	CardID         string
	StaffUsername  string
	ReasonCode     string
	Note           string
	IdempotencyKey string
}

// Rollback restores one visit, capped at the initial allotment. It
// works on any existing card regardless of state; a used-up card with
// restored uses becomes Active again.
func (s *CardService) Rollback(input RollbackInput) (*CardSnapshot, error) {
	key := strings.TrimSpace(input.IdempotencyKey)
	reason := strings.TrimSpace(input.ReasonCode)
	switch reason {
	case constants.RollbackReasonMistake,
		constants.RollbackReasonFraudSuspected,
		constants.RollbackReasonCardLost,
		constants.RollbackReasonOther:
	default:
		return nil, ErrInvalidReasonCode
	}

	var snapshot *CardSnapshot
	var replayed bool
	err := s.cardRepo.Transaction(func(tx *gorm.DB) error {
		now := time.Now().In(s.opts.Location)

		card, err := s.cardRepo.WithTx(tx).GetByIDForUpdate(input.CardID)
		if err != nil {
			return err
		}
		if card == nil {
			return ErrCardNotFound
		}

		if key != "" {
			cached, err := s.idemRepo.WithTx(tx).GetValid(key, input.CardID, constants.IdempotencyActionRollback, now)
			if err != nil {
				return err
			}
			if cached != nil {
				replayed = true
				return json.Unmarshal([]byte(cached.Response), &snapshot)
			}
		}

		s.reconcileExpiry(card, now)
		if card.Product == constants.ProductCyclingBonus {
			remaining := 0
			if card.RemainingUses != nil {
				remaining = *card.RemainingUses
			}
			remaining++
			if remaining > s.opts.BonusInitialUses {
				remaining = s.opts.BonusInitialUses
			}
			card.RemainingUses = &remaining
			if card.State == constants.CardStateUsedUp && remaining > 0 {
				card.State = constants.CardStateActive
			}
		}
		if err := s.cardRepo.WithTx(tx).Update(card); err != nil {
			return err
		}

		note := strings.TrimSpace(input.Note)
		event := &models.CardEvent{
			CardID:        card.ID,
			EventType:     constants.EventTypeRollback,
			Delta:         1,
			StaffUsername: input.StaffUsername,
			ReasonCode:    &reason,
			CreatedAt:     now,
		}
		if note != "" {
			event.Note = &note
		}
		if err := s.eventRepo.WithTx(tx).Create(event); err != nil {
			return err
		}

		snapshot = snapshotOf(card)
		if key != "" {
			if err := s.storeIdempotencyResult(tx, key, card.ID, constants.IdempotencyActionRollback, snapshot, now); err != nil {
				return err
			}
		}
		return s.enqueueReceipt(tx, card, event, &reason)
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		logger.Infow("card_rollback_replayed", "card_id", input.CardID, "idempotency_key", key)
	} else {
		logger.Infow("card_rolled_back",
			"card_id", snapshot.ID,
			"serial", snapshot.Serial,
			"reason", reason,
			"staff", input.StaffUsername,
		)
	}
	return snapshot, nil
}

// CancelInput describes a card cancellation request. Reason code and
// note are optional and recorded on the Cancel event.
type CancelInput struct {
	CardID        string
	StaffUsername string
	ReasonCode    string
	Note          string
}

// Cancel retires a card unconditionally. No receipt email is sent.
func (s *CardService) Cancel(input CancelInput) (*CardSnapshot, error) {
	var snapshot *CardSnapshot
	err := s.cardRepo.Transaction(func(tx *gorm.DB) error {
		card, err := s.cardRepo.WithTx(tx).GetByIDForUpdate(input.CardID)
		if err != nil {
			return err
		}
		if card == nil {
			return ErrCardNotFound
		}

		now := time.Now().In(s.opts.Location)
		card.State = constants.CardStateCancelled
		if err := s.cardRepo.WithTx(tx).Update(card); err != nil {
			return err
		}
		event := &models.CardEvent{
			CardID:        card.ID,
			EventType:     constants.EventTypeCancel,
			Delta:         0,
			StaffUsername: input.StaffUsername,
			CreatedAt:     now,
		}
		if reason := strings.TrimSpace(input.ReasonCode); reason != "" {
			event.ReasonCode = &reason
		}
		if note := strings.TrimSpace(input.Note); note != "" {
			event.Note = &note
		}
		if err := s.eventRepo.WithTx(tx).Create(event); err != nil {
			return err
		}
		snapshot = snapshotOf(card)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("card_cancelled", "card_id", snapshot.ID, "serial", snapshot.Serial, "staff", input.StaffUsername)
	return snapshot, nil
}

// reconcileExpiry flips an Active card past its expiry to Expired.
// Returns true when the card changed and must be persisted.
func (s *CardService) reconcileExpiry(card *models.Card, now time.Time) bool {
	if card.State != constants.CardStateActive {
		return false
	}
	if card.ExpiresAt == nil || !now.After(*card.ExpiresAt) {
		return false
	}
	card.State = constants.CardStateExpired
	return true
}

// computeExpiry derives the expiry timestamp for a new card. Bonus
// cards run for the configured number of months, unlimited cards until
// the last instant of the issue month.
func (s *CardService) computeExpiry(product string, issuedAt time.Time) time.Time {
	if product == constants.ProductCyclingUnlimited {
		firstOfNext := time.Date(issuedAt.Year(), issuedAt.Month()+1, 1, 0, 0, 0, 0, s.opts.Location)
		return firstOfNext.Add(-time.Millisecond)
	}
	return issuedAt.AddDate(0, s.opts.BonusValidityMonths, 0)
}

func (s *CardService) storeIdempotencyResult(tx *gorm.DB, key, cardID, action string, snapshot *CardSnapshot, now time.Time) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.idemRepo.WithTx(tx).Create(&models.IdempotencyRecord{
		Key:       key,
		CardID:    cardID,
		Action:    action,
		Response:  string(payload),
		CreatedAt: now,
		ExpiresAt: now.Add(idempotencyTTL),
	})
}

// enqueueReceipt inserts the outbox row for a deduct or rollback in
// the surrounding transaction. The render snapshot is frozen here; a
// missing member leaves the recipient empty and the delivery worker
// fails the receipt closed instead of guessing.
func (s *CardService) enqueueReceipt(tx *gorm.DB, card *models.Card, event *models.CardEvent, reason *string) error {
	receipt := &models.EmailReceipt{
		CardID:         card.ID,
		EventID:        event.ID,
		Status:         constants.ReceiptStatusQueued,
		NextAttemptAt:  event.CreatedAt,
		CardSerial:     card.Serial,
		ProductLabel:   productLabel(card.Product),
		EventType:      event.EventType,
		EventTime:      event.CreatedAt,
		RemainingUses:  card.RemainingUses,
		CardExpiresAt:  card.ExpiresAt,
		RollbackReason: reason,
	}
	member, err := s.memberRepo.WithTx(tx).GetByID(card.MemberID)
	if err != nil {
		return err
	}
	if member != nil {
		receipt.ToEmail = member.Email
		receipt.MemberName = member.Name
	} else {
		logger.Warnw("receipt_member_missing", "card_id", card.ID, "member_id", card.MemberID)
	}
	return s.receiptRepo.WithTx(tx).Create(receipt)
}

func productLabel(product string) string {
	switch product {
	case constants.ProductCyclingUnlimited:
		return constants.ProductLabelCyclingUnlimited
	default:
		return constants.ProductLabelCyclingBonus
	}
}
