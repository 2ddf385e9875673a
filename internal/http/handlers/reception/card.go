package reception

import (
	"strings"
	"time"

	"github.com/sportfabrik/bonuscard/internal/constants"
	"github.com/sportfabrik/bonuscard/internal/http/handlers/shared"
	"github.com/sportfabrik/bonuscard/internal/http/response"
	"github.com/sportfabrik/bonuscard/internal/service"

	"github.com/gin-gonic/gin"
)

type issueCardPayload struct {
	MemberID  string     `json:"member_id" binding:"required"`
	Product   string     `json:"product" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

var issueCardErrors = []shared.ErrorMapping{
	{Target: service.ErrMemberNotFound, Code: response.CodeNotFound},
	{Target: service.ErrInvalidProduct, Code: response.CodeBadRequest},
}

// IssueCard creates a new card for a member.
func (h *Handler) IssueCard(c *gin.Context) {
	var payload issueCardPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, response.CodeBadRequest, "invalid request body")
		return
	}

	snapshot, err := h.CardService.IssueCard(service.IssueCardInput{
		MemberID:      payload.MemberID,
		Product:       payload.Product,
		StaffUsername: shared.StaffUsername(c),
		ExpiresAt:     payload.ExpiresAt,
	})
	if err != nil {
		shared.RespondMappedError(c, err, issueCardErrors)
		return
	}
	shared.RequestLog(c).Infow("card_issued",
		"card_id", snapshot.ID,
		"serial", snapshot.Serial,
		"product", snapshot.Product,
	)
	response.Success(c, snapshot)
}

var getCardErrors = []shared.ErrorMapping{
	{Target: service.ErrCardNotFound, Code: response.CodeNotFound},
}

// GetCard returns the current card state. Reading an Active card past
// its expiry flips it to Expired before responding.
func (h *Handler) GetCard(c *gin.Context) {
	cardID := strings.TrimSpace(c.Param("id"))
	if cardID == "" {
		response.Error(c, response.CodeBadRequest, "card id is required")
		return
	}

	snapshot, err := h.CardService.GetCard(cardID)
	if err != nil {
		shared.RespondMappedError(c, err, getCardErrors)
		return
	}
	response.Success(c, snapshot)
}

var deductErrors = []shared.ErrorMapping{
	{Target: service.ErrCardNotFound, Code: response.CodeNotFound},
	{Target: service.ErrCardExpired, Code: response.CodeConflict},
	{Target: service.ErrCardStateInvalid, Code: response.CodeConflict},
	{Target: service.ErrNoRemainingUses, Code: response.CodeConflict},
}

// DeductVisit records one visit on the card. An X-Idempotency-Key
// header makes retried requests safe; without one every call deducts.
func (h *Handler) DeductVisit(c *gin.Context) {
	cardID := strings.TrimSpace(c.Param("id"))
	if cardID == "" {
		response.Error(c, response.CodeBadRequest, "card id is required")
		return
	}

	snapshot, err := h.CardService.Deduct(service.DeductInput{
		CardID:         cardID,
		StaffUsername:  shared.StaffUsername(c),
		IdempotencyKey: c.GetHeader(constants.HeaderIdempotencyKey),
	})
	if err != nil {
		shared.RespondMappedError(c, err, deductErrors)
		return
	}
	shared.RequestLog(c).Infow("card_visit_deducted",
		"card_id", snapshot.ID,
		"serial", snapshot.Serial,
		"state", snapshot.State,
	)
	response.Success(c, snapshot)
}
