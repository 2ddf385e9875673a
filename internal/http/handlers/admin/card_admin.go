package admin

import (
	"strings"

	"github.com/sportfabrik/bonuscard/internal/constants"
	"github.com/sportfabrik/bonuscard/internal/http/handlers/shared"
	"github.com/sportfabrik/bonuscard/internal/http/response"
	"github.com/sportfabrik/bonuscard/internal/service"

	"github.com/gin-gonic/gin"
)

type rollbackPayload struct {
	ReasonCode string `json:"reason_code" binding:"required"`
	Note       string `json:"note"`
}

var rollbackErrors = []shared.ErrorMapping{
	{Target: service.ErrInvalidReasonCode, Code: response.CodeBadRequest},
	{Target: service.ErrCardNotFound, Code: response.CodeNotFound},
}

// RollbackVisit restores one visit after a mistaken deduction.
func (h *Handler) RollbackVisit(c *gin.Context) {
	cardID := strings.TrimSpace(c.Param("id"))
	if cardID == "" {
		response.Error(c, response.CodeBadRequest, "card id is required")
		return
	}
	var payload rollbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, response.CodeBadRequest, "invalid request body")
		return
	}

	snapshot, err := h.CardService.Rollback(service.RollbackInput{
		CardID:         cardID,
		StaffUsername:  shared.StaffUsername(c),
		ReasonCode:     payload.ReasonCode,
		Note:           payload.Note,
		IdempotencyKey: c.GetHeader(constants.HeaderIdempotencyKey),
	})
	if err != nil {
		shared.RespondMappedError(c, err, rollbackErrors)
		return
	}
	shared.RequestLog(c).Infow("card_visit_rolled_back",
		"card_id", snapshot.ID,
		"serial", snapshot.Serial,
		"reason_code", payload.ReasonCode,
	)
	response.Success(c, snapshot)
}

var cancelErrors = []shared.ErrorMapping{
	{Target: service.ErrCardNotFound, Code: response.CodeNotFound},
}

type cancelPayload struct {
	ReasonCode string `json:"reason_code"`
	Note       string `json:"note"`
}

// CancelCard retires a card. The body is optional and may carry a
// reason code and note for the event log.
func (h *Handler) CancelCard(c *gin.Context) {
	cardID := strings.TrimSpace(c.Param("id"))
	if cardID == "" {
		response.Error(c, response.CodeBadRequest, "card id is required")
		return
	}
	var payload cancelPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.Error(c, response.CodeBadRequest, "invalid request body")
			return
		}
	}

	snapshot, err := h.CardService.Cancel(service.CancelInput{
		CardID:        cardID,
		StaffUsername: shared.StaffUsername(c),
		ReasonCode:    payload.ReasonCode,
		Note:          payload.Note,
	})
	if err != nil {
		shared.RespondMappedError(c, err, cancelErrors)
		return
	}
	shared.RequestLog(c).Infow("card_cancelled",
		"card_id", snapshot.ID,
		"serial", snapshot.Serial,
	)
	response.Success(c, snapshot)
}

// SearchCardBySerial resolves a scanned or typed serial to a card.
func (h *Handler) SearchCardBySerial(c *gin.Context) {
	serial := strings.TrimSpace(c.Query("serial"))
	if serial == "" {
		response.Error(c, response.CodeBadRequest, "serial is required")
		return
	}

	snapshot, err := h.CardService.FindCardBySerial(serial)
	if err != nil {
		shared.RespondMappedError(c, err, cancelErrors)
		return
	}
	response.Success(c, snapshot)
}
