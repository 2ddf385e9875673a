package admin

import (
	"strconv"
	"strings"

	"github.com/sportfabrik/bonuscard/internal/http/handlers/shared"
	"github.com/sportfabrik/bonuscard/internal/http/response"
	"github.com/sportfabrik/bonuscard/internal/repository"
	"github.com/sportfabrik/bonuscard/internal/service"

	"github.com/gin-gonic/gin"
)

// ListReceipts pages through the email outbox with optional status and
// card filters.
func (h *Handler) ListReceipts(c *gin.Context) {
	page, pageSize := shared.NormalizePagination(c)
	receipts, total, err := h.ReceiptAdminService.ListReceipts(repository.EmailReceiptListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		CardID:   strings.TrimSpace(c.Query("card_id")),
	})
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "failed to list receipts", err)
		return
	}
	response.SuccessWithPage(c, receipts, total, page, pageSize)
}

var receiptErrors = []shared.ErrorMapping{
	{Target: service.ErrReceiptNotFound, Code: response.CodeNotFound},
	{Target: service.ErrReceiptNotRetryable, Code: response.CodeBadRequest},
}

// GetReceipt returns one outbox entry including its render snapshot.
func (h *Handler) GetReceipt(c *gin.Context) {
	id, ok := receiptIDParam(c)
	if !ok {
		return
	}
	receipt, err := h.ReceiptAdminService.GetReceipt(id)
	if err != nil {
		shared.RespondMappedError(c, err, receiptErrors)
		return
	}
	response.Success(c, receipt)
}

// RetryReceipt requeues a failed receipt for immediate delivery.
func (h *Handler) RetryReceipt(c *gin.Context) {
	id, ok := receiptIDParam(c)
	if !ok {
		return
	}
	receipt, err := h.ReceiptAdminService.RetryReceipt(id)
	if err != nil {
		shared.RespondMappedError(c, err, receiptErrors)
		return
	}
	shared.RequestLog(c).Infow("receipt_retry_accepted", "receipt_id", receipt.ID)
	response.Success(c, receipt)
}

// ReceiptStats aggregates the outbox per status.
func (h *Handler) ReceiptStats(c *gin.Context) {
	stats, err := h.ReceiptAdminService.Stats()
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "failed to load receipt stats", err)
		return
	}
	response.Success(c, stats)
}

func receiptIDParam(c *gin.Context) (uint, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.Error(c, response.CodeBadRequest, "invalid receipt id")
		return 0, false
	}
	return uint(id), true
}
