package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/melodix/backend/internal/errors"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/models"
	"github.com/melodix/backend/internal/payments"
	"github.com/melodix/backend/internal/util"
)

// Purchase buys a song, podcast, album, or VIP subscription
// POST /api/v1/purchases
func (h *Handlers) Purchase(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req payments.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	if !req.ItemType.Valid() {
		util.RespondValidationError(c, "item_type", "must be song, podcast, album, or vip_subscription")
		return
	}
	if req.ItemType != models.ItemVIPSubscription && req.ItemID == "" {
		util.RespondValidationError(c, "item_id", "item_id is required")
		return
	}

	receipt, err := h.payments.Purchase(c.Request.Context(), currentUser, req)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrAlreadyPurchased):
			util.RespondInvalidState(c, "item already purchased")
		case errors.Is(err, payments.ErrNotForSale):
			util.RespondValidationError(c, "item_id", "item is not for sale")
		case errors.Is(err, payments.ErrOwnItem):
			util.RespondValidationError(c, "item_id", "cannot purchase your own item")
		case errors.Is(err, payments.ErrPaymentNotFound):
			util.RespondNotFound(c, "item")
		default:
			logger.ErrorWithFields("purchase failed", err)
			util.RespondWithAPIError(c, apierrors.PaymentFailed("payment could not be processed"))
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"receipt": receipt})
}

// ListMyReceipts returns the caller's purchase history
// GET /api/v1/purchases
func (h *Handlers) ListMyReceipts(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	receipts, err := h.payments.ListReceiptsForBuyer(userID, limit, offset)
	if err != nil {
		util.RespondInternalError(c, "failed to list receipts")
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipts": receipts, "count": len(receipts)})
}

// RequestPayout moves the caller's pending balance into the requested state
// POST /api/v1/payments/request
func (h *Handlers) RequestPayout(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Note string `json:"note" binding:"max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.payments.RequestPayout(userID, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrNoPendingBalance):
			util.RespondInvalidState(c, "no pending balance to request")
		default:
			util.RespondInternalError(c, "failed to request payout")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// ListMyPayments returns the caller's payout records
// GET /api/v1/payments
func (h *Handlers) ListMyPayments(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	list, err := h.payments.ListForUser(userID, limit, offset)
	if err != nil {
		util.RespondInternalError(c, "failed to list payments")
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": list, "count": len(list)})
}

// GetPayment returns one payout record with its receipts. Owners and staff only
// GET /api/v1/payments/:id
func (h *Handlers) GetPayment(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	payment, err := h.payments.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, payments.ErrPaymentNotFound) {
			util.RespondNotFound(c, "payment")
			return
		}
		util.RespondInternalError(c, "failed to fetch payment")
		return
	}

	if payment.RequesterID != currentUser.ID && !currentUser.Role.Privileged() {
		util.RespondNotFound(c, "payment")
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// ListAllPayments returns payout records across all sellers for staff review
// GET /api/v1/admin/payments
func (h *Handlers) ListAllPayments(c *gin.Context) {
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	status := models.PaymentStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		util.RespondValidationError(c, "status", "unknown payment status")
		return
	}

	list, err := h.payments.ListAll(status, limit, offset)
	if err != nil {
		util.RespondInternalError(c, "failed to list payments")
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": list, "count": len(list)})
}

// DecidePayment approves or rejects a requested payout
// PUT /api/v1/admin/payments/:id/decide
func (h *Handlers) DecidePayment(c *gin.Context) {
	approverID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Approve bool   `json:"approve"`
		Note    string `json:"note" binding:"max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.payments.Decide(c.Request.Context(), c.Param("id"), approverID, req.Approve, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrPaymentNotFound):
			util.RespondNotFound(c, "payment")
		case errors.Is(err, payments.ErrIllegalTransition):
			util.RespondInvalidState(c, "payment is not awaiting a decision")
		default:
			logger.ErrorWithFields("payout decision failed", err)
			util.RespondInternalError(c, "failed to decide payment")
		}
		return
	}

	if _, err := h.notify.Notify(payment.RequesterID, &approverID, models.NotifyPayment,
		payoutDecisionContent(payment)); err != nil {
		logger.WarnWithFields("failed to notify seller of payout decision", err)
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

func payoutDecisionContent(payment *models.Payment) string {
	if payment.Status == models.PaymentRejected {
		return "Your payout request was rejected"
	}
	return "Your payout request was approved"
}
