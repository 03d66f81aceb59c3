package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/commissions-backend/internal/http/handlers/common"
	"github.com/ignatzorin/commissions-backend/internal/interface/http/response"
	"github.com/ignatzorin/commissions-backend/internal/service"
)

type PaymentHandler struct {
	payments *service.PaymentService
}

func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// GetBalance GET /payments/balance
func (h *PaymentHandler) GetBalance(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	balance, err := h.payments.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, balance)
}

// Deposit POST /payments/deposit
func (h *PaymentHandler) Deposit(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	// Сумма строкой в основных единицах: "1500.50".
	var req struct {
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "сумма обязательна")
		return
	}

	transaction, err := h.payments.Deposit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, transaction)
}

// GetEarnings GET /payments/earnings
func (h *PaymentHandler) GetEarnings(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	earnings, err := h.payments.GetEarnings(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, earnings)
}

// ListTransactions GET /payments/transactions
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)

	transactions, err := h.payments.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, transactions)
}

// GetEscrow GET /work-requests/:id/escrow, только для заказчика.
func (h *PaymentHandler) GetEscrow(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	workRequestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "неверный ID заявки")
		return
	}

	escrow, err := h.payments.GetEscrow(c.Request.Context(), workRequestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if escrow.PayerID != userID {
		response.Forbidden(c, "удержание доступно только заказчику")
		return
	}

	response.Success(c, escrow)
}
