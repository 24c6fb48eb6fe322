package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openbounty/commerce-api/internal/usecase"
)

type WalletHandler struct {
	ledger *usecase.LedgerService
}

func NewWalletHandler(ledger *usecase.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

type addFundsReq struct {
	AmountCents   int64  `json:"amountCents" binding:"required,gt=0"`
	PaymentMethod string `json:"paymentMethod" binding:"required"`
	Reference     string `json:"reference"`
}

// AddFunds credits an account. A repeated call with the same reference is a
// no-op, so gateway callbacks can be retried safely.
func (h *WalletHandler) AddFunds(c *gin.Context) {
	var req addFundsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	accountID := c.Param("id")
	desc := "wallet top-up via " + req.PaymentMethod
	if err := h.ledger.AddFunds(ctx, accountID, req.AmountCents, desc, req.PaymentMethod, req.Reference); err != nil {
		writeError(c, err)
		return
	}

	balance, err := h.ledger.Balance(ctx, accountID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": accountID, "balance": balance})
}

func (h *WalletHandler) GetAccount(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	accountID := c.Param("id")
	balance, err := h.ledger.Balance(ctx, accountID)
	if err != nil {
		writeError(c, err)
		return
	}

	txs, err := h.ledger.Transactions(ctx, accountID)
	if err != nil {
		writeError(c, err)
		return
	}
	entries := make([]gin.H, 0, len(txs))
	for _, tx := range txs {
		e := gin.H{
			"id":          tx.ID,
			"amount":      tx.Amount,
			"direction":   tx.Direction,
			"description": tx.Description,
			"created_at":  tx.CreatedAt,
		}
		if tx.OrderID != "" {
			e["order_id"] = tx.OrderID
		}
		if tx.ExternalRef != "" {
			e["external_ref"] = tx.ExternalRef
		}
		entries = append(entries, e)
	}
	c.JSON(http.StatusOK, gin.H{
		"account_id":   accountID,
		"balance":      balance,
		"transactions": entries,
	})
}
