package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	domain "github.com/openbounty/commerce-api/internal/entity"
	"github.com/openbounty/commerce-api/internal/usecase"
)

type OrderHandler struct {
	orders     *usecase.OrderService
	query      usecase.OrderRepo
	pointQuery usecase.PointOrderRepo
}

func NewOrderHandler(orders *usecase.OrderService, query usecase.OrderRepo, pointQuery usecase.PointOrderRepo) *OrderHandler {
	return &OrderHandler{orders: orders, query: query, pointQuery: pointQuery}
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	order, err := h.query.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]gin.H, 0, len(order.Items))
	for _, li := range order.Items {
		items = append(items, lineItemView(li))
	}
	c.JSON(http.StatusOK, gin.H{
		"id":               order.ID,
		"cart_id":          order.CartID,
		"organisation_id":  order.OrganisationID,
		"status":           order.Status,
		"items":            items,
		"total_excl_cents": order.TotalExclCents,
		"total_incl_cents": order.TotalInclCents,
	})
}

func (h *OrderHandler) GetPointOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	order, err := h.pointQuery.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]gin.H, 0, len(order.Items))
	for _, li := range order.Items {
		items = append(items, lineItemView(li))
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           order.ID,
		"cart_id":      order.CartID,
		"account_id":   order.AccountID,
		"status":       order.Status,
		"items":        items,
		"total_points": order.TotalPoints,
	})
}

// PayOrder debits the organisation wallet and, on success, kicks off
// fulfillment through the event bus.
func (h *OrderHandler) PayOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	if err := h.orders.ProcessPayment(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": domain.OrderPaid})
}

func (h *OrderHandler) PayPointOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	if err := h.orders.ProcessPointPayment(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": domain.OrderPaid})
}

func (h *OrderHandler) ValidateOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	ok, errs, err := h.orders.Validate(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": ok, "errors": errs})
}

type refundReq struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *OrderHandler) RefundOrder(c *gin.Context) {
	var req refundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	if err := h.orders.Refund(ctx, id, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": domain.OrderRefunded})
}
