package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	domain "github.com/openbounty/commerce-api/internal/entity"
	"github.com/openbounty/commerce-api/internal/usecase"
)

type CartHandler struct {
	carts  *usecase.CartService
	orders *usecase.OrderService
	query  usecase.CartRepo
}

func NewCartHandler(carts *usecase.CartService, orders *usecase.OrderService, query usecase.CartRepo) *CartHandler {
	return &CartHandler{carts: carts, orders: orders, query: query}
}

type openCartReq struct {
	OrganisationID string `json:"organisationId" binding:"required"`
	CountryCode    string `json:"countryCode" binding:"required,len=2"`
}

// OpenCart returns the organisation's open cart, creating one on first call.
func (h *CartHandler) OpenCart(c *gin.Context) {
	var req openCartReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	cart, err := h.carts.OpenCart(ctx, req.OrganisationID, req.CountryCode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(cart))
}

func (h *CartHandler) GetCart(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	cart, err := h.query.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(cart))
}

type addBountyReq struct {
	BountyID  string `json:"bountyId" binding:"required"`
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`

	Reward struct {
		Cents  int64 `json:"cents"`
		Points int64 `json:"points"`
	} `json:"reward" binding:"required"`
}

func (h *CartHandler) AddBountyItem(c *gin.Context) {
	var req addBountyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	var reward domain.Price
	switch {
	case req.Reward.Cents > 0 && req.Reward.Points == 0:
		reward = domain.Cents(req.Reward.Cents)
	case req.Reward.Points > 0 && req.Reward.Cents == 0:
		reward = domain.Points(req.Reward.Points)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "reward must be cents or points, not both"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	err := h.carts.AddBountyLine(ctx, c.Param("id"), usecase.BountyPurchase{
		BountyID:  req.BountyID,
		ProductID: req.ProductID,
		Title:     req.Title,
		Reward:    reward,
	}, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type addGrantReq struct {
	GrantRequestID string `json:"grantRequestId" binding:"required"`
	Quantity       int64  `json:"quantity" binding:"required,gt=0"`
}

func (h *CartHandler) AddPointGrantItem(c *gin.Context) {
	var req addGrantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.carts.AddPointGrantLine(ctx, c.Param("id"), req.GrantRequestID, req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Recompute refreshes the derived fee and tax lines, then returns the cart.
func (h *CartHandler) Recompute(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	id := c.Param("id")
	if err := h.carts.RecomputeTotals(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	cart, err := h.query.Get(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(cart))
}

func (h *CartHandler) Validate(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	ok, errs, err := h.carts.Validate(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": ok, "errors": errs})
}

type checkoutResp struct {
	OrderID   string `json:"orderId"`
	OrderKind string `json:"orderKind"`
	Status    string `json:"status"`
}

// Checkout converts the cart into an order. Replays with the same
// X-Idempotency-Key return the original order id.
func (h *CartHandler) Checkout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	out, err := h.orders.Checkout(ctx, usecase.CheckoutInput{
		CartID:         c.Param("id"),
		IdempotencyKey: c.GetHeader("X-Idempotency-Key"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkoutResp{
		OrderID:   out.OrderID,
		OrderKind: out.OrderKind,
		Status:    out.Status,
	})
}

func cartView(cart *domain.Cart) gin.H {
	items := make([]gin.H, 0, len(cart.Items))
	for _, li := range cart.Items {
		items = append(items, lineItemView(li))
	}
	return gin.H{
		"id":               cart.ID,
		"organisation_id":  cart.OrganisationID,
		"country_code":     cart.CountryCode,
		"status":           cart.Status,
		"items":            items,
		"total_excl_cents": cart.TotalExclCents,
		"total_incl_cents": cart.TotalInclCents,
		"total_points":     cart.TotalPoints,
	}
}

func lineItemView(li domain.LineItem) gin.H {
	v := gin.H{
		"id":          li.ID,
		"type":        li.Type,
		"quantity":    li.Quantity,
		"description": li.Description,
	}
	if li.UnitPrice.IsCents() {
		v["unit_price_cents"] = li.UnitPrice.Amount
		v["total_cents"] = li.TotalCents()
	} else if li.UnitPrice.IsPoints() {
		v["unit_price_points"] = li.UnitPrice.Amount
		v["total_points"] = li.TotalPoints()
	}
	if li.BountyRef != "" {
		v["bounty_ref"] = li.BountyRef
	}
	if li.GrantRequestID != "" {
		v["grant_request_id"] = li.GrantRequestID
	}
	return v
}
