package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	domain "github.com/openbounty/commerce-api/internal/entity"
)

// BountyPurchase is the purchase data for one bounty added to a cart. The
// bounty definition itself lives in the catalog, outside this service.
type BountyPurchase struct {
	BountyID  string
	ProductID string
	Title     string
	Reward    domain.Price
}

// CartService owns cart mutation. Every mutation runs under the cart row
// lock and ends with a total recomputation, so the cached totals never drift
// from the line items.
type CartService struct {
	carts   CartRepo
	grants  GrantStore
	pricing *Pricing
	log     *slog.Logger
}

func NewCartService(carts CartRepo, grants GrantStore, pricing *Pricing, log *slog.Logger) *CartService {
	return &CartService{carts: carts, grants: grants, pricing: pricing, log: log}
}

// OpenCart returns the organisation's open cart, creating one on first
// access.
func (s *CartService) OpenCart(ctx context.Context, orgID, countryCode string) (*domain.Cart, error) {
	cart, err := s.carts.GetOpenByOrganisation(ctx, orgID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	cart = &domain.Cart{
		ID:             uuid.NewString(),
		OrganisationID: orgID,
		CountryCode:    countryCode,
		Status:         domain.CartOpen,
	}
	if err := s.carts.Create(ctx, cart); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return cart, nil
}

// AddBountyLine adds a bounty purchase to an open cart and recomputes totals
// under the same lock.
func (s *CartService) AddBountyLine(ctx context.Context, cartID string, purchase BountyPurchase, quantity int64) error {
	if purchase.BountyID == "" {
		return fmt.Errorf("%w: missing bounty reference", domain.ErrValidation)
	}
	return s.carts.WithCart(ctx, cartID, func(c *domain.Cart) error {
		li := domain.LineItem{
			ID:          uuid.NewString(),
			Type:        domain.ItemBounty,
			Quantity:    quantity,
			UnitPrice:   purchase.Reward,
			BountyRef:   purchase.BountyID,
			Description: purchase.Title,
		}
		if err := c.AddItem(li); err != nil {
			return err
		}
		return s.recompute(ctx, c)
	})
}

// AddPointGrantLine adds a PAID grant request to the cart, priced in points.
func (s *CartService) AddPointGrantLine(ctx context.Context, cartID, grantRequestID string, quantity int64) error {
	req, err := s.grants.Request(ctx, grantRequestID)
	if err != nil {
		return fmt.Errorf("grant request %s: %w", grantRequestID, err)
	}
	if req.Type != domain.GrantPaid {
		return fmt.Errorf("%w: grant request %s is not a paid grant", domain.ErrValidation, grantRequestID)
	}
	return s.carts.WithCart(ctx, cartID, func(c *domain.Cart) error {
		li := domain.LineItem{
			ID:             uuid.NewString(),
			Type:           domain.ItemPointGrant,
			Quantity:       quantity,
			UnitPrice:      domain.Points(req.Points),
			GrantRequestID: grantRequestID,
			Description:    fmt.Sprintf("Point grant of %d points", req.Points),
		}
		if err := c.AddItem(li); err != nil {
			return err
		}
		return s.recompute(ctx, c)
	})
}

// RecomputeTotals refreshes the derived fee/tax line items and cached totals.
// Idempotent: a second call with no intervening mutation changes nothing.
func (s *CartService) RecomputeTotals(ctx context.Context, cartID string) error {
	return s.carts.WithCart(ctx, cartID, func(c *domain.Cart) error {
		return s.recompute(ctx, c)
	})
}

func (s *CartService) recompute(ctx context.Context, c *domain.Cart) error {
	base := c.BaseCents()
	fee, err := s.pricing.PlatformFee(ctx, base)
	if err != nil {
		return err
	}
	tax, err := s.pricing.SalesTax(ctx, base, c.CountryCode)
	if err != nil {
		return err
	}
	c.RecomputeTotals(fee, tax)
	return nil
}

// Validate reports structural problems without mutating the cart.
func (s *CartService) Validate(ctx context.Context, cartID string) (bool, []string, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return false, nil, err
	}
	errs := cart.Validate()
	return len(errs) == 0, errs, nil
}
