package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type CartStatus string

const (
	CartOpen       CartStatus = "OPEN"
	CartCheckedOut CartStatus = "CHECKED_OUT"
	CartAbandoned  CartStatus = "ABANDONED"
)

// Cart is the mutable pre-checkout aggregate. Totals are caches derived from
// the line items; RecomputeTotals refreshes them after every mutation.
// Cents-priced and points-priced items are totalled separately.
type Cart struct {
	ID             string
	OrganisationID string
	CountryCode    string
	Status         CartStatus
	Items          []LineItem
	TotalExclCents int64
	TotalInclCents int64
	TotalPoints    int64
}

// AddItem appends a line item to an open cart. A bounty may appear in a cart
// at most once.
func (c *Cart) AddItem(li LineItem) error {
	if c.Status != CartOpen {
		return fmt.Errorf("%w: cart %s is %s", ErrInvalidState, c.ID, c.Status)
	}
	if err := li.Validate(); err != nil {
		return err
	}
	if li.Type == ItemBounty {
		for _, existing := range c.Items {
			if existing.Type == ItemBounty && existing.BountyRef == li.BountyRef {
				return fmt.Errorf("%w: bounty %s", ErrDuplicateItem, li.BountyRef)
			}
		}
	}
	c.Items = append(c.Items, li)
	return nil
}

// BaseCents sums the cents-priced BOUNTY items; fees and taxes are derived
// from this figure.
func (c *Cart) BaseCents() int64 {
	var base int64
	for _, li := range c.Items {
		if li.Type == ItemBounty {
			base += li.TotalCents()
		}
	}
	return base
}

// RecomputeTotals upserts the single PLATFORM_FEE and SALES_TAX line items
// for the given derived amounts and refreshes the cached totals. Calling it
// twice with the same inputs yields identical state.
func (c *Cart) RecomputeTotals(feeCents, taxCents int64) {
	base := c.BaseCents()
	c.upsertDerived(ItemPlatformFee, feeCents, "Platform fee")
	c.upsertDerived(ItemSalesTax, taxCents, "Sales tax")

	var points int64
	for _, li := range c.Items {
		points += li.TotalPoints()
	}
	c.TotalExclCents = base
	c.TotalInclCents = base + feeCents + taxCents
	c.TotalPoints = points
}

func (c *Cart) upsertDerived(t ItemType, amountCents int64, desc string) {
	for i := range c.Items {
		if c.Items[i].Type == t {
			c.Items[i].Quantity = 1
			c.Items[i].UnitPrice = Cents(amountCents)
			return
		}
	}
	c.Items = append(c.Items, LineItem{
		ID:          uuid.NewString(),
		Type:        t,
		Quantity:    1,
		UnitPrice:   Cents(amountCents),
		Description: desc,
	})
}

// Validate reports structural problems without mutating the cart.
func (c *Cart) Validate() []string {
	var errs []string
	if c.Status != CartOpen {
		errs = append(errs, "cart is not open")
	}
	var purchasable int
	for _, li := range c.Items {
		switch li.Type {
		case ItemBounty, ItemPointGrant:
			purchasable++
		}
		if li.Quantity < 1 {
			errs = append(errs, fmt.Sprintf("line item %s has non-positive quantity", li.ID))
		}
		if li.UnitPrice.Kind == PriceUnset {
			errs = append(errs, fmt.Sprintf("line item %s has no price", li.ID))
		}
	}
	if purchasable == 0 {
		errs = append(errs, "cart has no items")
	}
	if c.TotalInclCents <= 0 && c.TotalPoints <= 0 {
		errs = append(errs, "cart total must be greater than zero")
	}
	return errs
}
