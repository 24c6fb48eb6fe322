package domain

import "fmt"

type ItemType string

const (
	ItemBounty             ItemType = "BOUNTY"
	ItemPlatformFee        ItemType = "PLATFORM_FEE"
	ItemSalesTax           ItemType = "SALES_TAX"
	ItemPointGrant         ItemType = "POINT_GRANT"
	ItemIncreaseAdjustment ItemType = "INCREASE_ADJUSTMENT"
	ItemDecreaseAdjustment ItemType = "DECREASE_ADJUSTMENT"
)

// LineItem is one priced entry in a cart or an order snapshot.
// BountyRef points at the purchased bounty definition for BOUNTY items;
// GrantRequestID points at the point-grant request for POINT_GRANT items.
type LineItem struct {
	ID             string
	Type           ItemType
	Quantity       int64
	UnitPrice      Price
	BountyRef      string
	GrantRequestID string
	Description    string
}

// TotalCents returns quantity x unit price for cents-priced items, 0 otherwise.
func (li LineItem) TotalCents() int64 {
	if !li.UnitPrice.IsCents() {
		return 0
	}
	return li.Quantity * li.UnitPrice.Amount
}

// TotalPoints returns quantity x unit price for points-priced items, 0 otherwise.
func (li LineItem) TotalPoints() int64 {
	if !li.UnitPrice.IsPoints() {
		return 0
	}
	return li.Quantity * li.UnitPrice.Amount
}

func (li LineItem) Validate() error {
	if li.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}
	if err := li.UnitPrice.Validate(); err != nil {
		return err
	}
	switch li.Type {
	case ItemBounty, ItemPlatformFee, ItemSalesTax, ItemPointGrant,
		ItemIncreaseAdjustment, ItemDecreaseAdjustment:
	default:
		return fmt.Errorf("%w: unknown item type %q", ErrValidation, li.Type)
	}
	return nil
}
