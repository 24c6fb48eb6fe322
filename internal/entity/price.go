package domain

import "fmt"

// PriceKind tags which unit a Price carries. A line item is priced in USD
// cents or in platform points, never both.
type PriceKind uint8

const (
	PriceUnset PriceKind = iota
	PriceCents
	PricePoints
)

// Price is a tagged amount in minor units. The zero value is unset, which
// fails validation; construct with Cents or Points.
type Price struct {
	Kind   PriceKind
	Amount int64
}

func Cents(n int64) Price  { return Price{Kind: PriceCents, Amount: n} }
func Points(n int64) Price { return Price{Kind: PricePoints, Amount: n} }

func (p Price) IsCents() bool  { return p.Kind == PriceCents }
func (p Price) IsPoints() bool { return p.Kind == PricePoints }

func (p Price) Validate() error {
	if p.Kind == PriceUnset {
		return fmt.Errorf("%w: price has no unit", ErrValidation)
	}
	if p.Amount < 0 {
		return fmt.Errorf("%w: negative price", ErrValidation)
	}
	return nil
}

func (p Price) String() string {
	switch p.Kind {
	case PriceCents:
		return fmt.Sprintf("$%d.%02d", p.Amount/100, p.Amount%100)
	case PricePoints:
		return fmt.Sprintf("%d points", p.Amount)
	}
	return "unset"
}
