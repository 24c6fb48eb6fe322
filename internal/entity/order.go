package domain

import "fmt"

type OrderStatus string

const (
	OrderPending  OrderStatus = "PENDING"
	OrderPaid     OrderStatus = "PAID"
	OrderFailed   OrderStatus = "FAILED"
	OrderRefunded OrderStatus = "REFUNDED"
)

// validTransitions is the full order state machine. Anything absent here
// fails with ErrInvalidTransition.
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderPaid, OrderFailed},
	OrderPaid:    {OrderRefunded},
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SalesOrder is an immutable snapshot of a checked-out cart, priced in USD
// cents. Totals are copied at creation time and never recomputed from the
// live cart.
type SalesOrder struct {
	ID             string
	CartID         string
	OrganisationID string
	Status         OrderStatus
	Items          []LineItem
	TotalExclCents int64
	TotalInclCents int64
}

func (o *SalesOrder) Transition(to OrderStatus) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	return nil
}

// Validate is the pre-flight check used before attempting payment. It does
// not inspect wallet balance; callers combine it with a ledger lookup.
func (o *SalesOrder) Validate() []string {
	var errs []string
	if o.Status != OrderPending {
		errs = append(errs, "order is not in pending status")
	}
	if len(o.Items) == 0 {
		errs = append(errs, "order has no line items")
	}
	if o.TotalInclCents <= 0 {
		errs = append(errs, "order total must be greater than zero")
	}
	return errs
}

// PointOrder is the points-denominated counterpart of SalesOrder, debited
// from a point account rather than a wallet.
type PointOrder struct {
	ID          string
	CartID      string
	AccountID   string
	Status      OrderStatus
	Items       []LineItem
	TotalPoints int64
}

func (o *PointOrder) Transition(to OrderStatus) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	return nil
}

func (o *PointOrder) Validate() []string {
	var errs []string
	if o.Status != OrderPending {
		errs = append(errs, "order is not in pending status")
	}
	if len(o.Items) == 0 {
		errs = append(errs, "order has no line items")
	}
	if o.TotalPoints <= 0 {
		errs = append(errs, "order total must be greater than zero")
	}
	return errs
}
