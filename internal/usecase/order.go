package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	domain "github.com/openbounty/commerce-api/internal/entity"
	"github.com/openbounty/commerce-api/internal/eventbus"
)

var ErrDuplicate = errors.New("duplicate idempotency key")

var ordersProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "commerce_orders_processed_total",
		Help: "Payment attempts by outcome",
	},
	[]string{"kind", "outcome"},
)

type CheckoutInput struct {
	CartID         string
	IdempotencyKey string
}

type CheckoutOutput struct {
	OrderID   string
	OrderKind string // "SALES" or "POINT"
	Status    string
}

// OrderService owns the order lifecycle: snapshot creation at checkout, the
// payment state machine, and the ledger debit that precedes the completion
// event.
type OrderService struct {
	carts       CartRepo
	orders      OrderRepo
	pointOrders PointOrderRepo
	ledger      *LedgerService
	directory   AccountDirectory
	bus         *eventbus.Bus
	idem        IdempotencyStore
	log         *slog.Logger
}

func NewOrderService(
	carts CartRepo,
	orders OrderRepo,
	pointOrders PointOrderRepo,
	ledger *LedgerService,
	directory AccountDirectory,
	bus *eventbus.Bus,
	idem IdempotencyStore,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		carts:       carts,
		orders:      orders,
		pointOrders: pointOrders,
		ledger:      ledger,
		directory:   directory,
		bus:         bus,
		idem:        idem,
		log:         log,
	}
}

// Checkout converts a cart into an order, deduplicated by the caller's
// idempotency key (scoped to the organisation). A replayed key returns the
// original order; a key currently being processed fails with ErrDuplicate.
func (s *OrderService) Checkout(ctx context.Context, in CheckoutInput) (CheckoutOutput, error) {
	cart, err := s.carts.Get(ctx, in.CartID)
	if err != nil {
		return CheckoutOutput{}, err
	}

	if in.IdempotencyKey != "" {
		if id, ok, _ := s.idem.Recall(ctx, cart.OrganisationID, in.IdempotencyKey); ok {
			return s.checkoutOutputFor(ctx, id)
		}
		ok, err := s.idem.TryLock(ctx, cart.OrganisationID, in.IdempotencyKey)
		if err != nil {
			return CheckoutOutput{}, err
		}
		if !ok {
			return CheckoutOutput{}, ErrDuplicate
		}
	}

	out, err := s.CreateFromCart(ctx, in.CartID)
	if err != nil {
		return CheckoutOutput{}, err
	}
	if in.IdempotencyKey != "" {
		_ = s.idem.Remember(ctx, cart.OrganisationID, in.IdempotencyKey, out.OrderID)
	}
	return out, nil
}

// checkoutOutputFor answers a replayed checkout with the stored order's
// current kind and status rather than a guess.
func (s *OrderService) checkoutOutputFor(ctx context.Context, orderID string) (CheckoutOutput, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err == nil {
		return CheckoutOutput{OrderID: order.ID, OrderKind: "SALES", Status: string(order.Status)}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return CheckoutOutput{}, err
	}
	pointOrder, err := s.pointOrders.Get(ctx, orderID)
	if err != nil {
		return CheckoutOutput{}, err
	}
	return CheckoutOutput{OrderID: pointOrder.ID, OrderKind: "POINT", Status: string(pointOrder.Status)}, nil
}

// CreateFromCart snapshots an open cart into an order. The store's unique
// key on the cart reference makes the second attempt fail with
// domain.ErrOrderExists; the cart moves to CHECKED_OUT only after the order
// is durably created. Carts with any cents total become sales orders; pure
// points carts become point orders.
func (s *OrderService) CreateFromCart(ctx context.Context, cartID string) (CheckoutOutput, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return CheckoutOutput{}, err
	}
	if cart.Status != domain.CartOpen {
		return CheckoutOutput{}, fmt.Errorf("%w: cart %s is %s", domain.ErrInvalidState, cartID, cart.Status)
	}
	if errs := cart.Validate(); len(errs) > 0 {
		return CheckoutOutput{}, fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(errs, "; "))
	}

	items := snapshotItems(cart.Items)

	var out CheckoutOutput
	if cart.TotalInclCents > 0 {
		order := &domain.SalesOrder{
			ID:             uuid.NewString(),
			CartID:         cart.ID,
			OrganisationID: cart.OrganisationID,
			Status:         domain.OrderPending,
			Items:          items,
			TotalExclCents: cart.TotalExclCents,
			TotalInclCents: cart.TotalInclCents,
		}
		if err := s.orders.Create(ctx, order); err != nil {
			return CheckoutOutput{}, err
		}
		out = CheckoutOutput{OrderID: order.ID, OrderKind: "SALES", Status: string(order.Status)}
	} else {
		accountID, err := s.directory.AccountFor(ctx, cart.OrganisationID, domain.AccountOrgPoints)
		if err != nil {
			return CheckoutOutput{}, fmt.Errorf("resolve point account: %w", err)
		}
		order := &domain.PointOrder{
			ID:          uuid.NewString(),
			CartID:      cart.ID,
			AccountID:   accountID,
			Status:      domain.OrderPending,
			Items:       items,
			TotalPoints: cart.TotalPoints,
		}
		if err := s.pointOrders.Create(ctx, order); err != nil {
			return CheckoutOutput{}, err
		}
		out = CheckoutOutput{OrderID: order.ID, OrderKind: "POINT", Status: string(order.Status)}
	}

	if ok, err := s.carts.UpdateStatusIf(ctx, cart.ID, domain.CartOpen, domain.CartCheckedOut); err != nil {
		s.log.Error("cart status update failed after order create", "cart", cart.ID, "err", err)
	} else if !ok {
		s.log.Warn("cart no longer open after order create", "cart", cart.ID)
	}
	return out, nil
}

// ProcessPayment debits the paying wallet for the full order total. The
// debit commits strictly before the completion event is emitted, so
// listeners can rely on it being durable. Failure marks the order FAILED and
// returns the reason; no completion event is emitted.
func (s *OrderService) ProcessPayment(ctx context.Context, orderID string) error {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderPending {
		return fmt.Errorf("%w: order %s is %s", domain.ErrInvalidState, orderID, order.Status)
	}

	walletID, err := s.directory.AccountFor(ctx, order.OrganisationID, domain.AccountOrgWallet)
	if err != nil {
		return fmt.Errorf("resolve wallet: %w", err)
	}

	desc := fmt.Sprintf("Payment for order %s", order.ID)
	if err := s.ledger.DeductFunds(ctx, walletID, order.TotalInclCents, desc, order.ID); err != nil {
		ordersProcessed.WithLabelValues("sales", "failed").Inc()
		if ok, uerr := s.orders.UpdateStatusIf(ctx, order.ID, domain.OrderPending, domain.OrderFailed); uerr != nil || !ok {
			s.log.Error("could not mark order failed", "order", order.ID, "err", uerr)
		}
		return fmt.Errorf("payment for order %s: %w", order.ID, err)
	}

	if ok, err := s.orders.UpdateStatusIf(ctx, order.ID, domain.OrderPending, domain.OrderPaid); err != nil || !ok {
		// Debit is already durable; surface loudly instead of double-charging.
		s.log.Error("debit committed but order not marked paid", "order", order.ID, "err", err)
		return fmt.Errorf("order %s: status update after debit failed", order.ID)
	}
	ordersProcessed.WithLabelValues("sales", "paid").Inc()

	if err := s.bus.Emit(ctx, EventOrderPaymentCompleted, eventbus.Payload{"order_id": order.ID}, true); err != nil {
		// Payment stands; fulfillment will need a replay.
		s.log.Error("payment completed but event emit failed", "order", order.ID, "err", err)
	}
	return nil
}

// ProcessPointPayment is ProcessPayment for point orders, debiting the
// organisation point account.
func (s *OrderService) ProcessPointPayment(ctx context.Context, orderID string) error {
	order, err := s.pointOrders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderPending {
		return fmt.Errorf("%w: point order %s is %s", domain.ErrInvalidState, orderID, order.Status)
	}

	desc := fmt.Sprintf("Payment for point order %s", order.ID)
	if err := s.ledger.DeductFunds(ctx, order.AccountID, order.TotalPoints, desc, order.ID); err != nil {
		ordersProcessed.WithLabelValues("point", "failed").Inc()
		if ok, uerr := s.pointOrders.UpdateStatusIf(ctx, order.ID, domain.OrderPending, domain.OrderFailed); uerr != nil || !ok {
			s.log.Error("could not mark point order failed", "order", order.ID, "err", uerr)
		}
		return fmt.Errorf("payment for point order %s: %w", order.ID, err)
	}

	if ok, err := s.pointOrders.UpdateStatusIf(ctx, order.ID, domain.OrderPending, domain.OrderPaid); err != nil || !ok {
		s.log.Error("debit committed but point order not marked paid", "order", order.ID, "err", err)
		return fmt.Errorf("point order %s: status update after debit failed", order.ID)
	}
	ordersProcessed.WithLabelValues("point", "paid").Inc()

	if err := s.bus.Emit(ctx, EventPointOrderPaymentCompleted, eventbus.Payload{"order_id": order.ID}, true); err != nil {
		s.log.Error("payment completed but event emit failed", "order", order.ID, "err", err)
	}
	return nil
}

// Validate is the pre-flight check for callers that want to short-circuit
// before attempting payment.
func (s *OrderService) Validate(ctx context.Context, orderID string) (bool, []string, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return false, nil, err
	}
	errs := order.Validate()

	walletID, err := s.directory.AccountFor(ctx, order.OrganisationID, domain.AccountOrgWallet)
	if err != nil {
		return false, nil, fmt.Errorf("resolve wallet: %w", err)
	}
	balance, err := s.ledger.Balance(ctx, walletID)
	if err != nil {
		return false, nil, err
	}
	if balance < order.TotalInclCents {
		errs = append(errs, "insufficient funds in organisation wallet")
	}
	return len(errs) == 0, errs, nil
}

// Refund credits the full order total back to the paying wallet and moves
// the order PAID -> REFUNDED.
func (s *OrderService) Refund(ctx context.Context, orderID, reason string) error {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(order.Status, domain.OrderRefunded) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, domain.OrderRefunded)
	}

	walletID, err := s.directory.AccountFor(ctx, order.OrganisationID, domain.AccountOrgWallet)
	if err != nil {
		return fmt.Errorf("resolve wallet: %w", err)
	}
	desc := fmt.Sprintf("Refund for order %s: %s", order.ID, reason)
	if err := s.ledger.RefundFunds(ctx, walletID, order.TotalInclCents, desc, order.ID); err != nil {
		return err
	}
	if ok, err := s.orders.UpdateStatusIf(ctx, order.ID, domain.OrderPaid, domain.OrderRefunded); err != nil || !ok {
		s.log.Error("refund credited but order not marked refunded", "order", order.ID, "err", err)
		return fmt.Errorf("order %s: status update after refund failed", order.ID)
	}
	return nil
}

// snapshotItems copies the cart's line items into the order; the snapshot
// keeps the cart item ids so fulfillment idempotency survives re-checkout
// inspection.
func snapshotItems(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	copy(out, items)
	return out
}
