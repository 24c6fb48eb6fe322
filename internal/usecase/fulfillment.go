package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	domain "github.com/openbounty/commerce-api/internal/entity"
	"github.com/openbounty/commerce-api/internal/eventbus"
)

var fulfillmentItems = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "commerce_fulfillment_items_total",
		Help: "Fulfilled order line items by type and outcome",
	},
	[]string{"item_type", "outcome"},
)

// Fulfillment reacts to payment-completed events: it creates funded bounties
// for BOUNTY items and settles point grants for POINT_GRANT items. Handlers
// are idempotent (a line item already referenced by a bounty or grant is
// skipped), which is what makes the bus's at-least-once delivery safe.
//
// Sibling policy: best effort. One item's failure does not stop the
// remaining items; partial failure is reported through
// order_processing_failed and the handler error.
type Fulfillment struct {
	orders      OrderRepo
	pointOrders PointOrderRepo
	bounties    BountyCreator
	grants      GrantStore
	ledger      *LedgerService
	directory   AccountDirectory
	bus         *eventbus.Bus
	log         *slog.Logger
}

func NewFulfillment(
	orders OrderRepo,
	pointOrders PointOrderRepo,
	bounties BountyCreator,
	grants GrantStore,
	ledger *LedgerService,
	directory AccountDirectory,
	bus *eventbus.Bus,
	log *slog.Logger,
) *Fulfillment {
	return &Fulfillment{
		orders:      orders,
		pointOrders: pointOrders,
		bounties:    bounties,
		grants:      grants,
		ledger:      ledger,
		directory:   directory,
		bus:         bus,
		log:         log,
	}
}

// Register subscribes the fulfillment handlers. Call once at startup, before
// traffic.
func (f *Fulfillment) Register(bus *eventbus.Bus) {
	bus.Register(EventOrderPaymentCompleted,
		eventbus.Listener("fulfillment.process_paid_order", f.HandlePaymentCompleted))
	bus.Register(EventPointOrderPaymentCompleted,
		eventbus.Listener("fulfillment.process_paid_point_order", f.HandlePointPaymentCompleted))
}

// HandlePaymentCompleted processes a paid sales order's snapshot items.
func (f *Fulfillment) HandlePaymentCompleted(ctx context.Context, p eventbus.Payload) error {
	orderID, ok := p.GetString("order_id")
	if !ok || orderID == "" {
		err := errors.New("missing order_id in payload")
		f.reportFailure(ctx, orderID, err)
		return err
	}

	order, err := f.orders.Get(ctx, orderID)
	if err != nil {
		f.reportFailure(ctx, orderID, err)
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	if order.Status != domain.OrderPaid {
		// Stale or replayed delivery; nothing to do.
		f.log.Info("skipping fulfillment for non-paid order", "order", orderID, "status", order.Status)
		return nil
	}

	var failures []string
	var fulfilled int
	for _, item := range order.Items {
		switch item.Type {
		case domain.ItemBounty:
			if err := f.fulfillBounty(ctx, order.ID, item); err != nil {
				fulfillmentItems.WithLabelValues(string(item.Type), "failed").Inc()
				failures = append(failures, fmt.Sprintf("item %s: %v", item.ID, err))
				continue
			}
			fulfillmentItems.WithLabelValues(string(item.Type), "ok").Inc()
			fulfilled++
		case domain.ItemPointGrant:
			if err := f.settleGrant(ctx, order.OrganisationID, item); err != nil {
				fulfillmentItems.WithLabelValues(string(item.Type), "failed").Inc()
				failures = append(failures, fmt.Sprintf("item %s: %v", item.ID, err))
				continue
			}
			fulfillmentItems.WithLabelValues(string(item.Type), "ok").Inc()
			fulfilled++
		}
	}

	if len(failures) > 0 {
		err := fmt.Errorf("partial fulfillment of order %s: %s", orderID, strings.Join(failures, "; "))
		f.reportFailure(ctx, orderID, err)
		return err
	}

	f.emit(ctx, EventOrderProcessingCompleted, eventbus.Payload{
		"order_id": orderID,
		"message":  fmt.Sprintf("%d items processed", fulfilled),
	})
	return nil
}

// HandlePointPaymentCompleted creates bounties for a paid point order.
func (f *Fulfillment) HandlePointPaymentCompleted(ctx context.Context, p eventbus.Payload) error {
	orderID, ok := p.GetString("order_id")
	if !ok || orderID == "" {
		err := errors.New("missing order_id in payload")
		f.reportFailure(ctx, orderID, err)
		return err
	}

	order, err := f.pointOrders.Get(ctx, orderID)
	if err != nil {
		f.reportFailure(ctx, orderID, err)
		return fmt.Errorf("load point order %s: %w", orderID, err)
	}
	if order.Status != domain.OrderPaid {
		f.log.Info("skipping fulfillment for non-paid point order", "order", orderID, "status", order.Status)
		return nil
	}

	var failures []string
	var fulfilled int
	for _, item := range order.Items {
		if item.Type != domain.ItemBounty {
			continue
		}
		if err := f.fulfillBounty(ctx, order.ID, item); err != nil {
			fulfillmentItems.WithLabelValues(string(item.Type), "failed").Inc()
			failures = append(failures, fmt.Sprintf("item %s: %v", item.ID, err))
			continue
		}
		fulfillmentItems.WithLabelValues(string(item.Type), "ok").Inc()
		fulfilled++
	}

	if len(failures) > 0 {
		err := fmt.Errorf("partial fulfillment of point order %s: %s", orderID, strings.Join(failures, "; "))
		f.reportFailure(ctx, orderID, err)
		return err
	}

	f.emit(ctx, EventOrderProcessingCompleted, eventbus.Payload{
		"order_id": orderID,
		"message":  fmt.Sprintf("%d items processed", fulfilled),
	})
	return nil
}

func (f *Fulfillment) fulfillBounty(ctx context.Context, orderID string, item domain.LineItem) error {
	exists, err := f.bounties.ExistsForOrderItem(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if exists {
		f.log.Info("bounty already created for item, skipping", "item", item.ID)
		return nil
	}
	bountyID, err := f.bounties.CreateFromOrderItem(ctx, orderID, item)
	if err != nil {
		return fmt.Errorf("create bounty: %w", err)
	}
	f.log.Info("funded bounty created", "order", orderID, "item", item.ID, "bounty", bountyID)
	return nil
}

func (f *Fulfillment) settleGrant(ctx context.Context, orgID string, item domain.LineItem) error {
	exists, err := f.grants.GrantExistsForOrderItem(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if exists {
		f.log.Info("grant already settled for item, skipping", "item", item.ID)
		return nil
	}

	req, err := f.grants.Request(ctx, item.GrantRequestID)
	if err != nil {
		return fmt.Errorf("load grant request %s: %w", item.GrantRequestID, err)
	}

	// Credit first, keyed by the order item so a replay after a partial
	// failure dedupes against the ledger instead of double-crediting. The
	// grant row is written last: it is the idempotency marker, and must not
	// exist before the points do.
	accountID, err := f.directory.AccountFor(ctx, orgID, domain.AccountOrgPoints)
	if err != nil {
		return fmt.Errorf("resolve point account: %w", err)
	}
	desc := fmt.Sprintf("Grant: %s", req.Rationale)
	if err := f.ledger.AddFunds(ctx, accountID, item.TotalPoints(), desc, "", "grant:item:"+item.ID); err != nil {
		return fmt.Errorf("credit points: %w", err)
	}

	grant := &domain.PointGrant{
		ID:             uuid.NewString(),
		OrganisationID: orgID,
		Points:         item.TotalPoints(),
		GrantRequestID: req.ID,
		OrderItemID:    item.ID,
		Rationale:      req.Rationale,
		CreatedAt:      time.Now().UTC(),
	}
	if err := f.grants.CreateGrant(ctx, grant); err != nil {
		return fmt.Errorf("create grant: %w", err)
	}

	if err := f.grants.UpdateRequestStatus(ctx, req.ID, domain.GrantRequestApproved); err != nil {
		f.log.Warn("grant settled but request status not updated", "request", req.ID, "err", err)
	}
	return nil
}

func (f *Fulfillment) reportFailure(ctx context.Context, orderID string, cause error) {
	f.emit(ctx, EventOrderProcessingFailed, eventbus.Payload{
		"order_id": orderID,
		"error":    cause.Error(),
	})
}

func (f *Fulfillment) emit(ctx context.Context, name string, p eventbus.Payload) {
	if err := f.bus.Emit(ctx, name, p, false); err != nil {
		f.log.Error("emit failed", "event", name, "err", err)
	}
}
