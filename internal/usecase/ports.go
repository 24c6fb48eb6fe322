package usecase

import (
	"context"
	"time"

	domain "github.com/openbounty/commerce-api/internal/entity"
)

// CartRepo persists carts with their line items. WithCart runs fn against a
// row-locked cart and persists the mutated aggregate atomically; this guards
// total recomputation against concurrent line-item additions.
type CartRepo interface {
	Create(ctx context.Context, c *domain.Cart) error
	Get(ctx context.Context, id string) (*domain.Cart, error)
	GetOpenByOrganisation(ctx context.Context, orgID string) (*domain.Cart, error)
	WithCart(ctx context.Context, id string, fn func(c *domain.Cart) error) error
	UpdateStatusIf(ctx context.Context, id string, from, to domain.CartStatus) (bool, error)
}

// OrderRepo persists sales orders. Create must map a duplicate cart
// reference (unique key violation) to domain.ErrOrderExists: the uniqueness
// constraint, not a pre-check, closes the double-checkout race.
type OrderRepo interface {
	Create(ctx context.Context, o *domain.SalesOrder) error
	Get(ctx context.Context, id string) (*domain.SalesOrder, error)
	GetByCart(ctx context.Context, cartID string) (*domain.SalesOrder, error)
	UpdateStatusIf(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error)
}

// PointOrderRepo is the points-denominated counterpart of OrderRepo.
type PointOrderRepo interface {
	Create(ctx context.Context, o *domain.PointOrder) error
	Get(ctx context.Context, id string) (*domain.PointOrder, error)
	UpdateStatusIf(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error)
}

// LedgerStore persists accounts and their append-only transaction logs.
// Mutate runs fn with the account locked exclusively; the returned
// transaction is applied to the balance and appended in the same atomic unit
// of work. fn returning an error rolls everything back.
type LedgerStore interface {
	Account(ctx context.Context, id string) (*domain.Account, error)
	Transactions(ctx context.Context, accountID string) ([]domain.Transaction, error)
	HasExternalRef(ctx context.Context, accountID, ref string) (bool, error)
	Mutate(ctx context.Context, accountID string, fn func(acc *domain.Account) (domain.Transaction, error)) error
}

// AccountDirectory resolves an owner to its ledger account of a given kind.
type AccountDirectory interface {
	AccountFor(ctx context.Context, ownerID string, kind domain.AccountKind) (string, error)
}

// FeeConfigRepo returns the fee configuration in effect at a point in time:
// the most recent record whose AppliesFrom <= at, or domain.ErrNotFound.
type FeeConfigRepo interface {
	ActiveConfig(ctx context.Context, at time.Time) (*domain.FeeConfig, error)
}

// TaxRateRepo looks up the sales tax rate for a country, in basis points.
// Unknown countries return ok=false, not an error.
type TaxRateRepo interface {
	RateBps(ctx context.Context, countryCode string) (int64, bool, error)
}

// RateCache is a time-boxed cache in front of the rate lookups, consulted on
// every cart mutation. Misses and cache errors fall through to the repo.
type RateCache interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	Set(ctx context.Context, key string, v int64) error
}

// BountyCreator is the bounty-creation collaborator consumed by fulfillment.
// ExistsForOrderItem is the idempotency probe that makes at-least-once
// delivery safe.
type BountyCreator interface {
	ExistsForOrderItem(ctx context.Context, orderItemID string) (bool, error)
	CreateFromOrderItem(ctx context.Context, orderID string, item domain.LineItem) (string, error)
}

// GrantStore persists point-grant requests and their settled grants.
type GrantStore interface {
	Request(ctx context.Context, id string) (*domain.GrantRequest, error)
	CreateGrant(ctx context.Context, g *domain.PointGrant) error
	GrantExistsForOrderItem(ctx context.Context, orderItemID string) (bool, error)
	UpdateRequestStatus(ctx context.Context, id string, status domain.GrantRequestStatus) error
}

// IdempotencyStore deduplicates checkout requests keyed by caller-supplied
// idempotency keys.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}
