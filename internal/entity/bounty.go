package domain

import "time"

type BountyStatus string

const (
	BountyFunded BountyStatus = "FUNDED"
)

// Bounty is the funded task record created by fulfillment after payment.
// OrderItemID links back to the order line item that paid for it and is the
// idempotency key: one line item produces at most one bounty.
type Bounty struct {
	ID          string
	ProductID   string
	Title       string
	Reward      Price
	Status      BountyStatus
	OrderItemID string
	CreatedAt   time.Time
}

type GrantType string

const (
	GrantFree GrantType = "FREE"
	GrantPaid GrantType = "PAID"
)

type GrantRequestStatus string

const (
	GrantRequestPending  GrantRequestStatus = "PENDING"
	GrantRequestApproved GrantRequestStatus = "APPROVED"
	GrantRequestRejected GrantRequestStatus = "REJECTED"
)

// GrantRequest asks for points on behalf of an organisation. FREE requests
// settle on approval; PAID requests settle through checkout.
type GrantRequest struct {
	ID             string
	OrganisationID string
	Points         int64
	Type           GrantType
	Status         GrantRequestStatus
	Rationale      string
}

// PointGrant is the settled outcome of a grant request. For paid grants,
// OrderItemID links the order line item that funded it (idempotency key).
type PointGrant struct {
	ID             string
	OrganisationID string
	Points         int64
	GrantRequestID string
	OrderItemID    string
	Rationale      string
	CreatedAt      time.Time
}

// FeeConfig is a versioned, time-scoped platform fee record. The active
// config is the most recent one whose AppliesFrom is not in the future.
type FeeConfig struct {
	ID          string
	PercentBps  int64
	AppliesFrom time.Time
}

// TaxRate is a per-country sales tax record, rate in basis points.
type TaxRate struct {
	CountryCode string
	RateBps     int64
	Name        string
}
