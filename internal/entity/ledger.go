package domain

import (
	"fmt"
	"time"
)

// AccountKind distinguishes the five ledger flavors. They share identical
// locking and append-only semantics; only the unit differs.
type AccountKind string

const (
	AccountOrgWallet         AccountKind = "ORG_WALLET"
	AccountContributorWallet AccountKind = "CONTRIBUTOR_WALLET"
	AccountOrgPoints         AccountKind = "ORG_POINTS"
	AccountProductPoints     AccountKind = "PRODUCT_POINTS"
	AccountContributorPoints AccountKind = "CONTRIBUTOR_POINTS"
)

// Unit returns which price kind this account is denominated in.
func (k AccountKind) Unit() PriceKind {
	switch k {
	case AccountOrgWallet, AccountContributorWallet:
		return PriceCents
	case AccountOrgPoints, AccountProductPoints, AccountContributorPoints:
		return PricePoints
	}
	return PriceUnset
}

// Account is a ledger account: a balance plus an append-only transaction
// log. The balance is always the sum of the signed transaction amounts.
type Account struct {
	ID      string
	OwnerID string
	Kind    AccountKind
	Balance int64
}

type Direction string

const (
	Credit Direction = "CREDIT"
	Debit  Direction = "DEBIT"
)

// Transaction is one immutable ledger entry. Amount is always positive;
// Direction carries the sign. ExternalRef deduplicates entries sourced from
// external payment feeds.
type Transaction struct {
	ID          string
	AccountID   string
	Amount      int64
	Direction   Direction
	Description string
	OrderID     string
	ExternalRef string
	CreatedAt   time.Time
}

// Signed returns the amount with its direction applied.
func (t Transaction) Signed() int64 {
	if t.Direction == Debit {
		return -t.Amount
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	if t.Amount <= 0 {
		return fmt.Errorf("%w: transaction amount must be positive", ErrValidation)
	}
	if t.Direction != Credit && t.Direction != Debit {
		return fmt.Errorf("%w: unknown direction %q", ErrValidation, t.Direction)
	}
	return nil
}
