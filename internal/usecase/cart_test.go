package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domain "github.com/openbounty/commerce-api/internal/entity"
)

func newCartFixture(t *testing.T) (*CartService, *memCarts, *memGrants) {
	t.Helper()
	carts := newMemCarts()
	grants := newMemGrants()
	pricing := newTestPricing(&stubFees{}, &stubTaxes{rates: map[string]int64{"US": 1_000}}, newMemRateCache())
	return NewCartService(carts, grants, pricing, testLogger()), carts, grants
}

func openCart(t *testing.T, svc *CartService) *domain.Cart {
	t.Helper()
	cart, err := svc.OpenCart(context.Background(), "org-1", "US")
	require.NoError(t, err)
	return cart
}

func TestOpenCartReturnsExisting(t *testing.T) {
	svc, _, _ := newCartFixture(t)

	first := openCart(t, svc)
	second := openCart(t, svc)
	assert.Equal(t, first.ID, second.ID)
}

func TestAddBountyLineComputesTotals(t *testing.T) {
	svc, carts, _ := newCartFixture(t)
	cart := openCart(t, svc)

	err := svc.AddBountyLine(context.Background(), cart.ID, BountyPurchase{
		BountyID: "bounty-1",
		Title:    "Fix login flow",
		Reward:   domain.Cents(10_000),
	}, 1)
	require.NoError(t, err)

	got, err := carts.Get(context.Background(), cart.ID)
	require.NoError(t, err)
	// 10000 base, 5% fee, 10% US tax
	assert.Equal(t, int64(10_000), got.TotalExclCents)
	assert.Equal(t, int64(11_500), got.TotalInclCents)
	assert.Len(t, got.Items, 3) // bounty + fee + tax
}

func TestRecomputeTotalsIsIdempotent(t *testing.T) {
	svc, carts, _ := newCartFixture(t)
	cart := openCart(t, svc)

	require.NoError(t, svc.AddBountyLine(context.Background(), cart.ID, BountyPurchase{
		BountyID: "bounty-1",
		Reward:   domain.Cents(10_000),
	}, 1))

	before, err := carts.Get(context.Background(), cart.ID)
	require.NoError(t, err)

	require.NoError(t, svc.RecomputeTotals(context.Background(), cart.ID))
	require.NoError(t, svc.RecomputeTotals(context.Background(), cart.ID))

	after, err := carts.Get(context.Background(), cart.ID)
	require.NoError(t, err)
	assert.Equal(t, before.TotalInclCents, after.TotalInclCents)
	assert.Len(t, after.Items, len(before.Items)) // one fee, one tax, never more
}

func TestAddBountyLineRejectsDuplicate(t *testing.T) {
	svc, _, _ := newCartFixture(t)
	cart := openCart(t, svc)

	purchase := BountyPurchase{BountyID: "bounty-1", Reward: domain.Cents(5_000)}
	require.NoError(t, svc.AddBountyLine(context.Background(), cart.ID, purchase, 1))

	err := svc.AddBountyLine(context.Background(), cart.ID, purchase, 1)
	assert.ErrorIs(t, err, domain.ErrDuplicateItem)
}

func TestAddBountyLineRejectsClosedCart(t *testing.T) {
	svc, carts, _ := newCartFixture(t)
	cart := openCart(t, svc)

	_, err := carts.UpdateStatusIf(context.Background(), cart.ID, domain.CartOpen, domain.CartCheckedOut)
	require.NoError(t, err)

	err = svc.AddBountyLine(context.Background(), cart.ID, BountyPurchase{
		BountyID: "bounty-1",
		Reward:   domain.Cents(5_000),
	}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestAddPointGrantLine(t *testing.T) {
	svc, carts, grants := newCartFixture(t)
	cart := openCart(t, svc)

	grants.addRequest(&domain.GrantRequest{
		ID:             "gr-1",
		OrganisationID: "org-1",
		Points:         2_500,
		Type:           domain.GrantPaid,
		Status:         domain.GrantRequestPending,
	})

	require.NoError(t, svc.AddPointGrantLine(context.Background(), cart.ID, "gr-1", 1))

	got, err := carts.Get(context.Background(), cart.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2_500), got.TotalPoints)
	assert.Zero(t, got.TotalExclCents)
}

func TestAddPointGrantLineRejectsFreeGrant(t *testing.T) {
	svc, _, grants := newCartFixture(t)
	cart := openCart(t, svc)

	grants.addRequest(&domain.GrantRequest{
		ID:     "gr-free",
		Points: 1_000,
		Type:   domain.GrantFree,
		Status: domain.GrantRequestPending,
	})

	err := svc.AddPointGrantLine(context.Background(), cart.ID, "gr-free", 1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestValidateEmptyCart(t *testing.T) {
	svc, _, _ := newCartFixture(t)
	cart := openCart(t, svc)

	ok, errs, err := svc.Validate(context.Background(), cart.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotEmpty(t, errs)
}
