package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderPending, OrderPaid, true},
		{OrderPending, OrderFailed, true},
		{OrderPaid, OrderRefunded, true},
		{OrderPending, OrderRefunded, false},
		{OrderPaid, OrderPending, false},
		{OrderFailed, OrderPaid, false},
		{OrderRefunded, OrderPaid, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSalesOrderTransition(t *testing.T) {
	o := &SalesOrder{Status: OrderPending}
	require.NoError(t, o.Transition(OrderPaid))
	assert.Equal(t, OrderPaid, o.Status)

	err := o.Transition(OrderPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, OrderPaid, o.Status) // unchanged after rejection
}

func TestTransactionSigned(t *testing.T) {
	assert.Equal(t, int64(500), Transaction{Amount: 500, Direction: Credit}.Signed())
	assert.Equal(t, int64(-500), Transaction{Amount: 500, Direction: Debit}.Signed())
}

func TestTransactionValidate(t *testing.T) {
	assert.ErrorIs(t, Transaction{Amount: 0, Direction: Credit}.Validate(), ErrValidation)
	assert.ErrorIs(t, Transaction{Amount: -1, Direction: Debit}.Validate(), ErrValidation)
	assert.ErrorIs(t, Transaction{Amount: 10, Direction: "SIDEWAYS"}.Validate(), ErrValidation)
	assert.NoError(t, Transaction{Amount: 10, Direction: Debit}.Validate())
}

func TestPriceValidate(t *testing.T) {
	assert.ErrorIs(t, Price{}.Validate(), ErrValidation)
	assert.ErrorIs(t, Cents(-1).Validate(), ErrValidation)
	assert.NoError(t, Cents(0).Validate())
	assert.NoError(t, Points(100).Validate())
}

func TestAccountKindUnit(t *testing.T) {
	assert.Equal(t, PriceCents, AccountOrgWallet.Unit())
	assert.Equal(t, PriceCents, AccountContributorWallet.Unit())
	assert.Equal(t, PricePoints, AccountOrgPoints.Unit())
	assert.Equal(t, PricePoints, AccountProductPoints.Unit())
	assert.Equal(t, PricePoints, AccountContributorPoints.Unit())
}
