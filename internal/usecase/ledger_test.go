package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domain "github.com/openbounty/commerce-api/internal/entity"
)

func newLedgerFixture(t *testing.T) (*LedgerService, *memLedger) {
	t.Helper()
	store := newMemLedger()
	return NewLedgerService(store, testLogger()), store
}

func TestAddFunds(t *testing.T) {
	ctx := context.Background()
	svc, store := newLedgerFixture(t)
	store.addAccount("acc-1", domain.AccountOrgWallet, 0)

	require.NoError(t, svc.AddFunds(ctx, "acc-1", 20_000, "top-up", "credit_card", "gw-tx-1"))

	balance, err := svc.Balance(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20_000), balance)

	txs, err := svc.Transactions(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.Credit, txs[0].Direction)
	assert.Equal(t, "gw-tx-1", txs[0].ExternalRef)
}

func TestAddFundsRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	svc, store := newLedgerFixture(t)
	store.addAccount("acc-1", domain.AccountOrgWallet, 0)

	assert.ErrorIs(t, svc.AddFunds(ctx, "acc-1", 0, "", "", ""), domain.ErrValidation)
	assert.ErrorIs(t, svc.AddFunds(ctx, "acc-1", -5, "", "", ""), domain.ErrValidation)
}

func TestAddFundsDeduplicatesExternalRef(t *testing.T) {
	ctx := context.Background()
	svc, store := newLedgerFixture(t)
	store.addAccount("acc-1", domain.AccountOrgWallet, 0)

	require.NoError(t, svc.AddFunds(ctx, "acc-1", 10_000, "top-up", "card", "gw-tx-1"))
	// Replayed gateway callback: same ref, no second credit.
	require.NoError(t, svc.AddFunds(ctx, "acc-1", 10_000, "top-up", "card", "gw-tx-1"))

	balance, err := svc.Balance(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), balance)
}

func TestDeductFundsInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	svc, store := newLedgerFixture(t)
	store.addAccount("acc-1", domain.AccountOrgWallet, 5_000)

	err := svc.DeductFunds(ctx, "acc-1", 11_500, "payment", "order-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	balance, err := svc.Balance(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), balance) // unchanged, nothing appended

	txs, err := svc.Transactions(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestBalanceEqualsSignedSum(t *testing.T) {
	ctx := context.Background()
	svc, store := newLedgerFixture(t)
	store.addAccount("acc-1", domain.AccountOrgWallet, 0)

	require.NoError(t, svc.AddFunds(ctx, "acc-1", 20_000, "top-up", "", ""))
	require.NoError(t, svc.DeductFunds(ctx, "acc-1", 11_500, "payment", "order-1"))
	require.NoError(t, svc.RefundFunds(ctx, "acc-1", 11_500, "refund", "order-1"))
	require.NoError(t, svc.DeductFunds(ctx, "acc-1", 4_000, "payment", "order-2"))

	txs, err := svc.Transactions(ctx, "acc-1")
	require.NoError(t, err)
	var sum int64
	for _, tx := range txs {
		sum += tx.Signed()
	}

	balance, err := svc.Balance(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, sum, balance)
	assert.Equal(t, int64(16_000), balance)
}

func TestConcurrentDeductsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	svc, store := newLedgerFixture(t)
	store.addAccount("acc-1", domain.AccountOrgWallet, 10_000)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.DeductFunds(ctx, "acc-1", 7_000, "payment", "order")
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 1, succeeded)

	balance, err := svc.Balance(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3_000), balance)
}
