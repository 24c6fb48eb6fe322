package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domain "github.com/openbounty/commerce-api/internal/entity"
)

func newTestPricing(fees *stubFees, taxes *stubTaxes, cache *memRateCache) *Pricing {
	return NewPricing(fees, taxes, cache, PricingConfig{
		DefaultFeeBps:     500,
		MinFeeCents:       50,
		FeeThresholdCents: 100,
	}, testLogger())
}

func TestPlatformFee(t *testing.T) {
	ctx := context.Background()

	t.Run("five percent of base", func(t *testing.T) {
		p := newTestPricing(&stubFees{}, &stubTaxes{}, newMemRateCache())
		fee, err := p.PlatformFee(ctx, 10_000)
		require.NoError(t, err)
		assert.Equal(t, int64(500), fee)
	})

	t.Run("below threshold is free", func(t *testing.T) {
		p := newTestPricing(&stubFees{}, &stubTaxes{}, newMemRateCache())
		fee, err := p.PlatformFee(ctx, 99)
		require.NoError(t, err)
		assert.Zero(t, fee)
	})

	t.Run("minimum fee floor", func(t *testing.T) {
		// 5% of 200 is 10, below the 50 cent minimum.
		p := newTestPricing(&stubFees{}, &stubTaxes{}, newMemRateCache())
		fee, err := p.PlatformFee(ctx, 200)
		require.NoError(t, err)
		assert.Equal(t, int64(50), fee)
	})

	t.Run("integer arithmetic rounds down", func(t *testing.T) {
		p := newTestPricing(&stubFees{}, &stubTaxes{}, newMemRateCache())
		fee, err := p.PlatformFee(ctx, 10_001)
		require.NoError(t, err)
		assert.Equal(t, int64(500), fee) // floor(10001*500/10000)
	})

	t.Run("config overrides default rate", func(t *testing.T) {
		fees := &stubFees{cfg: &domain.FeeConfig{
			ID:          "fc-1",
			PercentBps:  750,
			AppliesFrom: time.Now().Add(-time.Hour),
		}}
		p := newTestPricing(fees, &stubTaxes{}, newMemRateCache())
		fee, err := p.PlatformFee(ctx, 10_000)
		require.NoError(t, err)
		assert.Equal(t, int64(750), fee)
	})

	t.Run("future config not yet effective", func(t *testing.T) {
		fees := &stubFees{cfg: &domain.FeeConfig{
			ID:          "fc-2",
			PercentBps:  750,
			AppliesFrom: time.Now().Add(time.Hour),
		}}
		p := newTestPricing(fees, &stubTaxes{}, newMemRateCache())
		fee, err := p.PlatformFee(ctx, 10_000)
		require.NoError(t, err)
		assert.Equal(t, int64(500), fee) // falls back to default
	})

	t.Run("rate served from cache", func(t *testing.T) {
		cache := newMemRateCache()
		fees := &stubFees{cfg: &domain.FeeConfig{
			ID:          "fc-3",
			PercentBps:  750,
			AppliesFrom: time.Now().Add(-time.Hour),
		}}
		p := newTestPricing(fees, &stubTaxes{}, cache)

		_, err := p.PlatformFee(ctx, 10_000)
		require.NoError(t, err)

		// A repo change is invisible until the cache entry expires.
		fees.cfg.PercentBps = 1_000
		fee, err := p.PlatformFee(ctx, 10_000)
		require.NoError(t, err)
		assert.Equal(t, int64(750), fee)
	})
}

func TestSalesTax(t *testing.T) {
	ctx := context.Background()

	t.Run("known country", func(t *testing.T) {
		p := newTestPricing(&stubFees{}, &stubTaxes{rates: map[string]int64{"US": 1_000}}, newMemRateCache())
		tax, err := p.SalesTax(ctx, 10_000, "US")
		require.NoError(t, err)
		assert.Equal(t, int64(1_000), tax)
	})

	t.Run("unknown country is zero tax", func(t *testing.T) {
		p := newTestPricing(&stubFees{}, &stubTaxes{rates: map[string]int64{}}, newMemRateCache())
		tax, err := p.SalesTax(ctx, 10_000, "XX")
		require.NoError(t, err)
		assert.Zero(t, tax)
	})

	t.Run("rates cached per country", func(t *testing.T) {
		cache := newMemRateCache()
		taxes := &stubTaxes{rates: map[string]int64{"US": 1_000, "DE": 1_900}}
		p := newTestPricing(&stubFees{}, taxes, cache)

		_, err := p.SalesTax(ctx, 10_000, "US")
		require.NoError(t, err)
		_, err = p.SalesTax(ctx, 10_000, "DE")
		require.NoError(t, err)

		taxes.rates["US"] = 2_000
		tax, err := p.SalesTax(ctx, 10_000, "US")
		require.NoError(t, err)
		assert.Equal(t, int64(1_000), tax)

		tax, err = p.SalesTax(ctx, 10_000, "DE")
		require.NoError(t, err)
		assert.Equal(t, int64(1_900), tax)
	})
}
