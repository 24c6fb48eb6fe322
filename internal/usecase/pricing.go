package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/openbounty/commerce-api/internal/entity"
)

const (
	feeRateCacheKey    = "rates:fee_bps"
	taxRateCachePrefix = "rates:tax_bps:"
)

// PricingConfig carries the fallback fee parameters. Rates are basis points;
// all arithmetic stays in integer minor units.
type PricingConfig struct {
	DefaultFeeBps     int64
	MinFeeCents       int64
	FeeThresholdCents int64
}

// Pricing computes platform fees and sales taxes for cart totals. Both
// lookups go through a time-boxed cache because they run on every cart
// mutation; cache failures fall through to the repos.
type Pricing struct {
	fees  FeeConfigRepo
	taxes TaxRateRepo
	cache RateCache
	cfg   PricingConfig
	log   *slog.Logger

	now func() time.Time
}

func NewPricing(fees FeeConfigRepo, taxes TaxRateRepo, cache RateCache, cfg PricingConfig, log *slog.Logger) *Pricing {
	return &Pricing{
		fees:  fees,
		taxes: taxes,
		cache: cache,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// PlatformFee returns floor(amount * rate) with a minimum fee floor once the
// amount crosses the threshold; amounts below the threshold incur no fee.
func (p *Pricing) PlatformFee(ctx context.Context, amountCents int64) (int64, error) {
	if amountCents < p.cfg.FeeThresholdCents {
		return 0, nil
	}
	bps, err := p.feeRateBps(ctx)
	if err != nil {
		return 0, fmt.Errorf("fee rate lookup: %w", err)
	}
	fee := amountCents * bps / 10_000
	if fee < p.cfg.MinFeeCents {
		fee = p.cfg.MinFeeCents
	}
	return fee, nil
}

// SalesTax returns floor(amount * rate) for the country. Unknown country
// codes yield zero tax; failing open here is a business decision, not an
// error.
func (p *Pricing) SalesTax(ctx context.Context, amountCents int64, countryCode string) (int64, error) {
	key := taxRateCachePrefix + countryCode
	if bps, ok := p.cacheGet(ctx, key); ok {
		return amountCents * bps / 10_000, nil
	}

	bps, ok, err := p.taxes.RateBps(ctx, countryCode)
	if err != nil {
		return 0, fmt.Errorf("tax rate lookup for %s: %w", countryCode, err)
	}
	if !ok {
		bps = 0
	}
	p.cacheSet(ctx, key, bps)
	return amountCents * bps / 10_000, nil
}

func (p *Pricing) feeRateBps(ctx context.Context) (int64, error) {
	if bps, ok := p.cacheGet(ctx, feeRateCacheKey); ok {
		return bps, nil
	}

	cfg, err := p.fees.ActiveConfig(ctx, p.now())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		p.cacheSet(ctx, feeRateCacheKey, p.cfg.DefaultFeeBps)
		return p.cfg.DefaultFeeBps, nil
	case err != nil:
		return 0, err
	}
	p.cacheSet(ctx, feeRateCacheKey, cfg.PercentBps)
	return cfg.PercentBps, nil
}

func (p *Pricing) cacheGet(ctx context.Context, key string) (int64, bool) {
	v, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.log.Warn("rate cache get failed", "key", key, "err", err)
		return 0, false
	}
	return v, ok
}

func (p *Pricing) cacheSet(ctx context.Context, key string, v int64) {
	if err := p.cache.Set(ctx, key, v); err != nil {
		p.log.Warn("rate cache set failed", "key", key, "err", err)
	}
}
