package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/openbounty/commerce-api/internal/entity"
	"github.com/openbounty/commerce-api/internal/usecase"
)

type MySQLFeeConfigRepo struct{ db *sql.DB }

func NewMySQLFeeConfigRepo(db *sql.DB) *MySQLFeeConfigRepo { return &MySQLFeeConfigRepo{db: db} }

// ActiveConfig returns the most recent fee configuration in effect at the
// given time, or domain.ErrNotFound when none applies yet.
func (r *MySQLFeeConfigRepo) ActiveConfig(ctx context.Context, at time.Time) (*domain.FeeConfig, error) {
	var cfg domain.FeeConfig
	if err := r.db.QueryRowContext(ctx, `
SELECT id,percent_bps,applies_from FROM platform_fee_configs
WHERE applies_from <= ? ORDER BY applies_from DESC LIMIT 1`, at).Scan(
		&cfg.ID, &cfg.PercentBps, &cfg.AppliesFrom); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

var _ usecase.FeeConfigRepo = (*MySQLFeeConfigRepo)(nil)

type MySQLTaxRateRepo struct{ db *sql.DB }

func NewMySQLTaxRateRepo(db *sql.DB) *MySQLTaxRateRepo { return &MySQLTaxRateRepo{db: db} }

// RateBps looks up the sales tax rate for a country. Unknown countries are
// ok=false, which callers treat as zero tax.
func (r *MySQLTaxRateRepo) RateBps(ctx context.Context, countryCode string) (int64, bool, error) {
	var bps int64
	if err := r.db.QueryRowContext(ctx, `
SELECT rate_bps FROM tax_rates WHERE country_code=?`, countryCode).Scan(&bps); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return bps, true, nil
}

var _ usecase.TaxRateRepo = (*MySQLTaxRateRepo)(nil)
