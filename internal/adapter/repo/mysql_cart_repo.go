package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/openbounty/commerce-api/internal/entity"
	"github.com/openbounty/commerce-api/internal/usecase"
)

type MySQLCartRepo struct{ db *sql.DB }

func NewMySQLCartRepo(db *sql.DB) *MySQLCartRepo { return &MySQLCartRepo{db: db} }

func (r *MySQLCartRepo) Create(ctx context.Context, c *domain.Cart) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO carts (id,organisation_id,country_code,status,total_excl_cents,total_incl_cents,total_points,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,NOW(),NOW())
`, c.ID, c.OrganisationID, c.CountryCode, c.Status, c.TotalExclCents, c.TotalInclCents, c.TotalPoints)
	return err
}

func (r *MySQLCartRepo) Get(ctx context.Context, id string) (*domain.Cart, error) {
	return r.get(ctx, r.db, id, false)
}

func (r *MySQLCartRepo) GetOpenByOrganisation(ctx context.Context, orgID string) (*domain.Cart, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id FROM carts WHERE organisation_id=? AND status=? ORDER BY created_at DESC LIMIT 1`,
		orgID, domain.CartOpen)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.Get(ctx, id)
}

// WithCart locks the cart row for the duration of fn and persists the
// mutated aggregate before committing. Line items are replaced wholesale;
// the aggregate is small and exclusively owned by the cart.
func (r *MySQLCartRepo) WithCart(ctx context.Context, id string, fn func(c *domain.Cart) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cart, err := r.get(ctx, tx, id, true)
	if err != nil {
		return err
	}
	if err := fn(cart); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE carts SET status=?, total_excl_cents=?, total_incl_cents=?, total_points=?, updated_at=NOW()
WHERE id=?`,
		cart.Status, cart.TotalExclCents, cart.TotalInclCents, cart.TotalPoints, cart.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_line_items WHERE cart_id=?`, cart.ID); err != nil {
		return err
	}
	for _, li := range cart.Items {
		if err := insertLineItem(ctx, tx, "cart_line_items", "cart_id", cart.ID, li); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *MySQLCartRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.CartStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE carts SET status=?, updated_at=NOW() WHERE id=? AND status=?`, to, id, from)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *MySQLCartRepo) get(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Cart, error) {
	query := `
SELECT id,organisation_id,country_code,status,total_excl_cents,total_incl_cents,total_points
FROM carts WHERE id=?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var c domain.Cart
	if err := q.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.OrganisationID, &c.CountryCode, &c.Status,
		&c.TotalExclCents, &c.TotalInclCents, &c.TotalPoints); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	items, err := scanLineItems(ctx, q, `
SELECT id,item_type,quantity,unit_price_cents,unit_price_points,bounty_ref,grant_request_id,description
FROM cart_line_items WHERE cart_id=? ORDER BY created_at, id`, id)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return &c, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertLineItem(ctx context.Context, e execer, table, fkCol, fkVal string, li domain.LineItem) error {
	var cents, points sql.NullInt64
	switch li.UnitPrice.Kind {
	case domain.PriceCents:
		cents = sql.NullInt64{Int64: li.UnitPrice.Amount, Valid: true}
	case domain.PricePoints:
		points = sql.NullInt64{Int64: li.UnitPrice.Amount, Valid: true}
	}
	_, err := e.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (id,%s,item_type,quantity,unit_price_cents,unit_price_points,bounty_ref,grant_request_id,description,created_at)
VALUES (?,?,?,?,?,?,?,?,?,NOW())`, table, fkCol),
		li.ID, fkVal, li.Type, li.Quantity, cents, points, li.BountyRef, li.GrantRequestID, li.Description)
	return err
}

func scanLineItems(ctx context.Context, q querier, query string, args ...any) ([]domain.LineItem, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var li domain.LineItem
		var cents, points sql.NullInt64
		if err := rows.Scan(&li.ID, &li.Type, &li.Quantity, &cents, &points,
			&li.BountyRef, &li.GrantRequestID, &li.Description); err != nil {
			return nil, err
		}
		switch {
		case cents.Valid:
			li.UnitPrice = domain.Cents(cents.Int64)
		case points.Valid:
			li.UnitPrice = domain.Points(points.Int64)
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

var _ usecase.CartRepo = (*MySQLCartRepo)(nil)
