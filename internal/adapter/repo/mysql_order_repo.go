package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	domain "github.com/openbounty/commerce-api/internal/entity"
	"github.com/openbounty/commerce-api/internal/usecase"
)

const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

// Create inserts the order and its snapshot items in one transaction. The
// unique key on cart_id turns a concurrent double checkout into
// domain.ErrOrderExists instead of a second order.
func (r *MySQLOrderRepo) Create(ctx context.Context, o *domain.SalesOrder) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO sales_orders (id,cart_id,organisation_id,status,total_excl_cents,total_incl_cents,created_at,updated_at)
VALUES (?,?,?,?,?,?,NOW(),NOW())
`, o.ID, o.CartID, o.OrganisationID, o.Status, o.TotalExclCents, o.TotalInclCents); err != nil {
		if isDuplicateKey(err) {
			return domain.ErrOrderExists
		}
		return err
	}
	for _, li := range o.Items {
		if err := insertLineItem(ctx, tx, "order_line_items", "order_id", o.ID, li); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *MySQLOrderRepo) Get(ctx context.Context, id string) (*domain.SalesOrder, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,cart_id,organisation_id,status,total_excl_cents,total_incl_cents
FROM sales_orders WHERE id=?`, id)
	return r.scan(ctx, row)
}

func (r *MySQLOrderRepo) GetByCart(ctx context.Context, cartID string) (*domain.SalesOrder, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,cart_id,organisation_id,status,total_excl_cents,total_incl_cents
FROM sales_orders WHERE cart_id=?`, cartID)
	return r.scan(ctx, row)
}

func (r *MySQLOrderRepo) scan(ctx context.Context, row *sql.Row) (*domain.SalesOrder, error) {
	var o domain.SalesOrder
	if err := row.Scan(&o.ID, &o.CartID, &o.OrganisationID, &o.Status,
		&o.TotalExclCents, &o.TotalInclCents); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	items, err := scanLineItems(ctx, r.db, `
SELECT id,item_type,quantity,unit_price_cents,unit_price_points,bounty_ref,grant_request_id,description
FROM order_line_items WHERE order_id=? ORDER BY created_at, id`, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *MySQLOrderRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE sales_orders SET status=?, updated_at=NOW() WHERE id=? AND status=?`, to, id, from)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)

type MySQLPointOrderRepo struct{ db *sql.DB }

func NewMySQLPointOrderRepo(db *sql.DB) *MySQLPointOrderRepo { return &MySQLPointOrderRepo{db: db} }

func (r *MySQLPointOrderRepo) Create(ctx context.Context, o *domain.PointOrder) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO point_orders (id,cart_id,account_id,status,total_points,created_at,updated_at)
VALUES (?,?,?,?,?,NOW(),NOW())
`, o.ID, o.CartID, o.AccountID, o.Status, o.TotalPoints); err != nil {
		if isDuplicateKey(err) {
			return domain.ErrOrderExists
		}
		return err
	}
	for _, li := range o.Items {
		if err := insertLineItem(ctx, tx, "point_order_line_items", "order_id", o.ID, li); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *MySQLPointOrderRepo) Get(ctx context.Context, id string) (*domain.PointOrder, error) {
	var o domain.PointOrder
	if err := r.db.QueryRowContext(ctx, `
SELECT id,cart_id,account_id,status,total_points
FROM point_orders WHERE id=?`, id).Scan(
		&o.ID, &o.CartID, &o.AccountID, &o.Status, &o.TotalPoints); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	items, err := scanLineItems(ctx, r.db, `
SELECT id,item_type,quantity,unit_price_cents,unit_price_points,bounty_ref,grant_request_id,description
FROM point_order_line_items WHERE order_id=? ORDER BY created_at, id`, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *MySQLPointOrderRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE point_orders SET status=?, updated_at=NOW() WHERE id=? AND status=?`, to, id, from)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

var _ usecase.PointOrderRepo = (*MySQLPointOrderRepo)(nil)
