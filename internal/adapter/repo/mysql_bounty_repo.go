package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	domain "github.com/openbounty/commerce-api/internal/entity"
	"github.com/openbounty/commerce-api/internal/usecase"
)

// MySQLBountyRepo is the bounty-creation collaborator: it writes funded
// bounty records keyed by the order line item that paid for them. The unique
// key on order_item_id backs up the caller's idempotency probe.
type MySQLBountyRepo struct{ db *sql.DB }

func NewMySQLBountyRepo(db *sql.DB) *MySQLBountyRepo { return &MySQLBountyRepo{db: db} }

func (r *MySQLBountyRepo) ExistsForOrderItem(ctx context.Context, orderItemID string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM bounties WHERE order_item_id=?`, orderItemID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MySQLBountyRepo) CreateFromOrderItem(ctx context.Context, orderID string, item domain.LineItem) (string, error) {
	var cents, points sql.NullInt64
	switch item.UnitPrice.Kind {
	case domain.PriceCents:
		cents = sql.NullInt64{Int64: item.UnitPrice.Amount, Valid: true}
	case domain.PricePoints:
		points = sql.NullInt64{Int64: item.UnitPrice.Amount, Valid: true}
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO bounties (id,bounty_ref,title,reward_cents,reward_points,status,order_id,order_item_id,created_at)
VALUES (?,?,?,?,?,?,?,?,?)
`, id, item.BountyRef, item.Description, cents, points, domain.BountyFunded, orderID, item.ID, time.Now().UTC())
	if err != nil {
		if isDuplicateKey(err) {
			// A concurrent replay created it first; treat as already done.
			return "", nil
		}
		return "", err
	}
	return id, nil
}

var _ usecase.BountyCreator = (*MySQLBountyRepo)(nil)

type MySQLGrantStore struct{ db *sql.DB }

func NewMySQLGrantStore(db *sql.DB) *MySQLGrantStore { return &MySQLGrantStore{db: db} }

func (r *MySQLGrantStore) Request(ctx context.Context, id string) (*domain.GrantRequest, error) {
	var req domain.GrantRequest
	if err := r.db.QueryRowContext(ctx, `
SELECT id,organisation_id,points,grant_type,status,rationale
FROM grant_requests WHERE id=?`, id).Scan(
		&req.ID, &req.OrganisationID, &req.Points, &req.Type, &req.Status, &req.Rationale); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *MySQLGrantStore) CreateGrant(ctx context.Context, g *domain.PointGrant) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO point_grants (id,organisation_id,points,grant_request_id,order_item_id,rationale,created_at)
VALUES (?,?,?,?,?,?,?)
`, g.ID, g.OrganisationID, g.Points, g.GrantRequestID, g.OrderItemID, g.Rationale, g.CreatedAt)
	if err != nil && isDuplicateKey(err) {
		return nil
	}
	return err
}

func (r *MySQLGrantStore) GrantExistsForOrderItem(ctx context.Context, orderItemID string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM point_grants WHERE order_item_id=?`, orderItemID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MySQLGrantStore) UpdateRequestStatus(ctx context.Context, id string, status domain.GrantRequestStatus) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE grant_requests SET status=?, updated_at=NOW() WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ usecase.GrantStore = (*MySQLGrantStore)(nil)
