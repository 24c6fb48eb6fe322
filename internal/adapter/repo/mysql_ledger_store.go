package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/openbounty/commerce-api/internal/entity"
	"github.com/openbounty/commerce-api/internal/usecase"
)

type MySQLLedgerStore struct{ db *sql.DB }

func NewMySQLLedgerStore(db *sql.DB) *MySQLLedgerStore { return &MySQLLedgerStore{db: db} }

func (s *MySQLLedgerStore) Account(ctx context.Context, id string) (*domain.Account, error) {
	var acc domain.Account
	if err := s.db.QueryRowContext(ctx, `
SELECT id,owner_id,kind,balance FROM ledger_accounts WHERE id=?`, id).Scan(
		&acc.ID, &acc.OwnerID, &acc.Kind, &acc.Balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &acc, nil
}

func (s *MySQLLedgerStore) Transactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id,account_id,amount,direction,description,order_id,external_ref,created_at
FROM ledger_transactions WHERE account_id=? ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var orderID, extRef sql.NullString
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &t.Direction,
			&t.Description, &orderID, &extRef, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.OrderID = orderID.String
		t.ExternalRef = extRef.String
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *MySQLLedgerStore) HasExternalRef(ctx context.Context, accountID, ref string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM ledger_transactions WHERE account_id=? AND external_ref=?`,
		accountID, ref).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mutate implements the locked read-validate-write-append unit of work: the
// account row is held FOR UPDATE while fn decides, then the balance update
// and the transaction append commit together or not at all.
func (s *MySQLLedgerStore) Mutate(ctx context.Context, accountID string, fn func(acc *domain.Account) (domain.Transaction, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var acc domain.Account
	if err := tx.QueryRowContext(ctx, `
SELECT id,owner_id,kind,balance FROM ledger_accounts WHERE id=? FOR UPDATE`, accountID).Scan(
		&acc.ID, &acc.OwnerID, &acc.Kind, &acc.Balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}

	entry, err := fn(&acc)
	if err != nil {
		return err
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	newBalance := acc.Balance + entry.Signed()
	if newBalance < 0 {
		// fn is expected to reject this; the store is the last line.
		return fmt.Errorf("%w: account %s", domain.ErrInsufficientFunds, accountID)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE ledger_accounts SET balance=?, updated_at=NOW() WHERE id=?`, newBalance, accountID); err != nil {
		return err
	}

	var orderID, extRef any
	if entry.OrderID != "" {
		orderID = entry.OrderID
	}
	if entry.ExternalRef != "" {
		extRef = entry.ExternalRef
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO ledger_transactions (id,account_id,amount,direction,description,order_id,external_ref,created_at)
VALUES (?,?,?,?,?,?,?,?)`,
		entry.ID, entry.AccountID, entry.Amount, entry.Direction,
		entry.Description, orderID, extRef, entry.CreatedAt); err != nil {
		if isDuplicateKey(err) {
			// Unique external_ref: a replayed feed credit loses the race here.
			return nil
		}
		return err
	}
	return tx.Commit()
}

var _ usecase.LedgerStore = (*MySQLLedgerStore)(nil)

// MySQLAccountDirectory resolves owners to their ledger accounts.
type MySQLAccountDirectory struct{ db *sql.DB }

func NewMySQLAccountDirectory(db *sql.DB) *MySQLAccountDirectory {
	return &MySQLAccountDirectory{db: db}
}

func (d *MySQLAccountDirectory) AccountFor(ctx context.Context, ownerID string, kind domain.AccountKind) (string, error) {
	var id string
	if err := d.db.QueryRowContext(ctx, `
SELECT id FROM ledger_accounts WHERE owner_id=? AND kind=?`, ownerID, kind).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return id, nil
}

var _ usecase.AccountDirectory = (*MySQLAccountDirectory)(nil)
