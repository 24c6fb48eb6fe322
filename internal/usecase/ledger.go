package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	domain "github.com/openbounty/commerce-api/internal/entity"
)

// LedgerService is the sole mutation path for every account balance. Each
// mutation runs as one locked read-validate-write-append unit of work inside
// LedgerStore.Mutate; the balance therefore always equals the sum of the
// signed transaction log.
type LedgerService struct {
	store LedgerStore
	log   *slog.Logger
}

func NewLedgerService(store LedgerStore, log *slog.Logger) *LedgerService {
	return &LedgerService{store: store, log: log}
}

// AddFunds credits an account. A non-empty externalRef deduplicates credits
// sourced from external payment feeds: a ref already on the log is a replay
// and is skipped.
func (s *LedgerService) AddFunds(ctx context.Context, accountID string, amount int64, description, paymentMethod, externalRef string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if externalRef != "" {
		seen, err := s.store.HasExternalRef(ctx, accountID, externalRef)
		if err != nil {
			return fmt.Errorf("external ref check: %w", err)
		}
		if seen {
			s.log.Info("duplicate credit skipped", "account", accountID, "external_ref", externalRef)
			return nil
		}
	}

	return s.store.Mutate(ctx, accountID, func(acc *domain.Account) (domain.Transaction, error) {
		desc := description
		if paymentMethod != "" {
			desc = fmt.Sprintf("%s (via %s)", description, paymentMethod)
		}
		return domain.Transaction{
			ID:          uuid.NewString(),
			AccountID:   acc.ID,
			Amount:      amount,
			Direction:   domain.Credit,
			Description: desc,
			ExternalRef: externalRef,
			CreatedAt:   time.Now().UTC(),
		}, nil
	})
}

// DeductFunds debits an account for an order. Fails with
// domain.ErrInsufficientFunds when the balance cannot cover the amount; a
// balance never goes negative.
func (s *LedgerService) DeductFunds(ctx context.Context, accountID string, amount int64, description, orderID string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}

	return s.store.Mutate(ctx, accountID, func(acc *domain.Account) (domain.Transaction, error) {
		if acc.Balance < amount {
			return domain.Transaction{}, fmt.Errorf(
				"%w: balance %d, requested %d", domain.ErrInsufficientFunds, acc.Balance, amount)
		}
		return domain.Transaction{
			ID:          uuid.NewString(),
			AccountID:   acc.ID,
			Amount:      amount,
			Direction:   domain.Debit,
			Description: description,
			OrderID:     orderID,
			CreatedAt:   time.Now().UTC(),
		}, nil
	})
}

// RefundFunds credits an order amount back. Recorded as a plain credit
// linked to the order; the append-only log keeps the original debit.
func (s *LedgerService) RefundFunds(ctx context.Context, accountID string, amount int64, description, orderID string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	return s.store.Mutate(ctx, accountID, func(acc *domain.Account) (domain.Transaction, error) {
		return domain.Transaction{
			ID:          uuid.NewString(),
			AccountID:   acc.ID,
			Amount:      amount,
			Direction:   domain.Credit,
			Description: description,
			OrderID:     orderID,
			CreatedAt:   time.Now().UTC(),
		}, nil
	})
}

// Balance returns the current account balance in minor units.
func (s *LedgerService) Balance(ctx context.Context, accountID string) (int64, error) {
	acc, err := s.store.Account(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// Transactions returns the append-only log, oldest first.
func (s *LedgerService) Transactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	return s.store.Transactions(ctx, accountID)
}
