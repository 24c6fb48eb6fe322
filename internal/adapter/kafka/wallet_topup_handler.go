package kafka

import (
	"context"
	"fmt"
	"log/slog"

	domain "github.com/openbounty/commerce-api/internal/entity"
	"github.com/openbounty/commerce-api/internal/usecase"
)

// WalletTopUpHandler credits an organisation wallet when the payment gateway
// reports a settled top-up. The gateway transaction id doubles as the ledger
// external reference, so replayed messages do not credit twice.
type WalletTopUpHandler struct {
	Ledger    *usecase.LedgerService
	Directory usecase.AccountDirectory
	Log       *slog.Logger
}

func NewWalletTopUpHandler(ledger *usecase.LedgerService, directory usecase.AccountDirectory, log *slog.Logger) *WalletTopUpHandler {
	return &WalletTopUpHandler{Ledger: ledger, Directory: directory, Log: log}
}

func (h *WalletTopUpHandler) Handle(ctx context.Context, ev usecase.WalletTopUpMsg) error {
	if ev.Status != "SUCCESS" {
		h.Log.Info("skipping top-up in non-success state",
			"organisation_id", ev.OrganisationID, "transaction_id", ev.TransactionID, "status", ev.Status)
		return nil
	}
	if ev.TransactionID == "" {
		// Without the gateway id there is no dedup key; park it as poison.
		h.Log.Error("top-up message missing transaction id", "organisation_id", ev.OrganisationID)
		return nil
	}

	accountID, err := h.Directory.AccountFor(ctx, ev.OrganisationID, domain.AccountOrgWallet)
	if err != nil {
		return fmt.Errorf("resolve wallet for organisation %s: %w", ev.OrganisationID, err)
	}

	desc := fmt.Sprintf("wallet top-up via %s", ev.PaymentMethod)
	if err := h.Ledger.AddFunds(ctx, accountID, ev.AmountCents, desc, ev.PaymentMethod, ev.TransactionID); err != nil {
		return fmt.Errorf("credit wallet %s: %w", accountID, err)
	}

	h.Log.Info("wallet credited",
		"account_id", accountID, "amount_cents", ev.AmountCents, "transaction_id", ev.TransactionID)
	return nil
}
