package usecase

// Sent by the payment gateway on Kafka when a wallet top-up settles.
type WalletTopUpMsg struct {
	OrganisationID string `json:"organisationId"`
	AmountCents    int64  `json:"amountCents"`
	Currency       string `json:"currency"`
	PaymentMethod  string `json:"paymentMethod"`
	TransactionID  string `json:"transactionId"`
	Status         string `json:"status"` // e.g. "SUCCESS"
}
