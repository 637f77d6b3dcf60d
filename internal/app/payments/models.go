package payments

import "payment-ledger/internal/domain"

type AddPaymentMethodParams struct {
	UserID     string
	Type       string
	CardNumber string
	ExpMonth   int
	ExpYear    int
	CVV        string
	IsDefault  bool
}

type ChargeParams struct {
	OrderID         string
	UserID          string
	PaymentMethodID string
	AmountCents     int64
	Currency        string
	IdempotencyKey  string
}

// Result is the outcome of a charge or refund. A gateway decline is a Result
// with Success false and an ErrorMessage, not an error.
type Result struct {
	Success      bool
	Transaction  *domain.Transaction
	ErrorMessage string
	Replayed     bool
}
