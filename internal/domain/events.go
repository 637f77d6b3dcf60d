package domain

import "time"

// TransactionEvent is published for every ledger row written by a charge or
// refund.
type TransactionEvent struct {
	TransactionID         string    `json:"transaction_id"`
	OrderID               string    `json:"order_id"`
	UserID                string    `json:"user_id"`
	PaymentMethodID       string    `json:"payment_method_id,omitempty"`
	Type                  string    `json:"type"`
	Status                string    `json:"status"`
	AmountCents           int64     `json:"amount_cents"`
	Currency              string    `json:"currency"`
	ProviderRef           string    `json:"provider_ref,omitempty"`
	OriginalTransactionID string    `json:"original_transaction_id,omitempty"`
	Reason                string    `json:"reason,omitempty"`
	Timestamp             time.Time `json:"timestamp"`
}

// ChargeRequestedEvent is consumed from Kafka by upstream services that want
// an order charged asynchronously.
type ChargeRequestedEvent struct {
	OrderID         string `json:"order_id"`
	UserID          string `json:"user_id"`
	PaymentMethodID string `json:"payment_method_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	IdempotencyKey  string `json:"idempotency_key"`
}
