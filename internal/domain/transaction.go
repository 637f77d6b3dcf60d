package domain

import (
	"strings"
	"time"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSucceeded TransactionStatus = "succeeded"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

type TransactionType string

const (
	TransactionTypeCharge TransactionType = "charge"
	TransactionTypeRefund TransactionType = "refund"
)

// Transaction is an immutable ledger row. Every charge or refund attempt
// produces a new one.
type Transaction struct {
	ID                    string
	OrderID               string
	UserID                string
	PaymentMethodID       *string
	AmountCents           int64
	Currency              string
	Status                TransactionStatus
	Type                  TransactionType
	ProviderRef           *string
	IdempotencyKey        *string
	OriginalTransactionID *string
	CreatedAt             time.Time
}

// Succeeded reports whether the row records money actually moving: a
// succeeded charge or a refunded refund.
func (t *Transaction) Succeeded() bool {
	switch t.Type {
	case TransactionTypeRefund:
		return t.Status == TransactionStatusRefunded
	default:
		return t.Status == TransactionStatusSucceeded
	}
}

// IsRefundable reports whether the row is a charge that can be refunded.
func (t *Transaction) IsRefundable() bool {
	return t.Type == TransactionTypeCharge && t.Status == TransactionStatusSucceeded
}

// NormalizeCurrency upper-cases an ISO 4217 code and rejects anything that is
// not three letters.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", InvalidArgument("currency must be a three-letter ISO 4217 code")
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", InvalidArgument("currency must be a three-letter ISO 4217 code")
		}
	}
	return code, nil
}
