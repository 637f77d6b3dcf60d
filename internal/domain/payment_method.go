package domain

import (
	"fmt"
	"time"
)

type PaymentMethodType string

const (
	PaymentMethodCard PaymentMethodType = "card"
	PaymentMethodBank PaymentMethodType = "bank"
)

// ParsePaymentMethodType maps transport values onto the stored kind. An empty
// value defaults to card.
func ParsePaymentMethodType(s string) (PaymentMethodType, error) {
	switch PaymentMethodType(s) {
	case "", PaymentMethodCard:
		return PaymentMethodCard, nil
	case PaymentMethodBank:
		return PaymentMethodBank, nil
	default:
		return "", InvalidArgument(fmt.Sprintf("unsupported payment method type %q", s))
	}
}

// PaymentMethod is a tokenized instrument. Only IsDefault changes after
// creation.
type PaymentMethod struct {
	ID        string
	UserID    string
	Type      PaymentMethodType
	Token     string
	LastFour  string
	Brand     string
	ExpMonth  int
	ExpYear   int
	IsDefault bool
	CreatedAt time.Time
}
