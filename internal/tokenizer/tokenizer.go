// Package tokenizer derives the stored card token and display metadata from
// raw card input. The token is a reproducible fingerprint, not a vault
// reference.
package tokenizer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"payment-ledger/internal/domain"
)

const (
	BrandVisa       = "Visa"
	BrandMastercard = "Mastercard"
	BrandAmex       = "American Express"
	BrandUnknown    = "Unknown"
)

// Tokenize returns the hex SHA-256 digest of the card number followed by the
// cvv.
func Tokenize(cardNumber, cvv string) string {
	h := sha256.New()
	h.Write([]byte(cardNumber))
	h.Write([]byte(cvv))
	return hex.EncodeToString(h.Sum(nil))
}

func DetectBrand(cardNumber string) string {
	if cardNumber == "" {
		return BrandUnknown
	}
	switch cardNumber[0] {
	case '4':
		return BrandVisa
	case '5':
		return BrandMastercard
	case '3':
		return BrandAmex
	default:
		return BrandUnknown
	}
}

func LastFour(cardNumber string) (string, error) {
	if len(cardNumber) < 4 {
		return "", domain.InvalidArgument("card number must have at least four digits")
	}
	return cardNumber[len(cardNumber)-4:], nil
}

// Normalize strips the separators people type into card numbers.
func Normalize(cardNumber string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(cardNumber))
}

func Validate(cardNumber string) error {
	if cardNumber == "" {
		return domain.InvalidArgument("card number is required")
	}
	for _, r := range cardNumber {
		if r < '0' || r > '9' {
			return domain.InvalidArgument("card number must contain only digits")
		}
	}
	return nil
}
