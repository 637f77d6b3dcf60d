package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInvalidArgument, KindOf(InvalidArgument("bad")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("missing")))
	assert.Equal(t, KindInternal, KindOf(Internal("boom", errors.New("db down"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))

	wrapped := fmt.Errorf("handler: %w", NotFound("missing"))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "bad", MessageOf(InvalidArgument("bad")))
	assert.Equal(t, "internal error", MessageOf(errors.New("connection refused")))
}

func TestInternalUnwrapsCause(t *testing.T) {
	cause := errors.New("db down")
	err := Internal("failed to load", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Internal: failed to load: db down")
}

func TestTransactionSucceeded(t *testing.T) {
	charge := &Transaction{Type: TransactionTypeCharge, Status: TransactionStatusSucceeded}
	assert.True(t, charge.Succeeded())
	assert.True(t, charge.IsRefundable())

	failed := &Transaction{Type: TransactionTypeCharge, Status: TransactionStatusFailed}
	assert.False(t, failed.Succeeded())
	assert.False(t, failed.IsRefundable())

	refund := &Transaction{Type: TransactionTypeRefund, Status: TransactionStatusRefunded}
	assert.True(t, refund.Succeeded())
	assert.False(t, refund.IsRefundable())
}

func TestNormalizeCurrency(t *testing.T) {
	code, err := NormalizeCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, "USD", code)

	for _, in := range []string{"", "US", "USDT", "U5D"} {
		_, err := NormalizeCurrency(in)
		assert.Equal(t, KindInvalidArgument, KindOf(err), in)
	}
}

func TestParsePaymentMethodType(t *testing.T) {
	kind, err := ParsePaymentMethodType("")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodCard, kind)

	kind, err = ParsePaymentMethodType("bank")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodBank, kind)

	_, err = ParsePaymentMethodType("crypto")
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}
