package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGatewayChargeThreshold(t *testing.T) {
	g := NewMockGateway(0)
	ctx := context.Background()

	res, err := g.Charge(ctx, 99_999)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.ProviderRef, "mock_charge_")

	res, err = g.Charge(ctx, 100_000)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.ProviderRef)
}

func TestMockGatewayCustomLimit(t *testing.T) {
	g := NewMockGateway(500)

	res, err := g.Charge(context.Background(), 499)
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = g.Charge(context.Background(), 500)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestMockGatewayReferencesAreUnique(t *testing.T) {
	g := NewMockGateway(0)

	a, _ := g.Charge(context.Background(), 1)
	b, _ := g.Charge(context.Background(), 1)
	assert.NotEqual(t, a.ProviderRef, b.ProviderRef)
}

func TestMockGatewayRefundAlwaysSucceeds(t *testing.T) {
	g := NewMockGateway(0)

	res, err := g.Refund(context.Background(), 10_000_000)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.ProviderRef, "mock_refund_")
}
