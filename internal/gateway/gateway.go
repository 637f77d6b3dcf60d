// Package gateway defines the payment processor boundary. Declines are
// reported through Result.Success; the error return is reserved for failures
// talking to the processor.
package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// DefaultChargeLimitCents is the mock's decline threshold: charges at or above
// it are declined.
const DefaultChargeLimitCents int64 = 100_000

type Result struct {
	Success     bool
	ProviderRef string
}

type Gateway interface {
	Charge(ctx context.Context, amountCents int64) (Result, error)
	Refund(ctx context.Context, amountCents int64) (Result, error)
}

// MockGateway decides purely on amount and never talks to a network.
type MockGateway struct {
	chargeLimitCents int64
}

func NewMockGateway(chargeLimitCents int64) *MockGateway {
	if chargeLimitCents <= 0 {
		chargeLimitCents = DefaultChargeLimitCents
	}
	return &MockGateway{chargeLimitCents: chargeLimitCents}
}

func (g *MockGateway) Charge(_ context.Context, amountCents int64) (Result, error) {
	return Result{
		Success:     amountCents < g.chargeLimitCents,
		ProviderRef: fmt.Sprintf("mock_charge_%s", uuid.NewString()),
	}, nil
}

func (g *MockGateway) Refund(_ context.Context, _ int64) (Result, error) {
	return Result{
		Success:     true,
		ProviderRef: fmt.Sprintf("mock_refund_%s", uuid.NewString()),
	}, nil
}
