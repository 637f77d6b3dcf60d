package payments

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"payment-ledger/internal/domain"
	"payment-ledger/internal/util"
)

func (s *paymentService) Charge(ctx context.Context, params ChargeParams) (*Result, error) {
	if err := normalizeChargeParams(&params); err != nil {
		return nil, err
	}

	if params.IdempotencyKey != "" {
		existing, err := s.txRepo.GetByIdempotencyKeyTx(ctx, s.db, params.IdempotencyKey)
		if err != nil {
			s.logger.Error("Failed to look up idempotency key",
				zap.String("idempotency_key", params.IdempotencyKey), zap.Error(err))
			return nil, domain.Internal("failed to look up idempotency key", err)
		}
		if existing != nil {
			return s.replayCharge(existing, params)
		}
	}

	pm, err := s.methodRepo.GetForUser(ctx, params.PaymentMethodID, params.UserID)
	if err != nil {
		return nil, domain.Internal("failed to load payment method", err)
	}
	if pm == nil {
		return nil, domain.InvalidArgument(fmt.Sprintf("payment method %s does not belong to user %s", params.PaymentMethodID, params.UserID))
	}

	res, err := s.gateway.Charge(ctx, params.AmountCents)
	if err != nil {
		s.logger.Error("Gateway charge failed", zap.String("order_id", params.OrderID), zap.Error(err))
		return nil, domain.Internal("payment gateway unavailable", err)
	}

	t := &domain.Transaction{
		ID:              util.NewID(),
		OrderID:         params.OrderID,
		UserID:          params.UserID,
		PaymentMethodID: &pm.ID,
		AmountCents:     params.AmountCents,
		Currency:        params.Currency,
		Status:          domain.TransactionStatusFailed,
		Type:            domain.TransactionTypeCharge,
		ProviderRef:     optional(res.ProviderRef),
		IdempotencyKey:  optional(params.IdempotencyKey),
		CreatedAt:       s.now().UTC(),
	}
	if res.Success {
		t.Status = domain.TransactionStatusSucceeded
	}

	if err := s.recordTransaction(ctx, t, ""); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			// A concurrent request with the same key committed first.
			winner, getErr := s.txRepo.GetByIdempotencyKeyTx(ctx, s.db, params.IdempotencyKey)
			if getErr != nil || winner == nil {
				return nil, domain.Internal("failed to read concurrent charge", getErr)
			}
			s.logger.Warn("Lost idempotency race, replaying winning charge",
				zap.String("idempotency_key", params.IdempotencyKey),
				zap.String("transaction_id", winner.ID))
			return s.replayCharge(winner, params)
		}
		s.logger.Error("Failed to record charge", zap.String("order_id", params.OrderID), zap.Error(err))
		return nil, asServiceError("failed to record charge", err)
	}

	s.logger.Info("Charge recorded",
		zap.String("transaction_id", t.ID),
		zap.String("order_id", t.OrderID),
		zap.Int64("amount_cents", t.AmountCents),
		zap.String("status", string(t.Status)))
	return chargeResult(t, false), nil
}

// replayCharge returns the stored outcome for a reused idempotency key. A key
// recorded for another user is rejected without revealing that charge.
func (s *paymentService) replayCharge(existing *domain.Transaction, params ChargeParams) (*Result, error) {
	if existing.UserID != params.UserID {
		s.logger.Warn("Idempotency key belongs to another user",
			zap.String("idempotency_key", params.IdempotencyKey),
			zap.String("user_id", params.UserID))
		return nil, domain.InvalidArgument("idempotency key is already used by another user")
	}
	if existing.OrderID != params.OrderID ||
		existing.AmountCents != params.AmountCents ||
		existing.Currency != params.Currency {
		s.logger.Warn("Idempotency key reused with different parameters",
			zap.String("idempotency_key", params.IdempotencyKey),
			zap.String("transaction_id", existing.ID))
	}
	s.logger.Info("Replaying charge for idempotency key",
		zap.String("idempotency_key", params.IdempotencyKey),
		zap.String("transaction_id", existing.ID),
		zap.String("status", string(existing.Status)))
	return chargeResult(existing, true), nil
}

func chargeResult(t *domain.Transaction, replayed bool) *Result {
	r := &Result{Success: t.Succeeded(), Transaction: t, Replayed: replayed}
	if !r.Success {
		r.ErrorMessage = chargeDeclinedMessage
	}
	return r
}

func (s *paymentService) Refund(ctx context.Context, transactionID string, amountCents int64, reason string) (*Result, error) {
	originalID, ok := util.ParseID(transactionID)
	if !ok {
		return nil, domain.InvalidArgument("transaction_id must be a UUID")
	}
	if amountCents <= 0 {
		return nil, domain.InvalidArgument("amount_cents must be positive")
	}

	original, err := s.txRepo.GetByIDTx(ctx, s.db, originalID)
	if err != nil {
		return nil, domain.Internal("failed to load original transaction", err)
	}
	if original == nil {
		return nil, domain.NotFound(fmt.Sprintf("transaction %s not found", originalID))
	}
	if !original.IsRefundable() {
		return nil, domain.InvalidArgument(fmt.Sprintf("transaction %s is not a succeeded charge", originalID))
	}
	if amountCents > original.AmountCents {
		return nil, domain.InvalidArgument("refund amount exceeds the charged amount")
	}

	existing, err := s.txRepo.GetSucceededRefundTx(ctx, s.db, originalID)
	if err != nil {
		return nil, domain.Internal("failed to look up existing refund", err)
	}
	if existing != nil {
		return s.replayRefund(existing, amountCents), nil
	}

	res, err := s.gateway.Refund(ctx, amountCents)
	if err != nil {
		s.logger.Error("Gateway refund failed", zap.String("transaction_id", originalID), zap.Error(err))
		return nil, domain.Internal("payment gateway unavailable", err)
	}

	t := &domain.Transaction{
		ID:                    util.NewID(),
		OrderID:               original.OrderID,
		UserID:                original.UserID,
		PaymentMethodID:       original.PaymentMethodID,
		AmountCents:           amountCents,
		Currency:              original.Currency,
		Status:                domain.TransactionStatusFailed,
		Type:                  domain.TransactionTypeRefund,
		ProviderRef:           optional(res.ProviderRef),
		OriginalTransactionID: &original.ID,
		CreatedAt:             s.now().UTC(),
	}
	if res.Success {
		t.Status = domain.TransactionStatusRefunded
	}

	if err := s.recordTransaction(ctx, t, reason); err != nil {
		if errors.Is(err, domain.ErrDuplicateRefund) {
			winner, getErr := s.txRepo.GetSucceededRefundTx(ctx, s.db, originalID)
			if getErr != nil || winner == nil {
				return nil, domain.Internal("failed to read concurrent refund", getErr)
			}
			return s.replayRefund(winner, amountCents), nil
		}
		s.logger.Error("Failed to record refund", zap.String("transaction_id", originalID), zap.Error(err))
		return nil, asServiceError("failed to record refund", err)
	}

	s.logger.Info("Refund recorded",
		zap.String("transaction_id", t.ID),
		zap.String("original_transaction_id", originalID),
		zap.Int64("amount_cents", amountCents),
		zap.String("status", string(t.Status)),
		zap.String("reason", reason))
	return refundResult(t, false), nil
}

func (s *paymentService) replayRefund(existing *domain.Transaction, amountCents int64) *Result {
	if existing.AmountCents != amountCents {
		s.logger.Warn("Charge already refunded with a different amount",
			zap.String("refund_id", existing.ID),
			zap.Int64("refunded_cents", existing.AmountCents),
			zap.Int64("requested_cents", amountCents))
	}
	s.logger.Info("Replaying existing refund", zap.String("refund_id", existing.ID))
	return refundResult(existing, true)
}

func refundResult(t *domain.Transaction, replayed bool) *Result {
	r := &Result{Success: t.Succeeded(), Transaction: t, Replayed: replayed}
	if !r.Success {
		r.ErrorMessage = refundDeclinedMessage
	}
	return r
}

func normalizeChargeParams(p *ChargeParams) error {
	var ok bool
	if p.OrderID, ok = util.ParseID(p.OrderID); !ok {
		return domain.InvalidArgument("order_id must be a UUID")
	}
	if p.UserID, ok = util.ParseID(p.UserID); !ok {
		return domain.InvalidArgument("user_id must be a UUID")
	}
	if p.PaymentMethodID, ok = util.ParseID(p.PaymentMethodID); !ok {
		return domain.InvalidArgument("payment_method_id must be a UUID")
	}
	if p.AmountCents <= 0 {
		return domain.InvalidArgument("amount_cents must be positive")
	}
	currency, err := domain.NormalizeCurrency(p.Currency)
	if err != nil {
		return err
	}
	p.Currency = currency
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
