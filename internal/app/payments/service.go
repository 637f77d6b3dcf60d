package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"payment-ledger/internal/domain"
	"payment-ledger/internal/gateway"
	"payment-ledger/internal/outbox"
	"payment-ledger/internal/repository/outbox_repo"
	"payment-ledger/internal/repository/payment_methods_repo"
	"payment-ledger/internal/repository/transactions_repo"
	"payment-ledger/internal/tokenizer"
	"payment-ledger/internal/util"
)

const (
	chargeDeclinedMessage = "payment declined by processor"
	refundDeclinedMessage = "refund declined by processor"
)

// TxRunner is the pool handle: plain reads go through the embedded Querier,
// atomic writes through WithinTx.
type TxRunner interface {
	domain.Querier
	WithinTx(ctx context.Context, fn func(tx domain.Querier) error) error
}

type PaymentService interface {
	AddPaymentMethod(ctx context.Context, params AddPaymentMethodParams) (*domain.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, id, userID string) error
	Charge(ctx context.Context, params ChargeParams) (*Result, error)
	Refund(ctx context.Context, transactionID string, amountCents int64, reason string) (*Result, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListOrderTransactions(ctx context.Context, orderID string) ([]domain.Transaction, error)
}

type paymentService struct {
	db          TxRunner
	methodRepo  payment_methods_repo.PaymentMethodRepository
	txRepo      transactions_repo.TransactionRepository
	outboxRepo  outbox_repo.OutboxRepository
	gateway     gateway.Gateway
	eventsTopic string
	now         func() time.Time
	logger      *zap.Logger
}

func NewPaymentService(
	db TxRunner,
	methodRepo payment_methods_repo.PaymentMethodRepository,
	txRepo transactions_repo.TransactionRepository,
	outboxRepo outbox_repo.OutboxRepository,
	gw gateway.Gateway,
	eventsTopic string,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		db:          db,
		methodRepo:  methodRepo,
		txRepo:      txRepo,
		outboxRepo:  outboxRepo,
		gateway:     gw,
		eventsTopic: eventsTopic,
		now:         time.Now,
		logger:      logger,
	}
}

func (s *paymentService) AddPaymentMethod(ctx context.Context, params AddPaymentMethodParams) (*domain.PaymentMethod, error) {
	userID, ok := util.ParseID(params.UserID)
	if !ok {
		return nil, domain.InvalidArgument("user_id must be a UUID")
	}
	kind, err := domain.ParsePaymentMethodType(params.Type)
	if err != nil {
		return nil, err
	}

	cardNumber := tokenizer.Normalize(params.CardNumber)
	if err := tokenizer.Validate(cardNumber); err != nil {
		return nil, err
	}
	lastFour, err := tokenizer.LastFour(cardNumber)
	if err != nil {
		return nil, err
	}
	if err := s.validateExpiry(params.ExpMonth, params.ExpYear); err != nil {
		return nil, err
	}

	pm := &domain.PaymentMethod{
		ID:        util.NewID(),
		UserID:    userID,
		Type:      kind,
		Token:     tokenizer.Tokenize(cardNumber, params.CVV),
		LastFour:  lastFour,
		Brand:     tokenizer.DetectBrand(cardNumber),
		ExpMonth:  params.ExpMonth,
		ExpYear:   params.ExpYear,
		IsDefault: params.IsDefault,
		CreatedAt: s.now().UTC(),
	}

	if err := s.methodRepo.Add(ctx, pm); err != nil {
		s.logger.Error("Failed to add payment method", zap.String("user_id", userID), zap.Error(err))
		return nil, domain.Internal("failed to add payment method", err)
	}

	s.logger.Info("Payment method added",
		zap.String("payment_method_id", pm.ID),
		zap.String("user_id", userID),
		zap.String("brand", pm.Brand),
		zap.Bool("is_default", pm.IsDefault))
	return pm, nil
}

func (s *paymentService) validateExpiry(month, year int) error {
	if month < 1 || month > 12 {
		return domain.InvalidArgument("exp_month must be between 1 and 12")
	}
	now := s.now().UTC()
	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		return domain.InvalidArgument("payment method is expired")
	}
	return nil
}

func (s *paymentService) ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	id, ok := util.ParseID(userID)
	if !ok {
		return nil, domain.InvalidArgument("user_id must be a UUID")
	}
	methods, err := s.methodRepo.ListByUser(ctx, id)
	if err != nil {
		s.logger.Error("Failed to list payment methods", zap.String("user_id", id), zap.Error(err))
		return nil, domain.Internal("failed to list payment methods", err)
	}
	return methods, nil
}

func (s *paymentService) DeletePaymentMethod(ctx context.Context, id, userID string) error {
	methodID, ok := util.ParseID(id)
	if !ok {
		return domain.InvalidArgument("payment_method_id must be a UUID")
	}
	owner, ok := util.ParseID(userID)
	if !ok {
		return domain.InvalidArgument("user_id must be a UUID")
	}

	deleted, err := s.methodRepo.Delete(ctx, methodID, owner)
	if err != nil {
		s.logger.Error("Failed to delete payment method",
			zap.String("payment_method_id", methodID), zap.String("user_id", owner), zap.Error(err))
		return domain.Internal("failed to delete payment method", err)
	}
	if !deleted {
		s.logger.Info("Payment method delete matched no row",
			zap.String("payment_method_id", methodID), zap.String("user_id", owner))
		return nil
	}
	s.logger.Info("Payment method deleted", zap.String("payment_method_id", methodID), zap.String("user_id", owner))
	return nil
}

func (s *paymentService) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	txID, ok := util.ParseID(id)
	if !ok {
		return nil, domain.InvalidArgument("transaction_id must be a UUID")
	}
	t, err := s.txRepo.GetByIDTx(ctx, s.db, txID)
	if err != nil {
		return nil, domain.Internal("failed to get transaction", err)
	}
	if t == nil {
		return nil, domain.NotFound(fmt.Sprintf("transaction %s not found", txID))
	}
	return t, nil
}

func (s *paymentService) ListOrderTransactions(ctx context.Context, orderID string) ([]domain.Transaction, error) {
	id, ok := util.ParseID(orderID)
	if !ok {
		return nil, domain.InvalidArgument("order_id must be a UUID")
	}
	transactions, err := s.txRepo.ListByOrderIDTx(ctx, s.db, id)
	if err != nil {
		return nil, domain.Internal("failed to list order transactions", err)
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	return transactions, nil
}

// recordTransaction appends t to the ledger together with its outbox event.
func (s *paymentService) recordTransaction(ctx context.Context, t *domain.Transaction, reason string) error {
	msg, err := outbox.NewTransactionMessage(t, s.eventsTopic, reason)
	if err != nil {
		return err
	}
	return s.db.WithinTx(ctx, func(tx domain.Querier) error {
		if err := s.txRepo.CreateTx(ctx, tx, t); err != nil {
			return err
		}
		if err := s.outboxRepo.CreateMessageTx(ctx, tx, msg); err != nil {
			return fmt.Errorf("failed to enqueue event for transaction %s: %w", t.ID, err)
		}
		return nil
	})
}

// asServiceError keeps classified errors and wraps everything else as
// Internal.
func asServiceError(message string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Internal(message, err)
}
