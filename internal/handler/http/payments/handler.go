package payments_http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"payment-ledger/internal/app/payments"
	"payment-ledger/internal/domain"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	maxBodyBytes         = 1 << 20
)

type PaymentHandler struct {
	service payments.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(s payments.PaymentService, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: s, logger: l}
}

type AddPaymentMethodRequest struct {
	Type       string `json:"type"`
	CardNumber string `json:"card_number"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	CVV        string `json:"cvv"`
	IsDefault  bool   `json:"is_default"`
}

type ChargeRequest struct {
	OrderID         string `json:"order_id"`
	UserID          string `json:"user_id"`
	PaymentMethodID string `json:"payment_method_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	IdempotencyKey  string `json:"idempotency_key"`
}

type RefundRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

type PaymentMethodResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Type      string `json:"type"`
	LastFour  string `json:"last_four"`
	Brand     string `json:"brand"`
	ExpMonth  int    `json:"exp_month"`
	ExpYear   int    `json:"exp_year"`
	IsDefault bool   `json:"is_default"`
	CreatedAt string `json:"created_at"`
}

type TransactionResponse struct {
	ID                    string  `json:"id"`
	OrderID               string  `json:"order_id"`
	UserID                string  `json:"user_id"`
	PaymentMethodID       *string `json:"payment_method_id"`
	AmountCents           int64   `json:"amount_cents"`
	Currency              string  `json:"currency"`
	Status                string  `json:"status"`
	Type                  string  `json:"type"`
	ProviderRef           *string `json:"provider_ref"`
	IdempotencyKey        *string `json:"idempotency_key"`
	OriginalTransactionID *string `json:"original_transaction_id"`
	CreatedAt             string  `json:"created_at"`
}

type PaymentResultResponse struct {
	Success      bool                 `json:"success"`
	Transaction  *TransactionResponse `json:"transaction"`
	ErrorMessage string               `json:"error_message,omitempty"`
	Replayed     bool                 `json:"replayed"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *PaymentHandler) AddPaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req AddPaymentMethodRequest
	if !h.decode(w, r, &req) {
		return
	}

	pm, err := h.service.AddPaymentMethod(r.Context(), payments.AddPaymentMethodParams{
		UserID:     userID,
		Type:       req.Type,
		CardNumber: req.CardNumber,
		ExpMonth:   req.ExpMonth,
		ExpYear:    req.ExpYear,
		CVV:        req.CVV,
		IsDefault:  req.IsDefault,
	})
	if err != nil {
		h.writeError(w, "AddPaymentMethod", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toPaymentMethodResponse(pm))
}

func (h *PaymentHandler) ListPaymentMethodsHandler(w http.ResponseWriter, r *http.Request) {
	methods, err := h.service.ListPaymentMethods(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, "ListPaymentMethods", err)
		return
	}

	resp := make([]PaymentMethodResponse, 0, len(methods))
	for i := range methods {
		resp = append(resp, toPaymentMethodResponse(&methods[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) DeletePaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeletePaymentMethod(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, "DeletePaymentMethod", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PaymentHandler) ChargeHandler(w http.ResponseWriter, r *http.Request) {
	var req ChargeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)
	}

	res, err := h.service.Charge(r.Context(), payments.ChargeParams{
		OrderID:         req.OrderID,
		UserID:          req.UserID,
		PaymentMethodID: req.PaymentMethodID,
		AmountCents:     req.AmountCents,
		Currency:        req.Currency,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		h.writeError(w, "Charge", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPaymentResultResponse(res))
}

func (h *PaymentHandler) RefundHandler(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Refund(r.Context(), chi.URLParam(r, "id"), req.AmountCents, req.Reason)
	if err != nil {
		h.writeError(w, "Refund", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPaymentResultResponse(res))
}

func (h *PaymentHandler) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, "GetTransaction", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (h *PaymentHandler) ListOrderTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.service.ListOrderTransactions(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, "ListOrderTransactions", err)
		return
	}

	resp := make([]*TransactionResponse, 0, len(transactions))
	for i := range transactions {
		resp = append(resp, toTransactionResponse(&transactions[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("Invalid request body", zap.String("path", r.URL.Path), zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(domain.KindOf(err))
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("operation", op), zap.Error(err))
	} else {
		h.logger.Info("Request rejected", zap.String("operation", op), zap.Error(err))
	}
	h.writeJSON(w, status, ErrorResponse{Error: domain.MessageOf(err)})
}

func (h *PaymentHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func toPaymentMethodResponse(pm *domain.PaymentMethod) PaymentMethodResponse {
	return PaymentMethodResponse{
		ID:        pm.ID,
		UserID:    pm.UserID,
		Type:      string(pm.Type),
		LastFour:  pm.LastFour,
		Brand:     pm.Brand,
		ExpMonth:  pm.ExpMonth,
		ExpYear:   pm.ExpYear,
		IsDefault: pm.IsDefault,
		CreatedAt: pm.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toTransactionResponse(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:                    t.ID,
		OrderID:               t.OrderID,
		UserID:                t.UserID,
		PaymentMethodID:       t.PaymentMethodID,
		AmountCents:           t.AmountCents,
		Currency:              t.Currency,
		Status:                string(t.Status),
		Type:                  string(t.Type),
		ProviderRef:           t.ProviderRef,
		IdempotencyKey:        t.IdempotencyKey,
		OriginalTransactionID: t.OriginalTransactionID,
		CreatedAt:             t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toPaymentResultResponse(res *payments.Result) PaymentResultResponse {
	return PaymentResultResponse{
		Success:      res.Success,
		Transaction:  toTransactionResponse(res.Transaction),
		ErrorMessage: res.ErrorMessage,
		Replayed:     res.Replayed,
	}
}
