package payments_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"payment-ledger/internal/app/payments"
)

func RegisterRoutes(r chi.Router, s payments.PaymentService, l *zap.Logger) {
	handler := NewPaymentHandler(s, l.With(zap.String("component", "PaymentHTTPHandler")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Payments service is healthy!"))
	})

	r.Route("/users/{userID}/payment-methods", func(r chi.Router) {
		r.Post("/", handler.AddPaymentMethodHandler)
		r.Get("/", handler.ListPaymentMethodsHandler)
		r.Delete("/{id}", handler.DeletePaymentMethodHandler)
	})

	r.Post("/charges", handler.ChargeHandler)

	r.Route("/transactions/{id}", func(r chi.Router) {
		r.Get("/", handler.GetTransactionHandler)
		r.Post("/refunds", handler.RefundHandler)
	})

	r.Get("/orders/{orderID}/transactions", handler.ListOrderTransactionsHandler)
}
