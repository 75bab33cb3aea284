package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/driveright-academy/internal/middleware"
	"github.com/mmeshcher/driveright-academy/internal/model"
)

const msgPaymentError = "An error occurred while processing the payment"

// ProcessPayment принимает оплату урока и создаёт запись на него.
// Идентификатор пользователя берётся только из токена.
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req model.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.UserID = ""
	if userID, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		req.UserID = userID
	}

	res, err := h.service.ProcessPayment(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err, msgPaymentError)
		return
	}

	h.ok(w, "Payment processed successfully", res)
}

// VerifyPayment проверяет статус платежа по референсу.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	res, err := h.service.VerifyPayment(r.Context(), reference)
	if err != nil {
		h.handleError(w, r, err, "An error occurred while verifying the payment")
		return
	}

	h.ok(w, "Payment verified successfully", res)
}

// ListPayments возвращает платежи с фильтрами ?search=&status=&method=, новые первыми.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.PaymentFilter{
		Search: q.Get("search"),
		Status: model.PaymentStatus(q.Get("status")),
		Method: model.PaymentMethod(q.Get("method")),
	}

	payments, err := h.service.ListPayments(r.Context(), f)
	if err != nil {
		h.handleError(w, r, err, "Failed to fetch payments")
		return
	}

	h.ok(w, "", payments)
}

// GetPayment возвращает платёж по идентификатору.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err, "Failed to fetch payment")
		return
	}

	h.ok(w, "", p)
}

type paymentAction func(ctx context.Context, id string, version int64) (*model.Payment, error)

func (h *Handler) paymentAction(action paymentAction, done, failed string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		version, err := expectedVersion(r)
		if err != nil {
			h.fail(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		p, err := action(r.Context(), id, version)
		if err != nil {
			h.handleError(w, r, err, failed)
			return
		}

		h.logger.Info(done, zap.String("payment_id", id), zap.String("status", string(p.Status)))
		h.ok(w, done, p)
	}
}

// ConfirmPayment подтверждает ожидающий платёж.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	h.paymentAction(h.service.ConfirmPayment, "Payment confirmed", "Failed to confirm payment")(w, r)
}

// RetryPayment повторяет неуспешный платёж.
func (h *Handler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	h.paymentAction(h.service.RetryPayment, "Payment retried", "Failed to retry payment")(w, r)
}

// RefundPayment возвращает средства по завершённому платежу.
func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	h.paymentAction(h.service.RefundPayment, "Payment refunded", "Failed to refund payment")(w, r)
}
