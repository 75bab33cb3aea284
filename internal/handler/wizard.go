package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/driveright-academy/internal/middleware"
	"github.com/mmeshcher/driveright-academy/internal/validation"
	"github.com/mmeshcher/driveright-academy/internal/wizard"
)

// respondWizard отдаёт состояние сессии. При ошибке состояние передаётся вместе
// с сообщением, чтобы клиент не терял введённые данные.
func (h *Handler) respondWizard(w http.ResponseWriter, r *http.Request, st wizard.State, err error) {
	if err == nil {
		h.ok(w, st.Message, st)
		return
	}

	status, message := errorStatus(err, msgPaymentError)
	if status >= http.StatusInternalServerError {
		h.logger.Error("enrollment wizard failed",
			zap.Error(err),
			zap.String("session_id", st.ID),
			zap.String("path", r.URL.Path),
		)
	}

	env := envelope{Success: false, Message: message}
	if st.ID != "" {
		env.Data = st
	}
	h.respond(w, status, env)
}

type startEnrollmentRequest struct {
	LessonID string `json:"lessonId"`
}

// StartEnrollment открывает сессию мастера записи.
func (h *Handler) StartEnrollment(w http.ResponseWriter, r *http.Request) {
	var req startEnrollmentRequest
	if err := decodeJSON(r, &req); err != nil || req.LessonID == "" {
		h.fail(w, http.StatusBadRequest, "lessonId is required")
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	st, err := h.wizard.Start(r.Context(), req.LessonID, userID)
	if err != nil {
		h.handleError(w, r, err, "Failed to start enrollment")
		return
	}

	h.respond(w, http.StatusCreated, envelope{Success: true, Data: st})
}

// GetEnrollmentSession возвращает состояние сессии мастера.
func (h *Handler) GetEnrollmentSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.wizard.Get(chi.URLParam(r, "id"))
	h.respondWizard(w, r, st, err)
}

// SubmitEnrollmentDetails принимает данные первого шага.
func (h *Handler) SubmitEnrollmentDetails(w http.ResponseWriter, r *http.Request) {
	var d validation.BookingDetails
	if err := decodeJSON(r, &d); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	st, err := h.wizard.SubmitDetails(chi.URLParam(r, "id"), d)
	h.respondWizard(w, r, st, err)
}

// EnrollmentBack возвращает мастер к первому шагу.
func (h *Handler) EnrollmentBack(w http.ResponseWriter, r *http.Request) {
	st, err := h.wizard.Back(chi.URLParam(r, "id"))
	h.respondWizard(w, r, st, err)
}

// SubmitEnrollmentPayment проводит оплату второго шага.
func (h *Handler) SubmitEnrollmentPayment(w http.ResponseWriter, r *http.Request) {
	var in wizard.PaymentInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	st, err := h.wizard.SubmitPayment(r.Context(), chi.URLParam(r, "id"), in)
	h.respondWizard(w, r, st, err)
}

type callbackRequest struct {
	Reference string `json:"reference"`
}

// EnrollmentCallback обрабатывает возврат со страницы оплаты шлюза.
func (h *Handler) EnrollmentCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := decodeJSON(r, &req); err != nil || req.Reference == "" {
		h.fail(w, http.StatusBadRequest, "reference is required")
		return
	}

	st, err := h.wizard.Callback(r.Context(), chi.URLParam(r, "id"), req.Reference)
	h.respondWizard(w, r, st, err)
}

// CancelEnrollmentPayment обрабатывает закрытие окна оплаты.
func (h *Handler) CancelEnrollmentPayment(w http.ResponseWriter, r *http.Request) {
	st, err := h.wizard.Cancel(r.Context(), chi.URLParam(r, "id"))
	h.respondWizard(w, r, st, err)
}
