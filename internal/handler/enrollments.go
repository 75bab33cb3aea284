package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/driveright-academy/internal/model"
	"github.com/mmeshcher/driveright-academy/internal/service"
)

// ListEnrollments возвращает записи с фильтрами ?search=&status=.
func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.EnrollmentFilter{
		Search: q.Get("search"),
		Status: model.EnrollmentStatus(q.Get("status")),
	}

	enrollments, err := h.service.ListEnrollments(r.Context(), f)
	if err != nil {
		h.handleError(w, r, err, "Failed to fetch enrollments")
		return
	}

	h.ok(w, "", enrollments)
}

// GetEnrollment возвращает запись по идентификатору.
func (h *Handler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.GetEnrollment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err, "Failed to fetch enrollment")
		return
	}

	h.ok(w, "", e)
}

// UpdateEnrollment меняет статус, отзыв или инструктора записи.
func (h *Handler) UpdateEnrollment(w http.ResponseWriter, r *http.Request) {
	var upd service.EnrollmentUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	e, err := h.service.UpdateEnrollment(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		h.handleError(w, r, err, "Failed to update enrollment")
		return
	}

	h.ok(w, "Enrollment updated", e)
}

// ListUserEnrollments возвращает записи пользователя. Доступно самому пользователю и администратору.
func (h *Handler) ListUserEnrollments(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if !canAccessUser(r.Context(), userID) {
		h.fail(w, http.StatusForbidden, "Access denied")
		return
	}

	enrollments, err := h.service.ListUserEnrollments(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, err, "Failed to fetch user enrollments")
		return
	}
	if len(enrollments) == 0 {
		h.fail(w, http.StatusNotFound, "No enrollments found for this user")
		return
	}

	h.ok(w, "", enrollments)
}
