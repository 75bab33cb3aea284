package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/driveright-academy/internal/model"
)

// ListLessons возвращает каталог уроков с фильтрами ?search=&category=.
func (h *Handler) ListLessons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.LessonFilter{
		Search:   q.Get("search"),
		Category: model.LessonCategory(q.Get("category")),
	}

	lessons, err := h.service.ListLessons(r.Context(), f)
	if err != nil {
		h.handleError(w, r, err, "Failed to fetch lessons")
		return
	}

	h.ok(w, "", lessons)
}

// GetLesson возвращает урок каталога.
func (h *Handler) GetLesson(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.GetLesson(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err, "Failed to fetch lesson")
		return
	}

	h.ok(w, "", l)
}

// CreateLesson добавляет урок в каталог.
func (h *Handler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	var l model.Lesson
	if err := decodeJSON(r, &l); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.service.CreateLesson(r.Context(), l)
	if err != nil {
		h.handleError(w, r, err, "Failed to create lesson")
		return
	}

	h.logger.Info("lesson created", zap.String("lesson_id", created.ID))
	h.respond(w, http.StatusCreated, envelope{Success: true, Message: "Lesson created", Data: created})
}

// UpdateLesson изменяет урок каталога.
func (h *Handler) UpdateLesson(w http.ResponseWriter, r *http.Request) {
	var l model.Lesson
	if err := decodeJSON(r, &l); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.service.UpdateLesson(r.Context(), chi.URLParam(r, "id"), l)
	if err != nil {
		h.handleError(w, r, err, "Failed to update lesson")
		return
	}

	h.ok(w, "Lesson updated", updated)
}

// DeleteLesson удаляет урок, если на него нет активных записей.
func (h *Handler) DeleteLesson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteLesson(r.Context(), id); err != nil {
		h.handleError(w, r, err, "Failed to delete lesson")
		return
	}

	h.logger.Info("lesson deleted", zap.String("lesson_id", id))
	h.ok(w, "Lesson deleted", nil)
}
