package handler

import (
	"net/http"
)

// Dashboard возвращает сводку для панели администратора.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.handleError(w, r, err, "Failed to load dashboard")
		return
	}

	h.ok(w, "", stats)
}

// GetSettings возвращает настройки с замаскированными секретами.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.ok(w, "", h.service.GetSettings())
}

// UpdateSettings сохраняет настройки. Пустые и замаскированные секреты не меняются.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := decodeJSON(r, &values); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.UpdateSettings(r.Context(), values)
	if err != nil {
		h.handleError(w, r, err, "Failed to save settings")
		return
	}

	h.ok(w, "Settings saved", res)
}

// MobileMoneyProviders возвращает операторов мобильных денег.
func (h *Handler) MobileMoneyProviders(w http.ResponseWriter, r *http.Request) {
	h.ok(w, "", h.service.MobileMoneyProviders())
}

// Banks возвращает список банков для перевода.
func (h *Handler) Banks(w http.ResponseWriter, r *http.Request) {
	h.ok(w, "", h.service.Banks(r.Context()))
}

// Locations возвращает регионы и города Ганы.
func (h *Handler) Locations(w http.ResponseWriter, r *http.Request) {
	h.ok(w, "", h.service.Locations())
}
