package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/driveright-academy/internal/middleware"
	"github.com/mmeshcher/driveright-academy/internal/model"
	"github.com/mmeshcher/driveright-academy/internal/service"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (h *Handler) issueToken(w http.ResponseWriter, u *model.User, status int, message string) {
	token, err := h.authMiddleware.IssueToken(u.ID, u.Role)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err), zap.String("user_id", u.ID))
		h.fail(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	h.respond(w, status, envelope{Success: true, Message: message, Data: authResponse{Token: token, User: u}})
}

// Register обрабатывает регистрацию нового студента.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.service.RegisterUser(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err, "Failed to register user")
		return
	}

	h.issueToken(w, u, http.StatusCreated, "Registration successful")
}

// Login выполняет аутентификацию пользователя и выдаёт токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		h.fail(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(w, r, err, "Failed to log in")
		return
	}

	h.issueToken(w, u, http.StatusOK, "Login successful")
}

// Me возвращает профиль текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.fail(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, err, "Failed to fetch user")
		return
	}

	h.ok(w, "", u)
}

// GetUser возвращает профиль пользователя. Доступно самому пользователю и администратору.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !canAccessUser(r.Context(), id) {
		h.fail(w, http.StatusForbidden, "Access denied")
		return
	}

	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err, "Failed to fetch user")
		return
	}

	h.ok(w, "", u)
}

// ListUsers возвращает пользователей с фильтрами ?role=&search=.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.UserFilter{
		Search: q.Get("search"),
		Role:   model.Role(q.Get("role")),
	}

	users, err := h.service.ListUsers(r.Context(), f)
	if err != nil {
		h.handleError(w, r, err, "Failed to fetch users")
		return
	}

	h.ok(w, "", users)
}
