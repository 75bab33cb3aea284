// Package handler содержит HTTP-обработчики API автошколы.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mmeshcher/driveright-academy/internal/middleware"
	"github.com/mmeshcher/driveright-academy/internal/model"
	"github.com/mmeshcher/driveright-academy/internal/repository"
	"github.com/mmeshcher/driveright-academy/internal/service"
	"github.com/mmeshcher/driveright-academy/internal/validation"
	"github.com/mmeshcher/driveright-academy/internal/wizard"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	ProcessPayment(ctx context.Context, req model.PaymentRequest) (*model.PaymentResult, error)
	VerifyPayment(ctx context.Context, reference string) (*model.VerifyResult, error)
	ListPayments(ctx context.Context, f model.PaymentFilter) ([]model.Payment, error)
	GetPayment(ctx context.Context, id string) (*model.Payment, error)
	ConfirmPayment(ctx context.Context, id string, version int64) (*model.Payment, error)
	RetryPayment(ctx context.Context, id string, version int64) (*model.Payment, error)
	RefundPayment(ctx context.Context, id string, version int64) (*model.Payment, error)

	ListLessons(ctx context.Context, f model.LessonFilter) ([]model.Lesson, error)
	GetLesson(ctx context.Context, id string) (*model.Lesson, error)
	CreateLesson(ctx context.Context, l model.Lesson) (*model.Lesson, error)
	UpdateLesson(ctx context.Context, id string, l model.Lesson) (*model.Lesson, error)
	DeleteLesson(ctx context.Context, id string) error

	ListEnrollments(ctx context.Context, f model.EnrollmentFilter) ([]model.Enrollment, error)
	ListUserEnrollments(ctx context.Context, userID string) ([]model.Enrollment, error)
	GetEnrollment(ctx context.Context, id string) (*model.Enrollment, error)
	UpdateEnrollment(ctx context.Context, id string, upd service.EnrollmentUpdate) (*model.Enrollment, error)

	RegisterUser(ctx context.Context, req service.RegisterRequest) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context, f model.UserFilter) ([]model.User, error)

	Dashboard(ctx context.Context) (*model.DashboardStats, error)
	GetSettings() map[string]string
	UpdateSettings(ctx context.Context, values map[string]string) (map[string]string, error)

	MobileMoneyProviders() []service.MobileMoneyProvider
	Banks(ctx context.Context) []service.Bank
	Locations() []service.Region
}

// Wizard определяет контракт мастера записи на урок.
type Wizard interface {
	Start(ctx context.Context, lessonID, userID string) (wizard.State, error)
	Get(id string) (wizard.State, error)
	SubmitDetails(id string, d validation.BookingDetails) (wizard.State, error)
	Back(id string) (wizard.State, error)
	SubmitPayment(ctx context.Context, id string, in wizard.PaymentInput) (wizard.State, error)
	Callback(ctx context.Context, id, reference string) (wizard.State, error)
	Cancel(ctx context.Context, id string) (wizard.State, error)
}

// Handler реализует HTTP-обработчики API автошколы.
type Handler struct {
	service        Service
	wizard         Wizard
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	opts           RouterOptions
}

// RouterOptions задаёт параметры маршрутизатора.
type RouterOptions struct {
	AllowedOrigins []string
	Metrics        http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, wz Wizard, logger *zap.Logger, auth *middleware.AuthMiddleware, opts RouterOptions) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:        s,
		wizard:         wz,
		logger:         logger,
		authMiddleware: auth,
		opts:           opts,
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (h *Handler) respond(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func (h *Handler) ok(w http.ResponseWriter, message string, data any) {
	h.respond(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func (h *Handler) fail(w http.ResponseWriter, status int, message string) {
	h.respond(w, status, envelope{Success: false, Message: message})
}

var notFoundMessages = []struct {
	err     error
	message string
}{
	{repository.ErrLessonNotFound, "Lesson not found"},
	{repository.ErrPaymentNotFound, "Payment not found"},
	{repository.ErrEnrollmentNotFound, "Enrollment not found"},
	{repository.ErrUserNotFound, "User not found"},
	{wizard.ErrSessionNotFound, "Enrollment session not found"},
}

// errorStatus переводит ошибку бизнес-логики в HTTP-статус и сообщение клиенту.
// Для неизвестных ошибок возвращается 500 и fallback.
func errorStatus(err error, fallback string) (int, string) {
	var vErr *validation.Error
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, vErr.Message
	}

	for _, nf := range notFoundMessages {
		if errors.Is(err, nf.err) {
			return http.StatusNotFound, nf.message
		}
	}

	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		return http.StatusConflict, repository.ErrVersionConflict.Error()
	case errors.Is(err, repository.ErrDuplicateReference):
		return http.StatusConflict, "Payment reference already in use, please try again"
	case errors.Is(err, repository.ErrUserExists):
		return http.StatusConflict, "User already exists"
	case errors.Is(err, repository.ErrLessonInUse):
		return http.StatusConflict, "Lesson has active enrollments and cannot be deleted"
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrFeedbackNotAllowed),
		errors.Is(err, wizard.ErrWrongStep),
		errors.Is(err, wizard.ErrNotAwaitingGateway):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrUnknownSetting),
		errors.Is(err, wizard.ErrReferenceMismatch):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, service.ErrGateway):
		return http.StatusBadGateway, "Payment gateway is unavailable, please try again later"
	}
	return http.StatusInternalServerError, fallback
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, message := errorStatus(err, fallback)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
	}
	h.fail(w, status, message)
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// decodeOptionalJSON разбирает тело запроса, допуская его отсутствие.
func decodeOptionalJSON(r *http.Request, dst any) error {
	err := decodeJSON(r, dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type versionRequest struct {
	Version int64 `json:"version"`
}

// expectedVersion берёт ожидаемую версию из тела запроса или параметра ?version=.
func expectedVersion(r *http.Request) (int64, error) {
	if v := r.URL.Query().Get("version"); v != "" {
		return strconv.ParseInt(v, 10, 64)
	}
	var req versionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		return 0, err
	}
	return req.Version, nil
}

// canAccessUser сообщает, может ли текущий пользователь читать данные пользователя id.
func canAccessUser(ctx context.Context, id string) bool {
	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		return false
	}
	return claims.UserID == id || claims.Role == model.RoleAdmin
}
