// Package service реализует бизнес-логику автошколы: оплату, записи на уроки,
// каталог, пользователей и панель администратора.
package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mmeshcher/driveright-academy/internal/model"
	"github.com/mmeshcher/driveright-academy/internal/paystack"
)

// Ошибки бизнес-логики, которые обработчики переводят в HTTP-статусы.
var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrFeedbackNotAllowed = errors.New("feedback can only be left for completed enrollments")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrGateway            = errors.New("payment gateway error")
	ErrUnknownSetting     = errors.New("unknown setting")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateLesson(ctx context.Context, l *model.Lesson) error
	UpdateLesson(ctx context.Context, l *model.Lesson) error
	GetLesson(ctx context.Context, id string) (*model.Lesson, error)
	ListLessons(ctx context.Context) ([]model.Lesson, error)
	DeleteLesson(ctx context.Context, id string) error

	CreateBooking(ctx context.Context, p *model.Payment, e *model.Enrollment) error
	SaveBookingState(ctx context.Context, p *model.Payment, e *model.Enrollment) error
	GetPayment(ctx context.Context, id string) (*model.Payment, error)
	GetPaymentByReference(ctx context.Context, reference string) (*model.Payment, error)
	ListPayments(ctx context.Context) ([]model.Payment, error)
	ListPendingGatewayPayments(ctx context.Context, limit int) ([]model.Payment, error)
	GetEnrollment(ctx context.Context, id string) (*model.Enrollment, error)
	GetEnrollmentByPayment(ctx context.Context, paymentID string) (*model.Enrollment, error)
	ListEnrollments(ctx context.Context, userID string) ([]model.Enrollment, error)

	CreateUser(ctx context.Context, u *model.User) error
	UpdateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	SettingsRepository
}

// Gateway описывает платёжный шлюз.
type Gateway interface {
	Enabled() bool
	InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.Authorization, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
	ListBanks(ctx context.Context, country string) ([]paystack.Bank, error)
}

// Options содержит параметры сервиса, не относящиеся к хранилищу.
type Options struct {
	// CallbackURL адрес, на который шлюз возвращает клиента после оплаты.
	CallbackURL string
}

// Service содержит бизнес-логику автошколы.
type Service struct {
	repo     Repository
	gateway  Gateway
	settings *Settings
	logger   *zap.Logger
	opts     Options
}

// NewService создаёт новый сервис. gateway может быть nil, тогда платежи
// обрабатываются в режиме симуляции.
func NewService(repo Repository, gateway Gateway, settings *Settings, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings == nil {
		settings = NewSettings(repo)
	}
	return &Service{
		repo:     repo,
		gateway:  gateway,
		settings: settings,
		logger:   logger,
		opts:     opts,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// GatewayEnabled сообщает, проходят ли платежи картой и мобильными деньгами через шлюз.
func (s *Service) GatewayEnabled() bool {
	return s.gateway != nil && s.gateway.Enabled()
}

func (s *Service) currency() string {
	if c := s.settings.Get(SettingCurrency); c != "" {
		return c
	}
	return DefaultCurrency
}
