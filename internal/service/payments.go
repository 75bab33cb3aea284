package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/driveright-academy/internal/metrics"
	"github.com/mmeshcher/driveright-academy/internal/model"
	"github.com/mmeshcher/driveright-academy/internal/paystack"
	"github.com/mmeshcher/driveright-academy/internal/repository"
	"github.com/mmeshcher/driveright-academy/internal/validation"
)

const referenceAttempts = 3

// newReference генерирует референс вида PAY-<epoch_ms>-<0..999>.
var newReference = func() string {
	return fmt.Sprintf("PAY-%d-%d", time.Now().UnixMilli(), rand.Intn(1000))
}

// ProcessPayment проверяет данные формы оплаты и атомарно создаёт платёж и запись на урок.
func (s *Service) ProcessPayment(ctx context.Context, req model.PaymentRequest) (*model.PaymentResult, error) {
	if err := validation.ValidatePaymentRequest(req); err != nil {
		metrics.PaymentValidationFailures.Inc()
		return nil, err
	}

	lesson, err := s.repo.GetLesson(ctx, req.LessonID)
	if err != nil {
		return nil, err
	}

	p, e := newBooking(req, lesson)

	viaGateway := req.PaymentMethod.ViaGateway() && s.GatewayEnabled()
	switch {
	case req.PaymentMethod == model.MethodBank, viaGateway:
		p.Status = model.PaymentPending
		e.Status = model.EnrollmentPending
	default:
		p.Status = model.PaymentCompleted
		e.Status = model.EnrollmentConfirmed
	}

	for attempt := 0; attempt < referenceAttempts; attempt++ {
		p.TransactionReference = newReference()
		if viaGateway {
			if err = s.initializeGateway(ctx, p); err != nil {
				return nil, err
			}
		}

		err = s.repo.CreateBooking(ctx, p, e)
		if !errors.Is(err, repository.ErrDuplicateReference) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	metrics.PaymentsProcessed.WithLabelValues(string(p.Method), string(p.Status)).Inc()
	s.logger.Info("payment processed",
		zap.String("payment_id", p.ID),
		zap.String("enrollment_id", e.ID),
		zap.String("method", string(p.Method)),
		zap.String("status", string(p.Status)),
		zap.String("reference", p.TransactionReference),
	)

	s.addUpcoming(ctx, e)

	return &model.PaymentResult{
		PaymentID:        p.ID,
		EnrollmentID:     e.ID,
		Amount:           p.Amount,
		Status:           p.Status,
		Reference:        p.TransactionReference,
		AuthorizationURL: p.AuthorizationURL,
	}, nil
}

func newBooking(req model.PaymentRequest, lesson *model.Lesson) (*model.Payment, *model.Enrollment) {
	title := strings.TrimSpace(req.LessonTitle)
	if title == "" {
		title = lesson.Title
	}

	p := &model.Payment{
		Amount:        req.Amount,
		LessonID:      lesson.ID,
		LessonTitle:   title,
		UserID:        req.UserID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Method:        req.PaymentMethod,
	}

	switch req.PaymentMethod {
	case model.MethodCard:
		p.CardDetails = &model.CardDetails{
			CardNumber: validation.MaskCardNumber(req.CardNumber),
			CardName:   req.CardName,
			Expiry:     req.Expiry,
		}
	case model.MethodBank:
		p.BankDetails = &model.BankDetails{
			AccountName:   req.AccountName,
			BankName:      req.BankName,
			AccountNumber: req.AccountNumber,
		}
	case model.MethodMobile:
		p.MobileDetails = &model.MobileDetails{
			Provider: req.MobileProvider,
			Number:   req.MobileNumber,
		}
	}

	e := &model.Enrollment{
		LessonID:      lesson.ID,
		LessonTitle:   title,
		UserID:        req.UserID,
		CustomerName:  p.CustomerName,
		CustomerEmail: p.CustomerEmail,
		CustomerPhone: p.CustomerPhone,
		Date:          req.Date,
		TimeSlot:      req.TimeSlot,
		VehicleType:   req.VehicleType,
	}
	return p, e
}

func (s *Service) initializeGateway(ctx context.Context, p *model.Payment) error {
	callback := ""
	if s.opts.CallbackURL != "" {
		callback = strings.TrimRight(s.opts.CallbackURL, "/") + "/api/payments/verify/" + p.TransactionReference
	}

	auth, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       p.CustomerEmail,
		AmountMinor: p.Amount * 100,
		Currency:    s.currency(),
		Reference:   p.TransactionReference,
		CallbackURL: callback,
		Metadata: map[string]any{
			"lessonId":     p.LessonID,
			"lessonTitle":  p.LessonTitle,
			"customerName": p.CustomerName,
			"phone":        p.CustomerPhone,
		},
	})
	if err != nil {
		s.logger.Error("gateway initialize failed",
			zap.String("reference", p.TransactionReference),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrGateway, err)
	}

	p.AuthorizationURL = auth.AuthorizationURL
	p.GatewayReference = auth.Reference
	if p.GatewayReference == "" {
		p.GatewayReference = p.TransactionReference
	}
	return nil
}

// VerifyPayment проверяет статус платежа по референсу. Повторный вызов
// для завершённого платежа ничего не меняет. Неуспешный платёж через шлюз
// проверяется повторно: покупатель мог оплатить после отметки о неудаче.
func (s *Service) VerifyPayment(ctx context.Context, reference string) (*model.VerifyResult, error) {
	p, err := s.repo.GetPaymentByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	switch {
	case p.Method == model.MethodBank:
		return &model.VerifyResult{PaymentID: p.ID, Status: p.Status}, nil
	case p.Status == model.PaymentPending && !s.GatewayEnabled():
		err = s.completePayment(ctx, p)
	case p.Status == model.PaymentPending,
		p.Status == model.PaymentFailed && p.Method.ViaGateway() && s.GatewayEnabled():
		err = s.verifyWithGateway(ctx, p)
	default:
		return &model.VerifyResult{PaymentID: p.ID, Status: p.Status}, nil
	}

	if errors.Is(err, repository.ErrVersionConflict) {
		// параллельная проверка уже сохранила результат
		p, err = s.repo.GetPaymentByReference(ctx, reference)
	}
	if err != nil {
		return nil, err
	}
	return &model.VerifyResult{PaymentID: p.ID, Status: p.Status}, nil
}

// verifyWithGateway применяет ответ шлюза к платежу. Статус abandoned
// означает незавершённую оплату, платёж остаётся в ожидании.
func (s *Service) verifyWithGateway(ctx context.Context, p *model.Payment) error {
	tx, err := s.gateway.VerifyTransaction(ctx, p.TransactionReference)
	if err != nil {
		s.logger.Error("gateway verify failed",
			zap.String("reference", p.TransactionReference),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrGateway, err)
	}

	switch tx.Status {
	case paystack.StatusSuccess:
		if tx.Amount != 0 && tx.Amount != p.Amount*100 {
			s.logger.Warn("gateway amount mismatch",
				zap.String("reference", p.TransactionReference),
				zap.Int64("expected", p.Amount*100),
				zap.Int64("paid", tx.Amount),
			)
			return s.failPayment(ctx, p)
		}
		return s.completePayment(ctx, p)
	case paystack.StatusFailed:
		return s.failPayment(ctx, p)
	default:
		return nil
	}
}

// CancelPayment отменяет ожидающую оплату через шлюз после закрытия окна оплаты.
// Если шлюз уже подтвердил оплату, платёж завершается. Иначе платёж
// становится неуспешным, а его запись отменяется в той же транзакции.
func (s *Service) CancelPayment(ctx context.Context, reference string) (*model.VerifyResult, error) {
	p, err := s.repo.GetPaymentByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentPending || !p.Method.ViaGateway() {
		return &model.VerifyResult{PaymentID: p.ID, Status: p.Status}, nil
	}

	if s.GatewayEnabled() {
		// недоступный шлюз не мешает отмене, оплата проверится повторно по колбэку
		if err = s.verifyWithGateway(ctx, p); errors.Is(err, ErrGateway) {
			err = nil
		}
	}
	if err == nil && p.Status == model.PaymentPending {
		err = s.failPayment(ctx, p)
	}

	if errors.Is(err, repository.ErrVersionConflict) {
		p, err = s.repo.GetPaymentByReference(ctx, reference)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment cancelled",
		zap.String("reference", p.TransactionReference),
		zap.String("status", string(p.Status)),
	)
	return &model.VerifyResult{PaymentID: p.ID, Status: p.Status}, nil
}

// completePayment переводит платёж в completed и подтверждает запись
// в одной транзакции.
func (s *Service) completePayment(ctx context.Context, p *model.Payment) error {
	e, err := s.linkedEnrollment(ctx, p.ID)
	if err != nil {
		return err
	}

	e, reopened, err := completeBooking(p, e)
	if err != nil {
		return err
	}
	if err := s.saveBooking(ctx, p, e); err != nil {
		return err
	}
	if reopened {
		s.addUpcoming(ctx, e)
	}
	return nil
}

// completeBooking возвращает запись, которую нужно сохранить вместе с платежом.
// Запись, отменённая из-за неуспешной оплаты, восстанавливается.
func completeBooking(p *model.Payment, e *model.Enrollment) (*model.Enrollment, bool, error) {
	wasFailed := p.Status == model.PaymentFailed
	if err := setPaymentStatus(p, model.PaymentCompleted); err != nil {
		return nil, false, err
	}
	if e == nil {
		return nil, false, nil
	}

	switch {
	case e.Status == model.EnrollmentPending:
		e.Status = model.EnrollmentConfirmed
		return e, false, nil
	case wasFailed && e.Status == model.EnrollmentCancelled:
		e.Status = model.EnrollmentConfirmed
		return e, true, nil
	}
	return nil, false, nil
}

// failPayment отмечает платёж неуспешным и отменяет ожидающую запись.
func (s *Service) failPayment(ctx context.Context, p *model.Payment) error {
	if p.Status == model.PaymentFailed {
		return nil
	}
	if err := setPaymentStatus(p, model.PaymentFailed); err != nil {
		return err
	}

	e, err := s.linkedEnrollment(ctx, p.ID)
	if err != nil {
		return err
	}
	if e != nil {
		if e.Status == model.EnrollmentPending {
			e.Status = model.EnrollmentCancelled
		} else {
			e = nil
		}
	}

	return s.saveBooking(ctx, p, e)
}

func (s *Service) linkedEnrollment(ctx context.Context, paymentID string) (*model.Enrollment, error) {
	e, err := s.repo.GetEnrollmentByPayment(ctx, paymentID)
	if errors.Is(err, repository.ErrEnrollmentNotFound) {
		return nil, nil
	}
	return e, err
}

func (s *Service) saveBooking(ctx context.Context, p *model.Payment, e *model.Enrollment) error {
	if err := s.repo.SaveBookingState(ctx, p, e); err != nil {
		return err
	}
	if p != nil {
		metrics.PaymentTransitions.WithLabelValues(string(p.Status)).Inc()
	}
	if e != nil {
		metrics.EnrollmentTransitions.WithLabelValues(string(e.Status)).Inc()
		s.syncUserLists(ctx, e)
	}
	return nil
}

func setPaymentStatus(p *model.Payment, next model.PaymentStatus) error {
	if !p.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, p.Status, next)
	}
	p.Status = next
	return nil
}

func checkVersion(expected, actual int64) error {
	if expected != 0 && expected != actual {
		return repository.ErrVersionConflict
	}
	return nil
}

func (s *Service) paymentForUpdate(ctx context.Context, id string, version int64) (*model.Payment, error) {
	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(version, p.Version); err != nil {
		return nil, err
	}
	return p, nil
}

// ConfirmPayment подтверждает ожидающий платёж вручную, например банковский перевод.
func (s *Service) ConfirmPayment(ctx context.Context, id string, version int64) (*model.Payment, error) {
	p, err := s.paymentForUpdate(ctx, id, version)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentPending {
		return nil, fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, p.Status, model.PaymentCompleted)
	}
	if err := s.completePayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RetryPayment повторяет неуспешный платёж с новым референсом.
// Запись, отменённая вместе с платежом, снова ожидает оплаты.
func (s *Service) RetryPayment(ctx context.Context, id string, version int64) (*model.Payment, error) {
	p, err := s.paymentForUpdate(ctx, id, version)
	if err != nil {
		return nil, err
	}
	if err := setPaymentStatus(p, model.PaymentPending); err != nil {
		return nil, err
	}

	e, err := s.linkedEnrollment(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	reopened := e != nil && e.Status == model.EnrollmentCancelled
	if reopened {
		e.Status = model.EnrollmentPending
	}

	p.TransactionReference = newReference()
	p.GatewayReference = ""
	p.AuthorizationURL = ""

	switch {
	case p.Method.ViaGateway() && s.GatewayEnabled():
		if err := s.initializeGateway(ctx, p); err != nil {
			return nil, err
		}
	case p.Method.ViaGateway():
		// без шлюза повтор сразу завершает платёж, как и первичная оплата
		confirmed, _, err := completeBooking(p, e)
		if err != nil {
			return nil, err
		}
		if err := s.saveBooking(ctx, p, confirmed); err != nil {
			return nil, err
		}
		if reopened {
			s.addUpcoming(ctx, confirmed)
		}
		return p, nil
	}

	if !reopened {
		e = nil
	}
	if err := s.saveBooking(ctx, p, e); err != nil {
		return nil, err
	}
	if reopened {
		s.addUpcoming(ctx, e)
	}
	return p, nil
}

// RefundPayment возвращает завершённый платёж и отменяет связанную запись.
func (s *Service) RefundPayment(ctx context.Context, id string, version int64) (*model.Payment, error) {
	p, err := s.paymentForUpdate(ctx, id, version)
	if err != nil {
		return nil, err
	}
	if err := setPaymentStatus(p, model.PaymentRefunded); err != nil {
		return nil, err
	}

	e, err := s.linkedEnrollment(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if e != nil {
		if e.Status.CanTransitionTo(model.EnrollmentCancelled) {
			e.Status = model.EnrollmentCancelled
		} else {
			e = nil
		}
	}

	if err := s.saveBooking(ctx, p, e); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPayments возвращает платежи, начиная с самых новых, с учётом фильтра.
func (s *Service) ListPayments(ctx context.Context, f model.PaymentFilter) ([]model.Payment, error) {
	all, err := s.repo.ListPayments(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]model.Payment, 0, len(all))
	for _, p := range all {
		if f.Match(p) {
			res = append(res, p)
		}
	}
	return res, nil
}

// GetPayment возвращает платёж по идентификатору.
func (s *Service) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	return s.repo.GetPayment(ctx, id)
}
