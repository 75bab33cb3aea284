// Package wizard реализует пошаговую запись на урок: данные студента,
// оплата и подтверждение. Состояние хранится на сервере.
package wizard

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmeshcher/driveright-academy/internal/model"
	"github.com/mmeshcher/driveright-academy/internal/validation"
)

// Step номер шага мастера.
type Step int

const (
	StepDetails      Step = 1
	StepPayment      Step = 2
	StepConfirmation Step = 3
)

// Сообщения, которые мастер показывает пользователю.
const (
	MsgPaymentCancelled = "Payment cancelled"
	MsgPaymentFailed    = "Payment failed. Please try again"
	MsgPaymentPending   = "Payment is still being processed"
	MsgPaymentError     = "An error occurred while processing the payment"
)

var (
	ErrSessionNotFound    = errors.New("enrollment session not found")
	ErrWrongStep          = errors.New("action is not available at the current step")
	ErrNotAwaitingGateway = errors.New("no payment is awaiting confirmation")
	ErrReferenceMismatch  = errors.New("payment reference does not match the session")
)

// PaymentProcessor проводит оплату, проверяет и отменяет её.
type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, req model.PaymentRequest) (*model.PaymentResult, error)
	VerifyPayment(ctx context.Context, reference string) (*model.VerifyResult, error)
	CancelPayment(ctx context.Context, reference string) (*model.VerifyResult, error)
}

// LessonSource возвращает урок каталога.
type LessonSource interface {
	GetLesson(ctx context.Context, id string) (*model.Lesson, error)
}

// PaymentInput содержит поля второго шага.
type PaymentInput struct {
	PaymentMethod  model.PaymentMethod `json:"paymentMethod"`
	CardNumber     string              `json:"cardNumber,omitempty"`
	CardName       string              `json:"cardName,omitempty"`
	Expiry         string              `json:"expiry,omitempty"`
	CVV            string              `json:"cvv,omitempty"`
	AccountName    string              `json:"accountName,omitempty"`
	BankName       string              `json:"bankName,omitempty"`
	AccountNumber  string              `json:"accountNumber,omitempty"`
	MobileProvider string              `json:"mobileProvider,omitempty"`
	MobileNumber   string              `json:"mobileNumber,omitempty"`
}

// State состояние одной сессии мастера.
type State struct {
	ID              string                    `json:"id"`
	Step            Step                      `json:"step"`
	LessonID        string                    `json:"lessonId"`
	LessonTitle     string                    `json:"lessonTitle"`
	Amount          int64                     `json:"amount"`
	UserID          string                    `json:"userId,omitempty"`
	Details         validation.BookingDetails `json:"details"`
	PaymentMethod   model.PaymentMethod       `json:"paymentMethod,omitempty"`
	AwaitingGateway bool                      `json:"awaitingGateway"`
	Result          *model.PaymentResult      `json:"result,omitempty"`
	Message         string                    `json:"message,omitempty"`
	CreatedAt       time.Time                 `json:"createdAt"`
}

func (s State) clone() State {
	if s.Result != nil {
		r := *s.Result
		s.Result = &r
	}
	return s
}

// Wizard управляет переходами между шагами записи.
type Wizard struct {
	payments PaymentProcessor
	lessons  LessonSource
	store    *Store
}

// New создаёт мастер записи.
func New(payments PaymentProcessor, lessons LessonSource, store *Store) *Wizard {
	return &Wizard{
		payments: payments,
		lessons:  lessons,
		store:    store,
	}
}

// Start открывает новую сессию записи на урок.
func (w *Wizard) Start(ctx context.Context, lessonID, userID string) (State, error) {
	lesson, err := w.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		return State{}, err
	}

	return w.store.Create(State{
		Step:        StepDetails,
		LessonID:    lesson.ID,
		LessonTitle: lesson.Title,
		Amount:      lesson.Price,
		UserID:      userID,
		CreatedAt:   time.Now().UTC(),
	}), nil
}

// Get возвращает текущее состояние сессии.
func (w *Wizard) Get(id string) (State, error) {
	return w.store.Get(id)
}

// SubmitDetails сохраняет данные первого шага и переходит к оплате.
// При незаполненных полях мастер остаётся на первом шаге с одним общим сообщением.
func (w *Wizard) SubmitDetails(id string, d validation.BookingDetails) (State, error) {
	return w.store.Update(id, func(st *State) error {
		if st.Step != StepDetails {
			return ErrWrongStep
		}

		st.Details = trimDetails(d)
		if err := validation.ValidateBookingDetails(st.Details); err != nil {
			st.Message = err.Error()
			return err
		}

		st.Message = ""
		st.Step = StepPayment
		return nil
	})
}

func trimDetails(d validation.BookingDetails) validation.BookingDetails {
	d.FullName = strings.TrimSpace(d.FullName)
	d.Email = strings.TrimSpace(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Date = strings.TrimSpace(d.Date)
	d.TimeSlot = strings.TrimSpace(d.TimeSlot)
	return d
}

// Back возвращает мастер с оплаты к данным студента.
func (w *Wizard) Back(id string) (State, error) {
	return w.store.Update(id, func(st *State) error {
		if st.Step != StepPayment || st.AwaitingGateway {
			return ErrWrongStep
		}
		st.Step = StepDetails
		st.Message = ""
		return nil
	})
}

// SubmitPayment проводит оплату. Банковский перевод и оплата без шлюза
// сразу завершают мастер. Оплата через шлюз оставляет его на втором шаге
// до вызова Callback.
func (w *Wizard) SubmitPayment(ctx context.Context, id string, in PaymentInput) (State, error) {
	return w.store.Update(id, func(st *State) error {
		if st.Step != StepPayment || st.AwaitingGateway {
			return ErrWrongStep
		}

		st.PaymentMethod = in.PaymentMethod
		res, err := w.payments.ProcessPayment(ctx, paymentRequest(st, in))
		if err != nil {
			st.Message = messageFor(err)
			return err
		}

		st.Result = res
		st.Message = ""
		if res.Status == model.PaymentPending && res.AuthorizationURL != "" {
			st.AwaitingGateway = true
			return nil
		}
		st.Step = StepConfirmation
		return nil
	})
}

func paymentRequest(st *State, in PaymentInput) model.PaymentRequest {
	return model.PaymentRequest{
		Amount:         st.Amount,
		LessonID:       st.LessonID,
		LessonTitle:    st.LessonTitle,
		UserID:         st.UserID,
		CustomerName:   st.Details.FullName,
		CustomerEmail:  st.Details.Email,
		CustomerPhone:  st.Details.Phone,
		Date:           st.Details.Date,
		TimeSlot:       st.Details.TimeSlot,
		VehicleType:    st.Details.VehicleType,
		PaymentMethod:  in.PaymentMethod,
		CardNumber:     in.CardNumber,
		CardName:       in.CardName,
		Expiry:         in.Expiry,
		CVV:            in.CVV,
		AccountName:    in.AccountName,
		BankName:       in.BankName,
		AccountNumber:  in.AccountNumber,
		MobileProvider: in.MobileProvider,
		MobileNumber:   in.MobileNumber,
	}
}

func messageFor(err error) string {
	var vErr *validation.Error
	if errors.As(err, &vErr) {
		return vErr.Message
	}
	return MsgPaymentError
}

// Callback обрабатывает возврат со страницы оплаты шлюза.
func (w *Wizard) Callback(ctx context.Context, id, reference string) (State, error) {
	return w.store.Update(id, func(st *State) error {
		if !st.AwaitingGateway || st.Result == nil {
			return ErrNotAwaitingGateway
		}
		if reference != st.Result.Reference {
			return ErrReferenceMismatch
		}

		v, err := w.payments.VerifyPayment(ctx, reference)
		if err != nil {
			st.Message = messageFor(err)
			return err
		}

		st.Result.Status = v.Status
		switch v.Status {
		case model.PaymentCompleted:
			st.AwaitingGateway = false
			st.Step = StepConfirmation
			st.Message = ""
		case model.PaymentFailed:
			st.AwaitingGateway = false
			st.Result = nil
			st.Message = MsgPaymentFailed
		default:
			st.Message = MsgPaymentPending
		}
		return nil
	})
}

// Cancel обрабатывает закрытие окна оплаты. Ожидающий шлюза платёж
// отменяется вместе с записью, мастер остаётся на втором шаге. Если шлюз
// успел подтвердить оплату, мастер переходит к подтверждению.
func (w *Wizard) Cancel(ctx context.Context, id string) (State, error) {
	return w.store.Update(id, func(st *State) error {
		if st.Step != StepPayment {
			return ErrWrongStep
		}

		if st.AwaitingGateway && st.Result != nil {
			v, err := w.payments.CancelPayment(ctx, st.Result.Reference)
			if err != nil {
				st.Message = messageFor(err)
				return err
			}
			if v.Status == model.PaymentCompleted {
				st.Result.Status = v.Status
				st.AwaitingGateway = false
				st.Step = StepConfirmation
				st.Message = ""
				return nil
			}
		}

		st.AwaitingGateway = false
		st.Result = nil
		st.Message = MsgPaymentCancelled
		return nil
	})
}
