package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mmeshcher/driveright-academy/internal/model"
	"github.com/mmeshcher/driveright-academy/internal/paystack"
	"github.com/mmeshcher/driveright-academy/internal/repository"
)

// memRepo хранит данные в памяти и повторяет семантику версий настоящих хранилищ.
type memRepo struct {
	mu  sync.Mutex
	seq int

	lessons     map[string]model.Lesson
	payments    map[string]model.Payment
	enrollments map[string]model.Enrollment
	users       map[string]model.User
	settings    map[string]string

	createBookingErr error
	saveErr          error
	userUpdates      int
}

func newMemRepo() *memRepo {
	return &memRepo{
		lessons:     make(map[string]model.Lesson),
		payments:    make(map[string]model.Payment),
		enrollments: make(map[string]model.Enrollment),
		users:       make(map[string]model.User),
		settings:    make(map[string]string),
	}
}

func (r *memRepo) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s%d", prefix, r.seq)
}

func (r *memRepo) now() time.Time {
	return time.Date(2026, 1, 1, 0, 0, r.seq, 0, time.UTC)
}

func (r *memRepo) Close() error { return nil }

func (r *memRepo) addLesson(title string, price int64) model.Lesson {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := model.Lesson{
		ID:          r.nextID("L"),
		Title:       title,
		Description: title + " description",
		Price:       price,
		Duration:    10,
		Category:    model.CategoryBeginner,
		Vehicle:     model.VehicleBoth,
	}
	r.lessons[l.ID] = l
	return l
}

func (r *memRepo) CreateLesson(ctx context.Context, l *model.Lesson) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.ID = r.nextID("L")
	l.CreatedAt, l.UpdatedAt = r.now(), r.now()
	r.lessons[l.ID] = *l
	return nil
}

func (r *memRepo) UpdateLesson(ctx context.Context, l *model.Lesson) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lessons[l.ID]; !ok {
		return repository.ErrLessonNotFound
	}
	r.lessons[l.ID] = *l
	return nil
}

func (r *memRepo) GetLesson(ctx context.Context, id string) (*model.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lessons[id]
	if !ok {
		return nil, repository.ErrLessonNotFound
	}
	return &l, nil
}

func (r *memRepo) ListLessons(ctx context.Context) ([]model.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]model.Lesson, 0, len(r.lessons))
	for _, l := range r.lessons {
		res = append(res, l)
	}
	slices.SortFunc(res, func(a, b model.Lesson) int { return strings.Compare(a.ID, b.ID) })
	return res, nil
}

func (r *memRepo) DeleteLesson(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lessons[id]; !ok {
		return repository.ErrLessonNotFound
	}
	for _, e := range r.enrollments {
		if e.LessonID == id && e.Status.Active() {
			return repository.ErrLessonInUse
		}
	}
	delete(r.lessons, id)
	return nil
}

func (r *memRepo) CreateBooking(ctx context.Context, p *model.Payment, e *model.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createBookingErr != nil {
		return r.createBookingErr
	}
	if _, ok := r.lessons[p.LessonID]; !ok {
		return repository.ErrLessonNotFound
	}
	for _, existing := range r.payments {
		if existing.TransactionReference == p.TransactionReference {
			return repository.ErrDuplicateReference
		}
	}

	p.ID = r.nextID("P")
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = r.now(), r.now()
	e.ID = r.nextID("E")
	e.PaymentID = p.ID
	e.Version = 1
	e.CreatedAt, e.UpdatedAt = r.now(), r.now()

	r.payments[p.ID] = *p
	r.enrollments[e.ID] = *e
	return nil
}

func (r *memRepo) SaveBookingState(ctx context.Context, p *model.Payment, e *model.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}

	if p != nil {
		cur, ok := r.payments[p.ID]
		if !ok {
			return repository.ErrPaymentNotFound
		}
		if cur.Version != p.Version {
			return repository.ErrVersionConflict
		}
	}
	if e != nil {
		cur, ok := r.enrollments[e.ID]
		if !ok {
			return repository.ErrEnrollmentNotFound
		}
		if cur.Version != e.Version {
			return repository.ErrVersionConflict
		}
	}

	if p != nil {
		p.Version++
		r.payments[p.ID] = *p
	}
	if e != nil {
		e.Version++
		r.enrollments[e.ID] = *e
	}
	return nil
}

func (r *memRepo) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	return &p, nil
}

func (r *memRepo) GetPaymentByReference(ctx context.Context, reference string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.TransactionReference == reference {
			return &p, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (r *memRepo) ListPayments(ctx context.Context) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]model.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		res = append(res, p)
	}
	slices.SortFunc(res, func(a, b model.Payment) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return res, nil
}

func (r *memRepo) ListPendingGatewayPayments(ctx context.Context, limit int) ([]model.Payment, error) {
	all, _ := r.ListPayments(ctx)
	var res []model.Payment
	for _, p := range all {
		if p.Status == model.PaymentPending && p.Method.ViaGateway() && p.GatewayReference != "" {
			res = append(res, p)
		}
	}
	return res[:min(limit, len(res))], nil
}

func (r *memRepo) GetEnrollment(ctx context.Context, id string) (*model.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[id]
	if !ok {
		return nil, repository.ErrEnrollmentNotFound
	}
	return &e, nil
}

func (r *memRepo) GetEnrollmentByPayment(ctx context.Context, paymentID string) (*model.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.enrollments {
		if e.PaymentID == paymentID {
			return &e, nil
		}
	}
	return nil, repository.ErrEnrollmentNotFound
}

func (r *memRepo) ListEnrollments(ctx context.Context, userID string) ([]model.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Enrollment
	for _, e := range r.enrollments {
		if userID == "" || e.UserID == userID {
			res = append(res, e)
		}
	}
	slices.SortFunc(res, func(a, b model.Enrollment) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return res, nil
}

func (r *memRepo) CreateUser(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: %s", repository.ErrUserExists, u.Email)
		}
	}
	u.ID = r.nextID("U")
	u.CreatedAt = r.now()
	r.users[u.ID] = *u
	return nil
}

func (r *memRepo) UpdateUser(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return repository.ErrUserNotFound
	}
	r.userUpdates++
	r.users[u.ID] = *u
	return nil
}

func (r *memRepo) GetUser(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r *memRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memRepo) ListUsers(ctx context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		res = append(res, u)
	}
	slices.SortFunc(res, func(a, b model.User) int { return strings.Compare(a.ID, b.ID) })
	return res, nil
}

func (r *memRepo) LoadSettings(ctx context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make(map[string]string, len(r.settings))
	for k, v := range r.settings {
		res[k] = v
	}
	return res, nil
}

func (r *memRepo) SaveSettings(ctx context.Context, values map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range values {
		r.settings[k] = v
	}
	return nil
}

func (r *memRepo) counts() (payments, enrollments int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments), len(r.enrollments)
}

// stubGateway имитирует Paystack.
type stubGateway struct {
	enabled bool

	initErr    error
	initCalls  []paystack.InitializeRequest
	verifyErr  error
	verifyTx   *paystack.Transaction
	verifyCall int
	banks      []paystack.Bank
	banksErr   error
}

func (g *stubGateway) Enabled() bool { return g.enabled }

func (g *stubGateway) InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.Authorization, error) {
	g.initCalls = append(g.initCalls, req)
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &paystack.Authorization{
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		AccessCode:       "code",
		Reference:        req.Reference,
	}, nil
}

func (g *stubGateway) VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error) {
	g.verifyCall++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	tx := *g.verifyTx
	tx.Reference = reference
	return &tx, nil
}

func (g *stubGateway) ListBanks(ctx context.Context, country string) ([]paystack.Bank, error) {
	return g.banks, g.banksErr
}

func newTestService(repo *memRepo, gw Gateway) *Service {
	return NewService(repo, gw, nil, nil, Options{CallbackURL: "http://localhost:5000"})
}
