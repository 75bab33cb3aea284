package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/driveright-academy/internal/middleware"
	"github.com/mmeshcher/driveright-academy/internal/model"
	"github.com/mmeshcher/driveright-academy/internal/repository"
	"github.com/mmeshcher/driveright-academy/internal/service"
	"github.com/mmeshcher/driveright-academy/internal/validation"
	"github.com/mmeshcher/driveright-academy/internal/wizard"
)

type stubService struct {
	paymentReq  model.PaymentRequest
	paymentResp *model.PaymentResult
	paymentErr  error

	verifyResp *model.VerifyResult
	verifyErr  error

	payments      []model.Payment
	paymentFilter model.PaymentFilter
	payment       *model.Payment
	actionErr     error
	actionVersion int64

	lessons   []model.Lesson
	lesson    *model.Lesson
	lessonErr error

	enrollments      []model.Enrollment
	enrollment       *model.Enrollment
	enrollmentErr    error
	enrollmentFltr   model.EnrollmentFilter
	enrollmentUpdate service.EnrollmentUpdate

	user    *model.User
	userErr error
	users   []model.User

	dashboard *model.DashboardStats
	settings  map[string]string
}

func (s *stubService) ProcessPayment(ctx context.Context, req model.PaymentRequest) (*model.PaymentResult, error) {
	s.paymentReq = req
	return s.paymentResp, s.paymentErr
}

func (s *stubService) VerifyPayment(ctx context.Context, reference string) (*model.VerifyResult, error) {
	return s.verifyResp, s.verifyErr
}

func (s *stubService) ListPayments(ctx context.Context, f model.PaymentFilter) ([]model.Payment, error) {
	s.paymentFilter = f
	return s.payments, nil
}

func (s *stubService) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	return s.payment, s.actionErr
}

func (s *stubService) paymentAction(version int64) (*model.Payment, error) {
	s.actionVersion = version
	return s.payment, s.actionErr
}

func (s *stubService) ConfirmPayment(ctx context.Context, id string, version int64) (*model.Payment, error) {
	return s.paymentAction(version)
}

func (s *stubService) RetryPayment(ctx context.Context, id string, version int64) (*model.Payment, error) {
	return s.paymentAction(version)
}

func (s *stubService) RefundPayment(ctx context.Context, id string, version int64) (*model.Payment, error) {
	return s.paymentAction(version)
}

func (s *stubService) ListLessons(ctx context.Context, f model.LessonFilter) ([]model.Lesson, error) {
	return s.lessons, s.lessonErr
}

func (s *stubService) GetLesson(ctx context.Context, id string) (*model.Lesson, error) {
	return s.lesson, s.lessonErr
}

func (s *stubService) CreateLesson(ctx context.Context, l model.Lesson) (*model.Lesson, error) {
	l.ID = "L1"
	return &l, s.lessonErr
}

func (s *stubService) UpdateLesson(ctx context.Context, id string, l model.Lesson) (*model.Lesson, error) {
	l.ID = id
	return &l, s.lessonErr
}

func (s *stubService) DeleteLesson(ctx context.Context, id string) error {
	return s.lessonErr
}

func (s *stubService) ListEnrollments(ctx context.Context, f model.EnrollmentFilter) ([]model.Enrollment, error) {
	s.enrollmentFltr = f
	return s.enrollments, s.enrollmentErr
}

func (s *stubService) ListUserEnrollments(ctx context.Context, userID string) ([]model.Enrollment, error) {
	return s.enrollments, s.enrollmentErr
}

func (s *stubService) GetEnrollment(ctx context.Context, id string) (*model.Enrollment, error) {
	return s.enrollment, s.enrollmentErr
}

func (s *stubService) UpdateEnrollment(ctx context.Context, id string, upd service.EnrollmentUpdate) (*model.Enrollment, error) {
	s.enrollmentUpdate = upd
	return s.enrollment, s.enrollmentErr
}

func (s *stubService) RegisterUser(ctx context.Context, req service.RegisterRequest) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) ListUsers(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	return s.users, s.userErr
}

func (s *stubService) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	return s.dashboard, nil
}

func (s *stubService) GetSettings() map[string]string {
	return s.settings
}

func (s *stubService) UpdateSettings(ctx context.Context, values map[string]string) (map[string]string, error) {
	if _, ok := values["theme"]; ok {
		return nil, fmt.Errorf("%w: theme", service.ErrUnknownSetting)
	}
	return values, nil
}

func (s *stubService) MobileMoneyProviders() []service.MobileMoneyProvider {
	return []service.MobileMoneyProvider{{ID: "mtn", Name: "MTN Mobile Money"}}
}

func (s *stubService) Banks(ctx context.Context) []service.Bank {
	return []service.Bank{{Name: "GCB Bank", Code: "040100"}}
}

func (s *stubService) Locations() []service.Region {
	return []service.Region{{Name: "Greater Accra", Cities: []string{"Accra"}}}
}

type stubWizard struct {
	state wizard.State
	err   error
}

func (s *stubWizard) Start(ctx context.Context, lessonID, userID string) (wizard.State, error) {
	s.state.LessonID = lessonID
	s.state.UserID = userID
	return s.state, s.err
}

func (s *stubWizard) Get(id string) (wizard.State, error) { return s.state, s.err }

func (s *stubWizard) SubmitDetails(id string, d validation.BookingDetails) (wizard.State, error) {
	return s.state, s.err
}

func (s *stubWizard) Back(id string) (wizard.State, error) { return s.state, s.err }

func (s *stubWizard) SubmitPayment(ctx context.Context, id string, in wizard.PaymentInput) (wizard.State, error) {
	return s.state, s.err
}

func (s *stubWizard) Callback(ctx context.Context, id, reference string) (wizard.State, error) {
	return s.state, s.err
}

func (s *stubWizard) Cancel(ctx context.Context, id string) (wizard.State, error) {
	return s.state, s.err
}

type testEnv struct {
	svc    *stubService
	wz     *stubWizard
	auth   *middleware.AuthMiddleware
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	env := &testEnv{
		svc:  &stubService{},
		wz:   &stubWizard{},
		auth: middleware.NewAuthMiddleware("test-secret"),
	}
	h := NewHandler(env.svc, env.wz, logger, env.auth, RouterOptions{})
	env.router = h.SetupRouter()
	return env
}

type testResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any, role model.Role, userID string) (int, testResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, err := e.auth.IssueToken(userID, role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func TestProcessPayment_Responses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "success", wantStatus: http.StatusOK, wantMsg: "Payment processed successfully"},
		{
			name:       "validation",
			err:        &validation.Error{Message: validation.MsgMissingCard},
			wantStatus: http.StatusBadRequest,
			wantMsg:    validation.MsgMissingCard,
		},
		{
			name:       "unknown lesson",
			err:        repository.ErrLessonNotFound,
			wantStatus: http.StatusNotFound,
			wantMsg:    "Lesson not found",
		},
		{
			name:       "gateway",
			err:        fmt.Errorf("%w: timeout", service.ErrGateway),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "store failure",
			err:        errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "An error occurred while processing the payment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.svc.paymentErr = tt.err
			env.svc.paymentResp = &model.PaymentResult{PaymentID: "P1", EnrollmentID: "E1", Amount: 2500, Status: model.PaymentCompleted, Reference: "PAY-1"}

			status, resp := env.do(t, http.MethodPost, "/api/payments", model.PaymentRequest{Amount: 2500, UserID: "spoofed"}, "", "")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.err == nil, resp.Success)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Message)
			}
			assert.Empty(t, env.svc.paymentReq.UserID)
		})
	}
}

func TestProcessPayment_UserFromToken(t *testing.T) {
	env := newTestEnv(t)
	env.svc.paymentResp = &model.PaymentResult{PaymentID: "P1"}

	status, _ := env.do(t, http.MethodPost, "/api/payments", model.PaymentRequest{UserID: "U2"}, model.RoleStudent, "U1")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "U1", env.svc.paymentReq.UserID)
}

func TestVerifyPayment_GetAndPost(t *testing.T) {
	env := newTestEnv(t)
	env.svc.verifyResp = &model.VerifyResult{PaymentID: "P1", Status: model.PaymentCompleted}

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		status, resp := env.do(t, method, "/api/payments/verify/PAY-1", nil, "", "")
		assert.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"paymentId":"P1","status":"completed"}`, string(resp.Data))
	}

	env.svc.verifyErr = repository.ErrPaymentNotFound
	status, resp := env.do(t, http.MethodGet, "/api/payments/verify/PAY-x", nil, "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Payment not found", resp.Message)
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.svc.dashboard = &model.DashboardStats{TotalLessons: 3}

	status, _ := env.do(t, http.MethodGet, "/api/admin/dashboard", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, resp := env.do(t, http.MethodGet, "/api/admin/dashboard", nil, model.RoleStudent, "U1")
	assert.Equal(t, http.StatusForbidden, status)
	assert.False(t, resp.Success)

	status, resp = env.do(t, http.MethodGet, "/api/admin/dashboard", nil, model.RoleAdmin, "A1")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(resp.Data), `"totalLessons":3`)
}

func TestListPayments_Filters(t *testing.T) {
	env := newTestEnv(t)
	env.svc.payments = []model.Payment{{ID: "P1"}}

	status, _ := env.do(t, http.MethodGet, "/api/payments?search=john&status=pending&method=bank", nil, model.RoleAdmin, "A1")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, model.PaymentFilter{Search: "john", Status: model.PaymentPending, Method: model.MethodBank}, env.svc.paymentFilter)
}

func TestPaymentActions(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		body        any
		err         error
		wantStatus  int
		wantVersion int64
	}{
		{name: "confirm", path: "/api/payments/P1/confirm", body: versionRequest{Version: 3}, wantStatus: http.StatusOK, wantVersion: 3},
		{name: "retry without body", path: "/api/payments/P1/retry", wantStatus: http.StatusOK},
		{name: "refund query version", path: "/api/payments/P1/refund?version=5", wantStatus: http.StatusOK, wantVersion: 5},
		{name: "stale version", path: "/api/payments/P1/confirm", body: versionRequest{Version: 1}, err: repository.ErrVersionConflict, wantStatus: http.StatusConflict, wantVersion: 1},
		{name: "invalid transition", path: "/api/payments/P1/refund", err: service.ErrInvalidTransition, wantStatus: http.StatusUnprocessableEntity},
		{name: "reference collision", path: "/api/payments/P1/retry", err: repository.ErrDuplicateReference, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.svc.payment = &model.Payment{ID: "P1", Status: model.PaymentCompleted}
			env.svc.actionErr = tt.err

			status, resp := env.do(t, http.MethodPost, tt.path, tt.body, model.RoleAdmin, "A1")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantVersion, env.svc.actionVersion)
			if errors.Is(tt.err, repository.ErrVersionConflict) {
				assert.Equal(t, "record was modified by another request", resp.Message)
			}
		})
	}
}

func TestUpdateEnrollment(t *testing.T) {
	env := newTestEnv(t)
	env.svc.enrollment = &model.Enrollment{ID: "E1", Status: model.EnrollmentCompleted}

	status, _ := env.do(t, http.MethodPatch, "/api/enrollments/E1",
		map[string]any{"status": "completed", "feedback": "Great", "version": 2}, model.RoleAdmin, "A1")
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.svc.enrollmentUpdate.Status)
	assert.Equal(t, model.EnrollmentCompleted, *env.svc.enrollmentUpdate.Status)
	require.NotNil(t, env.svc.enrollmentUpdate.Feedback)
	assert.Equal(t, "Great", *env.svc.enrollmentUpdate.Feedback)
	assert.Equal(t, int64(2), env.svc.enrollmentUpdate.Version)

	env.svc.enrollmentErr = service.ErrFeedbackNotAllowed
	status, _ = env.do(t, http.MethodPatch, "/api/enrollments/E1", map[string]any{"feedback": "x"}, model.RoleAdmin, "A1")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestListEnrollments_Filters(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/api/enrollments?search=ama&status=pending", nil, model.RoleAdmin, "A1")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, model.EnrollmentFilter{Search: "ama", Status: model.EnrollmentPending}, env.svc.enrollmentFltr)
}

func TestUserEnrollments_Access(t *testing.T) {
	env := newTestEnv(t)
	env.svc.enrollments = []model.Enrollment{{ID: "E1", UserID: "U1"}}

	status, _ := env.do(t, http.MethodGet, "/api/users/U1/enrollments", nil, model.RoleStudent, "U1")
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/api/users/U1/enrollments", nil, model.RoleStudent, "U2")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodGet, "/api/users/U1/enrollments", nil, model.RoleAdmin, "A1")
	assert.Equal(t, http.StatusOK, status)

	env.svc.enrollments = nil
	status, resp := env.do(t, http.MethodGet, "/api/users/U1/enrollments", nil, model.RoleStudent, "U1")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "No enrollments found for this user", resp.Message)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.svc.user = &model.User{ID: "U1", Email: "john@x.com", Role: model.RoleStudent}

	status, resp := env.do(t, http.MethodPost, "/api/auth/login", credentialsRequest{Email: "john@x.com", Password: "secret"}, "", "")
	require.Equal(t, http.StatusOK, status)

	var data struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	claims, err := env.auth.ParseToken(data.Token)
	require.NoError(t, err)
	assert.Equal(t, "U1", claims.UserID)
	assert.Equal(t, model.RoleStudent, claims.Role)

	env.svc.userErr = service.ErrInvalidCredentials
	status, _ = env.do(t, http.MethodPost, "/api/auth/login", credentialsRequest{Email: "john@x.com", Password: "bad"}, "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodPost, "/api/auth/login", credentialsRequest{Email: "john@x.com"}, "", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRegister_Conflict(t *testing.T) {
	env := newTestEnv(t)
	env.svc.userErr = fmt.Errorf("%w: john@x.com", repository.ErrUserExists)

	status, resp := env.do(t, http.MethodPost, "/api/auth/register", service.RegisterRequest{Email: "john@x.com"}, "", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User already exists", resp.Message)
}

func TestDeleteLesson_InUse(t *testing.T) {
	env := newTestEnv(t)
	env.svc.lessonErr = repository.ErrLessonInUse

	status, _ := env.do(t, http.MethodDelete, "/api/lessons/L1", nil, model.RoleAdmin, "A1")
	assert.Equal(t, http.StatusConflict, status)
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t)
	env.svc.settings = map[string]string{service.SettingPaystackSecretKey: "****1234"}

	status, resp := env.do(t, http.MethodGet, "/api/admin/settings", nil, model.RoleAdmin, "A1")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"paystackSecretKey":"****1234"}`, string(resp.Data))

	status, _ = env.do(t, http.MethodPut, "/api/admin/settings", map[string]string{"theme": "dark"}, model.RoleAdmin, "A1")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWizardRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.wz.state = wizard.State{ID: "S1", Step: wizard.StepDetails}

	status, resp := env.do(t, http.MethodPost, "/api/enroll", startEnrollmentRequest{LessonID: "L1"}, model.RoleStudent, "U1")
	assert.Equal(t, http.StatusCreated, status)
	assert.Contains(t, string(resp.Data), `"userId":"U1"`)

	env.wz.state.Message = validation.MsgMissingDetails
	env.wz.err = &validation.Error{Message: validation.MsgMissingDetails}
	status, resp = env.do(t, http.MethodPost, "/api/enroll/S1/details", validation.BookingDetails{FullName: "John"}, "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, validation.MsgMissingDetails, resp.Message)
	assert.Contains(t, string(resp.Data), `"step":1`)

	env.wz.err = wizard.ErrSessionNotFound
	env.wz.state = wizard.State{}
	status, resp = env.do(t, http.MethodGet, "/api/enroll/missing", nil, "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Enrollment session not found", resp.Message)

	env.wz.err = wizard.ErrWrongStep
	env.wz.state = wizard.State{ID: "S1", Step: wizard.StepDetails}
	status, _ = env.do(t, http.MethodPost, "/api/enroll/S1/cancel", nil, "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = env.do(t, http.MethodPost, "/api/enroll/S1/callback", callbackRequest{}, "", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCatalogRoutes(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/payment-methods/mobile-money", "/api/payment-methods/banks", "/api/locations/ghana", "/healthz"} {
		status, resp := env.do(t, http.MethodGet, path, nil, "", "")
		assert.Equal(t, http.StatusOK, status, path)
		assert.True(t, resp.Success, path)
	}

	status, _ := env.do(t, http.MethodGet, "/api/unknown", nil, "", "")
	assert.Equal(t, http.StatusNotFound, status)
}
