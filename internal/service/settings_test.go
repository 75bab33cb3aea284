package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/driveright-academy/internal/model"
	"github.com/mmeshcher/driveright-academy/internal/paystack"
)

func TestSettings_SeedMaskAndUpdate(t *testing.T) {
	repo := newMemRepo()
	repo.settings[SettingSchoolName] = "DriveRight Academy"
	repo.settings[SettingPaystackSecretKey] = "sk_test_old"

	settings := NewSettings(repo)
	require.NoError(t, settings.Load(context.Background(), map[string]string{
		SettingPaystackSecretKey: "sk_test_abcd1234",
		SettingCurrency:          "GHS",
		SettingSMTPHost:          "",
		"unknown":                "ignored",
	}))

	assert.Equal(t, "sk_test_abcd1234", settings.SecretKey())
	assert.Equal(t, "sk_test_abcd1234", repo.settings[SettingPaystackSecretKey])
	assert.NotContains(t, repo.settings, "unknown")

	masked := settings.Masked()
	assert.Equal(t, "****1234", masked[SettingPaystackSecretKey])
	assert.Equal(t, "DriveRight Academy", masked[SettingSchoolName])
	assert.Equal(t, "", masked[SettingSMTPPassword])

	res, err := settings.Update(context.Background(), map[string]string{
		SettingPaystackSecretKey: "****1234",
		SettingSMTPPassword:      "mail-pass",
		SettingSchoolName:        "DriveRight",
	})
	require.NoError(t, err)
	assert.Equal(t, "sk_test_abcd1234", settings.SecretKey())
	assert.Equal(t, "****pass", res[SettingSMTPPassword])
	assert.Equal(t, "DriveRight", repo.settings[SettingSchoolName])

	_, err = settings.Update(context.Background(), map[string]string{"theme": "dark"})
	require.ErrorIs(t, err, ErrUnknownSetting)
}

func TestSettings_CurrencyUsedForGateway(t *testing.T) {
	repo := newMemRepo()
	lesson := repo.addLesson("Beginner Course", 2500)
	settings := NewSettings(repo)
	require.NoError(t, settings.Load(context.Background(), map[string]string{SettingCurrency: "NGN"}))

	gw := &stubGateway{enabled: true}
	svc := NewService(repo, gw, settings, nil, Options{})

	_, err := svc.ProcessPayment(context.Background(), cardPayload(lesson.ID))
	require.NoError(t, err)
	require.Len(t, gw.initCalls, 1)
	assert.Equal(t, "NGN", gw.initCalls[0].Currency)
	assert.Empty(t, gw.initCalls[0].CallbackURL)
}

func TestDashboard(t *testing.T) {
	repo := newMemRepo()
	lesson := repo.addLesson("Beginner Course", 2500)
	repo.addLesson("Highway Driving", 1800)
	svc := newTestService(repo, nil)

	require.NoError(t, repo.CreateUser(context.Background(), &model.User{Email: "a@x.com", Role: model.RoleStudent}))
	require.NoError(t, repo.CreateUser(context.Background(), &model.User{Email: "b@x.com", Role: model.RoleAdmin}))

	_, err := svc.ProcessPayment(context.Background(), cardPayload(lesson.ID))
	require.NoError(t, err)
	_, err = svc.ProcessPayment(context.Background(), bankPayload(lesson.ID))
	require.NoError(t, err)

	stats, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalStudents)
	assert.Equal(t, 2, stats.TotalLessons)
	assert.Equal(t, 2, stats.TotalEnrollments)
	assert.Equal(t, 1, stats.PendingEnrollments)
	assert.Equal(t, int64(2500), stats.Revenue)
	assert.Equal(t, 1, stats.EnrollmentsByStatus[model.EnrollmentConfirmed])
	assert.Equal(t, 1, stats.PaymentsByMethod[model.MethodBank])
	assert.Len(t, stats.RecentPayments, 2)
}

func TestBanks_FallbackWithoutGateway(t *testing.T) {
	svc := newTestService(newMemRepo(), nil)
	assert.Equal(t, fallbackBanks, svc.Banks(context.Background()))

	gw := &stubGateway{enabled: true, banks: []paystack.Bank{{Name: "GCB Bank", Code: "040100"}}}
	svc = newTestService(newMemRepo(), gw)
	assert.Equal(t, []Bank{{Name: "GCB Bank", Code: "040100"}}, svc.Banks(context.Background()))

	assert.Len(t, svc.MobileMoneyProviders(), 3)
	assert.NotEmpty(t, svc.Locations())
}

func TestLessons_CreateUpdateValidate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)

	l, err := svc.CreateLesson(context.Background(), model.Lesson{
		Title:       "Night Driving",
		Description: "Driving after dark",
		Price:       900,
		Duration:    4,
		Category:    model.CategorySpecialized,
		Vehicle:     model.VehicleAutomatic,
	})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultLessonImage, l.Image)
	assert.NotNil(t, l.Features)

	l.Price = 1000
	updated, err := svc.UpdateLesson(context.Background(), l.ID, *l)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), updated.Price)

	l.Category = "expert"
	_, err = svc.UpdateLesson(context.Background(), l.ID, *l)
	require.Error(t, err)

	found, err := svc.ListLessons(context.Background(), model.LessonFilter{Search: "dark"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
