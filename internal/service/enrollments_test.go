package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/driveright-academy/internal/model"
	"github.com/mmeshcher/driveright-academy/internal/repository"
)

func bookedEnrollment(t *testing.T, repo *memRepo, svc *Service, req model.PaymentRequest) *model.Enrollment {
	t.Helper()
	res, err := svc.ProcessPayment(context.Background(), req)
	require.NoError(t, err)
	e, err := repo.GetEnrollment(context.Background(), res.EnrollmentID)
	require.NoError(t, err)
	return e
}

func TestUpdateEnrollmentStatus_Guards(t *testing.T) {
	tests := []struct {
		name    string
		path    []model.EnrollmentStatus
		wantErr bool
	}{
		{name: "confirm pending", path: []model.EnrollmentStatus{model.EnrollmentConfirmed}},
		{name: "complete pending", path: []model.EnrollmentStatus{model.EnrollmentCompleted}},
		{name: "cancel confirmed", path: []model.EnrollmentStatus{model.EnrollmentConfirmed, model.EnrollmentCancelled}},
		{name: "confirm completed", path: []model.EnrollmentStatus{model.EnrollmentConfirmed, model.EnrollmentCompleted, model.EnrollmentConfirmed}, wantErr: true},
		{name: "cancel completed", path: []model.EnrollmentStatus{model.EnrollmentCompleted, model.EnrollmentCancelled}, wantErr: true},
		{name: "reopen cancelled", path: []model.EnrollmentStatus{model.EnrollmentCancelled, model.EnrollmentPending}, wantErr: true},
		{name: "confirm cancelled", path: []model.EnrollmentStatus{model.EnrollmentCancelled, model.EnrollmentConfirmed}, wantErr: true},
		{name: "cancel cancelled", path: []model.EnrollmentStatus{model.EnrollmentCancelled, model.EnrollmentCancelled}, wantErr: true},
		{name: "confirm confirmed", path: []model.EnrollmentStatus{model.EnrollmentConfirmed, model.EnrollmentConfirmed}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			lesson := repo.addLesson("Beginner Course", 2500)
			svc := newTestService(repo, nil)
			e := bookedEnrollment(t, repo, svc, bankPayload(lesson.ID))

			var err error
			for _, status := range tt.path {
				_, err = svc.UpdateEnrollmentStatus(context.Background(), e.ID, status, 0)
				if err != nil {
					break
				}
			}

			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)

			got, err := repo.GetEnrollment(context.Background(), e.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.path[len(tt.path)-1], got.Status)
		})
	}
}

func TestUpdateEnrollment_VersionConflict(t *testing.T) {
	repo := newMemRepo()
	lesson := repo.addLesson("Beginner Course", 2500)
	svc := newTestService(repo, nil)
	e := bookedEnrollment(t, repo, svc, bankPayload(lesson.ID))

	updated, err := svc.UpdateEnrollmentStatus(context.Background(), e.ID, model.EnrollmentConfirmed, e.Version)
	require.NoError(t, err)
	assert.Equal(t, e.Version+1, updated.Version)

	_, err = svc.UpdateEnrollmentStatus(context.Background(), e.ID, model.EnrollmentCancelled, e.Version)
	require.ErrorIs(t, err, repository.ErrVersionConflict)

	got, err := repo.GetEnrollment(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentConfirmed, got.Status)
}

func TestSetFeedback_OnlyCompleted(t *testing.T) {
	repo := newMemRepo()
	lesson := repo.addLesson("Beginner Course", 2500)
	svc := newTestService(repo, nil)
	e := bookedEnrollment(t, repo, svc, cardPayload(lesson.ID))

	_, err := svc.SetFeedback(context.Background(), e.ID, "Great", 0)
	require.ErrorIs(t, err, ErrFeedbackNotAllowed)

	completed := model.EnrollmentCompleted
	feedback := "  Patient instructor  "
	got, err := svc.UpdateEnrollment(context.Background(), e.ID, EnrollmentUpdate{Status: &completed, Feedback: &feedback})
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentCompleted, got.Status)
	assert.Equal(t, "Patient instructor", got.Feedback)
}

func TestAssignInstructor(t *testing.T) {
	repo := newMemRepo()
	lesson := repo.addLesson("Beginner Course", 2500)
	svc := newTestService(repo, nil)
	e := bookedEnrollment(t, repo, svc, cardPayload(lesson.ID))

	student := &model.User{Name: "Kofi", Email: "kofi@x.com", Role: model.RoleStudent}
	require.NoError(t, repo.CreateUser(context.Background(), student))
	instructor := &model.User{Name: "Mr. Asante", Email: "asante@x.com", Role: model.RoleInstructor}
	require.NoError(t, repo.CreateUser(context.Background(), instructor))

	_, err := svc.AssignInstructor(context.Background(), e.ID, student.ID, 0)
	require.ErrorIs(t, err, repository.ErrUserNotFound)

	got, err := svc.AssignInstructor(context.Background(), e.ID, instructor.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, instructor.ID, got.InstructorID)
}

func TestCompletedEnrollmentMovesToCompletedLessons(t *testing.T) {
	repo := newMemRepo()
	lesson := repo.addLesson("Beginner Course", 2500)
	svc := newTestService(repo, nil)

	u := &model.User{Name: "John", Email: "john@x.com", Role: model.RoleStudent}
	require.NoError(t, repo.CreateUser(context.Background(), u))

	req := cardPayload(lesson.ID)
	req.UserID = u.ID
	e := bookedEnrollment(t, repo, svc, req)

	_, err := svc.UpdateEnrollmentStatus(context.Background(), e.ID, model.EnrollmentCompleted, 0)
	require.NoError(t, err)

	got, err := repo.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.UpcomingLessons)
	assert.Equal(t, []string{e.ID}, got.CompletedLessons)

	mine, err := svc.ListUserEnrollments(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, e.ID, mine[0].ID)
}

func TestListEnrollments_SearchAndStatus(t *testing.T) {
	repo := newMemRepo()
	lesson := repo.addLesson("Defensive Driving", 2500)
	svc := newTestService(repo, nil)

	bookedEnrollment(t, repo, svc, cardPayload(lesson.ID))
	other := bankPayload(lesson.ID)
	other.CustomerName = "Ama Mensah"
	other.CustomerEmail = "ama@x.com"
	bookedEnrollment(t, repo, svc, other)

	got, err := svc.ListEnrollments(context.Background(), model.EnrollmentFilter{Search: "defensive"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.ListEnrollments(context.Background(), model.EnrollmentFilter{Search: "AMA@", Status: model.EnrollmentPending})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ama Mensah", got[0].CustomerName)

	got, err = svc.ListEnrollments(context.Background(), model.EnrollmentFilter{Search: "ama", Status: model.EnrollmentConfirmed})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteLesson_RefusedWhileBooked(t *testing.T) {
	repo := newMemRepo()
	lesson := repo.addLesson("Beginner Course", 2500)
	svc := newTestService(repo, nil)
	e := bookedEnrollment(t, repo, svc, bankPayload(lesson.ID))

	require.ErrorIs(t, svc.DeleteLesson(context.Background(), lesson.ID), repository.ErrLessonInUse)

	_, err := svc.UpdateEnrollmentStatus(context.Background(), e.ID, model.EnrollmentCancelled, 0)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLesson(context.Background(), lesson.ID))
	_, err = svc.GetLesson(context.Background(), lesson.ID)
	require.ErrorIs(t, err, repository.ErrLessonNotFound)
}
