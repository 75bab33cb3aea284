package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/driveright-academy/internal/model"
	"github.com/mmeshcher/driveright-academy/internal/repository"
)

// EnrollmentUpdate описывает изменения записи из панели администратора.
// Nil-поля не меняются.
type EnrollmentUpdate struct {
	Status       *model.EnrollmentStatus `json:"status,omitempty"`
	Feedback     *string                 `json:"feedback,omitempty"`
	InstructorID *string                 `json:"instructorId,omitempty"`
	Version      int64                   `json:"version"`
}

// ListEnrollments возвращает записи, начиная с самых новых, с учётом фильтра.
func (s *Service) ListEnrollments(ctx context.Context, f model.EnrollmentFilter) ([]model.Enrollment, error) {
	all, err := s.repo.ListEnrollments(ctx, "")
	if err != nil {
		return nil, err
	}

	res := make([]model.Enrollment, 0, len(all))
	for _, e := range all {
		if f.Match(e) {
			res = append(res, e)
		}
	}
	return res, nil
}

// ListUserEnrollments возвращает записи пользователя.
func (s *Service) ListUserEnrollments(ctx context.Context, userID string) ([]model.Enrollment, error) {
	return s.repo.ListEnrollments(ctx, userID)
}

// GetEnrollment возвращает запись по идентификатору.
func (s *Service) GetEnrollment(ctx context.Context, id string) (*model.Enrollment, error) {
	return s.repo.GetEnrollment(ctx, id)
}

// UpdateEnrollment применяет изменения статуса, отзыва и инструктора одним сохранением.
// Отзыв допустим только для завершённой записи с учётом нового статуса.
func (s *Service) UpdateEnrollment(ctx context.Context, id string, upd EnrollmentUpdate) (*model.Enrollment, error) {
	e, err := s.repo.GetEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(upd.Version, e.Version); err != nil {
		return nil, err
	}

	// повтор текущего статуса тоже считается недопустимым переходом
	if upd.Status != nil {
		if !e.Status.CanTransitionTo(*upd.Status) {
			return nil, fmt.Errorf("%w: enrollment %s -> %s", ErrInvalidTransition, e.Status, *upd.Status)
		}
		e.Status = *upd.Status
	}

	if upd.Feedback != nil {
		if e.Status != model.EnrollmentCompleted {
			return nil, ErrFeedbackNotAllowed
		}
		e.Feedback = strings.TrimSpace(*upd.Feedback)
	}

	if upd.InstructorID != nil {
		instructorID := strings.TrimSpace(*upd.InstructorID)
		if instructorID != "" {
			if err := s.checkInstructor(ctx, instructorID); err != nil {
				return nil, err
			}
		}
		e.InstructorID = instructorID
	}

	if err := s.saveBooking(ctx, nil, e); err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateEnrollmentStatus меняет статус записи с проверкой допустимых переходов.
func (s *Service) UpdateEnrollmentStatus(ctx context.Context, id string, status model.EnrollmentStatus, version int64) (*model.Enrollment, error) {
	return s.UpdateEnrollment(ctx, id, EnrollmentUpdate{Status: &status, Version: version})
}

// SetFeedback сохраняет отзыв о завершённом уроке.
func (s *Service) SetFeedback(ctx context.Context, id, feedback string, version int64) (*model.Enrollment, error) {
	return s.UpdateEnrollment(ctx, id, EnrollmentUpdate{Feedback: &feedback, Version: version})
}

// AssignInstructor назначает инструктора на запись.
func (s *Service) AssignInstructor(ctx context.Context, id, instructorID string, version int64) (*model.Enrollment, error) {
	return s.UpdateEnrollment(ctx, id, EnrollmentUpdate{InstructorID: &instructorID, Version: version})
}

func (s *Service) checkInstructor(ctx context.Context, id string) error {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if u.Role != model.RoleInstructor {
		return fmt.Errorf("%w: user %s is not an instructor", repository.ErrUserNotFound, id)
	}
	return nil
}

// addUpcoming добавляет урок и запись в списки пользователя после бронирования.
// Ошибка не отменяет уже сохранённую запись и только логируется.
func (s *Service) addUpcoming(ctx context.Context, e *model.Enrollment) {
	if e.UserID == "" {
		return
	}
	s.updateUserLists(ctx, e.UserID, func(u *model.User) {
		if !slices.Contains(u.EnrolledCourses, e.LessonID) {
			u.EnrolledCourses = append(u.EnrolledCourses, e.LessonID)
		}
		if !slices.Contains(u.UpcomingLessons, e.ID) {
			u.UpcomingLessons = append(u.UpcomingLessons, e.ID)
		}
	})
}

// syncUserLists переносит запись между списками пользователя при смене её статуса.
func (s *Service) syncUserLists(ctx context.Context, e *model.Enrollment) {
	if e.UserID == "" {
		return
	}
	switch e.Status {
	case model.EnrollmentCompleted:
		s.updateUserLists(ctx, e.UserID, func(u *model.User) {
			u.UpcomingLessons = slices.DeleteFunc(u.UpcomingLessons, func(id string) bool { return id == e.ID })
			if !slices.Contains(u.CompletedLessons, e.ID) {
				u.CompletedLessons = append(u.CompletedLessons, e.ID)
			}
		})
	case model.EnrollmentCancelled:
		s.updateUserLists(ctx, e.UserID, func(u *model.User) {
			u.UpcomingLessons = slices.DeleteFunc(u.UpcomingLessons, func(id string) bool { return id == e.ID })
		})
	}
}

func (s *Service) updateUserLists(ctx context.Context, userID string, mutate func(u *model.User)) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn("user lists not updated", zap.String("user_id", userID), zap.Error(err))
		return
	}

	mutate(u)

	if err := s.repo.UpdateUser(ctx, u); err != nil {
		s.logger.Warn("user lists not updated", zap.String("user_id", userID), zap.Error(err))
	}
}
