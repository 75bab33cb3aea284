package service

import (
	"context"
	"strings"

	"github.com/mmeshcher/driveright-academy/internal/model"
	"github.com/mmeshcher/driveright-academy/internal/validation"
)

// ListLessons возвращает каталог уроков с учётом фильтра.
func (s *Service) ListLessons(ctx context.Context, f model.LessonFilter) ([]model.Lesson, error) {
	all, err := s.repo.ListLessons(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]model.Lesson, 0, len(all))
	for _, l := range all {
		if f.Match(l) {
			res = append(res, l)
		}
	}
	return res, nil
}

// GetLesson возвращает урок по идентификатору.
func (s *Service) GetLesson(ctx context.Context, id string) (*model.Lesson, error) {
	return s.repo.GetLesson(ctx, id)
}

func normalizeLesson(l *model.Lesson) {
	l.Title = strings.TrimSpace(l.Title)
	l.Description = strings.TrimSpace(l.Description)
	if l.Image == "" {
		l.Image = model.DefaultLessonImage
	}
	if l.Features == nil {
		l.Features = []string{}
	}
	if l.Curriculum == nil {
		l.Curriculum = []model.CurriculumStep{}
	}
	if l.Instructors == nil {
		l.Instructors = []model.Instructor{}
	}
}

// CreateLesson добавляет урок в каталог.
func (s *Service) CreateLesson(ctx context.Context, l model.Lesson) (*model.Lesson, error) {
	normalizeLesson(&l)
	if err := validation.ValidateLesson(l); err != nil {
		return nil, err
	}
	if err := s.repo.CreateLesson(ctx, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// UpdateLesson перезаписывает урок каталога.
func (s *Service) UpdateLesson(ctx context.Context, id string, l model.Lesson) (*model.Lesson, error) {
	existing, err := s.repo.GetLesson(ctx, id)
	if err != nil {
		return nil, err
	}

	normalizeLesson(&l)
	if err := validation.ValidateLesson(l); err != nil {
		return nil, err
	}

	l.ID = existing.ID
	l.CreatedAt = existing.CreatedAt
	if err := s.repo.UpdateLesson(ctx, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteLesson удаляет урок, если на него нет действующих записей.
func (s *Service) DeleteLesson(ctx context.Context, id string) error {
	return s.repo.DeleteLesson(ctx, id)
}
