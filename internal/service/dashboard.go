package service

import (
	"context"

	"github.com/mmeshcher/driveright-academy/internal/model"
)

const recentItems = 5

// Dashboard собирает сводные показатели для панели администратора.
func (s *Service) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	lessons, err := s.repo.ListLessons(ctx)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.repo.ListEnrollments(ctx, "")
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.DashboardStats{
		TotalLessons:        len(lessons),
		TotalEnrollments:    len(enrollments),
		EnrollmentsByStatus: make(map[model.EnrollmentStatus]int),
		PaymentsByMethod:    make(map[model.PaymentMethod]int),
		RecentEnrollments:   enrollments[:min(recentItems, len(enrollments))],
		RecentPayments:      payments[:min(recentItems, len(payments))],
	}

	for _, u := range users {
		if u.Role == model.RoleStudent {
			stats.TotalStudents++
		}
	}

	for _, e := range enrollments {
		stats.EnrollmentsByStatus[e.Status]++
		if e.Status == model.EnrollmentPending {
			stats.PendingEnrollments++
		}
	}

	for _, p := range payments {
		stats.PaymentsByMethod[p.Method]++
		if p.Status == model.PaymentCompleted {
			stats.Revenue += p.Amount
		}
	}

	return stats, nil
}
