package model

import "strings"

// matchesSearch возвращает true, если term пуст или входит без учёта регистра хотя бы в одно из полей.
func matchesSearch(term string, fields ...string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// LessonFilter описывает фильтр каталога уроков в панели администратора.
type LessonFilter struct {
	Search   string
	Category LessonCategory
}

// Match сообщает, проходит ли урок фильтр.
func (f LessonFilter) Match(l Lesson) bool {
	if f.Category != "" && l.Category != f.Category {
		return false
	}
	return matchesSearch(f.Search, l.Title, l.Description, string(l.Category))
}

// PaymentFilter описывает фильтр списка платежей.
type PaymentFilter struct {
	Search string
	Status PaymentStatus
	Method PaymentMethod
}

// Match сообщает, проходит ли платёж фильтр.
func (f PaymentFilter) Match(p Payment) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Method != "" && p.Method != f.Method {
		return false
	}
	return matchesSearch(f.Search, p.CustomerName, p.CustomerEmail, p.LessonTitle, p.ID, p.TransactionReference)
}

// EnrollmentFilter описывает фильтр списка записей.
type EnrollmentFilter struct {
	Search string
	Status EnrollmentStatus
}

// Match сообщает, проходит ли запись фильтр.
func (f EnrollmentFilter) Match(e Enrollment) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return matchesSearch(f.Search, e.CustomerName, e.CustomerEmail, e.LessonTitle, e.ID)
}

// UserFilter описывает фильтр списка пользователей.
type UserFilter struct {
	Search string
	Role   Role
}

// Match сообщает, проходит ли пользователь фильтр.
func (f UserFilter) Match(u User) bool {
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	return matchesSearch(f.Search, u.Name, u.Email, u.Phone, u.ID)
}
