// Package repository содержит реализации хранилища записей автошколы: PostgreSQL и MongoDB.
package repository

import "errors"

// ErrUserExists возвращается при попытке создать пользователя с уже существующим email.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrLessonNotFound возвращается, если урок не найден.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrLessonInUse возвращается при удалении урока, на который ссылаются активные записи.
	ErrLessonInUse = errors.New("lesson has active enrollments")
	// ErrPaymentNotFound возвращается, если платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrEnrollmentNotFound возвращается, если запись не найдена.
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	// ErrDuplicateReference возвращается при повторном использовании референса транзакции.
	ErrDuplicateReference = errors.New("duplicate transaction reference")
	// ErrVersionConflict возвращается, если запись была изменена параллельным запросом.
	ErrVersionConflict = errors.New("record was modified by another request")
)
