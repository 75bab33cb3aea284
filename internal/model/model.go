// Package model содержит доменные сущности автошколы: уроки, платежи, записи и пользователей.
package model

import "time"

// DefaultLessonImage используется, если для урока не задано изображение.
const DefaultLessonImage = "/placeholder.svg?height=300&width=600"

// DefaultProfileImage используется, если у пользователя нет фотографии профиля.
const DefaultProfileImage = "/placeholder.svg?height=100&width=100"

// LessonCategory описывает уровень курса.
type LessonCategory string

const (
	CategoryBeginner     LessonCategory = "beginner"
	CategoryIntermediate LessonCategory = "intermediate"
	CategoryAdvanced     LessonCategory = "advanced"
	CategorySpecialized  LessonCategory = "specialized"
)

// Valid сообщает, входит ли категория в допустимый набор.
func (c LessonCategory) Valid() bool {
	switch c {
	case CategoryBeginner, CategoryIntermediate, CategoryAdvanced, CategorySpecialized:
		return true
	}
	return false
}

// Vehicle описывает тип трансмиссии, на которой проводится курс.
type Vehicle string

const (
	VehicleManual    Vehicle = "manual"
	VehicleAutomatic Vehicle = "automatic"
	VehicleBoth      Vehicle = "both"
)

// Valid сообщает, допустим ли тип автомобиля для урока.
func (v Vehicle) Valid() bool {
	switch v {
	case VehicleManual, VehicleAutomatic, VehicleBoth:
		return true
	}
	return false
}

// ValidForBooking сообщает, можно ли выбрать этот тип автомобиля при записи.
func (v Vehicle) ValidForBooking() bool {
	return v == VehicleManual || v == VehicleAutomatic
}

// CurriculumStep описывает один шаг программы курса.
type CurriculumStep struct {
	Title       string `json:"title" bson:"title"`
	Description string `json:"description" bson:"description"`
}

// Instructor описывает инструктора, ведущего курс.
type Instructor struct {
	Name       string `json:"name" bson:"name"`
	Role       string `json:"role" bson:"role"`
	Experience string `json:"experience" bson:"experience"`
	Image      string `json:"image,omitempty" bson:"image,omitempty"`
}

// Lesson представляет курс из каталога автошколы.
type Lesson struct {
	ID              string           `json:"id" bson:"_id"`
	Title           string           `json:"title" bson:"title"`
	Description     string           `json:"description" bson:"description"`
	FullDescription string           `json:"fullDescription" bson:"full_description"`
	Price           int64            `json:"price" bson:"price"`
	Duration        int              `json:"duration" bson:"duration"`
	Category        LessonCategory   `json:"category" bson:"category"`
	Vehicle         Vehicle          `json:"vehicle" bson:"vehicle"`
	Image           string           `json:"image" bson:"image"`
	Popular         bool             `json:"popular" bson:"popular"`
	Features        []string         `json:"features" bson:"features"`
	Curriculum      []CurriculumStep `json:"curriculum" bson:"curriculum"`
	Instructors     []Instructor     `json:"instructors" bson:"instructors"`
	CreatedAt       time.Time        `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time        `json:"updatedAt" bson:"updated_at"`
}

// Role описывает роль пользователя.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// Valid сообщает, входит ли роль в допустимый набор.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// Certificate описывает сертификат, выданный студенту.
type Certificate struct {
	Title string    `json:"title" bson:"title"`
	Date  time.Time `json:"date" bson:"date"`
	URL   string    `json:"url" bson:"url"`
}

// User представляет учётную запись студента, инструктора или администратора.
type User struct {
	ID               string        `json:"id" bson:"_id"`
	Name             string        `json:"name" bson:"name"`
	Email            string        `json:"email" bson:"email"`
	Phone            string        `json:"phone" bson:"phone"`
	PasswordHash     []byte        `json:"-" bson:"password_hash"`
	Role             Role          `json:"role" bson:"role"`
	ProfileImage     string        `json:"profileImage" bson:"profile_image"`
	Address          string        `json:"address,omitempty" bson:"address,omitempty"`
	DateOfBirth      *time.Time    `json:"dateOfBirth,omitempty" bson:"date_of_birth,omitempty"`
	EnrolledCourses  []string      `json:"enrolledCourses" bson:"enrolled_courses"`
	CompletedLessons []string      `json:"completedLessons" bson:"completed_lessons"`
	UpcomingLessons  []string      `json:"upcomingLessons" bson:"upcoming_lessons"`
	Certificates     []Certificate `json:"certificates" bson:"certificates"`
	CreatedAt        time.Time     `json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time     `json:"updatedAt" bson:"updated_at"`
}

// DashboardStats содержит сводные показатели для панели администратора.
type DashboardStats struct {
	TotalStudents       int                      `json:"totalStudents"`
	TotalLessons        int                      `json:"totalLessons"`
	TotalEnrollments    int                      `json:"totalEnrollments"`
	PendingEnrollments  int                      `json:"pendingEnrollments"`
	Revenue             int64                    `json:"revenue"`
	EnrollmentsByStatus map[EnrollmentStatus]int `json:"enrollmentsByStatus"`
	PaymentsByMethod    map[PaymentMethod]int    `json:"paymentsByMethod"`
	RecentEnrollments   []Enrollment             `json:"recentEnrollments"`
	RecentPayments      []Payment                `json:"recentPayments"`
}
