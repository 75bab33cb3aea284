package model

import "time"

// EnrollmentStatus описывает статус записи на урок.
type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentConfirmed EnrollmentStatus = "confirmed"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

// Valid сообщает, входит ли статус в допустимый набор.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentPending, EnrollmentConfirmed, EnrollmentCompleted, EnrollmentCancelled:
		return true
	}
	return false
}

var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentPending:   {EnrollmentConfirmed, EnrollmentCompleted, EnrollmentCancelled},
	EnrollmentConfirmed: {EnrollmentCompleted, EnrollmentCancelled},
}

// CanTransitionTo сообщает, допустим ли переход записи в статус next.
// Подтвердить можно только ожидающую запись, отменить нельзя завершённую или уже отменённую.
func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	for _, allowed := range enrollmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active сообщает, удерживает ли запись ссылку на урок.
func (s EnrollmentStatus) Active() bool {
	return s != EnrollmentCancelled
}

// Enrollment представляет запись студента на урок в выбранные дату и время.
type Enrollment struct {
	ID            string           `json:"id" bson:"_id"`
	LessonID      string           `json:"lessonId" bson:"lesson_id"`
	LessonTitle   string           `json:"lessonTitle" bson:"lesson_title"`
	UserID        string           `json:"userId,omitempty" bson:"user_id,omitempty"`
	CustomerName  string           `json:"customerName" bson:"customer_name"`
	CustomerEmail string           `json:"customerEmail" bson:"customer_email"`
	CustomerPhone string           `json:"customerPhone" bson:"customer_phone"`
	Date          string           `json:"date" bson:"date"`
	TimeSlot      string           `json:"timeSlot" bson:"time_slot"`
	VehicleType   Vehicle          `json:"vehicleType" bson:"vehicle_type"`
	PaymentID     string           `json:"paymentId" bson:"payment_id"`
	Status        EnrollmentStatus `json:"status" bson:"status"`
	InstructorID  string           `json:"instructorId,omitempty" bson:"instructor_id,omitempty"`
	Feedback      string           `json:"feedback,omitempty" bson:"feedback,omitempty"`
	Version       int64            `json:"version" bson:"version"`
	CreatedAt     time.Time        `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time        `json:"updatedAt" bson:"updated_at"`
}
