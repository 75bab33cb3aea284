package validation

import (
	"strings"

	"github.com/mmeshcher/driveright-academy/internal/model"
)

// Сообщения об ошибках валидации, которые возвращаются клиенту без изменений.
const (
	MsgMissingPayment  = "Missing required payment information"
	MsgMissingCard     = "Missing required card information"
	MsgMissingBank     = "Missing required bank information"
	MsgMissingMobile   = "Missing required mobile money information"
	MsgInvalidMethod   = "Invalid payment method"
	MsgInvalidCard     = "Invalid card number"
	MsgInvalidVehicle  = "Invalid vehicle type"
	MsgMissingDetails  = "Please fill in all required fields"
	MsgInvalidLesson   = "Invalid lesson data"
	MsgMissingRegister = "Name, email, phone and password are required"
)

// Error описывает ошибку валидации входных данных.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(msg string) *Error {
	return &Error{Message: msg}
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

// ValidatePaymentRequest проверяет обязательные поля платежа и поля выбранного способа оплаты.
func ValidatePaymentRequest(req model.PaymentRequest) error {
	if req.Amount <= 0 || blank(req.LessonID, req.CustomerName, req.CustomerEmail, req.CustomerPhone) {
		return newError(MsgMissingPayment)
	}

	switch req.PaymentMethod {
	case model.MethodCard:
		if blank(req.CardNumber, req.CardName, req.Expiry, req.CVV) {
			return newError(MsgMissingCard)
		}
		if !IsValidCardNumber(req.CardNumber) {
			return newError(MsgInvalidCard)
		}
	case model.MethodBank:
		if blank(req.AccountName, req.BankName, req.AccountNumber) {
			return newError(MsgMissingBank)
		}
	case model.MethodMobile:
		if blank(req.MobileProvider, req.MobileNumber) {
			return newError(MsgMissingMobile)
		}
	default:
		return newError(MsgInvalidMethod)
	}

	if req.VehicleType != "" && !req.VehicleType.ValidForBooking() {
		return newError(MsgInvalidVehicle)
	}

	return nil
}

// BookingDetails содержит данные первого шага мастера записи.
type BookingDetails struct {
	FullName    string        `json:"fullName"`
	Email       string        `json:"email"`
	Phone       string        `json:"phone"`
	Date        string        `json:"date"`
	TimeSlot    string        `json:"timeSlot"`
	VehicleType model.Vehicle `json:"vehicleType"`
}

// ValidateBookingDetails проверяет, что все поля первого шага заполнены.
// Возвращает одно общее сообщение, а не ошибку по каждому полю.
func ValidateBookingDetails(d BookingDetails) error {
	if blank(d.FullName, d.Email, d.Phone, d.Date, d.TimeSlot, string(d.VehicleType)) {
		return newError(MsgMissingDetails)
	}
	if !d.VehicleType.ValidForBooking() {
		return newError(MsgInvalidVehicle)
	}
	return nil
}

// ValidateLesson проверяет инварианты урока каталога.
func ValidateLesson(l model.Lesson) error {
	if blank(l.Title, l.Description) || l.Price <= 0 || l.Duration <= 0 ||
		!l.Category.Valid() || !l.Vehicle.Valid() {
		return newError(MsgInvalidLesson)
	}
	return nil
}
