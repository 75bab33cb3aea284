package model

import "time"

// PaymentMethod описывает способ оплаты.
type PaymentMethod string

const (
	MethodCard   PaymentMethod = "card"
	MethodBank   PaymentMethod = "bank"
	MethodMobile PaymentMethod = "mobile"
)

// Valid сообщает, поддерживается ли способ оплаты.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodBank, MethodMobile:
		return true
	}
	return false
}

// ViaGateway сообщает, проходит ли оплата этим способом через платёжный шлюз.
func (m PaymentMethod) ViaGateway() bool {
	return m == MethodCard || m == MethodMobile
}

// PaymentStatus описывает статус платежа.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Valid сообщает, входит ли статус в допустимый набор.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Неуспешный платёж может завершиться, если шлюз позже подтвердил оплату.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed},
	PaymentFailed:    {PaymentPending, PaymentCompleted},
	PaymentCompleted: {PaymentRefunded},
}

// CanTransitionTo сообщает, допустим ли переход платежа в статус next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CardDetails хранит маскированные данные карты.
type CardDetails struct {
	CardNumber string `json:"cardNumber" bson:"card_number"`
	CardName   string `json:"cardName" bson:"card_name"`
	Expiry     string `json:"expiry" bson:"expiry"`
}

// BankDetails хранит реквизиты банковского перевода.
type BankDetails struct {
	AccountName   string `json:"accountName" bson:"account_name"`
	BankName      string `json:"bankName" bson:"bank_name"`
	AccountNumber string `json:"accountNumber" bson:"account_number"`
}

// MobileDetails хранит данные мобильного кошелька.
type MobileDetails struct {
	Provider string `json:"provider" bson:"provider"`
	Number   string `json:"number" bson:"number"`
}

// Payment представляет одну попытку оплаты урока.
type Payment struct {
	ID                   string         `json:"id" bson:"_id"`
	Amount               int64          `json:"amount" bson:"amount"`
	LessonID             string         `json:"lessonId" bson:"lesson_id"`
	LessonTitle          string         `json:"lessonTitle" bson:"lesson_title"`
	UserID               string         `json:"userId,omitempty" bson:"user_id,omitempty"`
	CustomerName         string         `json:"customerName" bson:"customer_name"`
	CustomerEmail        string         `json:"customerEmail" bson:"customer_email"`
	CustomerPhone        string         `json:"customerPhone" bson:"customer_phone"`
	Method               PaymentMethod  `json:"paymentMethod" bson:"payment_method"`
	Status               PaymentStatus  `json:"status" bson:"status"`
	CardDetails          *CardDetails   `json:"cardDetails,omitempty" bson:"card_details,omitempty"`
	BankDetails          *BankDetails   `json:"bankDetails,omitempty" bson:"bank_details,omitempty"`
	MobileDetails        *MobileDetails `json:"mobileDetails,omitempty" bson:"mobile_details,omitempty"`
	TransactionReference string         `json:"reference" bson:"transaction_reference"`
	GatewayReference     string         `json:"gatewayReference,omitempty" bson:"gateway_reference,omitempty"`
	AuthorizationURL     string         `json:"authorizationUrl,omitempty" bson:"authorization_url,omitempty"`
	Version              int64          `json:"version" bson:"version"`
	CreatedAt            time.Time      `json:"createdAt" bson:"created_at"`
	UpdatedAt            time.Time      `json:"updatedAt" bson:"updated_at"`
}

// PaymentRequest описывает входные данные формы оплаты.
type PaymentRequest struct {
	Amount         int64         `json:"amount"`
	LessonID       string        `json:"lessonId"`
	LessonTitle    string        `json:"lessonTitle"`
	UserID         string        `json:"userId,omitempty"`
	CustomerName   string        `json:"customerName"`
	CustomerEmail  string        `json:"customerEmail"`
	CustomerPhone  string        `json:"customerPhone"`
	Date           string        `json:"date"`
	TimeSlot       string        `json:"timeSlot"`
	VehicleType    Vehicle       `json:"vehicleType"`
	PaymentMethod  PaymentMethod `json:"paymentMethod"`
	CardNumber     string        `json:"cardNumber,omitempty"`
	CardName       string        `json:"cardName,omitempty"`
	Expiry         string        `json:"expiry,omitempty"`
	CVV            string        `json:"cvv,omitempty"`
	AccountName    string        `json:"accountName,omitempty"`
	BankName       string        `json:"bankName,omitempty"`
	AccountNumber  string        `json:"accountNumber,omitempty"`
	MobileProvider string        `json:"mobileProvider,omitempty"`
	MobileNumber   string        `json:"mobileNumber,omitempty"`
}

// PaymentResult возвращается клиенту после обработки платежа.
type PaymentResult struct {
	PaymentID        string        `json:"paymentId"`
	EnrollmentID     string        `json:"enrollmentId"`
	Amount           int64         `json:"amount"`
	Status           PaymentStatus `json:"status"`
	Reference        string        `json:"reference"`
	AuthorizationURL string        `json:"authorizationUrl,omitempty"`
}

// VerifyResult возвращается после проверки статуса платежа.
type VerifyResult struct {
	PaymentID string        `json:"paymentId"`
	Status    PaymentStatus `json:"status"`
}
