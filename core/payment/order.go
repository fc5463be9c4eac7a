package payment

import "time"

// Status is the order state machine. An order starts as created and moves
// exactly once to one of the terminal states.
type Status string

const (
	// Created is the only non-terminal state.
	Created Status = "created"
	// Paid means the gateway confirmation was verified and access granted.
	Paid Status = "paid"
	// Failed is reserved for failures reported by the gateway itself.
	Failed Status = "failed"
	// FailedSignature marks a confirmation whose signature did not verify.
	FailedSignature Status = "failed_signature_verification"
)

// Order is one attempt to pay for one course by one user. Amount is held in
// whole rupees; the gateway sees paise.
type Order struct {
	ID               int64     `json:"id" db:"order_id"`
	UserID           int64     `json:"userId" db:"user_id"`
	CourseID         int64     `json:"courseId" db:"course_id"`
	GatewayOrderID   string    `json:"gatewayOrderId" db:"gateway_order_id"`
	Amount           int       `json:"amount" db:"amount"`
	Currency         string    `json:"currency" db:"currency"`
	Status           Status    `json:"status" db:"status"`
	GatewayPaymentID *string   `json:"gatewayPaymentId" db:"gateway_payment_id"`
	GatewaySignature *string   `json:"gatewaySignature" db:"gateway_signature"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"`
}

type OrderNew struct {
	CourseID int64 `json:"courseId" validate:"required,gt=0"`
}

// Confirmation is the payload the checkout widget posts back after the
// payer completes the hosted flow. Field names follow the gateway.
type Confirmation struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
	CourseID  int64  `json:"courseId" validate:"required,gt=0"`
}
