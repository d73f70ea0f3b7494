package validators

// Visitors is the party composition shared by checkout and coupon preview.
type Visitors struct {
	Adults      int `json:"adults" validate:"min=0,max=500"`
	Children    int `json:"children" validate:"min=0,max=500"`
	Seniors     int `json:"seniors" validate:"min=0,max=500"`
	Motorcycles int `json:"motorcycles" validate:"min=0,max=200"`
	Cars        int `json:"cars" validate:"min=0,max=200"`
	Buses       int `json:"buses" validate:"min=0,max=50"`
}

// CreateBookingRequest is the checkout body.
type CreateBookingRequest struct {
	DestinationID uint64 `json:"destination_id" validate:"required"`
	VisitDate     string `json:"visit_date" validate:"required,visit_date"`
	Visitors
	LeaderName  string `json:"leader_name" validate:"required,max=120"`
	LeaderEmail string `json:"leader_email" validate:"required,email,max=160"`
	LeaderPhone string `json:"leader_phone" validate:"omitempty,phone_number"`
	CouponCode  string `json:"coupon_code" validate:"omitempty,max=32"`
}

// AdminBookingRequest is a walk-in entered at the counter.  Status may
// start the booking past pending.
type AdminBookingRequest struct {
	CreateBookingRequest
	Status         string `json:"status" validate:"omitempty,oneof=pending awaiting_cash paid confirmed"`
	PaymentChannel string `json:"payment_channel" validate:"omitempty,max=32"`
}

// CouponPreviewRequest asks whether a code would apply to a checkout.
type CouponPreviewRequest struct {
	Code          string `json:"code" validate:"required,max=32"`
	DestinationID uint64 `json:"destination_id" validate:"required"`
	Visitors
}

// PaymentWebhookRequest is the gateway notification.  The gateway sends
// gross_amount as a decimal string.
type PaymentWebhookRequest struct {
	OrderID           string `json:"order_id" validate:"required,max=64"`
	TransactionID     string `json:"transaction_id" validate:"max=128"`
	TransactionStatus string `json:"transaction_status" validate:"required"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type" validate:"max=32"`
	GrossAmount       string `json:"gross_amount" validate:"required,numeric"`
}

// ScanRequest carries a scanned ticket code or order number.
type ScanRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// StatusUpdateRequest is the admin manual status change.
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,booking_status"`
}
