package model

import (
    "fmt"
    "strings"
    "time"
)

// PaymentStatus mirrors the statuses reported by the payment gateway.
type PaymentStatus string

const (
    PaymentPending   PaymentStatus = "pending"
    PaymentSuccess   PaymentStatus = "success"
    PaymentFailed    PaymentStatus = "failed"
    PaymentExpired   PaymentStatus = "expired"
    PaymentRefunded  PaymentStatus = "refunded"
    PaymentChallenge PaymentStatus = "challenge"
    PaymentDeny      PaymentStatus = "deny"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
    st := PaymentStatus(s)
    switch st {
    case PaymentPending, PaymentSuccess, PaymentFailed, PaymentExpired,
        PaymentRefunded, PaymentChallenge, PaymentDeny:
        return st, nil
    }
    return "", fmt.Errorf("unknown payment status %q", s)
}

// ChannelCash marks payments collected at the gate.
const ChannelCash = "cash"

// Payment is one payment attempt for a booking.  A booking may accumulate
// several; the most recently created one is current.
type Payment struct {
    ID             uint64        `json:"id"`               // payments.id
    BookingID      uint64        `json:"booking_id"`       // payments.booking_id
    Amount         int64         `json:"amount"`           // payments.gross_amount
    TransactionID  *string       `json:"transaction_id"`   // payments.transaction_id (nullable)
    GatewayOrderID *string       `json:"gateway_order_id"` // payments.gateway_order_id (nullable)
    Channel        string        `json:"channel"`          // payments.payment_type
    Status         PaymentStatus `json:"status"`           // payments.status
    PaidAt         *time.Time    `json:"paid_at"`          // payments.paid_at (nullable)
    CreatedAt      time.Time     `json:"created_at"`       // payments.created_at
    UpdatedAt      time.Time     `json:"updated_at"`       // payments.updated_at
}

// MapGatewayStatus translates a gateway notification into a PaymentStatus.
// Gateways report card captures with a separate fraud verdict; a capture
// flagged "challenge" is held until an operator accepts it.  The service's
// own status names are accepted as-is so admin tooling can post them.
func MapGatewayStatus(transactionStatus, fraudStatus string) (PaymentStatus, error) {
    switch strings.ToLower(strings.TrimSpace(transactionStatus)) {
    case "capture":
        if strings.EqualFold(fraudStatus, "challenge") {
            return PaymentChallenge, nil
        }
        return PaymentSuccess, nil
    case "settlement", "success":
        return PaymentSuccess, nil
    case "pending":
        return PaymentPending, nil
    case "deny":
        return PaymentDeny, nil
    case "cancel", "failure", "failed":
        return PaymentFailed, nil
    case "expire", "expired":
        return PaymentExpired, nil
    case "refund", "partial_refund", "refunded":
        return PaymentRefunded, nil
    case "challenge":
        return PaymentChallenge, nil
    }
    return "", fmt.Errorf("unknown gateway status %q", transactionStatus)
}
