package model

import (
    "fmt"
    "time"
)

// TicketStatus is the redemption state of a single ticket.
type TicketStatus string

const (
    TicketValid     TicketStatus = "valid"
    TicketUsed      TicketStatus = "used"
    TicketExpired   TicketStatus = "expired"
    TicketCancelled TicketStatus = "cancelled"
)

func ParseTicketStatus(s string) (TicketStatus, error) {
    st := TicketStatus(s)
    switch st {
    case TicketValid, TicketUsed, TicketExpired, TicketCancelled:
        return st, nil
    }
    return "", fmt.Errorf("unknown ticket status %q", s)
}

// CanTransitionTo allows only valid -> {used, expired, cancelled}.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
    switch s {
    case TicketValid:
        switch next {
        case TicketUsed, TicketExpired, TicketCancelled:
            return true
        case TicketValid:
            return false
        }
    case TicketUsed, TicketExpired, TicketCancelled:
        return false
    }
    return false
}

// Ticket is one redeemable unit issued against a paid booking.
//
// Fields:
//  ID            – primary key identifier.
//  BookingID     – parent booking.
//  TicketCode    – unique code printed on the ticket / QR.
//  ValidDate     – the only calendar date on which the ticket admits entry.
//  Status        – redemption state.
//  UsedAt        – when the ticket was redeemed.
//  ValidatedBy   – operator who redeemed the ticket.
//  ValidatorName – display name of that operator at redemption time.
type Ticket struct {
    ID            uint64       `json:"id"`             // tickets.id
    BookingID     uint64       `json:"booking_id"`     // tickets.booking_id
    TicketCode    string       `json:"ticket_code"`    // tickets.ticket_code
    ValidDate     time.Time    `json:"valid_date"`     // tickets.valid_date
    Status        TicketStatus `json:"status"`         // tickets.status
    UsedAt        *time.Time   `json:"used_at"`        // tickets.used_at (nullable)
    ValidatedBy   *uint64      `json:"validated_by"`   // tickets.validated_by (nullable)
    ValidatorName *string      `json:"validator_name"` // tickets.validator_name (nullable)
    CreatedAt     time.Time    `json:"created_at"`     // tickets.created_at
    UpdatedAt     time.Time    `json:"updated_at"`     // tickets.updated_at
}
