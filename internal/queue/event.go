// Package queue defines the domain events exchanged over RabbitMQ, the
// publisher used by the booking services and the consumer that turns
// ticket and cancellation events into visitor notifications.
package queue

import "time"

// Queue names.  Each event type travels on its own durable queue, routed
// through the default exchange with the queue name as routing key.
const (
    QueueBookingConfirmed = "booking.confirmed"
    QueueTicketsIssued    = "tickets.issued"
    QueueBookingCancelled = "booking.cancelled"
)

// BookingConfirmedEvent is published when a booking becomes paid or
// confirmed.  It carries enough information for downstream consumers to
// log, notify or trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
    BookingID     uint64    `json:"booking_id"`
    OrderNumber   string    `json:"order_number"`
    UserID        *uint64   `json:"user_id,omitempty"`
    DestinationID uint64    `json:"destination_id"`
    VisitDate     string    `json:"visit_date"`
    TotalVisitors int       `json:"total_visitors"`
    TotalAmount   int64     `json:"total_amount"`
    Status        string    `json:"status"`
    Channel       string    `json:"channel"`
    ConfirmedAt   time.Time `json:"confirmed_at"`
}

// TicketsIssuedEvent is published after tickets were created for a
// booking.  The notification consumer mails the codes to the group leader.
type TicketsIssuedEvent struct {
    BookingID   uint64    `json:"booking_id"`
    OrderNumber string    `json:"order_number"`
    LeaderName  string    `json:"leader_name"`
    LeaderEmail string    `json:"leader_email"`
    VisitDate   string    `json:"visit_date"`
    TicketCodes []string  `json:"ticket_codes"`
    IssuedAt    time.Time `json:"issued_at"`
}

// BookingCancelledEvent is published when a booking is cancelled.
type BookingCancelledEvent struct {
    BookingID        uint64    `json:"booking_id"`
    OrderNumber      string    `json:"order_number"`
    LeaderName       string    `json:"leader_name"`
    LeaderEmail      string    `json:"leader_email"`
    TicketsCancelled int64     `json:"tickets_cancelled"`
    CancelledAt      time.Time `json:"cancelled_at"`
}
