package queue

import (
    "context"
    "os"
    "path/filepath"
    "strings"

    "github.com/iliyamo/ecotour-booking/internal/logger"
)

// LogNotifier records each notification as one structured log line.  It
// stands in for the mailer until one is configured.  Confirmed bookings go
// to a separate booking log.
type LogNotifier struct {
    log      *logger.Logger
    bookings *logger.Logger
}

// NewLogNotifier writes notifications and booking confirmations to log.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
    return &LogNotifier{log: log, bookings: log}
}

// NewFileNotifier appends notifications as JSON lines to notifyPath and
// booking confirmations as text lines to bookingPath, creating the parent
// directories.
func NewFileNotifier(notifyPath, bookingPath string) (*LogNotifier, error) {
    notify, err := openLog(notifyPath, "json")
    if err != nil {
        return nil, err
    }
    bookings, err := openLog(bookingPath, "text")
    if err != nil {
        return nil, err
    }
    return &LogNotifier{log: notify, bookings: bookings}, nil
}

func openLog(path, format string) (*logger.Logger, error) {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return nil, err
    }
    return logger.New(logger.Config{Level: "info", Format: format, Output: path})
}

func (n *LogNotifier) BookingConfirmed(_ context.Context, ev BookingConfirmedEvent) error {
    details := map[string]interface{}{
        "booking_id":     ev.BookingID,
        "destination_id": ev.DestinationID,
        "visit_date":     ev.VisitDate,
        "visitors":       ev.TotalVisitors,
        "total":          ev.TotalAmount,
        "status":         ev.Status,
        "channel":        ev.Channel,
        "confirmed_at":   ev.ConfirmedAt,
    }
    if ev.UserID != nil {
        details["user_id"] = *ev.UserID
    }
    n.bookings.LogBookingEvent(ev.OrderNumber, "confirmed", details)
    return nil
}

func (n *LogNotifier) TicketsIssued(_ context.Context, ev TicketsIssuedEvent) error {
    n.log.WithFields(map[string]interface{}{
        "notification": "tickets_issued",
        "order_number": ev.OrderNumber,
        "to":           ev.LeaderEmail,
        "leader":       ev.LeaderName,
        "visit_date":   ev.VisitDate,
        "tickets":      strings.Join(ev.TicketCodes, ","),
        "ticket_count": len(ev.TicketCodes),
    }).Info("tickets issued")
    return nil
}

func (n *LogNotifier) BookingCancelled(_ context.Context, ev BookingCancelledEvent) error {
    n.log.WithFields(map[string]interface{}{
        "notification":      "booking_cancelled",
        "order_number":      ev.OrderNumber,
        "to":                ev.LeaderEmail,
        "leader":            ev.LeaderName,
        "tickets_cancelled": ev.TicketsCancelled,
    }).Info("booking cancelled")
    return nil
}
