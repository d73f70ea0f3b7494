package service

import (
    "context"
    "database/sql"
    "fmt"

    "github.com/iliyamo/ecotour-booking/internal/model"
    "github.com/iliyamo/ecotour-booking/internal/repository"
    "github.com/iliyamo/ecotour-booking/internal/utils"
)

// maxCodeAttempts bounds the retries after a generated code collides with
// an existing one.
const maxCodeAttempts = 5

// TicketIssuer creates the tickets of a paid booking, one per visitor.
type TicketIssuer struct {
    tickets TicketStore
    prefix  string
    now     Clock
    newCode func(prefix string) (string, error)
}

func NewTicketIssuer(tickets TicketStore, prefix string, now Clock) *TicketIssuer {
    if now == nil {
        now = SystemClock
    }
    return &TicketIssuer{tickets: tickets, prefix: prefix, now: now, newCode: utils.NewTicketCode}
}

// IssueTx issues tickets for b unless it already has some, in which case it
// returns nil without writing.  Each ticket is valid only on the visit
// date.  A code collision is retried with a fresh code.
func (i *TicketIssuer) IssueTx(ctx context.Context, tx *sql.Tx, b *model.Booking) ([]model.Ticket, error) {
    existing, err := i.tickets.CountByBooking(ctx, tx, b.ID)
    if err != nil {
        return nil, fmt.Errorf("count tickets: %w", err)
    }
    if existing > 0 {
        return nil, nil
    }
    now := i.now()
    issued := make([]model.Ticket, 0, b.TotalVisitors)
    for n := 0; n < b.TotalVisitors; n++ {
        t := model.Ticket{
            BookingID: b.ID,
            ValidDate: b.VisitDate,
            Status:    model.TicketValid,
            CreatedAt: now,
            UpdatedAt: now,
        }
        if err := i.insertWithFreshCode(ctx, tx, &t); err != nil {
            return nil, err
        }
        issued = append(issued, t)
    }
    return issued, nil
}

func (i *TicketIssuer) insertWithFreshCode(ctx context.Context, tx *sql.Tx, t *model.Ticket) error {
    var lastErr error
    for attempt := 0; attempt < maxCodeAttempts; attempt++ {
        code, err := i.newCode(i.prefix)
        if err != nil {
            return fmt.Errorf("generate ticket code: %w", err)
        }
        t.TicketCode = code
        err = i.tickets.CreateTx(ctx, tx, t)
        if err == nil {
            return nil
        }
        if !repository.IsDuplicateKey(err) {
            return fmt.Errorf("insert ticket: %w", err)
        }
        lastErr = err
    }
    return fmt.Errorf("insert ticket: %d code collisions: %w", maxCodeAttempts, lastErr)
}
