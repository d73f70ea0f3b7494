package service

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/ecotour-booking/internal/database"
    "github.com/iliyamo/ecotour-booking/internal/logger"
    "github.com/iliyamo/ecotour-booking/internal/model"
    "github.com/iliyamo/ecotour-booking/internal/queue"
    "github.com/iliyamo/ecotour-booking/internal/repository"
)

// Deps wires the booking and scan services.  Location is the site
// timezone used to decide what "today" is at the gate.
type Deps struct {
    Tx        database.TxRunner
    Bookings  BookingStore
    Payments  PaymentStore
    Tickets   TicketStore
    Coupons   *CouponService
    Pricer    Pricer
    Issuer    *TicketIssuer
    Publisher queue.Publisher
    Log       *logger.Logger
    Clock     Clock
    Location  *time.Location

    OrderPrefix string
    PendingTTL  time.Duration
}

// lifecycle holds the status transitions shared by the booking and scan
// services: settle a payment, cancel, and publish the resulting events.
type lifecycle struct {
    tx        database.TxRunner
    bookings  BookingStore
    payments  PaymentStore
    tickets   TicketStore
    issuer    *TicketIssuer
    publisher queue.Publisher
    log       *logger.Logger
    now       Clock
    loc       *time.Location
}

func newLifecycle(d Deps) *lifecycle {
    l := &lifecycle{
        tx:        d.Tx,
        bookings:  d.Bookings,
        payments:  d.Payments,
        tickets:   d.Tickets,
        issuer:    d.Issuer,
        publisher: d.Publisher,
        log:       d.Log,
        now:       d.Clock,
        loc:       d.Location,
    }
    if l.now == nil {
        l.now = SystemClock
    }
    if l.loc == nil {
        l.loc = time.UTC
    }
    if l.log == nil {
        l.log = logger.Nop()
    }
    if l.publisher == nil {
        l.publisher = queue.NopPublisher{}
    }
    return l
}

// today is the current calendar date at the site.
func (l *lifecycle) today() string { return l.now().In(l.loc).Format(time.DateOnly) }

// lockBooking reads a booking with a row lock for the rest of tx.
func (l *lifecycle) lockBooking(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
    b, err := l.bookings.GetByIDForUpdateTx(ctx, tx, id)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, ErrBookingNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("lock booking: %w", err)
    }
    return b, nil
}

// transitionTx moves b to status along the booking state machine and
// mirrors the change on b.
func (l *lifecycle) transitionTx(ctx context.Context, tx *sql.Tx, b *model.Booking, to model.BookingStatus) error {
    if !b.Status.CanTransitionTo(to) {
        return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
    }
    now := l.now()
    if err := l.bookings.UpdateStatusTx(ctx, tx, b.ID, to, now); err != nil {
        return fmt.Errorf("update booking status: %w", err)
    }
    switch to {
    case model.BookingPaid, model.BookingConfirmed:
        if b.PaidAt == nil {
            b.PaidAt = &now
        }
    case model.BookingCancelled:
        if b.CancelledAt == nil {
            b.CancelledAt = &now
        }
    case model.BookingPending, model.BookingAwaitingCash, model.BookingUsed, model.BookingExpired, model.BookingRefunded:
    }
    b.Status = to
    b.UpdatedAt = now
    return nil
}

// paymentPatch carries what a settlement knows about the money received.
type paymentPatch struct {
    Channel        string
    TransactionID  *string
    GatewayOrderID *string
}

// recordPaymentTx brings the booking's current payment to status.  A
// successful payment is never downgraded except to refunded, and a repeat
// of the current status is a no-op so gateway retries are harmless.  A new
// transaction after a failed attempt gets its own row.  It reports whether
// anything was written.
func (l *lifecycle) recordPaymentTx(ctx context.Context, tx *sql.Tx, b *model.Booking, status model.PaymentStatus, patch paymentPatch) (bool, error) {
    now := l.now()
    fresh := func() (bool, error) {
        p := &model.Payment{
            BookingID:      b.ID,
            Amount:         b.TotalAmount,
            TransactionID:  patch.TransactionID,
            GatewayOrderID: patch.GatewayOrderID,
            Channel:        patch.Channel,
            Status:         status,
            CreatedAt:      now,
            UpdatedAt:      now,
        }
        if status == model.PaymentSuccess {
            p.PaidAt = &now
        }
        if err := l.payments.CreateTx(ctx, tx, p); err != nil {
            return false, fmt.Errorf("create payment: %w", err)
        }
        return true, nil
    }

    latest, err := l.payments.Latest(ctx, tx, b.ID)
    if errors.Is(err, repository.ErrNotFound) {
        return fresh()
    }
    if err != nil {
        return false, fmt.Errorf("load payment: %w", err)
    }
    if latest.Status == status {
        return false, nil
    }
    switch latest.Status {
    case model.PaymentSuccess:
        if status != model.PaymentRefunded {
            return false, nil
        }
    case model.PaymentFailed, model.PaymentExpired, model.PaymentDeny:
        if patch.TransactionID != nil && latest.TransactionID != nil && *patch.TransactionID != *latest.TransactionID {
            return fresh()
        }
    case model.PaymentPending, model.PaymentChallenge, model.PaymentRefunded:
    }

    latest.Status = status
    latest.Amount = b.TotalAmount
    latest.UpdatedAt = now
    if patch.Channel != "" {
        latest.Channel = patch.Channel
    }
    if patch.TransactionID != nil {
        latest.TransactionID = patch.TransactionID
    }
    if patch.GatewayOrderID != nil {
        latest.GatewayOrderID = patch.GatewayOrderID
    }
    if status == model.PaymentSuccess && latest.PaidAt == nil {
        latest.PaidAt = &now
    }
    if err := l.payments.UpdateTx(ctx, tx, latest); err != nil {
        return false, fmt.Errorf("update payment: %w", err)
    }
    return true, nil
}

// markPaidTx settles an unpaid booking: the current payment becomes
// success, the booking moves to target and tickets are issued.
func (l *lifecycle) markPaidTx(ctx context.Context, tx *sql.Tx, b *model.Booking, target model.BookingStatus, patch paymentPatch) ([]model.Ticket, error) {
    if _, err := l.recordPaymentTx(ctx, tx, b, model.PaymentSuccess, patch); err != nil {
        return nil, err
    }
    if err := l.transitionTx(ctx, tx, b, target); err != nil {
        return nil, err
    }
    issued, err := l.issuer.IssueTx(ctx, tx, b)
    if err != nil {
        return nil, fmt.Errorf("issue tickets: %w", err)
    }
    return issued, nil
}

// failLatestPendingTx moves the current payment from pending to status.
func (l *lifecycle) failLatestPendingTx(ctx context.Context, tx *sql.Tx, bookingID uint64, status model.PaymentStatus) error {
    latest, err := l.payments.Latest(ctx, tx, bookingID)
    if errors.Is(err, repository.ErrNotFound) {
        return nil
    }
    if err != nil {
        return fmt.Errorf("load payment: %w", err)
    }
    if _, err := l.payments.TransitionTx(ctx, tx, latest.ID, model.PaymentPending, status, l.now()); err != nil {
        return fmt.Errorf("update payment: %w", err)
    }
    return nil
}

// cancelTx cancels b with its cascade: the current payment fails if it was
// still pending and every valid ticket is cancelled.  It returns how many
// tickets were cancelled.
func (l *lifecycle) cancelTx(ctx context.Context, tx *sql.Tx, b *model.Booking) (int64, error) {
    if err := l.transitionTx(ctx, tx, b, model.BookingCancelled); err != nil {
        return 0, err
    }
    if err := l.failLatestPendingTx(ctx, tx, b.ID, model.PaymentFailed); err != nil {
        return 0, err
    }
    n, err := l.tickets.CancelByBookingTx(ctx, tx, b.ID, l.now())
    if err != nil {
        return 0, fmt.Errorf("cancel tickets: %w", err)
    }
    return n, nil
}

// event is a message queued during a transaction and published after it
// commits.
type event struct {
    queue   string
    payload any
}

func confirmedEvent(b *model.Booking, channel string) event {
    at := b.UpdatedAt
    if b.PaidAt != nil {
        at = *b.PaidAt
    }
    return event{queue.QueueBookingConfirmed, queue.BookingConfirmedEvent{
        BookingID:     b.ID,
        OrderNumber:   b.OrderNumber,
        UserID:        b.UserID,
        DestinationID: b.DestinationID,
        VisitDate:     b.VisitDate.Format(time.DateOnly),
        TotalVisitors: b.TotalVisitors,
        TotalAmount:   b.TotalAmount,
        Status:        string(b.Status),
        Channel:       channel,
        ConfirmedAt:   at,
    }}
}

func issuedEvent(b *model.Booking, tickets []model.Ticket, at time.Time) event {
    codes := make([]string, len(tickets))
    for i, t := range tickets {
        codes[i] = t.TicketCode
    }
    return event{queue.QueueTicketsIssued, queue.TicketsIssuedEvent{
        BookingID:   b.ID,
        OrderNumber: b.OrderNumber,
        LeaderName:  b.LeaderName,
        LeaderEmail: b.LeaderEmail,
        VisitDate:   b.VisitDate.Format(time.DateOnly),
        TicketCodes: codes,
        IssuedAt:    at,
    }}
}

func cancelledEvent(b *model.Booking, ticketsCancelled int64) event {
    at := b.UpdatedAt
    if b.CancelledAt != nil {
        at = *b.CancelledAt
    }
    return event{queue.QueueBookingCancelled, queue.BookingCancelledEvent{
        BookingID:        b.ID,
        OrderNumber:      b.OrderNumber,
        LeaderName:       b.LeaderName,
        LeaderEmail:      b.LeaderEmail,
        TicketsCancelled: ticketsCancelled,
        CancelledAt:      at,
    }}
}

// publish sends events after commit.  Failures are logged and swallowed;
// the committed state is the source of truth.
func (l *lifecycle) publish(ctx context.Context, evs []event) {
    if len(evs) == 0 {
        return
    }
    ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
    defer cancel()
    for _, ev := range evs {
        if err := l.publisher.Publish(ctx, ev.queue, ev.payload); err != nil {
            l.log.WithContext(ctx).WithError(err).WithField("queue", ev.queue).Warn("event publish failed")
        }
    }
}

func strPtr(s string) *string {
    if s == "" {
        return nil
    }
    return &s
}
