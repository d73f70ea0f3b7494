package service

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/iliyamo/ecotour-booking/internal/model"
    "github.com/iliyamo/ecotour-booking/internal/repository"
)

// ScanStatus is the machine-readable outcome shown on the gate device.
type ScanStatus string

const (
    ScanValid           ScanStatus = "valid"
    ScanAlreadyUsed     ScanStatus = "already_used"
    ScanWrongDate       ScanStatus = "wrong_date"
    ScanCancelled       ScanStatus = "cancelled"
    ScanExpired         ScanStatus = "expired"
    ScanPaymentRequired ScanStatus = "payment_required"
    ScanPaidNoTickets   ScanStatus = "paid_no_tickets"
    ScanNotFound        ScanStatus = "not_found"
)

// ScanResult is what the operator sees after scanning a code.  Ticket and
// Booking are set whenever the code resolved to them.
type ScanResult struct {
    Status    ScanStatus     `json:"status"`
    Title     string         `json:"title"`
    Message   string         `json:"message"`
    Ticket    *model.Ticket  `json:"ticket,omitempty"`
    Booking   *model.Booking `json:"booking,omitempty"`
    UsedAt    *time.Time     `json:"used_at,omitempty"`
    UsedBy    *string        `json:"used_by,omitempty"`
    ValidDate string         `json:"valid_date,omitempty"`
}

// CashResult is the outcome of collecting cash at the gate.
type CashResult struct {
    Success     bool           `json:"success"`
    AlreadyPaid bool           `json:"already_paid"`
    Message     string         `json:"message"`
    Booking     *model.Booking `json:"booking,omitempty"`
    Tickets     []model.Ticket `json:"tickets,omitempty"`
}

// ValidationResult is the outcome of a redemption attempt.
type ValidationResult struct {
    Success     bool          `json:"success"`
    Status      ScanStatus    `json:"status"`
    Title       string        `json:"title"`
    Message     string        `json:"message"`
    Ticket      *model.Ticket `json:"ticket,omitempty"`
    BookingUsed bool          `json:"booking_used"`
}

// ScanService drives the gate: look up a code, collect cash, redeem.
type ScanService struct {
    *lifecycle
}

func NewScanService(d Deps) *ScanService { return &ScanService{lifecycle: newLifecycle(d)} }

// classify computes the outcome for a ticket on the given site date.  With
// ignoreDate the ticket only has to be valid (admin manual validation).
func classify(t *model.Ticket, today string, ignoreDate bool) ScanResult {
    r := ScanResult{Ticket: t, ValidDate: t.ValidDate.Format(time.DateOnly)}
    switch t.Status {
    case model.TicketValid:
        if !ignoreDate && r.ValidDate != today {
            r.Status = ScanWrongDate
            r.Title = "Wrong date"
            r.Message = fmt.Sprintf("This ticket is valid on %s only.", r.ValidDate)
            return r
        }
        r.Status = ScanValid
        r.Title = "Ticket valid"
        r.Message = "Ticket can be redeemed."
    case model.TicketUsed:
        r.Status = ScanAlreadyUsed
        r.Title = "Already used"
        r.UsedAt = t.UsedAt
        r.UsedBy = t.ValidatorName
        r.Message = "This ticket has already been used."
        if t.UsedAt != nil {
            r.Message = fmt.Sprintf("This ticket was used at %s.", t.UsedAt.Format(time.RFC3339))
            if t.ValidatorName != nil {
                r.Message = fmt.Sprintf("This ticket was used at %s by %s.", t.UsedAt.Format(time.RFC3339), *t.ValidatorName)
            }
        }
    case model.TicketCancelled:
        r.Status = ScanCancelled
        r.Title = "Ticket cancelled"
        r.Message = "This ticket has been cancelled."
    case model.TicketExpired:
        r.Status = ScanExpired
        r.Title = "Ticket expired"
        r.Message = "This ticket has expired."
    }
    return r
}

// NormalizeCode trims and upper-cases a scanned code.
func NormalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

// ScanCode resolves code as a ticket code first and as an order number
// second, and classifies the result.  Every miss or rejection is a result,
// not an error.
func (s *ScanService) ScanCode(ctx context.Context, p model.Principal, code string) (ScanResult, error) {
    code = NormalizeCode(code)
    if code == "" {
        return ScanResult{}, invalidInput("code is required")
    }
    today := s.today()

    t, err := s.tickets.GetByCode(ctx, nil, code)
    switch {
    case err == nil:
        b, err := s.bookings.GetByID(ctx, nil, t.BookingID)
        if err != nil && !errors.Is(err, repository.ErrNotFound) {
            return ScanResult{}, fmt.Errorf("load booking: %w", err)
        }
        r := classify(t, today, false)
        r.Booking = b
        s.logScan(ctx, p, code, r)
        return r, nil
    case !errors.Is(err, repository.ErrNotFound):
        return ScanResult{}, fmt.Errorf("load ticket: %w", err)
    }

    b, err := s.bookings.GetByOrderNumber(ctx, nil, code)
    if errors.Is(err, repository.ErrNotFound) {
        r := ScanResult{Status: ScanNotFound, Title: "Not found", Message: "No ticket or booking matches this code."}
        s.logScan(ctx, p, code, r)
        return r, nil
    }
    if err != nil {
        return ScanResult{}, fmt.Errorf("load booking: %w", err)
    }
    r, err := s.classifyBooking(ctx, b, today)
    if err != nil {
        return ScanResult{}, err
    }
    s.logScan(ctx, p, code, r)
    return r, nil
}

// classifyBooking handles an order number scan.  A booking with tickets is
// classified through its first still-valid ticket, or its first ticket
// when none is valid, so a group can be admitted by scanning the order
// number repeatedly.
func (s *ScanService) classifyBooking(ctx context.Context, b *model.Booking, today string) (ScanResult, error) {
    if b.Status.AwaitingPayment() {
        return ScanResult{
            Status:  ScanPaymentRequired,
            Title:   "Payment required",
            Message: fmt.Sprintf("Collect %d before admitting this booking.", b.TotalAmount),
            Booking: b,
        }, nil
    }
    tickets, err := s.tickets.ListByBooking(ctx, nil, b.ID)
    if err != nil {
        return ScanResult{}, fmt.Errorf("load tickets: %w", err)
    }
    if len(tickets) > 0 {
        pick := &tickets[0]
        for i := range tickets {
            if tickets[i].Status == model.TicketValid {
                pick = &tickets[i]
                break
            }
        }
        r := classify(pick, today, false)
        r.Booking = b
        return r, nil
    }
    switch b.Status {
    case model.BookingPaid, model.BookingConfirmed, model.BookingUsed:
        return ScanResult{
            Status:  ScanPaidNoTickets,
            Title:   "Paid, tickets pending",
            Message: "Booking is paid but tickets have not been issued yet.",
            Booking: b,
        }, nil
    case model.BookingCancelled, model.BookingRefunded:
        return ScanResult{Status: ScanCancelled, Title: "Booking cancelled", Message: "This booking has been cancelled.", Booking: b}, nil
    case model.BookingExpired:
        return ScanResult{Status: ScanExpired, Title: "Booking expired", Message: "This booking expired before payment.", Booking: b}, nil
    case model.BookingPending, model.BookingAwaitingCash:
    }
    return ScanResult{Status: ScanNotFound, Title: "Not found", Message: "No ticket or booking matches this code.", Booking: b}, nil
}

func (s *ScanService) logScan(ctx context.Context, p model.Principal, code string, r ScanResult) {
    s.log.WithContext(ctx).LogTicketEvent(code, "scan", map[string]interface{}{
        "status":   string(r.Status),
        "operator": p.UserID,
    })
}

// ProcessCashPayment settles an unpaid booking with cash and issues its
// tickets so the same scan session can proceed to redemption.  The booking
// row is locked and re-checked first: if a webhook already paid it, the
// call succeeds without touching anything.
func (s *ScanService) ProcessCashPayment(ctx context.Context, p model.Principal, bookingID uint64) (CashResult, error) {
    if !p.IsStaff() {
        return CashResult{}, ErrForbidden
    }
    var (
        res CashResult
        evs []event
    )
    err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
        b, err := s.lockBooking(ctx, tx, bookingID)
        if errors.Is(err, ErrBookingNotFound) {
            res = CashResult{Message: "Booking not found."}
            return nil
        }
        if err != nil {
            return err
        }
        res.Booking = b
        switch b.Status {
        case model.BookingPending, model.BookingAwaitingCash:
            issued, err := s.markPaidTx(ctx, tx, b, model.BookingPaid, paymentPatch{Channel: model.ChannelCash})
            if err != nil {
                return err
            }
            res.Success = true
            res.Message = "Cash payment recorded."
            res.Tickets = issued
            evs = append(evs, confirmedEvent(b, model.ChannelCash))
            if len(issued) > 0 {
                evs = append(evs, issuedEvent(b, issued, s.now()))
            }
        case model.BookingPaid, model.BookingConfirmed, model.BookingUsed:
            res.Success = true
            res.AlreadyPaid = true
            res.Message = "Booking is already paid."
        case model.BookingCancelled, model.BookingExpired, model.BookingRefunded:
            res.Message = fmt.Sprintf("Booking is %s and cannot be paid.", b.Status)
        }
        return nil
    })
    if err != nil {
        return CashResult{}, err
    }
    if res.Booking != nil && res.Success && !res.AlreadyPaid {
        s.log.WithContext(ctx).LogPaymentEvent(res.Booking.OrderNumber, "cash_collected", res.Booking.TotalAmount, model.ChannelCash)
    }
    s.publish(ctx, evs)
    return res, nil
}

// ValidateEntry redeems a ticket at the gate.  The parent booking and then
// the ticket are locked and the ticket is re-classified, then marked used
// with a compare-and-set so that concurrent scans of one ticket produce
// exactly one success.  When no unused tickets remain the booking becomes
// used.
func (s *ScanService) ValidateEntry(ctx context.Context, p model.Principal, ticketID uint64) (ValidationResult, error) {
    return s.redeem(ctx, p, ticketID, false)
}

// ManualValidate is the admin override that redeems a valid ticket
// regardless of its date.
func (s *ScanService) ManualValidate(ctx context.Context, p model.Principal, ticketID uint64) (ValidationResult, error) {
    if p.Role != model.RoleAdmin {
        return ValidationResult{}, ErrForbidden
    }
    return s.redeem(ctx, p, ticketID, true)
}

func resultFromScan(r ScanResult) ValidationResult {
    return ValidationResult{Status: r.Status, Title: r.Title, Message: r.Message, Ticket: r.Ticket}
}

func (s *ScanService) redeem(ctx context.Context, p model.Principal, ticketID uint64, ignoreDate bool) (ValidationResult, error) {
    if !p.IsStaff() {
        return ValidationResult{}, ErrForbidden
    }
    notFound := ValidationResult{Status: ScanNotFound, Title: "Not found", Message: "Ticket not found."}
    ref, err := s.tickets.GetByID(ctx, nil, ticketID)
    if errors.Is(err, repository.ErrNotFound) {
        return notFound, nil
    }
    if err != nil {
        return ValidationResult{}, fmt.Errorf("load ticket: %w", err)
    }

    var res ValidationResult
    err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
        // Lock order is booking then tickets, the same as settlement and
        // cancellation.  Holding the booking also serializes the gates
        // redeeming its last tickets.
        b, err := s.lockBooking(ctx, tx, ref.BookingID)
        if errors.Is(err, ErrBookingNotFound) {
            res = notFound
            return nil
        }
        if err != nil {
            return err
        }
        t, err := s.tickets.GetByIDForUpdateTx(ctx, tx, ticketID)
        if errors.Is(err, repository.ErrNotFound) {
            res = notFound
            return nil
        }
        if err != nil {
            return fmt.Errorf("lock ticket: %w", err)
        }
        if r := classify(t, s.today(), ignoreDate); r.Status != ScanValid {
            res = resultFromScan(r)
            return nil
        }
        if !t.Status.CanTransitionTo(model.TicketUsed) {
            return fmt.Errorf("%w: ticket %s -> %s", ErrInvalidTransition, t.Status, model.TicketUsed)
        }

        now := s.now()
        var name *string
        if p.Name != "" {
            name = &p.Name
        }
        ok, err := s.tickets.MarkUsedTx(ctx, tx, t.ID, now, p.UserRef(), name)
        if err != nil {
            return fmt.Errorf("mark ticket used: %w", err)
        }
        if !ok {
            // Lost the race: report what the winner left behind.
            cur, err := s.tickets.GetByIDForUpdateTx(ctx, tx, ticketID)
            if err != nil {
                return fmt.Errorf("reload ticket: %w", err)
            }
            res = resultFromScan(classify(cur, s.today(), ignoreDate))
            return nil
        }
        t.Status = model.TicketUsed
        t.UsedAt = &now
        t.ValidatedBy = p.UserRef()
        t.ValidatorName = name
        res = ValidationResult{Success: true, Status: ScanValid, Title: "Entry granted", Message: "Ticket redeemed.", Ticket: t}

        outstanding, err := s.tickets.CountOutstandingTx(ctx, tx, t.BookingID)
        if err != nil {
            return fmt.Errorf("count outstanding tickets: %w", err)
        }
        if outstanding > 0 || !b.Status.CanTransitionTo(model.BookingUsed) {
            return nil
        }
        if err := s.transitionTx(ctx, tx, b, model.BookingUsed); err != nil {
            return err
        }
        res.BookingUsed = true
        return nil
    })
    if err != nil {
        return ValidationResult{}, err
    }
    if res.Ticket != nil {
        s.log.WithContext(ctx).LogTicketEvent(res.Ticket.TicketCode, "validate", map[string]interface{}{
            "status":       string(res.Status),
            "success":      res.Success,
            "manual":       ignoreDate,
            "operator":     p.UserID,
            "booking_used": res.BookingUsed,
        })
    }
    return res, nil
}
