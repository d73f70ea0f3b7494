package service

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/ecotour-booking/internal/model"
    "github.com/iliyamo/ecotour-booking/internal/repository"
    "github.com/iliyamo/ecotour-booking/internal/utils"
)

// maxOrderNumberAttempts bounds the retries after an order number collides.
const maxOrderNumberAttempts = 5

// expirySweepBatch caps how many bookings one sweep pass expires.
const expirySweepBatch = 200

// BookingService owns the booking lifecycle from checkout to cancellation.
type BookingService struct {
    *lifecycle
    coupons        *CouponService
    pricer         Pricer
    orderPrefix    string
    pendingTTL     time.Duration
    newOrderNumber func(prefix string, now time.Time) (string, error)
}

func NewBookingService(d Deps) *BookingService {
    return &BookingService{
        lifecycle:      newLifecycle(d),
        coupons:        d.Coupons,
        pricer:         d.Pricer,
        orderPrefix:    d.OrderPrefix,
        pendingTTL:     d.PendingTTL,
        newOrderNumber: utils.NewOrderNumber,
    }
}

// CreateBookingInput is a checkout or walk-in request.
type CreateBookingInput struct {
    DestinationID  uint64
    VisitDate      time.Time
    Visitors       model.VisitorCounts
    Vehicles       model.VehicleCounts
    LeaderName     string
    LeaderEmail    string
    LeaderPhone    string
    CouponCode     string
    InitialStatus  model.BookingStatus // empty means pending
    PaymentChannel string
}

// BookingDetail is a booking with everything hanging off it.
type BookingDetail struct {
    Booking model.Booking       `json:"booking"`
    Items   []model.BookingItem `json:"items"`
    Tickets []model.Ticket      `json:"tickets"`
    Payment *model.Payment      `json:"payment,omitempty"`
}

// initialStatus decides the starting state.  Only staff may enter a
// walk-in booking that starts beyond pending.
func initialStatus(p model.Principal, requested model.BookingStatus) (model.BookingStatus, error) {
    if requested == "" {
        return model.BookingPending, nil
    }
    switch requested {
    case model.BookingPending:
        return requested, nil
    case model.BookingAwaitingCash, model.BookingPaid, model.BookingConfirmed:
        if p.Role != model.RoleAdmin {
            return "", ErrForbidden
        }
        return requested, nil
    case model.BookingUsed, model.BookingCancelled, model.BookingExpired, model.BookingRefunded:
    }
    return "", invalidInput("initial status %q not allowed", requested)
}

func validateCounts(v model.VisitorCounts, veh model.VehicleCounts) error {
    for _, n := range []int{v.Adults, v.Children, v.Seniors, veh.Motorcycles, veh.Cars, veh.Buses} {
        if n < 0 {
            return invalidInput("counts must not be negative")
        }
    }
    if v.Total() < 1 {
        return invalidInput("at least one visitor is required")
    }
    return nil
}

// CreateBooking prices the request, validates the coupon and persists the
// booking with its items, its first payment row and the coupon redemption
// in one transaction.  Walk-in bookings entered as paid or confirmed also
// get their tickets in the same transaction.
func (s *BookingService) CreateBooking(ctx context.Context, p model.Principal, in CreateBookingInput) (*BookingDetail, error) {
    status, err := initialStatus(p, in.InitialStatus)
    if err != nil {
        return nil, err
    }
    if in.DestinationID == 0 {
        return nil, invalidInput("destination is required")
    }
    if err := validateCounts(in.Visitors, in.Vehicles); err != nil {
        return nil, err
    }
    y, m, d := in.VisitDate.Date()
    visitDate := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
    if visitDate.Format(time.DateOnly) < s.today() {
        return nil, invalidInput("visit date %s is in the past", visitDate.Format(time.DateOnly))
    }

    quote, err := s.pricer.Quote(ctx, in.DestinationID, in.Visitors, in.Vehicles)
    if err != nil {
        return nil, fmt.Errorf("quote: %w", err)
    }

    // Walk-ins entered by staff are not attributed to the staff account.
    var owner *uint64
    if !p.IsStaff() {
        owner = p.UserRef()
    }
    channel := in.PaymentChannel
    if channel == "" && status != model.BookingPending {
        channel = model.ChannelCash
    }

    var (
        detail BookingDetail
        evs    []event
    )
    err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
        var (
            coupon   *model.Coupon
            discount int64
        )
        if in.CouponCode != "" {
            res, err := s.coupons.Validate(ctx, tx, in.CouponCode, owner, quote.Subtotal, in.DestinationID)
            if err != nil {
                return err
            }
            if !res.Valid {
                return &CouponRejectedError{Result: res}
            }
            coupon, discount = res.Coupon, res.Discount
        }

        now := s.now()
        total := quote.Subtotal + quote.ServiceFee - discount
        if total < 0 {
            total = 0
        }
        b := &model.Booking{
            UserID:        owner,
            DestinationID: in.DestinationID,
            VisitDate:     visitDate,
            Visitors:      in.Visitors,
            TotalVisitors: in.Visitors.Total(),
            Vehicles:      in.Vehicles,
            Subtotal:      quote.Subtotal,
            ServiceFee:    quote.ServiceFee,
            Discount:      discount,
            TotalAmount:   total,
            LeaderName:    in.LeaderName,
            LeaderEmail:   in.LeaderEmail,
            LeaderPhone:   in.LeaderPhone,
            Status:        status,
            CreatedAt:     now,
            UpdatedAt:     now,
        }
        if coupon != nil {
            b.CouponID = &coupon.ID
        }
        if status.IsPaid() {
            b.PaidAt = &now
        }
        if err := s.insertWithOrderNumber(ctx, tx, b); err != nil {
            return err
        }

        items := make([]model.BookingItem, len(quote.Items))
        for i, it := range quote.Items {
            it.BookingID = b.ID
            items[i] = it
        }
        if err := s.bookings.CreateItemsTx(ctx, tx, items); err != nil {
            return fmt.Errorf("insert booking items: %w", err)
        }

        pay := &model.Payment{
            BookingID: b.ID,
            Amount:    total,
            Channel:   channel,
            Status:    model.PaymentPending,
            CreatedAt: now,
            UpdatedAt: now,
        }
        if status.IsPaid() {
            pay.Status = model.PaymentSuccess
            pay.PaidAt = &now
        }
        if err := s.payments.CreateTx(ctx, tx, pay); err != nil {
            return fmt.Errorf("insert payment: %w", err)
        }

        if coupon != nil {
            if err := s.coupons.ApplyTx(ctx, tx, coupon, owner, b.ID, discount); err != nil {
                return err
            }
        }

        var issued []model.Ticket
        if status.IsPaid() {
            var err error
            if issued, err = s.issuer.IssueTx(ctx, tx, b); err != nil {
                return fmt.Errorf("issue tickets: %w", err)
            }
            evs = append(evs, confirmedEvent(b, channel))
            if len(issued) > 0 {
                evs = append(evs, issuedEvent(b, issued, now))
            }
        }
        detail = BookingDetail{Booking: *b, Items: items, Tickets: issued, Payment: pay}
        return nil
    })
    if err != nil {
        return nil, err
    }

    s.log.WithContext(ctx).LogBookingEvent(detail.Booking.OrderNumber, "created", map[string]interface{}{
        "booking_id":     detail.Booking.ID,
        "status":         string(detail.Booking.Status),
        "total_amount":   detail.Booking.TotalAmount,
        "total_visitors": detail.Booking.TotalVisitors,
        "discount":       detail.Booking.Discount,
    })
    s.publish(ctx, evs)
    return &detail, nil
}

// PreviewCoupon prices a prospective checkout and reports the coupon
// verdict against its subtotal without redeeming anything.
func (s *BookingService) PreviewCoupon(ctx context.Context, p model.Principal, code string, destinationID uint64, v model.VisitorCounts, veh model.VehicleCounts) (CouponResult, error) {
    if code == "" || destinationID == 0 {
        return CouponResult{}, invalidInput("code and destination are required")
    }
    if err := validateCounts(v, veh); err != nil {
        return CouponResult{}, err
    }
    quote, err := s.pricer.Quote(ctx, destinationID, v, veh)
    if err != nil {
        return CouponResult{}, fmt.Errorf("quote: %w", err)
    }
    var owner *uint64
    if !p.IsStaff() {
        owner = p.UserRef()
    }
    return s.coupons.Validate(ctx, nil, code, owner, quote.Subtotal, destinationID)
}

// insertWithOrderNumber inserts b under a freshly generated order number,
// retrying when the number is already taken.
func (s *BookingService) insertWithOrderNumber(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
    var lastErr error
    for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
        on, err := s.newOrderNumber(s.orderPrefix, s.now().In(s.loc))
        if err != nil {
            return fmt.Errorf("generate order number: %w", err)
        }
        b.OrderNumber = on
        err = s.bookings.CreateTx(ctx, tx, b)
        if err == nil {
            return nil
        }
        if !repository.IsDuplicateKey(err) {
            return fmt.Errorf("insert booking: %w", err)
        }
        lastErr = err
    }
    return fmt.Errorf("insert booking: %d order number collisions: %w", maxOrderNumberAttempts, lastErr)
}

// canView allows staff, the owning visitor, and anyone holding the order
// number of a guest booking.
func canView(p model.Principal, b *model.Booking) bool {
    if p.IsStaff() || b.UserID == nil {
        return true
    }
    return !p.Anonymous() && *b.UserID == p.UserID
}

// GetBooking returns a booking by order number with items, tickets and
// its current payment.
func (s *BookingService) GetBooking(ctx context.Context, p model.Principal, orderNumber string) (*BookingDetail, error) {
    b, err := s.bookings.GetByOrderNumber(ctx, nil, orderNumber)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, ErrBookingNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("load booking: %w", err)
    }
    if !canView(p, b) {
        return nil, ErrForbidden
    }
    items, err := s.bookings.ListItems(ctx, nil, b.ID)
    if err != nil {
        return nil, fmt.Errorf("load items: %w", err)
    }
    tickets, err := s.tickets.ListByBooking(ctx, nil, b.ID)
    if err != nil {
        return nil, fmt.Errorf("load tickets: %w", err)
    }
    pay, err := s.payments.Latest(ctx, nil, b.ID)
    if err != nil && !errors.Is(err, repository.ErrNotFound) {
        return nil, fmt.Errorf("load payment: %w", err)
    }
    return &BookingDetail{Booking: *b, Items: items, Tickets: tickets, Payment: pay}, nil
}

// PaymentNotification is a gateway callback, already authenticated by
// the transport layer.
type PaymentNotification struct {
    OrderNumber       string
    TransactionID     string
    TransactionStatus string
    FraudStatus       string
    Channel           string
    GrossAmount       int64
}

// ConfirmPayment applies a gateway notification to the booking it names.
// Success settles an unpaid booking and issues its tickets; for a booking
// that is already paid it only makes sure tickets exist.  An expiry
// notification expires an unpaid booking, a refund refunds a paid one, and
// failures leave the booking pending so the visitor can retry.
func (s *BookingService) ConfirmPayment(ctx context.Context, n PaymentNotification) (*model.Booking, error) {
    status, err := model.MapGatewayStatus(n.TransactionStatus, n.FraudStatus)
    if err != nil {
        return nil, invalidInput("%v", err)
    }
    ref, err := s.bookings.GetByOrderNumber(ctx, nil, n.OrderNumber)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, ErrBookingNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("load booking: %w", err)
    }

    var (
        b   *model.Booking
        evs []event
    )
    patch := paymentPatch{
        Channel:        n.Channel,
        TransactionID:  strPtr(n.TransactionID),
        GatewayOrderID: strPtr(n.OrderNumber),
    }
    err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
        var err error
        if b, err = s.lockBooking(ctx, tx, ref.ID); err != nil {
            return err
        }
        if n.GrossAmount != b.TotalAmount {
            return invalidInput("gross amount %d does not match booking total %d", n.GrossAmount, b.TotalAmount)
        }

        switch status {
        case model.PaymentSuccess:
            switch {
            case b.Status.AwaitingPayment():
                issued, err := s.markPaidTx(ctx, tx, b, model.BookingPaid, patch)
                if err != nil {
                    return err
                }
                evs = append(evs, confirmedEvent(b, n.Channel))
                if len(issued) > 0 {
                    evs = append(evs, issuedEvent(b, issued, s.now()))
                }
            case b.Status.IsPaid():
                if _, err := s.recordPaymentTx(ctx, tx, b, status, patch); err != nil {
                    return err
                }
                issued, err := s.issuer.IssueTx(ctx, tx, b)
                if err != nil {
                    return fmt.Errorf("issue tickets: %w", err)
                }
                if len(issued) > 0 {
                    evs = append(evs, issuedEvent(b, issued, s.now()))
                }
            default:
                // Money arrived for a booking that can no longer be used.
                // Keep the record so it can be refunded.
                if _, err := s.recordPaymentTx(ctx, tx, b, status, patch); err != nil {
                    return err
                }
                s.log.WithContext(ctx).WithField("order_number", b.OrderNumber).
                    WithField("status", string(b.Status)).Warn("payment success for closed booking")
            }
        case model.PaymentPending, model.PaymentChallenge, model.PaymentFailed, model.PaymentDeny:
            if b.Status.AwaitingPayment() {
                if _, err := s.recordPaymentTx(ctx, tx, b, status, patch); err != nil {
                    return err
                }
            }
        case model.PaymentExpired:
            if b.Status.AwaitingPayment() {
                if _, err := s.recordPaymentTx(ctx, tx, b, status, patch); err != nil {
                    return err
                }
                if err := s.transitionTx(ctx, tx, b, model.BookingExpired); err != nil {
                    return err
                }
            }
        case model.PaymentRefunded:
            if b.Status.IsPaid() {
                if _, err := s.recordPaymentTx(ctx, tx, b, status, patch); err != nil {
                    return err
                }
                if err := s.transitionTx(ctx, tx, b, model.BookingRefunded); err != nil {
                    return err
                }
                if _, err := s.tickets.CancelByBookingTx(ctx, tx, b.ID, s.now()); err != nil {
                    return fmt.Errorf("cancel tickets: %w", err)
                }
            }
        }
        return nil
    })
    if err != nil {
        return nil, err
    }

    s.log.WithContext(ctx).LogPaymentEvent(b.OrderNumber, string(status), b.TotalAmount, n.Channel)
    s.publish(ctx, evs)
    return b, nil
}

// CancelBooking cancels a booking.  Visitors may cancel their own unpaid
// bookings; staff may cancel any booking that is not yet closed.
func (s *BookingService) CancelBooking(ctx context.Context, p model.Principal, id uint64) (*model.Booking, error) {
    if p.Anonymous() && !p.IsStaff() {
        return nil, ErrForbidden
    }
    var (
        b *model.Booking
        n int64
    )
    err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
        var err error
        if b, err = s.lockBooking(ctx, tx, id); err != nil {
            return err
        }
        if !p.IsStaff() {
            if b.UserID == nil || *b.UserID != p.UserID {
                return ErrForbidden
            }
            if !b.Status.AwaitingPayment() {
                return fmt.Errorf("%w: paid bookings are cancelled by staff", ErrInvalidTransition)
            }
        }
        n, err = s.cancelTx(ctx, tx, b)
        return err
    })
    if err != nil {
        return nil, err
    }
    s.log.WithContext(ctx).LogBookingEvent(b.OrderNumber, "cancelled", map[string]interface{}{
        "booking_id":        b.ID,
        "tickets_cancelled": n,
        "by":                p.UserID,
    })
    s.publish(ctx, []event{cancelledEvent(b, n)})
    return b, nil
}

// UpdateStatus is the admin manual override.  It follows the booking state
// machine; used is never accepted because only ticket validation may set
// it.  Moving an unpaid booking to paid or confirmed records a manual
// payment and issues tickets.
func (s *BookingService) UpdateStatus(ctx context.Context, p model.Principal, id uint64, target model.BookingStatus) (*model.Booking, error) {
    if p.Role != model.RoleAdmin {
        return nil, ErrForbidden
    }
    var (
        b   *model.Booking
        evs []event
    )
    err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
        var err error
        if b, err = s.lockBooking(ctx, tx, id); err != nil {
            return err
        }
        switch target {
        case model.BookingUsed:
            return fmt.Errorf("%w: used is set by ticket validation only", ErrInvalidTransition)
        case model.BookingCancelled:
            n, err := s.cancelTx(ctx, tx, b)
            if err != nil {
                return err
            }
            evs = append(evs, cancelledEvent(b, n))
        case model.BookingPaid, model.BookingConfirmed:
            var issued []model.Ticket
            if b.Status.AwaitingPayment() {
                issued, err = s.markPaidTx(ctx, tx, b, target, paymentPatch{Channel: "manual"})
                if err != nil {
                    return err
                }
                evs = append(evs, confirmedEvent(b, "manual"))
            } else {
                if err := s.transitionTx(ctx, tx, b, target); err != nil {
                    return err
                }
                if issued, err = s.issuer.IssueTx(ctx, tx, b); err != nil {
                    return fmt.Errorf("issue tickets: %w", err)
                }
            }
            if len(issued) > 0 {
                evs = append(evs, issuedEvent(b, issued, s.now()))
            }
        case model.BookingExpired:
            if err := s.transitionTx(ctx, tx, b, target); err != nil {
                return err
            }
            return s.failLatestPendingTx(ctx, tx, b.ID, model.PaymentExpired)
        case model.BookingRefunded:
            if err := s.transitionTx(ctx, tx, b, target); err != nil {
                return err
            }
            if latest, err := s.payments.Latest(ctx, tx, b.ID); err == nil {
                if _, err := s.payments.TransitionTx(ctx, tx, latest.ID, model.PaymentSuccess, model.PaymentRefunded, s.now()); err != nil {
                    return fmt.Errorf("refund payment: %w", err)
                }
            } else if !errors.Is(err, repository.ErrNotFound) {
                return fmt.Errorf("load payment: %w", err)
            }
            if _, err := s.tickets.CancelByBookingTx(ctx, tx, b.ID, s.now()); err != nil {
                return fmt.Errorf("cancel tickets: %w", err)
            }
        case model.BookingPending, model.BookingAwaitingCash:
            return s.transitionTx(ctx, tx, b, target)
        default:
            return invalidInput("unknown status %q", target)
        }
        return nil
    })
    if err != nil {
        return nil, err
    }
    s.log.WithContext(ctx).LogBookingEvent(b.OrderNumber, "status_updated", map[string]interface{}{
        "booking_id": b.ID,
        "status":     string(b.Status),
        "by":         p.UserID,
    })
    s.publish(ctx, evs)
    return b, nil
}

// DeleteBooking hard-deletes a booking and everything referencing it in one
// transaction.
func (s *BookingService) DeleteBooking(ctx context.Context, p model.Principal, id uint64) error {
    if p.Role != model.RoleAdmin {
        return ErrForbidden
    }
    err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
        return s.bookings.DeleteCascadeTx(ctx, tx, id)
    })
    if errors.Is(err, repository.ErrNotFound) {
        return ErrBookingNotFound
    }
    if err != nil {
        return err
    }
    s.log.WithContext(ctx).WithFields(map[string]interface{}{"booking_id": id, "by": p.UserID}).Info("booking deleted")
    return nil
}

// ExpireStale expires unpaid bookings older than the pending TTL.  Each
// booking is handled in its own transaction and re-checked under lock, so
// a payment landing mid-sweep wins.  It returns how many were expired.
func (s *BookingService) ExpireStale(ctx context.Context) (int, error) {
    cutoff := s.now().Add(-s.pendingTTL)
    ids, err := s.bookings.ListStaleUnpaidIDs(ctx, cutoff, expirySweepBatch)
    if err != nil {
        return 0, fmt.Errorf("list stale bookings: %w", err)
    }
    expired := 0
    for _, id := range ids {
        var changed bool
        err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
            b, err := s.lockBooking(ctx, tx, id)
            if err != nil {
                return err
            }
            if !b.Status.AwaitingPayment() {
                return nil
            }
            if err := s.transitionTx(ctx, tx, b, model.BookingExpired); err != nil {
                return err
            }
            changed = true
            return s.failLatestPendingTx(ctx, tx, b.ID, model.PaymentExpired)
        })
        if err != nil {
            s.log.WithError(err).WithField("booking_id", id).Warn("expire booking failed")
            continue
        }
        if changed {
            expired++
        }
    }
    return expired, nil
}

// RunExpirySweep calls ExpireStale every interval until ctx is done.
func (s *BookingService) RunExpirySweep(ctx context.Context, interval time.Duration) {
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            n, err := s.ExpireStale(ctx)
            if err != nil {
                s.log.WithError(err).Error("expiry sweep failed")
                continue
            }
            if n > 0 {
                s.log.WithField("expired", n).Info("expiry sweep")
            }
        }
    }
}
