// Package service implements the booking core: coupon validation, pricing,
// booking lifecycle, ticket issuance and on-site ticket redemption.  Every
// operation receives the acting model.Principal explicitly and runs its
// multi-row writes inside one database transaction.
package service

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/ecotour-booking/internal/model"
)

// BookingStore is the persistence port for bookings.  It is satisfied by
// *repository.BookingRepo.  A nil tx runs outside any transaction.
type BookingStore interface {
    CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error
    CreateItemsTx(ctx context.Context, tx *sql.Tx, items []model.BookingItem) error
    GetByID(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
    GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
    GetByOrderNumber(ctx context.Context, tx *sql.Tx, orderNumber string) (*model.Booking, error)
    ListItems(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.BookingItem, error)
    UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.BookingStatus, now time.Time) error
    ListStaleUnpaidIDs(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error)
    DeleteCascadeTx(ctx context.Context, tx *sql.Tx, id uint64) error
}

// PaymentStore is the persistence port for payments (*repository.PaymentRepo).
type PaymentStore interface {
    CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error
    Latest(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Payment, error)
    UpdateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error
    TransitionTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.PaymentStatus, now time.Time) (bool, error)
}

// TicketStore is the persistence port for tickets (*repository.TicketRepo).
type TicketStore interface {
    CreateTx(ctx context.Context, tx *sql.Tx, t *model.Ticket) error
    GetByID(ctx context.Context, tx *sql.Tx, id uint64) (*model.Ticket, error)
    GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Ticket, error)
    GetByCode(ctx context.Context, tx *sql.Tx, code string) (*model.Ticket, error)
    ListByBooking(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.Ticket, error)
    CountByBooking(ctx context.Context, tx *sql.Tx, bookingID uint64) (int, error)
    CountOutstandingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int, error)
    MarkUsedTx(ctx context.Context, tx *sql.Tx, id uint64, usedAt time.Time, validatorID *uint64, validatorName *string) (bool, error)
    CancelByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64, now time.Time) (int64, error)
}

// CouponStore is the persistence port for coupons (*repository.CouponRepo).
type CouponStore interface {
    GetByCode(ctx context.Context, tx *sql.Tx, code string) (*model.Coupon, error)
    CountUsageByUser(ctx context.Context, tx *sql.Tx, couponID, userID uint64) (int, error)
    IncrementUsageTx(ctx context.Context, tx *sql.Tx, couponID uint64) error
    CreateUsageTx(ctx context.Context, tx *sql.Tx, u *model.CouponUsage) error
}

// Clock returns the current instant.  Services take one so tests can pin
// "today".
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }
