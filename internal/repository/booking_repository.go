package repository

import (
    "context"
    "database/sql"
    "fmt"
    "time"

    "github.com/iliyamo/ecotour-booking/internal/model"
)

// BookingRepo persists bookings and their item lines.  Every method accepts
// an optional *sql.Tx; passing nil runs the statement on the pool.  All
// timestamps are stored in UTC and visit dates as DATE columns.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, order_number, user_id, destination_id, visit_date,
    total_adults, total_children, total_seniors, total_visitors,
    total_motorcycles, total_cars, total_buses,
    subtotal, service_fee, discount, total_amount, coupon_id,
    leader_name, leader_email, leader_phone, status,
    paid_at, cancelled_at, created_at, updated_at`

func scanBooking(s rowScanner) (*model.Booking, error) {
    var (
        b         model.Booking
        userID    sql.NullInt64
        couponID  sql.NullInt64
        status    string
        paidAt    sql.NullTime
        cancelled sql.NullTime
    )
    err := s.Scan(
        &b.ID, &b.OrderNumber, &userID, &b.DestinationID, &b.VisitDate,
        &b.Visitors.Adults, &b.Visitors.Children, &b.Visitors.Seniors, &b.TotalVisitors,
        &b.Vehicles.Motorcycles, &b.Vehicles.Cars, &b.Vehicles.Buses,
        &b.Subtotal, &b.ServiceFee, &b.Discount, &b.TotalAmount, &couponID,
        &b.LeaderName, &b.LeaderEmail, &b.LeaderPhone, &status,
        &paidAt, &cancelled, &b.CreatedAt, &b.UpdatedAt,
    )
    if err != nil {
        return nil, noRows(err)
    }
    st, err := model.ParseBookingStatus(status)
    if err != nil {
        return nil, err
    }
    b.Status = st
    b.UserID = nullUint64(userID)
    b.CouponID = nullUint64(couponID)
    b.PaidAt = nullTime(paidAt)
    b.CancelledAt = nullTime(cancelled)
    return &b, nil
}

// CreateTx inserts a booking and populates its generated ID.  A collision
// on order_number surfaces as an error for which IsDuplicateKey is true; the
// statement is rolled back by MySQL but the transaction stays usable, so
// the caller may retry with a new order number.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
    const q = `INSERT INTO bookings (order_number, user_id, destination_id, visit_date,
        total_adults, total_children, total_seniors, total_visitors,
        total_motorcycles, total_cars, total_buses,
        subtotal, service_fee, discount, total_amount, coupon_id,
        leader_name, leader_email, leader_phone, status, paid_at, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := pick(r.db, tx).ExecContext(ctx, q,
        b.OrderNumber, b.UserID, b.DestinationID, dateOnly(b.VisitDate),
        b.Visitors.Adults, b.Visitors.Children, b.Visitors.Seniors, b.TotalVisitors,
        b.Vehicles.Motorcycles, b.Vehicles.Cars, b.Vehicles.Buses,
        b.Subtotal, b.ServiceFee, b.Discount, b.TotalAmount, b.CouponID,
        b.LeaderName, b.LeaderEmail, b.LeaderPhone, string(b.Status), b.PaidAt, b.CreatedAt, b.UpdatedAt,
    )
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)
    return nil
}

// CreateItemsTx inserts all item lines of a booking in one statement.
// Passing an empty slice has no effect and returns nil.
func (r *BookingRepo) CreateItemsTx(ctx context.Context, tx *sql.Tx, items []model.BookingItem) error {
    if len(items) == 0 {
        return nil
    }
    query := `INSERT INTO booking_items (booking_id, category, quantity, unit_price, subtotal) VALUES `
    args := make([]any, 0, len(items)*5)
    for i, it := range items {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?)"
        args = append(args, it.BookingID, it.Category, it.Quantity, it.UnitPrice, it.Subtotal)
    }
    _, err := pick(r.db, tx).ExecContext(ctx, query, args...)
    return err
}

// GetByID returns the booking with the given ID or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
    q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
    return scanBooking(pick(r.db, tx).QueryRowContext(ctx, q, id))
}

// GetByIDForUpdateTx locks the booking row for the rest of the transaction.
// Status-changing operations read through it so that a webhook, a cash
// payment and a cancellation on the same booking serialize.
func (r *BookingRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
    q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
    return scanBooking(tx.QueryRowContext(ctx, q, id))
}

// GetByOrderNumber returns the booking with the given order number or
// ErrNotFound.
func (r *BookingRepo) GetByOrderNumber(ctx context.Context, tx *sql.Tx, orderNumber string) (*model.Booking, error) {
    q := `SELECT ` + bookingColumns + ` FROM bookings WHERE order_number = ?`
    return scanBooking(pick(r.db, tx).QueryRowContext(ctx, q, orderNumber))
}

// ListItems returns the item lines of a booking ordered by insertion.
func (r *BookingRepo) ListItems(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.BookingItem, error) {
    const q = `SELECT id, booking_id, category, quantity, unit_price, subtotal
               FROM booking_items WHERE booking_id = ? ORDER BY id`
    rows, err := pick(r.db, tx).QueryContext(ctx, q, bookingID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var items []model.BookingItem
    for rows.Next() {
        var it model.BookingItem
        if err := rows.Scan(&it.ID, &it.BookingID, &it.Category, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
            return nil, err
        }
        items = append(items, it)
    }
    return items, rows.Err()
}

// UpdateStatusTx moves a booking to status.  paid_at is stamped the first
// time the booking becomes paid and cancelled_at when it is cancelled;
// existing stamps are never overwritten.  Returns ErrNotFound when no row
// matched.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.BookingStatus, now time.Time) error {
    var paidAt, cancelledAt *time.Time
    switch status {
    case model.BookingPaid, model.BookingConfirmed:
        paidAt = &now
    case model.BookingCancelled:
        cancelledAt = &now
    case model.BookingPending, model.BookingAwaitingCash, model.BookingUsed, model.BookingExpired, model.BookingRefunded:
    }
    const q = `UPDATE bookings
               SET status = ?, paid_at = COALESCE(paid_at, ?), cancelled_at = COALESCE(cancelled_at, ?), updated_at = ?
               WHERE id = ?`
    res, err := pick(r.db, tx).ExecContext(ctx, q, string(status), paidAt, cancelledAt, now, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrNotFound
    }
    return nil
}

// ListStaleUnpaidIDs returns up to limit IDs of pending or awaiting_cash
// bookings created before cutoff, oldest first.
func (r *BookingRepo) ListStaleUnpaidIDs(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
    const q = `SELECT id FROM bookings
               WHERE status IN ('pending', 'awaiting_cash') AND created_at < ?
               ORDER BY created_at LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q, cutoff, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    return ids, rows.Err()
}

// DeleteCascadeTx hard-deletes a booking together with every row that
// references it.  The statements run child-first so foreign keys hold at
// each step; any failure aborts and the caller must roll back.
func (r *BookingRepo) DeleteCascadeTx(ctx context.Context, tx *sql.Tx, id uint64) error {
    steps := []struct {
        table string
        query string
    }{
        {"tickets", `DELETE FROM tickets WHERE booking_id = ?`},
        {"booking_items", `DELETE FROM booking_items WHERE booking_id = ?`},
        {"payments", `DELETE FROM payments WHERE booking_id = ?`},
        {"coupon_usages", `DELETE FROM coupon_usages WHERE booking_id = ?`},
    }
    for _, s := range steps {
        if _, err := tx.ExecContext(ctx, s.query, id); err != nil {
            return fmt.Errorf("delete %s: %w", s.table, err)
        }
    }
    res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
    if err != nil {
        return fmt.Errorf("delete bookings: %w", err)
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrNotFound
    }
    return nil
}
