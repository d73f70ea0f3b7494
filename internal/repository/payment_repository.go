package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/ecotour-booking/internal/model"
)

// PaymentRepo persists payment attempts.  A booking may have several; the
// most recently created one is the current payment.
type PaymentRepo struct {
    db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, booking_id, gross_amount, transaction_id, gateway_order_id,
    payment_type, status, paid_at, created_at, updated_at`

func scanPayment(s rowScanner) (*model.Payment, error) {
    var (
        p       model.Payment
        txID    sql.NullString
        orderID sql.NullString
        status  string
        paidAt  sql.NullTime
    )
    err := s.Scan(&p.ID, &p.BookingID, &p.Amount, &txID, &orderID,
        &p.Channel, &status, &paidAt, &p.CreatedAt, &p.UpdatedAt)
    if err != nil {
        return nil, noRows(err)
    }
    st, err := model.ParsePaymentStatus(status)
    if err != nil {
        return nil, err
    }
    p.Status = st
    p.TransactionID = nullString(txID)
    p.GatewayOrderID = nullString(orderID)
    p.PaidAt = nullTime(paidAt)
    return &p, nil
}

// CreateTx inserts a payment and populates its generated ID.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
    const q = `INSERT INTO payments (booking_id, gross_amount, transaction_id, gateway_order_id,
        payment_type, status, paid_at, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := pick(r.db, tx).ExecContext(ctx, q, p.BookingID, p.Amount, p.TransactionID,
        p.GatewayOrderID, p.Channel, string(p.Status), p.PaidAt, p.CreatedAt, p.UpdatedAt)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    p.ID = uint64(id)
    return nil
}

// Latest returns the current payment of a booking or ErrNotFound when the
// booking has none.
func (r *PaymentRepo) Latest(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Payment, error) {
    q := `SELECT ` + paymentColumns + ` FROM payments
          WHERE booking_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`
    return scanPayment(pick(r.db, tx).QueryRowContext(ctx, q, bookingID))
}

// UpdateTx overwrites the mutable fields of an existing payment.
func (r *PaymentRepo) UpdateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
    const q = `UPDATE payments
               SET gross_amount = ?, transaction_id = ?, gateway_order_id = ?, payment_type = ?,
                   status = ?, paid_at = ?, updated_at = ?
               WHERE id = ?`
    res, err := pick(r.db, tx).ExecContext(ctx, q, p.Amount, p.TransactionID, p.GatewayOrderID,
        p.Channel, string(p.Status), p.PaidAt, p.UpdatedAt, p.ID)
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

// TransitionTx changes a payment's status only while it still holds from.
// It reports whether the row was changed.
func (r *PaymentRepo) TransitionTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.PaymentStatus, now time.Time) (bool, error) {
    const q = `UPDATE payments SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
    res, err := pick(r.db, tx).ExecContext(ctx, q, string(to), now, id, string(from))
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}
