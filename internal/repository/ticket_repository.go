package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/ecotour-booking/internal/model"
)

// TicketRepo persists tickets.  Redemption goes through MarkUsedTx, a
// single conditional UPDATE, so a ticket can never be used twice even when
// two gates scan it at the same moment.
type TicketRepo struct {
    db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, booking_id, ticket_code, valid_date, status,
    used_at, validated_by, validator_name, created_at, updated_at`

func scanTicket(s rowScanner) (*model.Ticket, error) {
    var (
        t       model.Ticket
        status  string
        usedAt  sql.NullTime
        byID    sql.NullInt64
        byName  sql.NullString
    )
    err := s.Scan(&t.ID, &t.BookingID, &t.TicketCode, &t.ValidDate, &status,
        &usedAt, &byID, &byName, &t.CreatedAt, &t.UpdatedAt)
    if err != nil {
        return nil, noRows(err)
    }
    st, err := model.ParseTicketStatus(status)
    if err != nil {
        return nil, err
    }
    t.Status = st
    t.UsedAt = nullTime(usedAt)
    t.ValidatedBy = nullUint64(byID)
    t.ValidatorName = nullString(byName)
    return &t, nil
}

// CreateTx inserts a ticket.  A ticket_code collision surfaces as an error
// for which IsDuplicateKey is true.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Ticket) error {
    const q = `INSERT INTO tickets (booking_id, ticket_code, valid_date, status, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?)`
    res, err := pick(r.db, tx).ExecContext(ctx, q, t.BookingID, t.TicketCode, dateOnly(t.ValidDate),
        string(t.Status), t.CreatedAt, t.UpdatedAt)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    t.ID = uint64(id)
    return nil
}

// GetByID returns the ticket or ErrNotFound.
func (r *TicketRepo) GetByID(ctx context.Context, tx *sql.Tx, id uint64) (*model.Ticket, error) {
    q := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
    return scanTicket(pick(r.db, tx).QueryRowContext(ctx, q, id))
}

// GetByIDForUpdateTx reads a ticket with a row lock for the rest of tx.
// Callers lock the parent booking first.
func (r *TicketRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Ticket, error) {
    q := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ? FOR UPDATE`
    return scanTicket(pick(r.db, tx).QueryRowContext(ctx, q, id))
}

// GetByCode returns the ticket with the given code or ErrNotFound.
func (r *TicketRepo) GetByCode(ctx context.Context, tx *sql.Tx, code string) (*model.Ticket, error) {
    q := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_code = ?`
    return scanTicket(pick(r.db, tx).QueryRowContext(ctx, q, code))
}

// ListByBooking returns the tickets of a booking in issue order.
func (r *TicketRepo) ListByBooking(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.Ticket, error) {
    q := `SELECT ` + ticketColumns + ` FROM tickets WHERE booking_id = ? ORDER BY id`
    rows, err := pick(r.db, tx).QueryContext(ctx, q, bookingID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Ticket
    for rows.Next() {
        t, err := scanTicket(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *t)
    }
    return out, rows.Err()
}

// CountByBooking returns how many tickets were issued for a booking.
func (r *TicketRepo) CountByBooking(ctx context.Context, tx *sql.Tx, bookingID uint64) (int, error) {
    var n int
    err := pick(r.db, tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE booking_id = ?`, bookingID).Scan(&n)
    return n, err
}

// CountOutstandingTx returns how many tickets of a booking are not yet used.
// It is a locking read so that redemptions committed by other gates after
// tx began are counted.
func (r *TicketRepo) CountOutstandingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int, error) {
    var n int
    err := pick(r.db, tx).QueryRowContext(ctx,
        `SELECT COUNT(*) FROM tickets WHERE booking_id = ? AND status <> 'used' FOR SHARE`, bookingID).Scan(&n)
    return n, err
}

// MarkUsedTx redeems a ticket with a compare-and-set on status.  It reports
// false when the ticket was no longer valid, i.e. another scan won.
func (r *TicketRepo) MarkUsedTx(ctx context.Context, tx *sql.Tx, id uint64, usedAt time.Time, validatorID *uint64, validatorName *string) (bool, error) {
    const q = `UPDATE tickets
               SET status = 'used', used_at = ?, validated_by = ?, validator_name = ?, updated_at = ?
               WHERE id = ? AND status = 'valid'`
    res, err := pick(r.db, tx).ExecContext(ctx, q, usedAt, validatorID, validatorName, usedAt, id)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// CancelByBookingTx cancels every still-valid ticket of a booking and
// returns how many were changed.
func (r *TicketRepo) CancelByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64, now time.Time) (int64, error) {
    const q = `UPDATE tickets SET status = 'cancelled', updated_at = ? WHERE booking_id = ? AND status = 'valid'`
    res, err := pick(r.db, tx).ExecContext(ctx, q, now, bookingID)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}
