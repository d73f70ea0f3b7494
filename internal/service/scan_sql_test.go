package service

import (
    "context"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/ecotour-booking/internal/database"
    "github.com/iliyamo/ecotour-booking/internal/logger"
    "github.com/iliyamo/ecotour-booking/internal/repository"
)

// newSQLScan wires a ScanService to the MySQL repositories over sqlmock so
// the exact statement sequence of a redemption can be asserted.
func newSQLScan(t *testing.T) (*ScanService, sqlmock.Sqlmock) {
    t.Helper()
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    t.Cleanup(func() { _ = db.Close() })
    svc := NewScanService(Deps{
        Tx:       database.NewTxRunner(db),
        Bookings: repository.NewBookingRepo(db),
        Payments: repository.NewPaymentRepo(db),
        Tickets:  repository.NewTicketRepo(db),
        Log:      logger.Nop(),
        Clock:    func() time.Time { return testNow },
        Location: siteZone,
    })
    return svc, mock
}

var ticketRowColumns = []string{"id", "booking_id", "ticket_code", "valid_date", "status",
    "used_at", "validated_by", "validator_name", "created_at", "updated_at"}

func ticketRow(status string) *sqlmock.Rows {
    return sqlmock.NewRows(ticketRowColumns).
        AddRow(5, 9, "TKT-ABCDEFGHJK", today, status, nil, nil, nil, testNow, testNow)
}

func paidBookingRow() *sqlmock.Rows {
    return sqlmock.NewRows([]string{"id", "order_number", "user_id", "destination_id", "visit_date",
        "total_adults", "total_children", "total_seniors", "total_visitors",
        "total_motorcycles", "total_cars", "total_buses",
        "subtotal", "service_fee", "discount", "total_amount", "coupon_id",
        "leader_name", "leader_email", "leader_phone", "status",
        "paid_at", "cancelled_at", "created_at", "updated_at"}).
        AddRow(9, "ECO-20261015-ABCDEF", 11, 1, today,
            2, 0, 0, 2,
            0, 0, 0,
            100000, 2500, 0, 102500, nil,
            "Vera", "vera@example.com", "+628123456789", "paid",
            testNow, nil, testNow, testNow)
}

const (
    sqlTicketPlain   = `FROM tickets WHERE id = \?$`
    sqlBookingLock   = `FROM bookings WHERE id = \? FOR UPDATE`
    sqlTicketLock    = `FROM tickets WHERE id = \? FOR UPDATE`
    sqlMarkUsed      = `UPDATE tickets\s+SET status = 'used'`
    sqlCountUnused   = `SELECT COUNT\(\*\) FROM tickets WHERE booking_id = \? AND status <> 'used' FOR SHARE`
    sqlBookingStatus = `UPDATE bookings\s+SET status = \?`
)

func TestValidateEntry_LocksBookingBeforeTickets(t *testing.T) {
    svc, mock := newSQLScan(t)

    mock.ExpectQuery(sqlTicketPlain).WithArgs(uint64(5)).WillReturnRows(ticketRow("valid"))
    mock.ExpectBegin()
    mock.ExpectQuery(sqlBookingLock).WithArgs(uint64(9)).WillReturnRows(paidBookingRow())
    mock.ExpectQuery(sqlTicketLock).WithArgs(uint64(5)).WillReturnRows(ticketRow("valid"))
    mock.ExpectExec(sqlMarkUsed).
        WithArgs(testNow, sqlmock.AnyArg(), sqlmock.AnyArg(), testNow, uint64(5)).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectQuery(sqlCountUnused).WithArgs(uint64(9)).
        WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
    mock.ExpectExec(sqlBookingStatus).
        WithArgs("used", sqlmock.AnyArg(), sqlmock.AnyArg(), testNow, uint64(9)).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()

    res, err := svc.ValidateEntry(context.Background(), operator, 5)
    require.NoError(t, err)
    assert.True(t, res.Success)
    assert.True(t, res.BookingUsed)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateEntry_OtherTicketsOutstandingKeepsBookingPaid(t *testing.T) {
    svc, mock := newSQLScan(t)

    mock.ExpectQuery(sqlTicketPlain).WithArgs(uint64(5)).WillReturnRows(ticketRow("valid"))
    mock.ExpectBegin()
    mock.ExpectQuery(sqlBookingLock).WithArgs(uint64(9)).WillReturnRows(paidBookingRow())
    mock.ExpectQuery(sqlTicketLock).WithArgs(uint64(5)).WillReturnRows(ticketRow("valid"))
    mock.ExpectExec(sqlMarkUsed).WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectQuery(sqlCountUnused).WithArgs(uint64(9)).
        WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
    mock.ExpectCommit()

    res, err := svc.ValidateEntry(context.Background(), operator, 5)
    require.NoError(t, err)
    assert.True(t, res.Success)
    assert.False(t, res.BookingUsed)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateEntry_UsedTicketSeenUnderLock(t *testing.T) {
    svc, mock := newSQLScan(t)

    // The unlocked read is stale; the locked read sees the other gate's
    // redemption and nothing is written.
    mock.ExpectQuery(sqlTicketPlain).WithArgs(uint64(5)).WillReturnRows(ticketRow("valid"))
    mock.ExpectBegin()
    mock.ExpectQuery(sqlBookingLock).WithArgs(uint64(9)).WillReturnRows(paidBookingRow())
    mock.ExpectQuery(sqlTicketLock).WithArgs(uint64(5)).WillReturnRows(ticketRow("used"))
    mock.ExpectCommit()

    res, err := svc.ValidateEntry(context.Background(), operator, 5)
    require.NoError(t, err)
    assert.False(t, res.Success)
    assert.Equal(t, ScanAlreadyUsed, res.Status)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateEntry_LockFailureRollsBack(t *testing.T) {
    svc, mock := newSQLScan(t)

    mock.ExpectQuery(sqlTicketPlain).WithArgs(uint64(5)).WillReturnRows(ticketRow("valid"))
    mock.ExpectBegin()
    mock.ExpectQuery(sqlBookingLock).WithArgs(uint64(9)).WillReturnError(assert.AnError)
    mock.ExpectRollback()

    _, err := svc.ValidateEntry(context.Background(), operator, 5)
    assert.ErrorIs(t, err, assert.AnError)
    assert.NoError(t, mock.ExpectationsWereMet())
}
