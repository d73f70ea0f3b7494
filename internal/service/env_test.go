package service

import (
    "context"
    "testing"
    "time"

    "github.com/iliyamo/ecotour-booking/internal/config"
    "github.com/iliyamo/ecotour-booking/internal/logger"
    "github.com/iliyamo/ecotour-booking/internal/model"
)

// 10:00 at the site (UTC+7) on 15 October 2026.
var testNow = time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC)

var siteZone = time.FixedZone("WIB", 7*3600)

var testTariffs = config.PricingConfig{
    Adult: 50000, Child: 25000, Senior: 30000,
    Motorcycle: 5000, Car: 10000, Bus: 25000,
    ServiceFee: 2500,
}

var (
    visitor  = model.Principal{UserID: 11, Role: model.RoleVisitor, Name: "Vera"}
    other    = model.Principal{UserID: 12, Role: model.RoleVisitor, Name: "Otto"}
    operator = model.Principal{UserID: 21, Role: model.RoleOperator, Name: "Gate A"}
    admin    = model.Principal{UserID: 31, Role: model.RoleAdmin, Name: "Ada"}
)

type testEnv struct {
    db       *memDB
    bookings memBookings
    payments memPayments
    tickets  memTickets
    coupons  memCoupons
    pub      *recPublisher
    issuer   *TicketIssuer
    booking  *BookingService
    scan     *ScanService
}

func newTestEnv(t *testing.T) *testEnv {
    t.Helper()
    db := newMemDB()
    e := &testEnv{
        db:       db,
        bookings: memBookings{db},
        payments: memPayments{db},
        tickets:  memTickets{db},
        coupons:  memCoupons{db},
        pub:      &recPublisher{},
    }
    clock := func() time.Time { return testNow }
    e.issuer = NewTicketIssuer(e.tickets, "TKT", clock)
    deps := Deps{
        Tx:          passTx{},
        Bookings:    e.bookings,
        Payments:    e.payments,
        Tickets:     e.tickets,
        Coupons:     NewCouponService(e.coupons, clock),
        Pricer:      NewTariffPricer(testTariffs),
        Issuer:      e.issuer,
        Publisher:   e.pub,
        Log:         logger.Nop(),
        Clock:       clock,
        Location:    siteZone,
        OrderPrefix: "ECO",
        PendingTTL:  24 * time.Hour,
    }
    e.booking = NewBookingService(deps)
    e.scan = NewScanService(deps)
    return e
}

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

var (
    today     = date(2026, 10, 15)
    yesterday = date(2026, 10, 14)
    tomorrow  = date(2026, 10, 16)
)

// seedBooking stores a booking directly, bypassing checkout.
func (e *testEnv) seedBooking(t *testing.T, status model.BookingStatus, visit time.Time, visitors int) *model.Booking {
    t.Helper()
    b := &model.Booking{
        OrderNumber:   "ECO-SEED-" + string(rune('A'+len(e.db.bookings))),
        UserID:        visitor.UserRef(),
        DestinationID: 1,
        VisitDate:     visit,
        Visitors:      model.VisitorCounts{Adults: visitors},
        TotalVisitors: visitors,
        Subtotal:      int64(visitors) * 50000,
        ServiceFee:    2500,
        TotalAmount:   int64(visitors)*50000 + 2500,
        LeaderName:    "Vera",
        LeaderEmail:   "vera@example.com",
        Status:        status,
        CreatedAt:     testNow,
        UpdatedAt:     testNow,
    }
    if err := e.bookings.CreateTx(context.Background(), nil, b); err != nil {
        t.Fatal(err)
    }
    pay := &model.Payment{BookingID: b.ID, Amount: b.TotalAmount, Status: model.PaymentPending, CreatedAt: testNow, UpdatedAt: testNow}
    if status.IsPaid() || status == model.BookingUsed {
        pay.Status = model.PaymentSuccess
    }
    if err := e.payments.CreateTx(context.Background(), nil, pay); err != nil {
        t.Fatal(err)
    }
    return b
}

// seedTickets issues tickets for b through the real issuer.
func (e *testEnv) seedTickets(t *testing.T, b *model.Booking) []model.Ticket {
    t.Helper()
    ts, err := e.issuer.IssueTx(context.Background(), nil, b)
    if err != nil {
        t.Fatal(err)
    }
    return ts
}

func (e *testEnv) reloadBooking(t *testing.T, id uint64) *model.Booking {
    t.Helper()
    b, err := e.bookings.GetByID(context.Background(), nil, id)
    if err != nil {
        t.Fatal(err)
    }
    return b
}

func (e *testEnv) reloadTicket(t *testing.T, id uint64) *model.Ticket {
    t.Helper()
    tk, err := e.tickets.GetByID(context.Background(), nil, id)
    if err != nil {
        t.Fatal(err)
    }
    return tk
}

func ptr[T any](v T) *T { return &v }
