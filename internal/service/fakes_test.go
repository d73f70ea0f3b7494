package service

import (
    "context"
    "database/sql"
    "sort"
    "sync"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/ecotour-booking/internal/model"
    "github.com/iliyamo/ecotour-booking/internal/repository"
)

// memDB is an in-memory stand-in for the MySQL schema.  One mutex guards
// every table so each store call is atomic, mirroring single statements.
type memDB struct {
    mu       sync.Mutex
    seq      uint64
    bookings map[uint64]*model.Booking
    items    map[uint64][]model.BookingItem
    payments []*model.Payment
    tickets  map[uint64]*model.Ticket
    coupons  map[string]*model.Coupon
    usages   []model.CouponUsage

    takenOrderNumbers map[string]bool
    takenTicketCodes  map[string]bool
}

func newMemDB() *memDB {
    return &memDB{
        bookings:          map[uint64]*model.Booking{},
        items:             map[uint64][]model.BookingItem{},
        tickets:           map[uint64]*model.Ticket{},
        coupons:           map[string]*model.Coupon{},
        takenOrderNumbers: map[string]bool{},
        takenTicketCodes:  map[string]bool{},
    }
}

func (m *memDB) nextID() uint64 { m.seq++; return m.seq }

var errDup = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

// passTx runs fn without a real transaction.
type passTx struct{}

func (passTx) WithinTx(_ context.Context, fn func(tx *sql.Tx) error) error { return fn(nil) }

type memBookings struct{ *memDB }

func (m memBookings) CreateTx(_ context.Context, _ *sql.Tx, b *model.Booking) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.takenOrderNumbers[b.OrderNumber] {
        return errDup
    }
    m.takenOrderNumbers[b.OrderNumber] = true
    b.ID = m.nextID()
    cp := *b
    m.bookings[b.ID] = &cp
    return nil
}

func (m memBookings) CreateItemsTx(_ context.Context, _ *sql.Tx, items []model.BookingItem) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, it := range items {
        it.ID = m.nextID()
        m.items[it.BookingID] = append(m.items[it.BookingID], it)
    }
    return nil
}

func (m memBookings) GetByID(_ context.Context, _ *sql.Tx, id uint64) (*model.Booking, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    b, ok := m.bookings[id]
    if !ok {
        return nil, repository.ErrNotFound
    }
    cp := *b
    return &cp, nil
}

func (m memBookings) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
    return m.GetByID(ctx, tx, id)
}

func (m memBookings) GetByOrderNumber(_ context.Context, _ *sql.Tx, on string) (*model.Booking, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, b := range m.bookings {
        if b.OrderNumber == on {
            cp := *b
            return &cp, nil
        }
    }
    return nil, repository.ErrNotFound
}

func (m memBookings) ListItems(_ context.Context, _ *sql.Tx, id uint64) ([]model.BookingItem, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return append([]model.BookingItem(nil), m.items[id]...), nil
}

func (m memBookings) UpdateStatusTx(_ context.Context, _ *sql.Tx, id uint64, st model.BookingStatus, now time.Time) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    b, ok := m.bookings[id]
    if !ok {
        return repository.ErrNotFound
    }
    b.Status = st
    b.UpdatedAt = now
    if st.IsPaid() && b.PaidAt == nil {
        b.PaidAt = &now
    }
    if st == model.BookingCancelled && b.CancelledAt == nil {
        b.CancelledAt = &now
    }
    return nil
}

func (m memBookings) ListStaleUnpaidIDs(_ context.Context, cutoff time.Time, limit int) ([]uint64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var ids []uint64
    for id, b := range m.bookings {
        if b.Status.AwaitingPayment() && b.CreatedAt.Before(cutoff) {
            ids = append(ids, id)
        }
    }
    sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
    if len(ids) > limit {
        ids = ids[:limit]
    }
    return ids, nil
}

func (m memBookings) DeleteCascadeTx(_ context.Context, _ *sql.Tx, id uint64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    for tid, t := range m.tickets {
        if t.BookingID == id {
            delete(m.tickets, tid)
        }
    }
    delete(m.items, id)
    kept := m.payments[:0]
    for _, p := range m.payments {
        if p.BookingID != id {
            kept = append(kept, p)
        }
    }
    m.payments = kept
    var usages []model.CouponUsage
    for _, u := range m.usages {
        if u.BookingID != id {
            usages = append(usages, u)
        }
    }
    m.usages = usages
    if _, ok := m.bookings[id]; !ok {
        return repository.ErrNotFound
    }
    delete(m.bookings, id)
    return nil
}

type memPayments struct{ *memDB }

func (m memPayments) CreateTx(_ context.Context, _ *sql.Tx, p *model.Payment) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    p.ID = m.nextID()
    cp := *p
    m.payments = append(m.payments, &cp)
    return nil
}

func (m memPayments) Latest(_ context.Context, _ *sql.Tx, bookingID uint64) (*model.Payment, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for i := len(m.payments) - 1; i >= 0; i-- {
        if m.payments[i].BookingID == bookingID {
            cp := *m.payments[i]
            return &cp, nil
        }
    }
    return nil, repository.ErrNotFound
}

func (m memPayments) UpdateTx(_ context.Context, _ *sql.Tx, p *model.Payment) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    for i, cur := range m.payments {
        if cur.ID == p.ID {
            cp := *p
            m.payments[i] = &cp
            return nil
        }
    }
    return repository.ErrNotFound
}

func (m memPayments) TransitionTx(_ context.Context, _ *sql.Tx, id uint64, from, to model.PaymentStatus, now time.Time) (bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, p := range m.payments {
        if p.ID == id && p.Status == from {
            p.Status = to
            p.UpdatedAt = now
            return true, nil
        }
    }
    return false, nil
}

// forBooking returns copies of a booking's payments in creation order.
func (m memPayments) forBooking(id uint64) []model.Payment {
    m.mu.Lock()
    defer m.mu.Unlock()
    var out []model.Payment
    for _, p := range m.payments {
        if p.BookingID == id {
            out = append(out, *p)
        }
    }
    return out
}

type memTickets struct{ *memDB }

func (m memTickets) CreateTx(_ context.Context, _ *sql.Tx, t *model.Ticket) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.takenTicketCodes[t.TicketCode] {
        return errDup
    }
    m.takenTicketCodes[t.TicketCode] = true
    t.ID = m.nextID()
    cp := *t
    m.tickets[t.ID] = &cp
    return nil
}

func (m memTickets) GetByID(_ context.Context, _ *sql.Tx, id uint64) (*model.Ticket, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    t, ok := m.tickets[id]
    if !ok {
        return nil, repository.ErrNotFound
    }
    cp := *t
    return &cp, nil
}

func (m memTickets) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Ticket, error) {
    return m.GetByID(ctx, tx, id)
}

func (m memTickets) GetByCode(_ context.Context, _ *sql.Tx, code string) (*model.Ticket, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, t := range m.tickets {
        if t.TicketCode == code {
            cp := *t
            return &cp, nil
        }
    }
    return nil, repository.ErrNotFound
}

func (m memTickets) ListByBooking(_ context.Context, _ *sql.Tx, id uint64) ([]model.Ticket, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var out []model.Ticket
    for _, t := range m.tickets {
        if t.BookingID == id {
            out = append(out, *t)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out, nil
}

func (m memTickets) CountByBooking(ctx context.Context, tx *sql.Tx, id uint64) (int, error) {
    ts, _ := m.ListByBooking(ctx, tx, id)
    return len(ts), nil
}

func (m memTickets) CountOutstandingTx(ctx context.Context, tx *sql.Tx, id uint64) (int, error) {
    ts, _ := m.ListByBooking(ctx, tx, id)
    n := 0
    for _, t := range ts {
        if t.Status != model.TicketUsed {
            n++
        }
    }
    return n, nil
}

func (m memTickets) MarkUsedTx(_ context.Context, _ *sql.Tx, id uint64, at time.Time, by *uint64, name *string) (bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    t, ok := m.tickets[id]
    if !ok || t.Status != model.TicketValid {
        return false, nil
    }
    t.Status = model.TicketUsed
    t.UsedAt = &at
    t.ValidatedBy = by
    t.ValidatorName = name
    return true, nil
}

func (m memTickets) CancelByBookingTx(_ context.Context, _ *sql.Tx, id uint64, _ time.Time) (int64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var n int64
    for _, t := range m.tickets {
        if t.BookingID == id && t.Status == model.TicketValid {
            t.Status = model.TicketCancelled
            n++
        }
    }
    return n, nil
}

type memCoupons struct{ *memDB }

func (m memCoupons) GetByCode(_ context.Context, _ *sql.Tx, code string) (*model.Coupon, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    c, ok := m.coupons[code]
    if !ok {
        return nil, repository.ErrNotFound
    }
    cp := *c
    return &cp, nil
}

func (m memCoupons) CountUsageByUser(_ context.Context, _ *sql.Tx, couponID, userID uint64) (int, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    n := 0
    for _, u := range m.usages {
        if u.CouponID == couponID && u.UserID != nil && *u.UserID == userID {
            n++
        }
    }
    return n, nil
}

func (m memCoupons) IncrementUsageTx(_ context.Context, _ *sql.Tx, couponID uint64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, c := range m.coupons {
        if c.ID == couponID {
            if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
                return repository.ErrConflict
            }
            c.UsedCount++
            return nil
        }
    }
    return repository.ErrNotFound
}

func (m memCoupons) CreateUsageTx(_ context.Context, _ *sql.Tx, u *model.CouponUsage) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    u.ID = m.nextID()
    m.usages = append(m.usages, *u)
    return nil
}

// recPublisher records published events.
type recPublisher struct {
    mu     sync.Mutex
    queues []string
    events []any
}

func (p *recPublisher) Publish(_ context.Context, q string, ev any) error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.queues = append(p.queues, q)
    p.events = append(p.events, ev)
    return nil
}

func (p *recPublisher) sent() []string {
    p.mu.Lock()
    defer p.mu.Unlock()
    return append([]string(nil), p.queues...)
}
