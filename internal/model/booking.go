package model

import (
    "fmt"
    "time"
)

// BookingStatus is the lifecycle state of a booking.  The set is closed:
// every transition site switches over all of these values so that adding a
// state forces each of them to be revisited.
type BookingStatus string

const (
    BookingPending      BookingStatus = "pending"
    BookingAwaitingCash BookingStatus = "awaiting_cash"
    BookingPaid         BookingStatus = "paid"
    BookingConfirmed    BookingStatus = "confirmed"
    BookingUsed         BookingStatus = "used"
    BookingCancelled    BookingStatus = "cancelled"
    BookingExpired      BookingStatus = "expired"
    BookingRefunded     BookingStatus = "refunded"
)

// ParseBookingStatus converts a stored or requested value into a
// BookingStatus, rejecting anything outside the closed set.
func ParseBookingStatus(s string) (BookingStatus, error) {
    st := BookingStatus(s)
    switch st {
    case BookingPending, BookingAwaitingCash, BookingPaid, BookingConfirmed,
        BookingUsed, BookingCancelled, BookingExpired, BookingRefunded:
        return st, nil
    }
    return "", fmt.Errorf("unknown booking status %q", s)
}

// AwaitingPayment reports whether the booking still needs money before
// tickets can be issued.
func (s BookingStatus) AwaitingPayment() bool {
    switch s {
    case BookingPending, BookingAwaitingCash:
        return true
    case BookingPaid, BookingConfirmed, BookingUsed, BookingCancelled, BookingExpired, BookingRefunded:
        return false
    }
    return false
}

// IsPaid reports whether the booking has been paid and not yet redeemed.
func (s BookingStatus) IsPaid() bool {
    switch s {
    case BookingPaid, BookingConfirmed:
        return true
    case BookingPending, BookingAwaitingCash, BookingUsed, BookingCancelled, BookingExpired, BookingRefunded:
        return false
    }
    return false
}

// CanTransitionTo encodes the booking state machine:
//
//  pending       -> awaiting_cash | paid | confirmed | cancelled | expired
//  awaiting_cash -> paid | confirmed | cancelled | expired
//  paid          -> confirmed | used | cancelled | refunded
//  confirmed     -> used | cancelled | refunded
//  used, cancelled, expired, refunded are absorbing.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
    switch s {
    case BookingPending:
        switch next {
        case BookingAwaitingCash, BookingPaid, BookingConfirmed, BookingCancelled, BookingExpired:
            return true
        }
    case BookingAwaitingCash:
        switch next {
        case BookingPaid, BookingConfirmed, BookingCancelled, BookingExpired:
            return true
        }
    case BookingPaid:
        switch next {
        case BookingConfirmed, BookingUsed, BookingCancelled, BookingRefunded:
            return true
        }
    case BookingConfirmed:
        switch next {
        case BookingUsed, BookingCancelled, BookingRefunded:
            return true
        }
    case BookingUsed, BookingCancelled, BookingExpired, BookingRefunded:
        return false
    }
    return false
}

// VisitorCounts groups the number of visitors per tariff category.
type VisitorCounts struct {
    Adults   int `json:"adults"`
    Children int `json:"children"`
    Seniors  int `json:"seniors"`
}

// Total is the number of people covered by a booking.
func (v VisitorCounts) Total() int { return v.Adults + v.Children + v.Seniors }

// VehicleCounts groups the number of vehicles per parking tariff.
type VehicleCounts struct {
    Motorcycles int `json:"motorcycles"`
    Cars        int `json:"cars"`
    Buses       int `json:"buses"`
}

// Booking is a reservation covering one visit date at one destination.
// Amounts are whole currency units.
//
// Fields:
//  ID            – primary key identifier.
//  OrderNumber   – human readable unique order number.
//  UserID        – visitor account, nil for walk-ins.
//  DestinationID – destination being visited.
//  VisitDate     – date of the visit (midnight UTC of the calendar date).
//  Visitors      – counts per visitor category.
//  TotalVisitors – always Visitors.Total(), stored for reporting.
//  Vehicles      – counts per vehicle category.
//  Subtotal      – sum of item lines before fees and discounts.
//  ServiceFee    – flat booking fee.
//  Discount      – coupon discount applied at creation.
//  TotalAmount   – Subtotal + ServiceFee - Discount.
//  CouponID      – coupon applied, if any.
//  Leader*       – contact of the group leader.
//  Status        – lifecycle state.
//  PaidAt        – when the booking first became paid.
//  CancelledAt   – when the booking was cancelled.
type Booking struct {
    ID            uint64        `json:"id"`             // bookings.id
    OrderNumber   string        `json:"order_number"`   // bookings.order_number
    UserID        *uint64       `json:"user_id"`        // bookings.user_id (nullable)
    DestinationID uint64        `json:"destination_id"` // bookings.destination_id
    VisitDate     time.Time     `json:"visit_date"`     // bookings.visit_date
    Visitors      VisitorCounts `json:"visitors"`       // bookings.total_adults/children/seniors
    TotalVisitors int           `json:"total_visitors"` // bookings.total_visitors
    Vehicles      VehicleCounts `json:"vehicles"`       // bookings.total_motorcycles/cars/buses
    Subtotal      int64         `json:"subtotal"`       // bookings.subtotal
    ServiceFee    int64         `json:"service_fee"`    // bookings.service_fee
    Discount      int64         `json:"discount"`       // bookings.discount
    TotalAmount   int64         `json:"total_amount"`   // bookings.total_amount
    CouponID      *uint64       `json:"coupon_id"`      // bookings.coupon_id (nullable)
    LeaderName    string        `json:"leader_name"`    // bookings.leader_name
    LeaderEmail   string        `json:"leader_email"`   // bookings.leader_email
    LeaderPhone   string        `json:"leader_phone"`   // bookings.leader_phone
    Status        BookingStatus `json:"status"`         // bookings.status
    PaidAt        *time.Time    `json:"paid_at"`        // bookings.paid_at (nullable)
    CancelledAt   *time.Time    `json:"cancelled_at"`   // bookings.cancelled_at (nullable)
    CreatedAt     time.Time     `json:"created_at"`     // bookings.created_at
    UpdatedAt     time.Time     `json:"updated_at"`     // bookings.updated_at
}

// BookingItem is one priced line of a booking, e.g. "3 adults at 50000".
type BookingItem struct {
    ID        uint64 `json:"id"`         // booking_items.id
    BookingID uint64 `json:"booking_id"` // booking_items.booking_id
    Category  string `json:"category"`   // booking_items.category
    Quantity  int    `json:"quantity"`   // booking_items.quantity
    UnitPrice int64  `json:"unit_price"` // booking_items.unit_price
    Subtotal  int64  `json:"subtotal"`   // booking_items.subtotal
}

// Item categories.
const (
    ItemAdult      = "adult"
    ItemChild      = "child"
    ItemSenior     = "senior"
    ItemMotorcycle = "motorcycle"
    ItemCar        = "car"
    ItemBus        = "bus"
)
