package model

import (
    "math"
    "strings"
    "time"
)

// DiscountType selects how Coupon.Value is interpreted.
type DiscountType string

const (
    DiscountPercentage DiscountType = "percentage"
    DiscountFixed      DiscountType = "fixed"
)

// Coupon is a discount code applied at booking time.  Optional limits are
// pointers; nil means unbounded.
type Coupon struct {
    ID             uint64       `json:"id"`               // coupons.id
    Code           string       `json:"code"`             // coupons.code (upper-cased, unique)
    Name           string       `json:"name"`             // coupons.name
    DiscountType   DiscountType `json:"discount_type"`    // coupons.discount_type
    Value          float64      `json:"value"`            // coupons.value
    MaxDiscount    *int64       `json:"max_discount"`     // coupons.max_discount (nullable)
    MinOrderAmount *int64       `json:"min_order_amount"` // coupons.min_order_amount (nullable)
    UsageLimit     *int         `json:"usage_limit"`      // coupons.usage_limit (nullable)
    UsedCount      int          `json:"used_count"`       // coupons.used_count
    PerUserLimit   *int         `json:"per_user_limit"`   // coupons.per_user_limit (nullable)
    StartsAt       *time.Time   `json:"starts_at"`        // coupons.start_date (nullable)
    EndsAt         *time.Time   `json:"ends_at"`          // coupons.end_date (nullable)
    IsActive       bool         `json:"is_active"`        // coupons.is_active
    DestinationIDs []uint64     `json:"destination_ids"`  // coupon_destinations.destination_id
    CreatedAt      time.Time    `json:"created_at"`       // coupons.created_at
    UpdatedAt      time.Time    `json:"updated_at"`       // coupons.updated_at
}

// NormalizeCouponCode trims and upper-cases a code the way it is stored.
func NormalizeCouponCode(code string) string {
    return strings.ToUpper(strings.TrimSpace(code))
}

// CalculateDiscount returns the discount for an order of amount.  Percentage
// discounts are rounded to the nearest unit.  The result is clamped to
// MaxDiscount (when set) and then to amount, so it is never negative and
// never exceeds the order.
func (c Coupon) CalculateDiscount(amount int64) int64 {
    if amount <= 0 {
        return 0
    }
    var d int64
    switch c.DiscountType {
    case DiscountPercentage:
        d = int64(math.Round(float64(amount) * c.Value / 100))
    case DiscountFixed:
        d = int64(math.Round(c.Value))
    }
    if c.MaxDiscount != nil && d > *c.MaxDiscount {
        d = *c.MaxDiscount
    }
    if d > amount {
        d = amount
    }
    if d < 0 {
        d = 0
    }
    return d
}

// AllowsDestination reports whether the coupon may be used for the
// destination.  An empty allow-list admits every destination.
func (c Coupon) AllowsDestination(destinationID uint64) bool {
    if len(c.DestinationIDs) == 0 {
        return true
    }
    for _, id := range c.DestinationIDs {
        if id == destinationID {
            return true
        }
    }
    return false
}

// CouponUsage records one successful redemption of a coupon.
type CouponUsage struct {
    ID             uint64    `json:"id"`              // coupon_usages.id
    CouponID       uint64    `json:"coupon_id"`       // coupon_usages.coupon_id
    UserID         *uint64   `json:"user_id"`         // coupon_usages.user_id (nullable)
    BookingID      uint64    `json:"booking_id"`      // coupon_usages.booking_id
    DiscountAmount int64     `json:"discount_amount"` // coupon_usages.discount_amount
    CreatedAt      time.Time `json:"created_at"`      // coupon_usages.created_at
}
