package service

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/ecotour-booking/internal/model"
    "github.com/iliyamo/ecotour-booking/internal/repository"
)

// CouponReason is the machine-readable cause of a coupon verdict.
type CouponReason string

const (
    CouponOK                     CouponReason = "ok"
    CouponNotFound               CouponReason = "not_found"
    CouponInactive               CouponReason = "inactive"
    CouponNotStarted             CouponReason = "not_started"
    CouponExpired                CouponReason = "expired"
    CouponUsageLimitReached      CouponReason = "usage_limit_reached"
    CouponPerUserLimitReached    CouponReason = "per_user_limit_reached"
    CouponMinOrderNotMet         CouponReason = "min_order_not_met"
    CouponDestinationNotEligible CouponReason = "destination_not_eligible"
)

// CouponResult is the verdict of a coupon check.  Discount is only set
// when Valid is true.
type CouponResult struct {
    Valid    bool          `json:"valid"`
    Reason   CouponReason  `json:"reason"`
    Message  string        `json:"message"`
    Discount int64         `json:"discount"`
    Coupon   *model.Coupon `json:"coupon,omitempty"`
}

func rejectCoupon(reason CouponReason, msg string) CouponResult {
    return CouponResult{Reason: reason, Message: msg}
}

// CouponService validates and redeems coupons.
type CouponService struct {
    coupons CouponStore
    now     Clock
}

func NewCouponService(coupons CouponStore, now Clock) *CouponService {
    if now == nil {
        now = SystemClock
    }
    return &CouponService{coupons: coupons, now: now}
}

// Validate checks code against the order.  The checks run in a fixed order
// and stop at the first failure: active flag, validity window, global
// usage limit, per-user limit, minimum order amount and destination
// allow-list.  The per-user limit is skipped for anonymous checkouts.
// Only storage failures are returned as errors.
func (s *CouponService) Validate(ctx context.Context, tx *sql.Tx, code string, userID *uint64, amount int64, destinationID uint64) (CouponResult, error) {
    c, err := s.coupons.GetByCode(ctx, tx, model.NormalizeCouponCode(code))
    if errors.Is(err, repository.ErrNotFound) {
        return rejectCoupon(CouponNotFound, "Coupon code not found."), nil
    }
    if err != nil {
        return CouponResult{}, fmt.Errorf("load coupon: %w", err)
    }

    now := s.now()
    if !c.IsActive {
        return rejectCoupon(CouponInactive, "This coupon is no longer active."), nil
    }
    if c.StartsAt != nil && now.Before(*c.StartsAt) {
        return rejectCoupon(CouponNotStarted,
            fmt.Sprintf("This coupon can be used from %s.", c.StartsAt.Format(time.DateOnly))), nil
    }
    if c.EndsAt != nil && now.After(*c.EndsAt) {
        return rejectCoupon(CouponExpired, "This coupon has expired."), nil
    }
    if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
        return rejectCoupon(CouponUsageLimitReached, "This coupon has reached its usage limit."), nil
    }
    if c.PerUserLimit != nil && userID != nil {
        used, err := s.coupons.CountUsageByUser(ctx, tx, c.ID, *userID)
        if err != nil {
            return CouponResult{}, fmt.Errorf("count coupon usage: %w", err)
        }
        if used >= *c.PerUserLimit {
            return rejectCoupon(CouponPerUserLimitReached, "You have already used this coupon the maximum number of times."), nil
        }
    }
    if c.MinOrderAmount != nil && amount < *c.MinOrderAmount {
        return rejectCoupon(CouponMinOrderNotMet,
            fmt.Sprintf("Minimum order for this coupon is %d.", *c.MinOrderAmount)), nil
    }
    if !c.AllowsDestination(destinationID) {
        return rejectCoupon(CouponDestinationNotEligible, "This coupon is not valid for the selected destination."), nil
    }

    return CouponResult{
        Valid:    true,
        Reason:   CouponOK,
        Message:  "Coupon applied.",
        Discount: c.CalculateDiscount(amount),
        Coupon:   c,
    }, nil
}

// ApplyTx redeems a validated coupon for a booking: used_count is bumped
// and one usage row recorded.  It is not idempotent; callers invoke it
// exactly once per successfully created booking.  A concurrent booking
// exhausting the limit first surfaces as a CouponRejectedError.
func (s *CouponService) ApplyTx(ctx context.Context, tx *sql.Tx, c *model.Coupon, userID *uint64, bookingID uint64, discount int64) error {
    if err := s.coupons.IncrementUsageTx(ctx, tx, c.ID); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return &CouponRejectedError{Result: rejectCoupon(CouponUsageLimitReached, "This coupon has reached its usage limit.")}
        }
        return fmt.Errorf("increment coupon usage: %w", err)
    }
    usage := &model.CouponUsage{
        CouponID:       c.ID,
        UserID:         userID,
        BookingID:      bookingID,
        DiscountAmount: discount,
        CreatedAt:      s.now(),
    }
    if err := s.coupons.CreateUsageTx(ctx, tx, usage); err != nil {
        return fmt.Errorf("record coupon usage: %w", err)
    }
    return nil
}
