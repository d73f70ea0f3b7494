package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/ecotour-booking/internal/model"
)

// CouponRepo reads coupons and records their redemptions.
type CouponRepo struct {
    db *sql.DB
}

// NewCouponRepo returns a new CouponRepo bound to the given database.
func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{db: db} }

// GetByCode loads a coupon by its normalized code together with its
// destination allow-list.  Returns ErrNotFound for unknown codes.
func (r *CouponRepo) GetByCode(ctx context.Context, tx *sql.Tx, code string) (*model.Coupon, error) {
    const q = `SELECT id, code, name, discount_type, value, max_discount, min_order_amount,
                      usage_limit, used_count, per_user_limit, start_date, end_date, is_active,
                      created_at, updated_at
               FROM coupons WHERE code = ?`
    var (
        c        model.Coupon
        dtype    string
        maxDisc  sql.NullInt64
        minOrder sql.NullInt64
        limit    sql.NullInt64
        perUser  sql.NullInt64
        starts   sql.NullTime
        ends     sql.NullTime
    )
    db := pick(r.db, tx)
    err := db.QueryRowContext(ctx, q, model.NormalizeCouponCode(code)).Scan(
        &c.ID, &c.Code, &c.Name, &dtype, &c.Value, &maxDisc, &minOrder,
        &limit, &c.UsedCount, &perUser, &starts, &ends, &c.IsActive,
        &c.CreatedAt, &c.UpdatedAt,
    )
    if err != nil {
        return nil, noRows(err)
    }
    c.DiscountType = model.DiscountType(dtype)
    c.MaxDiscount = nullInt64(maxDisc)
    c.MinOrderAmount = nullInt64(minOrder)
    c.UsageLimit = nullInt(limit)
    c.PerUserLimit = nullInt(perUser)
    c.StartsAt = nullTime(starts)
    c.EndsAt = nullTime(ends)

    rows, err := db.QueryContext(ctx, `SELECT destination_id FROM coupon_destinations WHERE coupon_id = ? ORDER BY destination_id`, c.ID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        c.DestinationIDs = append(c.DestinationIDs, id)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return &c, nil
}

// CountUsageByUser returns how many times a user has redeemed a coupon.
func (r *CouponRepo) CountUsageByUser(ctx context.Context, tx *sql.Tx, couponID, userID uint64) (int, error) {
    var n int
    err := pick(r.db, tx).QueryRowContext(ctx,
        `SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = ? AND user_id = ?`, couponID, userID).Scan(&n)
    return n, err
}

// IncrementUsageTx bumps used_count while the global limit still has room.
// It returns ErrConflict when the limit was reached by a concurrent booking.
func (r *CouponRepo) IncrementUsageTx(ctx context.Context, tx *sql.Tx, couponID uint64) error {
    const q = `UPDATE coupons SET used_count = used_count + 1
               WHERE id = ? AND (usage_limit IS NULL OR used_count < usage_limit)`
    res, err := pick(r.db, tx).ExecContext(ctx, q, couponID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrConflict
    }
    return nil
}

// CreateUsageTx records one redemption.
func (r *CouponRepo) CreateUsageTx(ctx context.Context, tx *sql.Tx, u *model.CouponUsage) error {
    const q = `INSERT INTO coupon_usages (coupon_id, user_id, booking_id, discount_amount, created_at)
               VALUES (?, ?, ?, ?, ?)`
    res, err := pick(r.db, tx).ExecContext(ctx, q, u.CouponID, u.UserID, u.BookingID, u.DiscountAmount, u.CreatedAt)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    u.ID = uint64(id)
    return nil
}
