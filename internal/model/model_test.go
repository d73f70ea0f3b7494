package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

var allBookingStatuses = []BookingStatus{
    BookingPending, BookingAwaitingCash, BookingPaid, BookingConfirmed,
    BookingUsed, BookingCancelled, BookingExpired, BookingRefunded,
}

func TestBookingStatus_TerminalStatesAbsorb(t *testing.T) {
    for _, from := range []BookingStatus{BookingUsed, BookingCancelled, BookingExpired, BookingRefunded} {
        for _, to := range allBookingStatuses {
            assert.Falsef(t, from.CanTransitionTo(to), "%s -> %s", from, to)
        }
    }
}

func TestBookingStatus_Transitions(t *testing.T) {
    cases := []struct {
        from, to BookingStatus
        ok       bool
    }{
        {BookingPending, BookingPaid, true},
        {BookingPending, BookingConfirmed, true},
        {BookingPending, BookingAwaitingCash, true},
        {BookingAwaitingCash, BookingPaid, true},
        {BookingPending, BookingExpired, true},
        {BookingAwaitingCash, BookingCancelled, true},
        {BookingPaid, BookingUsed, true},
        {BookingConfirmed, BookingUsed, true},
        {BookingPaid, BookingCancelled, true},
        {BookingConfirmed, BookingRefunded, true},
        {BookingPending, BookingUsed, false},
        {BookingPaid, BookingExpired, false},
        {BookingPaid, BookingPending, false},
        {BookingAwaitingCash, BookingPending, false},
        {BookingPending, BookingPending, false},
    }
    for _, tc := range cases {
        assert.Equalf(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
    }
}

func TestParseBookingStatus(t *testing.T) {
    for _, s := range allBookingStatuses {
        got, err := ParseBookingStatus(string(s))
        require.NoError(t, err)
        assert.Equal(t, s, got)
    }
    _, err := ParseBookingStatus("archived")
    assert.Error(t, err)
}

func TestTicketStatus_OnlyValidMoves(t *testing.T) {
    all := []TicketStatus{TicketValid, TicketUsed, TicketExpired, TicketCancelled}
    for _, from := range all {
        for _, to := range all {
            want := from == TicketValid && to != TicketValid
            assert.Equalf(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
        }
    }
}

func ptr[T any](v T) *T { return &v }

func TestCoupon_CalculateDiscount(t *testing.T) {
    save10 := Coupon{DiscountType: DiscountPercentage, Value: 10, MaxDiscount: ptr(int64(50000))}
    assert.Equal(t, int64(50000), save10.CalculateDiscount(1_000_000), "capped at max_discount")
    assert.Equal(t, int64(10000), save10.CalculateDiscount(100_000), "under the cap")

    fixed := Coupon{DiscountType: DiscountFixed, Value: 75000}
    assert.Equal(t, int64(40000), fixed.CalculateDiscount(40000), "never exceeds the order")
    assert.Equal(t, int64(0), fixed.CalculateDiscount(0))

    half := Coupon{DiscountType: DiscountPercentage, Value: 12.5}
    assert.Equal(t, int64(1250), half.CalculateDiscount(10000))
}

func TestCoupon_CalculateDiscount_Bounds(t *testing.T) {
    coupons := []Coupon{
        {DiscountType: DiscountPercentage, Value: 150},
        {DiscountType: DiscountPercentage, Value: 33, MaxDiscount: ptr(int64(7000))},
        {DiscountType: DiscountFixed, Value: 5000, MaxDiscount: ptr(int64(2000))},
        {DiscountType: DiscountFixed, Value: 1e9},
    }
    for _, c := range coupons {
        for _, amount := range []int64{1, 999, 10_000, 123_457, 5_000_000} {
            d := c.CalculateDiscount(amount)
            assert.LessOrEqual(t, d, amount)
            assert.GreaterOrEqual(t, d, int64(0))
            if c.MaxDiscount != nil {
                assert.LessOrEqual(t, d, *c.MaxDiscount)
            }
        }
    }
}

func TestCoupon_AllowsDestination(t *testing.T) {
    assert.True(t, Coupon{}.AllowsDestination(3), "empty allow-list admits all")
    c := Coupon{DestinationIDs: []uint64{1, 2}}
    assert.True(t, c.AllowsDestination(2))
    assert.False(t, c.AllowsDestination(3))
}

func TestMapGatewayStatus(t *testing.T) {
    cases := map[[2]string]PaymentStatus{
        {"settlement", ""}:       PaymentSuccess,
        {"capture", "accept"}:    PaymentSuccess,
        {"capture", "challenge"}: PaymentChallenge,
        {"expire", ""}:           PaymentExpired,
        {"cancel", ""}:           PaymentFailed,
        {"deny", ""}:             PaymentDeny,
        {"refund", ""}:           PaymentRefunded,
        {"PENDING", ""}:          PaymentPending,
    }
    for in, want := range cases {
        got, err := MapGatewayStatus(in[0], in[1])
        require.NoError(t, err)
        assert.Equal(t, want, got, in)
    }
    _, err := MapGatewayStatus("authorize", "")
    assert.Error(t, err)
}

func TestPrincipal(t *testing.T) {
    var anon Principal
    assert.True(t, anon.Anonymous())
    assert.Nil(t, anon.UserRef())
    assert.False(t, anon.IsStaff())

    op := Principal{UserID: 4, Role: RoleOperator}
    require.NotNil(t, op.UserRef())
    assert.Equal(t, uint64(4), *op.UserRef())
    assert.True(t, op.IsStaff())
}

func TestVisitorCounts_Total(t *testing.T) {
    v := VisitorCounts{Adults: 2, Children: 3, Seniors: 1}
    assert.Equal(t, 6, v.Total())
}
