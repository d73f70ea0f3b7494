package service

import (
    "errors"
    "fmt"
)

// Infrastructure-tier errors.  Business outcomes such as a rejected coupon
// at preview time or a wrong-date ticket are returned as result values,
// never as errors.
var (
    ErrInvalidInput      = errors.New("invalid input")
    ErrInvalidTransition = errors.New("invalid status transition")
    ErrBookingNotFound   = errors.New("booking not found")
    ErrForbidden         = errors.New("forbidden")
)

// invalidInput wraps ErrInvalidInput with a description of the problem.
func invalidInput(format string, args ...any) error {
    return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// CouponRejectedError aborts booking creation when the supplied coupon
// fails validation.  It carries the verdict so the handler can show the
// reason to the visitor.
type CouponRejectedError struct {
    Result CouponResult
}

func (e *CouponRejectedError) Error() string {
    return fmt.Sprintf("coupon rejected: %s", e.Result.Reason)
}
