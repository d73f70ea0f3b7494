package handler // handler defines http handlers

import (
    "context"  // service interfaces take a request context
    "errors"   // errors.Is / errors.As against service sentinels
    "net/http" // HTTP status codes
    "strconv"  // strconv converts path parameters to numeric IDs

    "github.com/labstack/echo/v4" // echo defines request context types

    "github.com/iliyamo/ecotour-booking/internal/logger"
    "github.com/iliyamo/ecotour-booking/internal/model"
    "github.com/iliyamo/ecotour-booking/internal/repository"
    "github.com/iliyamo/ecotour-booking/internal/service"
    "github.com/iliyamo/ecotour-booking/internal/validators"
)

// BookingAPI is the part of service.BookingService the HTTP layer uses.
type BookingAPI interface {
    CreateBooking(ctx context.Context, p model.Principal, in service.CreateBookingInput) (*service.BookingDetail, error)
    GetBooking(ctx context.Context, p model.Principal, orderNumber string) (*service.BookingDetail, error)
    PreviewCoupon(ctx context.Context, p model.Principal, code string, destinationID uint64, v model.VisitorCounts, veh model.VehicleCounts) (service.CouponResult, error)
    ConfirmPayment(ctx context.Context, n service.PaymentNotification) (*model.Booking, error)
    CancelBooking(ctx context.Context, p model.Principal, id uint64) (*model.Booking, error)
    UpdateStatus(ctx context.Context, p model.Principal, id uint64, target model.BookingStatus) (*model.Booking, error)
    DeleteBooking(ctx context.Context, p model.Principal, id uint64) error
}

// ScanAPI is the part of service.ScanService the HTTP layer uses.
type ScanAPI interface {
    ScanCode(ctx context.Context, p model.Principal, code string) (service.ScanResult, error)
    ProcessCashPayment(ctx context.Context, p model.Principal, bookingID uint64) (service.CashResult, error)
    ValidateEntry(ctx context.Context, p model.Principal, ticketID uint64) (service.ValidationResult, error)
    ManualValidate(ctx context.Context, p model.Principal, ticketID uint64) (service.ValidationResult, error)
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// bindAndValidate decodes the JSON body into dst and runs its validate
// tags.  On failure the 400 response has already been written and the
// returned bool is false.
func bindAndValidate(c echo.Context, dst interface{}) (bool, error) {
    if err := c.Bind(dst); err != nil {
        return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if errs := validators.ValidateStruct(dst); len(errs) > 0 {
        return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": errs})
    }
    return true, nil
}

// respondError maps service and repository errors to HTTP responses.
// Unexpected errors are logged and reported as a generic 500 so internal
// details never reach the client.
func respondError(c echo.Context, log *logger.Logger, err error) error {
    var rejected *service.CouponRejectedError
    switch {
    case errors.As(err, &rejected):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "coupon rejected", "coupon": rejected.Result})
    case errors.Is(err, service.ErrInvalidInput):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, service.ErrBookingNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
    case errors.Is(err, repository.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    case errors.Is(err, service.ErrInvalidTransition):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
    case errors.Is(err, context.DeadlineExceeded):
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request timed out"})
    }
    log.WithContext(c.Request().Context()).WithError(err).WithField("path", c.Path()).Error("request failed")
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
