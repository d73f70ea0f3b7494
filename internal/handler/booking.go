package handler

import (
    "net/http" // HTTP status codes
    "time"     // visit dates arrive as YYYY-MM-DD

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ecotour-booking/internal/logger"
    "github.com/iliyamo/ecotour-booking/internal/middleware"
    "github.com/iliyamo/ecotour-booking/internal/model"
    "github.com/iliyamo/ecotour-booking/internal/service"
    "github.com/iliyamo/ecotour-booking/internal/validators"
)

// BookingHandler serves checkout, booking detail, cancellation, coupon
// preview and the admin booking endpoints.  Authentication and role
// checks run in middleware; ownership rules are enforced by the service.
type BookingHandler struct {
    svc BookingAPI
    log *logger.Logger
}

// NewBookingHandler panics on a nil service.
func NewBookingHandler(svc BookingAPI, log *logger.Logger) *BookingHandler {
    if svc == nil {
        panic("nil service passed to NewBookingHandler")
    }
    if log == nil {
        log = logger.Nop()
    }
    return &BookingHandler{svc: svc, log: log}
}

func counts(v validators.Visitors) (model.VisitorCounts, model.VehicleCounts) {
    return model.VisitorCounts{Adults: v.Adults, Children: v.Children, Seniors: v.Seniors},
        model.VehicleCounts{Motorcycles: v.Motorcycles, Cars: v.Cars, Buses: v.Buses}
}

func toInput(r validators.CreateBookingRequest) service.CreateBookingInput {
    visit, _ := time.Parse(time.DateOnly, r.VisitDate) // format checked by the visit_date tag
    v, veh := counts(r.Visitors)
    return service.CreateBookingInput{
        DestinationID: r.DestinationID,
        VisitDate:     visit,
        Visitors:      v,
        Vehicles:      veh,
        LeaderName:    r.LeaderName,
        LeaderEmail:   r.LeaderEmail,
        LeaderPhone:   r.LeaderPhone,
        CouponCode:    r.CouponCode,
    }
}

// Create handles POST /v1/bookings.  Anonymous checkout is allowed; a
// visitor token attributes the booking to that account.
func (h *BookingHandler) Create(c echo.Context) error {
    var req validators.CreateBookingRequest
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }
    d, err := h.svc.CreateBooking(c.Request().Context(), middleware.PrincipalFrom(c), toInput(req))
    if err != nil {
        return respondError(c, h.log, err)
    }
    return c.JSON(http.StatusCreated, d)
}

// AdminCreate handles POST /v1/admin/bookings, the counter walk-in.  The
// booking may start as paid or confirmed, in which case tickets come back
// in the response.
func (h *BookingHandler) AdminCreate(c echo.Context) error {
    var req validators.AdminBookingRequest
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }
    in := toInput(req.CreateBookingRequest)
    in.InitialStatus = model.BookingStatus(req.Status)
    in.PaymentChannel = req.PaymentChannel
    d, err := h.svc.CreateBooking(c.Request().Context(), middleware.PrincipalFrom(c), in)
    if err != nil {
        return respondError(c, h.log, err)
    }
    return c.JSON(http.StatusCreated, d)
}

// Get handles GET /v1/bookings/:order_number.
func (h *BookingHandler) Get(c echo.Context) error {
    orderNumber := service.NormalizeCode(c.Param("order_number"))
    if orderNumber == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order number"})
    }
    d, err := h.svc.GetBooking(c.Request().Context(), middleware.PrincipalFrom(c), orderNumber)
    if err != nil {
        return respondError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, d)
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    b, err := h.svc.CancelBooking(c.Request().Context(), middleware.PrincipalFrom(c), id)
    if err != nil {
        return respondError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, b)
}

// PreviewCoupon handles POST /v1/coupons/validate.  A rejected coupon is a
// normal 200 response with valid=false and the reason.
func (h *BookingHandler) PreviewCoupon(c echo.Context) error {
    var req validators.CouponPreviewRequest
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }
    v, veh := counts(req.Visitors)
    res, err := h.svc.PreviewCoupon(c.Request().Context(), middleware.PrincipalFrom(c), req.Code, req.DestinationID, v, veh)
    if err != nil {
        return respondError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, res)
}

// UpdateStatus handles PATCH /v1/admin/bookings/:id/status.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    var req validators.StatusUpdateRequest
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }
    b, err := h.svc.UpdateStatus(c.Request().Context(), middleware.PrincipalFrom(c), id, model.BookingStatus(req.Status))
    if err != nil {
        return respondError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, b)
}

// Delete handles DELETE /v1/admin/bookings/:id, the hard delete.
func (h *BookingHandler) Delete(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    if err := h.svc.DeleteBooking(c.Request().Context(), middleware.PrincipalFrom(c), id); err != nil {
        return respondError(c, h.log, err)
    }
    return c.NoContent(http.StatusNoContent)
}
