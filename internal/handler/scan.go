package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ecotour-booking/internal/logger"
    "github.com/iliyamo/ecotour-booking/internal/middleware"
    "github.com/iliyamo/ecotour-booking/internal/validators"
)

// ScanHandler serves the gate device.  Every business outcome (wrong
// date, already used, payment required) is a 200 with a status field;
// only malformed requests and faults produce error codes.
type ScanHandler struct {
    svc ScanAPI
    log *logger.Logger
}

func NewScanHandler(svc ScanAPI, log *logger.Logger) *ScanHandler {
    if svc == nil {
        panic("nil service passed to NewScanHandler")
    }
    if log == nil {
        log = logger.Nop()
    }
    return &ScanHandler{svc: svc, log: log}
}

// Scan handles POST /v1/scan.
func (h *ScanHandler) Scan(c echo.Context) error {
    var req validators.ScanRequest
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }
    res, err := h.svc.ScanCode(c.Request().Context(), middleware.PrincipalFrom(c), req.Code)
    if err != nil {
        return respondError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Cash handles POST /v1/scan/bookings/:id/cash.
func (h *ScanHandler) Cash(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    res, err := h.svc.ProcessCashPayment(c.Request().Context(), middleware.PrincipalFrom(c), id)
    if err != nil {
        return respondError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Validate handles POST /v1/scan/tickets/:id/validate.
func (h *ScanHandler) Validate(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
    }
    res, err := h.svc.ValidateEntry(c.Request().Context(), middleware.PrincipalFrom(c), id)
    if err != nil {
        return respondError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, res)
}

// ManualValidate handles POST /v1/admin/tickets/:id/validate.
func (h *ScanHandler) ManualValidate(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
    }
    res, err := h.svc.ManualValidate(c.Request().Context(), middleware.PrincipalFrom(c), id)
    if err != nil {
        return respondError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, res)
}
