package handler

import (
    "crypto/subtle" // constant-time token comparison
    "math"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ecotour-booking/internal/logger"
    "github.com/iliyamo/ecotour-booking/internal/service"
    "github.com/iliyamo/ecotour-booking/internal/validators"
)

// WebhookTokenHeader carries the shared secret on gateway callbacks.
const WebhookTokenHeader = "X-Webhook-Token"

// PaymentHandler receives payment gateway notifications.
type PaymentHandler struct {
    svc   BookingAPI
    token string
    log   *logger.Logger
}

// NewPaymentHandler builds the webhook handler.  An empty token rejects
// every callback.
func NewPaymentHandler(svc BookingAPI, token string, log *logger.Logger) *PaymentHandler {
    if svc == nil {
        panic("nil service passed to NewPaymentHandler")
    }
    if log == nil {
        log = logger.Nop()
    }
    return &PaymentHandler{svc: svc, token: token, log: log}
}

// Webhook handles POST /v1/payments/webhook.  Replayed notifications are
// harmless: the service treats a repeated settlement as a no-op.
func (h *PaymentHandler) Webhook(c echo.Context) error {
    got := c.Request().Header.Get(WebhookTokenHeader)
    if h.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req validators.PaymentWebhookRequest
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }
    gross, err := strconv.ParseFloat(req.GrossAmount, 64)
    if err != nil || gross < 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid gross_amount"})
    }
    b, err := h.svc.ConfirmPayment(c.Request().Context(), service.PaymentNotification{
        OrderNumber:       service.NormalizeCode(req.OrderID),
        TransactionID:     req.TransactionID,
        TransactionStatus: req.TransactionStatus,
        FraudStatus:       req.FraudStatus,
        Channel:           req.PaymentType,
        GrossAmount:       int64(math.Round(gross)),
    })
    if err != nil {
        return respondError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"order_number": b.OrderNumber, "status": b.Status})
}
