package middleware

import (
    "context"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ecotour-booking/internal/logger"
)

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an ID (the caller's X-Request-ID or
// a fresh UUID), makes it available to service logs through the request
// context, and writes one access log line when the handler returns.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            req := c.Request()
            id := req.Header.Get(RequestIDHeader)
            if id == "" || len(id) > 64 {
                id = uuid.NewString()
            }
            c.Response().Header().Set(RequestIDHeader, id)
            c.SetRequest(req.WithContext(context.WithValue(req.Context(), logger.RequestIDKey, id)))

            err := next(c)
            if err != nil {
                // Let echo write the error response so the status is final.
                c.Error(err)
            }

            fields := map[string]interface{}{
                "method":      req.Method,
                "path":        c.Path(),
                "status":      c.Response().Status,
                "duration_ms": time.Since(start).Milliseconds(),
                "user":        userID(c),
                "ip":          c.RealIP(),
            }
            entry := log.WithContext(c.Request().Context()).WithFields(fields)
            switch {
            case c.Response().Status >= 500:
                entry.Error("request")
            case c.Response().Status >= 400:
                entry.Warn("request")
            default:
                entry.Info("request")
            }
            return nil
        }
    }
}
