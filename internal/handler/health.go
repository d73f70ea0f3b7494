package handler // declare the package name; contains HTTP handlers

import (
    "context"  // ping takes a bounded context
    "net/http" // net/http provides status codes and response helpers
    "time"

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// HealthHandler answers load balancer probes.
type HealthHandler struct {
    db Pinger
}

// NewHealthHandler builds a probe handler; db may be nil, in which case
// only liveness is reported.
func NewHealthHandler(db Pinger) *HealthHandler { return &HealthHandler{db: db} }

// Health returns 200 "ok" while the process is up and the database
// answers a ping, and 503 otherwise.
func (h *HealthHandler) Health(c echo.Context) error {
    if h.db != nil {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := h.db.PingContext(ctx); err != nil {
            return c.String(http.StatusServiceUnavailable, "database unavailable")
        }
    }
    return c.String(http.StatusOK, "ok")
}
