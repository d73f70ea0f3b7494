package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ecotour-booking/internal/middleware"
	"github.com/iliyamo/ecotour-booking/internal/model"
)

// RegisterOperator registers the gate endpoints under /v1/scan.  Operators
// and admins may use them.  The scan bucket is sized for a group arriving
// at once.
func RegisterOperator(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1/scan",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleOperator, model.RoleAdmin),
		middleware.NewTokenBucket("scan", d.RateLimit.Scan, d.RateLimit, d.Redis, d.Log),
	)
	g.POST("", d.Scan.Scan)
	g.POST("/bookings/:id/cash", d.Scan.Cash)
	g.POST("/tickets/:id/validate", d.Scan.Validate)
}
