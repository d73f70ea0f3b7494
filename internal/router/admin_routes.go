package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ecotour-booking/internal/middleware"
	"github.com/iliyamo/ecotour-booking/internal/model"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1/admin: walk-in
// bookings, manual status changes, hard delete and manual validation.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Bookings ----
	g.POST("/bookings", d.Bookings.AdminCreate)
	g.PATCH("/bookings/:id/status", d.Bookings.UpdateStatus)
	g.DELETE("/bookings/:id", d.Bookings.Delete)

	// ---- Tickets ----
	g.POST("/tickets/:id/validate", d.Scan.ManualValidate)
}
