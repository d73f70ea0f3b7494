package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ecotour-booking/internal/config"
	"github.com/iliyamo/ecotour-booking/internal/handler"
	"github.com/iliyamo/ecotour-booking/internal/logger"
	"github.com/iliyamo/ecotour-booking/internal/middleware"
	"github.com/iliyamo/ecotour-booking/internal/model"
)

// Deps carries everything the route table needs.  Redis may be nil, which
// disables rate limiting.
type Deps struct {
	Health    *handler.HealthHandler
	Bookings  *handler.BookingHandler
	Payments  *handler.PaymentHandler
	Scan      *handler.ScanHandler
	JWTSecret string
	RateLimit config.RateLimitConfig
	Redis     *redis.Client
	Log       *logger.Logger
}

// RegisterRoutes installs the request logger and every route group.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.Use(middleware.RequestLogger(d.Log))

	// Load balancers and monitoring hit this without credentials.
	e.GET("/healthz", d.Health.Health)

	RegisterPublic(e, d)
	RegisterOperator(e, d)
	RegisterAdmin(e, d)
}

// RegisterPublic registers checkout, booking lookup, cancellation, coupon
// preview and the gateway callback.  A token is optional on checkout and
// preview; lookup and cancel need one so ownership can be checked.
func RegisterPublic(e *echo.Echo, d Deps) {
	checkout := middleware.NewTokenBucket("checkout", d.RateLimit.Checkout, d.RateLimit, d.Redis, d.Log)

	optional := middleware.OptionalJWT(d.JWTSecret)
	e.POST("/v1/bookings", d.Bookings.Create, optional, checkout)
	e.POST("/v1/coupons/validate", d.Bookings.PreviewCoupon, optional, checkout)

	// Route-level middleware keeps these from claiming every /v1 path the
	// way a second /v1 group would.
	signedIn := []echo.MiddlewareFunc{
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleVisitor, model.RoleOperator, model.RoleAdmin),
	}
	e.GET("/v1/bookings/:order_number", d.Bookings.Get, signedIn...)
	e.POST("/v1/bookings/:id/cancel", d.Bookings.Cancel, signedIn...)

	// The gateway authenticates with a shared token header, not a JWT.
	e.POST("/v1/payments/webhook", d.Payments.Webhook)
}
