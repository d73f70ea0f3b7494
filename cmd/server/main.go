package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"                    // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // panic recovery and request deadlines

	"github.com/iliyamo/ecotour-booking/internal/config"
	"github.com/iliyamo/ecotour-booking/internal/database"
	"github.com/iliyamo/ecotour-booking/internal/handler"
	"github.com/iliyamo/ecotour-booking/internal/logger"
	"github.com/iliyamo/ecotour-booking/internal/queue"
	"github.com/iliyamo/ecotour-booking/internal/repository"
	"github.com/iliyamo/ecotour-booking/internal/router"
	"github.com/iliyamo/ecotour-booking/internal/service"
)

func main() {
	// A missing .env is normal in containers; real env vars still apply.
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log = logger.NewWriter(os.Stderr)
		log.WithError(err).Warn("falling back to stderr logging")
	}

	loc, err := cfg.Location()
	if err != nil {
		log.WithError(err).Fatalf("invalid site timezone")
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, database.Options{
		MaxOpenConns:    cfg.DBMaxOpen,
		MaxIdleConns:    cfg.DBMaxIdle,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		log.WithError(err).Fatalf("database connection failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.Queue.Enabled {
		publisher = queue.NewAMQPPublisher(cfg.Queue.URL, log)
		if cfg.Queue.ConsumerEnabled {
			startConsumer(ctx, cfg, log)
		}
	}

	clock := service.Clock(service.SystemClock)
	tickets := repository.NewTicketRepo(db)
	deps := service.Deps{
		Tx:          database.NewTxRunner(db),
		Bookings:    repository.NewBookingRepo(db),
		Payments:    repository.NewPaymentRepo(db),
		Tickets:     tickets,
		Coupons:     service.NewCouponService(repository.NewCouponRepo(db), clock),
		Pricer:      service.NewTariffPricer(cfg.Pricing),
		Issuer:      service.NewTicketIssuer(tickets, cfg.TicketPrefix, clock),
		Publisher:   publisher,
		Log:         log,
		Clock:       clock,
		Location:    loc,
		OrderPrefix: cfg.OrderPrefix,
		PendingTTL:  cfg.PendingTTL,
	}
	bookings := service.NewBookingService(deps)
	scans := service.NewScanService(deps)

	go bookings.RunExpirySweep(ctx, cfg.SweepInterval)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{Timeout: cfg.RequestTimeout}))
	router.RegisterRoutes(e, router.Deps{
		Health:    handler.NewHealthHandler(db),
		Bookings:  handler.NewBookingHandler(bookings, log),
		Payments:  handler.NewPaymentHandler(bookings, cfg.WebhookToken, log),
		Scan:      handler.NewScanHandler(scans, log),
		JWTSecret: cfg.JWTSecret,
		RateLimit: config.LoadRateLimitConfig(),
		Redis:     rdb,
		Log:       log,
	})

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(map[string]interface{}{"addr": addr, "env": cfg.Env, "timezone": cfg.Timezone}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatalf("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("stopped")
}

// startConsumer runs the notification consumer until ctx is cancelled.
func startConsumer(ctx context.Context, cfg config.Config, log *logger.Logger) {
	notifier, err := queue.NewFileNotifier(cfg.Queue.NotifyLogPath, cfg.Queue.BookingLogPath)
	if err != nil {
		log.WithError(err).Warn("notification logs unavailable, using main log")
		notifier = queue.NewLogNotifier(log)
	}
	consumer := queue.NewConsumer(cfg.Queue.URL, notifier, log)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("notification consumer stopped")
		}
	}()
}
