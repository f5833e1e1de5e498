package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/coupon"
	"github.com/xenking/storefront-orders/internal/domain/giftcard"
	"github.com/xenking/storefront-orders/internal/domain/inventory"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/refund"
	"github.com/xenking/storefront-orders/internal/events"
	"github.com/xenking/storefront-orders/internal/handler"
	"github.com/xenking/storefront-orders/pkg/health"
	"github.com/xenking/storefront-orders/pkg/httpmiddleware"
)

const serviceName = "storefront-orders"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("storage", cfg.Storage.Driver))
	ctx = zctx.Base(ctx, lg)

	defaults, err := cfg.Pricing.Settings()
	if err != nil {
		return errors.Wrap(err, "pricing settings")
	}

	st, err := openStorage(ctx, cfg.Storage, defaults)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer st.close()

	// Health check service.
	healthSvc := health.New()
	if st.pinger != nil {
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(st.pinger))
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second), health.WithThresholds(3, 1))

	// Order events.
	var publisher order.Publisher = order.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		defer func() {
			if err := kp.Close(); err != nil {
				lg.Error("Close kafka publisher", zap.Error(err))
			}
		}()
		publisher = kp
		healthSvc.AddReadinessCheck("kafka", 5*time.Second, health.KafkaCheck(cfg.Kafka.Brokers), health.WithThresholds(3, 1))
		lg.Info("Publishing order events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	h, err := newHandler(st, publisher, m.MeterProvider(), m.TracerProvider())
	if err != nil {
		return err
	}
	e := newEcho(ctx, lg, cfg, h, healthSvc, m.MeterProvider(), m.TracerProvider())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           e,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newHandler builds the domain services on top of st.
func newHandler(st *stores, publisher order.Publisher, mp metric.MeterProvider, tp trace.TracerProvider) (*handler.Handler, error) {
	coupons := coupon.NewLedger(st.coupons)
	giftCards := giftcard.NewLedger(st.giftCards)
	stock := inventory.NewCoordinator(st.inventory)

	orders, err := order.NewService(order.Deps{
		Products:       st.products,
		Coupons:        coupons,
		GiftCards:      giftCards,
		Inventory:      stock,
		Settings:       st.settings,
		Orders:         st.orders,
		Publisher:      publisher,
		MeterProvider:  mp,
		TracerProvider: tp,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}

	refunds, err := refund.NewProcessor(refund.Deps{
		Orders:         st.orders,
		Inventory:      stock,
		Publisher:      publisher,
		MeterProvider:  mp,
		TracerProvider: tp,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create refund processor")
	}

	return handler.NewHandler(orders, refunds, coupons, giftCards), nil
}

func newEcho(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	h *handler.Handler,
	healthSvc *health.Health,
	mp metric.MeterProvider,
	tp trace.TracerProvider,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler

	isProbe := func(c echo.Context) bool {
		switch c.Request().URL.Path {
		case "/livez", "/readyz":
			return true
		default:
			return false
		}
	}

	e.Use(
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.LogRequests(),
		httpmiddleware.Instrument(serviceName, mp, tp),
		httpmiddleware.Recovery(),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderXRequestID},
			ExposeHeaders:    []string{echo.HeaderXRequestID},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			Skipper: isProbe,
		}),
		middleware.BodyLimit(cfg.BodyLimit),
	)

	healthSvc.Register(e)
	h.Register(e.Group("/api"))
	return e
}
