package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StorefrontAPI/internal/bootstrap"
	"StorefrontAPI/internal/config"
	"StorefrontAPI/internal/db"
	"StorefrontAPI/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const tokenTTL = 24 * time.Hour

// handlers groups what the router needs from the service layer.
type handlers struct {
	payments  paymentStarter
	callbacks callbackHandler
	orders    orderReader
	refunds   refunder
	auth      authenticator
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	log := bootstrap.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ======================
	// INFRA
	// ======================
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("connect database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := bootstrap.NewServices(ctx, cfg, pool, log)
	defer svc.Close()

	// ======================
	// ECHO
	// ======================
	e := newServer(cfg, log, handlers{
		payments:  svc.Payments,
		callbacks: svc.Callbacks,
		orders:    svc.Orders,
		refunds:   svc.Refunds,
		auth:      svc.Auth,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}

func newServer(cfg *config.Config, log *slog.Logger, h handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if herr, ok := c.Get("handler_error").(error); ok {
				attrs = append(attrs, "err", herr)
			} else if v.Error != nil {
				attrs = append(attrs, "err", v.Error)
			}
			if v.Status >= http.StatusInternalServerError {
				log.Error("request", attrs...)
			} else {
				log.Info("request", attrs...)
			}
			return nil
		},
	}))
	e.Use(echomw.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	jwt := middleware.NewJWT(cfg.JWTSecret, tokenTTL)
	api := e.Group("/api")

	// ======================
	// ROUTES (ONLY REGISTRATION)
	// ======================
	registerAuthRoutes(api, h.auth, jwt)
	registerPaymentRoutes(api, jwt, h.payments, h.callbacks, h.orders)
	registerCallbackRoutes(api, h.callbacks, cfg.Payments.StorefrontURL, webhookLimiter(cfg))
	registerOrderRoutes(api, jwt, h.orders, h.refunds)

	return e
}

// webhookLimiter throttles provider deliveries per client IP.
func webhookLimiter(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.Payments.WebhookRate <= 0 {
		return nil
	}
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.Payments.WebhookRate),
		Burst:     cfg.Payments.WebhookBurst,
		ExpiresIn: 3 * time.Minute,
	})
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded"})
		},
	})
}
