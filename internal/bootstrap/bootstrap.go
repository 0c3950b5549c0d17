// Package bootstrap wires configuration into the processors, stores and
// services shared by the API server and the operator CLI.
package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"StorefrontAPI/external/midtrans"
	"StorefrontAPI/external/orangemoney"
	"StorefrontAPI/external/paypal"
	"StorefrontAPI/external/wave"
	"StorefrontAPI/internal/cache"
	"StorefrontAPI/internal/config"
	"StorefrontAPI/internal/events"
	"StorefrontAPI/internal/payment"
	"StorefrontAPI/internal/repository"
	"StorefrontAPI/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewLogger builds the process logger from log_level / log_format.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Registry builds every processor from its configuration block. Processors
// without credentials are still registered; IsConfigured gates their use.
func Registry(cfg *config.Config, log *slog.Logger) *payment.Registry {
	p := cfg.Payments.Providers
	timeout := cfg.Payments.HTTPTimeout

	reg := payment.NewRegistry(
		paypal.New(p.PayPal, payment.NewHTTPClient(paypal.Name, timeout)),
		wave.New(p.Wave, payment.NewHTTPClient(wave.Name, timeout)),
		orangemoney.New(p.OrangeMoney, payment.NewHTTPClient(orangemoney.Name, timeout)),
		midtrans.New(p.Midtrans),
	)
	for _, name := range reg.Names() {
		proc, _ := reg.Get(name)
		log.Info("payment processor registered", "provider", name, "configured", proc.IsConfigured())
	}
	return reg
}

// Services is the assembled payment core.
type Services struct {
	Store     *repository.Store
	Registry  *payment.Registry
	Ledger    *services.LedgerService
	Payments  *services.PaymentService
	Callbacks *services.CallbackService
	Refunds   *services.RefundService
	Orders    *services.OrderService
	Sweep     *services.SweepService
	Auth      *services.AuthService

	closers []func() error
}

// NewServices wires the core. Redis and Kafka are optional: without them the
// ledger guards alone provide idempotency and events go to the log.
func NewServices(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) *Services {
	store := repository.NewStore(pool)
	customers := repository.NewCustomerRepository(pool)
	reg := Registry(cfg, log)

	ledger := services.NewLedgerService(store, log)
	rec := services.NewReconciler(log)
	callbacks := services.NewCallbackService(reg, store, ledger, rec, log)
	refunds := services.NewRefundService(reg, store, ledger, rec, log)

	s := &Services{
		Store:     store,
		Registry:  reg,
		Ledger:    ledger,
		Payments:  services.NewPaymentService(reg, store, customers, ledger, log),
		Callbacks: callbacks,
		Refunds:   refunds,
		Orders:    services.NewOrderService(store, customers),
		Sweep:     services.NewSweepService(store, callbacks, refunds, log),
		Auth:      services.NewAuthService(repository.NewAuthRepository(pool)),
	}

	var notifier services.Notifier = events.LogNotifier{Log: log}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Warn("kafka unavailable, payment events go to the log", "err", err)
		} else {
			notifier = producer
			s.closers = append(s.closers, producer.Close)
		}
	}
	callbacks.Notifier = notifier
	refunds.Notifier = notifier

	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, callback guard disabled", "err", err)
		} else {
			callbacks.Guard = cache.NewRedisGuard(rdb)
			s.closers = append(s.closers, rdb.Close)
		}
	}
	return s
}

// Close releases the optional Kafka and Redis clients.
func (s *Services) Close() {
	for _, c := range s.closers {
		_ = c()
	}
}
