// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"orderdesk/internal/config"
	"orderdesk/internal/exchange"
	"orderdesk/internal/exchange/binance"
	"orderdesk/internal/exchange/rest"
	"orderdesk/internal/exchange/simulated"
	"orderdesk/internal/metrics"
	"orderdesk/internal/order/repository"
	"orderdesk/internal/order/service"
	orderhttp "orderdesk/internal/order/transport/http"
	"orderdesk/pkg/db"
	"orderdesk/pkg/logger"
	"orderdesk/pkg/middleware"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "orderdesk: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(logger.Options{App: cfg.AppName, Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	if !cfg.DotEnvLoaded {
		log.Warn(".env file not found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DSN(), db.Options{MaxOpenConns: cfg.DB.MaxConns})
	if err != nil {
		log.Error("Database connection failed", zap.Error(err))
		return err
	}
	defer database.Close()
	log.Info("Connected to PostgreSQL",
		zap.String("host", cfg.DB.Host),
		zap.String("database", cfg.DB.Name),
		zap.Int("max_conns", cfg.DB.MaxConns),
	)

	applied, err := db.NewMigrator(database, cfg.MigrationsDir, log).ApplyAll(ctx)
	if err != nil {
		log.Error("Migrations failed", zap.Error(err))
		return err
	}
	log.Info("Schema up to date", zap.Int("applied", len(applied)))

	// --- ИНИЦИАЛИЗАЦИЯ СЛОЁВ ---
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	gateway, err := newGateway(cfg.Exchange, log)
	if err != nil {
		return fmt.Errorf("exchange: %w", err)
	}
	if bg, ok := gateway.(*binance.Gateway); ok {
		if _, err := bg.SyncTime(ctx); err != nil {
			log.Warn("Binance time sync failed, using local clock", zap.Error(err))
		}
		go bg.RunTimeSync(ctx, 5*time.Minute)
	}
	gateway = exchange.Instrument(gateway, m, log)
	log.Info("Exchange gateway ready", zap.String("venue", gateway.Venue()))

	orderRepo := repository.NewPostgresOrderRepository(database, repository.NewTxManager(database, log))
	orderService := service.NewService(orderRepo, gateway, m)
	orderHandler := orderhttp.NewHandler(orderService, log)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMin, time.Minute, log)
	limiterDone := make(chan struct{})
	defer close(limiterDone)
	go limiter.Run(limiterDone)

	// --- РОУТЕР ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.Metrics(m))

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Group(func(api chi.Router) {
		api.Use(limiter.Middleware)
		api.Use(middleware.ValidateRequest)
		orderHandler.Routes(api)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server running", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Server failed", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received, starting graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
		return err
	}

	log.Info("Server stopped")
	return nil
}

func newGateway(cfg config.ExchangeConfig, log *zap.Logger) (exchange.Gateway, error) {
	switch cfg.Driver {
	case config.DriverBinance:
		return binance.NewGateway(binance.Config{
			APIKey:    cfg.APIKey,
			SecretKey: cfg.SecretKey,
			BaseURL:   cfg.BaseURL,
			Timeout:   cfg.Timeout,
		}, log), nil
	case config.DriverREST:
		client, err := rest.NewClient(rest.Config{
			APIKey:    cfg.APIKey,
			SecretKey: cfg.SecretKey,
			BaseURL:   cfg.BaseURL,
			ProxyAddr: cfg.ProxyAddr,
			Timeout:   cfg.Timeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.DriverSimulated, "":
		return simulated.NewGateway(cfg.Latency, log), nil
	default:
		return nil, fmt.Errorf("unknown exchange driver %q", cfg.Driver)
	}
}
