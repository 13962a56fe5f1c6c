package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"smena/internal/api"
	"smena/internal/config"
	"smena/internal/events"
	"smena/internal/export"
	"smena/internal/ledger"
	"smena/internal/metrics"
	"smena/internal/rates"
	"smena/internal/service"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("SMENA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve business timezone")
	}

	if cfg.Redis.Address == "" {
		logger.Fatal().Msg("set redis.address in config")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := ledger.NewRedisStore(rdb)

	rateStore, err := rates.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open rates db error")
	}
	defer rateStore.Close()

	bus := events.NewBus()
	for _, eventType := range []string{service.EventClockIn, service.EventClockOut, service.EventCorrected} {
		et := eventType
		bus.Subscribe(et, func(ev events.Event) error {
			logger.Info().Str("event", et).RawJSON("payload", ev.Payload).Msg("ledger event")
			return nil
		})
	}

	clockSvc := service.NewClockService(store, bus, loc, &logger)
	querySvc := service.NewQueryService(store, loc, &logger)
	correctionSvc := service.NewCorrectionService(store, rateStore, bus, loc, &logger)
	payrollSvc := service.NewPayrollService(querySvc, rateStore, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, store, rateStore, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Payroll.ExportEnabled {
		exporter := export.NewService(export.Config{
			ReportsDir:    cfg.Payroll.ReportsDir,
			Restaurants:   cfg.Payroll.Restaurants,
			ExportOnStart: cfg.Payroll.ExportOnStart,
			Location:      loc,
		}, payrollSvc, export.NewExcelizeWriter, &logger)
		exporter.Start()
		defer exporter.Stop()
	}

	apiSrv := api.NewHTTPServer(clockSvc, querySvc, correctionSvc, payrollSvc, cfg.API.APIKey, loc, &logger)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.API.Port), Handler: apiSrv.Handler()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("timezone", loc.String()).Int("port", cfg.API.Port).Msg("smena ledger started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("api server error")
	}
	logger.Info().Msg("shutting down")
}

func startHealthServer(ctx context.Context, port int, store *ledger.RedisStore, rateStore *rates.Store, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := store.Ping(ctxPing); err != nil {
			http.Error(w, "ledger not ready", http.StatusServiceUnavailable)
			return
		}
		if err := rateStore.PingContext(ctxPing); err != nil {
			http.Error(w, "rates not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
