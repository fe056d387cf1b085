package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"nexuscred/internal/platform/config"
	"nexuscred/internal/platform/logger"
)

const (
	shutdownTimeout     = 10 * time.Second
	poolStatsInterval   = 15 * time.Second
	outboxRetention     = 7 * 24 * time.Hour
	outboxCleanupPeriod = time.Hour
)

// main wires dependencies, exposes the router, and keeps the lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	log.Info("initializing nexuscred",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"database", cfg.DatabaseURL != "",
		"redis", cfg.Redis.Enabled(),
		"kafka", cfg.Kafka.Enabled(),
		"simulated_ledger", cfg.Ledger.Simulated(),
	)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close(log)

	app := buildApp(cfg, log, infra, prometheus.DefaultRegisterer)
	defer app.Close()

	handler, err := app.router(cfg, log, prometheus.DefaultGatherer)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if app.relay != nil {
		app.relay.Start(gctx)
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return app.relay.Stop(stopCtx)
		})
		g.Go(func() error {
			app.maintainOutbox(gctx, log)
			return nil
		})
	}

	if app.rateWindows != nil {
		g.Go(func() error {
			app.sweepRateWindows(gctx, cfg.RateLimit.Window, log)
			return nil
		})
	}

	if infra.redis != nil {
		g.Go(func() error {
			ticker := time.NewTicker(poolStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					infra.redis.RecordPoolStats()
				}
			}
		})
	}

	return g.Wait()
}
