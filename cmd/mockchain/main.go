// Command mockchain serves the simulated ledger, verifier and minter over
// HTTP so the server can run against remote collaborators locally.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"nexuscred/internal/ledger"
	"nexuscred/internal/platform/logger"
)

const (
	defaultPort   = "8545"
	defaultAPIKey = "mockchain-dev-key"
)

func main() {
	log := logger.New(getEnv("LOG_LEVEL", "info"))
	port := getEnv("PORT", defaultPort)
	latency := time.Duration(getEnvInt("LATENCY_MS", 0)) * time.Millisecond

	gw := ledger.NewGateway(ledger.GatewayConfig{
		APIKey:  getEnv("API_KEY", defaultAPIKey),
		Latency: latency,
		Logger:  log,
	})
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	log.Info("mockchain listening", "port", port, "latency", latency.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("mockchain exited with error", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v >= 0 {
		return v
	}
	return def
}
