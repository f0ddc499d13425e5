package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nlc9-swarm/internal/gateway"
	"nlc9-swarm/internal/metrics"
	"nlc9-swarm/internal/nlc9"
	"nlc9-swarm/internal/util"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load() // best-effort

	log := util.NewLogger(envOr("NLC9_LOG_LEVEL", "info"))

	if addr := os.Getenv("NLC9_METRICS_ADDR"); addr != "" {
		_ = metrics.Serve(addr)
		log.Info().Str("addr", addr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := gateway.New(nlc9.New(log), log).Serve(envOr("NLC9_ADDR", ":8099"))

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
