// Command recovery-worker runs the Recovery Framework's periodic sweep
// (C9): every interval it looks for operations the Operation State
// Tracker (C8) has marked stuck longer than maxAge and replays each one
// through its registered Handler.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreledger/platform/internal/ioc"
	"github.com/coreledger/platform/internal/recovery"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	builder := ioc.NewContainerBuilder()
	c := builder.
		WithEnvFile().
		WithMongo().
		WithCache().
		WithEventBus().
		WithConfigStore().
		WithRepositories().
		WithDomainServices().
		Build()

	var job *recovery.Job
	if err := c.Resolve(&job); err != nil {
		slog.ErrorContext(ctx, "failed to resolve recovery job", "err", err)
		panic(err)
	}

	interval := durationEnv("RECOVERY_SWEEP_INTERVAL", time.Minute)
	maxAge := durationEnv("RECOVERY_STUCK_MAX_AGE", 5*time.Minute)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-shutdownChan
		slog.InfoContext(ctx, "received shutdown signal", "signal", sig.String())
		cancel()
	}()

	slog.InfoContext(ctx, "starting recovery worker", "interval", interval, "max_age", maxAge)
	job.Run(ctx, interval, maxAge)
	slog.InfoContext(ctx, "recovery worker stopped")
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
