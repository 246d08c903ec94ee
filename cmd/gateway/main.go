// Command gateway serves the platform's public HTTP surface (C11): auth,
// wallet/transfer and bonus-claim endpoints behind the session and rate
// limit middleware, with notification dispatch (C12) wired to the event
// bus so auth/payment/bonus events fan out to delivery channels as they
// happen.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/coreledger/platform/internal/eventbus"
	"github.com/coreledger/platform/internal/ioc"
	"github.com/coreledger/platform/internal/notification"
	"github.com/coreledger/platform/internal/observability"
)

const serviceVersion = "0.1.0"

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
		WithGateway().
		Build()

	var subscriber *notification.Subscriber
	if err := c.Resolve(&subscriber); err != nil {
		slog.ErrorContext(ctx, "failed to resolve notification subscriber", "err", err)
		panic(err)
	}
	var bus eventbus.Bus
	if err := c.Resolve(&bus); err != nil {
		slog.ErrorContext(ctx, "failed to resolve event bus", "err", err)
		panic(err)
	}
	unsubscribe := subscriber.Attach(bus)
	defer unsubscribe()

	var handler http.Handler
	if err := c.Resolve(&handler); err != nil {
		slog.ErrorContext(ctx, "failed to resolve router", "err", err)
		panic(err)
	}

	var cfg ioc.Config
	if err := c.Resolve(&cfg); err != nil {
		slog.ErrorContext(ctx, "failed to resolve config", "err", err)
		panic(err)
	}

	var mongoClient *mongo.Client
	if err := c.Resolve(&mongoClient); err != nil {
		slog.ErrorContext(ctx, "failed to resolve mongo client", "err", err)
		panic(err)
	}

	health := observability.NewHealthService(serviceVersion)
	health.RegisterMongoDBChecker(func(checkCtx context.Context) error {
		return mongoClient.Ping(checkCtx, nil)
	})
	health.RegisterEventBusChecker(func(context.Context) error { return nil })
	health.StartBackgroundChecks(ctx, 30*time.Second)

	healthHandler := health.HTTPHandler()
	top := http.NewServeMux()
	top.Handle("/metrics", observability.Handler())
	top.Handle("/health", healthHandler)
	top.Handle("/health/live", healthHandler)
	top.Handle("/health/ready", healthHandler)
	top.Handle("/", observability.Middleware(handler))

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      top,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-shutdownChan
		slog.InfoContext(ctx, "received shutdown signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.InfoContext(ctx, "starting gateway", "port", cfg.HTTP.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.ErrorContext(ctx, "server error", "err", err)
		os.Exit(1)
	}
}
