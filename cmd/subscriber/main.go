package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/callpilot/console-realtime/internal/config"
	"github.com/callpilot/console-realtime/internal/database"
	"github.com/callpilot/console-realtime/internal/events"
	"github.com/callpilot/console-realtime/internal/journal"
	"github.com/callpilot/console-realtime/internal/retry"
	"github.com/callpilot/console-realtime/internal/version"
	"github.com/callpilot/console-realtime/pkg/subscription"
)

// errExhausted ends the process when the subscription gives up reconnecting.
var errExhausted = errors.New("reconnect attempts exhausted")

func main() {
	configPath := flag.String("config", "configs/subscriber.local.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "log at debug level")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Bootstrap logger until the config says otherwise
	logger := newLogger(config.LogConfig{Level: config.DefaultLogLevel, Format: config.DefaultLogFormat}, *verbose)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = newLogger(cfg.Log, *verbose).With("instance_id", cfg.Instance.ID)
	slog.SetDefault(logger)

	logger.Info("starting subscriber",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("subscriber failed", "error", err)
		if errors.Is(err, errExhausted) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	logger.Info("subscriber stopped")
}

// run connects the subscription and blocks until ctx ends or the
// subscription gives up.
func run(ctx context.Context, cfg *config.SubscriberConfig, logger *slog.Logger) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var recorder *journal.Writer
	if cfg.Journal.Enabled {
		db := cfg.Journal.Database
		logger.Info("connecting to journal database",
			"host", db.Host,
			"port", db.Port,
			"database", db.Name,
		)

		pool, err := database.Connect(ctx, db, cfg.Instance.ID)
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer pool.Close()

		if err := journal.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		recorder = journal.NewWriter(journal.Config{
			SubscriptionID: cfg.Subscription.ID,
			BatchSize:      cfg.Journal.BatchSize,
			FlushInterval:  cfg.Journal.FlushInterval,
			BufferSize:     cfg.Journal.BufferSize,
		}, pool, logger.With("component", "journal"))

		if err := recorder.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := recorder.Stop(stopCtx); err != nil {
				logger.Error("journal stop failed", "error", err)
			}
		}()
	}

	opts := []subscription.Option{
		subscription.WithLogger(logger),
		subscription.WithPolicy(buildPolicy(cfg.Reconnect)),
		subscription.WithMaxAttempts(cfg.Reconnect.MaxAttempts),
		subscription.WithBaseDelay(cfg.Reconnect.BaseDelay),
		subscription.WithToken(cfg.Endpoint.Token),
		subscription.WithHandshakeTimeout(cfg.Endpoint.HandshakeTimeout),
		subscription.WithWriteTimeout(cfg.Endpoint.WriteTimeout),
		subscription.WithPing(cfg.Endpoint.PingInterval, cfg.Endpoint.PingTimeout),
		subscription.WithExhaustedHandler(func(attempts int) {
			logger.Error("subscription gave up", "attempts", attempts)
			cancel(errExhausted)
		}),
		subscription.WithStateHandler(func(from, to subscription.State) {
			logger.Debug("subscription state", "from", from, "to", to)
		}),
	}
	if recorder != nil {
		opts = append(opts, subscription.WithObserver(recorder.Record))
	}

	client, err := subscription.New(cfg.Endpoint.BaseURL, subscription.Descriptor{
		ID:         cfg.Subscription.ID,
		EventTypes: cfg.Subscription.EventTypes,
	}, opts...)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Health.Port > 0 {
		var stats journalStats
		if recorder != nil {
			stats = recorder
		}
		healthServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
			Handler: newHealthHandler(cfg.Health.Path, client, stats),
		}

		g.Go(func() error {
			logger.Info("starting health server", "port", cfg.Health.Port, "path", cfg.Health.Path)
			if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return healthServer.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer client.Disconnect()

		registerPrinters(client, cfg.Subscription.EventTypes, logger)
		client.On(events.TypePong, func(json.RawMessage) {
			logger.Debug("pong received")
		})

		if err := client.Connect(gctx); err != nil {
			return fmt.Errorf("connect subscription: %w", err)
		}

		logger.Info("subscriber running",
			"subscription_id", cfg.Subscription.ID,
			"url", client.URL(),
		)
		client.Send(events.PingCommand)

		<-gctx.Done()
		logger.Info("shutting down...")
		return nil
	})

	err = g.Wait()
	if cause := context.Cause(ctx); errors.Is(cause, errExhausted) {
		return errExhausted
	}
	return err
}

// buildPolicy maps the reconnect section to a retry.Policy.
func buildPolicy(cfg config.ReconnectConfig) retry.Policy {
	if cfg.Strategy == config.StrategyExponential {
		return retry.Exponential{
			MaxDelay: cfg.MaxDelay,
			Factor:   cfg.Factor,
			Jitter:   cfg.Jitter,
		}
	}
	return retry.Linear{MaxDelay: cfg.MaxDelay}
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig, verbose bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
