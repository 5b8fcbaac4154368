package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/littleCareless/dish-tab-time/internal/api"
	"github.com/littleCareless/dish-tab-time/internal/config"
	"github.com/littleCareless/dish-tab-time/internal/dns"
	"github.com/littleCareless/dish-tab-time/internal/enforce"
	"github.com/littleCareless/dish-tab-time/internal/events"
	"github.com/littleCareless/dish-tab-time/internal/metrics"
	"github.com/littleCareless/dish-tab-time/internal/policy"
	"github.com/littleCareless/dish-tab-time/internal/stats"
	redisstore "github.com/littleCareless/dish-tab-time/internal/storage/redis"
	"github.com/littleCareless/dish-tab-time/internal/systemd"
	"github.com/littleCareless/dish-tab-time/internal/tracker"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}

	logger.Info().Str("version", Version).Msg("Starting tabtimed")

	store, err := redisstore.Open(cfg.Redis, cfg.Tracking.RetentionDays)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	tickInterval, err := time.ParseDuration(cfg.Tracking.TickInterval)
	if err != nil {
		return fmt.Errorf("invalid tick_interval: %w", err)
	}
	cooldown, err := time.ParseDuration(cfg.Limits.NotificationCooldown)
	if err != nil {
		return fmt.Errorf("invalid notification_cooldown: %w", err)
	}

	clock := policy.RealClock{}
	matcher := policy.NewMatcher(cfg.Limits.RegexCacheSize, logger)
	evaluator := policy.NewEvaluator(clock, matcher)

	var dnsServer *dns.Server
	var blocker enforce.Blocker
	if cfg.DNS.Enabled {
		dnsServer, err = dns.NewServer(cfg.DNS, logger)
		if err != nil {
			return fmt.Errorf("failed to create DNS server: %w", err)
		}
		blocker = dnsServer
	}

	notifier := enforce.NewLogNotifier(logger)
	controller := enforce.NewController(store.Limits(), clock, notifier, blocker, cooldown, logger)

	engine := tracker.NewEngine(store.Records(), store.Limits(), evaluator, controller, clock, logger)
	dispatcher := events.NewDispatcher(engine, clock, tickInterval, cfg.Tracking.EventBuffer, logger)
	aggregator := stats.NewAggregator(store.Records(), clock)
	sweeper := tracker.NewSweeper(store.Records(), cfg.Tracking.RetentionDays, clock, logger)

	sockets := systemd.InheritedSockets(logger)

	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort)
	apiServer := api.NewServer(apiAddr, dispatcher, aggregator, evaluator, controller, store.Limits(), clock, logger)
	apiServer.DefaultUnlockMinutes = cfg.Limits.DefaultUnlockMinutes

	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 4)
	dispatcherDone := make(chan struct{})

	go func() {
		dispatcher.Run(ctx)
		close(dispatcherDone)
	}()

	go sweeper.Start(ctx)

	go func() {
		if sockets.API != nil {
			errChan <- apiServer.Serve(sockets.API)
		} else {
			errChan <- apiServer.Start()
		}
	}()

	go func() {
		if sockets.Metrics != nil {
			errChan <- metricsServer.Serve(sockets.Metrics)
		} else {
			errChan <- metricsServer.Start()
		}
	}()

	if dnsServer != nil {
		go func() {
			if sockets.DNSUDP != nil || sockets.DNSTCP != nil {
				errChan <- dnsServer.ServeListeners(sockets.DNSUDP, sockets.DNSTCP)
			} else {
				errChan <- dnsServer.Start()
			}
		}()
	}

	systemd.NotifyReady(logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errChan:
		if err != nil {
			logger.Error().Err(err).Msg("Server failed")
		}
	}

	systemd.NotifyStopping(logger)
	cancel()

	// The dispatcher flushes the open interval before exiting
	select {
	case <-dispatcherDone:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("Dispatcher did not stop in time")
	}

	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("API server shutdown failed")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Metrics server shutdown failed")
	}
	if dnsServer != nil {
		dnsServer.Stop()
	}

	logger.Info().Msg("Shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().Timestamp().Logger(), nil
}
