// Command notifytail holds a notification channel open, logs every event and
// optionally records notifications to Postgres and Redis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/cloudcost-notify/internal/auth"
	"github.com/rickgao/cloudcost-notify/internal/channel"
	"github.com/rickgao/cloudcost-notify/internal/config"
	"github.com/rickgao/cloudcost-notify/internal/database"
	"github.com/rickgao/cloudcost-notify/internal/poller"
	"github.com/rickgao/cloudcost-notify/internal/sink"
	"github.com/rickgao/cloudcost-notify/internal/transport"
	"github.com/rickgao/cloudcost-notify/internal/version"
)

func main() {
	if err := run(); err != nil {
		slog.Error("notifytail failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "configs/notifytail.yaml", "path to config file")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the config")
	requestStats := flag.Bool("request-stats", false, "ask the server for connection stats after each connect")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return nil
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		return err
	}

	// Set up structured logging
	logger := newLogger(os.Stdout, cfg)
	slog.SetDefault(logger)

	logger.Info("starting notifytail",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	token, err := auth.LoadToken(cfg.Server.Token, cfg.Server.TokenPath)
	if err != nil {
		return err
	}

	// Handle shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Sinks
	pumps, checks, closeSinks, err := openSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	// Channel
	tcfg := cfg.TransportConfig()
	if tcfg.UserAgent == "" {
		tcfg.UserAgent = version.UserAgent()
	}
	ch, err := channel.New(
		cfg.ChannelConfig(token.Reveal()),
		transport.NewWebSocketFactory(tcfg, logger.With("component", "transport")),
		channel.WithLogger(logger.With("component", "channel")),
	)
	if err != nil {
		return err
	}

	logEvents(ch, logger)
	for _, p := range pumps {
		ch.OnRaw(p.Offer)
	}
	if *requestStats {
		ch.OnConnected(func(channel.ConnectedEvent) {
			if err := ch.RequestStats(); err != nil {
				logger.Warn("stats request failed", "error", err)
			}
		})
	}

	failed := make(chan error, 1)
	ch.OnReconnectFailed(func(e channel.ReconnectFailedEvent) {
		select {
		case failed <- e.Err:
		default:
		}
	})

	for _, p := range pumps {
		if err := p.Start(ctx); err != nil {
			return fmt.Errorf("start %s sink: %w", p.Name(), err)
		}
	}

	var statsPoller *poller.Poller
	if cfg.Stats.Interval > 0 {
		statsPoller = poller.New(poller.Config{Interval: cfg.Stats.Interval}, ch, logger.With("component", "poller"))
		if err := statsPoller.Start(ctx); err != nil {
			return fmt.Errorf("start stats poller: %w", err)
		}
	}

	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
		Handler:           createHealthHandler(healthDeps{channel: ch, pumps: pumps, checks: checks}, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case err := <-failed:
			return err
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if statsPoller != nil {
			if err := statsPoller.Stop(shutdownCtx); err != nil {
				logger.Warn("failed to stop stats poller", "error", err)
			}
		}
		ch.Close()

		for _, p := range pumps {
			if err := p.Stop(shutdownCtx); err != nil {
				logger.Warn("failed to stop sink", "sink", p.Name(), "error", err)
			}
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	logger.Info("connecting",
		"url", cfg.Server.URL,
		"token", token,
		"filters", cfg.Filters,
	)
	ch.Connect()

	err = g.Wait()
	logger.Info("notifytail stopped")
	return err
}

// newLogger builds the root logger from log.level and log.format.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openSinks connects every enabled sink. The returned closer releases
// backend connections after the pumps have stopped.
func openSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (
	pumps []*sink.Pump,
	checks map[string]func(context.Context) error,
	closer func(),
	err error,
) {
	checks = make(map[string]func(context.Context) error)
	var closers []func()
	closer = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	defer func() {
		if err != nil {
			closer()
		}
	}()

	if cfg.Sinks.Log.Enabled {
		pumps = append(pumps, sink.NewPump(
			sink.PumpConfig{BatchSize: 1, FlushInterval: time.Second},
			sink.NewLog(logger.With("component", "sink"), slog.LevelInfo),
			logger,
		))
	}

	if pg := cfg.Sinks.Postgres; pg.Enabled {
		logger.Info("connecting to database",
			"host", pg.Database.Host,
			"port", pg.Database.Port,
			"database", pg.Database.Name,
		)
		pool, err := database.Connect(ctx, pg.Database)
		if err != nil {
			return nil, nil, closer, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return nil, nil, closer, err
		}

		w := sink.NewPostgres(pool)
		pumps = append(pumps, sink.NewPump(pumpConfig(pg.Writer), w, logger))
		checks[w.Name()] = pool.Ping
	}

	if rc := cfg.Sinks.Redis; rc.Enabled {
		client, err := sink.ConnectRedis(ctx, rc.URL, 10*time.Second)
		if err != nil {
			return nil, nil, closer, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })

		w := sink.NewRedis(client, rc.Prefix)
		pumps = append(pumps, sink.NewPump(pumpConfig(rc.Writer), w, logger))
		checks[w.Name()] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	return pumps, checks, closer, nil
}

func pumpConfig(w config.WriterConfig) sink.PumpConfig {
	return sink.PumpConfig{BatchSize: w.BatchSize, FlushInterval: w.FlushInterval}
}
