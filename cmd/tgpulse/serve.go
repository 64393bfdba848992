package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Veraticus/tgpulse/internal/api"
	"github.com/Veraticus/tgpulse/internal/auth"
	"github.com/Veraticus/tgpulse/internal/config"
	"github.com/Veraticus/tgpulse/internal/handlers"
	"github.com/Veraticus/tgpulse/internal/ingest"
	"github.com/Veraticus/tgpulse/internal/metrics"
	"github.com/Veraticus/tgpulse/internal/relay"
	"github.com/Veraticus/tgpulse/internal/session"
	"github.com/Veraticus/tgpulse/internal/stats"
	"github.com/Veraticus/tgpulse/internal/telegram"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 30 * time.Second

	readTimeout  = 15 * time.Second
	writeTimeout = 60 * time.Second
	idleTimeout  = 60 * time.Second
)

// components holds everything the server owns.
type components struct {
	registry *session.Registry
	sweeper  *session.Sweeper
	server   *http.Server
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyFlags(cfg)

	logger := newLogger(cfg)
	slog.SetDefault(newSlogLogger(cfg))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}

	c.sweeper.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", c.server.Addr).
			Str("env", cfg.Env).
			Bool("relay_enabled", cfg.RelayEnabled).
			Msg("starting tgpulse server")

		if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down server...")
	case err := <-serveErr:
		if err != nil {
			c.sweeper.Stop()
			c.registry.Shutdown(context.Background())
			return fmt.Errorf("server failed: %w", err)
		}
	}

	// The parent context is already canceled here.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	//nolint:contextcheck // New context needed for graceful shutdown after parent cancellation
	return shutdown(shutdownCtx, c, logger)
}

// applyFlags lets command line flags override the environment.
func applyFlags(cfg *config.Config) {
	if port != "" {
		cfg.Port = port
	}
	if debug {
		cfg.LogLevel = "debug"
	}
}

func initializeComponents(cfg *config.Config, logger zerolog.Logger) (*components, error) {
	dialer, err := telegram.NewBridgeDialer(cfg.BridgeAddr, cfg.APIID, cfg.APIHash, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge dialer: %w", err)
	}

	registry := session.NewRegistry()
	sweeper := session.NewSweeper(registry, cfg.PendingAuthTTL,
		session.WithExpireHook(func(n int) {
			metrics.PendingAuthsExpired.Add(float64(n))
		}),
	)

	pipeline := ingest.NewPipeline(registry, pipelineOptions(cfg)...)

	authenticator := auth.NewAuthenticator(dialer, registry, pipeline)
	queries := stats.NewService(registry)

	handlers.Version = version
	h := handlers.NewHandler(authenticator, queries, registry, handlers.Config{
		APIConfigured: cfg.APIConfigured(),
		RelayEnabled:  pipeline.RelayEnabled(),
	}, logger)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(logger, h, cfg.CORSOrigins),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	return &components{
		registry: registry,
		sweeper:  sweeper,
		server:   server,
	}, nil
}

// pipelineOptions enables relaying when configured. Every inbound text is
// relayed unless RELAY_REPLY_BURST opts into per-chat reply limiting.
func pipelineOptions(cfg *config.Config) []ingest.Option {
	r := newRelay(cfg)
	if r == nil {
		return nil
	}

	opts := []ingest.Option{ingest.WithRelay(r)}
	if cfg.ReplyBurst > 0 {
		opts = append(opts, ingest.WithReplyLimiter(relay.NewLimiter(cfg.ReplyBurst, relay.DefaultReplyRefill)))
	}
	return opts
}

// newRelay returns the Chatbase relay, or nil when relaying is off.
func newRelay(cfg *config.Config) relay.Relay {
	if !cfg.RelayEnabled {
		return nil
	}
	return relay.NewChatbaseClient(relay.ChatbaseConfig{
		APIKey:    cfg.ChatbaseAPIKey,
		ChatbotID: cfg.ChatbaseChatbotID,
		BaseURL:   cfg.ChatbaseBaseURL,
	})
}

func shutdown(ctx context.Context, c *components, logger zerolog.Logger) error {
	err := c.server.Shutdown(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	c.sweeper.Stop()
	c.registry.Shutdown(ctx)
	metrics.ActiveSessions.Set(0)

	logger.Info().Msg("server stopped")
	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// newLogger builds the request logger: console output in development, JSON
// otherwise.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			Level(level).
			With().
			Timestamp().
			Logger()
	}
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// newSlogLogger builds the logger used by the core packages.
func newSlogLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.LogLevel)}
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func slogLevel(name string) slog.Level {
	switch name {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal", "panic":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
