// Package main implements a service that watches a game's stock and weather
// feeds and emails subscribers when items they follow come into stock or a
// weather event starts.
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

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"garden-notifier/catalog"
	"garden-notifier/config"
	"garden-notifier/detect"
	"garden-notifier/email"
	"garden-notifier/feed"
	"garden-notifier/pkg/notifier"
	"garden-notifier/plan"
	"garden-notifier/registry"
	"garden-notifier/server"
	"garden-notifier/snapshot"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	provider, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize email provider", "provider", cfg.Email.Provider, "error", err)
		os.Exit(1)
	}
	logger.Info("Email provider ready", "provider", cfg.Email.Provider)

	cache, closeCache, err := buildCache(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize catalog cache", "type", cfg.Catalog.CacheType, "error", err)
		os.Exit(1)
	}
	defer closeCache()

	cat := catalog.New(cfg.Catalog.URL, cache, logger)
	cat.Warm(ctx)
	go catalogRefreshLoop(ctx, cat, cfg.Catalog.RefreshInterval, logger)

	mode := registry.VerifyThenConfirm
	if cfg.Registry.Mode == "direct" {
		mode = registry.DirectConfirm
	}
	reg := registry.New(mode, logger)
	sweeper := registry.NewSweeper(reg, cfg.Registry.SweepInterval, logger)
	sweeper.Start()
	defer sweeper.Stop()

	sender := email.New(provider, cat, logger, cfg.Server.BaseURL)
	planner := plan.New(sender, logger)
	pipeline := feed.NewPipeline(snapshot.NewStore(), detect.New(logger), planner, sender, reg, logger)

	client := feed.NewClient(&http.Client{Timeout: cfg.Feed.FetchTimeout}, logger)
	go feed.NewPoller(client, pipeline, notifier.ChannelStock, cfg.Feed.StockURL, cfg.Feed.PollInterval, logger).Run(ctx)
	go feed.NewPoller(client, pipeline, notifier.ChannelWeather, cfg.Feed.WeatherURL, cfg.Feed.PollInterval, logger).Run(ctx)
	if cfg.Feed.StreamEnabled {
		go feed.NewStream(cfg.Feed.StreamURL, pipeline, cfg.Feed.ReconnectDelay, logger).Run(ctx)
	}

	srv := server.New(reg, sender, cat, logger)
	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "addr", httpServer.Addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	logger.Info("Shutdown complete")
}

// buildProvider selects the mail transport from configuration.
func buildProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (email.Provider, error) {
	switch cfg.Email.Provider {
	case "gmail":
		service, err := initGmailService(ctx, cfg.Email.GmailCredentialsJSON)
		if err != nil {
			return nil, err
		}
		return email.NewGmailProvider(service, logger), nil
	case "brevo":
		if cfg.Email.BrevoAPIKey == "" {
			return nil, errors.New("BREVO_API_KEY required for brevo provider")
		}
		return email.NewBrevoProvider(cfg.Email.BrevoAPIKey, cfg.Email.From, "Garden Notifier", logger), nil
	case "postmark":
		if cfg.Email.PostmarkServerToken == "" {
			return nil, errors.New("POSTMARK_SERVER_TOKEN required for postmark provider")
		}
		return email.NewPostmarkProvider(cfg.Email.PostmarkServerToken, cfg.Email.PostmarkAccountToken, cfg.Email.From, logger), nil
	case "mock":
		logger.Info("Mock email mode enabled (emails logged, not sent)")
		return email.NewMockProvider(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}

func initGmailService(ctx context.Context, credsJSON string) (*gmail.Service, error) {
	// Explicit credentials first; otherwise fall back to Application
	// Default Credentials (the service account needs gmail.send scope).
	if credsJSON != "" {
		return gmail.NewService(ctx, option.WithCredentialsJSON([]byte(credsJSON)))
	}
	return gmail.NewService(ctx)
}

// buildCache selects the catalog cache backend.
func buildCache(cfg *config.Config, logger *slog.Logger) (catalog.Cache, func(), error) {
	if cfg.Catalog.CacheType == "redis" {
		redisCache, err := catalog.NewRedisCache(catalog.RedisConfig{
			Addr:     cfg.Catalog.RedisAddr(),
			Password: cfg.Catalog.RedisPassword,
			DB:       cfg.Catalog.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Catalog cache ready", "type", "redis", "addr", cfg.Catalog.RedisAddr())
		return redisCache, func() {
			if err := redisCache.Close(); err != nil {
				logger.Warn("Failed to close Redis connection", "error", err)
			}
		}, nil
	}
	logger.Info("Catalog cache ready", "type", "memory")
	return catalog.NewMemoryCache(), func() {}, nil
}

// catalogRefreshLoop keeps item metadata fresh. A failed refresh keeps the
// prior catalog; display falls back to derived icons until the next cycle.
func catalogRefreshLoop(ctx context.Context, cat *catalog.Catalog, interval time.Duration, logger *slog.Logger) {
	if err := cat.Refresh(ctx); err != nil {
		logger.Warn("Initial catalog refresh failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cat.Refresh(ctx); err != nil {
				logger.Warn("Catalog refresh failed", "error", err)
			}
		}
	}
}
