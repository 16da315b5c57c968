package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/miradorstack/risk-client/internal/cache"
	"github.com/miradorstack/risk-client/internal/config"
	"github.com/miradorstack/risk-client/internal/identity"
	"github.com/miradorstack/risk-client/internal/metrics"
	"github.com/miradorstack/risk-client/internal/repo"
	"github.com/miradorstack/risk-client/internal/services"
	"github.com/miradorstack/risk-client/internal/utils"
)

// app holds the wiring shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	provider cache.Provider
	identity *identity.Store
	service  *services.RiskService
	out      io.Writer
}

// withApp builds the application from the root flags, runs fn and tears the
// wiring down again.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	configPath, _ := cmd.Flags().GetString("config")
	baseURL, _ := cmd.Flags().GetString("base-url")

	a, err := newApp(configPath, baseURL, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.out = cmd.OutOrStdout()
	defer a.close()
	return fn(a)
}

func newApp(configPath, baseURL string, logOutput io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if baseURL != "" {
		cfg.Clients.Scoring.BaseURL = baseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := utils.NewLoggerTo(logOutput, cfg.Logging.Level, cfg.Logging.JSON)

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	provider := openProvider(cfg.Identity, logger)
	ids := identity.NewStore(provider,
		identity.WithKey(cfg.Identity.Key),
		identity.WithFallback(cfg.Identity.Fallback),
	)

	scorer := repo.NewScoringClient(cfg.Clients.Scoring)
	service := services.NewRiskService(logger, scorer, ids, cfg.History.PageSize)

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		provider: provider,
		identity: ids,
		service:  service,
		out:      os.Stdout,
	}, nil
}

func (a *app) close() {
	if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
		a.logger.Warn("failed to write metrics textfile", slog.String("path", a.cfg.Metrics.Textfile), slog.Any("error", err))
	}
	if err := a.provider.Close(); err != nil {
		a.logger.Warn("failed to close identity backend", slog.Any("error", err))
	}
}

// openProvider selects the identity backend. A backend that cannot be opened
// degrades to process memory so predictions still work with the fallback id.
func openProvider(cfg config.IdentityConfig, logger *slog.Logger) cache.Provider {
	var (
		provider cache.Provider
		err      error
	)
	switch cfg.Backend {
	case config.BackendFile:
		provider, err = cache.NewFileProvider(cfg.Path)
	case config.BackendSQLite:
		if err = os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err == nil {
			provider, err = cache.NewSQLiteProvider(cfg.SQLitePath)
		}
	case config.BackendValkey:
		provider, err = cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Valkey.Addr,
			Username:     cfg.Valkey.Username,
			Password:     cfg.Valkey.Password,
			DB:           cfg.Valkey.DB,
			DialTimeout:  cfg.Valkey.DialTimeout,
			ReadTimeout:  cfg.Valkey.ReadTimeout,
			WriteTimeout: cfg.Valkey.WriteTimeout,
			MaxRetries:   cfg.Valkey.MaxRetries,
			TLS:          cfg.Valkey.TLS,
		})
	case config.BackendMemory:
		return cache.NewMemoryProvider()
	case config.BackendNone:
		return cache.NoopProvider{}
	default:
		err = fmt.Errorf("unknown identity backend %q", cfg.Backend)
	}
	if err != nil {
		logger.Warn("identity backend unavailable, using memory", slog.String("backend", cfg.Backend), slog.Any("error", err))
		return cache.NewMemoryProvider()
	}
	return provider
}
