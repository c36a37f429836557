// Package main is the entry point for the ModFusion accounts server. It
// serves the account directory and session API consumed by the ModFusion
// single-page application.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/modfusion/accounts/internal/config"
	"github.com/modfusion/accounts/internal/handler"
	"github.com/modfusion/accounts/internal/kv"
	kvmemory "github.com/modfusion/accounts/internal/kv/memory"
	kvsqlite "github.com/modfusion/accounts/internal/kv/sqlite"
	"github.com/modfusion/accounts/internal/metrics"
	"github.com/modfusion/accounts/internal/service"
	"github.com/modfusion/accounts/internal/store"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting ModFusion accounts server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kvs, err := openRecords(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open record store")
		os.Exit(1)
	}
	defer kvs.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	accounts := store.New(kvs, store.Seed{
		Email:     cfg.Seed.Email,
		Password:  cfg.Seed.Password,
		FirstName: cfg.Seed.FirstName,
		LastName:  cfg.Seed.LastName,
	}, logger)

	auth := service.NewAuthService(accounts, m, logger)
	if err := auth.Init(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to initialize auth service")
		os.Exit(1)
	}

	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:  handler.NewAuthHandler(auth, logger),
		AdminHandler: handler.NewAdminHandler(auth, logger),
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		metricsSrv = &http.Server{
			Addr:    addr(cfg.Server.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsSrv.Addr).Str("path", cfg.Metrics.Path).Msg("metrics server listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("API server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API server shutdown failed")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}
}

// openRecords opens the configured record store backend.
func openRecords(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (kv.Store, error) {
	if cfg.Ephemeral {
		logger.Warn().Msg("ephemeral record store: nothing will survive a restart")
		return kvmemory.NewStore(), nil
	}

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}

	sqliteCfg := kvsqlite.DefaultConfig(cfg.Path)
	sqliteCfg.JournalMode = cfg.JournalMode
	sqliteCfg.BusyTimeout = cfg.BusyTimeout
	sqliteCfg.SynchronousMode = cfg.SynchronousMode

	return kvsqlite.NewStore(ctx, sqliteCfg, logger)
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func addr(host string, port int) string {
	return config.ServerConfig{Host: host, Port: port}.Addr()
}
