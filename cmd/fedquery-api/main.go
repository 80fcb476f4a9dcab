package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fedquery/fedquery/internal/adapter"
	"github.com/fedquery/fedquery/internal/api"
	"github.com/fedquery/fedquery/internal/auth"
	"github.com/fedquery/fedquery/internal/cache"
	"github.com/fedquery/fedquery/internal/config"
	"github.com/fedquery/fedquery/internal/dialect"
	"github.com/fedquery/fedquery/internal/federation"
	duckdbengine "github.com/fedquery/fedquery/internal/merge/duckdb"
	"github.com/fedquery/fedquery/internal/nl2sql"
	"github.com/fedquery/fedquery/internal/observability"
	"github.com/fedquery/fedquery/internal/store"
	"github.com/fedquery/fedquery/internal/store/sqlite"
)

// storeSourceProvider resolves connection metadata into adapter sources.
type storeSourceProvider struct {
	repo store.Repository
}

func (p *storeSourceProvider) GetSource(ctx context.Context, connectionID string) (adapter.Source, error) {
	conn, err := p.repo.GetConnection(ctx, connectionID)
	if err != nil {
		return adapter.Source{}, err
	}
	return adapter.Source{
		ID:       conn.ID,
		Engine:   conn.Engine,
		Host:     conn.Host,
		Port:     conn.Port,
		Database: conn.DatabaseName,
		Username: conn.Username,
		Password: conn.Password,
		Params:   conn.Params,
	}, nil
}

func main() {
	cfg, err := config.LoadFromEnv("fedquery-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	metadataDB, err := sqlite.Open(context.Background(), sqlite.DBConfig{
		Path:         cfg.Metadata.Path,
		MaxOpenConns: cfg.Metadata.MaxOpenConns,
	})
	if err != nil {
		logger.Error("failed to open metadata db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = metadataDB.Close() }()

	repo := sqlite.NewRepository(metadataDB)
	adapters := adapter.NewManager(&storeSourceProvider{repo: repo}, logger)
	defer adapters.Close()

	executor := &federation.Executor{
		Planner:    &federation.Planner{Logger: logger},
		Adapters:   adapters,
		Translator: dialect.NewRegistry(cfg.Cache.TranslationSize, cfg.Cache.TranslationTTL),
		Merger:     duckdbengine.NewEngine(),
		Logger:     logger,
	}
	if cfg.Cache.ResultEnabled {
		executor.Cache = cache.NewResultCache(cfg.Cache.ResultSize, cfg.Cache.ResultTTL)
	}

	var translator nl2sql.Translator
	if cfg.AI.TranslateEnabled {
		translator, err = nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize query translator", slog.Any("error", err))
			os.Exit(1)
		}
	}

	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         api.CheckMetadataStore(repo),
		DependencyTimeout: time.Second,
		Store:             repo,
		Federator:         executor,
		Adapters:          adapters,
		Schemas:           adapters,
		QueryTranslator:   translator,
		Federation:        cfg.Federation,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
