package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskforcehq/taskforce-forecast/internal/artifacts"
	"github.com/taskforcehq/taskforce-forecast/internal/cache"
	"github.com/taskforcehq/taskforce-forecast/internal/config"
	"github.com/taskforcehq/taskforce-forecast/internal/repo"
	"github.com/taskforcehq/taskforce-forecast/internal/services"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// app bundles the collaborators shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	dataset *repo.CachedDataset
	service *services.ForecastService
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func loadApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	a := &app{cfg: cfg, logger: logger}

	source, err := a.openSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	provider, err := a.openCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.dataset = repo.NewCachedDataset(source, provider, cfg.Cache.DatasetTTL, logger)

	bundle, err := artifacts.Load(cfg.Artifacts.Path, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.service, err = services.NewForecastService(logger, bundle, a.dataset, cfg.EpochTime())
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openSource(ctx context.Context) (repo.DatasetSource, error) {
	if a.cfg.Dataset.CSVPath != "" {
		a.logger.Info("reading dataset from csv", slog.String("path", a.cfg.Dataset.CSVPath))
		return repo.NewCSVDataset(a.cfg.Dataset.CSVPath), nil
	}

	db := a.cfg.Database
	if db.AutoMigrate {
		if err := repo.Migrate(db.URL, db.MigrationsPath); err != nil {
			return nil, err
		}
		a.logger.Info("database migrations applied", slog.String("path", db.MigrationsPath))
	}
	pool, err := repo.OpenPool(ctx, db.URL, repo.PoolOptions{
		MaxConns:        int32(db.MaxConns),
		MinConns:        int32(db.MinConns),
		MaxConnLifetime: db.ConnMaxLifetime,
		MaxConnIdleTime: db.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)
	a.logger.Info("database connection established")
	return repo.NewPostgresDataset(pool), nil
}

func (a *app) openCache(ctx context.Context) (cache.Provider, error) {
	c := a.cfg.Cache
	if !c.Enabled {
		return cache.NoopProvider{}, nil
	}
	var provider cache.Provider
	switch c.Backend {
	case config.CacheBackendValkey:
		p, err := cache.NewValkeyProvider(ctx, cache.ValkeyConfig{
			Addr:         c.Addr,
			Username:     c.Username,
			Password:     c.Password,
			DB:           c.DB,
			DialTimeout:  c.DialTimeout,
			ReadTimeout:  c.ReadTimeout,
			WriteTimeout: c.WriteTimeout,
			MaxRetries:   c.MaxRetries,
			TLS:          c.TLS,
		})
		if err != nil {
			a.logger.Warn("valkey cache unavailable, continuing without cache", slog.Any("error", err))
			return cache.NoopProvider{}, nil
		}
		provider = p
	default:
		provider = cache.NewMemoryProvider()
	}
	a.closers = append(a.closers, func() { _ = provider.Close() })
	a.logger.Info("dataset cache enabled", slog.String("backend", c.Backend), slog.Duration("ttl", c.DatasetTTL))
	return provider, nil
}
