package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang/snappy"

	"github.com/taskforcehq/taskforce-forecast/internal/cache"
	"github.com/taskforcehq/taskforce-forecast/internal/models"
)

const datasetCacheKey = "taskforce:forecast:dataset:v1"

// CachedDataset serves dataset snapshots from a cache Provider, falling back to the source on miss.
// Snapshots are stored as snappy-compressed JSON.
type CachedDataset struct {
	source DatasetSource
	cache  cache.Provider
	ttl    time.Duration
	logger *slog.Logger
}

var _ DatasetSource = (*CachedDataset)(nil)

// NewCachedDataset wraps source. A nil provider disables caching.
func NewCachedDataset(source DatasetSource, provider cache.Provider, ttl time.Duration, logger *slog.Logger) *CachedDataset {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedDataset{source: source, cache: provider, ttl: ttl, logger: logger}
}

// LoadDataset returns the cached snapshot when present, otherwise loads and stores a fresh one.
func (c *CachedDataset) LoadDataset(ctx context.Context) (models.Dataset, error) {
	payload, err := c.cache.Get(ctx, datasetCacheKey)
	switch {
	case err == nil:
		ds, decodeErr := decodeSnapshot(payload)
		if decodeErr == nil {
			return ds, nil
		}
		c.logger.Warn("discarding unreadable dataset snapshot", slog.Any("error", decodeErr))
		_ = c.cache.Del(ctx, datasetCacheKey)
	case !errors.Is(err, cache.ErrCacheMiss):
		c.logger.Warn("dataset cache read failed", slog.Any("error", err))
	}
	return c.Refresh(ctx)
}

// Refresh reloads from the source and overwrites the cached snapshot.
func (c *CachedDataset) Refresh(ctx context.Context) (models.Dataset, error) {
	ds, err := c.source.LoadDataset(ctx)
	if err != nil {
		return models.Dataset{}, err
	}
	payload, err := encodeSnapshot(ds)
	if err != nil {
		c.logger.Warn("dataset snapshot not cached", slog.Any("error", err))
		return ds, nil
	}
	if err := c.cache.Set(ctx, datasetCacheKey, payload, c.ttl); err != nil {
		c.logger.Warn("dataset cache write failed", slog.Any("error", err))
	}
	return ds, nil
}

// Invalidate drops the cached snapshot.
func (c *CachedDataset) Invalidate(ctx context.Context) error {
	return c.cache.Del(ctx, datasetCacheKey)
}

func encodeSnapshot(ds models.Dataset) ([]byte, error) {
	raw, err := json.Marshal(ds)
	if err != nil {
		return nil, fmt.Errorf("encode dataset snapshot: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

func decodeSnapshot(payload []byte) (models.Dataset, error) {
	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("decompress dataset snapshot: %w", err)
	}
	var ds models.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return models.Dataset{}, fmt.Errorf("decode dataset snapshot: %w", err)
	}
	return ds, nil
}
