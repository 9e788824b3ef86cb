package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/taskforcehq/taskforce-forecast/internal/metrics"
	"github.com/taskforcehq/taskforce-forecast/internal/models"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// Refresher reloads the dataset from its source, bypassing any cache.
type Refresher interface {
	Refresh(ctx context.Context) (models.Dataset, error)
}

// DatasetRefresher periodically refreshes the dataset snapshot and records its freshness.
type DatasetRefresher struct {
	source   Refresher
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.RWMutex
	last models.Freshness
	ok   bool
}

// NewDatasetRefresher constructs a refresher. interval <= 0 disables scheduling in Start.
func NewDatasetRefresher(source Refresher, interval time.Duration, logger *slog.Logger) *DatasetRefresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetRefresher{
		source:   source,
		interval: interval,
		timeout:  time.Minute,
		logger:   logger,
		now:      time.Now,
	}
}

// RunOnce refreshes the dataset and evaluates whether yesterday's row is present.
func (r *DatasetRefresher) RunOnce(ctx context.Context) (models.Freshness, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ds, err := r.source.Refresh(ctx)
	metrics.ObserveRefresh(err)
	if err != nil {
		r.logger.Error("dataset refresh failed", slog.Any("error", err))
		return models.Freshness{}, fmt.Errorf("refresh dataset: %w", err)
	}

	fresh := ds.CheckFreshness(r.now())
	metrics.ObserveDataset(fresh.LagDays, fresh.RowCount)

	r.mu.Lock()
	r.last, r.ok = fresh, true
	r.mu.Unlock()

	attrs := []any{
		slog.String("last_date", utils.FormatDate(fresh.LastDate)),
		slog.String("expected", utils.FormatDate(fresh.Expected)),
		slog.Int("rows", fresh.RowCount),
	}
	if fresh.UpToDate {
		r.logger.Info("dataset up to date", attrs...)
	} else {
		r.logger.Warn("dataset has to be updated", append(attrs, slog.Int("lag_days", fresh.LagDays))...)
	}
	return fresh, nil
}

// Last returns the most recent freshness report, if any refresh has succeeded.
func (r *DatasetRefresher) Last() (models.Freshness, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last, r.ok
}

// Start refreshes once, then on every interval until ctx is cancelled.
func (r *DatasetRefresher) Start(ctx context.Context) error {
	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.Warn("initial dataset refresh failed; scheduler continues", slog.Any("error", err))
	}
	if r.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	if _, err := scheduler.Every(r.interval).WaitForSchedule().Do(func() {
		_, _ = r.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("schedule dataset refresh: %w", err)
	}

	r.logger.Info("dataset refresher started", slog.Duration("interval", r.interval))
	scheduler.StartAsync()
	<-ctx.Done()
	scheduler.Stop()
	r.logger.Info("dataset refresher stopped")
	return nil
}
