package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/taskforcehq/taskforce-forecast/internal/artifacts"
	"github.com/taskforcehq/taskforce-forecast/internal/engine"
	"github.com/taskforcehq/taskforce-forecast/internal/metrics"
	"github.com/taskforcehq/taskforce-forecast/internal/models"
	"github.com/taskforcehq/taskforce-forecast/internal/repo"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// latencyLogEvery is how many successful forecasts pass between p95 log lines.
const latencyLogEvery = 20

// Forecast is a service response: the assembled result plus request bookkeeping.
type Forecast struct {
	ID          string                `json:"id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Result      models.ForecastResult `json:"result"`
}

// ForecastService is the facade shared by the gRPC and HTTP transports.
type ForecastService struct {
	logger     *slog.Logger
	source     repo.DatasetSource
	assemblers map[models.Population]*engine.Assembler
	latencies  *utils.LatencyTracker
	served     atomic.Uint64
	now        func() time.Time
}

// NewForecastService builds one assembler per population found in the bundle.
func NewForecastService(logger *slog.Logger, bundle *artifacts.Bundle, source repo.DatasetSource, epoch time.Time) (*ForecastService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if bundle == nil {
		return nil, fmt.Errorf("model artifacts not configured")
	}
	if source == nil {
		return nil, fmt.Errorf("dataset source not configured")
	}

	assemblers := make(map[models.Population]*engine.Assembler)
	for _, pop := range bundle.Populations() {
		model, _ := bundle.Model(pop)
		a, err := engine.NewAssembler(model, bundle.Scaler, bundle.Contract,
			engine.WithLogger(logger.With(slog.String("population", string(pop)))),
			engine.WithEpoch(epoch),
		)
		if err != nil {
			return nil, fmt.Errorf("build %s assembler: %w", pop, err)
		}
		assemblers[pop] = a
	}

	return &ForecastService{
		logger:     logger,
		source:     source,
		assemblers: assemblers,
		latencies:  utils.NewLatencyTracker(1024),
		now:        time.Now,
	}, nil
}

// Forecast loads the current history and assembles a projection for the request.
func (s *ForecastService) Forecast(ctx context.Context, req models.ForecastRequest) (Forecast, error) {
	start := time.Now()
	mode := strings.ToLower(strings.TrimSpace(req.Growth.Mode))

	resp, err := s.forecast(ctx, req)
	duration := time.Since(start)

	switch {
	case err == nil:
		degenerate := false
		for _, w := range resp.Result.Warnings {
			if w.Kind == models.WarningDegenerateInput {
				degenerate = true
			}
		}
		metrics.ObserveForecast(duration, metrics.OutcomeSuccess, string(resp.Result.Mode), degenerate)
	case utils.IsConfiguration(err) || utils.IsContractViolation(err):
		metrics.ObserveForecast(duration, metrics.OutcomeRejected, mode, false)
		s.logger.Info("forecast rejected", slog.String("population", string(req.Population)), slog.Any("error", err))
		return Forecast{}, err
	default:
		metrics.ObserveForecast(duration, metrics.OutcomeError, mode, false)
		s.logger.Error("forecast failed", slog.String("population", string(req.Population)), slog.Any("error", err))
		return Forecast{}, err
	}

	s.latencies.Observe(duration)
	if served := s.served.Add(1); served%latencyLogEvery == 0 {
		s.logger.Info("forecast latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", s.latencies.Count()),
			slog.Uint64("served", served),
		)
	}
	return resp, nil
}

func (s *ForecastService) forecast(ctx context.Context, req models.ForecastRequest) (Forecast, error) {
	assembler, ok := s.assemblers[req.Population]
	if !ok {
		return Forecast{}, utils.ConfigurationError("forecast", "no trained model for population %q", req.Population)
	}
	params, err := req.Growth.Resolve()
	if err != nil {
		return Forecast{}, err
	}

	window := models.ProjectionWindow{HorizonDays: req.HorizonDays}
	var warnings []models.Warning
	window.DisplayStart, warnings = parseBound("display_start", req.DisplayStart, warnings)
	window.DisplayEnd, warnings = parseBound("display_end", req.DisplayEnd, warnings)

	ds, err := s.source.LoadDataset(ctx)
	if err != nil {
		return Forecast{}, fmt.Errorf("load dataset: %w", err)
	}
	history, err := ds.Series(req.Population)
	if err != nil {
		return Forecast{}, utils.NewAppError("forecast", err.Error(), utils.ErrConfiguration)
	}

	result, err := assembler.Assemble(history, params, window)
	if err != nil {
		return Forecast{}, err
	}
	result.Population = req.Population
	result.Warnings = append(warnings, result.Warnings...)

	return Forecast{
		ID:          uuid.NewString(),
		GeneratedAt: s.now().UTC(),
		Result:      result,
	}, nil
}

func parseBound(name, value string, warnings []models.Warning) (time.Time, []models.Warning) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, warnings
	}
	t, err := utils.ParseDate(value)
	if err != nil {
		return time.Time{}, append(warnings, models.Warning{
			Kind:    models.WarningUnparsableDate,
			Message: fmt.Sprintf("%s %q ignored: %v", name, value, err),
		})
	}
	return t, warnings
}

// DatasetStatus reports how current the dataset is.
func (s *ForecastService) DatasetStatus(ctx context.Context) (models.Freshness, error) {
	ds, err := s.source.LoadDataset(ctx)
	if err != nil {
		return models.Freshness{}, fmt.Errorf("load dataset: %w", err)
	}
	fresh := ds.CheckFreshness(s.now())
	metrics.ObserveDataset(fresh.LagDays, fresh.RowCount)
	return fresh, nil
}

// Populations lists the populations this service can forecast.
func (s *ForecastService) Populations() []models.Population {
	out := make([]models.Population, 0, len(s.assemblers))
	for _, pop := range models.Populations() {
		if _, ok := s.assemblers[pop]; ok {
			out = append(out, pop)
		}
	}
	return out
}

// LatencyP95 returns the current p95 forecast latency.
func (s *ForecastService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}
