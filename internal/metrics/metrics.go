package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels forecasts that produced a result.
	OutcomeSuccess = "success"
	// OutcomeRejected labels forecasts refused for caller or data errors.
	OutcomeRejected = "rejected"
	// OutcomeError labels forecasts that failed on a dependency.
	OutcomeError = "error"
)

var (
	forecastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskforce_forecast",
			Name:      "forecasts_total",
			Help:      "Total number of forecasts handled, partitioned by outcome and growth mode.",
		},
		[]string{"outcome", "mode"},
	)

	forecastDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "taskforce_forecast",
			Name:      "forecast_seconds",
			Help:      "Forecast latency in seconds, dataset load included.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	degenerateWindowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taskforce_forecast",
			Name:      "degenerate_windows_total",
			Help:      "Forecasts returned with a degenerate display window warning.",
		},
	)

	datasetLagDays = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "taskforce_forecast",
			Name:      "dataset_lag_days",
			Help:      "Days between the expected latest dataset row (yesterday) and the actual latest row.",
		},
	)

	datasetRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "taskforce_forecast",
			Name:      "dataset_rows",
			Help:      "Number of rows in the last loaded dataset snapshot.",
		},
	)

	datasetRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskforce_forecast",
			Name:      "dataset_refreshes_total",
			Help:      "Scheduled dataset refreshes, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register attaches forecast collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		forecastsTotal,
		forecastDurationSeconds,
		degenerateWindowsTotal,
		datasetLagDays,
		datasetRows,
		datasetRefreshesTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveForecast records a forecast duration with its outcome and growth mode.
func ObserveForecast(duration time.Duration, outcome, mode string, degenerate bool) {
	switch outcome {
	case OutcomeSuccess, OutcomeRejected, OutcomeError:
	default:
		outcome = OutcomeError
	}
	if mode == "" {
		mode = "unknown"
	}
	forecastsTotal.WithLabelValues(outcome, mode).Inc()
	if degenerate {
		degenerateWindowsTotal.Inc()
	}
	if duration < 0 {
		duration = 0
	}
	forecastDurationSeconds.Observe(duration.Seconds())
}

// ObserveDataset records the freshness of the latest dataset snapshot.
func ObserveDataset(lagDays, rows int) {
	datasetLagDays.Set(float64(lagDays))
	datasetRows.Set(float64(rows))
}

// ObserveRefresh counts a scheduled refresh run.
func ObserveRefresh(err error) {
	if err != nil {
		datasetRefreshesTotal.WithLabelValues(OutcomeError).Inc()
		return
	}
	datasetRefreshesTotal.WithLabelValues(OutcomeSuccess).Inc()
}
