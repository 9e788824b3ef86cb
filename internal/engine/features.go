package engine

import (
	"time"

	"github.com/taskforcehq/taskforce-forecast/internal/artifacts"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// Scaler is the fitted rescaling applied to the count columns.
type Scaler interface {
	Transform(rows [][]float64) ([][]float64, error)
}

type projectedDay struct {
	date   time.Time
	red    float64
	orange float64
}

type featureFunc func(projectedDay) float64

// Untreated counts are unknowable for future days and are fed to the model as zero.
var featureExtractors = map[artifacts.Column]featureFunc{
	artifacts.ColumnRed:             func(d projectedDay) float64 { return d.red },
	artifacts.ColumnUntreatedRed:    func(projectedDay) float64 { return 0 },
	artifacts.ColumnOrange:          func(d projectedDay) float64 { return d.orange },
	artifacts.ColumnUntreatedOrange: func(projectedDay) float64 { return 0 },
	artifacts.ColumnWeekday:         func(d projectedDay) float64 { return float64(WeekdayFlag(d.date)) },
}

// WeekdayFlag is 1 for Monday through Friday and 0 on weekends.
func WeekdayFlag(t time.Time) int {
	if utils.IsWeekday(t) {
		return 1
	}
	return 0
}

// FeatureBuilder reconstructs model input rows for projected days in contract order.
type FeatureBuilder struct {
	contract    artifacts.FeatureContract
	scaler      Scaler
	scaled      []featureFunc
	passthrough []featureFunc
}

// NewFeatureBuilder binds a contract to its scaler. Every contract column must be
// derivable from a projected day.
func NewFeatureBuilder(contract artifacts.FeatureContract, scaler Scaler) (*FeatureBuilder, error) {
	if scaler == nil {
		return nil, utils.ContractViolationError("new feature builder", "scaler is required")
	}
	b := &FeatureBuilder{contract: contract, scaler: scaler}
	for _, col := range contract.Scaled {
		fn, ok := featureExtractors[col]
		if !ok {
			return nil, utils.ContractViolationError("new feature builder", "no extractor for column %q", col)
		}
		b.scaled = append(b.scaled, fn)
	}
	for _, col := range contract.Passthrough {
		fn, ok := featureExtractors[col]
		if !ok {
			return nil, utils.ContractViolationError("new feature builder", "no extractor for column %q", col)
		}
		b.passthrough = append(b.passthrough, fn)
	}
	return b, nil
}

// Build returns one scaled feature row per date.
func (b *FeatureBuilder) Build(dates []time.Time, red, orange []float64) ([][]float64, error) {
	if len(red) != len(dates) || len(orange) != len(dates) {
		return nil, utils.ContractViolationError("build features", "dates (%d), red (%d) and orange (%d) must be the same length", len(dates), len(red), len(orange))
	}

	days := make([]projectedDay, len(dates))
	raw := make([][]float64, len(dates))
	for i, date := range dates {
		days[i] = projectedDay{date: date, red: red[i], orange: orange[i]}
		row := make([]float64, len(b.scaled))
		for j, fn := range b.scaled {
			row[j] = fn(days[i])
		}
		raw[i] = row
	}

	scaled, err := b.scaler.Transform(raw)
	if err != nil {
		return nil, err
	}
	if len(scaled) != len(raw) {
		return nil, utils.ContractViolationError("build features", "scaler returned %d rows for %d inputs", len(scaled), len(raw))
	}

	rows := make([][]float64, len(days))
	for i, day := range days {
		row := make([]float64, 0, b.contract.Width())
		row = append(row, scaled[i]...)
		for _, fn := range b.passthrough {
			row = append(row, fn(day))
		}
		if len(row) != b.contract.Width() {
			return nil, utils.ContractViolationError("build features", "row %d has %d columns, contract %s expects %d", i, len(row), b.contract.Version, b.contract.Width())
		}
		rows[i] = row
	}
	return rows, nil
}
