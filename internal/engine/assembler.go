package engine

import (
	"log/slog"
	"math"
	"time"

	"github.com/taskforcehq/taskforce-forecast/internal/artifacts"
	"github.com/taskforcehq/taskforce-forecast/internal/models"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// seedWindowDays is how many trailing observed days are averaged into a seed.
const seedWindowDays = 7

// featureDescriber is implemented by models that declare their training columns.
type featureDescriber interface {
	Features() []string
}

// columnDescriber is implemented by scalers that declare their fitted columns.
type columnDescriber interface {
	Columns() []string
}

// Assembler drives projection, feature reconstruction and prediction, and merges
// history with the projection into display-ready series. The model and scaler are
// fixed at construction and never mutated.
type Assembler struct {
	logger    *slog.Logger
	projector *GrowthProjector
	features  *FeatureBuilder
	predictor *Predictor
	epoch     time.Time
}

// AssemblerOption customises an Assembler.
type AssemblerOption func(*Assembler)

// WithLogger sets the assembler logger.
func WithLogger(logger *slog.Logger) AssemblerOption {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithEpoch sets the dataset's fixed epoch, the default display start.
func WithEpoch(epoch time.Time) AssemblerOption {
	return func(a *Assembler) {
		if !epoch.IsZero() {
			a.epoch = utils.Day(epoch)
		}
	}
}

// NewAssembler validates the model and scaler against contract and binds them.
func NewAssembler(model Regressor, scaler Scaler, contract artifacts.FeatureContract, opts ...AssemblerOption) (*Assembler, error) {
	if model == nil {
		return nil, utils.ContractViolationError("new assembler", "model is required")
	}
	if d, ok := model.(featureDescriber); ok {
		if err := contract.ValidateModel("model", d.Features()); err != nil {
			return nil, err
		}
	}
	if d, ok := scaler.(columnDescriber); ok {
		if err := contract.ValidateScaler(d.Columns()); err != nil {
			return nil, err
		}
	}
	features, err := NewFeatureBuilder(contract, scaler)
	if err != nil {
		return nil, err
	}

	a := &Assembler{
		logger:    slog.Default(),
		projector: NewGrowthProjector(),
		features:  features,
		predictor: NewPredictor(model),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Assemble computes a forecast. It is a pure function of its arguments and the
// bound model and scaler.
func (a *Assembler) Assemble(history models.HistoricalSeries, params models.GrowthParameters, window models.ProjectionWindow) (models.ForecastResult, error) {
	if err := ValidateGrowth(params, window.HorizonDays); err != nil {
		return models.ForecastResult{}, err
	}
	if err := validateHistory(history); err != nil {
		return models.ForecastResult{}, err
	}
	if bell, ok := params.(models.BellCurve); ok && bell.Shape() != models.ShapeRiseThenDecay {
		a.logger.Debug("bell curve ratios do not rise then decay",
			slog.Float64("upstream_ratio", bell.UpstreamRatio),
			slog.Float64("downstream_ratio", bell.DownstreamRatio),
		)
	}

	horizon := window.HorizonDays
	redSeed := seed(history.Alerts, func(r models.AlertRow) float64 { return r.Red })
	orangeSeed := seed(history.Alerts, func(r models.AlertRow) float64 { return r.Orange })

	red, err := a.projector.Project(redSeed, params, horizon)
	if err != nil {
		return models.ForecastResult{}, err
	}
	orange, err := a.projector.Project(orangeSeed, params, horizon)
	if err != nil {
		return models.ForecastResult{}, err
	}
	if err := checkFinite(red, orange); err != nil {
		return models.ForecastResult{}, err
	}

	first := utils.Day(history.FirstDate())
	last := utils.Day(history.LastDate())
	dates := make([]time.Time, horizon+1)
	for i := range dates {
		dates[i] = utils.AddDays(last, i)
	}

	rows, err := a.features.Build(dates, red, orange)
	if err != nil {
		return models.ForecastResult{}, err
	}
	predicted, err := a.predictor.Predict(rows)
	if err != nil {
		return models.ForecastResult{}, err
	}
	if err := checkFinite(predicted); err != nil {
		return models.ForecastResult{}, err
	}

	yFuture := make([]models.SeriesPoint, len(dates))
	for i, d := range dates {
		yFuture[i] = models.SeriesPoint{Date: d, Value: predicted[i]}
	}

	yTrue := make([]models.SeriesPoint, 0, len(history.Staffing)+1)
	yTrue = append(yTrue, history.Staffing...)
	yTrue = append(yTrue, models.SeriesPoint{Date: last, Value: predicted[0]})

	alerts := make([]models.AlertRow, 0, len(history.Alerts)+horizon)
	alerts = append(alerts, history.Alerts...)
	for i := 1; i <= horizon; i++ {
		alerts = append(alerts, models.AlertRow{
			Date:      dates[i],
			Red:       red[i],
			Orange:    orange[i],
			Weekday:   WeekdayFlag(dates[i]),
			Projected: true,
		})
	}

	display, warnings := resolveDisplay(window, a.epoch, first, last)
	for _, w := range warnings {
		a.logger.Warn("degenerate display window", slog.String("detail", w.Message))
	}

	result := models.ForecastResult{
		Mode:             params.Mode(),
		YTrue:            clipPoints(yTrue, display),
		YFuture:          clipPoints(yFuture, display),
		Alerts:           clipAlerts(alerts, display),
		PredictionPeriod: models.DateRange{Start: dates[0], End: dates[horizon]},
		Display:          display,
		RedSeed:          redSeed,
		OrangeSeed:       orangeSeed,
		Warnings:         warnings,
	}
	result.PeakStaffing = peak(result.YTrue, result.YFuture)

	a.logger.Debug("forecast assembled",
		slog.String("mode", string(params.Mode())),
		slog.Int("horizon_days", horizon),
		slog.Float64("red_seed", redSeed),
		slog.Float64("orange_seed", orangeSeed),
		slog.Int("y_true_points", len(result.YTrue)),
		slog.Int("y_future_points", len(result.YFuture)),
	)
	return result, nil
}

func validateHistory(h models.HistoricalSeries) error {
	if len(h.Alerts) == 0 {
		return utils.ContractViolationError("validate history", "history is empty")
	}
	if len(h.Staffing) != len(h.Alerts) {
		return utils.ContractViolationError("validate history", "staffing series has %d points for %d alert rows", len(h.Staffing), len(h.Alerts))
	}
	for i, row := range h.Alerts {
		if row.Date.IsZero() {
			return utils.ContractViolationError("validate history", "row %d has no date", i)
		}
		if !utils.Day(h.Staffing[i].Date).Equal(utils.Day(row.Date)) {
			return utils.ContractViolationError("validate history", "staffing date %s does not match alert date %s at row %d",
				utils.FormatDate(h.Staffing[i].Date), utils.FormatDate(row.Date), i)
		}
		if i > 0 && !utils.Day(row.Date).After(utils.Day(h.Alerts[i-1].Date)) {
			return utils.ContractViolationError("validate history", "dates not strictly increasing at row %d (%s after %s)",
				i, utils.FormatDate(row.Date), utils.FormatDate(h.Alerts[i-1].Date))
		}
	}
	return nil
}

// seed averages the trailing observed days and rounds to the nearest integer.
func seed(rows []models.AlertRow, pick func(models.AlertRow) float64) float64 {
	start := len(rows) - seedWindowDays
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for _, r := range rows[start:] {
		sum += pick(r)
	}
	return math.Round(sum / float64(len(rows)-start))
}

func peak(series ...[]models.SeriesPoint) float64 {
	max := 0.0
	seen := false
	for _, s := range series {
		for _, p := range s {
			if !seen || p.Value > max {
				max = p.Value
				seen = true
			}
		}
	}
	return max
}

// checkFinite rejects projections that left the float range. Ratios are not
// bounded, so a large enough ratio or horizon ends in +Inf or NaN.
func checkFinite(series ...[]float64) error {
	for _, values := range series {
		for i, v := range values {
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return utils.ConfigurationError("assemble", "growth parameters overflow the projection at day %d", i)
			}
		}
	}
	return nil
}
