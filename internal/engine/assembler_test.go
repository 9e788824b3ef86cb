package engine

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforcehq/taskforce-forecast/internal/artifacts"
	"github.com/taskforcehq/taskforce-forecast/internal/models"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

var historyStart = time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC) // Monday

// buildHistory returns days of history where red = i, orange = 2i and staffing = 100 + i.
func buildHistory(days int) models.HistoricalSeries {
	h := models.HistoricalSeries{}
	for i := 0; i < days; i++ {
		d := historyStart.AddDate(0, 0, i)
		h.Alerts = append(h.Alerts, models.AlertRow{
			Date:    d,
			Red:     float64(i),
			Orange:  float64(2 * i),
			Weekday: WeekdayFlag(d),
		})
		h.Staffing = append(h.Staffing, models.SeriesPoint{Date: d, Value: float64(100 + i)})
	}
	return h
}

// newTestAssembler predicts red + orange + 5*weekday through an identity scaler.
func newTestAssembler(t *testing.T, opts ...AssemblerOption) *Assembler {
	t.Helper()
	contract := artifacts.ContractV1
	scaled := make([]string, 0, len(contract.Scaled))
	for _, c := range contract.Scaled {
		scaled = append(scaled, string(c))
	}
	features := make([]string, 0, contract.Width())
	for _, c := range contract.Columns() {
		features = append(features, string(c))
	}
	scaler, err := artifacts.NewStandardScaler(scaled, []float64{0, 0, 0, 0}, []float64{1, 1, 1, 1})
	require.NoError(t, err)
	model, err := artifacts.NewLinearModel("nurse", features, 0, []float64{1, 0, 1, 0, 5})
	require.NoError(t, err)

	opts = append([]AssemblerOption{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	assembler, err := NewAssembler(model, scaler, contract, opts...)
	require.NoError(t, err)
	return assembler
}

func TestAssembleArithmetic(t *testing.T) {
	assembler := newTestAssembler(t)
	history := buildHistory(14) // last day is Sunday 2021-01-17

	result, err := assembler.Assemble(history, models.Arithmetic{Increment: 2}, models.ProjectionWindow{HorizonDays: 3})
	require.NoError(t, err)

	assert.Equal(t, 10.0, result.RedSeed)
	assert.Equal(t, 20.0, result.OrangeSeed)

	last := historyStart.AddDate(0, 0, 13)
	require.Len(t, result.YFuture, 4)
	want := []float64{30, 39, 43, 47}
	for i, p := range result.YFuture {
		assert.Equal(t, last.AddDate(0, 0, i), p.Date)
		assert.InDelta(t, want[i], p.Value, 1e-9)
	}

	require.Len(t, result.YTrue, 15)
	bridge := result.YTrue[len(result.YTrue)-1]
	assert.Equal(t, last, bridge.Date)
	assert.Equal(t, result.YFuture[0].Value, bridge.Value)

	require.Len(t, result.Alerts, 17)
	projected := result.Alerts[14:]
	for i, row := range projected {
		assert.True(t, row.Projected)
		assert.Equal(t, 0.0, row.UntreatedRed)
		assert.Equal(t, 0.0, row.UntreatedOrange)
		assert.Equal(t, float64(12+2*i), row.Red)
		assert.Equal(t, 1, row.Weekday)
	}

	assert.Equal(t, models.DateRange{Start: last, End: last.AddDate(0, 0, 3)}, result.PredictionPeriod)
	assert.Equal(t, 113.0, result.PeakStaffing)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, models.GrowthArithmetic, result.Mode)
}

func TestAssembleContinuityAndUniqueDates(t *testing.T) {
	assembler := newTestAssembler(t)
	history := buildHistory(30)
	modes := []models.GrowthParameters{
		models.Arithmetic{Increment: -1},
		models.Geometric{Ratio: 1.05},
		models.BellCurve{PeakOffsetDays: 10, UpstreamRatio: 1.1, DownstreamRatio: 0.9},
	}

	for _, params := range modes {
		result, err := assembler.Assemble(history, params, models.ProjectionWindow{HorizonDays: 21})
		require.NoError(t, err)

		require.NotEmpty(t, result.YTrue)
		require.NotEmpty(t, result.YFuture)
		assert.Equal(t, result.YFuture[0].Value, result.YTrue[len(result.YTrue)-1].Value, "mode %s", params.Mode())

		seen := make(map[time.Time]bool, len(result.Alerts))
		for _, row := range result.Alerts {
			assert.Falsef(t, seen[row.Date], "duplicate alert date %s", row.Date)
			seen[row.Date] = true
		}
		assert.Len(t, result.Alerts, 30+21)
	}
}

func TestAssembleIsIdempotent(t *testing.T) {
	assembler := newTestAssembler(t)
	history := buildHistory(20)
	params := models.BellCurve{PeakOffsetDays: 3, UpstreamRatio: 1.3, DownstreamRatio: 0.7}
	window := models.ProjectionWindow{HorizonDays: 10, DisplayStart: historyStart.AddDate(0, 0, 5)}

	first, err := assembler.Assemble(history, params, window)
	require.NoError(t, err)
	second, err := assembler.Assemble(history, params, window)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAssembleDoesNotMutateHistory(t *testing.T) {
	assembler := newTestAssembler(t)
	history := buildHistory(10)
	snapshot := buildHistory(10)

	_, err := assembler.Assemble(history, models.Geometric{Ratio: 2}, models.ProjectionWindow{HorizonDays: 5})
	require.NoError(t, err)
	assert.Equal(t, snapshot, history)
}

func TestAssembleRejectsBellPeakAtHorizon(t *testing.T) {
	assembler := newTestAssembler(t)
	history := buildHistory(10)

	for _, peak := range []int{7, 8, 100} {
		_, err := assembler.Assemble(history, models.BellCurve{PeakOffsetDays: peak, UpstreamRatio: 1.2, DownstreamRatio: 0.8}, models.ProjectionWindow{HorizonDays: 7})
		assert.Truef(t, utils.IsConfiguration(err), "peak %d: %v", peak, err)
	}
}

func TestAssembleRejectsMalformedHistory(t *testing.T) {
	assembler := newTestAssembler(t)
	window := models.ProjectionWindow{HorizonDays: 3}
	params := models.Arithmetic{Increment: 1}

	_, err := assembler.Assemble(models.HistoricalSeries{}, params, window)
	assert.True(t, utils.IsContractViolation(err))

	unordered := buildHistory(5)
	unordered.Alerts[2].Date, unordered.Alerts[3].Date = unordered.Alerts[3].Date, unordered.Alerts[2].Date
	unordered.Staffing[2].Date, unordered.Staffing[3].Date = unordered.Staffing[3].Date, unordered.Staffing[2].Date
	_, err = assembler.Assemble(unordered, params, window)
	assert.True(t, utils.IsContractViolation(err))

	short := buildHistory(5)
	short.Staffing = short.Staffing[:4]
	_, err = assembler.Assemble(short, params, window)
	assert.True(t, utils.IsContractViolation(err))
}

func TestAssembleSeedUsesAvailableDays(t *testing.T) {
	assembler := newTestAssembler(t)
	history := buildHistory(4) // red 0..3 -> mean 1.5 -> 2

	result, err := assembler.Assemble(history, models.Arithmetic{}, models.ProjectionWindow{HorizonDays: 1})
	require.NoError(t, err)
	assert.Equal(t, 2.0, result.RedSeed)
	assert.Equal(t, 3.0, result.OrangeSeed)
}

func TestAssembleDisplayEndBeforeProjection(t *testing.T) {
	assembler := newTestAssembler(t)
	history := buildHistory(14)
	end := historyStart.AddDate(0, 0, 9)

	result, err := assembler.Assemble(history, models.Geometric{Ratio: 1.1}, models.ProjectionWindow{HorizonDays: 7, DisplayEnd: end})
	require.NoError(t, err)

	assert.Empty(t, result.YFuture)
	require.Len(t, result.YTrue, 10)
	assert.Equal(t, end, result.YTrue[9].Date)
	require.Len(t, result.Alerts, 10)
	for _, row := range result.Alerts {
		assert.False(t, row.Projected)
	}
}

func TestAssembleDisplayStartClampedToHistory(t *testing.T) {
	assembler := newTestAssembler(t)
	history := buildHistory(10)

	window := models.ProjectionWindow{HorizonDays: 5, DisplayStart: historyStart.AddDate(-1, 0, 0)}
	result, err := assembler.Assemble(history, models.Arithmetic{Increment: 1}, window)
	require.NoError(t, err)
	assert.Equal(t, historyStart, result.Display.Start)
	assert.Len(t, result.YTrue, 11)
	assert.Empty(t, result.Warnings)
}

func TestAssembleDefaultWindowUsesEpoch(t *testing.T) {
	epoch := historyStart.AddDate(0, 0, 4)
	assembler := newTestAssembler(t, WithEpoch(epoch))
	history := buildHistory(10)

	result, err := assembler.Assemble(history, models.Arithmetic{Increment: 1}, models.ProjectionWindow{HorizonDays: 5})
	require.NoError(t, err)
	assert.Equal(t, epoch, result.Display.Start)
	assert.Equal(t, historyStart.AddDate(0, 0, 14), result.Display.End)
	assert.Equal(t, epoch, result.YTrue[0].Date)
	assert.Len(t, result.YFuture, 6)
}

func TestAssembleDegenerateWindowWarns(t *testing.T) {
	assembler := newTestAssembler(t)
	history := buildHistory(10)

	window := models.ProjectionWindow{
		HorizonDays:  5,
		DisplayStart: historyStart.AddDate(0, 0, 8),
		DisplayEnd:   historyStart.AddDate(0, 0, 2),
	}
	result, err := assembler.Assemble(history, models.Arithmetic{Increment: 1}, window)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, models.WarningDegenerateInput, result.Warnings[0].Kind)
	assert.Empty(t, result.YTrue)
	assert.Empty(t, result.YFuture)
	assert.Empty(t, result.Alerts)
	assert.Equal(t, 0.0, result.PeakStaffing)

	before := models.ProjectionWindow{HorizonDays: 5, DisplayEnd: historyStart.AddDate(0, 0, -3)}
	result, err = assembler.Assemble(history, models.Arithmetic{Increment: 1}, before)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Empty(t, result.YTrue)

	// Projection ends on day 14; the window lies entirely after it.
	after := models.ProjectionWindow{
		HorizonDays:  5,
		DisplayStart: historyStart.AddDate(0, 0, 20),
		DisplayEnd:   historyStart.AddDate(0, 0, 25),
	}
	result, err = assembler.Assemble(history, models.Arithmetic{Increment: 1}, after)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, models.WarningDegenerateInput, result.Warnings[0].Kind)
	assert.Contains(t, result.Warnings[0].Message, "after the projection ends")
	assert.Empty(t, result.YTrue)
	assert.Empty(t, result.YFuture)
	assert.Empty(t, result.Alerts)

	// Without an end the window defaults to the projection end and inverts.
	open := models.ProjectionWindow{HorizonDays: 5, DisplayStart: historyStart.AddDate(0, 0, 20)}
	result, err = assembler.Assemble(history, models.Arithmetic{Increment: 1}, open)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "is after display end")
	assert.Empty(t, result.YFuture)
}

func TestAssembleRejectsNonFiniteProjection(t *testing.T) {
	assembler := newTestAssembler(t)
	history := buildHistory(14)

	_, err := assembler.Assemble(history, models.Geometric{Ratio: 1e200}, models.ProjectionWindow{HorizonDays: 3})
	require.Error(t, err)
	assert.True(t, utils.IsConfiguration(err))
	assert.Contains(t, err.Error(), "day 2")

	_, err = assembler.Assemble(history, models.Geometric{Ratio: math.NaN()}, models.ProjectionWindow{HorizonDays: 3})
	require.Error(t, err)
	assert.True(t, utils.IsConfiguration(err))
}

func TestNewAssemblerRejectsMismatchedModel(t *testing.T) {
	scaler, err := artifacts.NewStandardScaler([]string{"a", "b", "c", "d"}, make([]float64, 4), []float64{1, 1, 1, 1})
	require.NoError(t, err)
	model, err := artifacts.NewLinearModel("nurse", []string{"a", "b", "c", "d", "e"}, 0, make([]float64, 5))
	require.NoError(t, err)

	_, err = NewAssembler(model, scaler, artifacts.ContractV1)
	assert.True(t, utils.IsContractViolation(err))
}
