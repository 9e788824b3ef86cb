package api

import (
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/taskforcehq/taskforce-forecast/internal/models"
	"github.com/taskforcehq/taskforce-forecast/internal/services"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// ForecastRequestFields are the accepted request keys, shared by the gRPC and HTTP transports.
type ForecastRequestFields struct {
	Population      string   `json:"population"`
	Mode            string   `json:"mode"`
	Increment       float64  `json:"increment"`
	Ratio           float64  `json:"ratio"`
	PeakOffsetDays  *float64 `json:"peak_offset_days"`
	UpstreamRatio   float64  `json:"upstream_ratio"`
	DownstreamRatio float64  `json:"downstream_ratio"`
	HorizonDays     *float64 `json:"horizon_days"`
	DisplayStart    string   `json:"display_start"`
	DisplayEnd      string   `json:"display_end"`
}

// ToDomain validates the raw fields and builds a ForecastRequest.
func (f ForecastRequestFields) ToDomain() (models.ForecastRequest, error) {
	pop, err := models.ParsePopulation(f.Population)
	if err != nil {
		return models.ForecastRequest{}, err
	}
	if f.HorizonDays == nil {
		return models.ForecastRequest{}, utils.ConfigurationError("forecast request", "horizon_days is required")
	}
	horizon, err := wholeDays("horizon_days", *f.HorizonDays)
	if err != nil {
		return models.ForecastRequest{}, err
	}
	peak := 0
	if f.PeakOffsetDays != nil {
		if peak, err = wholeDays("peak_offset_days", *f.PeakOffsetDays); err != nil {
			return models.ForecastRequest{}, err
		}
	}
	return models.ForecastRequest{
		Population: pop,
		Growth: models.GrowthInput{
			Mode:            f.Mode,
			Increment:       f.Increment,
			Ratio:           f.Ratio,
			PeakOffsetDays:  peak,
			UpstreamRatio:   f.UpstreamRatio,
			DownstreamRatio: f.DownstreamRatio,
		},
		HorizonDays:  horizon,
		DisplayStart: f.DisplayStart,
		DisplayEnd:   f.DisplayEnd,
	}, nil
}

func wholeDays(name string, v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, utils.ConfigurationError("forecast request", "%s must be a whole number of days, got %v", name, v)
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, utils.ConfigurationError("forecast request", "%s out of range", name)
	}
	return int(v), nil
}

// FromStructForecastRequest reads a Struct-encoded forecast request.
func FromStructForecastRequest(s *structpb.Struct) (models.ForecastRequest, error) {
	if s == nil {
		return models.ForecastRequest{}, utils.ConfigurationError("forecast request", "request is nil")
	}
	var f ForecastRequestFields
	for key, value := range s.GetFields() {
		var err error
		switch strings.ToLower(key) {
		case "population":
			f.Population, err = stringField(key, value)
		case "mode":
			f.Mode, err = stringField(key, value)
		case "increment":
			f.Increment, err = numberField(key, value)
		case "ratio":
			f.Ratio, err = numberField(key, value)
		case "upstream_ratio":
			f.UpstreamRatio, err = numberField(key, value)
		case "downstream_ratio":
			f.DownstreamRatio, err = numberField(key, value)
		case "peak_offset_days":
			var n float64
			n, err = numberField(key, value)
			f.PeakOffsetDays = &n
		case "horizon_days":
			var n float64
			n, err = numberField(key, value)
			f.HorizonDays = &n
		case "display_start":
			f.DisplayStart, err = stringField(key, value)
		case "display_end":
			f.DisplayEnd, err = stringField(key, value)
		default:
			err = utils.ConfigurationError("forecast request", "unknown field %q", key)
		}
		if err != nil {
			return models.ForecastRequest{}, err
		}
	}
	return f.ToDomain()
}

func stringField(key string, v *structpb.Value) (string, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		return "", utils.ConfigurationError("forecast request", "%s must be a string", key)
	}
}

func numberField(key string, v *structpb.Value) (float64, error) {
	if n, ok := v.GetKind().(*structpb.Value_NumberValue); ok {
		return n.NumberValue, nil
	}
	return 0, utils.ConfigurationError("forecast request", "%s must be a number", key)
}

// ForecastPayload renders a forecast as a JSON-compatible document with calendar-day dates.
func ForecastPayload(f services.Forecast) map[string]any {
	r := f.Result
	warnings := make([]any, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		warnings = append(warnings, map[string]any{"kind": w.Kind, "message": w.Message})
	}
	alerts := make([]any, 0, len(r.Alerts))
	for _, a := range r.Alerts {
		alerts = append(alerts, map[string]any{
			"date":             utils.FormatDate(a.Date),
			"red":              a.Red,
			"untreated_red":    a.UntreatedRed,
			"orange":           a.Orange,
			"untreated_orange": a.UntreatedOrange,
			"weekday":          a.Weekday,
			"projected":        a.Projected,
		})
	}
	return map[string]any{
		"id":                f.ID,
		"generated_at":      f.GeneratedAt.UTC().Format(time.RFC3339),
		"population":        string(r.Population),
		"mode":              string(r.Mode),
		"y_true":            seriesPayload(r.YTrue),
		"y_future":          seriesPayload(r.YFuture),
		"alerts":            alerts,
		"prediction_period": rangePayload(r.PredictionPeriod),
		"display":           rangePayload(r.Display),
		"red_seed":          r.RedSeed,
		"orange_seed":       r.OrangeSeed,
		"peak_staffing":     r.PeakStaffing,
		"warnings":          warnings,
	}
}

// FreshnessPayload renders a dataset freshness report.
func FreshnessPayload(f models.Freshness) map[string]any {
	return map[string]any{
		"last_date":  utils.FormatDate(f.LastDate),
		"expected":   utils.FormatDate(f.Expected),
		"up_to_date": f.UpToDate,
		"lag_days":   f.LagDays,
		"row_count":  f.RowCount,
		"checked_at": f.CheckedAt.UTC().Format(time.RFC3339),
	}
}

func seriesPayload(points []models.SeriesPoint) []any {
	out := make([]any, 0, len(points))
	for _, p := range points {
		out = append(out, map[string]any{"date": utils.FormatDate(p.Date), "value": p.Value})
	}
	return out
}

func rangePayload(r models.DateRange) map[string]any {
	return map[string]any{"start": utils.FormatDate(r.Start), "end": utils.FormatDate(r.End)}
}

// ToStruct converts a payload document into a protobuf Struct.
func ToStruct(payload map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(payload)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return s, nil
}
