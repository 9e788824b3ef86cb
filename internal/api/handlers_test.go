package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/taskforcehq/taskforce-forecast/internal/models"
	"github.com/taskforcehq/taskforce-forecast/internal/services"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

type fakeForecaster struct {
	got  models.ForecastRequest
	resp services.Forecast
	err  error
}

func (f *fakeForecaster) Forecast(_ context.Context, req models.ForecastRequest) (services.Forecast, error) {
	f.got = req
	return f.resp, f.err
}

func (f *fakeForecaster) DatasetStatus(context.Context) (models.Freshness, error) {
	return models.Freshness{
		LastDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Expected: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		UpToDate: true,
		RowCount: 10,
	}, nil
}

func (f *fakeForecaster) Populations() []models.Population {
	return []models.Population{models.PopulationNurse}
}

func sampleForecast() services.Forecast {
	last := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	return services.Forecast{
		ID:          "f-1",
		GeneratedAt: last.Add(30 * time.Hour),
		Result: models.ForecastResult{
			Population: models.PopulationNurse,
			Mode:       models.GrowthArithmetic,
			YTrue:      []models.SeriesPoint{{Date: last, Value: 139}, {Date: last, Value: 140}},
			YFuture:    []models.SeriesPoint{{Date: last, Value: 140}, {Date: last.AddDate(0, 0, 1), Value: 142}},
			Alerts: []models.AlertRow{
				{Date: last, Red: 10, Orange: 20, Weekday: 1},
				{Date: last.AddDate(0, 0, 1), Red: 11, Orange: 21, Weekday: 1, Projected: true},
			},
			PredictionPeriod: models.DateRange{Start: last, End: last.AddDate(0, 0, 1)},
			Display:          models.DateRange{Start: last, End: last.AddDate(0, 0, 1)},
			PeakStaffing:     142,
			Warnings:         []models.Warning{{Kind: models.WarningDegenerateInput, Message: "x"}},
		},
	}
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("build struct: %v", err)
	}
	return s
}

func TestFromStructForecastRequest(t *testing.T) {
	req, err := FromStructForecastRequest(mustStruct(t, map[string]any{
		"population":       "its",
		"mode":             "bell",
		"peak_offset_days": 3,
		"upstream_ratio":   1.2,
		"downstream_ratio": 0.8,
		"horizon_days":     10,
		"display_end":      "2024-02-01",
	}))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.Population != models.PopulationNurse {
		t.Fatalf("unexpected population: %s", req.Population)
	}
	if req.HorizonDays != 10 || req.Growth.PeakOffsetDays != 3 {
		t.Fatalf("unexpected days: horizon=%d peak=%d", req.HorizonDays, req.Growth.PeakOffsetDays)
	}
	if req.Growth.Mode != "bell" || req.Growth.UpstreamRatio != 1.2 || req.DisplayEnd != "2024-02-01" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestFromStructForecastRequestRejectsBadInput(t *testing.T) {
	cases := map[string]map[string]any{
		"missing horizon":    {"population": "nurse", "mode": "arithmetic"},
		"fractional horizon": {"population": "nurse", "mode": "arithmetic", "horizon_days": 2.5},
		"unknown field":      {"population": "nurse", "horizon_days": 2, "tenant": "x"},
		"bad population":     {"population": "robots", "horizon_days": 2},
		"mistyped mode":      {"population": "nurse", "horizon_days": 2, "mode": 7},
	}
	for name, fields := range cases {
		_, err := FromStructForecastRequest(mustStruct(t, fields))
		if !utils.IsConfiguration(err) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestForecastPayloadUsesCalendarDates(t *testing.T) {
	payload := ForecastPayload(sampleForecast())
	if _, err := ToStruct(payload); err != nil {
		t.Fatalf("payload must convert to Struct: %v", err)
	}
	future := payload["y_future"].([]any)
	first := future[0].(map[string]any)
	if first["date"] != "2024-01-10" || first["value"] != 140.0 {
		t.Fatalf("unexpected first future point: %v", first)
	}
	period := payload["prediction_period"].(map[string]any)
	if period["end"] != "2024-01-11" {
		t.Fatalf("unexpected prediction period: %v", period)
	}
	if payload["generated_at"] != "2024-01-11T06:00:00Z" {
		t.Fatalf("unexpected generated_at: %v", payload["generated_at"])
	}
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{utils.ConfigurationError("op", "bad"), codes.InvalidArgument},
		{utils.ContractViolationError("op", "bad"), codes.FailedPrecondition},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("db down"), codes.Internal},
	}
	for _, tc := range cases {
		if got := status.Code(ToStatus(tc.err)); got != tc.want {
			t.Fatalf("error %v: expected %v, got %v", tc.err, tc.want, got)
		}
	}
}

func TestHandlerForecastMapsServiceErrors(t *testing.T) {
	svc := &fakeForecaster{err: utils.ConfigurationError("validate growth", "peak beyond horizon")}
	handler := NewForecastHandler(nil, svc)

	_, err := handler.Forecast(context.Background(), mustStruct(t, map[string]any{
		"population": "nurse", "mode": "bell_curve", "horizon_days": 3, "peak_offset_days": 3,
	}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if svc.got.Growth.PeakOffsetDays != 3 {
		t.Fatalf("request not forwarded: %+v", svc.got)
	}
}
