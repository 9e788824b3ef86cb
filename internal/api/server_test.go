package api

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/taskforcehq/taskforce-forecast/internal/config"
)

func startTestServer(t *testing.T, svc Forecaster) *grpc.ClientConn {
	t.Helper()
	server, err := NewServer(config.ServerConfig{Address: "127.0.0.1:0", GracefulTimeout: time.Second}, NewForecastHandler(nil, svc))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	go func() { _ = server.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), server.GracefulTimeout())
		defer cancel()
		server.Shutdown(ctx)
	})

	conn, err := grpc.NewClient(server.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServerForecastRoundTrip(t *testing.T) {
	svc := &fakeForecaster{resp: sampleForecast()}
	client := NewForecastEngineClient(startTestServer(t, svc))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := structpb.NewStruct(map[string]any{"population": "nurse", "mode": "arithmetic", "increment": 1, "horizon_days": 1})
	resp, err := client.Forecast(ctx, req)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if resp.GetFields()["id"].GetStringValue() != "f-1" {
		t.Fatalf("unexpected id: %v", resp.GetFields()["id"])
	}
	if got := resp.GetFields()["peak_staffing"].GetNumberValue(); got != 142 {
		t.Fatalf("unexpected peak: %v", got)
	}
	if svc.got.Growth.Increment != 1 {
		t.Fatalf("increment not forwarded: %+v", svc.got.Growth)
	}
}

func TestServerRejectsInvalidRequest(t *testing.T) {
	client := NewForecastEngineClient(startTestServer(t, &fakeForecaster{}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := structpb.NewStruct(map[string]any{"population": "nurse"})
	_, err := client.Forecast(ctx, req)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestServerHealthAndStatus(t *testing.T) {
	conn := startTestServer(t, &fakeForecaster{})
	client := NewForecastEngineClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.GetFields()["status"].GetStringValue() != "SERVING" {
		t.Fatalf("unexpected health: %v", health)
	}

	ds, err := client.DatasetStatus(ctx)
	if err != nil {
		t.Fatalf("dataset status: %v", err)
	}
	if !ds.GetFields()["up_to_date"].GetBoolValue() || ds.GetFields()["last_date"].GetStringValue() != "2024-01-10" {
		t.Fatalf("unexpected dataset status: %v", ds)
	}

	probe, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("grpc health: %v", err)
	}
	if probe.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected grpc health status: %v", probe.GetStatus())
	}
}
