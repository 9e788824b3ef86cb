package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testArtifacts = `contract: v1
scaler:
  columns: [number_of_red_alerts, number_of_non_treated_red_alerts, number_of_orange_alerts, number_of_non_treated_orange_alerts]
  mean: [0, 0, 0, 0]
  scale: [1, 1, 1, 1]
models:
  doctor:
    features: [number_of_red_alerts, number_of_non_treated_red_alerts, number_of_orange_alerts, number_of_non_treated_orange_alerts, weekdays]
    intercept: 10
    coefficients: [1, 0, 1, 0, 0]
`

const testCSV = `date_analysis,number_of_red_alerts,number_of_non_treated_red_alerts,number_of_orange_alerts,number_of_non_treated_orange_alerts,weekdays,time_presence_nurse,time_presence_doctor
2024-01-01,2,0,4,0,1,50,16
2024-01-02,2,0,4,0,1,52,16
2024-01-03,2,0,4,0,1,51,16
`

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"artifacts.yaml": testArtifacts,
		"dataset.csv":    testCSV,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	cfg := "dataset:\n  csvPath: " + filepath.Join(dir, "dataset.csv") +
		"\n  epoch: \"2024-01-01\"\nartifacts:\n  path: " + filepath.Join(dir, "artifacts.yaml") +
		"\nlogging:\n  level: error\n"
	path := filepath.Join(dir, "forecast.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestForecastCommandPrintsJSON(t *testing.T) {
	cfgPath := writeFixtures(t)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"forecast", "--config", cfgPath, "--population", "doctor",
		"--mode", "geometric", "--ratio", "2", "--horizon-days", "2", "--indent=false"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	var payload struct {
		YFuture []struct {
			Date  string  `json:"date"`
			Value float64 `json:"value"`
		} `json:"y_future"`
	}
	if err := json.Unmarshal(out.Bytes(), &payload); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	// seeds 2 and 4 double each day; prediction = 10 + red + orange.
	want := []float64{16, 22, 34}
	if len(payload.YFuture) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(payload.YFuture))
	}
	for i, p := range payload.YFuture {
		if p.Value != want[i] {
			t.Fatalf("point %d: expected %v, got %v", i, want[i], p.Value)
		}
	}
	if payload.YFuture[2].Date != "2024-01-05" {
		t.Fatalf("unexpected last projected date %s", payload.YFuture[2].Date)
	}
}

func TestForecastCommandRejectsMissingModel(t *testing.T) {
	cfgPath := writeFixtures(t)
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"forecast", "--config", cfgPath, "--population", "nurse", "--horizon-days", "2"})

	err := root.Execute()
	var ee *exitErr
	if !errors.As(err, &ee) || ee.code != 2 {
		t.Fatalf("expected exit code 2, got %v", err)
	}
}

func TestCheckDataReportsStaleDataset(t *testing.T) {
	cfgPath := writeFixtures(t)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"check-data", "--config", cfgPath})

	err := root.Execute()
	var ee *exitErr
	if !errors.As(err, &ee) || ee.code != 3 {
		t.Fatalf("expected exit code 3 for a 2024 dataset, got %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte(`"last_date": "2024-01-03"`)) {
		t.Fatalf("expected freshness report on stdout, got %s", out.String())
	}
}
