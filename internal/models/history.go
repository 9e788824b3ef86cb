package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// Population selects which staffing metric (and trained model) a forecast targets.
type Population string

const (
	PopulationNurse  Population = "nurse"
	PopulationDoctor Population = "doctor"
)

// Populations lists every supported population in a stable order.
func Populations() []Population {
	return []Population{PopulationNurse, PopulationDoctor}
}

// ParsePopulation resolves a caller-supplied population name. "its" is accepted
// as the dashboard label for nurses.
func ParsePopulation(value string) (Population, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "nurse", "nurses", "its":
		return PopulationNurse, nil
	case "doctor", "doctors":
		return PopulationDoctor, nil
	default:
		return "", utils.ConfigurationError("parse population", "unknown population %q", value)
	}
}

// AlertRow is one day of alert counts. Projected rows carry zero untreated counts.
type AlertRow struct {
	Date            time.Time `json:"date"`
	Red             float64   `json:"red"`
	UntreatedRed    float64   `json:"untreated_red"`
	Orange          float64   `json:"orange"`
	UntreatedOrange float64   `json:"untreated_orange"`
	Weekday         int       `json:"weekday"`
	Projected       bool      `json:"projected"`
}

// SeriesPoint is a single dated value of a staffing series.
type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// HistoricalSeries pairs daily alert rows with the staffing metric observed on the same days.
type HistoricalSeries struct {
	Alerts   []AlertRow
	Staffing []SeriesPoint
}

// LastDate returns the most recent observed day, or the zero time when empty.
func (h HistoricalSeries) LastDate() time.Time {
	if len(h.Alerts) == 0 {
		return time.Time{}
	}
	return h.Alerts[len(h.Alerts)-1].Date
}

// FirstDate returns the earliest observed day, or the zero time when empty.
func (h HistoricalSeries) FirstDate() time.Time {
	if len(h.Alerts) == 0 {
		return time.Time{}
	}
	return h.Alerts[0].Date
}

// DatasetRow mirrors one row of the operations dataset table.
type DatasetRow struct {
	Date            time.Time `json:"date"`
	Red             float64   `json:"red"`
	UntreatedRed    float64   `json:"untreated_red"`
	Orange          float64   `json:"orange"`
	UntreatedOrange float64   `json:"untreated_orange"`
	Weekday         int       `json:"weekday"`
	NursePresence   float64   `json:"nurse_presence"`
	DoctorPresence  float64   `json:"doctor_presence"`
}

// Dataset is the full historical table as returned by the retrieval collaborator.
type Dataset struct {
	Rows      []DatasetRow `json:"rows"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// LastDate returns the most recent row date, or the zero time when empty.
func (d Dataset) LastDate() time.Time {
	if len(d.Rows) == 0 {
		return time.Time{}
	}
	return d.Rows[len(d.Rows)-1].Date
}

// Series projects the dataset onto the alert columns plus one population's staffing metric.
func (d Dataset) Series(pop Population) (HistoricalSeries, error) {
	series := HistoricalSeries{
		Alerts:   make([]AlertRow, 0, len(d.Rows)),
		Staffing: make([]SeriesPoint, 0, len(d.Rows)),
	}
	for _, row := range d.Rows {
		var value float64
		switch pop {
		case PopulationNurse:
			value = row.NursePresence
		case PopulationDoctor:
			value = row.DoctorPresence
		default:
			return HistoricalSeries{}, fmt.Errorf("unknown population %q", pop)
		}
		series.Alerts = append(series.Alerts, AlertRow{
			Date:            row.Date,
			Red:             row.Red,
			UntreatedRed:    row.UntreatedRed,
			Orange:          row.Orange,
			UntreatedOrange: row.UntreatedOrange,
			Weekday:         row.Weekday,
		})
		series.Staffing = append(series.Staffing, SeriesPoint{Date: row.Date, Value: value})
	}
	return series, nil
}

// Freshness describes how current the dataset is relative to a reference day.
type Freshness struct {
	LastDate  time.Time `json:"last_date"`
	Expected  time.Time `json:"expected"`
	UpToDate  bool      `json:"up_to_date"`
	LagDays   int       `json:"lag_days"`
	RowCount  int       `json:"row_count"`
	CheckedAt time.Time `json:"checked_at"`
}

// CheckFreshness reports whether the dataset holds yesterday's row relative to now.
func (d Dataset) CheckFreshness(now time.Time) Freshness {
	y, m, day := now.UTC().Date()
	expected := time.Date(y, m, day-1, 0, 0, 0, 0, time.UTC)
	last := d.LastDate()
	f := Freshness{
		LastDate:  last,
		Expected:  expected,
		RowCount:  len(d.Rows),
		CheckedAt: now.UTC(),
	}
	if last.IsZero() {
		return f
	}
	f.LagDays = int(expected.Sub(last).Hours() / 24)
	f.UpToDate = f.LagDays <= 0
	return f
}
