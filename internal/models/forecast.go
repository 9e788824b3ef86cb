package models

import "time"

// ProjectionWindow bounds the projection horizon and the displayed date range.
// A zero DisplayStart or DisplayEnd means the bound was absent or unparsable.
type ProjectionWindow struct {
	HorizonDays  int
	DisplayStart time.Time
	DisplayEnd   time.Time
}

// DateRange is an inclusive calendar range.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within the inclusive range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

const (
	// WarningDegenerateInput flags a display window that cannot intersect the data.
	WarningDegenerateInput = "degenerate_input"
	// WarningUnparsableDate flags a display bound that was ignored because it did not parse.
	WarningUnparsableDate = "unparsable_date"
)

// Warning is a non-fatal condition raised while assembling a forecast.
type Warning struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ForecastResult is the display-ready output handed to the presentation layer.
type ForecastResult struct {
	Population       Population    `json:"population,omitempty"`
	Mode             GrowthMode    `json:"mode"`
	YTrue            []SeriesPoint `json:"y_true"`
	YFuture          []SeriesPoint `json:"y_future"`
	Alerts           []AlertRow    `json:"alerts"`
	PredictionPeriod DateRange     `json:"prediction_period"`
	Display          DateRange     `json:"display"`
	RedSeed          float64       `json:"red_seed"`
	OrangeSeed       float64       `json:"orange_seed"`
	PeakStaffing     float64       `json:"peak_staffing"`
	Warnings         []Warning     `json:"warnings,omitempty"`
}

// ForecastRequest is the transport-independent request handled by the service layer.
type ForecastRequest struct {
	Population   Population
	Growth       GrowthInput
	HorizonDays  int
	DisplayStart string
	DisplayEnd   string
}
