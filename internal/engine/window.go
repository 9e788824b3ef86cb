package engine

import (
	"fmt"
	"time"

	"github.com/taskforcehq/taskforce-forecast/internal/models"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// resolveDisplay turns the caller's optional display bounds into a concrete range.
// Missing bounds default to the dataset epoch and to the end of the projection;
// a start before the first observed day is clamped to it.
func resolveDisplay(window models.ProjectionWindow, epoch, first, last time.Time) (models.DateRange, []models.Warning) {
	projectionEnd := utils.AddDays(last, window.HorizonDays)

	start := window.DisplayStart
	if start.IsZero() {
		start = epoch
	}
	if start.IsZero() || start.Before(first) {
		start = first
	}
	end := window.DisplayEnd
	if end.IsZero() {
		end = projectionEnd
	}
	rng := models.DateRange{Start: utils.Day(start), End: utils.Day(end)}

	var warnings []models.Warning
	switch {
	case rng.Start.After(rng.End):
		warnings = append(warnings, degenerate("display start %s is after display end %s", rng.Start, rng.End))
	case rng.End.Before(first):
		warnings = append(warnings, degenerate("display window ends %s, before the first observed day %s", rng.End, first))
	case rng.Start.After(projectionEnd):
		warnings = append(warnings, degenerate("display window starts %s, after the projection ends %s", rng.Start, projectionEnd))
	}
	return rng, warnings
}

func degenerate(format string, dates ...time.Time) models.Warning {
	args := make([]any, len(dates))
	for i, d := range dates {
		args[i] = utils.FormatDate(d)
	}
	return models.Warning{Kind: models.WarningDegenerateInput, Message: fmt.Sprintf(format, args...)}
}

func clipPoints(points []models.SeriesPoint, rng models.DateRange) []models.SeriesPoint {
	out := make([]models.SeriesPoint, 0, len(points))
	for _, p := range points {
		if rng.Contains(utils.Day(p.Date)) {
			out = append(out, p)
		}
	}
	return out
}

func clipAlerts(rows []models.AlertRow, rng models.DateRange) []models.AlertRow {
	out := make([]models.AlertRow, 0, len(rows))
	for _, r := range rows {
		if rng.Contains(utils.Day(r.Date)) {
			out = append(out, r)
		}
	}
	return out
}
