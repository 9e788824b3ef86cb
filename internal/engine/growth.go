package engine

import (
	"github.com/taskforcehq/taskforce-forecast/internal/models"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// GrowthProjector synthesises future alert counts under a growth law.
type GrowthProjector struct{}

// NewGrowthProjector creates a projector. It holds no state.
func NewGrowthProjector() *GrowthProjector {
	return &GrowthProjector{}
}

// Project returns horizonDays+1 values starting at seed. Each mode is a first-order
// recurrence; multiplicative modes keep a zero seed at zero.
func (g *GrowthProjector) Project(seed float64, params models.GrowthParameters, horizonDays int) ([]float64, error) {
	if horizonDays < 0 {
		return nil, utils.ConfigurationError("project", "horizon must not be negative, got %d", horizonDays)
	}
	if params == nil {
		return nil, utils.ConfigurationError("project", "growth parameters are required")
	}

	values := make([]float64, horizonDays+1)
	values[0] = seed

	switch p := params.(type) {
	case models.Arithmetic:
		for i := 1; i <= horizonDays; i++ {
			values[i] = values[i-1] + p.Increment
		}
	case models.Geometric:
		for i := 1; i <= horizonDays; i++ {
			values[i] = p.Ratio * values[i-1]
		}
	case models.BellCurve:
		if p.PeakOffsetDays < 0 {
			return nil, utils.ConfigurationError("project", "peak offset must not be negative, got %d", p.PeakOffsetDays)
		}
		for i := 1; i <= horizonDays; i++ {
			ratio := p.DownstreamRatio
			if i <= p.PeakOffsetDays {
				ratio = p.UpstreamRatio
			}
			values[i] = ratio * values[i-1]
		}
	default:
		return nil, utils.ConfigurationError("project", "unsupported growth mode %q", params.Mode())
	}
	return values, nil
}

// ValidateGrowth checks the parameter/horizon combination accepted by the assembler.
func ValidateGrowth(params models.GrowthParameters, horizonDays int) error {
	if params == nil {
		return utils.ConfigurationError("validate growth", "growth parameters are required")
	}
	if horizonDays < 1 {
		return utils.ConfigurationError("validate growth", "horizon must be at least 1 day, got %d", horizonDays)
	}
	if bell, ok := params.(models.BellCurve); ok {
		if bell.PeakOffsetDays < 0 {
			return utils.ConfigurationError("validate growth", "peak offset must not be negative, got %d", bell.PeakOffsetDays)
		}
		if bell.PeakOffsetDays >= horizonDays {
			return utils.ConfigurationError("validate growth", "peak offset %d must be strictly less than horizon %d", bell.PeakOffsetDays, horizonDays)
		}
	}
	return nil
}
