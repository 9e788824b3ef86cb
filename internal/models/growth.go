package models

import (
	"strings"

	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// GrowthMode names one of the closed set of growth laws.
type GrowthMode string

const (
	GrowthArithmetic GrowthMode = "arithmetic"
	GrowthGeometric  GrowthMode = "geometric"
	GrowthBellCurve  GrowthMode = "bell_curve"
)

// ParseGrowthMode resolves a mode name. The dashboard's legacy labels
// "linear" and "quadratic" map to arithmetic and geometric.
func ParseGrowthMode(value string) (GrowthMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "arithmetic", "linear":
		return GrowthArithmetic, nil
	case "geometric", "quadratic":
		return GrowthGeometric, nil
	case "bell_curve", "bell-curve", "bellcurve", "bell":
		return GrowthBellCurve, nil
	default:
		return "", utils.ConfigurationError("parse growth mode", "unknown growth mode %q", value)
	}
}

// GrowthParameters is the closed variant of growth laws. Only the types in
// this package implement it.
type GrowthParameters interface {
	Mode() GrowthMode
	sealed()
}

// Arithmetic adds a constant increment per day.
type Arithmetic struct {
	Increment float64 `json:"increment"`
}

// Geometric multiplies by a constant ratio per day.
type Geometric struct {
	Ratio float64 `json:"ratio"`
}

// BellCurve grows by UpstreamRatio until PeakOffsetDays, then by DownstreamRatio.
// UpstreamRatio is expected above 1 and DownstreamRatio below 1, but neither is enforced.
type BellCurve struct {
	PeakOffsetDays  int     `json:"peak_offset_days"`
	UpstreamRatio   float64 `json:"upstream_ratio"`
	DownstreamRatio float64 `json:"downstream_ratio"`
}

func (Arithmetic) Mode() GrowthMode { return GrowthArithmetic }
func (Geometric) Mode() GrowthMode  { return GrowthGeometric }
func (BellCurve) Mode() GrowthMode  { return GrowthBellCurve }

func (Arithmetic) sealed() {}
func (Geometric) sealed()  {}
func (BellCurve) sealed()  {}

// Shape labels for BellCurve.Shape.
const (
	ShapeRiseThenDecay = "rise_then_decay"
	ShapeAtypical      = "atypical"
)

// Shape reports whether the ratios describe the expected rise-then-decay curve.
func (b BellCurve) Shape() string {
	if b.UpstreamRatio > 1 && b.DownstreamRatio < 1 {
		return ShapeRiseThenDecay
	}
	return ShapeAtypical
}

// GrowthInput is the flat, transport-facing form of GrowthParameters.
type GrowthInput struct {
	Mode            string  `json:"mode" yaml:"mode"`
	Increment       float64 `json:"increment,omitempty" yaml:"increment"`
	Ratio           float64 `json:"ratio,omitempty" yaml:"ratio"`
	PeakOffsetDays  int     `json:"peak_offset_days,omitempty" yaml:"peakOffsetDays"`
	UpstreamRatio   float64 `json:"upstream_ratio,omitempty" yaml:"upstreamRatio"`
	DownstreamRatio float64 `json:"downstream_ratio,omitempty" yaml:"downstreamRatio"`
}

// Resolve converts the flat input into its tagged variant.
func (s GrowthInput) Resolve() (GrowthParameters, error) {
	mode, err := ParseGrowthMode(s.Mode)
	if err != nil {
		return nil, err
	}
	switch mode {
	case GrowthArithmetic:
		return Arithmetic{Increment: s.Increment}, nil
	case GrowthGeometric:
		return Geometric{Ratio: s.Ratio}, nil
	case GrowthBellCurve:
		return BellCurve{
			PeakOffsetDays:  s.PeakOffsetDays,
			UpstreamRatio:   s.UpstreamRatio,
			DownstreamRatio: s.DownstreamRatio,
		}, nil
	}
	return nil, utils.ConfigurationError("resolve growth", "unhandled growth mode %q", mode)
}
