package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforcehq/taskforce-forecast/internal/models"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

func TestProjectArithmetic(t *testing.T) {
	values, err := NewGrowthProjector().Project(10, models.Arithmetic{Increment: 2}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 12, 14, 16}, values)
}

func TestProjectGeometric(t *testing.T) {
	values, err := NewGrowthProjector().Project(10, models.Geometric{Ratio: 1.1}, 2)
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.InDelta(t, 10.0, values[0], 1e-9)
	assert.InDelta(t, 11.0, values[1], 1e-9)
	assert.InDelta(t, 12.1, values[2], 1e-9)
}

func TestProjectBellCurve(t *testing.T) {
	params := models.BellCurve{PeakOffsetDays: 2, UpstreamRatio: 2, DownstreamRatio: 0.5}
	values, err := NewGrowthProjector().Project(10, params, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 40, 20, 10}, values)
}

func TestProjectClosedForms(t *testing.T) {
	projector := NewGrowthProjector()
	const seed, horizon = 7.0, 12

	arith, err := projector.Project(seed, models.Arithmetic{Increment: 1.5}, horizon)
	require.NoError(t, err)
	geo, err := projector.Project(seed, models.Geometric{Ratio: 1.03}, horizon)
	require.NoError(t, err)
	bell, err := projector.Project(seed, models.BellCurve{PeakOffsetDays: 5, UpstreamRatio: 1.2, DownstreamRatio: 0.8}, horizon)
	require.NoError(t, err)

	for i := 0; i <= horizon; i++ {
		assert.InDelta(t, seed+float64(i)*1.5, arith[i], 1e-9)
		assert.InDelta(t, seed*pow(1.03, i), geo[i], 1e-9)
		want := seed * pow(1.2, i)
		if i > 5 {
			want = seed * pow(1.2, 5) * pow(0.8, i-5)
		}
		assert.InDelta(t, want, bell[i], 1e-9)
	}
}

func TestProjectEdgeCases(t *testing.T) {
	projector := NewGrowthProjector()

	values, err := projector.Project(42, models.Geometric{Ratio: 3}, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{42}, values)

	values, err = projector.Project(0, models.BellCurve{PeakOffsetDays: 1, UpstreamRatio: 5, DownstreamRatio: 0.1}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, values)

	_, err = projector.Project(1, models.Arithmetic{Increment: 1}, -1)
	assert.True(t, utils.IsConfiguration(err))

	_, err = projector.Project(1, nil, 3)
	assert.True(t, utils.IsConfiguration(err))
}

func TestValidateGrowthPeakOffset(t *testing.T) {
	for _, peak := range []int{5, 6, 30} {
		err := ValidateGrowth(models.BellCurve{PeakOffsetDays: peak, UpstreamRatio: 1.1, DownstreamRatio: 0.9}, 5)
		assert.Truef(t, utils.IsConfiguration(err), "peak %d should be rejected", peak)
	}
	assert.NoError(t, ValidateGrowth(models.BellCurve{PeakOffsetDays: 4, UpstreamRatio: 1.1, DownstreamRatio: 0.9}, 5))
	assert.True(t, utils.IsConfiguration(ValidateGrowth(models.Arithmetic{}, 0)))
}

func pow(base float64, n int) float64 {
	out := 1.0
	for i := 0; i < n; i++ {
		out *= base
	}
	return out
}
