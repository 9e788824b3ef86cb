package artifacts

import (
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// LinearModel is a trained ordinary least squares regression: intercept + coef . x.
type LinearModel struct {
	name         string
	features     []string
	intercept    float64
	coefficients []float64
}

// NewLinearModel freezes trained regression parameters.
func NewLinearModel(name string, features []string, intercept float64, coefficients []float64) (*LinearModel, error) {
	if len(coefficients) == 0 || len(features) != len(coefficients) {
		return nil, utils.ContractViolationError("new linear model", "model %s: %d features for %d coefficients", name, len(features), len(coefficients))
	}
	return &LinearModel{
		name:         name,
		features:     append([]string(nil), features...),
		intercept:    intercept,
		coefficients: append([]float64(nil), coefficients...),
	}, nil
}

// Name returns the model identifier (usually the population).
func (m *LinearModel) Name() string { return m.name }

// Features returns the training column order.
func (m *LinearModel) Features() []string {
	return append([]string(nil), m.features...)
}

// Predict returns one value per row, in row order.
func (m *LinearModel) Predict(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(m.coefficients) {
			return nil, utils.ContractViolationError("linear predict", "model %s: row %d has %d columns, expected %d", m.name, i, len(row), len(m.coefficients))
		}
		y := m.intercept
		for j, x := range row {
			y += m.coefficients[j] * x
		}
		out[i] = y
	}
	return out, nil
}
