package engine

import (
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// Regressor is the trained model's inference operation.
type Regressor interface {
	Predict(rows [][]float64) ([]float64, error)
}

// Predictor is a thin call-through to the trained model.
type Predictor struct {
	model Regressor
}

// NewPredictor wraps model.
func NewPredictor(model Regressor) *Predictor {
	return &Predictor{model: model}
}

// Predict returns one projected staffing value per row, in row order.
func (p *Predictor) Predict(rows [][]float64) ([]float64, error) {
	if p.model == nil {
		return nil, utils.ContractViolationError("predict", "model not configured")
	}
	out, err := p.model.Predict(rows)
	if err != nil {
		return nil, err
	}
	if len(out) != len(rows) {
		return nil, utils.ContractViolationError("predict", "model returned %d values for %d rows", len(out), len(rows))
	}
	return out, nil
}
