package artifacts

import (
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// StandardScaler applies an already-fitted (x - mean) / scale rescaling per column.
type StandardScaler struct {
	columns []string
	mean    []float64
	scale   []float64
}

// NewStandardScaler validates and freezes fitted scaler parameters.
func NewStandardScaler(columns []string, mean, scale []float64) (*StandardScaler, error) {
	if len(columns) == 0 || len(mean) != len(columns) || len(scale) != len(columns) {
		return nil, utils.ContractViolationError("new scaler", "columns (%d), mean (%d) and scale (%d) must have equal non-zero length", len(columns), len(mean), len(scale))
	}
	s := &StandardScaler{
		columns: append([]string(nil), columns...),
		mean:    append([]float64(nil), mean...),
		scale:   make([]float64, len(scale)),
	}
	for i, v := range scale {
		// zero-variance columns are left unscaled
		if v == 0 {
			v = 1
		}
		s.scale[i] = v
	}
	return s, nil
}

// Columns returns the fitted column order.
func (s *StandardScaler) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Transform rescales rows into a new slice; the input is not modified.
func (s *StandardScaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(s.mean) {
			return nil, utils.ContractViolationError("scaler transform", "row %d has %d columns, scaler expects %d", i, len(row), len(s.mean))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.mean[j]) / s.scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}
