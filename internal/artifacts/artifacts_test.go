package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforcehq/taskforce-forecast/internal/models"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

const validBundle = `contract: v1
scaler:
  columns: [number_of_red_alerts, number_of_non_treated_red_alerts, number_of_orange_alerts, number_of_non_treated_orange_alerts]
  mean: [10, 1, 20, 2]
  scale: [2, 0, 4, 1]
models:
  nurse:
    features: [number_of_red_alerts, number_of_non_treated_red_alerts, number_of_orange_alerts, number_of_non_treated_orange_alerts, weekdays]
    intercept: 100
    coefficients: [5, 1, 2, 1, 10]
  doctor:
    features: [number_of_red_alerts, number_of_non_treated_red_alerts, number_of_orange_alerts, number_of_non_treated_orange_alerts, weekdays]
    intercept: 20
    coefficients: [1, 0, 1, 0, 3]
`

func TestLoadBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validBundle), 0o644))

	bundle, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", bundle.Contract.Version)
	assert.Equal(t, []models.Population{models.PopulationDoctor, models.PopulationNurse}, bundle.Populations())

	nurse, ok := bundle.Model(models.PopulationNurse)
	require.True(t, ok)
	out, err := nurse.Predict([][]float64{{1, 0, 1, 0, 1}})
	require.NoError(t, err)
	assert.InDelta(t, 117.0, out[0], 1e-9)
}

func TestParseRejectsReorderedModel(t *testing.T) {
	broken := `contract: v1
scaler:
  columns: [number_of_red_alerts, number_of_non_treated_red_alerts, number_of_orange_alerts, number_of_non_treated_orange_alerts]
  mean: [0, 0, 0, 0]
  scale: [1, 1, 1, 1]
models:
  nurse:
    features: [weekdays, number_of_red_alerts, number_of_non_treated_red_alerts, number_of_orange_alerts, number_of_non_treated_orange_alerts]
    intercept: 0
    coefficients: [1, 1, 1, 1, 1]
`
	_, err := Parse([]byte(broken))
	require.Error(t, err)
	assert.True(t, utils.IsContractViolation(err))
}

func TestParseRejectsUnknownContract(t *testing.T) {
	_, err := Parse([]byte("contract: v9\n"))
	assert.True(t, utils.IsContractViolation(err))
}

func TestStandardScalerTransform(t *testing.T) {
	scaler, err := NewStandardScaler([]string{"a", "b"}, []float64{10, 5}, []float64{2, 0})
	require.NoError(t, err)

	input := [][]float64{{12, 7}}
	out, err := scaler.Transform(input)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}}, out)
	assert.Equal(t, [][]float64{{12, 7}}, input, "input must not be mutated")

	_, err = scaler.Transform([][]float64{{1}})
	assert.True(t, utils.IsContractViolation(err))
}

func TestLinearModelRejectsRowWidth(t *testing.T) {
	model, err := NewLinearModel("nurse", []string{"a", "b"}, 1, []float64{1, 1})
	require.NoError(t, err)
	_, err = model.Predict([][]float64{{1, 2, 3}})
	assert.True(t, utils.IsContractViolation(err))
}

func TestContractColumnsOrder(t *testing.T) {
	cols := ContractV1.Columns()
	require.Len(t, cols, 5)
	assert.Equal(t, ColumnRed, cols[0])
	assert.Equal(t, ColumnWeekday, cols[4])
	assert.Equal(t, 5, ContractV1.Width())
}
