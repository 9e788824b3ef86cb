package artifacts

import (
	"fmt"
	"strings"

	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// Column identifies one feature column the regression models were trained on.
type Column string

const (
	ColumnRed             Column = "number_of_red_alerts"
	ColumnUntreatedRed    Column = "number_of_non_treated_red_alerts"
	ColumnOrange          Column = "number_of_orange_alerts"
	ColumnUntreatedOrange Column = "number_of_non_treated_orange_alerts"
	ColumnWeekday         Column = "weekdays"
)

// FeatureContract fixes the feature column order shared by the feature builder,
// the fitted scaler and the trained models. Scaled columns come first, in order,
// followed by the pass-through columns.
type FeatureContract struct {
	Version     string
	Scaled      []Column
	Passthrough []Column
}

// ContractV1 is the layout the current nurse and doctor models were trained on.
var ContractV1 = FeatureContract{
	Version:     "v1",
	Scaled:      []Column{ColumnRed, ColumnUntreatedRed, ColumnOrange, ColumnUntreatedOrange},
	Passthrough: []Column{ColumnWeekday},
}

var contracts = map[string]FeatureContract{
	ContractV1.Version: ContractV1,
}

// LookupContract returns the contract registered under version.
func LookupContract(version string) (FeatureContract, error) {
	if version == "" {
		version = ContractV1.Version
	}
	c, ok := contracts[version]
	if !ok {
		return FeatureContract{}, utils.ContractViolationError("lookup contract", "unknown feature contract %q", version)
	}
	return c, nil
}

// Columns returns the full model input order.
func (c FeatureContract) Columns() []Column {
	cols := make([]Column, 0, len(c.Scaled)+len(c.Passthrough))
	cols = append(cols, c.Scaled...)
	return append(cols, c.Passthrough...)
}

// Width is the number of model input columns.
func (c FeatureContract) Width() int { return len(c.Scaled) + len(c.Passthrough) }

// ValidateModel checks a model's declared features against the full column order.
func (c FeatureContract) ValidateModel(name string, features []string) error {
	if err := sameColumns(c.Columns(), features); err != nil {
		return utils.ContractViolationError("validate model", "model %s does not match contract %s: %v", name, c.Version, err)
	}
	return nil
}

// ValidateScaler checks the scaler's fitted columns against the scaled prefix.
func (c FeatureContract) ValidateScaler(columns []string) error {
	if err := sameColumns(c.Scaled, columns); err != nil {
		return utils.ContractViolationError("validate scaler", "scaler does not match contract %s: %v", c.Version, err)
	}
	return nil
}

func sameColumns(want []Column, got []string) error {
	if len(want) != len(got) {
		return fmt.Errorf("expected %d columns, got %d", len(want), len(got))
	}
	for i := range want {
		if string(want[i]) != strings.TrimSpace(got[i]) {
			return fmt.Errorf("column %d is %q, expected %q", i, got[i], want[i])
		}
	}
	return nil
}
