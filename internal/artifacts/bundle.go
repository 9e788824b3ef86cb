package artifacts

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/taskforcehq/taskforce-forecast/internal/models"
)

// Bundle holds the fitted scaler and one trained model per population. It is
// loaded once at start-up and shared read-only afterwards.
type Bundle struct {
	Contract FeatureContract
	Scaler   *StandardScaler
	models   map[models.Population]*LinearModel
}

// bundleFile is the YAML export of the training notebook's artefacts.
type bundleFile struct {
	Contract string `yaml:"contract"`
	Scaler   struct {
		Columns []string  `yaml:"columns"`
		Mean    []float64 `yaml:"mean"`
		Scale   []float64 `yaml:"scale"`
	} `yaml:"scaler"`
	Models map[string]struct {
		Features     []string  `yaml:"features"`
		Intercept    float64   `yaml:"intercept"`
		Coefficients []float64 `yaml:"coefficients"`
	} `yaml:"models"`
}

// Load reads and validates an artefact bundle from path.
func Load(path string, logger *slog.Logger) (*Bundle, error) {
	if path == "" {
		return nil, fmt.Errorf("artifacts path not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifacts: %w", err)
	}
	bundle, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("loaded model artifacts",
		slog.String("path", path),
		slog.String("contract", bundle.Contract.Version),
		slog.Any("populations", bundle.Populations()),
	)
	return bundle, nil
}

// Parse decodes a YAML artefact bundle and validates it against its feature contract.
func Parse(data []byte) (*Bundle, error) {
	var file bundleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse artifacts: %w", err)
	}

	contract, err := LookupContract(file.Contract)
	if err != nil {
		return nil, err
	}

	scaler, err := NewStandardScaler(file.Scaler.Columns, file.Scaler.Mean, file.Scaler.Scale)
	if err != nil {
		return nil, err
	}
	if err := contract.ValidateScaler(scaler.Columns()); err != nil {
		return nil, err
	}

	bundle := &Bundle{
		Contract: contract,
		Scaler:   scaler,
		models:   make(map[models.Population]*LinearModel, len(file.Models)),
	}
	for name, m := range file.Models {
		pop, err := models.ParsePopulation(name)
		if err != nil {
			return nil, fmt.Errorf("artifacts: %w", err)
		}
		model, err := NewLinearModel(string(pop), m.Features, m.Intercept, m.Coefficients)
		if err != nil {
			return nil, err
		}
		if err := contract.ValidateModel(model.Name(), model.Features()); err != nil {
			return nil, err
		}
		bundle.models[pop] = model
	}
	if len(bundle.models) == 0 {
		return nil, fmt.Errorf("artifacts: no models defined")
	}
	return bundle, nil
}

// Model returns the trained model for a population.
func (b *Bundle) Model(pop models.Population) (*LinearModel, bool) {
	m, ok := b.models[pop]
	return m, ok
}

// Populations lists the populations that have a trained model, sorted.
func (b *Bundle) Populations() []models.Population {
	pops := make([]models.Population, 0, len(b.models))
	for pop := range b.models {
		pops = append(pops, pop)
	}
	sort.Slice(pops, func(i, j int) bool { return pops[i] < pops[j] })
	return pops
}
