package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Nico-Draagron/clima-negocios/internal/models"
)

// Algorithm identifier persisted with every model.
const AlgorithmRandomForest = "RandomForest"

// TrainedModel bundles a fitted forest with everything prediction needs
// to reproduce the training-time feature treatment: the exact feature
// ordering and the fitted scaler. Instances are immutable after
// training; a retrain produces a new one.
type TrainedModel struct {
	Name         string                 `json:"name"`
	Forest       *RandomForest          `json:"forest"`
	Scaler       *StandardScaler        `json:"scaler"`
	FeatureNames []string               `json:"feature_names"`
	Importance   map[string]float64     `json:"feature_importance"`
	Metrics      models.TrainingMetrics `json:"metrics"`
	TrainedAt    time.Time              `json:"trained_at"`
}

// Predict scales one raw feature row and returns the point estimate.
func (m *TrainedModel) Predict(row []float64) float64 {
	return m.Forest.Predict(m.Scaler.Transform(row))
}

// PredictInterval returns the point estimate together with the 5th and
// 95th percentile of the individual tree predictions. With fewer than
// two trees there is no spread to measure, so the interval falls back
// to ±10% of the estimate.
func (m *TrainedModel) PredictInterval(row []float64) (value, lower, upper float64) {
	scaled := m.Scaler.Transform(row)
	value = m.Forest.Predict(scaled)

	preds := m.Forest.PredictAll(scaled)
	if len(preds) < 2 {
		return value, value * 0.9, value * 1.1
	}

	sort.Float64s(preds)
	lower = stat.Quantile(0.05, stat.LinInterp, preds, nil)
	upper = stat.Quantile(0.95, stat.LinInterp, preds, nil)
	return value, lower, upper
}

// TopImportance returns the k highest-magnitude feature importances.
func TopImportance(names []string, importances []float64, k int) map[string]float64 {
	type pair struct {
		name  string
		value float64
	}

	pairs := make([]pair, 0, len(names))
	for i, name := range names {
		pairs = append(pairs, pair{name: name, value: importances[i]})
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].value != pairs[b].value {
			return pairs[a].value > pairs[b].value
		}
		return pairs[a].name < pairs[b].name
	})

	if k > len(pairs) {
		k = len(pairs)
	}

	out := make(map[string]float64, k)
	for _, p := range pairs[:k] {
		out[p.name] = p.value
	}
	return out
}

// SaveArtifact serializes the model to a JSON file.
func (m *TrainedModel) SaveArtifact(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal model %s: %w", m.Name, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model artifact %s: %w", path, err)
	}

	return nil
}

// LoadArtifact reads a model back from its JSON file.
func LoadArtifact(path string) (*TrainedModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact %s: %w", path, err)
	}

	var m TrainedModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model artifact %s: %w", path, err)
	}

	return &m, nil
}
