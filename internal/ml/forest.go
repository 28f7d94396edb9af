package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// ForestParams are the random-forest hyperparameters. Defaults mirror
// the production configuration this engine was tuned with.
type ForestParams struct {
	Trees           int   `json:"trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	MaxFeatures     int   `json:"max_features"` // 0 means all features
	Seed            int64 `json:"seed"`
}

// DefaultForestParams returns the standard hyperparameters.
func DefaultForestParams() ForestParams {
	return ForestParams{
		Trees:           100,
		MaxDepth:        15,
		MinSamplesSplit: 10,
		MinSamplesLeaf:  5,
		Seed:            42,
	}
}

// RandomForest is an ensemble of bootstrap-sampled regression trees.
// Fitting is deterministic for a fixed seed.
type RandomForest struct {
	Params      ForestParams      `json:"params"`
	Trees       []*regressionTree `json:"trees"`
	Importances []float64         `json:"importances"`
	NumFeatures int               `json:"num_features"`
}

// FitForest fits the ensemble on X, y. Each tree sees a bootstrap sample
// of the rows. Non-finite inputs are a fit error, not something to paper
// over.
func FitForest(X [][]float64, y []float64, params ForestParams) (*RandomForest, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("degenerate training input: %d rows, %d targets", len(X), len(y))
	}
	if err := checkFinite(X, y); err != nil {
		return nil, err
	}

	p := len(X[0])
	cfg := treeConfig{
		maxDepth:        params.MaxDepth,
		minSamplesSplit: params.MinSamplesSplit,
		minSamplesLeaf:  params.MinSamplesLeaf,
		maxFeatures:     params.MaxFeatures,
	}

	forest := &RandomForest{
		Params:      params,
		Trees:       make([]*regressionTree, 0, params.Trees),
		Importances: make([]float64, p),
		NumFeatures: p,
	}

	n := len(X)
	for t := 0; t < params.Trees; t++ {
		rng := rand.New(rand.NewSource(params.Seed + int64(t)))

		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}

		forest.Trees = append(forest.Trees, fitTree(X, y, idx, cfg, rng, forest.Importances))
	}

	// Normalize importances to sum to 1.
	total := 0.0
	for _, v := range forest.Importances {
		total += v
	}
	if total > 0 {
		for i := range forest.Importances {
			forest.Importances[i] /= total
		}
	}

	return forest, nil
}

// Predict returns the ensemble mean for one row.
func (f *RandomForest) Predict(row []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}

	sum := 0.0
	for _, t := range f.Trees {
		sum += t.predict(row)
	}
	return sum / float64(len(f.Trees))
}

// PredictAll returns every tree's individual prediction for one row,
// for interval estimation from the ensemble spread.
func (f *RandomForest) PredictAll(row []float64) []float64 {
	out := make([]float64, len(f.Trees))
	for i, t := range f.Trees {
		out[i] = t.predict(row)
	}
	return out
}

func checkFinite(X [][]float64, y []float64) error {
	for i, row := range X {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("non-finite value at row %d, feature %d", i, j)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return fmt.Errorf("non-finite target at row %d", i)
		}
	}
	return nil
}
