package ml

import (
	"math"
	"math/rand"
	"testing"
)

func smallParams() ForestParams {
	return ForestParams{
		Trees:           20,
		MaxDepth:        8,
		MinSamplesSplit: 4,
		MinSamplesLeaf:  2,
		Seed:            42,
	}
}

// synthetic learnable target: y = 3*x0 + noise-free step on x1
func syntheticData(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		x0 := rng.Float64() * 10
		x1 := rng.Float64()
		X[i] = []float64{x0, x1}
		y[i] = 3 * x0
		if x1 > 0.5 {
			y[i] += 20
		}
	}
	return X, y
}

func TestFitForest_LearnsSignal(t *testing.T) {
	X, y := syntheticData(300, 1)

	forest, err := FitForest(X, y, smallParams())
	if err != nil {
		t.Fatalf("FitForest() error = %v", err)
	}

	predicted := make([]float64, len(X))
	for i := range X {
		predicted[i] = forest.Predict(X[i])
	}

	if r2 := R2(y, predicted); r2 < 0.9 {
		t.Errorf("in-sample R2 = %v, want > 0.9 on a learnable target", r2)
	}
}

func TestFitForest_Deterministic(t *testing.T) {
	X, y := syntheticData(150, 2)

	f1, err := FitForest(X, y, smallParams())
	if err != nil {
		t.Fatalf("FitForest() error = %v", err)
	}
	f2, err := FitForest(X, y, smallParams())
	if err != nil {
		t.Fatalf("FitForest() error = %v", err)
	}

	for i := 0; i < 10; i++ {
		if f1.Predict(X[i]) != f2.Predict(X[i]) {
			t.Errorf("same seed produced different predictions at row %d", i)
		}
	}
}

func TestFitForest_ImportancesNormalized(t *testing.T) {
	X, y := syntheticData(200, 3)

	forest, err := FitForest(X, y, smallParams())
	if err != nil {
		t.Fatalf("FitForest() error = %v", err)
	}

	sum := 0.0
	for _, v := range forest.Importances {
		if v < 0 {
			t.Errorf("negative importance %v", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("importances sum = %v, want 1", sum)
	}
}

func TestFitForest_RejectsNonFinite(t *testing.T) {
	tests := []struct {
		name string
		X    [][]float64
		y    []float64
	}{
		{
			name: "NaN feature",
			X:    [][]float64{{1}, {math.NaN()}},
			y:    []float64{1, 2},
		},
		{
			name: "infinite target",
			X:    [][]float64{{1}, {2}},
			y:    []float64{1, math.Inf(1)},
		},
		{
			name: "empty input",
			X:    nil,
			y:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FitForest(tt.X, tt.y, smallParams()); err == nil {
				t.Error("FitForest() expected an error")
			}
		})
	}
}

func TestPredictAll_OneValuePerTree(t *testing.T) {
	X, y := syntheticData(100, 4)
	params := smallParams()

	forest, err := FitForest(X, y, params)
	if err != nil {
		t.Fatalf("FitForest() error = %v", err)
	}

	preds := forest.PredictAll(X[0])
	if len(preds) != params.Trees {
		t.Errorf("PredictAll() returned %d values, want %d", len(preds), params.Trees)
	}

	// Ensemble mean must equal Predict.
	sum := 0.0
	for _, p := range preds {
		sum += p
	}
	if math.Abs(sum/float64(len(preds))-forest.Predict(X[0])) > 1e-9 {
		t.Error("Predict() should be the mean of PredictAll()")
	}
}

func TestPredict_EmptyForest(t *testing.T) {
	f := &RandomForest{}
	if got := f.Predict([]float64{1, 2}); got != 0 {
		t.Errorf("Predict() on empty forest = %v, want 0", got)
	}
}
