package ml

import (
	"math"
	"testing"
)

func TestFitScaler(t *testing.T) {
	X := [][]float64{
		{1, 10},
		{2, 10},
		{3, 10},
	}

	s := FitScaler(X)

	if s.Mean[0] != 2 {
		t.Errorf("Mean[0] = %v, want 2", s.Mean[0])
	}
	wantStd := math.Sqrt(2.0 / 3.0)
	if math.Abs(s.Std[0]-wantStd) > 1e-9 {
		t.Errorf("Std[0] = %v, want %v", s.Std[0], wantStd)
	}

	// Zero-variance column passes through with std 1.
	if s.Std[1] != 1 {
		t.Errorf("Std[1] = %v, want 1 for constant column", s.Std[1])
	}
}

func TestTransform(t *testing.T) {
	s := &StandardScaler{Mean: []float64{10}, Std: []float64{2}}

	got := s.Transform([]float64{14})
	if got[0] != 2 {
		t.Errorf("Transform() = %v, want 2", got[0])
	}
}

func TestTransformMatrix_CenteredColumns(t *testing.T) {
	X := [][]float64{
		{1, 5}, {3, 7}, {5, 9}, {7, 11},
	}

	s := FitScaler(X)
	scaled := s.TransformMatrix(X)

	for j := 0; j < 2; j++ {
		sum := 0.0
		for i := range scaled {
			sum += scaled[i][j]
		}
		if math.Abs(sum) > 1e-9 {
			t.Errorf("column %d not centered, sum = %v", j, sum)
		}
	}
}

func TestFitScaler_Empty(t *testing.T) {
	s := FitScaler(nil)
	if len(s.Mean) != 0 {
		t.Errorf("FitScaler(nil) should produce empty scaler, got %d means", len(s.Mean))
	}
}
