package ml

import (
	"math"
	"testing"
)

func TestTimeSeriesSplit(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		folds int
		want  []Fold
	}{
		{
			name:  "twelve rows five folds",
			n:     12,
			folds: 5,
			want: []Fold{
				{TrainEnd: 2, TestStart: 2, TestEnd: 4},
				{TrainEnd: 4, TestStart: 4, TestEnd: 6},
				{TrainEnd: 6, TestStart: 6, TestEnd: 8},
				{TrainEnd: 8, TestStart: 8, TestEnd: 10},
				{TrainEnd: 10, TestStart: 10, TestEnd: 12},
			},
		},
		{
			name:  "too few rows",
			n:     4,
			folds: 5,
			want:  nil,
		},
		{
			name:  "single fold rejected",
			n:     100,
			folds: 1,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimeSeriesSplit(tt.n, tt.folds)

			if len(got) != len(tt.want) {
				t.Fatalf("TimeSeriesSplit() folds = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("fold %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTimeSeriesSplit_TrainPrecedesTest(t *testing.T) {
	for _, fold := range TimeSeriesSplit(200, 5) {
		if fold.TestStart < fold.TrainEnd {
			t.Errorf("fold %+v has test rows before the end of training", fold)
		}
		if fold.TestEnd > 200 {
			t.Errorf("fold %+v exceeds the dataset", fold)
		}
	}
}

func TestMAE(t *testing.T) {
	got := MAE([]float64{1, 2, 3}, []float64{2, 2, 5})
	if got != 1 {
		t.Errorf("MAE() = %v, want 1", got)
	}

	if MAE(nil, nil) != 0 {
		t.Error("MAE of empty series should be 0")
	}
}

func TestRMSE(t *testing.T) {
	got := RMSE([]float64{0, 0}, []float64{3, 4})
	want := math.Sqrt(12.5)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("RMSE() = %v, want %v", got, want)
	}
}

func TestR2(t *testing.T) {
	tests := []struct {
		name      string
		actual    []float64
		predicted []float64
		want      float64
	}{
		{
			name:      "perfect fit",
			actual:    []float64{1, 2, 3, 4},
			predicted: []float64{1, 2, 3, 4},
			want:      1,
		},
		{
			name:      "mean predictor",
			actual:    []float64{1, 2, 3},
			predicted: []float64{2, 2, 2},
			want:      0,
		},
		{
			name:      "constant actual series",
			actual:    []float64{5, 5, 5},
			predicted: []float64{4, 5, 6},
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := R2(tt.actual, tt.predicted)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("R2() = %v, want %v", got, tt.want)
			}
		})
	}
}
