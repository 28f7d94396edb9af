package ml

import "math"

// StandardScaler centers each feature column and divides by its
// population standard deviation. Columns with zero variance are passed
// through unscaled.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler learns column means and deviations from X.
func FitScaler(X [][]float64) *StandardScaler {
	if len(X) == 0 {
		return &StandardScaler{}
	}

	p := len(X[0])
	s := &StandardScaler{
		Mean: make([]float64, p),
		Std:  make([]float64, p),
	}

	n := float64(len(X))
	for _, row := range X {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= n
	}

	for _, row := range X {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Std[j] += d * d
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j] / n)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}

	return s
}

// Transform scales one row.
func (s *StandardScaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

// TransformMatrix scales every row of X.
func (s *StandardScaler) TransformMatrix(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.Transform(row)
	}
	return out
}
