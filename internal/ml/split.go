package ml

import "math"

// Fold is one chronological train/test split. Train rows always precede
// test rows; shuffled k-fold leaks future data into training and is not
// supported here.
type Fold struct {
	TrainEnd  int // train rows are [0, TrainEnd)
	TestStart int // test rows are [TestStart, TestEnd)
	TestEnd   int
}

// TimeSeriesSplit produces folds the way a walk-forward validation
// does: each successive fold trains on a longer prefix and tests on the
// next block. Returns nil if n is too small for the requested folds.
func TimeSeriesSplit(n, folds int) []Fold {
	if folds < 2 {
		return nil
	}

	testSize := n / (folds + 1)
	if testSize == 0 {
		return nil
	}

	out := make([]Fold, 0, folds)
	firstTrainEnd := n - folds*testSize

	for i := 0; i < folds; i++ {
		trainEnd := firstTrainEnd + i*testSize
		out = append(out, Fold{
			TrainEnd:  trainEnd,
			TestStart: trainEnd,
			TestEnd:   trainEnd + testSize,
		})
	}

	return out
}

// MAE is the mean absolute error.
func MAE(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// RMSE is the root mean squared error.
func RMSE(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		d := actual[i] - predicted[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(actual)))
}

// R2 is the coefficient of determination. A constant actual series
// yields 0 by convention.
func R2(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}

	mean := 0.0
	for _, v := range actual {
		mean += v
	}
	mean /= float64(len(actual))

	ssRes, ssTot := 0.0, 0.0
	for i := range actual {
		d := actual[i] - predicted[i]
		ssRes += d * d
		t := actual[i] - mean
		ssTot += t * t
	}

	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}
