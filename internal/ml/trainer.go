package ml

import (
	"log"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Nico-Draagron/clima-negocios/internal/features"
	"github.com/Nico-Draagron/clima-negocios/internal/metrics"
	"github.com/Nico-Draagron/clima-negocios/internal/models"
)

const cvFolds = 5

// holdoutShare is the chronological tail held out for the final error
// estimate. A random holdout would leak future rows into training.
const holdoutShare = 0.2

// Trainer fits forest models with chronological cross-validation.
type Trainer struct {
	params ForestParams
}

// NewTrainer creates a trainer with the default hyperparameters.
func NewTrainer() *Trainer {
	return &Trainer{params: DefaultForestParams()}
}

// NewTrainerWithParams creates a trainer with explicit hyperparameters.
// Tests shrink the forest this way.
func NewTrainerWithParams(params ForestParams) *Trainer {
	return &Trainer{params: params}
}

// Train fits a model on the feature matrix. Cross-validation folds are
// chronological; each fold's scaler and forest see only rows before the
// fold's test block. The final model is refit on every row and scored
// on the most recent holdoutShare of them. Fit failures come back as
// TrainingError.
func (t *Trainer) Train(m *features.Matrix, modelName string) (*TrainedModel, error) {
	start := time.Now()
	model, err := t.train(m, modelName)
	metrics.RecordTraining(modelName, time.Since(start), err)
	if err != nil {
		return nil, &models.TrainingError{ModelName: modelName, Err: err}
	}

	log.Printf("✓ Trained %s: %d rows, holdout MAE=%.2f RMSE=%.2f R2=%.3f (%.1fs)",
		modelName, len(m.X), model.Metrics.MAE, model.Metrics.RMSE, model.Metrics.R2, time.Since(start).Seconds())

	return model, nil
}

func (t *Trainer) train(m *features.Matrix, modelName string) (*TrainedModel, error) {
	n := len(m.X)

	cvScores := t.crossValidate(m)

	scaler := FitScaler(m.X)
	scaled := scaler.TransformMatrix(m.X)

	forest, err := FitForest(scaled, m.Y, t.params)
	if err != nil {
		return nil, err
	}

	testSize := int(float64(n) * holdoutShare)
	if testSize < 1 {
		testSize = 1
	}

	actual := m.Y[n-testSize:]
	predicted := make([]float64, testSize)
	for i := 0; i < testSize; i++ {
		predicted[i] = forest.Predict(scaled[n-testSize+i])
	}

	trainMetrics := models.TrainingMetrics{
		MAE:      MAE(actual, predicted),
		RMSE:     RMSE(actual, predicted),
		R2:       R2(actual, predicted),
		CVScores: cvScores,
		Samples:  n,
	}
	if len(cvScores) > 0 {
		trainMetrics.CVScoreMean = stat.Mean(cvScores, nil)
		trainMetrics.CVScoreStd = stat.PopStdDev(cvScores, nil)
	}

	return &TrainedModel{
		Name:         modelName,
		Forest:       forest,
		Scaler:       scaler,
		FeatureNames: m.Names,
		Importance:   TopImportance(m.Names, forest.Importances, 20),
		Metrics:      trainMetrics,
		TrainedAt:    time.Now(),
	}, nil
}

// crossValidate returns per-fold R2 scores over chronological splits.
// Folds the data cannot support are skipped rather than fabricated.
func (t *Trainer) crossValidate(m *features.Matrix) []float64 {
	folds := TimeSeriesSplit(len(m.X), cvFolds)

	var scores []float64
	for _, fold := range folds {
		if fold.TrainEnd < t.params.MinSamplesLeaf*2 {
			continue
		}

		trainX := m.X[:fold.TrainEnd]
		trainY := m.Y[:fold.TrainEnd]

		scaler := FitScaler(trainX)
		forest, err := FitForest(scaler.TransformMatrix(trainX), trainY, t.params)
		if err != nil {
			log.Printf("Warning: CV fold ending at %d failed: %v", fold.TestEnd, err)
			continue
		}

		actual := m.Y[fold.TestStart:fold.TestEnd]
		predicted := make([]float64, 0, fold.TestEnd-fold.TestStart)
		for i := fold.TestStart; i < fold.TestEnd; i++ {
			predicted = append(predicted, forest.Predict(scaler.Transform(m.X[i])))
		}

		scores = append(scores, R2(actual, predicted))
	}

	return scores
}
