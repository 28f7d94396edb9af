package ml

import (
	"path/filepath"
	"testing"
)

func trainTestModel(t *testing.T) *TrainedModel {
	t.Helper()

	trainer := NewTrainerWithParams(smallParams())
	model, err := trainer.Train(trendMatrix(200), "interval_test")
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	return model
}

func TestPredictInterval_Ordering(t *testing.T) {
	model := trainTestModel(t)

	rows := [][]float64{
		{10, 3},
		{50, 0},
		{180, 6},
	}
	for _, row := range rows {
		value, lower, upper := model.PredictInterval(row)
		if lower > value || value > upper {
			t.Errorf("PredictInterval(%v): want lower <= value <= upper, got %v, %v, %v",
				row, lower, value, upper)
		}
	}
}

func TestPredictInterval_FewTrees(t *testing.T) {
	params := smallParams()
	params.Trees = 1

	trainer := NewTrainerWithParams(params)
	model, err := trainer.Train(trendMatrix(100), "one_tree")
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	value, lower, upper := model.PredictInterval([]float64{50, 2})
	if lower != value*0.9 || upper != value*1.1 {
		t.Errorf("single-tree interval should be ±10%%, got %v, %v around %v", lower, upper, value)
	}
}

func TestTopImportance(t *testing.T) {
	names := []string{"a", "b", "c", "d"}
	importances := []float64{0.1, 0.4, 0.4, 0.1}

	got := TopImportance(names, importances, 2)

	if len(got) != 2 {
		t.Fatalf("TopImportance() size = %d, want 2", len(got))
	}
	// Equal values break ties by name.
	if _, ok := got["b"]; !ok {
		t.Error("expected b in top 2")
	}
	if _, ok := got["c"]; !ok {
		t.Error("expected c in top 2")
	}
}

func TestTopImportance_KLargerThanFeatures(t *testing.T) {
	got := TopImportance([]string{"a"}, []float64{1}, 20)
	if len(got) != 1 {
		t.Errorf("TopImportance() size = %d, want 1", len(got))
	}
}

func TestArtifactRoundtrip(t *testing.T) {
	model := trainTestModel(t)
	path := filepath.Join(t.TempDir(), "model.json")

	if err := model.SaveArtifact(path); err != nil {
		t.Fatalf("SaveArtifact() error = %v", err)
	}

	loaded, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("LoadArtifact() error = %v", err)
	}

	if loaded.Name != model.Name {
		t.Errorf("Name = %s, want %s", loaded.Name, model.Name)
	}

	// The restored model must predict identically.
	row := []float64{42, 1}
	if loaded.Predict(row) != model.Predict(row) {
		t.Error("loaded model predicts differently from the original")
	}
}

func TestLoadArtifact_MissingFile(t *testing.T) {
	if _, err := LoadArtifact(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("LoadArtifact() on a missing file should fail")
	}
}
