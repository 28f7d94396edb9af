package registry

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Nico-Draagron/clima-negocios/internal/metrics"
	"github.com/Nico-Draagron/clima-negocios/internal/ml"
	"github.com/Nico-Draagron/clima-negocios/internal/models"
)

// MetadataStore persists registry rows. *database.DB implements it.
type MetadataStore interface {
	SaveModelMetadata(ctx context.Context, meta *models.ModelMetadata) error
	GetModelMetadata(ctx context.Context, name string) (*models.ModelMetadata, error)
	GetProductionModels(ctx context.Context) ([]models.ModelMetadata, error)
}

// Registry tracks trained models: metadata rows in the store, JSON
// artifacts on disk, and a read-mostly in-memory cache. Register swaps
// the cache entry atomically; a forecast already holding the old
// *TrainedModel keeps using it safely because models are never mutated
// after training.
type Registry struct {
	mu       sync.RWMutex
	cache    map[string]*ml.TrainedModel
	store    MetadataStore
	modelDir string
}

// New creates a registry writing artifacts under modelDir.
func New(store MetadataStore, modelDir string) (*Registry, error) {
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model directory %s: %w", modelDir, err)
	}

	return &Registry{
		cache:    make(map[string]*ml.TrainedModel),
		store:    store,
		modelDir: modelDir,
	}, nil
}

// ModelName derives the deterministic registry name for a tenant and
// forecast type.
func ModelName(forecastType string, tenantID int64) string {
	return fmt.Sprintf("%s_tenant_%d", forecastType, tenantID)
}

// Get returns the cached model for a name, if any.
func (r *Registry) Get(name string) (*ml.TrainedModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.cache[name]
	return m, ok
}

// Register persists a freshly trained model (artifact file + metadata
// row) and then swaps it into the cache. Persistence happens outside
// the lock; only the map swap is guarded.
func (r *Registry) Register(ctx context.Context, model *ml.TrainedModel) error {
	artifactPath := filepath.Join(r.modelDir, model.Name+"_model.json")
	if err := model.SaveArtifact(artifactPath); err != nil {
		return err
	}

	meta := &models.ModelMetadata{
		Name:         model.Name,
		Version:      "1.0",
		Algorithm:    ml.AlgorithmRandomForest,
		FeatureNames: model.FeatureNames,
		Importance:   model.Importance,
		Metrics:      model.Metrics,
		InProduction: true,
		ArtifactPath: artifactPath,
		TrainedAt:    model.TrainedAt,
	}
	if err := r.store.SaveModelMetadata(ctx, meta); err != nil {
		return fmt.Errorf("failed to save model metadata for %s: %w", model.Name, err)
	}

	r.mu.Lock()
	r.cache[model.Name] = model
	size := len(r.cache)
	r.mu.Unlock()

	metrics.ModelsInCache.Set(float64(size))
	return nil
}

// LoadProduction restores every in-production model artifact into the
// cache. Individual load failures are logged and skipped so one corrupt
// artifact does not take the service down.
func (r *Registry) LoadProduction(ctx context.Context) error {
	metas, err := r.store.GetProductionModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list production models: %w", err)
	}

	loaded := 0
	for _, meta := range metas {
		model, err := ml.LoadArtifact(meta.ArtifactPath)
		if err != nil {
			log.Printf("Warning: failed to load model %s: %v", meta.Name, err)
			continue
		}

		r.mu.Lock()
		r.cache[meta.Name] = model
		r.mu.Unlock()
		loaded++
	}

	r.mu.RLock()
	metrics.ModelsInCache.Set(float64(len(r.cache)))
	r.mu.RUnlock()

	log.Printf("✓ Loaded %d of %d production models", loaded, len(metas))
	return nil
}

// Importance returns a model's stored feature-importance ranking,
// falling back to the metadata row when the model is not cached.
func (r *Registry) Importance(ctx context.Context, name string) (map[string]float64, error) {
	if model, ok := r.Get(name); ok {
		return model.Importance, nil
	}

	meta, err := r.store.GetModelMetadata(ctx, name)
	if err != nil {
		return nil, err
	}
	return meta.Importance, nil
}

// Names returns the sorted names of all cached models.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.cache))
	for name := range r.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
