package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Nico-Draagron/clima-negocios/internal/analyzer"
	"github.com/Nico-Draagron/clima-negocios/internal/cache"
	"github.com/Nico-Draagron/clima-negocios/internal/config"
	"github.com/Nico-Draagron/clima-negocios/internal/dataset"
	"github.com/Nico-Draagron/clima-negocios/internal/features"
	"github.com/Nico-Draagron/clima-negocios/internal/forecast"
	"github.com/Nico-Draagron/clima-negocios/internal/jobs"
	"github.com/Nico-Draagron/clima-negocios/internal/metrics"
	"github.com/Nico-Draagron/clima-negocios/internal/ml"
	"github.com/Nico-Draagron/clima-negocios/internal/models"
	"github.com/Nico-Draagron/clima-negocios/internal/registry"
)

// PredictionStore persists forecast request lifecycle rows.
// *database.DB implements it.
type PredictionStore interface {
	CreatePredictionJob(ctx context.Context, job *models.PredictionJob) error
	MarkPredictionRunning(ctx context.Context, id string) error
	CompletePredictionJob(ctx context.Context, id, modelName string, result []models.DayForecast) error
	FailPredictionJob(ctx context.Context, id, message string) error
	GetPredictionJob(ctx context.Context, id string) (*models.PredictionJob, error)
}

// ReportCache is the subset of the Redis cache the engine uses.
// *cache.Cache implements it.
type ReportCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	AcquireRetrainGuard(ctx context.Context, tenantID int64, ttl time.Duration) (bool, error)
	ReleaseRetrainGuard(ctx context.Context, tenantID int64) error
}

// Forecaster supplies day-level weather for the forecast horizon.
// *weather.Client implements it.
type Forecaster interface {
	DailyForecast(latitude, longitude float64, days int) ([]models.DailyWeather, error)
}

// maxForecastDays is the longest horizon the weather API serves.
const maxForecastDays = 16

// Options are the tunables of the engine. Forecaster and Locations are
// optional; without them horizon weather falls back to historical
// monthly averages.
type Options struct {
	MinTrainingSamples int
	LookbackMonths     int
	RetrainGuardTTL    time.Duration
	CacheTTL           time.Duration
	Forecaster         Forecaster
	Locations          []config.Location
}

// Engine is the predictive core's invocation surface: forecast
// building, feature-importance lookup, correlation analysis and guarded
// retraining. Training and forecasting run on the job queue, never on
// the caller's goroutine.
type Engine struct {
	builder  *dataset.Builder
	trainer  *ml.Trainer
	analyzer *analyzer.Analyzer
	registry *registry.Registry
	store    PredictionStore
	cache    ReportCache
	queue    *jobs.Queue
	opts     Options
}

// New wires the engine together.
func New(builder *dataset.Builder, trainer *ml.Trainer, reg *registry.Registry, store PredictionStore, c ReportCache, queue *jobs.Queue, opts Options) *Engine {
	return &Engine{
		builder:  builder,
		trainer:  trainer,
		analyzer: analyzer.New(),
		registry: reg,
		store:    store,
		cache:    c,
		queue:    queue,
		opts:     opts,
	}
}

// BuildForecast validates the request, records a pending prediction row
// and enqueues the pipeline. The returned job carries the ID the caller
// polls; the heavy work happens on a worker.
func (e *Engine) BuildForecast(ctx context.Context, req models.ForecastRequest) (*models.PredictionJob, error) {
	if req.Type == "" {
		req.Type = models.ForecastDailySales
	}
	if req.Type != models.ForecastDailySales {
		return nil, &models.ForecastInputError{Reason: fmt.Sprintf("unsupported forecast type: %s", req.Type)}
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return nil, &models.ForecastInputError{Reason: "start and end dates are required"}
	}
	if req.End.Before(req.Start) {
		return nil, &models.ForecastInputError{Reason: "end date before start date"}
	}
	if req.LookbackMonths <= 0 {
		req.LookbackMonths = e.opts.LookbackMonths
	}

	job := &models.PredictionJob{
		ID:        jobs.NewID(),
		TenantID:  req.TenantID,
		Type:      req.Type,
		Status:    models.StatusPending,
		Start:     req.Start,
		End:       req.End,
		CreatedAt: time.Now(),
	}

	if err := e.store.CreatePredictionJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create prediction row: %w", err)
	}

	err := e.queue.Submit(jobs.Job{
		ID:   job.ID,
		Name: "forecast",
		Run: func(ctx context.Context) error {
			return e.processForecast(ctx, job.ID, req)
		},
	})
	if err != nil {
		if failErr := e.store.FailPredictionJob(ctx, job.ID, err.Error()); failErr != nil {
			log.Printf("Failed to mark prediction %s as failed: %v", job.ID, failErr)
		}
		return nil, err
	}

	return job, nil
}

// processForecast is the full background pipeline for one prediction
// row: dataset build, model lookup or training, iterative generation,
// result persistence. Failures land on the row, not on a caller.
func (e *Engine) processForecast(ctx context.Context, predictionID string, req models.ForecastRequest) error {
	if err := e.store.MarkPredictionRunning(ctx, predictionID); err != nil {
		return fmt.Errorf("failed to mark prediction running: %w", err)
	}

	result, modelName, err := e.runPipeline(ctx, req)
	if err != nil {
		metrics.ForecastsGenerated.WithLabelValues("error").Inc()
		if failErr := e.store.FailPredictionJob(ctx, predictionID, err.Error()); failErr != nil {
			log.Printf("Failed to mark prediction %s as failed: %v", predictionID, failErr)
		}
		return err
	}

	if err := e.store.CompletePredictionJob(ctx, predictionID, modelName, result); err != nil {
		return fmt.Errorf("failed to store forecast result: %w", err)
	}

	return nil
}

func (e *Engine) runPipeline(ctx context.Context, req models.ForecastRequest) ([]models.DayForecast, string, error) {
	since := time.Now().AddDate(0, -req.LookbackMonths, 0)
	records, err := e.builder.Build(ctx, req.TenantID, since)
	if err != nil {
		return nil, "", err
	}

	modelName := registry.ModelName(req.Type, req.TenantID)
	model, err := e.ensureModel(ctx, modelName, records)
	if err != nil {
		return nil, "", err
	}

	if req.ForecastWeather == nil {
		req.ForecastWeather = e.horizonWeather(records, req.End)
	}

	result, err := forecast.Generate(model, req, records)
	if err != nil {
		return nil, "", err
	}

	return result, modelName, nil
}

// ensureModel returns the cached model for the name or trains one from
// the joined records. An untrainable history without a cached model is
// a missing model, not a crash.
func (e *Engine) ensureModel(ctx context.Context, modelName string, records []models.Record) (*ml.TrainedModel, error) {
	if model, ok := e.registry.Get(modelName); ok {
		return model, nil
	}

	if len(records) == 0 {
		return nil, &models.ModelNotFoundError{ModelName: modelName}
	}
	if len(records) < e.opts.MinTrainingSamples {
		return nil, &models.InsufficientDataError{Stage: "training", Rows: len(records), Min: e.opts.MinTrainingSamples}
	}

	return e.trainModel(ctx, modelName, records)
}

func (e *Engine) trainModel(ctx context.Context, modelName string, records []models.Record) (*ml.TrainedModel, error) {
	matrix, err := features.Build(records)
	if err != nil {
		return nil, err
	}

	model, err := e.trainer.Train(matrix, modelName)
	if err != nil {
		return nil, err
	}

	// Persist + cache before anyone can use it.
	if err := e.registry.Register(ctx, model); err != nil {
		return nil, err
	}

	return model, nil
}

// GetForecast returns the prediction row for an ID, complete or not.
func (e *Engine) GetForecast(ctx context.Context, id string) (*models.PredictionJob, error) {
	return e.store.GetPredictionJob(ctx, id)
}

// FeatureImportance returns the stored top-20 ranking for a model.
func (e *Engine) FeatureImportance(ctx context.Context, modelName string) (map[string]float64, error) {
	return e.registry.Importance(ctx, modelName)
}

// AnalyzeCorrelation computes the weather-sales correlation report for
// a tenant over a trailing window of days, serving a cached copy when
// one is fresh.
func (e *Engine) AnalyzeCorrelation(ctx context.Context, tenantID int64, windowDays int) (*models.CorrelationReport, error) {
	key := cache.CorrelationKey(tenantID, windowDays)

	if e.cache != nil {
		var cached models.CorrelationReport
		if ok, err := e.cache.GetJSON(ctx, key, &cached); err != nil {
			log.Printf("Warning: correlation cache read failed: %v", err)
		} else if ok {
			return &cached, nil
		}
	}

	since := time.Now().AddDate(0, 0, -windowDays)
	records, err := e.builder.Build(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}

	report, err := e.analyzer.Analyze(records, windowDays)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.SetJSON(ctx, key, report, e.opts.CacheTTL); err != nil {
			log.Printf("Warning: correlation cache write failed: %v", err)
		}
	}

	return report, nil
}

// Retrain schedules a fresh training run for a tenant. A retrain
// already in flight for the tenant (the Redis flag is still alive)
// rejects the request instead of queueing it twice.
func (e *Engine) Retrain(ctx context.Context, tenantID int64) (string, error) {
	if e.cache != nil {
		ok, err := e.cache.AcquireRetrainGuard(ctx, tenantID, e.opts.RetrainGuardTTL)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", models.ErrRetrainInFlight
		}
	}

	jobID := jobs.NewID()
	err := e.queue.Submit(jobs.Job{
		ID:   jobID,
		Name: "retrain",
		Run: func(ctx context.Context) error {
			since := time.Now().AddDate(0, -e.opts.LookbackMonths, 0)
			records, err := e.builder.Build(ctx, tenantID, since)
			if err != nil {
				return err
			}
			if len(records) < e.opts.MinTrainingSamples {
				return &models.InsufficientDataError{Stage: "retraining", Rows: len(records), Min: e.opts.MinTrainingSamples}
			}

			modelName := registry.ModelName(models.ForecastDailySales, tenantID)
			_, err = e.trainModel(ctx, modelName, records)
			return err
		},
	})
	if err != nil {
		// Nothing was queued, so the guard must not outlive this call.
		if e.cache != nil {
			if relErr := e.cache.ReleaseRetrainGuard(ctx, tenantID); relErr != nil {
				log.Printf("Failed to release retrain guard for tenant %d: %v", tenantID, relErr)
			}
		}
		return "", err
	}

	return jobID, nil
}

// RetrainAll schedules a retrain for each given tenant plus any tenant
// that already has a cached model. Used by the nightly cron pass;
// tenants with a retrain already in flight are skipped.
func (e *Engine) RetrainAll(ctx context.Context, tenantIDs []int64) {
	seen := make(map[int64]bool)
	for _, id := range tenantIDs {
		seen[id] = true
	}
	for _, name := range e.registry.Names() {
		if id, ok := tenantFromModelName(name); ok {
			seen[id] = true
		}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, tenantID := range ids {
		if _, err := e.Retrain(ctx, tenantID); err != nil {
			if err == models.ErrRetrainInFlight {
				continue
			}
			log.Printf("Failed to schedule retrain for tenant %d: %v", tenantID, err)
		}
	}
}

// horizonWeather fetches day-level forecast weather covering the
// request horizon when the caller supplied none. Any failure here is
// non-fatal: the row builder falls back to historical monthly averages.
func (e *Engine) horizonWeather(records []models.Record, end time.Time) map[string]models.DailyWeather {
	if e.opts.Forecaster == nil || len(records) == 0 {
		return nil
	}

	loc, ok := e.lookupLocation(dominantLocation(records))
	if !ok {
		return nil
	}

	// The API counts forecast days from today, not from the horizon start.
	days := forecast.Horizon(time.Now(), end)
	if days <= 0 {
		return nil
	}
	if days > maxForecastDays {
		days = maxForecastDays
	}

	forecasted, err := e.opts.Forecaster.DailyForecast(loc.Latitude, loc.Longitude, days)
	if err != nil {
		log.Printf("Warning: weather forecast fetch failed, falling back to historical averages: %v", err)
		return nil
	}

	out := make(map[string]models.DailyWeather, len(forecasted))
	for _, d := range forecasted {
		out[d.Date.Format("2006-01-02")] = d
	}
	return out
}

func (e *Engine) lookupLocation(name string) (config.Location, bool) {
	for _, loc := range e.opts.Locations {
		if loc.Name == name {
			return loc, true
		}
	}
	return config.Location{}, false
}

// dominantLocation is the most frequent sale location in the joined
// table, ties broken alphabetically.
func dominantLocation(records []models.Record) string {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Location]++
	}

	best := ""
	bestCount := -1
	for name, n := range counts {
		if n > bestCount || (n == bestCount && name < best) {
			best = name
			bestCount = n
		}
	}
	return best
}

func tenantFromModelName(name string) (int64, bool) {
	idx := strings.LastIndex(name, "_tenant_")
	if idx < 0 {
		return 0, false
	}

	id, err := strconv.ParseInt(name[idx+len("_tenant_"):], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
