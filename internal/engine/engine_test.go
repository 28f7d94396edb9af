package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nico-Draagron/clima-negocios/internal/config"
	"github.com/Nico-Draagron/clima-negocios/internal/dataset"
	"github.com/Nico-Draagron/clima-negocios/internal/features"
	"github.com/Nico-Draagron/clima-negocios/internal/jobs"
	"github.com/Nico-Draagron/clima-negocios/internal/ml"
	"github.com/Nico-Draagron/clima-negocios/internal/models"
	"github.com/Nico-Draagron/clima-negocios/internal/registry"
)

type fakeSales struct {
	sales []models.Sale
}

func (f *fakeSales) SalesHistory(ctx context.Context, tenantID int64, since time.Time) ([]models.Sale, error) {
	return f.sales, nil
}

type fakeWeather struct{}

func (f *fakeWeather) WeatherHistory(ctx context.Context, location string, since time.Time) ([]models.WeatherReading, error) {
	return nil, nil
}

type fakeMetaStore struct {
	mu    sync.Mutex
	metas map[string]*models.ModelMetadata
}

func (f *fakeMetaStore) SaveModelMetadata(ctx context.Context, meta *models.ModelMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metas[meta.Name] = meta
	return nil
}

func (f *fakeMetaStore) GetModelMetadata(ctx context.Context, name string) (*models.ModelMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if meta, ok := f.metas[name]; ok {
		return meta, nil
	}
	return nil, &models.ModelNotFoundError{ModelName: name}
}

func (f *fakeMetaStore) GetProductionModels(ctx context.Context) ([]models.ModelMetadata, error) {
	return nil, nil
}

type fakePredictionStore struct {
	mu   sync.Mutex
	rows map[string]*models.PredictionJob
}

func newFakePredictionStore() *fakePredictionStore {
	return &fakePredictionStore{rows: make(map[string]*models.PredictionJob)}
}

func (f *fakePredictionStore) CreatePredictionJob(ctx context.Context, job *models.PredictionJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.rows[job.ID] = &copied
	return nil
}

func (f *fakePredictionStore) MarkPredictionRunning(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[id].Status = models.StatusRunning
	return nil
}

func (f *fakePredictionStore) CompletePredictionJob(ctx context.Context, id, modelName string, result []models.DayForecast) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[id]
	row.Status = models.StatusCompleted
	row.ModelName = modelName
	row.Result = result
	return nil
}

func (f *fakePredictionStore) FailPredictionJob(ctx context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[id]
	row.Status = models.StatusFailed
	row.ErrorMessage = message
	return nil
}

func (f *fakePredictionStore) GetPredictionJob(ctx context.Context, id string) (*models.PredictionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, &models.ForecastInputError{Reason: "unknown prediction id"}
}

func salesHistory(n int) []models.Sale {
	start := time.Now().AddDate(0, 0, -n)
	sales := make([]models.Sale, n)
	for i := range sales {
		sales[i] = models.Sale{
			TenantID:  1,
			SoldAt:    start.AddDate(0, 0, i),
			Total:     800 + float64(i%25)*14,
			ItemCount: 20 + i%10,
			Category:  models.CategoryProduct,
			Channel:   models.ChannelStore,
			Location:  "Santa Maria",
		}
	}
	return sales
}

// fakeCache tracks retrain guard flags in memory, standing in for the
// Redis SetNX guard.
type fakeCache struct {
	mu   sync.Mutex
	held map[int64]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{held: make(map[int64]bool)}
}

func (f *fakeCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	return false, nil
}

func (f *fakeCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (f *fakeCache) AcquireRetrainGuard(ctx context.Context, tenantID int64, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[tenantID] {
		return false, nil
	}
	f.held[tenantID] = true
	return true, nil
}

func (f *fakeCache) ReleaseRetrainGuard(ctx context.Context, tenantID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, tenantID)
	return nil
}

func (f *fakeCache) holding(tenantID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held[tenantID]
}

type fakeForecaster struct {
	temperature float64
	lat, lon    float64
	days        int
}

func (f *fakeForecaster) DailyForecast(latitude, longitude float64, days int) ([]models.DailyWeather, error) {
	f.lat, f.lon, f.days = latitude, longitude, days

	today := time.Now()
	out := make([]models.DailyWeather, days)
	for i := range out {
		out[i] = models.DailyWeather{
			Date:          today.AddDate(0, 0, i),
			Temperature:   f.temperature,
			Humidity:      60,
			Precipitation: 2,
			WindSpeed:     12,
		}
	}
	return out, nil
}

func defaultTestOptions() Options {
	return Options{
		MinTrainingSamples: 90,
		LookbackMonths:     12,
		RetrainGuardTTL:    time.Minute,
		CacheTTL:           time.Minute,
	}
}

func newTestEngine(t *testing.T, sales []models.Sale) (*Engine, *fakePredictionStore, *jobs.Queue) {
	t.Helper()
	return newTestEngineOpts(t, sales, nil, defaultTestOptions())
}

func newTestEngineOpts(t *testing.T, sales []models.Sale, c ReportCache, opts Options) (*Engine, *fakePredictionStore, *jobs.Queue) {
	t.Helper()

	reg, err := registry.New(&fakeMetaStore{metas: make(map[string]*models.ModelMetadata)}, t.TempDir())
	require.NoError(t, err)

	trainer := ml.NewTrainerWithParams(ml.ForestParams{
		Trees:           10,
		MaxDepth:        6,
		MinSamplesSplit: 4,
		MinSamplesLeaf:  2,
		Seed:            42,
	})

	store := newFakePredictionStore()
	queue := jobs.NewQueue(2, 8)
	builder := dataset.NewBuilder(&fakeSales{sales: sales}, &fakeWeather{})

	eng := New(builder, trainer, reg, store, c, queue, opts)
	return eng, store, queue
}

func waitForTerminal(t *testing.T, store *fakePredictionStore, id string) *models.PredictionJob {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetPredictionJob(context.Background(), id)
		require.NoError(t, err)
		if job.Status == models.StatusCompleted || job.Status == models.StatusFailed {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("prediction job never reached a terminal status")
	return nil
}

func TestBuildForecast_Validation(t *testing.T) {
	eng, _, queue := newTestEngine(t, salesHistory(120))
	defer queue.Shutdown()

	today := time.Now()
	tests := []struct {
		name string
		req  models.ForecastRequest
	}{
		{
			name: "end before start",
			req:  models.ForecastRequest{TenantID: 1, Start: today.AddDate(0, 0, 7), End: today},
		},
		{
			name: "missing dates",
			req:  models.ForecastRequest{TenantID: 1},
		},
		{
			name: "unsupported type",
			req:  models.ForecastRequest{TenantID: 1, Type: "vendas_mensais", Start: today, End: today.AddDate(0, 0, 7)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.BuildForecast(context.Background(), tt.req)

			var inputErr *models.ForecastInputError
			assert.ErrorAs(t, err, &inputErr)
		})
	}
}

func TestBuildForecast_EndToEnd(t *testing.T) {
	eng, store, queue := newTestEngine(t, salesHistory(150))
	defer queue.Shutdown()

	start := time.Now().AddDate(0, 0, 1)
	job, err := eng.BuildForecast(context.Background(), models.ForecastRequest{
		TenantID: 1,
		Start:    start,
		End:      start.AddDate(0, 0, 6),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, job.Status)

	final := waitForTerminal(t, store, job.ID)
	require.Equal(t, models.StatusCompleted, final.Status, "job failed: %s", final.ErrorMessage)
	assert.Len(t, final.Result, 7)
	assert.Equal(t, registry.ModelName(models.ForecastDailySales, 1), final.ModelName)

	for _, day := range final.Result {
		assert.LessOrEqual(t, day.LowerBound, day.Value)
		assert.LessOrEqual(t, day.Value, day.UpperBound)
	}

	// The trained model is now cached; a second request reuses it.
	second, err := eng.BuildForecast(context.Background(), models.ForecastRequest{
		TenantID: 1,
		Start:    start,
		End:      start.AddDate(0, 0, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, waitForTerminal(t, store, second.ID).Status)
}

func TestBuildForecast_NoHistoryFailsAsModelNotFound(t *testing.T) {
	eng, store, queue := newTestEngine(t, nil)
	defer queue.Shutdown()

	start := time.Now().AddDate(0, 0, 1)
	job, err := eng.BuildForecast(context.Background(), models.ForecastRequest{
		TenantID: 1,
		Start:    start,
		End:      start.AddDate(0, 0, 3),
	})
	require.NoError(t, err)

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Contains(t, final.ErrorMessage, "model not found")
}

func TestBuildForecast_TooLittleHistory(t *testing.T) {
	eng, store, queue := newTestEngine(t, salesHistory(50))
	defer queue.Shutdown()

	start := time.Now().AddDate(0, 0, 1)
	job, err := eng.BuildForecast(context.Background(), models.ForecastRequest{
		TenantID: 1,
		Start:    start,
		End:      start.AddDate(0, 0, 3),
	})
	require.NoError(t, err)

	final := waitForTerminal(t, store, job.ID)
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Contains(t, final.ErrorMessage, "insufficient data")
}

func TestAnalyzeCorrelation_NoCache(t *testing.T) {
	eng, _, queue := newTestEngine(t, salesHistory(120))
	defer queue.Shutdown()

	report, err := eng.AnalyzeCorrelation(context.Background(), 1, 90)
	require.NoError(t, err)

	assert.Equal(t, 90, report.WindowDays)
	assert.NotEmpty(t, report.Recommendations)
}

// Exactly the configured minimum of history must train, not fail in
// feature engineering: lag truncation eats features.MaxLag rows, so the
// configured floor has to leave MaxLag+1 usable ones.
func TestBuildForecast_AtConfiguredMinimum(t *testing.T) {
	opts := defaultTestOptions()
	opts.MinTrainingSamples = 2*features.MaxLag + 1

	eng, store, queue := newTestEngineOpts(t, salesHistory(opts.MinTrainingSamples), nil, opts)
	defer queue.Shutdown()

	start := time.Now().AddDate(0, 0, 1)
	job, err := eng.BuildForecast(context.Background(), models.ForecastRequest{
		TenantID: 1,
		Start:    start,
		End:      start.AddDate(0, 0, 2),
	})
	require.NoError(t, err)

	final := waitForTerminal(t, store, job.ID)
	require.Equal(t, models.StatusCompleted, final.Status, "job failed: %s", final.ErrorMessage)
	assert.Len(t, final.Result, 3)
}

func TestBuildForecast_FetchesHorizonWeather(t *testing.T) {
	forecaster := &fakeForecaster{temperature: 31.5}
	opts := defaultTestOptions()
	opts.Forecaster = forecaster
	opts.Locations = []config.Location{{Name: "Santa Maria", Latitude: -29.6842, Longitude: -53.8069}}

	eng, store, queue := newTestEngineOpts(t, salesHistory(150), nil, opts)
	defer queue.Shutdown()

	start := time.Now().AddDate(0, 0, 1)
	job, err := eng.BuildForecast(context.Background(), models.ForecastRequest{
		TenantID: 1,
		Start:    start,
		End:      start.AddDate(0, 0, 2),
	})
	require.NoError(t, err)

	final := waitForTerminal(t, store, job.ID)
	require.Equal(t, models.StatusCompleted, final.Status, "job failed: %s", final.ErrorMessage)

	// The fetched weather, not monthly averages, must flow into the rows.
	for _, day := range final.Result {
		assert.Equal(t, 31.5, day.Features["temperatura"])
		assert.Equal(t, 1.0, day.Features["chuva_binary"])
	}
	assert.Equal(t, -29.6842, forecaster.lat)
	assert.Equal(t, -53.8069, forecaster.lon)
}

func TestRetrain_SchedulesJob(t *testing.T) {
	eng, _, queue := newTestEngine(t, salesHistory(150))
	defer queue.Shutdown()

	jobID, err := eng.Retrain(context.Background(), 1)
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
}

func TestRetrain_RejectedWhileInFlight(t *testing.T) {
	guard := newFakeCache()
	eng, _, queue := newTestEngineOpts(t, salesHistory(150), guard, defaultTestOptions())
	defer queue.Shutdown()

	_, err := eng.Retrain(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, guard.holding(1))

	_, err = eng.Retrain(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrRetrainInFlight)
}

func TestRetrain_ReleasesGuardWhenSubmitFails(t *testing.T) {
	guard := newFakeCache()
	eng, _, queue := newTestEngineOpts(t, salesHistory(150), guard, defaultTestOptions())
	queue.Shutdown()

	_, err := eng.Retrain(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrRetrainInFlight)

	// Nothing was queued, so the tenant must not be locked out until the
	// guard TTL expires.
	assert.False(t, guard.holding(1))
}

func TestRetrainAll_DeduplicatesTenants(t *testing.T) {
	eng, _, queue := newTestEngine(t, salesHistory(150))
	defer queue.Shutdown()

	// Must not submit twice for the same tenant and must not panic on an
	// empty registry.
	eng.RetrainAll(context.Background(), []int64{1, 1})
}

func TestTenantFromModelName(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		want   int64
		wantOK bool
	}{
		{name: "standard name", model: "vendas_diarias_tenant_42", want: 42, wantOK: true},
		{name: "no tenant suffix", model: "vendas_diarias", wantOK: false},
		{name: "non-numeric tenant", model: "vendas_diarias_tenant_x", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tenantFromModelName(tt.model)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
