package models

import "time"

// Sale categories and channels. The one-hot feature columns are derived
// from these level sets, so adding a value here widens the feature space
// of any model trained afterwards.
const (
	CategoryProduct = "produto"
	CategoryService = "servico"

	ChannelOnline = "online"
	ChannelStore  = "loja_fisica"
)

// Forecast types supported by the engine.
const (
	ForecastDailySales = "vendas_diarias"
)

// Prediction lifecycle statuses.
const (
	StatusPending   = "pendente"
	StatusRunning   = "processando"
	StatusCompleted = "concluida"
	StatusFailed    = "falha"
)

// Sale is one historical sales transaction for a tenant.
type Sale struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	SoldAt    time.Time `json:"sold_at"`
	Total     float64   `json:"total"`
	ItemCount int       `json:"item_count"`
	Category  string    `json:"category"`
	Channel   string    `json:"channel"`
	Location  string    `json:"location"`
	IsHoliday bool      `json:"is_holiday"`
}

// WeatherReading is one hourly observation at a location. Precipitation
// is nullable: NULL means the station did not report, while 0 means no
// rain fell.
type WeatherReading struct {
	ID            int64     `json:"id"`
	Location      string    `json:"location"`
	MeasuredAt    time.Time `json:"measured_at"`
	Temperature   float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	Precipitation *float64  `json:"precipitation_24h"`
	WindSpeed     float64   `json:"wind_speed"`
	Condition     string    `json:"condition"`
}

// Record is one row of the joined sales+weather table produced by the
// dataset builder. Weather fields are already imputed.
type Record struct {
	SoldAt        time.Time `json:"sold_at"`
	Total         float64   `json:"total"`
	ItemCount     int       `json:"item_count"`
	Category      string    `json:"category"`
	Channel       string    `json:"channel"`
	Location      string    `json:"location"`
	IsHoliday     bool      `json:"is_holiday"`
	Temperature   float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	Precipitation float64   `json:"precipitation_24h"`
	WindSpeed     float64   `json:"wind_speed"`
	Condition     string    `json:"condition"`
}

// DailyWeather is one day of forecast weather, either from the external
// weather collaborator or supplied by the caller.
type DailyWeather struct {
	Date          time.Time `json:"date"`
	Temperature   float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	Precipitation float64   `json:"precipitation"`
	WindSpeed     float64   `json:"wind_speed"`
}

// DayForecast is one forecasted day.
type DayForecast struct {
	Date       time.Time          `json:"date"`
	Value      float64            `json:"value"`
	LowerBound float64            `json:"lower_bound"`
	UpperBound float64            `json:"upper_bound"`
	Weekday    string             `json:"weekday"`
	Features   map[string]float64 `json:"features"`
	ModelName  string             `json:"model_name"`
}

// ForecastRequest are the parameters of one forecast invocation.
type ForecastRequest struct {
	TenantID        int64                   `json:"tenant_id"`
	Type            string                  `json:"type"`
	Start           time.Time               `json:"start"`
	End             time.Time               `json:"end"`
	LookbackMonths  int                     `json:"lookback_months"`
	ForecastWeather map[string]DailyWeather `json:"forecast_weather,omitempty"` // keyed by YYYY-MM-DD
}

// PredictionJob is the persisted record of one forecast request and its
// background processing lifecycle.
type PredictionJob struct {
	ID           string        `json:"id"`
	TenantID     int64         `json:"tenant_id"`
	Type         string        `json:"type"`
	Status       string        `json:"status"`
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	ModelName    string        `json:"model_name,omitempty"`
	Result       []DayForecast `json:"result,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// ModelMetadata is the registry row describing a trained model.
type ModelMetadata struct {
	Name         string             `json:"name"`
	Version      string             `json:"version"`
	Algorithm    string             `json:"algorithm"`
	FeatureNames []string           `json:"feature_names"`
	Importance   map[string]float64 `json:"feature_importance"`
	Metrics      TrainingMetrics    `json:"metrics"`
	InProduction bool               `json:"in_production"`
	ArtifactPath string             `json:"artifact_path"`
	TrainedAt    time.Time          `json:"trained_at"`
}

// TrainingMetrics are the held-out and cross-validation scores of a
// trained model. MAE/RMSE/R2 come from the temporal holdout (most recent
// 20% of rows); CVScores are per-fold R2 from the chronological splits.
type TrainingMetrics struct {
	MAE         float64   `json:"mae"`
	RMSE        float64   `json:"rmse"`
	R2          float64   `json:"r2_score"`
	CVScores    []float64 `json:"cv_scores"`
	CVScoreMean float64   `json:"cv_score_mean"`
	CVScoreStd  float64   `json:"cv_score_std"`
	Samples     int       `json:"samples_used"`
}

// Pattern confidence tiers.
const (
	ConfidenceHigh   = "alta"
	ConfidenceMedium = "media"
)

// Pattern types emitted by the analyzer.
const (
	PatternHeat        = "temperatura_alta"
	PatternRain        = "chuva"
	PatternOptimalTemp = "temperatura_otima"
)

// Pattern is one qualitative weather-sales pattern detected by the
// analyzer.
type Pattern struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Impact      string  `json:"impact"`
	Confidence  string  `json:"confidence"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// CategoryCorrelation holds per-category coefficients.
type CategoryCorrelation struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Rain        float64 `json:"rain"`
	Samples     int     `json:"samples"`
}

// CorrelationReport is the full output of a correlation analysis.
type CorrelationReport struct {
	Temperature     float64                        `json:"temperature_sales"`
	Humidity        float64                        `json:"humidity_sales"`
	Rain            float64                        `json:"rain_sales"`
	Wind            float64                        `json:"wind_sales"`
	ByCategory      map[string]CategoryCorrelation `json:"by_category"`
	Patterns        []Pattern                      `json:"patterns"`
	Recommendations []string                       `json:"recommendations"`
	WindowDays      int                            `json:"window_days"`
	Records         int                            `json:"records"`
}
