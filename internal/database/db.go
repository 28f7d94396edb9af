package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/Nico-Draagron/clima-negocios/internal/metrics"
	"github.com/Nico-Draagron/clima-negocios/internal/models"
)

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema
// dsn format: "username:password@tcp(host:port)/dbname?parseTime=true"
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	// Initialize schema
	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	// MySQL doesn't support multiple statements in one Exec, so we need to split them
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sales (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			sold_at DATETIME(6) NOT NULL,
			total DOUBLE NOT NULL,
			item_count INT NOT NULL,
			category VARCHAR(50) NOT NULL,
			channel VARCHAR(50) NOT NULL,
			location VARCHAR(255) NOT NULL DEFAULT '',
			is_holiday TINYINT(1) NOT NULL DEFAULT 0,
			INDEX idx_sales_tenant (tenant_id),
			INDEX idx_sales_sold_at (sold_at),
			INDEX idx_sales_category (category)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS weather_readings (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			location VARCHAR(255) NOT NULL DEFAULT '',
			measured_at DATETIME(6) NOT NULL,
			temperature DOUBLE NOT NULL,
			humidity DOUBLE NOT NULL,
			precipitation_24h DOUBLE NULL,
			wind_speed DOUBLE NOT NULL,
			weather_condition VARCHAR(100) NOT NULL DEFAULT '',
			INDEX idx_weather_location (location),
			INDEX idx_weather_measured_at (measured_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS ml_models (
			name VARCHAR(255) PRIMARY KEY,
			version VARCHAR(50) NOT NULL,
			algorithm VARCHAR(100) NOT NULL,
			feature_names JSON NOT NULL,
			feature_importance JSON NOT NULL,
			train_metrics JSON NOT NULL,
			in_production TINYINT(1) NOT NULL DEFAULT 0,
			artifact_path VARCHAR(512) NOT NULL,
			trained_at DATETIME(6) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS predictions (
			id VARCHAR(36) PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			forecast_type VARCHAR(50) NOT NULL,
			status VARCHAR(20) NOT NULL,
			start_date DATETIME(6) NOT NULL,
			end_date DATETIME(6) NOT NULL,
			model_name VARCHAR(255) NOT NULL DEFAULT '',
			result JSON NULL,
			error_message TEXT NULL,
			created_at DATETIME(6) NOT NULL,
			started_at DATETIME(6) NULL,
			completed_at DATETIME(6) NULL,
			INDEX idx_predictions_tenant (tenant_id),
			INDEX idx_predictions_status (status)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// InsertSales stores a batch of sales rows in one transaction.
func (db *DB) InsertSales(ctx context.Context, sales []models.Sale) error {
	if len(sales) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if committed

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sales (tenant_id, sold_at, total, item_count, category, channel, location, is_holiday) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range sales {
		_, err = stmt.ExecContext(ctx, s.TenantID, s.SoldAt, s.Total, s.ItemCount, s.Category, s.Channel, s.Location, s.IsHoliday)
		if err != nil {
			return fmt.Errorf("failed to insert sale at %s: %w", s.SoldAt, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// InsertWeatherReadings stores a batch of weather observations in one transaction.
func (db *DB) InsertWeatherReadings(ctx context.Context, readings []models.WeatherReading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO weather_readings (location, measured_at, temperature, humidity, precipitation_24h, wind_speed, weather_condition) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		_, err = stmt.ExecContext(ctx, r.Location, r.MeasuredAt, r.Temperature, r.Humidity, r.Precipitation, r.WindSpeed, r.Condition)
		if err != nil {
			return fmt.Errorf("failed to insert reading for %s at %s: %w", r.Location, r.MeasuredAt, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SalesHistory returns all sales for a tenant since the given time,
// chronologically ascending.
func (db *DB) SalesHistory(ctx context.Context, tenantID int64, since time.Time) ([]models.Sale, error) {
	query := `SELECT id, tenant_id, sold_at, total, item_count, category, channel, location, is_holiday FROM sales WHERE tenant_id = ? AND sold_at >= ? ORDER BY sold_at ASC`

	queryStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, tenantID, since)
	metrics.RecordDBQuery("SELECT", "sales", time.Since(queryStart), err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []models.Sale
	for rows.Next() {
		var s models.Sale
		if err := rows.Scan(&s.ID, &s.TenantID, &s.SoldAt, &s.Total, &s.ItemCount, &s.Category, &s.Channel, &s.Location, &s.IsHoliday); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}

	return sales, rows.Err()
}

// WeatherHistory returns all readings for a location since the given
// time, chronologically ascending.
func (db *DB) WeatherHistory(ctx context.Context, location string, since time.Time) ([]models.WeatherReading, error) {
	query := `SELECT id, location, measured_at, temperature, humidity, precipitation_24h, wind_speed, weather_condition FROM weather_readings WHERE location = ? AND measured_at >= ? ORDER BY measured_at ASC`

	queryStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, location, since)
	metrics.RecordDBQuery("SELECT", "weather_readings", time.Since(queryStart), err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.WeatherReading
	for rows.Next() {
		var r models.WeatherReading
		if err := rows.Scan(&r.ID, &r.Location, &r.MeasuredAt, &r.Temperature, &r.Humidity, &r.Precipitation, &r.WindSpeed, &r.Condition); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}

	return readings, rows.Err()
}

// SaveModelMetadata upserts the registry row for a trained model.
func (db *DB) SaveModelMetadata(ctx context.Context, meta *models.ModelMetadata) error {
	featureNames, err := json.Marshal(meta.FeatureNames)
	if err != nil {
		return fmt.Errorf("failed to marshal feature names: %w", err)
	}
	importance, err := json.Marshal(meta.Importance)
	if err != nil {
		return fmt.Errorf("failed to marshal feature importance: %w", err)
	}
	trainMetrics, err := json.Marshal(meta.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	query := `INSERT INTO ml_models (name, version, algorithm, feature_names, feature_importance, train_metrics, in_production, artifact_path, trained_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	          ON DUPLICATE KEY UPDATE
	          version = VALUES(version), algorithm = VALUES(algorithm), feature_names = VALUES(feature_names),
	          feature_importance = VALUES(feature_importance), train_metrics = VALUES(train_metrics),
	          in_production = VALUES(in_production), artifact_path = VALUES(artifact_path), trained_at = VALUES(trained_at)`

	queryStart := time.Now()
	_, err = db.conn.ExecContext(ctx, query, meta.Name, meta.Version, meta.Algorithm, featureNames, importance, trainMetrics, meta.InProduction, meta.ArtifactPath, meta.TrainedAt)
	metrics.RecordDBQuery("INSERT", "ml_models", time.Since(queryStart), err)
	return err
}

// GetModelMetadata returns the registry row for a model name.
func (db *DB) GetModelMetadata(ctx context.Context, name string) (*models.ModelMetadata, error) {
	query := `SELECT name, version, algorithm, feature_names, feature_importance, train_metrics, in_production, artifact_path, trained_at FROM ml_models WHERE name = ? LIMIT 1`
	row := db.conn.QueryRowContext(ctx, query, name)

	meta, err := scanModelMetadata(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &models.ModelNotFoundError{ModelName: name}
	}
	return meta, err
}

// GetProductionModels returns all models flagged as in production.
func (db *DB) GetProductionModels(ctx context.Context) ([]models.ModelMetadata, error) {
	query := `SELECT name, version, algorithm, feature_names, feature_importance, train_metrics, in_production, artifact_path, trained_at FROM ml_models WHERE in_production = 1`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ModelMetadata
	for rows.Next() {
		meta, err := scanModelMetadata(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *meta)
	}

	return out, rows.Err()
}

func scanModelMetadata(scan func(...interface{}) error) (*models.ModelMetadata, error) {
	var meta models.ModelMetadata
	var featureNames, importance, trainMetrics []byte

	if err := scan(&meta.Name, &meta.Version, &meta.Algorithm, &featureNames, &importance, &trainMetrics, &meta.InProduction, &meta.ArtifactPath, &meta.TrainedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(featureNames, &meta.FeatureNames); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feature names: %w", err)
	}
	if err := json.Unmarshal(importance, &meta.Importance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feature importance: %w", err)
	}
	if err := json.Unmarshal(trainMetrics, &meta.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}

	return &meta, nil
}

// CreatePredictionJob inserts a pending prediction row.
func (db *DB) CreatePredictionJob(ctx context.Context, job *models.PredictionJob) error {
	defer func() {
		stats := db.conn.Stats()
		metrics.UpdateDBConnectionStats(stats.OpenConnections, stats.InUse, stats.Idle)
	}()

	query := `INSERT INTO predictions (id, tenant_id, forecast_type, status, start_date, end_date, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	queryStart := time.Now()
	_, err := db.conn.ExecContext(ctx, query, job.ID, job.TenantID, job.Type, job.Status, job.Start, job.End, job.CreatedAt)
	metrics.RecordDBQuery("INSERT", "predictions", time.Since(queryStart), err)
	return err
}

// MarkPredictionRunning flips a prediction row to processing state.
func (db *DB) MarkPredictionRunning(ctx context.Context, id string) error {
	query := `UPDATE predictions SET status = ?, started_at = ? WHERE id = ?`
	queryStart := time.Now()
	_, err := db.conn.ExecContext(ctx, query, models.StatusRunning, time.Now(), id)
	metrics.RecordDBQuery("UPDATE", "predictions", time.Since(queryStart), err)
	return err
}

// CompletePredictionJob stores the forecast result on the prediction row.
func (db *DB) CompletePredictionJob(ctx context.Context, id, modelName string, result []models.DayForecast) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal forecast result: %w", err)
	}

	query := `UPDATE predictions SET status = ?, model_name = ?, result = ?, completed_at = ? WHERE id = ?`
	queryStart := time.Now()
	_, err = db.conn.ExecContext(ctx, query, models.StatusCompleted, modelName, data, time.Now(), id)
	metrics.RecordDBQuery("UPDATE", "predictions", time.Since(queryStart), err)
	return err
}

// FailPredictionJob marks a prediction row as failed with the attached
// message. Background failures surface here instead of raising to an
// unrelated caller.
func (db *DB) FailPredictionJob(ctx context.Context, id, message string) error {
	query := `UPDATE predictions SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`
	queryStart := time.Now()
	_, err := db.conn.ExecContext(ctx, query, models.StatusFailed, message, time.Now(), id)
	metrics.RecordDBQuery("UPDATE", "predictions", time.Since(queryStart), err)
	return err
}

// GetPredictionJob returns a prediction row by ID.
func (db *DB) GetPredictionJob(ctx context.Context, id string) (*models.PredictionJob, error) {
	query := `SELECT id, tenant_id, forecast_type, status, start_date, end_date, model_name, result, error_message, created_at, started_at, completed_at FROM predictions WHERE id = ? LIMIT 1`
	row := db.conn.QueryRowContext(ctx, query, id)

	var job models.PredictionJob
	var result sql.NullString
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&job.ID, &job.TenantID, &job.Type, &job.Status, &job.Start, &job.End, &job.ModelName, &result, &errMsg, &job.CreatedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("prediction not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	if result.Valid && result.String != "" {
		if err := json.Unmarshal([]byte(result.String), &job.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal forecast result: %w", err)
		}
	}
	if errMsg.Valid {
		job.ErrorMessage = errMsg.String
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}

// TenantsWithSales returns the distinct tenant ids present in the sales
// table. Used by the scheduled retrain pass.
func (db *DB) TenantsWithSales(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT tenant_id FROM sales`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenants with sales: %w", err)
	}
	defer rows.Close()

	var tenants []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant id: %w", err)
		}
		tenants = append(tenants, id)
	}

	return tenants, rows.Err()
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
