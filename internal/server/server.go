package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nico-Draagron/clima-negocios/internal/engine"
	"github.com/Nico-Draagron/clima-negocios/internal/models"
)

// Server represents the HTTP server
type Server struct {
	engine *engine.Engine
	mux    *http.ServeMux
}

// NewServer creates a new HTTP server
func NewServer(eng *engine.Engine) *Server {
	s := &Server{
		engine: eng,
		mux:    http.NewServeMux(),
	}

	// Register routes
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/forecast", s.handleForecast)
	s.mux.HandleFunc("/forecast-status", s.handleForecastStatus)
	s.mux.HandleFunc("/feature-importance", s.handleFeatureImportance)
	s.mux.HandleFunc("/correlation", s.handleCorrelation)
	s.mux.HandleFunc("/retrain", s.handleRetrain)
	s.mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.mux)
}

// handleHealth returns the server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().String(),
	})
}

type forecastRequestBody struct {
	TenantID        int64                          `json:"tenant_id"`
	Type            string                         `json:"type"`
	Start           string                         `json:"start"`
	End             string                         `json:"end"`
	LookbackMonths  int                            `json:"lookback_months"`
	ForecastWeather map[string]models.DailyWeather `json:"forecast_weather"`
}

// handleForecast accepts a forecast request and schedules it
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body forecastRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if body.TenantID <= 0 {
		http.Error(w, "tenant_id must be positive", http.StatusBadRequest)
		return
	}

	start, err := time.Parse("2006-01-02", body.Start)
	if err != nil {
		http.Error(w, "start must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	end, err := time.Parse("2006-01-02", body.End)
	if err != nil {
		http.Error(w, "end must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	req := models.ForecastRequest{
		TenantID:        body.TenantID,
		Type:            body.Type,
		Start:           start,
		End:             end,
		LookbackMonths:  body.LookbackMonths,
		ForecastWeather: body.ForecastWeather,
	}

	job, err := s.engine.BuildForecast(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     job.ID,
		"status": job.Status,
	})
}

// handleForecastStatus returns the stored prediction row for an ID
func (s *Server) handleForecastStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id query parameter is required", http.StatusBadRequest)
		return
	}

	job, err := s.engine.GetForecast(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

// handleFeatureImportance returns the stored top-20 ranking for a model
func (s *Server) handleFeatureImportance(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	if model == "" {
		http.Error(w, "model query parameter is required", http.StatusBadRequest)
		return
	}

	importance, err := s.engine.FeatureImportance(r.Context(), model)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"model":              model,
		"feature_importance": importance,
	})
}

// handleCorrelation returns the weather-sales correlation report
func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenant"), 10, 64)
	if err != nil || tenantID <= 0 {
		http.Error(w, "tenant query parameter must be a positive integer", http.StatusBadRequest)
		return
	}

	days := 90
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 {
			days = d
		}
	}

	report, err := s.engine.AnalyzeCorrelation(r.Context(), tenantID, days)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// handleRetrain schedules a fresh training run for a tenant
func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenant"), 10, 64)
	if err != nil || tenantID <= 0 {
		http.Error(w, "tenant query parameter must be a positive integer", http.StatusBadRequest)
		return
	}

	jobID, err := s.engine.Retrain(r.Context(), tenantID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"job_id": jobID,
		"status": "scheduled",
	})
}

// writeError maps the engine's error types onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var inputErr *models.ForecastInputError
	var insufficientErr *models.InsufficientDataError
	var notFoundErr *models.ModelNotFoundError

	switch {
	case errors.As(err, &inputErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &insufficientErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &notFoundErr):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrRetrainInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
