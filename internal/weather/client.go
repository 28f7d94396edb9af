package weather

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Nico-Draagron/clima-negocios/internal/models"
)

const baseURL = "https://api.open-meteo.com/v1/forecast"

// Client is a client for the Open-Meteo API
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new Open-Meteo API client
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
	}
}

// NewClientWithURL creates a client pointed at a custom endpoint. Used by tests.
func NewClientWithURL(url string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    url,
	}
}

type dailyResponse struct {
	Daily struct {
		Time             []string  `json:"time"`
		Temperature2mMax []float64 `json:"temperature_2m_max"`
		Temperature2mMin []float64 `json:"temperature_2m_min"`
		HumidityMean     []float64 `json:"relative_humidity_2m_mean"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		WindSpeed10mMax  []float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

type hourlyResponse struct {
	Hourly struct {
		Time               []string  `json:"time"`
		Temperature2m      []float64 `json:"temperature_2m"`
		RelativeHumidity2m []float64 `json:"relative_humidity_2m"`
		Precipitation      []float64 `json:"precipitation"`
		WindSpeed10m       []float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
}

// DailyForecast fetches up to days of daily weather predictions for the
// given coordinates. An empty slice is a valid result; callers fall back
// to historical averages.
func (c *Client) DailyForecast(latitude, longitude float64, days int) ([]models.DailyWeather, error) {
	url := fmt.Sprintf("%s?latitude=%.4f&longitude=%.4f&timezone=auto&forecast_days=%d&daily=temperature_2m_max,temperature_2m_min,relative_humidity_2m_mean,precipitation_sum,wind_speed_10m_max",
		c.baseURL, latitude, longitude, days)

	var resp dailyResponse
	if err := c.get(url, &resp); err != nil {
		return nil, err
	}

	var out []models.DailyWeather
	for i, ts := range resp.Daily.Time {
		date, err := time.Parse("2006-01-02", ts)
		if err != nil {
			continue
		}

		dw := models.DailyWeather{Date: date}
		if i < len(resp.Daily.Temperature2mMax) && i < len(resp.Daily.Temperature2mMin) {
			dw.Temperature = (resp.Daily.Temperature2mMax[i] + resp.Daily.Temperature2mMin[i]) / 2
		}
		if i < len(resp.Daily.HumidityMean) {
			dw.Humidity = resp.Daily.HumidityMean[i]
		}
		if i < len(resp.Daily.PrecipitationSum) {
			dw.Precipitation = resp.Daily.PrecipitationSum[i]
		}
		if i < len(resp.Daily.WindSpeed10mMax) {
			dw.WindSpeed = resp.Daily.WindSpeed10mMax[i]
		}
		out = append(out, dw)
	}

	return out, nil
}

// HistoricalHourly fetches past hourly observations for backfilling the
// weather table.
func (c *Client) HistoricalHourly(location string, latitude, longitude float64, pastDays int) ([]models.WeatherReading, error) {
	url := fmt.Sprintf("%s?latitude=%.4f&longitude=%.4f&timezone=auto&past_days=%d&forecast_days=0&hourly=temperature_2m,relative_humidity_2m,precipitation,wind_speed_10m",
		c.baseURL, latitude, longitude, pastDays)

	var resp hourlyResponse
	if err := c.get(url, &resp); err != nil {
		return nil, err
	}

	var readings []models.WeatherReading
	for i, ts := range resp.Hourly.Time {
		measuredAt, err := time.Parse("2006-01-02T15:04", ts)
		if err != nil {
			continue
		}

		r := models.WeatherReading{Location: location, MeasuredAt: measuredAt}
		if i < len(resp.Hourly.Temperature2m) {
			r.Temperature = resp.Hourly.Temperature2m[i]
		}
		if i < len(resp.Hourly.RelativeHumidity2m) {
			r.Humidity = resp.Hourly.RelativeHumidity2m[i]
		}
		if i < len(resp.Hourly.Precipitation) {
			p := resp.Hourly.Precipitation[i]
			r.Precipitation = &p
		}
		if i < len(resp.Hourly.WindSpeed10m) {
			r.WindSpeed = resp.Hourly.WindSpeed10m[i]
		}
		readings = append(readings, r)
	}

	return readings, nil
}

func (c *Client) get(url string, dest interface{}) error {
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("failed to fetch forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
