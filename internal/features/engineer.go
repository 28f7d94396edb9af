package features

import (
	"math"
	"sort"
	"time"

	"github.com/Nico-Draagron/clima-negocios/internal/models"
)

// Lags and rolling windows, in record-order periods. The first MaxLag
// rows of any dataset are unusable because their lag/rolling values do
// not exist; training must never see made-up lags.
var (
	lags           = []int{1, 7, 30}
	rollingWindows = []int{7, 30}
)

// MaxLag is the longest lag period.
const MaxLag = 30

// Default weather values used at prediction time when no forecast and no
// same-month history exists. Carried over from the training service.
const (
	defaultTemperature = 25.0
	defaultHumidity    = 70.0
	defaultWindSpeed   = 10.0
	defaultItemLag     = 50.0
)

// baseNames is the fixed-order non-categorical feature list. One-hot
// columns for categoria and canal are appended in sorted level order.
var baseNames = []string{
	"dia_ano", "dia_mes", "dia_semana", "mes", "trimestre",
	"is_fim_semana", "feriado",
	"temperatura", "temp_squared", "umidade", "precipitacao_24h",
	"vento_velocidade", "temp_umidade_interaction", "chuva_binary",
	"vendas_lag_1", "vendas_lag_7", "vendas_lag_30",
	"itens_lag_1", "itens_lag_7", "itens_lag_30",
	"media_movel_7", "media_movel_30",
	"desvio_movel_7", "desvio_movel_30",
}

// Matrix is the training input produced by Build: the numeric matrix,
// the target vector and the exact feature-name ordering. Names must be
// reproduced identically at prediction time.
type Matrix struct {
	X     [][]float64
	Y     []float64
	Names []string
}

// Build derives the full feature matrix from the joined table. The
// first MaxLag rows are dropped; if fewer than MaxLag+1 rows remain the
// build fails rather than returning a degenerate matrix.
func Build(records []models.Record) (*Matrix, error) {
	usable := len(records) - MaxLag
	if usable < MaxLag+1 {
		if usable < 0 {
			usable = 0
		}
		return nil, &models.InsufficientDataError{Stage: "feature engineering", Rows: usable, Min: MaxLag + 1}
	}

	categories := levels(records, func(r models.Record) string { return r.Category })
	channels := levels(records, func(r models.Record) string { return r.Channel })

	names := make([]string, 0, len(baseNames)+len(categories)+len(channels))
	names = append(names, baseNames...)
	for _, c := range categories {
		names = append(names, "categoria_"+c)
	}
	for _, c := range channels {
		names = append(names, "canal_"+c)
	}

	m := &Matrix{
		X:     make([][]float64, 0, usable),
		Y:     make([]float64, 0, usable),
		Names: names,
	}

	for i := MaxLag; i < len(records); i++ {
		row := temporalAndWeather(records[i].SoldAt, weatherOf(records[i]), records[i].IsHoliday)

		for _, lag := range lags {
			row[lagName("vendas", lag)] = records[i-lag].Total
			row[lagName("itens", lag)] = float64(records[i-lag].ItemCount)
		}

		for _, w := range rollingWindows {
			mean, std := trailingStats(records, i, w)
			row[rollingMeanName(w)] = mean
			row[rollingStdName(w)] = std
		}

		row["categoria_"+records[i].Category] = 1
		row["canal_"+records[i].Channel] = 1

		m.X = append(m.X, Vectorize(names, row))
		m.Y = append(m.Y, records[i].Total)
	}

	return m, nil
}

// Vectorize lays a named row out in the given feature order. A name the
// row does not produce (an unseen one-hot level, say) becomes 0 rather
// than an error.
func Vectorize(names []string, row map[string]float64) []float64 {
	out := make([]float64, len(names))
	for i, name := range names {
		out[i] = row[name]
	}
	return out
}

// WeatherInputs are the raw weather fields a feature row derives from.
type WeatherInputs struct {
	Temperature   float64
	Humidity      float64
	Precipitation float64
	WindSpeed     float64
}

// HistoryStats summarizes the trailing history needed to seed
// prediction-time lag, rolling and categorical features.
type HistoryStats struct {
	MonthTemperature map[time.Month]float64
	MonthHumidity    map[time.Month]float64
	Tail7Mean        float64
	Tail30Mean       float64
	Tail7Std         float64
	Tail30Std        float64
	TopCategory      string
	TopChannel       string
}

// SummarizeHistory computes HistoryStats over the joined table.
func SummarizeHistory(records []models.Record) HistoryStats {
	stats := HistoryStats{
		MonthTemperature: make(map[time.Month]float64),
		MonthHumidity:    make(map[time.Month]float64),
	}

	tempSum := make(map[time.Month]float64)
	humSum := make(map[time.Month]float64)
	count := make(map[time.Month]int)
	catCount := make(map[string]int)
	chanCount := make(map[string]int)

	for _, r := range records {
		m := r.SoldAt.Month()
		tempSum[m] += r.Temperature
		humSum[m] += r.Humidity
		count[m]++
		catCount[r.Category]++
		chanCount[r.Channel]++
	}

	for m, n := range count {
		stats.MonthTemperature[m] = tempSum[m] / float64(n)
		stats.MonthHumidity[m] = humSum[m] / float64(n)
	}

	stats.TopCategory = mode(catCount)
	stats.TopChannel = mode(chanCount)

	if n := len(records); n > 0 {
		stats.Tail7Mean, stats.Tail7Std = tailStats(records, 7)
		stats.Tail30Mean, stats.Tail30Std = tailStats(records, 30)
	}

	return stats
}

// PredictionRow builds the named feature row for one future date. The
// lag-1 value comes from the caller's maintained state (the previous
// day's own estimate once the simulation is underway); longer lags and
// rolling statistics stay seeded from the historical tail. weather may
// be nil, in which case historical monthly averages apply.
func PredictionRow(date time.Time, weather *models.DailyWeather, stats HistoryStats, lastValue float64) map[string]float64 {
	var w WeatherInputs
	if weather != nil {
		w = WeatherInputs{
			Temperature:   weather.Temperature,
			Humidity:      weather.Humidity,
			Precipitation: weather.Precipitation,
			WindSpeed:     weather.WindSpeed,
		}
	} else {
		w.Temperature = defaultTemperature
		w.Humidity = defaultHumidity
		if t, ok := stats.MonthTemperature[date.Month()]; ok {
			w.Temperature = t
		}
		if h, ok := stats.MonthHumidity[date.Month()]; ok {
			w.Humidity = h
		}
		w.Precipitation = 0
		w.WindSpeed = defaultWindSpeed
	}

	// Holidays are not predicted yet.
	// TODO: wire a holiday calendar so feriado is not always 0 here.
	row := temporalAndWeather(date, w, false)

	row["vendas_lag_1"] = lastValue
	row["vendas_lag_7"] = stats.Tail7Mean
	row["vendas_lag_30"] = stats.Tail30Mean

	row["itens_lag_1"] = defaultItemLag
	row["itens_lag_7"] = defaultItemLag
	row["itens_lag_30"] = defaultItemLag

	row["media_movel_7"] = stats.Tail7Mean
	row["media_movel_30"] = stats.Tail30Mean
	row["desvio_movel_7"] = stats.Tail7Std
	row["desvio_movel_30"] = stats.Tail30Std

	if stats.TopCategory != "" {
		row["categoria_"+stats.TopCategory] = 1
	}
	if stats.TopChannel != "" {
		row["canal_"+stats.TopChannel] = 1
	}

	return row
}

func temporalAndWeather(date time.Time, w WeatherInputs, holiday bool) map[string]float64 {
	row := map[string]float64{
		"dia_ano":       float64(date.YearDay()),
		"dia_mes":       float64(date.Day()),
		"dia_semana":    float64(pythonWeekday(date)),
		"mes":           float64(date.Month()),
		"trimestre":     float64((int(date.Month())-1)/3 + 1),
		"is_fim_semana": 0,
		"feriado":       0,

		"temperatura":              w.Temperature,
		"temp_squared":             w.Temperature * w.Temperature,
		"umidade":                  w.Humidity,
		"precipitacao_24h":         w.Precipitation,
		"vento_velocidade":         w.WindSpeed,
		"temp_umidade_interaction": w.Temperature * w.Humidity,
		"chuva_binary":             0,
	}

	if pythonWeekday(date) >= 5 {
		row["is_fim_semana"] = 1
	}
	if holiday {
		row["feriado"] = 1
	}
	if w.Precipitation > 0 {
		row["chuva_binary"] = 1
	}

	return row
}

// pythonWeekday maps Monday to 0 and Sunday to 6, matching the encoding
// the models were originally trained with.
func pythonWeekday(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

func weatherOf(r models.Record) WeatherInputs {
	return WeatherInputs{
		Temperature:   r.Temperature,
		Humidity:      r.Humidity,
		Precipitation: r.Precipitation,
		WindSpeed:     r.WindSpeed,
	}
}

// trailingStats is the mean and sample standard deviation of Total over
// the w records ending at index i inclusive.
func trailingStats(records []models.Record, i, w int) (float64, float64) {
	sum := 0.0
	for j := i - w + 1; j <= i; j++ {
		sum += records[j].Total
	}
	mean := sum / float64(w)

	if w <= 1 {
		return mean, 0
	}

	variance := 0.0
	for j := i - w + 1; j <= i; j++ {
		d := records[j].Total - mean
		variance += d * d
	}
	variance /= float64(w - 1)

	return mean, math.Sqrt(variance)
}

// tailStats is the mean and sample standard deviation of Total over the
// last w records (or all of them if fewer exist).
func tailStats(records []models.Record, w int) (float64, float64) {
	n := len(records)
	if w > n {
		w = n
	}
	if w == 0 {
		return 0, 0
	}

	sum := 0.0
	for j := n - w; j < n; j++ {
		sum += records[j].Total
	}
	mean := sum / float64(w)

	if w <= 1 {
		return mean, 0
	}

	variance := 0.0
	for j := n - w; j < n; j++ {
		d := records[j].Total - mean
		variance += d * d
	}
	variance /= float64(w - 1)

	return mean, math.Sqrt(variance)
}

func lagName(prefix string, lag int) string {
	switch lag {
	case 1:
		return prefix + "_lag_1"
	case 7:
		return prefix + "_lag_7"
	default:
		return prefix + "_lag_30"
	}
}

func rollingMeanName(w int) string {
	if w == 7 {
		return "media_movel_7"
	}
	return "media_movel_30"
}

func rollingStdName(w int) string {
	if w == 7 {
		return "desvio_movel_7"
	}
	return "desvio_movel_30"
}

func levels(records []models.Record, key func(models.Record) string) []string {
	seen := make(map[string]bool)
	for _, r := range records {
		seen[key(r)] = true
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func mode(counts map[string]int) string {
	best := ""
	bestCount := -1
	for k, n := range counts {
		if n > bestCount || (n == bestCount && k < best) {
			best = k
			bestCount = n
		}
	}
	return best
}
