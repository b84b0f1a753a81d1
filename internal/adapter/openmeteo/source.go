// Package openmeteo implements domain.WeatherSource with the Open-Meteo
// forecast and historical archive APIs.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	"github.com/couchcryptid/crop-advisor-service/internal/observability"
)

const (
	apiForecast = "forecast"
	apiArchive  = "archive"

	dateLayout = "2006-01-02"
)

// Config selects the endpoints and forecast window.
type Config struct {
	ForecastURL  string
	ArchiveURL   string
	Timeout      time.Duration
	ForecastDays int
	Scale        domain.Scale
}

// Source reports, for a place, the extremes of the coming forecast window and
// the mean temperature over the same calendar window one year earlier.
type Source struct {
	cfg      Config
	geocoder domain.Geocoder
	client   *http.Client
	backoff  backoffConfig
	circuit  *gobreaker.CircuitBreaker
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewSource creates an Open-Meteo weather source. geocoder locates places
// that arrive without coordinates and may be nil.
func NewSource(cfg Config, geocoder domain.Geocoder, metrics *observability.Metrics, logger *slog.Logger) *Source {
	return &Source{
		cfg:      cfg,
		geocoder: geocoder,
		client:   &http.Client{Timeout: cfg.Timeout},
		backoff: backoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		circuit: newCircuitBreaker("openmeteo"),
		clock:   clockwork.NewRealClock(),
		metrics: metrics,
		logger:  logger,
	}
}

// Get fetches the forecast and historic figures for place.
func (s *Source) Get(ctx context.Context, place domain.Place) (domain.WeatherReport, error) {
	located, err := domain.Locate(ctx, place, s.geocoder)
	if err != nil {
		return domain.WeatherReport{}, err
	}
	fail := func(err error) (domain.WeatherReport, error) {
		return domain.WeatherReport{}, &domain.WeatherError{Place: place.Key(), Err: err}
	}

	now := s.clock.Now().UTC()
	high, low, err := s.forecast(ctx, *located.Coordinates)
	if err != nil {
		return fail(err)
	}
	avg, err := s.historic(ctx, *located.Coordinates, now)
	if err != nil {
		return fail(err)
	}

	report := domain.WeatherReport{Place: located, ObservedAt: now}
	if report.ForecastHigh, err = domain.NewTemperature(high, s.cfg.Scale); err != nil {
		return fail(err)
	}
	if report.ForecastLow, err = domain.NewTemperature(low, s.cfg.Scale); err != nil {
		return fail(err)
	}
	if report.HistoricAverage, err = domain.NewTemperature(avg, s.cfg.Scale); err != nil {
		return fail(err)
	}

	s.logger.Debug("weather fetched",
		"place", place.Key(),
		"forecast_high", report.ForecastHigh.String(),
		"forecast_low", report.ForecastLow.String(),
		"historic_average", report.HistoricAverage.String(),
	)
	return report, nil
}

// forecast returns the highest daily maximum and lowest daily minimum.
func (s *Source) forecast(ctx context.Context, at domain.Coordinates) (high, low float64, err error) {
	params := s.baseParams(at)
	params.Set("daily", "temperature_2m_max,temperature_2m_min")
	params.Set("forecast_days", strconv.Itoa(s.cfg.ForecastDays))

	var payload dailyResponse
	if err := s.get(ctx, apiForecast, s.cfg.ForecastURL, params, &payload); err != nil {
		return 0, 0, err
	}
	high, okHigh := extreme(payload.Daily.Max, func(a, b float64) bool { return a > b })
	low, okLow := extreme(payload.Daily.Min, func(a, b float64) bool { return a < b })
	if !okHigh || !okLow {
		return 0, 0, errors.New("forecast response has no daily temperatures")
	}
	return high, low, nil
}

// historic averages the daily means over the forecast window shifted back one year.
func (s *Source) historic(ctx context.Context, at domain.Coordinates, now time.Time) (float64, error) {
	start := now.AddDate(-1, 0, 0)
	end := start.AddDate(0, 0, s.cfg.ForecastDays-1)

	params := s.baseParams(at)
	params.Set("daily", "temperature_2m_mean")
	params.Set("start_date", start.Format(dateLayout))
	params.Set("end_date", end.Format(dateLayout))

	var payload dailyResponse
	if err := s.get(ctx, apiArchive, s.cfg.ArchiveURL, params, &payload); err != nil {
		return 0, err
	}
	var sum float64
	var n int
	for _, v := range payload.Daily.Mean {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0, errors.New("archive response has no daily mean temperatures")
	}
	return sum / float64(n), nil
}

func (s *Source) baseParams(at domain.Coordinates) url.Values {
	unit := "fahrenheit"
	if s.cfg.Scale == domain.Celsius {
		unit = "celsius"
	}
	return url.Values{
		"latitude":         {strconv.FormatFloat(at.Lat, 'f', 4, 64)},
		"longitude":        {strconv.FormatFloat(at.Lon, 'f', 4, 64)},
		"temperature_unit": {unit},
		"timezone":         {"auto"},
	}
}

func (s *Source) get(ctx context.Context, api, endpoint string, params url.Values, out any) error {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	}

	start := time.Now()
	resp, err := doRequestWithResilience(ctx, s.client, s.backoff, s.circuit, buildRequest)
	s.metrics.WeatherAPIDuration.WithLabelValues(api).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.WeatherRequests.WithLabelValues(api, "error").Inc()
		return fmt.Errorf("%s request: %w", api, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		s.metrics.WeatherRequests.WithLabelValues(api, "error").Inc()
		return fmt.Errorf("decode %s response: %w", api, err)
	}
	s.metrics.WeatherRequests.WithLabelValues(api, "success").Inc()
	return nil
}

func extreme(values []*float64, better func(a, b float64) bool) (float64, bool) {
	var best float64
	found := false
	for _, v := range values {
		if v == nil {
			continue
		}
		if !found || better(*v, best) {
			best, found = *v, true
		}
	}
	return best, found
}

// Open-Meteo API response types. Days without data are null.

type dailyResponse struct {
	Daily struct {
		Time []string   `json:"time"`
		Max  []*float64 `json:"temperature_2m_max"`
		Min  []*float64 `json:"temperature_2m_min"`
		Mean []*float64 `json:"temperature_2m_mean"`
	} `json:"daily"`
}
