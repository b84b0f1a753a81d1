package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crop-advisor-service/internal/adapter/memory"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	"github.com/couchcryptid/crop-advisor-service/internal/observability"
	"github.com/couchcryptid/crop-advisor-service/internal/pipeline"
)

// --- mocks ---

type mockWeather struct {
	mu      sync.Mutex
	reports map[string]domain.WeatherReport
	errs    map[string]error
	calls   int
}

func (m *mockWeather) Get(_ context.Context, place domain.Place) (domain.WeatherReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err, ok := m.errs[place.Key()]; ok {
		return domain.WeatherReport{}, &domain.WeatherError{Place: place.Key(), Err: err}
	}
	report, ok := m.reports[place.Key()]
	if !ok {
		return domain.WeatherReport{}, &domain.WeatherError{Place: place.Key(), Err: errors.New("no data")}
	}
	return report, nil
}

type mockPublisher struct {
	mu       sync.Mutex
	failures int
	attempts int
	batches  []domain.BatchResult
}

func (m *mockPublisher) Publish(_ context.Context, batch domain.BatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.failures > 0 {
		m.failures--
		return errors.New("broker unavailable")
	}
	m.batches = append(m.batches, batch)
	return nil
}

func (m *mockPublisher) published() []domain.BatchResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BatchResult(nil), m.batches...)
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustPlace(t *testing.T, postal string) domain.Place {
	t.Helper()
	p, err := domain.NewPlace(postal, "US")
	require.NoError(t, err)
	return p
}

func mustCrop(t *testing.T, name string, absLow, optLow, optHigh, absHigh float64, scale domain.Scale) domain.Crop {
	t.Helper()
	c, err := domain.CropRecord{
		Name:         name,
		AbsoluteLow:  absLow,
		OptimalLow:   optLow,
		OptimalHigh:  optHigh,
		AbsoluteHigh: absHigh,
		Scale:        scale,
	}.NewCrop()
	require.NoError(t, err)
	return c
}

func reportF(place domain.Place, high, low, historic int) domain.WeatherReport {
	return domain.WeatherReport{
		Place:           place,
		ForecastHigh:    domain.DegreesF(high),
		ForecastLow:     domain.DegreesF(low),
		HistoricAverage: domain.DegreesF(historic),
		ObservedAt:      time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC),
	}
}

func fastOptions() pipeline.Options {
	return pipeline.Options{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func cropNames(recs []domain.Recommendation) []string {
	names := make([]string, 0, len(recs))
	for _, r := range recs {
		names = append(names, r.Crop.Name())
	}
	return names
}

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2026, 5, 10, 12, 30, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })
}

// --- tests ---

func TestPipeline_RunOnce_HappyPath(t *testing.T) {
	freezeClock(t)
	place := mustPlace(t, "22405")
	corn := mustCrop(t, "corn", 40, 65, 75, 80, domain.Fahrenheit)
	kale := mustCrop(t, "kale", 20, 40, 55, 70, domain.Fahrenheit)

	weather := &mockWeather{reports: map[string]domain.WeatherReport{
		place.Key(): reportF(place, 79, 41, 70),
	}}
	pub := &mockPublisher{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(memory.NewPlaceRepository(place), memory.NewRepository(corn, kale), weather, pub,
		domain.NewRecommender(), discardLogger(), metrics, fastOptions())

	require.Error(t, p.CheckReadiness(context.Background()))
	require.NoError(t, p.RunOnce(context.Background()))
	require.NoError(t, p.CheckReadiness(context.Background()))

	batches := pub.published()
	require.Len(t, batches, 1)
	assert.Equal(t, place.Key(), batches[0].Place.Key())
	assert.Equal(t, domain.ConfidenceHigh, batches[0].Confidence)
	if diff := cmp.Diff([]string{"Corn", "Kale"}, cropNames(batches[0].Recommendations)); diff != "" {
		t.Fatalf("recommendations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Corn"}, cropNames(batches[0].Recommended())); diff != "" {
		t.Fatalf("recommended mismatch (-want +got):\n%s", diff)
	}

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Recommendations.WithLabelValues("recommended")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Recommendations.WithLabelValues("rejected")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Published), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PublishErrors), 0)
}

func TestPipeline_RunOnce_WeatherErrorSkipsPlace(t *testing.T) {
	good := mustPlace(t, "22405")
	bad := mustPlace(t, "10001")
	corn := mustCrop(t, "corn", 40, 65, 75, 80, domain.Fahrenheit)

	weather := &mockWeather{
		reports: map[string]domain.WeatherReport{good.Key(): reportF(good, 79, 41, 70)},
		errs:    map[string]error{bad.Key(): errors.New("timeout")},
	}
	pub := &mockPublisher{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(memory.NewPlaceRepository(bad, good), memory.NewRepository(corn), weather, pub,
		domain.NewRecommender(), discardLogger(), metrics, fastOptions())

	require.NoError(t, p.RunOnce(context.Background()))

	batches := pub.published()
	require.Len(t, batches, 1)
	assert.Equal(t, good.Key(), batches[0].Place.Key())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.WeatherErrors), 0)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_RunOnce_CropFailuresAreCounted(t *testing.T) {
	place := mustPlace(t, "22405")
	corn := mustCrop(t, "corn", 40, 65, 75, 80, domain.Fahrenheit)
	rice := mustCrop(t, "rice", 10, 20, 30, 40, domain.Celsius)

	weather := &mockWeather{reports: map[string]domain.WeatherReport{
		place.Key(): reportF(place, 79, 41, 70),
	}}
	pub := &mockPublisher{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(memory.NewPlaceRepository(place), memory.NewRepository(corn, rice), weather, pub,
		domain.NewRecommender(), discardLogger(), metrics, fastOptions())

	require.NoError(t, p.RunOnce(context.Background()))

	batches := pub.published()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"Corn"}, cropNames(batches[0].Recommendations))
	require.Len(t, batches[0].Failures, 1)
	assert.Equal(t, "Rice", batches[0].Failures[0].Crop.Name())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RecommendationFailures), 0)
}

func TestPipeline_RunOnce_RetriesPublish(t *testing.T) {
	place := mustPlace(t, "22405")
	corn := mustCrop(t, "corn", 40, 65, 75, 80, domain.Fahrenheit)
	weather := &mockWeather{reports: map[string]domain.WeatherReport{
		place.Key(): reportF(place, 79, 41, 70),
	}}

	tests := []struct {
		name          string
		failures      int
		wantAttempts  int
		wantPublished int
		wantErrors    float64
	}{
		{name: "succeeds after retries", failures: 2, wantAttempts: 3, wantPublished: 1, wantErrors: 0},
		{name: "gives up after three attempts", failures: 5, wantAttempts: 3, wantPublished: 0, wantErrors: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{failures: tt.failures}
			metrics := observability.NewMetricsForTesting()
			p := pipeline.New(memory.NewPlaceRepository(place), memory.NewRepository(corn), weather, pub,
				domain.NewRecommender(), discardLogger(), metrics, fastOptions())

			require.NoError(t, p.RunOnce(context.Background()))

			assert.Equal(t, tt.wantAttempts, pub.attempts)
			assert.Len(t, pub.published(), tt.wantPublished)
			assert.InDelta(t, tt.wantErrors, testutil.ToFloat64(metrics.PublishErrors), 0)
		})
	}
}

func TestPipeline_RunOnce_NoCropsPublishesNothing(t *testing.T) {
	place := mustPlace(t, "22405")
	weather := &mockWeather{reports: map[string]domain.WeatherReport{
		place.Key(): reportF(place, 79, 41, 70),
	}}
	pub := &mockPublisher{}

	p := pipeline.New(memory.NewPlaceRepository(place), memory.NewRepository(), weather, pub,
		domain.NewRecommender(), discardLogger(), observability.NewMetricsForTesting(), fastOptions())

	require.NoError(t, p.RunOnce(context.Background()))
	assert.Zero(t, pub.attempts)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

type failingPlaces struct{ domain.PlaceRepository }

func (failingPlaces) List(context.Context) ([]domain.Place, error) {
	return nil, errors.New("database is locked")
}

func TestPipeline_RunOnce_ListPlacesErrorAbortsCycle(t *testing.T) {
	pub := &mockPublisher{}
	p := pipeline.New(failingPlaces{}, memory.NewRepository(), &mockWeather{}, pub,
		domain.NewRecommender(), discardLogger(), observability.NewMetricsForTesting(), fastOptions())

	err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list places")
	assert.Zero(t, pub.attempts)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_RunOnce_ReadsPlacesEachCycle(t *testing.T) {
	ctx := context.Background()
	first := mustPlace(t, "22405")
	second := mustPlace(t, "10001")
	corn := mustCrop(t, "corn", 40, 65, 75, 80, domain.Fahrenheit)
	weather := &mockWeather{reports: map[string]domain.WeatherReport{
		first.Key():  reportF(first, 79, 41, 70),
		second.Key(): reportF(second, 79, 41, 70),
	}}
	places := memory.NewPlaceRepository(first)
	pub := &mockPublisher{}
	p := pipeline.New(places, memory.NewRepository(corn), weather, pub,
		domain.NewRecommender(), discardLogger(), observability.NewMetricsForTesting(), fastOptions())

	require.NoError(t, p.RunOnce(ctx))
	require.Len(t, pub.published(), 1)

	require.NoError(t, places.Create(ctx, second))
	require.NoError(t, places.Delete(ctx, first.Key()))
	require.NoError(t, p.RunOnce(ctx))

	batches := pub.published()
	require.Len(t, batches, 2)
	assert.Equal(t, second.Key(), batches[1].Place.Key())
}

func TestPipeline_RunOnce_ConfidenceOption(t *testing.T) {
	place := mustPlace(t, "22405")
	// Historic 76 sits just above the optimal band 65..75; low confidence widens it to 62..79.
	corn := mustCrop(t, "corn", 40, 65, 75, 80, domain.Fahrenheit)
	weather := &mockWeather{reports: map[string]domain.WeatherReport{
		place.Key(): reportF(place, 79, 41, 76),
	}}

	for _, tt := range []struct {
		conf domain.Confidence
		want bool
	}{
		{conf: domain.ConfidenceHigh, want: false},
		{conf: domain.ConfidenceLow, want: true},
	} {
		t.Run(tt.conf.String(), func(t *testing.T) {
			pub := &mockPublisher{}
			opts := fastOptions()
			opts.Confidence = tt.conf
			p := pipeline.New(memory.NewPlaceRepository(place), memory.NewRepository(corn), weather, pub,
				domain.NewRecommender(), discardLogger(), observability.NewMetricsForTesting(), opts)

			require.NoError(t, p.RunOnce(context.Background()))
			batches := pub.published()
			require.Len(t, batches, 1)
			require.Len(t, batches[0].Recommendations, 1)
			assert.Equal(t, tt.want, batches[0].Recommendations[0].Recommended)
			assert.Equal(t, tt.conf, batches[0].Recommendations[0].Confidence)
		})
	}
}

func TestPipeline_Run_SchedulesImmediatelyAndStops(t *testing.T) {
	place := mustPlace(t, "22405")
	corn := mustCrop(t, "corn", 40, 65, 75, 80, domain.Fahrenheit)
	weather := &mockWeather{reports: map[string]domain.WeatherReport{
		place.Key(): reportF(place, 79, 41, 70),
	}}
	pub := &mockPublisher{}
	metrics := observability.NewMetricsForTesting()

	opts := fastOptions()
	opts.Interval = time.Hour
	p := pipeline.New(memory.NewPlaceRepository(place), memory.NewRepository(corn), weather, pub,
		domain.NewRecommender(), discardLogger(), metrics, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return p.CheckReadiness(context.Background()) == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PipelineRunning), 0)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancellation")
	}
	assert.Len(t, pub.published(), 1)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	p := pipeline.New(memory.NewPlaceRepository(), memory.NewRepository(), &mockWeather{}, &mockPublisher{},
		domain.NewRecommender(), discardLogger(), observability.NewMetricsForTesting(), fastOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
}

func TestAdvisor_ForPlace(t *testing.T) {
	place := mustPlace(t, "22405")
	corn := mustCrop(t, "corn", 40, 65, 75, 80, domain.Fahrenheit)
	kale := mustCrop(t, "kale", 20, 40, 55, 70, domain.Fahrenheit)
	weather := &mockWeather{reports: map[string]domain.WeatherReport{
		place.Key(): reportF(place, 79, 41, 70),
	}}
	advisor := pipeline.NewAdvisor(memory.NewRepository(corn, kale), weather, domain.NewRecommender())

	all, err := advisor.ForPlace(context.Background(), place, domain.ConfidenceHigh, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Corn", "Kale"}, cropNames(all.Recommendations))

	selected, err := advisor.ForPlace(context.Background(), place, domain.ConfidenceHigh, []uuid.UUID{kale.ID()})
	require.NoError(t, err)
	assert.Equal(t, []string{"Kale"}, cropNames(selected.Recommendations))
}

func TestAdvisor_ForPlace_Errors(t *testing.T) {
	place := mustPlace(t, "22405")
	weather := &mockWeather{errs: map[string]error{place.Key(): errors.New("down")}}
	advisor := pipeline.NewAdvisor(memory.NewRepository(), weather, domain.NewRecommender())

	_, err := advisor.ForPlace(context.Background(), place, domain.ConfidenceHigh, nil)
	var weatherErr *domain.WeatherError
	require.ErrorAs(t, err, &weatherErr)

	noSource := pipeline.NewAdvisor(memory.NewRepository(), nil, domain.NewRecommender())
	_, err = noSource.ForPlace(context.Background(), place, domain.ConfidenceHigh, nil)
	require.ErrorAs(t, err, &weatherErr)
}

func TestAdvisor_Weather(t *testing.T) {
	place := mustPlace(t, "22405")
	other := mustPlace(t, "10001")
	weather := &mockWeather{
		reports: map[string]domain.WeatherReport{place.Key(): reportF(place, 79, 41, 70)},
		errs:    map[string]error{other.Key(): errors.New("down")},
	}
	advisor := pipeline.NewAdvisor(memory.NewRepository(), weather, domain.NewRecommender())

	w, err := advisor.Weather(context.Background(), place)
	require.NoError(t, err)
	require.NotNil(t, w.Forecast)
	assert.Equal(t, place.Key(), w.Forecast.Place().Key())

	_, err = advisor.Weather(context.Background(), other)
	var weatherErr *domain.WeatherError
	require.ErrorAs(t, err, &weatherErr)
	assert.Equal(t, other.Key(), weatherErr.Place)
}

func TestAdvisor_WithWeather_UnknownCrop(t *testing.T) {
	place := mustPlace(t, "22405")
	fc, err := domain.NewForecast(place, domain.DegreesF(79), domain.DegreesF(41))
	require.NoError(t, err)
	advisor := pipeline.NewAdvisor(memory.NewRepository(), nil, domain.NewRecommender())

	_, err = advisor.WithWeather(context.Background(), domain.Weather{Forecast: &fc}, domain.ConfidenceHigh, []uuid.UUID{uuid.New()})
	require.ErrorIs(t, err, domain.ErrCropNotFound)
}

func TestLogPublisher(t *testing.T) {
	require.NoError(t, pipeline.NewLogPublisher(discardLogger()).Publish(context.Background(), domain.BatchResult{}))
}
