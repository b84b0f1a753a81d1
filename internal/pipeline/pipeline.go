package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	"github.com/couchcryptid/crop-advisor-service/internal/observability"
)

var errNoWeatherSource = errors.New("no weather source configured")

// Publisher delivers a place's recommendations to a sink.
type Publisher interface {
	Publish(ctx context.Context, batch domain.BatchResult) error
}

// Options tune the advisory cycle. Zero values select the defaults.
type Options struct {
	Interval   time.Duration
	Confidence domain.Confidence

	// Publish retries: InitialBackoff doubles after each failed attempt, capped at MaxBackoff.
	PublishAttempts int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = time.Hour
	}
	if o.PublishAttempts <= 0 {
		o.PublishAttempts = 3
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 200 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 5 * time.Second
	}
	return o
}

// Pipeline runs the periodic advisory cycle: for each stored place it
// fetches weather, evaluates every stored crop and publishes the results.
type Pipeline struct {
	places    domain.PlaceRepository
	crops     domain.CropRepository
	publisher Publisher
	advisor   *Advisor
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options
	ready     atomic.Bool
}

// New creates a Pipeline with the given collaborators and observability.
func New(
	places domain.PlaceRepository,
	crops domain.CropRepository,
	weather domain.WeatherSource,
	publisher Publisher,
	recommender *domain.Recommender,
	logger *slog.Logger,
	metrics *observability.Metrics,
	opts Options,
) *Pipeline {
	return &Pipeline{
		places:    places,
		crops:     crops,
		publisher: publisher,
		advisor:   NewAdvisor(crops, weather, recommender),
		logger:    logger,
		metrics:   metrics,
		opts:      opts.withDefaults(),
	}
}

// Advisor returns the advisor the pipeline evaluates crops with.
func (p *Pipeline) Advisor() *Advisor { return p.advisor }

// CheckReadiness returns nil once an advisory cycle has completed, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed an advisory cycle yet")
	}
	return nil
}

// Run executes an advisory cycle immediately and then every interval until
// the context is cancelled. Cycles never overlap.
func (p *Pipeline) Run(ctx context.Context) error {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	_, err := s.Every(p.opts.Interval).StartImmediately().Do(func() {
		if err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("advisory cycle failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule advisory cycle: %w", err)
	}

	p.logger.Info("pipeline started",
		"interval", p.opts.Interval.String(),
		"confidence", p.opts.Confidence.String(),
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	s.StartAsync()
	<-ctx.Done()
	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	s.Stop()
	return nil
}

// RunOnce performs one advisory cycle. A place whose weather cannot be
// fetched, or whose results cannot be published, is skipped. Only a failure
// to list places or crops aborts the cycle.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	start := time.Now()

	places, err := p.places.List(ctx)
	if err != nil {
		return fmt.Errorf("list places: %w", err)
	}
	crops, err := p.crops.List(ctx)
	if err != nil {
		return fmt.Errorf("list crops: %w", err)
	}
	p.metrics.CropsPerBatch.Observe(float64(len(crops)))

	for _, place := range places {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.advisePlace(ctx, place, crops)
	}

	p.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Info("advisory cycle completed",
		"places", len(places),
		"crops", len(crops),
		"duration", time.Since(start).String(),
	)
	return nil
}

func (p *Pipeline) advisePlace(ctx context.Context, place domain.Place, crops []domain.Crop) {
	w, err := p.advisor.Weather(ctx, place)
	if err == nil {
		p.evaluateAndPublish(ctx, place, crops, w)
		return
	}
	if ctx.Err() != nil {
		return
	}
	p.logger.Warn("weather unavailable, skipping place", "place", place.Key(), "error", err)
	p.metrics.WeatherErrors.Inc()
}

func (p *Pipeline) evaluateAndPublish(ctx context.Context, place domain.Place, crops []domain.Crop, w domain.Weather) {
	batch := p.advisor.recommender.RecommendAll(crops, w, p.opts.Confidence)

	for _, f := range batch.Failures {
		p.logger.Warn("crop evaluation failed",
			"place", place.Key(),
			"crop", f.Crop.Name(),
			"crop_id", f.Crop.ID().String(),
			"error", f.Err,
		)
	}
	p.metrics.RecommendationFailures.Add(float64(len(batch.Failures)))
	recommended := len(batch.Recommended())
	p.metrics.Recommendations.WithLabelValues("recommended").Add(float64(recommended))
	p.metrics.Recommendations.WithLabelValues("rejected").Add(float64(len(batch.Recommendations) - recommended))

	if len(batch.Recommendations) == 0 {
		return
	}
	if err := p.publishWithRetry(ctx, batch); err != nil {
		if ctx.Err() == nil {
			p.logger.Error("publish failed, dropping batch",
				"place", place.Key(),
				"recommendations", len(batch.Recommendations),
				"error", err,
			)
		}
		p.metrics.PublishErrors.Inc()
		return
	}
	p.metrics.Published.Add(float64(len(batch.Recommendations)))
	p.logger.Debug("place advised",
		"place", place.Key(),
		"recommended", recommended,
		"evaluated", len(batch.Recommendations),
	)
}

// publishWithRetry retries with exponential backoff: start at InitialBackoff,
// double each retry, cap at MaxBackoff.
func (p *Pipeline) publishWithRetry(ctx context.Context, batch domain.BatchResult) error {
	backoff := p.opts.InitialBackoff
	var err error
	for attempt := 1; attempt <= p.opts.PublishAttempts; attempt++ {
		if err = p.publisher.Publish(ctx, batch); err == nil {
			return nil
		}
		if attempt == p.opts.PublishAttempts {
			break
		}
		p.logger.Warn("publish attempt failed",
			"place", batch.Place.Key(),
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", err,
		)
		if !sleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, p.opts.MaxBackoff)
	}
	return err
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// LogPublisher writes recommendations to the log instead of a broker.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (l *LogPublisher) Publish(_ context.Context, batch domain.BatchResult) error {
	for _, rec := range batch.Recommendations {
		l.logger.Info("recommendation",
			"place", rec.Place.Key(),
			"crop", rec.Crop.Name(),
			"recommended", rec.Recommended,
			"margin", rec.Margin.String(),
			"confidence", rec.Confidence.String(),
		)
	}
	return nil
}
