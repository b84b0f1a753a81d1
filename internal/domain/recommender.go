package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"runtime"
	"sync"
)

// BoundaryPolicy selects the bounds used by each check of the recommender.
type BoundaryPolicy struct {
	Absolute Bounds
	Forecast Bounds
	Historic Bounds
}

// DefaultBoundaryPolicy treats absolute and forecast limits as tolerable and
// keeps the strict historic comparison.
func DefaultBoundaryPolicy() BoundaryPolicy {
	return BoundaryPolicy{Absolute: Inclusive, Forecast: Inclusive, Historic: Exclusive}
}

// Recommender decides whether crops suit a place's weather. It holds no
// mutable state and is safe for concurrent use.
type Recommender struct {
	bounds           BoundaryPolicy
	forecastMidpoint bool
	workers          int
}

// RecommenderOption configures a Recommender.
type RecommenderOption func(*Recommender)

// WithBoundaryPolicy overrides DefaultBoundaryPolicy.
func WithBoundaryPolicy(p BoundaryPolicy) RecommenderOption {
	return func(r *Recommender) { r.bounds = p }
}

// WithForecastMidpoint makes forecasts without an average use the midpoint of
// their low and high for the optimal-fit check instead of skipping it.
func WithForecastMidpoint(enabled bool) RecommenderOption {
	return func(r *Recommender) { r.forecastMidpoint = enabled }
}

// WithWorkers bounds the goroutines used by RecommendAll. Values below 1 are ignored.
func WithWorkers(n int) RecommenderOption {
	return func(r *Recommender) {
		if n > 0 {
			r.workers = n
		}
	}
}

// NewRecommender returns a Recommender with the default boundary policy.
func NewRecommender(opts ...RecommenderOption) *Recommender {
	r := &Recommender{
		bounds:  DefaultBoundaryPolicy(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Recommend evaluates one crop:
//
//  1. the optimal band is widened by conf.Factor();
//  2. the forecast high and low must stay inside the absolute band;
//  3. the forecast average (or midpoint, if enabled) must fall in the widened band;
//  4. the historic average must fall in the widened band.
//
// Checks whose observation is absent are skipped. The margin is the smallest
// signed distance across every evaluated boundary.
func (r *Recommender) Recommend(crop Crop, w Weather, conf Confidence) (Recommendation, error) {
	if crop.IsZero() {
		return Recommendation{}, &CropError{Msg: "crop must be a constructed crop"}
	}
	conf = conf.orDefault()
	if !conf.valid() {
		return Recommendation{}, &RecommendationError{Msg: fmt.Sprintf("unknown confidence %d", int(conf))}
	}
	req := crop.TemperatureRequirement()
	scale := req.Scale()
	if err := w.check(scale); err != nil {
		return Recommendation{}, err
	}

	absolute := req.Absolute()
	adjusted := req.Optimal().widen(conf.Factor())
	e := evaluation{margin: math.MaxInt}

	if w.Forecast != nil {
		high, _ := w.Forecast.High()
		low, _ := w.Forecast.Low()
		e.upper(high.value, absolute.high.value, r.bounds.Absolute)
		e.lower(low.value, absolute.low.value, r.bounds.Absolute)

		if avg, ok := r.forecastAverage(*w.Forecast); ok {
			e.within(avg, adjusted, r.bounds.Forecast)
		}
	}
	if w.Historic != nil {
		avg, _ := w.Historic.Average()
		e.within(avg.value, adjusted, r.bounds.Historic)
	}

	return NewRecommendation(w.Place(), crop, e.pass, Temperature{value: e.margin, scale: scale}, conf)
}

func (r *Recommender) forecastAverage(fc WeatherObservation) (int, bool) {
	if avg, ok := fc.Average(); ok {
		return avg.value, true
	}
	if !r.forecastMidpoint {
		return 0, false
	}
	high, _ := fc.High()
	low, _ := fc.Low()
	return int(math.Round(float64(high.value+low.value) / 2)), true
}

// evaluation accumulates check outcomes and the minimum signed margin.
type evaluation struct {
	pass   bool
	margin int
	seen   bool
}

func (e *evaluation) record(ok bool, distance int) {
	if !e.seen {
		e.pass, e.seen = true, true
	}
	e.pass = e.pass && ok
	e.margin = min(e.margin, distance)
}

// upper checks v against a ceiling.
func (e *evaluation) upper(v, limit int, b Bounds) {
	ok := v <= limit
	if b == Exclusive {
		ok = v < limit
	}
	e.record(ok, limit-v)
}

// lower checks v against a floor.
func (e *evaluation) lower(v, limit int, b Bounds) {
	ok := v >= limit
	if b == Exclusive {
		ok = v > limit
	}
	e.record(ok, v-limit)
}

func (e *evaluation) within(v int, r TemperatureRange, b Bounds) {
	e.lower(v, r.low.value, b)
	e.upper(v, r.high.value, b)
}

// CropFailure records a crop that could not be evaluated.
type CropFailure struct {
	Crop Crop  `json:"crop"`
	Err  error `json:"-"`
}

func (f CropFailure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Crop  Crop   `json:"crop"`
		Error string `json:"error"`
	}{Crop: f.Crop, Error: msg})
}

// BatchResult holds one recommendation per evaluable crop, in input order,
// and the crops that failed evaluation.
type BatchResult struct {
	Place           Place            `json:"place"`
	Confidence      Confidence       `json:"confidence"`
	Recommendations []Recommendation `json:"recommendations"`
	Failures        []CropFailure    `json:"failures,omitempty"`
}

// Recommended returns only the recommendations that passed.
func (b BatchResult) Recommended() []Recommendation {
	out := make([]Recommendation, 0, len(b.Recommendations))
	for _, rec := range b.Recommendations {
		if rec.Recommended {
			out = append(out, rec)
		}
	}
	return out
}

// RecommendAll evaluates every crop against the same weather in parallel. A
// crop that fails evaluation is recorded in Failures and does not stop the batch.
// The zero Confidence means ConfidenceHigh.
func (r *Recommender) RecommendAll(crops []Crop, w Weather, conf Confidence) BatchResult {
	conf = conf.orDefault()
	recs := make([]Recommendation, len(crops))
	errs := make([]error, len(crops))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(max(r.workers, 1), len(crops)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				recs[i], errs[i] = r.Recommend(crops[i], w, conf)
			}
		}()
	}
	for i := range crops {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := BatchResult{
		Place:           w.Place(),
		Confidence:      conf,
		Recommendations: make([]Recommendation, 0, len(crops)),
	}
	for i := range crops {
		if errs[i] != nil {
			out.Failures = append(out.Failures, CropFailure{Crop: crops[i], Err: errs[i]})
			continue
		}
		out.Recommendations = append(out.Recommendations, recs[i])
	}
	return out
}
