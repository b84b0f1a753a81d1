package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

// Advisor answers recommendation requests against stored crops. It is shared
// by the scheduled pipeline and the HTTP API.
type Advisor struct {
	crops       domain.CropRepository
	weather     domain.WeatherSource
	recommender *domain.Recommender
}

// NewAdvisor creates an Advisor. weather may be nil when only caller-supplied
// observations are evaluated.
func NewAdvisor(crops domain.CropRepository, weather domain.WeatherSource, recommender *domain.Recommender) *Advisor {
	return &Advisor{crops: crops, weather: weather, recommender: recommender}
}

// ForPlace fetches weather for place and evaluates the selected crops. An
// empty cropIDs selects every stored crop.
func (a *Advisor) ForPlace(ctx context.Context, place domain.Place, conf domain.Confidence, cropIDs []uuid.UUID) (domain.BatchResult, error) {
	w, err := a.Weather(ctx, place)
	if err != nil {
		return domain.BatchResult{}, err
	}
	return a.WithWeather(ctx, w, conf, cropIDs)
}

// Weather fetches the report for place and splits it into observations.
// Failures are returned as *domain.WeatherError.
func (a *Advisor) Weather(ctx context.Context, place domain.Place) (domain.Weather, error) {
	if a.weather == nil {
		return domain.Weather{}, &domain.WeatherError{Place: place.Key(), Err: errNoWeatherSource}
	}
	report, err := a.weather.Get(ctx, place)
	if err != nil {
		return domain.Weather{}, err
	}
	w, err := report.Weather()
	if err != nil {
		return domain.Weather{}, &domain.WeatherError{Place: place.Key(), Err: err}
	}
	return w, nil
}

// WithWeather evaluates the selected crops against caller-supplied observations.
func (a *Advisor) WithWeather(ctx context.Context, w domain.Weather, conf domain.Confidence, cropIDs []uuid.UUID) (domain.BatchResult, error) {
	crops, err := a.selectCrops(ctx, cropIDs)
	if err != nil {
		return domain.BatchResult{}, err
	}
	return a.recommender.RecommendAll(crops, w, conf), nil
}

func (a *Advisor) selectCrops(ctx context.Context, ids []uuid.UUID) ([]domain.Crop, error) {
	if len(ids) == 0 {
		crops, err := a.crops.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list crops: %w", err)
		}
		return crops, nil
	}
	crops := make([]domain.Crop, 0, len(ids))
	for _, id := range ids {
		c, err := a.crops.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		crops = append(crops, c)
	}
	return crops, nil
}
