package domain

import (
	"context"

	"github.com/google/uuid"
)

// CropRepository persists crops. Get, Save and Delete wrap ErrCropNotFound
// when the ID has no record.
type CropRepository interface {
	Create(ctx context.Context, rec CropRecord) (Crop, error)
	Get(ctx context.Context, id uuid.UUID) (Crop, error)
	Save(ctx context.Context, crop Crop) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]Crop, error)
}

// PlaceRepository persists the places advised each cycle, keyed by
// Place.Key. Create wraps ErrPlaceExists for a stored key; Get, Save and
// Delete wrap ErrPlaceNotFound when the key has no record. List orders by key.
type PlaceRepository interface {
	Create(ctx context.Context, place Place) error
	Get(ctx context.Context, key string) (Place, error)
	Save(ctx context.Context, place Place) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Place, error)
}

// WeatherSource supplies the forecast extremes and historic average for a
// place. Failures are returned as *WeatherError.
type WeatherSource interface {
	Get(ctx context.Context, place Place) (WeatherReport, error)
}
