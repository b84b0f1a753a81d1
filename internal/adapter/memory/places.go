package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

// PlaceRepository implements domain.PlaceRepository over a map keyed by Place.Key.
type PlaceRepository struct {
	mu     sync.RWMutex
	places map[string]domain.Place
}

// NewPlaceRepository creates a repository seeded with places. A later place
// replaces an earlier one with the same key.
func NewPlaceRepository(places ...domain.Place) *PlaceRepository {
	r := &PlaceRepository{places: make(map[string]domain.Place, len(places))}
	for _, p := range places {
		r.places[p.Key()] = p
	}
	return r
}

func (r *PlaceRepository) Create(_ context.Context, p domain.Place) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.places[p.Key()]; ok {
		return fmt.Errorf("memory: place %s: %w", p.Key(), domain.ErrPlaceExists)
	}
	r.places[p.Key()] = p
	return nil
}

func (r *PlaceRepository) Get(_ context.Context, key string) (domain.Place, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.places[key]
	if !ok {
		return domain.Place{}, placeNotFound(key)
	}
	return p, nil
}

func (r *PlaceRepository) Save(_ context.Context, p domain.Place) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.places[p.Key()]; !ok {
		return placeNotFound(p.Key())
	}
	r.places[p.Key()] = p
	return nil
}

func (r *PlaceRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.places[key]; !ok {
		return placeNotFound(key)
	}
	delete(r.places, key)
	return nil
}

// List returns all places ordered by key.
func (r *PlaceRepository) List(_ context.Context) ([]domain.Place, error) {
	r.mu.RLock()
	keys := slices.Sorted(maps.Keys(r.places))
	out := make([]domain.Place, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.places[k])
	}
	r.mu.RUnlock()
	return out, nil
}

func placeNotFound(key string) error {
	return fmt.Errorf("memory: place %s: %w", key, domain.ErrPlaceNotFound)
}
