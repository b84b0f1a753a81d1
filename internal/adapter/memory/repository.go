// Package memory keeps crops and places in process memory. It backs tests and
// CROP_STORE=memory deployments.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

// Repository implements domain.CropRepository over a map.
type Repository struct {
	mu    sync.RWMutex
	crops map[uuid.UUID]domain.Crop
}

// NewRepository creates a repository seeded with crops.
func NewRepository(crops ...domain.Crop) *Repository {
	r := &Repository{crops: make(map[uuid.UUID]domain.Crop, len(crops))}
	for _, c := range crops {
		r.crops[c.ID()] = c
	}
	return r
}

func (r *Repository) Create(_ context.Context, rec domain.CropRecord) (domain.Crop, error) {
	c, err := rec.NewCrop()
	if err != nil {
		return domain.Crop{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.crops[c.ID()] = c
	return c, nil
}

func (r *Repository) Get(_ context.Context, id uuid.UUID) (domain.Crop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.crops[id]
	if !ok {
		return domain.Crop{}, notFound(id)
	}
	return c, nil
}

func (r *Repository) Save(_ context.Context, c domain.Crop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.crops[c.ID()]; !ok {
		return notFound(c.ID())
	}
	r.crops[c.ID()] = c
	return nil
}

func (r *Repository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.crops[id]; !ok {
		return notFound(id)
	}
	delete(r.crops, id)
	return nil
}

// List returns all crops ordered by name, then ID.
func (r *Repository) List(_ context.Context) ([]domain.Crop, error) {
	r.mu.RLock()
	out := make([]domain.Crop, 0, len(r.crops))
	for _, c := range r.crops {
		out = append(out, c)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Crop) int {
		return cmp.Or(
			cmp.Compare(a.Name(), b.Name()),
			cmp.Compare(a.ID().String(), b.ID().String()),
		)
	})
	return out, nil
}

func notFound(id uuid.UUID) error {
	return fmt.Errorf("memory: crop %s: %w", id, domain.ErrCropNotFound)
}
