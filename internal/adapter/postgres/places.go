package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

const placeColumns = `place_key, country, postal_code, lat, lon`

// PlaceRepository implements domain.PlaceRepository. The places table is
// created by Repository.EnsureSchema.
type PlaceRepository struct {
	pool *pgxpool.Pool
}

// NewPlaceRepository creates a place repository over pool.
func NewPlaceRepository(pool *pgxpool.Pool) *PlaceRepository {
	return &PlaceRepository{pool: pool}
}

// Create inserts p, wrapping domain.ErrPlaceExists when its key is taken.
func (r *PlaceRepository) Create(ctx context.Context, p domain.Place) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO places (`+placeColumns+`) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (place_key) DO NOTHING`,
		placeArgs(p)...,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert place: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: place %s: %w", p.Key(), domain.ErrPlaceExists)
	}
	return nil
}

func (r *PlaceRepository) Get(ctx context.Context, key string) (domain.Place, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+placeColumns+` FROM places WHERE place_key = $1`, key)
	p, err := scanPlace(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Place{}, fmt.Errorf("postgres: place %s: %w", key, domain.ErrPlaceNotFound)
	}
	return p, err
}

// Save overwrites the stored coordinates of an existing place.
func (r *PlaceRepository) Save(ctx context.Context, p domain.Place) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE places
		SET lat = $4, lon = $5, updated_at = now()
		WHERE place_key = $1 AND country = $2 AND postal_code = $3`,
		placeArgs(p)...,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to update place: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: place %s: %w", p.Key(), domain.ErrPlaceNotFound)
	}
	return nil
}

func (r *PlaceRepository) Delete(ctx context.Context, key string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM places WHERE place_key = $1`, key)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete place: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: place %s: %w", key, domain.ErrPlaceNotFound)
	}
	return nil
}

// List returns all places ordered by key.
func (r *PlaceRepository) List(ctx context.Context) ([]domain.Place, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+placeColumns+` FROM places ORDER BY place_key`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query places: %w", err)
	}
	defer rows.Close()

	var places []domain.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read places: %w", err)
	}
	return places, nil
}

func placeArgs(p domain.Place) []any {
	var lat, lon *float64
	if p.Located() {
		lat, lon = &p.Coordinates.Lat, &p.Coordinates.Lon
	}
	return []any{p.Key(), p.Country, p.PostalCode, lat, lon}
}

func scanPlace(row pgx.Row) (domain.Place, error) {
	var (
		key, country, postal string
		lat, lon             *float64
	)
	if err := row.Scan(&key, &country, &postal, &lat, &lon); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Place{}, err
		}
		return domain.Place{}, fmt.Errorf("postgres: failed to scan place: %w", err)
	}
	p, err := domain.NewPlace(postal, country)
	if err != nil {
		return domain.Place{}, fmt.Errorf("postgres: place %s: %w", key, err)
	}
	if lat != nil && lon != nil {
		if p, err = p.WithCoordinates(domain.Coordinates{Lat: *lat, Lon: *lon}); err != nil {
			return domain.Place{}, fmt.Errorf("postgres: place %s: %w", key, err)
		}
	}
	return p, nil
}
