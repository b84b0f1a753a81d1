package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

var (
	//go:embed sql/insert-place.sql
	insertPlaceSQL string

	//go:embed sql/get-place.sql
	getPlaceSQL string

	//go:embed sql/list-places.sql
	listPlacesSQL string

	//go:embed sql/update-place.sql
	updatePlaceSQL string

	//go:embed sql/delete-place.sql
	deletePlaceSQL string
)

// PlaceRepository implements domain.PlaceRepository.
type PlaceRepository struct {
	db *sqlx.DB
}

// NewPlaceRepository wraps an open, migrated database.
func NewPlaceRepository(db *sqlx.DB) *PlaceRepository {
	return &PlaceRepository{db: db}
}

type placeRow struct {
	Key        string          `db:"place_key"`
	Country    string          `db:"country"`
	PostalCode string          `db:"postal_code"`
	Lat        sql.NullFloat64 `db:"lat"`
	Lon        sql.NullFloat64 `db:"lon"`
	CreatedAt  string          `db:"created_at"`
	UpdatedAt  string          `db:"updated_at"`
}

func rowFromPlace(p domain.Place, now time.Time) placeRow {
	ts := now.UTC().Format(time.RFC3339Nano)
	row := placeRow{
		Key:        p.Key(),
		Country:    p.Country,
		PostalCode: p.PostalCode,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	if p.Located() {
		row.Lat = sql.NullFloat64{Float64: p.Coordinates.Lat, Valid: true}
		row.Lon = sql.NullFloat64{Float64: p.Coordinates.Lon, Valid: true}
	}
	return row
}

func (r placeRow) place() (domain.Place, error) {
	p, err := domain.NewPlace(r.PostalCode, r.Country)
	if err != nil {
		return domain.Place{}, fmt.Errorf("sqlite: place %s: %w", r.Key, err)
	}
	if r.Lat.Valid && r.Lon.Valid {
		p, err = p.WithCoordinates(domain.Coordinates{Lat: r.Lat.Float64, Lon: r.Lon.Float64})
		if err != nil {
			return domain.Place{}, fmt.Errorf("sqlite: place %s: %w", r.Key, err)
		}
	}
	return p, nil
}

// Create inserts p, wrapping domain.ErrPlaceExists when its key is taken.
func (r *PlaceRepository) Create(ctx context.Context, p domain.Place) error {
	res, err := r.db.NamedExecContext(ctx, insertPlaceSQL, rowFromPlace(p, time.Now()))
	if err != nil {
		return fmt.Errorf("sqlite: insert place: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: place %s: %w", p.Key(), domain.ErrPlaceExists)
	}
	return nil
}

func (r *PlaceRepository) Get(ctx context.Context, key string) (domain.Place, error) {
	var row placeRow
	if err := r.db.GetContext(ctx, &row, getPlaceSQL, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Place{}, fmt.Errorf("sqlite: place %s: %w", key, domain.ErrPlaceNotFound)
		}
		return domain.Place{}, fmt.Errorf("sqlite: get place: %w", err)
	}
	return row.place()
}

// Save overwrites the stored coordinates of an existing place.
func (r *PlaceRepository) Save(ctx context.Context, p domain.Place) error {
	res, err := r.db.NamedExecContext(ctx, updatePlaceSQL, rowFromPlace(p, time.Now()))
	if err != nil {
		return fmt.Errorf("sqlite: update place: %w", err)
	}
	return checkPlaceAffected(res, p.Key())
}

func (r *PlaceRepository) Delete(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, deletePlaceSQL, key)
	if err != nil {
		return fmt.Errorf("sqlite: delete place: %w", err)
	}
	return checkPlaceAffected(res, key)
}

// List returns all places ordered by key.
func (r *PlaceRepository) List(ctx context.Context) ([]domain.Place, error) {
	var rows []placeRow
	if err := r.db.SelectContext(ctx, &rows, listPlacesSQL); err != nil {
		return nil, fmt.Errorf("sqlite: list places: %w", err)
	}
	places := make([]domain.Place, 0, len(rows))
	for _, row := range rows {
		p, err := row.place()
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, nil
}

func checkPlaceAffected(res sql.Result, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: place %s: %w", key, domain.ErrPlaceNotFound)
	}
	return nil
}
