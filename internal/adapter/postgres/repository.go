// Package postgres stores crops and places in PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

const cropColumns = `id, name, scale, abs_low, abs_high, opt_low, opt_high`

// Repository implements domain.CropRepository.
type Repository struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for databaseURL and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// NewRepository creates a repository over pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the crops and places tables and indexes if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// Create validates rec, assigns an ID and inserts the crop.
func (r *Repository) Create(ctx context.Context, rec domain.CropRecord) (domain.Crop, error) {
	c, err := rec.NewCrop()
	if err != nil {
		return domain.Crop{}, err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO crops (`+cropColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		cropArgs(c)...,
	)
	if err != nil {
		return domain.Crop{}, fmt.Errorf("postgres: failed to insert crop: %w", err)
	}
	return c, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (domain.Crop, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+cropColumns+` FROM crops WHERE id = $1`, id)
	c, err := scanCrop(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Crop{}, fmt.Errorf("postgres: crop %s: %w", id, domain.ErrCropNotFound)
	}
	return c, err
}

// Save overwrites the stored name and requirement of an existing crop.
func (r *Repository) Save(ctx context.Context, c domain.Crop) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE crops
		SET name = $2, scale = $3, abs_low = $4, abs_high = $5, opt_low = $6, opt_high = $7,
		    updated_at = now()
		WHERE id = $1`,
		cropArgs(c)...,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to update crop: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: crop %s: %w", c.ID(), domain.ErrCropNotFound)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM crops WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete crop: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: crop %s: %w", id, domain.ErrCropNotFound)
	}
	return nil
}

// List returns all crops ordered by name.
func (r *Repository) List(ctx context.Context) ([]domain.Crop, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cropColumns+` FROM crops ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query crops: %w", err)
	}
	defer rows.Close()

	var crops []domain.Crop
	for rows.Next() {
		c, err := scanCrop(rows)
		if err != nil {
			return nil, err
		}
		crops = append(crops, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read crops: %w", err)
	}
	return crops, nil
}

func cropArgs(c domain.Crop) []any {
	req := c.TemperatureRequirement()
	return []any{
		c.ID(),
		c.Name(),
		req.Scale().Letter(),
		req.Absolute().Low().Value(),
		req.Absolute().High().Value(),
		req.Optimal().Low().Value(),
		req.Optimal().High().Value(),
	}
}

func scanCrop(row pgx.Row) (domain.Crop, error) {
	var (
		id                             uuid.UUID
		name, scaleLetter              string
		absLow, absHigh, optLow, optHi int
	)
	if err := row.Scan(&id, &name, &scaleLetter, &absLow, &absHigh, &optLow, &optHi); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Crop{}, err
		}
		return domain.Crop{}, fmt.Errorf("postgres: failed to scan crop: %w", err)
	}
	scale, err := domain.ParseScale(scaleLetter)
	if err != nil {
		return domain.Crop{}, fmt.Errorf("postgres: crop %s: %w", id, err)
	}
	c, err := domain.CropRecord{
		Name:         name,
		AbsoluteLow:  float64(absLow),
		OptimalLow:   float64(optLow),
		OptimalHigh:  float64(optHi),
		AbsoluteHigh: float64(absHigh),
		Scale:        scale,
	}.Restore(id)
	if err != nil {
		return domain.Crop{}, fmt.Errorf("postgres: crop %s: %w", id, err)
	}
	return c, nil
}
