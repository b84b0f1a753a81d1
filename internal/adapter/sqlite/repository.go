package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

var (
	//go:embed sql/insert-crop.sql
	insertCropSQL string

	//go:embed sql/get-crop.sql
	getCropSQL string

	//go:embed sql/list-crops.sql
	listCropsSQL string

	//go:embed sql/update-crop.sql
	updateCropSQL string

	//go:embed sql/delete-crop.sql
	deleteCropSQL string
)

// Repository implements domain.CropRepository.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open, migrated database.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type cropRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Scale     string `db:"scale"`
	AbsLow    int    `db:"abs_low"`
	AbsHigh   int    `db:"abs_high"`
	OptLow    int    `db:"opt_low"`
	OptHigh   int    `db:"opt_high"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func rowFromCrop(c domain.Crop, now time.Time) cropRow {
	req := c.TemperatureRequirement()
	ts := now.UTC().Format(time.RFC3339Nano)
	return cropRow{
		ID:        c.ID().String(),
		Name:      c.Name(),
		Scale:     req.Scale().Letter(),
		AbsLow:    req.Absolute().Low().Value(),
		AbsHigh:   req.Absolute().High().Value(),
		OptLow:    req.Optimal().Low().Value(),
		OptHigh:   req.Optimal().High().Value(),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func (r cropRow) crop() (domain.Crop, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.Crop{}, fmt.Errorf("sqlite: crop id %q: %w", r.ID, err)
	}
	scale, err := domain.ParseScale(r.Scale)
	if err != nil {
		return domain.Crop{}, fmt.Errorf("sqlite: crop %s: %w", r.ID, err)
	}
	rec := domain.CropRecord{
		Name:         r.Name,
		AbsoluteLow:  float64(r.AbsLow),
		OptimalLow:   float64(r.OptLow),
		OptimalHigh:  float64(r.OptHigh),
		AbsoluteHigh: float64(r.AbsHigh),
		Scale:        scale,
	}
	c, err := rec.Restore(id)
	if err != nil {
		return domain.Crop{}, fmt.Errorf("sqlite: crop %s: %w", r.ID, err)
	}
	return c, nil
}

// Create validates rec, assigns an ID and inserts the crop.
func (r *Repository) Create(ctx context.Context, rec domain.CropRecord) (domain.Crop, error) {
	c, err := rec.NewCrop()
	if err != nil {
		return domain.Crop{}, err
	}
	if _, err := r.db.NamedExecContext(ctx, insertCropSQL, rowFromCrop(c, time.Now())); err != nil {
		return domain.Crop{}, fmt.Errorf("sqlite: insert crop: %w", err)
	}
	return c, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (domain.Crop, error) {
	var row cropRow
	if err := r.db.GetContext(ctx, &row, getCropSQL, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Crop{}, fmt.Errorf("sqlite: crop %s: %w", id, domain.ErrCropNotFound)
		}
		return domain.Crop{}, fmt.Errorf("sqlite: get crop: %w", err)
	}
	return row.crop()
}

// Save overwrites the stored name and requirement of an existing crop.
func (r *Repository) Save(ctx context.Context, c domain.Crop) error {
	res, err := r.db.NamedExecContext(ctx, updateCropSQL, rowFromCrop(c, time.Now()))
	if err != nil {
		return fmt.Errorf("sqlite: update crop: %w", err)
	}
	return checkAffected(res, c.ID())
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, deleteCropSQL, id.String())
	if err != nil {
		return fmt.Errorf("sqlite: delete crop: %w", err)
	}
	return checkAffected(res, id)
}

// List returns all crops ordered by name.
func (r *Repository) List(ctx context.Context) ([]domain.Crop, error) {
	var rows []cropRow
	if err := r.db.SelectContext(ctx, &rows, listCropsSQL); err != nil {
		return nil, fmt.Errorf("sqlite: list crops: %w", err)
	}
	crops := make([]domain.Crop, 0, len(rows))
	for _, row := range rows {
		c, err := row.crop()
		if err != nil {
			return nil, err
		}
		crops = append(crops, c)
	}
	return crops, nil
}

func checkAffected(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: crop %s: %w", id, domain.ErrCropNotFound)
	}
	return nil
}
