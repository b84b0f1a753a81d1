// Package storage opens the crop and place repositories selected by configuration.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/crop-advisor-service/internal/adapter/memory"
	"github.com/couchcryptid/crop-advisor-service/internal/adapter/postgres"
	"github.com/couchcryptid/crop-advisor-service/internal/adapter/sqlite"
	"github.com/couchcryptid/crop-advisor-service/internal/config"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

// Options select and locate a crop store.
type Options struct {
	Kind        string
	SQLitePath  string
	DatabaseURL string
}

// FromConfig extracts the storage options from service configuration.
func FromConfig(cfg *config.Config) Options {
	return Options{Kind: cfg.CropStore, SQLitePath: cfg.SQLitePath, DatabaseURL: cfg.DatabaseURL}
}

// Store holds the open crop and place repositories and the resources backing them.
type Store struct {
	Crops  domain.CropRepository
	Places domain.PlaceRepository
	close  func() error
}

// Close releases the underlying database, if any.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects to the selected store and brings its schema up to date.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	switch opts.Kind {
	case config.StoreMemory:
		logger.Info("crop store: memory")
		return &Store{Crops: memory.NewRepository(), Places: memory.NewPlaceRepository()}, nil

	case config.StoreSQLite:
		db, err := sqlite.Open(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		applied, err := sqlite.Migrate(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("crop store: sqlite", "path", opts.SQLitePath, "migrations_applied", len(applied))
		return &Store{
			Crops:  sqlite.NewRepository(db),
			Places: sqlite.NewPlaceRepository(db),
			close:  db.Close,
		}, nil

	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("crop store: postgres")
		return &Store{
			Crops:  repo,
			Places: postgres.NewPlaceRepository(pool),
			close:  func() error { pool.Close(); return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unknown crop store %q", opts.Kind)
	}
}

// SeedPlaces stores each configured place. A place already stored keeps its
// record but takes the configured coordinates when it has some. It returns
// the number of places created.
func SeedPlaces(ctx context.Context, repo domain.PlaceRepository, places []domain.Place) (int, error) {
	created := 0
	for _, p := range places {
		err := repo.Create(ctx, p)
		switch {
		case err == nil:
			created++
		case errors.Is(err, domain.ErrPlaceExists):
			if !p.Located() {
				continue
			}
			if err := repo.Save(ctx, p); err != nil {
				return created, fmt.Errorf("seed place %s: %w", p.Key(), err)
			}
		default:
			return created, fmt.Errorf("seed place %s: %w", p.Key(), err)
		}
	}
	return created, nil
}
