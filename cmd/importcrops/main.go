// Command importcrops loads crops from a CSV file into a crop store. Each row
// is name, absolute low, optimal low, optimal high, absolute high. Invalid rows
// are reported and skipped.
//
// Usage:
//
//	go run ./cmd/importcrops \
//	  -csv data/crops.csv \
//	  -scale F \
//	  -store sqlite -sqlite-path data/crops.db
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/crop-advisor-service/internal/config"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	"github.com/couchcryptid/crop-advisor-service/internal/observability"
	"github.com/couchcryptid/crop-advisor-service/internal/storage"
)

type options struct {
	csvPath string
	scale   string
	header  bool
	storage storage.Options
}

type summary struct {
	imported int
	failed   int
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger := observability.NewLogger(&config.Config{LogFormat: "text", LogLevel: "info"})
	sum, err := run(context.Background(), opts, logger)
	if err != nil {
		logger.Error("import failed", "error", err)
		os.Exit(1)
	}
	logger.Info("import complete", "imported", sum.imported, "failed", sum.failed)
	if sum.failed > 0 {
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("importcrops", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.csvPath, "csv", "", "path to the crop CSV file")
	fs.StringVar(&opts.scale, "scale", "F", "temperature scale of the CSV values (F or C)")
	fs.BoolVar(&opts.header, "header", false, "skip the first CSV row")
	fs.StringVar(&opts.storage.Kind, "store", config.StoreSQLite, "crop store: sqlite, postgres or memory")
	fs.StringVar(&opts.storage.SQLitePath, "sqlite-path", "data/crops.db", "SQLite database file")
	fs.StringVar(&opts.storage.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.csvPath == "" {
		fs.Usage()
		return options{}, errors.New("missing required flag: -csv")
	}
	return opts, nil
}

func run(ctx context.Context, opts options, logger *slog.Logger) (summary, error) {
	scale, err := domain.ParseScale(opts.scale)
	if err != nil {
		return summary{}, err
	}

	f, err := os.Open(opts.csvPath)
	if err != nil {
		return summary{}, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	store, err := storage.Open(ctx, opts.storage, logger)
	if err != nil {
		return summary{}, err
	}
	defer store.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var sum summary
	for line := 1; ; line++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("read csv: %w", err)
		}
		if line == 1 && opts.header {
			continue
		}

		rec, err := domain.ParseCropRecord(fields, scale)
		if err == nil {
			var crop domain.Crop
			if crop, err = store.Crops.Create(ctx, rec); err == nil {
				sum.imported++
				logger.Debug("crop imported", "line", line, "crop", crop.Name(), "crop_id", crop.ID().String())
				continue
			}
		}
		sum.failed++
		logger.Warn("skipping row", "line", line, "error", err)
	}
	return sum, nil
}
