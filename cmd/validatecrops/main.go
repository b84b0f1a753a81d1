// Command validatecrops checks a crop CSV before it is imported: every row
// must parse, each optimal band must sit inside its absolute band, and names
// must be unique once normalized. Given sample weather it also prints the
// recommendation each crop would receive.
//
// Usage:
//
//	go run ./cmd/validatecrops \
//	  -csv data/crops.csv -header \
//	  -forecast-high 79 -forecast-low 41 -historic 70 -confidence low
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

type options struct {
	csvPath      string
	scale        string
	header       bool
	place        string
	forecastHigh string
	forecastLow  string
	historic     string
	confidence   string
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	skipped bool
	errors  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// row is a CSV line that parsed into a crop record.
type row struct {
	line int
	rec  domain.CropRecord
}

func main() {
	var opts options
	flag.StringVar(&opts.csvPath, "csv", "", "path to the crop CSV file")
	flag.StringVar(&opts.scale, "scale", "F", "temperature scale of the CSV values (F or C)")
	flag.BoolVar(&opts.header, "header", false, "skip the first CSV row")
	flag.StringVar(&opts.place, "place", "US:00000", "place for the sample recommendation (COUNTRY:POSTAL)")
	flag.StringVar(&opts.forecastHigh, "forecast-high", "", "sample forecast high")
	flag.StringVar(&opts.forecastLow, "forecast-low", "", "sample forecast low")
	flag.StringVar(&opts.historic, "historic", "", "sample historic average")
	flag.StringVar(&opts.confidence, "confidence", "high", "confidence for the sample recommendation")
	flag.Parse()

	if opts.csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}
	if code := run(opts, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(opts options, out io.Writer) int {
	scale, err := domain.ParseScale(opts.scale)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	lines, err := loadCSV(opts.csvPath, opts.header)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load crop CSV: %v\n", err)
		return 1
	}

	fmt.Fprintln(out, "=== Crop Data Validation ===")
	fmt.Fprintln(out)

	parse, rows := validateParse(lines, scale)
	containment, crops := validateContainment(rows)
	phases := []*phase{
		parse,
		containment,
		validateUniqueNames(rows),
		validateSample(opts, scale, crops, out),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.skipped:
			status = "SKIP"
		case !p.passed():
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-32s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Rows: %d read, %d parsed, %d valid crops\n", len(lines), len(rows), len(crops))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// csvLine is a raw CSV record with its 1-based line number.
type csvLine struct {
	num    int
	fields []string
}

func loadCSV(path string, header bool) ([]csvLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	start := 0
	if header {
		start = 1
	}
	if len(all) <= start {
		return nil, fmt.Errorf("no data rows in %s", path)
	}
	lines := make([]csvLine, 0, len(all)-start)
	for i := start; i < len(all); i++ {
		lines = append(lines, csvLine{num: i + 1, fields: all[i]})
	}
	return lines, nil
}

// ── Phases ──

func validateParse(lines []csvLine, scale domain.Scale) (*phase, []row) {
	p := &phase{name: "Row parsing"}
	rows := make([]row, 0, len(lines))
	for _, l := range lines {
		rec, err := domain.ParseCropRecord(l.fields, scale)
		if err != nil {
			p.errorf("line %d: %v", l.num, err)
			continue
		}
		rows = append(rows, row{line: l.num, rec: rec})
	}
	return p, rows
}

func validateContainment(rows []row) (*phase, []domain.Crop) {
	p := &phase{name: "Requirement containment"}
	crops := make([]domain.Crop, 0, len(rows))
	for _, r := range rows {
		crop, err := r.rec.NewCrop()
		if err != nil {
			p.errorf("line %d: %v", r.line, err)
			continue
		}
		crops = append(crops, crop)
	}
	return p, crops
}

func validateUniqueNames(rows []row) *phase {
	p := &phase{name: "Unique crop names"}
	seen := make(map[string]int, len(rows))
	for _, r := range rows {
		key := strings.ToLower(strings.Join(strings.Fields(r.rec.Name), " "))
		if key == "" {
			continue
		}
		if first, dup := seen[key]; dup {
			p.errorf("line %d: %q duplicates line %d", r.line, r.rec.Name, first)
			continue
		}
		seen[key] = r.line
	}
	return p
}

func validateSample(opts options, scale domain.Scale, crops []domain.Crop, out io.Writer) *phase {
	p := &phase{name: "Sample recommendation"}
	if opts.forecastHigh == "" && opts.forecastLow == "" && opts.historic == "" {
		p.skipped = true
		return p
	}

	w, err := sampleWeather(opts, scale)
	if err != nil {
		p.errorf("sample weather: %v", err)
		return p
	}
	conf, err := domain.ParseConfidence(opts.confidence)
	if err != nil {
		p.errorf("confidence: %v", err)
		return p
	}

	batch := domain.NewRecommender().RecommendAll(crops, w, conf)
	fmt.Fprintf(out, "Sample recommendations at %s (confidence %s):\n", w.Place().Key(), conf)
	for _, rec := range batch.Recommendations {
		verdict := "no"
		if rec.Recommended {
			verdict = "yes"
		}
		fmt.Fprintf(out, "  %-24s %-4s margin %s\n", rec.Crop.Name(), verdict, rec.Margin)
	}
	for _, f := range batch.Failures {
		p.errorf("%s: %v", f.Crop.Name(), f.Err)
	}
	return p
}

func sampleWeather(opts options, scale domain.Scale) (domain.Weather, error) {
	place, err := domain.ParsePlace(opts.place)
	if err != nil {
		return domain.Weather{}, err
	}

	var w domain.Weather
	if opts.forecastHigh != "" || opts.forecastLow != "" {
		high, err := domain.ParseTemperature(opts.forecastHigh, scale)
		if err != nil {
			return domain.Weather{}, fmt.Errorf("forecast high: %w", err)
		}
		low, err := domain.ParseTemperature(opts.forecastLow, scale)
		if err != nil {
			return domain.Weather{}, fmt.Errorf("forecast low: %w", err)
		}
		fc, err := domain.NewForecast(place, high, low)
		if err != nil {
			return domain.Weather{}, err
		}
		w.Forecast = &fc
	}
	if opts.historic != "" {
		avg, err := domain.ParseTemperature(opts.historic, scale)
		if err != nil {
			return domain.Weather{}, fmt.Errorf("historic: %w", err)
		}
		hist, err := domain.NewHistoric(place, avg)
		if err != nil {
			return domain.Weather{}, err
		}
		w.Historic = &hist
	}
	return w, nil
}
