// Command validate checks a persisted merged PM2.5 table: its shape, its
// normalized timestamps and readings, its labels against station metadata, and
// the exceedance report written alongside it.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -merged out/merged.csv \
//	  -metadata data/Metadane_oczyszczone.csv \
//	  -exceedances out/exceedances.csv -threshold 15
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/couchcryptid/air-quality-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxReported caps the errors printed per phase.
const maxReported = 20

func main() {
	merged := flag.String("merged", "", "path to the merged table CSV")
	metadata := flag.String("metadata", "", "optional station metadata CSV")
	exceedances := flag.String("exceedances", "", "optional exceedances CSV to recompute")
	threshold := flag.Float64("threshold", domain.DefaultThreshold, "daily mean threshold for -exceedances")
	flag.Parse()

	if *merged == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*merged, *metadata, *exceedances, *threshold); code != 0 {
		os.Exit(code)
	}
}

func run(mergedPath, metadataPath, exceedancesPath string, threshold float64) int {
	fmt.Println("=== PM2.5 Merged Table Validation ===")
	fmt.Println()

	t, err := csvfile.LoadTable(mergedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load merged table: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateShape(t),
		validateTimestamps(t),
		validateValues(t),
	}

	if metadataPath != "" {
		stations, err := csvfile.ReadMetadata(metadataPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load metadata: %v\n", err)
			return 1
		}
		phases = append(phases, validateLabels(t, stations))
	}
	if exceedancesPath != "" {
		rows, err := loadCSV(exceedancesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load exceedances: %v\n", err)
			return 1
		}
		phases = append(phases, validateExceedances(t, rows, threshold))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Table: %d rows, %d stations, %d cities, %d missing cells\n",
		t.Len(), len(t.Columns), len(t.Cities()), t.MissingCount())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxReported {
				fmt.Printf("  ... %d more\n", len(p.errors)-maxReported)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validateShape checks that the table has stations, that every column key is
// labeled and unique, and that every column has one cell per row.
func validateShape(t *domain.Table) *phase {
	p := &phase{name: "Table shape"}
	if len(t.Columns) == 0 {
		p.errorf("no station columns")
	}
	if t.Len() == 0 {
		p.errorf("no rows")
	}
	seen := make(map[domain.ColumnKey]int, len(t.Columns))
	for i, key := range t.Columns {
		if key.Station == "" || key.City == "" {
			p.errorf("column %d: unlabeled key %q", i, key)
		}
		if prev, dup := seen[key]; dup {
			p.errorf("column %d: duplicate of column %d (%s)", i, prev, key)
		}
		seen[key] = i
		if len(t.Cells[i]) != t.Len() {
			p.errorf("column %s: %d cells for %d rows", key, len(t.Cells[i]), t.Len())
		}
	}
	return p
}

// validateTimestamps checks that no reading is stamped at midnight and that
// rows are in time order.
func validateTimestamps(t *domain.Table) *phase {
	p := &phase{name: "Timestamps normalized and ordered"}
	var prev domain.Timestamp
	for r, ts := range t.Times {
		if !ts.Valid {
			continue
		}
		if ts != domain.CorrectMidnight(ts) {
			p.errorf("row %d: %s is an uncorrected midnight", r, domain.FormatTimestamp(ts))
		}
		if prev.Valid && ts.Time.Before(prev.Time) {
			p.errorf("row %d: %s before %s", r, domain.FormatTimestamp(ts), domain.FormatTimestamp(prev))
		}
		prev = ts
	}
	return p
}

// validateValues checks that readings are not negative.
func validateValues(t *domain.Table) *phase {
	p := &phase{name: "Readings non-negative"}
	for c, key := range t.Columns {
		for r, v := range t.Cells[c] {
			if v.Valid && v.Float < 0 {
				p.errorf("%s row %d: negative reading %s", key, r, domain.FormatValue(v))
			}
		}
	}
	return p
}

// validateLabels checks every column against the metadata: the station must be
// a canonical code and carry the city the metadata assigns to it.
func validateLabels(t *domain.Table, stations []domain.Station) *phase {
	p := &phase{name: "Labels match metadata"}
	r, err := domain.NewResolver(stations)
	if err != nil {
		p.errorf("metadata integrity: %v", err)
		return p
	}
	for _, key := range t.Columns {
		if canonical := r.Canonical(key.Station); canonical != key.Station {
			p.errorf("%s: legacy code, canonical is %s", key, canonical)
			continue
		}
		if !r.Known(key.Station) {
			if key.City != domain.UnknownLabel {
				p.errorf("%s: station not in metadata but labeled %q", key, key.City)
			}
			continue
		}
		if city := r.City(key.Station); city != key.City {
			p.errorf("%s: metadata city is %q", key, city)
		}
	}
	return p
}

// validateExceedances recomputes exceedance counts from the table and compares
// them with a persisted exceedances CSV.
func validateExceedances(t *domain.Table, rows []map[string]string, threshold float64) *phase {
	p := &phase{name: "Exceedance report matches table"}
	ex := domain.CountExceedances(t, threshold)

	want := 0
	ex.Each(func(domain.ColumnKey, int, domain.Exceedance) { want++ })
	if len(rows) != want {
		p.errorf("report has %d rows, table gives %d", len(rows), want)
	}

	for i, row := range rows {
		key := domain.ColumnKey{City: row["city"], Station: row["station"]}
		year, err := strconv.Atoi(row["year"])
		if err != nil {
			p.errorf("line %d: invalid year %q", i+2, row["year"])
			continue
		}
		cell, ok := ex.Get(key, year)
		if !ok {
			p.errorf("line %d: %s %d not in table", i+2, key, year)
			continue
		}
		got := ""
		if cell.Valid() {
			got = strconv.Itoa(cell.Exceeded)
		}
		if row["exceeded"] != got {
			p.errorf("line %d: %s %d exceeded %q, table gives %q", i+2, key, year, row["exceeded"], got)
		}
		if row["observed"] != strconv.Itoa(cell.Observed) {
			p.errorf("line %d: %s %d observed %q, table gives %d", i+2, key, year, row["observed"], cell.Observed)
		}
	}
	return p
}

// loadCSV reads a headed CSV into one map per data row.
func loadCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) < 1 {
		return nil, fmt.Errorf("no header in %s", path)
	}

	header := all[0]
	rows := make([]map[string]string, 0, len(all)-1)
	for _, rec := range all[1:] {
		row := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(rec) {
				row[h] = rec[j]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
