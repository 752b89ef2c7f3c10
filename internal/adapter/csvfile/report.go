package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// Output file names written by ReportWriter.
const (
	MergedFile           = "merged.csv"
	StationMonthlyFile   = "station_monthly_means.csv"
	CityMonthlyFile      = "city_monthly_means.csv"
	ChosenMonthlyFile    = "chosen_monthly_means.csv"
	ExceedancesFile      = "exceedances.csv"
	RegionExceedanceFile = "region_exceedances.csv"
	RankingFile          = "ranking.csv"
)

// ReportWriter persists the merged table and every report table of a run as
// CSV files in one directory. It implements pipeline.Loader.
type ReportWriter struct {
	dir    string
	logger *slog.Logger
}

// NewReportWriter creates a ReportWriter rooted at dir.
func NewReportWriter(dir string, logger *slog.Logger) *ReportWriter {
	return &ReportWriter{dir: dir, logger: logger}
}

// Load writes all files and returns the number of report rows written.
func (w *ReportWriter) Load(ctx context.Context, run *domain.Run) (int, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	if run.Merged != nil {
		if err := SaveTable(filepath.Join(w.dir, MergedFile), run.Merged); err != nil {
			return 0, err
		}
	}

	rep := run.Report
	files := []struct {
		name string
		rows [][]string
	}{
		{StationMonthlyFile, MonthlyRows(rep.StationMonthly, true)},
		{CityMonthlyFile, MonthlyRows(rep.CityMonthly, false)},
		{ChosenMonthlyFile, ChosenRows(rep.Chosen)},
		{ExceedancesFile, ExceedanceRows(rep.Exceedances)},
		{RegionExceedanceFile, RegionRows(rep.Regions)},
		{RankingFile, RankingRows(rep.Ranking)},
	}

	total := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if f.rows == nil {
			continue
		}
		path := filepath.Join(w.dir, f.name)
		if err := writeRows(path, f.rows); err != nil {
			return total, err
		}
		total += len(f.rows) - 1
		w.logger.Debug("report file written", "path", path, "rows", len(f.rows)-1)
	}
	w.logger.Info("reports written", "dir", w.dir, "run_id", run.ID, "rows", total)
	return total, nil
}

func writeRows(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// MonthlyRows renders monthly means in long form, header first. Nil input
// gives no rows.
func MonthlyRows(m *domain.MonthlyTable, withStation bool) [][]string {
	if m == nil {
		return nil
	}
	header := []string{"year", "month", "city", "mean"}
	if withStation {
		header = []string{"year", "month", "city", "station", "mean"}
	}
	rows := [][]string{header}
	m.Each(func(ym domain.YearMonth, key domain.ColumnKey, v domain.Value) {
		row := []string{strconv.Itoa(ym.Year), strconv.Itoa(ym.Month), key.City}
		if withStation {
			row = append(row, key.Station)
		}
		rows = append(rows, append(row, domain.FormatValue(v)))
	})
	return rows
}

// ChosenRows renders the chosen-subset means, header first.
func ChosenRows(chosen []domain.CityMonth) [][]string {
	if chosen == nil {
		return nil
	}
	rows := [][]string{{"year", "month", "city", "mean"}}
	for _, c := range chosen {
		rows = append(rows, []string{strconv.Itoa(c.Year), strconv.Itoa(c.Month), c.City, domain.FormatValue(c.Mean)})
	}
	return rows
}

// ExceedanceRows renders one row per station-year; exceeded is empty when the
// station had no daily mean that year.
func ExceedanceRows(ex *domain.ExceedanceTable) [][]string {
	if ex == nil {
		return nil
	}
	rows := [][]string{{"city", "station", "year", "exceeded", "observed"}}
	ex.Each(func(key domain.ColumnKey, year int, c domain.Exceedance) {
		exceeded := ""
		if c.Valid() {
			exceeded = strconv.Itoa(c.Exceeded)
		}
		rows = append(rows, []string{key.City, key.Station, strconv.Itoa(year), exceeded, strconv.Itoa(c.Observed)})
	})
	return rows
}

func RegionRows(r *domain.RegionExceedanceTable) [][]string {
	if r == nil {
		return nil
	}
	rows := [][]string{{"region", "year", "exceeded"}}
	r.Each(func(region string, year int, n domain.Count) {
		v := ""
		if n.Valid {
			v = strconv.Itoa(n.N)
		}
		rows = append(rows, []string{region, strconv.Itoa(year), v})
	})
	return rows
}

// RankingRows renders the least bucket then the most bucket.
func RankingRows(r domain.RankingResult) [][]string {
	if r.Empty() {
		return nil
	}
	rows := [][]string{{"year", "bucket", "position", "city", "station", "exceeded", "observed"}}
	add := func(bucket string, entries []domain.RankEntry) {
		for i, e := range entries {
			rows = append(rows, []string{
				strconv.Itoa(r.Year), bucket, strconv.Itoa(i + 1),
				e.Station.City, e.Station.Station,
				strconv.Itoa(e.Exceeded), strconv.Itoa(e.Observed),
			})
		}
	}
	add("least", r.Least)
	add("most", r.Most)
	return rows
}
