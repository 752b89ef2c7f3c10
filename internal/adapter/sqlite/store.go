// Package sqlite persists pipeline runs and their report tables in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// ErrRunNotFound means no run matches the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Store is a SQLite-backed report store. It implements pipeline.Loader.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path and applies migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load stores a run and every report row in one transaction and returns the
// number of report rows inserted.
func (s *Store) Load(ctx context.Context, run *domain.Run) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	n, err := insertRun(ctx, tx, run)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	s.logger.Info("run stored", "run_id", run.ID, "rows", n)
	return n, nil
}

func insertRun(ctx context.Context, tx *sql.Tx, run *domain.Run) (int, error) {
	rep := run.Report
	stations, rows := 0, 0
	if run.Merged != nil {
		stations, rows = len(run.Merged.Columns), run.Merged.Len()
	}
	threshold := domain.DefaultThreshold
	if rep.Exceedances != nil {
		threshold = rep.Exceedances.Threshold
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, generated_at, years, stations, row_count, threshold) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.GeneratedAt.UTC().Format(time.RFC3339), joinYears(run.Years), stations, rows, threshold,
	); err != nil {
		return 0, fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	total := 0
	inserts := []func(context.Context, *sql.Tx, string, domain.Report) (int, error){
		insertStationMonthly,
		insertCityMonthly,
		insertExceedances,
		insertRegions,
		insertRanking,
	}
	for _, insert := range inserts {
		n, err := insert(ctx, tx, run.ID, rep)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func insertStationMonthly(ctx context.Context, tx *sql.Tx, runID string, rep domain.Report) (int, error) {
	if rep.StationMonthly == nil {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO station_monthly_means (run_id, year, month, city, station, mean) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare station monthly: %w", err)
	}
	defer stmt.Close()

	n := 0
	rep.StationMonthly.Each(func(ym domain.YearMonth, key domain.ColumnKey, v domain.Value) {
		if err != nil {
			return
		}
		if _, err = stmt.ExecContext(ctx, runID, ym.Year, ym.Month, key.City, key.Station, nullFloat(v)); err == nil {
			n++
		}
	})
	if err != nil {
		return n, fmt.Errorf("insert station monthly: %w", err)
	}
	return n, nil
}

func insertCityMonthly(ctx context.Context, tx *sql.Tx, runID string, rep domain.Report) (int, error) {
	if rep.CityMonthly == nil {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO city_monthly_means (run_id, year, month, city, mean) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare city monthly: %w", err)
	}
	defer stmt.Close()

	n := 0
	rep.CityMonthly.Each(func(ym domain.YearMonth, key domain.ColumnKey, v domain.Value) {
		if err != nil {
			return
		}
		if _, err = stmt.ExecContext(ctx, runID, ym.Year, ym.Month, key.City, nullFloat(v)); err == nil {
			n++
		}
	})
	if err != nil {
		return n, fmt.Errorf("insert city monthly: %w", err)
	}
	return n, nil
}

func insertExceedances(ctx context.Context, tx *sql.Tx, runID string, rep domain.Report) (int, error) {
	if rep.Exceedances == nil {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO exceedances (run_id, city, station, year, exceeded, observed) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare exceedances: %w", err)
	}
	defer stmt.Close()

	n := 0
	rep.Exceedances.Each(func(key domain.ColumnKey, year int, c domain.Exceedance) {
		if err != nil {
			return
		}
		exceeded := sql.NullInt64{Int64: int64(c.Exceeded), Valid: c.Valid()}
		if _, err = stmt.ExecContext(ctx, runID, key.City, key.Station, year, exceeded, c.Observed); err == nil {
			n++
		}
	})
	if err != nil {
		return n, fmt.Errorf("insert exceedances: %w", err)
	}
	return n, nil
}

func insertRegions(ctx context.Context, tx *sql.Tx, runID string, rep domain.Report) (int, error) {
	if rep.Regions == nil {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO region_exceedances (run_id, region, year, exceeded) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare region exceedances: %w", err)
	}
	defer stmt.Close()

	n := 0
	rep.Regions.Each(func(region string, year int, c domain.Count) {
		if err != nil {
			return
		}
		if _, err = stmt.ExecContext(ctx, runID, region, year, sql.NullInt64{Int64: int64(c.N), Valid: c.Valid}); err == nil {
			n++
		}
	})
	if err != nil {
		return n, fmt.Errorf("insert region exceedances: %w", err)
	}
	return n, nil
}

func insertRanking(ctx context.Context, tx *sql.Tx, runID string, rep domain.Report) (int, error) {
	r := rep.Ranking
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rankings (run_id, year, bucket, position, city, station, exceeded) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare rankings: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, b := range []struct {
		name    string
		entries []domain.RankEntry
	}{{"least", r.Least}, {"most", r.Most}} {
		for i, e := range b.entries {
			if _, err := stmt.ExecContext(ctx, runID, r.Year, b.name, i+1, e.Station.City, e.Station.Station, e.Exceeded); err != nil {
				return n, fmt.Errorf("insert rankings: %w", err)
			}
			n++
		}
	}
	return n, nil
}

// RunSummary is one stored run.
type RunSummary struct {
	ID          string
	GeneratedAt time.Time
	Years       []int
	Stations    int
	Rows        int
	Threshold   float64
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, generated_at, years, stations, row_count, threshold FROM runs ORDER BY generated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var generated, years string
		if err := rows.Scan(&r.ID, &generated, &years, &r.Stations, &r.Rows, &r.Threshold); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.GeneratedAt, err = time.Parse(time.RFC3339, generated); err != nil {
			return nil, fmt.Errorf("parse run time %q: %w", generated, err)
		}
		if r.Years, err = splitYears(years); err != nil {
			return nil, fmt.Errorf("parse run years %q: %w", years, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Exceedances returns the stored station-year cells of a run ordered by
// station and year.
func (s *Store) Exceedances(ctx context.Context, runID string) ([]ExceedanceRow, error) {
	if err := s.checkRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT city, station, year, exceeded, observed FROM exceedances WHERE run_id = ? ORDER BY station, year`, runID)
	if err != nil {
		return nil, fmt.Errorf("query exceedances: %w", err)
	}
	defer rows.Close()

	var out []ExceedanceRow
	for rows.Next() {
		var r ExceedanceRow
		var exceeded sql.NullInt64
		if err := rows.Scan(&r.Station.City, &r.Station.Station, &r.Year, &exceeded, &r.Cell.Observed); err != nil {
			return nil, fmt.Errorf("scan exceedance: %w", err)
		}
		r.Cell.Exceeded = int(exceeded.Int64)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ExceedanceRow is one stored station-year cell.
type ExceedanceRow struct {
	Station domain.ColumnKey
	Year    int
	Cell    domain.Exceedance
}

func (s *Store) checkRun(ctx context.Context, runID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return err
}

func nullFloat(v domain.Value) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v.Float, Valid: v.Valid}
}

func joinYears(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y)
	}
	return strings.Join(parts, ",")
}

func splitYears(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		y, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, nil
}
