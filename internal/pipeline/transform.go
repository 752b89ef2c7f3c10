package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// TransformOptions configures AirQualityTransformer.
type TransformOptions struct {
	// TimestampFormat picks the timestamp family of a vintage. Nil means
	// domain.FormatFlexible for every year.
	TimestampFormat func(year int) domain.TimestampFormat
	Merge           domain.MergeOptions
	Report          domain.ReportOptions
}

// AirQualityTransformer implements Transformer: it resolves station identities,
// normalizes every yearly sheet, merges them on their common stations and
// builds the report.
type AirQualityTransformer struct {
	opts   TransformOptions
	logger *slog.Logger
}

// NewTransformer creates an AirQualityTransformer.
func NewTransformer(opts TransformOptions, logger *slog.Logger) *AirQualityTransformer {
	return &AirQualityTransformer{opts: opts, logger: logger}
}

func (t *AirQualityTransformer) Transform(ctx context.Context, ds domain.Dataset) (*domain.Run, error) {
	resolver, err := domain.NewResolver(ds.Stations)
	if err != nil {
		return nil, fmt.Errorf("resolve stations: %w", err)
	}

	years := append([]domain.RawTable(nil), ds.Years...)
	sort.SliceStable(years, func(i, j int) bool { return years[i].Year < years[j].Year })

	run := &domain.Run{
		ID:          uuid.NewString(),
		GeneratedAt: clock.Now().UTC(),
	}
	tables := make([]*domain.Table, 0, len(years))
	for _, raw := range years {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tbl, rep, err := domain.Normalize(raw, t.format(raw.Year), resolver)
		if err != nil {
			return nil, fmt.Errorf("normalize %d: %w", raw.Year, err)
		}
		tables = append(tables, tbl)
		run.Years = append(run.Years, raw.Year)
		run.Normalize = append(run.Normalize, rep)
	}

	merged, mrep, err := domain.Merge(tables, t.opts.Merge)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	run.Merged = merged
	run.Merge = mrep

	var regions domain.RegionLookup
	if resolver.HasRegions() {
		regions = resolver
	} else {
		t.logger.Info("metadata has no regions, skipping regional counts")
	}
	run.Report = domain.BuildReport(merged, regions, t.opts.Report)
	return run, nil
}

func (t *AirQualityTransformer) format(year int) domain.TimestampFormat {
	if t.opts.TimestampFormat == nil {
		return domain.FormatFlexible
	}
	return t.opts.TimestampFormat(year)
}
