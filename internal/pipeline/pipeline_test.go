package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
	"github.com/couchcryptid/air-quality-etl/internal/mockdata"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
	"github.com/couchcryptid/air-quality-etl/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	ds  domain.Dataset
	err error
}

func (m *mockExtractor) Extract(_ context.Context) (domain.Dataset, error) {
	return m.ds, m.err
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, ds domain.Dataset) (*domain.Run, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Run{ID: "run-1", Years: []int{ds.Years[0].Year}}, nil
}

type mockLoader struct {
	failures int // calls that fail before the loader starts succeeding
	rows     int
	calls    atomic.Int64
	loaded   []*domain.Run
}

func (m *mockLoader) Load(_ context.Context, run *domain.Run) (int, error) {
	if int(m.calls.Add(1)) <= m.failures {
		return 0, errors.New("sink unavailable")
	}
	m.loaded = append(m.loaded, run)
	return m.rows, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testDataset(t *testing.T, years ...int) domain.Dataset {
	t.Helper()
	opts := mockdata.DefaultOptions()
	opts.Days = 3

	ds := domain.Dataset{Stations: mockdata.DomainStations(mockdata.DefaultStations)}
	for _, year := range years {
		raw, err := domain.NewRawTable(year, mockdata.YearRecords(year, mockdata.DefaultStations, opts), 0)
		require.NoError(t, err)
		ds.Years = append(ds.Years, raw)
	}
	return ds
}

func testTransformer() *pipeline.AirQualityTransformer {
	return pipeline.NewTransformer(pipeline.TransformOptions{
		TimestampFormat: func(year int) domain.TimestampFormat {
			if year == 2015 {
				return domain.FormatLegacy
			}
			return domain.FormatFlexible
		},
		Merge: domain.MergeOptions{MinStations: 1, Policy: domain.PolicyFail},
		Report: domain.ReportOptions{
			Threshold:    15,
			RankK:        2,
			ChosenYears:  []int{2015, 2024},
			ChosenCities: []string{"Warszawa", "Katowice"},
		},
	}, discardLogger())
}

func fastRetry() pipeline.Option {
	return pipeline.WithRetry(3, time.Millisecond)
}

// --- pipeline ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	csv := &mockLoader{rows: 10}
	db := &mockLoader{rows: 4}
	metrics := newTestMetrics()

	p := pipeline.New(&mockExtractor{ds: testDataset(t, 2015, 2024)}, testTransformer(),
		[]pipeline.Sink{{Name: "csv", Loader: csv}, {Name: "sqlite", Loader: db}},
		discardLogger(), metrics, fastRetry())

	require.Error(t, p.CheckReadiness(context.Background()))
	assert.Nil(t, p.LastRun())

	run, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)

	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.Same(t, run, p.LastRun())
	require.Len(t, csv.loaded, 1)
	assert.Same(t, run, csv.loaded[0])
	require.Len(t, db.loaded, 1)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("success")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(metrics.MergedStations), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ColumnsDropped), 0)
	assert.InDelta(t, 72, testutil.ToFloat64(metrics.RowsIngested.WithLabelValues("2015")), 0)
	assert.InDelta(t, 10, testutil.ToFloat64(metrics.ReportRowsWritten.WithLabelValues("csv")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.ReportRowsWritten.WithLabelValues("sqlite")), 0)
}

func TestPipeline_Run_ExtractError(t *testing.T) {
	metrics := newTestMetrics()
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{err: errors.New("metadata missing")}, &mockTransformer{},
		[]pipeline.Sink{{Name: "csv", Loader: ldr}}, discardLogger(), metrics, fastRetry())

	run, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, run)
	assert.Contains(t, err.Error(), "extract")
	assert.Empty(t, ldr.loaded)
	require.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("error")), 0)
}

func TestPipeline_Run_TransformError(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{ds: testDataset(t, 2024)}, &mockTransformer{err: domain.ErrNoCommonStations},
		[]pipeline.Sink{{Name: "csv", Loader: ldr}}, discardLogger(), newTestMetrics(), fastRetry())

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrNoCommonStations)
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_RetriesFailingSink(t *testing.T) {
	ldr := &mockLoader{failures: 2, rows: 3}
	p := pipeline.New(&mockExtractor{ds: testDataset(t, 2024)}, &mockTransformer{},
		[]pipeline.Sink{{Name: "kafka", Loader: ldr}}, discardLogger(), newTestMetrics(), fastRetry())

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), ldr.calls.Load())
	assert.Len(t, ldr.loaded, 1)
}

func TestPipeline_Run_SinkExhaustsRetries(t *testing.T) {
	broken := &mockLoader{failures: 100}
	healthy := &mockLoader{rows: 1}
	metrics := newTestMetrics()
	p := pipeline.New(&mockExtractor{ds: testDataset(t, 2024)}, &mockTransformer{},
		[]pipeline.Sink{{Name: "kafka", Loader: broken}, {Name: "csv", Loader: healthy}},
		discardLogger(), metrics, fastRetry())

	run, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load kafka")
	assert.Contains(t, err.Error(), "sink unavailable")
	require.NotNil(t, run)

	assert.Equal(t, int64(3), broken.calls.Load())
	assert.Len(t, healthy.loaded, 1)
	assert.Nil(t, p.LastRun())
	require.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("error")), 0)
}

func TestPipeline_Run_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ldr := &mockLoader{failures: 100}
	p := pipeline.New(&mockExtractor{ds: testDataset(t, 2024)}, &mockTransformer{},
		[]pipeline.Sink{{Name: "kafka", Loader: ldr}}, discardLogger(), newTestMetrics(),
		pipeline.WithRetry(5, time.Hour))

	go func() {
		for ldr.calls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), ldr.calls.Load())
}

// --- transformer ---

func TestAirQualityTransformer_Transform(t *testing.T) {
	frozen := time.Date(2026, time.April, 26, 15, 10, 0, 0, time.UTC)
	pipeline.SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { pipeline.SetClock(nil) })

	run, err := testTransformer().Transform(context.Background(), testDataset(t, 2024, 2015))
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, frozen, run.GeneratedAt)
	assert.Equal(t, []int{2015, 2024}, run.Years)

	wantColumns := []domain.ColumnKey{
		{City: "Warszawa", Station: "MzWarAlNiepo"},
		{City: "Warszawa", Station: "MzWarKondrat"},
		{City: "Kraków", Station: "MpKrakAlKras"},
		{City: "Katowice", Station: "SlKatoKossut"},
		{City: "Gdańsk", Station: "PmGdaLeczkow"},
	}
	if diff := cmp.Diff(wantColumns, run.Merged.Columns); diff != "" {
		t.Errorf("merged columns mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 144, run.Merged.Len())
	assert.Equal(t, 144, run.Merge.Rows)
	assert.Equal(t, 1, run.Merge.DroppedCount())

	require.Len(t, run.Normalize, 2)
	assert.Equal(t, 2015, run.Normalize[0].Year)
	assert.Equal(t, 2, run.Normalize[0].PreambleRows)
	assert.Equal(t, 2, run.Normalize[0].RenamedColumns)
	assert.Zero(t, run.Normalize[0].UnparsedTimes)
	assert.Zero(t, run.Normalize[0].InvalidCells)
	assert.Empty(t, run.Normalize[1].Unmapped)

	// The last reading of 2015 day three is stamped at midnight and belongs to 3 January.
	last, ok := run.Merged.Year(71)
	require.True(t, ok)
	assert.Equal(t, 2015, last)
	assert.Equal(t, 3, run.Merged.Times[71].Time.Day())

	rep := run.Report
	assert.Equal(t, []int{2015, 2024}, rep.Exceedances.Years)
	assert.Len(t, rep.Exceedances.Stations, 5)
	require.NotNil(t, rep.Regions)
	assert.Equal(t, 2024, rep.Ranking.Year)
	assert.Len(t, rep.Ranking.Least, 2)
	assert.Len(t, rep.Ranking.Most, 2)
	assert.Len(t, rep.Chosen, 4) // two cities, January of two years
}

func TestAirQualityTransformer_NoRegions(t *testing.T) {
	ds := testDataset(t, 2024)
	for i := range ds.Stations {
		ds.Stations[i].Region = ""
	}

	run, err := testTransformer().Transform(context.Background(), ds)
	require.NoError(t, err)
	assert.Nil(t, run.Report.Regions)
}

func TestAirQualityTransformer_IntegrityError(t *testing.T) {
	ds := testDataset(t, 2024)
	ds.Stations[1].LegacyCodes = ds.Stations[0].LegacyCodes

	_, err := testTransformer().Transform(context.Background(), ds)
	require.ErrorIs(t, err, domain.ErrLegacyCodeConflict)
}

func TestAirQualityTransformer_TooFewStations(t *testing.T) {
	tr := pipeline.NewTransformer(pipeline.TransformOptions{
		Merge: domain.MergeOptions{MinStations: 50, Policy: domain.PolicyFail},
	}, discardLogger())

	_, err := tr.Transform(context.Background(), testDataset(t, 2024))
	require.ErrorIs(t, err, domain.ErrTooFewStations)
}

func TestAirQualityTransformer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testTransformer().Transform(ctx, testDataset(t, 2024))
	require.ErrorIs(t, err, context.Canceled)
}
