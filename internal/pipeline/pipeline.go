package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
)

// Extractor reads the station metadata and every yearly raw sheet.
type Extractor interface {
	Extract(ctx context.Context) (domain.Dataset, error)
}

// Transformer turns a raw dataset into a merged table and its report.
type Transformer interface {
	Transform(ctx context.Context, ds domain.Dataset) (*domain.Run, error)
}

// Loader persists or publishes a completed run and returns the number of rows
// or messages it wrote.
type Loader interface {
	Load(ctx context.Context, run *domain.Run) (int, error)
}

// Sink is a named Loader; the name labels logs and metrics.
type Sink struct {
	Name   string
	Loader Loader
}

// Pipeline runs extract, transform and load once per Run call.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	sinks       []Sink
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	last        atomic.Pointer[domain.Run]

	attempts       int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// Option tunes a Pipeline.
type Option func(*Pipeline)

// WithRetry sets how many times a failing sink is attempted and the first
// backoff between attempts. The backoff doubles up to five seconds.
func WithRetry(attempts int, initial time.Duration) Option {
	return func(p *Pipeline) {
		p.attempts = max(attempts, 1)
		p.initialBackoff = initial
	}
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, t Transformer, sinks []Sink, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:      e,
		transformer:    t,
		sinks:          sinks,
		logger:         logger,
		metrics:        metrics,
		attempts:       3,
		initialBackoff: 200 * time.Millisecond,
		maxBackoff:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a run has completed with every sink loaded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastRun returns the most recent successful run, or nil.
func (p *Pipeline) LastRun() *domain.Run {
	return p.last.Load()
}

// Run executes one extract-transform-load pass. Every sink is attempted even
// when an earlier one fails; the returned error joins the sink failures.
func (p *Pipeline) Run(ctx context.Context) (*domain.Run, error) {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	run, err := p.run(ctx)
	if err != nil {
		p.metrics.Runs.WithLabelValues("error").Inc()
		return run, err
	}
	p.metrics.Runs.WithLabelValues("success").Inc()
	p.last.Store(run)
	p.ready.Store(true)
	return run, nil
}

func (p *Pipeline) run(ctx context.Context) (*domain.Run, error) {
	p.logger.Info("pipeline started", "sinks", len(p.sinks))

	start := time.Now()
	ds, err := p.extractor.Extract(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	p.observeStage("extract", start)
	p.logger.Info("dataset extracted", "stations", len(ds.Stations), "years", len(ds.Years))

	start = time.Now()
	run, err := p.transformer.Transform(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	p.observeStage("transform", start)
	p.recordRun(run)

	start = time.Now()
	var errs []error
	for _, sink := range p.sinks {
		n, err := p.load(ctx, sink, run)
		if err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", sink.Name, err))
			continue
		}
		p.metrics.ReportRowsWritten.WithLabelValues(sink.Name).Add(float64(n))
		p.logger.Info("sink loaded", "sink", sink.Name, "rows", n, "run_id", run.ID)
	}
	p.observeStage("load", start)
	if err := errors.Join(errs...); err != nil {
		return run, err
	}

	p.logger.Info("pipeline finished", "run_id", run.ID, "stations", run.Merge.Stations, "rows", run.Merge.Rows)
	return run, nil
}

// load calls the sink's loader, retrying with exponential backoff.
func (p *Pipeline) load(ctx context.Context, sink Sink, run *domain.Run) (int, error) {
	backoff := p.initialBackoff
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		var n int
		n, err = sink.Loader.Load(ctx, run)
		if err == nil {
			return n, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		p.logger.Warn("sink load failed", "sink", sink.Name, "attempt", attempt, "error", err)
		if attempt == p.attempts {
			break
		}
		if !sleepWithContext(ctx, backoff) {
			return 0, ctx.Err()
		}
		backoff = nextBackoff(backoff, p.maxBackoff)
	}
	return 0, err
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// recordRun logs and counts the lenient conversions of every yearly table and
// the columns the merge dropped.
func (p *Pipeline) recordRun(run *domain.Run) {
	for _, rep := range run.Normalize {
		year := strconv.Itoa(rep.Year)
		p.metrics.RowsIngested.WithLabelValues(year).Add(float64(rep.Rows))
		p.metrics.CellsMissing.WithLabelValues(year).Add(float64(rep.MissingCells))
		p.metrics.InvalidCells.WithLabelValues(year).Add(float64(rep.InvalidCells))
		p.metrics.TimestampsUnparsed.WithLabelValues(year).Add(float64(rep.UnparsedTimes))
		p.metrics.UnmappedStations.WithLabelValues(year).Add(float64(len(rep.Unmapped)))

		p.logger.Info("year normalized",
			"year", rep.Year,
			"rows", rep.Rows,
			"preamble_rows", rep.PreambleRows,
			"renamed_columns", rep.RenamedColumns,
			"missing_cells", rep.MissingCells,
		)
		if len(rep.Unmapped) > 0 {
			p.logger.Warn("unmapped stations", "year", rep.Year, "stations", rep.Unmapped)
		}
		if rep.UnparsedTimes > 0 {
			p.logger.Warn("timestamps unparsed", "year", rep.Year, "count", rep.UnparsedTimes)
		}
		if rep.InvalidCells > 0 {
			p.logger.Warn("invalid cells", "year", rep.Year, "count", rep.InvalidCells)
		}
		if len(rep.Collisions) > 0 {
			p.logger.Warn("station columns coalesced", "year", rep.Year, "stations", rep.Collisions)
		}
	}

	p.metrics.MergedStations.Set(float64(run.Merge.Stations))
	p.metrics.ColumnsDropped.Add(float64(run.Merge.DroppedCount()))
	for i, dropped := range run.Merge.Dropped {
		if len(dropped) == 0 || i >= len(run.Years) {
			continue
		}
		p.logger.Warn("columns dropped by merge", "year", run.Years[i], "count", len(dropped))
	}
	if run.Merge.BelowThreshold {
		p.logger.Warn("merged station set below minimum", "stations", run.Merge.Stations)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
