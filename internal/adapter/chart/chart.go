// Package chart renders report figures as PNG files with gonum/plot.
package chart

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// Output file names written by Renderer.
const (
	ExceedanceFile = "ranked_exceedances.png"
	TrendFile      = "chosen_monthly_trend.png"
)

const daysInYear = 365

var errNoData = errors.New("nothing to plot")

type chartSpec struct {
	name  string
	build func() (*plot.Plot, error)
}

// Renderer draws the ranked-station exceedance chart, the chosen-city monthly
// trend chart and one monthly heatmap per city for a run. It implements pipeline.Loader; the count it
// returns is the number of PNG files written.
type Renderer struct {
	dir    string
	width  vg.Length
	height vg.Length
	logger *slog.Logger
}

// NewRenderer creates a Renderer writing into dir.
func NewRenderer(dir string, logger *slog.Logger) *Renderer {
	return &Renderer{dir: dir, width: 12 * vg.Inch, height: 7 * vg.Inch, logger: logger}
}

func (r *Renderer) Load(ctx context.Context, run *domain.Run) (int, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return 0, fmt.Errorf("create chart dir: %w", err)
	}

	charts := []chartSpec{
		{ExceedanceFile, func() (*plot.Plot, error) {
			return ExceedancePlot(run.Report.Exceedances, run.Report.Ranking)
		}},
		{TrendFile, func() (*plot.Plot, error) {
			threshold := domain.DefaultThreshold
			if run.Report.Exceedances != nil {
				threshold = run.Report.Exceedances.Threshold
			}
			return TrendPlot(run.Report.Chosen, threshold)
		}},
	}
	for _, city := range heatmapCities(run.Report.CityMonthly) {
		charts = append(charts, chartSpec{CityHeatmapFile(city), func() (*plot.Plot, error) {
			return HeatmapPlot(run.Report.CityMonthly, city)
		}})
	}

	written := 0
	for _, c := range charts {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		p, err := c.build()
		if errors.Is(err, errNoData) {
			r.logger.Info("chart skipped", "chart", c.name, "reason", err)
			continue
		}
		if err != nil {
			return written, fmt.Errorf("build %s: %w", c.name, err)
		}
		path := filepath.Join(r.dir, c.name)
		if err := p.Save(r.width, r.height, path); err != nil {
			return written, fmt.Errorf("save %s: %w", c.name, err)
		}
		written++
	}
	r.logger.Info("charts written", "dir", r.dir, "charts", written)
	return written, nil
}

// ExceedancePlot draws one group of bars per ranked station, one bar per year,
// with a dotted line at a full year of exceedance days. Years without data for
// a station are drawn as zero-height bars.
func ExceedancePlot(ex *domain.ExceedanceTable, rank domain.RankingResult) (*plot.Plot, error) {
	if ex == nil || rank.Empty() || len(ex.Years) == 0 {
		return nil, errNoData
	}
	stations := rankedStations(rank)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Days above %s µg/m³ (least and most exceeding stations in %d)",
		strconv.FormatFloat(ex.Threshold, 'f', -1, 64), rank.Year)
	p.X.Label.Text = "Station"
	p.Y.Label.Text = "Days exceeded"
	p.Legend.Top = true

	colors := palette(len(ex.Years))
	barWidth := vg.Points(12)
	for yi, year := range ex.Years {
		values := make(plotter.Values, len(stations))
		for si, key := range stations {
			if cell, ok := ex.Get(key, year); ok && cell.Valid() {
				values[si] = float64(cell.Exceeded)
			}
		}
		bars, err := plotter.NewBarChart(values, barWidth)
		if err != nil {
			return nil, err
		}
		bars.Color = colors[yi]
		bars.LineStyle.Width = vg.Points(0.5)
		bars.Offset = barWidth * vg.Length(2*yi-len(ex.Years)+1) / 2
		p.Add(bars)
		p.Legend.Add(strconv.Itoa(year), bars)
	}

	full := plotter.NewFunction(func(float64) float64 { return daysInYear })
	full.Color = color.RGBA{R: 200, A: 255}
	full.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	p.Add(full)
	p.Legend.Add("Full year", full)

	names := make([]string, len(stations))
	for i, key := range stations {
		names[i] = key.Station
	}
	p.NominalX(names...)
	p.Y.Min = 0
	return p, nil
}

// rankedStations returns the ranking's stations once each, least first.
func rankedStations(rank domain.RankingResult) []domain.ColumnKey {
	seen := make(map[domain.ColumnKey]struct{})
	var out []domain.ColumnKey
	for _, e := range rank.Entries() {
		if _, dup := seen[e.Station]; dup {
			continue
		}
		seen[e.Station] = struct{}{}
		out = append(out, e.Station)
	}
	return out
}

// TrendPlot draws one line per (city, year) over months 1..12 and a dashed
// horizontal line at threshold. Missing means break nothing; the month is
// simply left out of that line.
func TrendPlot(rows []domain.CityMonth, threshold float64) (*plot.Plot, error) {
	type series struct {
		city string
		year int
	}
	var order []series
	points := make(map[series]plotter.XYs)
	for _, row := range rows {
		s := series{city: row.City, year: row.Year}
		if _, ok := points[s]; !ok {
			order = append(order, s)
			points[s] = nil
		}
		if row.Mean.Valid {
			points[s] = append(points[s], plotter.XY{X: float64(row.Month), Y: row.Mean.Float})
		}
	}

	p := plot.New()
	p.Title.Text = "Monthly mean PM2.5"
	p.X.Label.Text = "Month"
	p.Y.Label.Text = "Mean PM2.5 [µg/m³]"
	p.X.Min, p.X.Max = 1, 12
	p.Legend.Top = true

	colors := palette(len(order))
	drawn := 0
	for i, s := range order {
		pts := points[s]
		if len(pts) == 0 {
			continue
		}
		line, scatter, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, err
		}
		line.Color = colors[i]
		line.Width = vg.Points(2)
		scatter.GlyphStyle.Color = colors[i]
		p.Add(line, scatter)
		p.Legend.Add(fmt.Sprintf("%s %d", s.city, s.year), line, scatter)
		drawn++
	}
	if drawn == 0 {
		return nil, errNoData
	}

	limit := plotter.NewFunction(func(float64) float64 { return threshold })
	limit.Color = color.Gray{Y: 128}
	limit.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(limit)
	p.Legend.Add(fmt.Sprintf("Daily limit (%s µg/m³)", strconv.FormatFloat(threshold, 'f', -1, 64)), limit)
	p.Add(plotter.NewGrid())
	return p, nil
}
