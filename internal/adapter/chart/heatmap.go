package chart

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gonum.org/v1/plot"
	plotpalette "gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// CityHeatmapPattern names the per-city heatmap files; see CityHeatmapFile.
const CityHeatmapPattern = "city_heatmap_%s.png"

// Colour scale of every city heatmap in µg/m³, shared so cities compare.
const (
	heatmapMin = 5
	heatmapMax = 75
)

// CityHeatmapFile returns the heatmap file name for a city. Characters other
// than letters and digits become underscores.
func CityHeatmapFile(city string) string {
	safe := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, city)
	return fmt.Sprintf(CityHeatmapPattern, safe)
}

// cityGrid is a year x month grid of one city's monthly means. Missing
// means are NaN.
type cityGrid struct {
	years  []int
	values [][]float64 // [year][month-1]
}

func (g *cityGrid) Dims() (c, r int) { return 12, len(g.years) }
func (g *cityGrid) Z(c, r int) float64 { return g.values[r][c] }
func (g *cityGrid) X(c int) float64 { return float64(c + 1) }
func (g *cityGrid) Y(r int) float64 { return float64(r) }

// heatmapCities returns the cities of a city monthly table in column order.
func heatmapCities(m *domain.MonthlyTable) []string {
	if m == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, key := range m.Columns {
		if _, dup := seen[key.City]; dup {
			continue
		}
		seen[key.City] = struct{}{}
		out = append(out, key.City)
	}
	return out
}

// newCityGrid collects the city's means by year and month. It reports false
// when the city has no valid mean at all.
func newCityGrid(m *domain.MonthlyTable, city string) (*cityGrid, bool) {
	g := &cityGrid{}
	rowOf := make(map[int]int)
	valid := false
	m.Each(func(ym domain.YearMonth, key domain.ColumnKey, v domain.Value) {
		if key.City != city || ym.Month < 1 || ym.Month > 12 {
			return
		}
		row, ok := rowOf[ym.Year]
		if !ok {
			row = len(g.years)
			rowOf[ym.Year] = row
			g.years = append(g.years, ym.Year)
			cells := make([]float64, 12)
			for i := range cells {
				cells[i] = math.NaN()
			}
			g.values = append(g.values, cells)
		}
		if v.Valid {
			g.values[row][ym.Month-1] = v.Float
			valid = true
		}
	})
	return g, valid
}

// HeatmapPlot draws one city's monthly means as a year x month heatmap with
// each cell labelled by its mean. Means outside the shared colour scale take
// its end colours; months without a mean are left grey and unlabelled.
func HeatmapPlot(m *domain.MonthlyTable, city string) (*plot.Plot, error) {
	if m == nil {
		return nil, errNoData
	}
	g, ok := newCityGrid(m, city)
	if !ok {
		return nil, errNoData
	}

	pal := plotpalette.Heat(12, 1)
	colors := pal.Colors()
	h := plotter.NewHeatMap(g, pal)
	h.Min, h.Max = heatmapMin, heatmapMax
	h.Underflow, h.Overflow = colors[0], colors[len(colors)-1]
	h.NaN = color.Gray{Y: 220}

	var xys plotter.XYs
	var labels []string
	for r, row := range g.values {
		for c, v := range row {
			if math.IsNaN(v) {
				continue
			}
			xys = append(xys, plotter.XY{X: g.X(c), Y: g.Y(r)})
			labels = append(labels, strconv.FormatFloat(v, 'f', 1, 64))
		}
	}
	values, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Monthly mean PM2.5 in %s [µg/m³]", city)
	p.X.Label.Text = "Month"
	p.Y.Label.Text = "Year"
	p.Add(h, values)

	months := make([]plot.Tick, 12)
	for i := range months {
		months[i] = plot.Tick{Value: float64(i + 1), Label: time.Month(i + 1).String()[:3]}
	}
	years := make([]plot.Tick, len(g.years))
	for i, y := range g.years {
		years[i] = plot.Tick{Value: float64(i), Label: strconv.Itoa(y)}
	}
	p.X.Tick.Marker = plot.ConstantTicks(months)
	p.Y.Tick.Marker = plot.ConstantTicks(years)
	p.X.Min, p.X.Max = 0.5, 12.5
	p.Y.Min, p.Y.Max = -0.5, float64(len(g.years))-0.5
	return p, nil
}
