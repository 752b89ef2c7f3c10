package domain

import (
	"sort"
	"time"
)

// DefaultThreshold is the WHO 24-hour PM2.5 guideline in µg/m³.
const DefaultThreshold = 15.0

// DailyTable holds calendar-day means per station. Days is contiguous from the
// first to the last observed day; Values[col][day] is Missing for a day with
// no reading.
type DailyTable struct {
	Days    []time.Time
	Columns []ColumnKey
	Values  [][]Value
}

// DailyMeans resamples every station to one mean per calendar day. Rows with a
// missing timestamp are ignored.
func DailyMeans(t *Table) *DailyTable {
	out := &DailyTable{Columns: append([]ColumnKey(nil), t.Columns...)}

	var first, last time.Time
	found := false
	for _, ts := range t.Times {
		if !ts.Valid {
			continue
		}
		d := dayOf(ts.Time)
		if !found || d.Before(first) {
			first = d
		}
		if !found || d.After(last) {
			last = d
		}
		found = true
	}
	out.Values = make([][]Value, len(t.Columns))
	if !found {
		return out
	}

	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out.Days = append(out.Days, d)
	}
	dayIndex := make([]int, t.Len())
	for r, ts := range t.Times {
		dayIndex[r] = -1
		if ts.Valid {
			dayIndex[r] = daysBetween(first, dayOf(ts.Time))
		}
	}

	sums := make([]float64, len(out.Days))
	counts := make([]int, len(out.Days))
	for ci, col := range t.Cells {
		for i := range sums {
			sums[i], counts[i] = 0, 0
		}
		for r, v := range col {
			if !v.Valid || dayIndex[r] < 0 {
				continue
			}
			sums[dayIndex[r]] += v.Float
			counts[dayIndex[r]]++
		}
		vals := make([]Value, len(out.Days))
		for i := range vals {
			if counts[i] > 0 {
				vals[i] = Some(sums[i] / float64(counts[i]))
			}
		}
		out.Values[ci] = vals
	}
	return out
}

// daysBetween counts calendar days from a to b, both at midnight. Computed from
// dates rather than durations so DST-aware locations cannot skew it.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// Exceedance is one station-year cell: days whose daily mean exceeded the
// threshold, out of days that had a daily mean at all.
type Exceedance struct {
	Exceeded int
	Observed int
}

// Valid reports whether the station had any daily mean that year.
func (e Exceedance) Valid() bool { return e.Observed > 0 }

// ExceedanceTable is stations × years. Cells[station][year].
type ExceedanceTable struct {
	Threshold float64
	Stations  []ColumnKey
	Years     []int
	Cells     [][]Exceedance
}

// YearIndex returns the column of year, or -1.
func (e *ExceedanceTable) YearIndex(year int) int {
	for i, y := range e.Years {
		if y == year {
			return i
		}
	}
	return -1
}

// Get returns the cell for a station and year.
func (e *ExceedanceTable) Get(key ColumnKey, year int) (Exceedance, bool) {
	yi := e.YearIndex(year)
	if yi < 0 {
		return Exceedance{}, false
	}
	for si, k := range e.Stations {
		if k == key {
			return e.Cells[si][yi], true
		}
	}
	return Exceedance{}, false
}

// Each calls fn for every station-year cell, stations in table order and
// years ascending.
func (e *ExceedanceTable) Each(fn func(key ColumnKey, year int, cell Exceedance)) {
	for si, key := range e.Stations {
		for yi, y := range e.Years {
			fn(key, y, e.Cells[si][yi])
		}
	}
}

// CountExceedances counts, per station and year, the calendar days whose mean
// is strictly greater than threshold. Years are those with at least one
// timestamped row in t.
func CountExceedances(t *Table, threshold float64) *ExceedanceTable {
	daily := DailyMeans(t)
	out := &ExceedanceTable{
		Threshold: threshold,
		Stations:  daily.Columns,
		Years:     observedYears(t),
		Cells:     make([][]Exceedance, len(daily.Columns)),
	}
	yearIdx := make(map[int]int, len(out.Years))
	for i, y := range out.Years {
		yearIdx[y] = i
	}

	for si, vals := range daily.Values {
		cells := make([]Exceedance, len(out.Years))
		for di, v := range vals {
			if !v.Valid {
				continue
			}
			yi, ok := yearIdx[daily.Days[di].Year()]
			if !ok {
				continue
			}
			cells[yi].Observed++
			if v.Float > threshold {
				cells[yi].Exceeded++
			}
		}
		out.Cells[si] = cells
	}
	return out
}

func observedYears(t *Table) []int {
	seen := make(map[int]struct{})
	var years []int
	for r := range t.Times {
		y, ok := t.Year(r)
		if !ok {
			continue
		}
		if _, dup := seen[y]; dup {
			continue
		}
		seen[y] = struct{}{}
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// RegionLookup maps a canonical station code to its region label.
type RegionLookup interface {
	Region(code string) string
}

// RegionMap is a RegionLookup over a plain map; absent codes map to UnknownLabel.
type RegionMap map[string]string

// Region implements RegionLookup.
func (m RegionMap) Region(code string) string {
	if r, ok := m[code]; ok && r != "" {
		return r
	}
	return UnknownLabel
}

// Count is an integer aggregate that may be missing.
type Count struct {
	N     int
	Valid bool
}

// RegionExceedanceTable is regions × years of summed station exceedance days.
type RegionExceedanceTable struct {
	Regions []string
	Years   []int
	Counts  [][]Count
}

// Get returns the count for a region and year.
func (r *RegionExceedanceTable) Get(region string, year int) (Count, bool) {
	for ri, name := range r.Regions {
		if name != region {
			continue
		}
		for yi, y := range r.Years {
			if y == year {
				return r.Counts[ri][yi], true
			}
		}
	}
	return Count{}, false
}

// Each calls fn for every region-year count.
func (r *RegionExceedanceTable) Each(fn func(region string, year int, n Count)) {
	for ri, name := range r.Regions {
		for yi, y := range r.Years {
			fn(name, y, r.Counts[ri][yi])
		}
	}
}

// RegionExceedances sums station exceedance days per region and year. A
// region-year with no station observation is Missing. Regions are ordered by
// first appearance in ex.
func RegionExceedances(ex *ExceedanceTable, regions RegionLookup) *RegionExceedanceTable {
	out := &RegionExceedanceTable{Years: append([]int(nil), ex.Years...)}
	index := make(map[string]int)
	for si, key := range ex.Stations {
		region := regions.Region(key.Station)
		ri, ok := index[region]
		if !ok {
			ri = len(out.Regions)
			index[region] = ri
			out.Regions = append(out.Regions, region)
			out.Counts = append(out.Counts, make([]Count, len(ex.Years)))
		}
		for yi, cell := range ex.Cells[si] {
			if !cell.Valid() {
				continue
			}
			out.Counts[ri][yi].N += cell.Exceeded
			out.Counts[ri][yi].Valid = true
		}
	}
	return out
}
