package domain

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// YearMonth is a monthly grouping key.
type YearMonth struct {
	Year  int
	Month int
}

func (ym YearMonth) less(o YearMonth) bool {
	if ym.Year != o.Year {
		return ym.Year < o.Year
	}
	return ym.Month < o.Month
}

// MonthlyTable holds one mean per (year, month) group and column. Rows are
// ordered by year then month; Values[row][col] is Missing when the group had
// no reading for that column.
type MonthlyTable struct {
	Months  []YearMonth
	Columns []ColumnKey
	Values  [][]Value
}

// Get returns the mean for a month and column.
func (m *MonthlyTable) Get(ym YearMonth, key ColumnKey) (Value, bool) {
	col := -1
	for i, k := range m.Columns {
		if k == key {
			col = i
			break
		}
	}
	if col < 0 {
		return Missing, false
	}
	for i, x := range m.Months {
		if x == ym {
			return m.Values[i][col], true
		}
	}
	return Missing, false
}

// Each calls fn for every cell, months in order and columns in table order.
func (m *MonthlyTable) Each(fn func(ym YearMonth, key ColumnKey, v Value)) {
	for i, ym := range m.Months {
		for c, key := range m.Columns {
			fn(ym, key, m.Values[i][c])
		}
	}
}

// CityMonth is one row of the chosen-subset monthly means.
type CityMonth struct {
	Year  int
	Month int
	City  string
	Mean  Value
}

// meanOf averages the valid values; no valid value yields Missing.
func meanOf(vals []Value) Value {
	xs := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v.Valid {
			xs = append(xs, v.Float)
		}
	}
	if len(xs) == 0 {
		return Missing
	}
	return Some(stat.Mean(xs, nil))
}

// monthGroups maps each timestamped row to its (year, month) group. Rows with
// a missing timestamp are left out. Groups are returned in ascending order.
func monthGroups(t *Table) ([]YearMonth, [][]int) {
	index := make(map[YearMonth]int)
	var keys []YearMonth
	var rows [][]int
	for r := range t.Times {
		y, ok := t.Year(r)
		if !ok {
			continue
		}
		m, _ := t.Month(r)
		ym := YearMonth{Year: y, Month: m}
		i, seen := index[ym]
		if !seen {
			i = len(keys)
			index[ym] = i
			keys = append(keys, ym)
			rows = append(rows, nil)
		}
		rows[i] = append(rows[i], r)
	}

	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return keys[order[a]].less(keys[order[b]]) })
	sortedKeys := make([]YearMonth, len(keys))
	sortedRows := make([][]int, len(keys))
	for i, o := range order {
		sortedKeys[i] = keys[o]
		sortedRows[i] = rows[o]
	}
	return sortedKeys, sortedRows
}

func monthlyMeans(columns []ColumnKey, cells [][]Value, months []YearMonth, groups [][]int) *MonthlyTable {
	out := &MonthlyTable{
		Months:  months,
		Columns: columns,
		Values:  make([][]Value, len(months)),
	}
	buf := make([]Value, 0)
	for gi, rows := range groups {
		out.Values[gi] = make([]Value, len(columns))
		for ci, col := range cells {
			buf = buf[:0]
			for _, r := range rows {
				buf = append(buf, col[r])
			}
			out.Values[gi][ci] = meanOf(buf)
		}
	}
	return out
}

// StationMonthlyMeans averages every station column per (year, month).
func StationMonthlyMeans(t *Table) *MonthlyTable {
	months, groups := monthGroups(t)
	return monthlyMeans(append([]ColumnKey(nil), t.Columns...), t.Cells, months, groups)
}

// cityRowMeans averages, per row, the stations of each city. The result has
// one column per city in order of first appearance.
func cityRowMeans(t *Table, keep func(city string) bool) ([]string, [][]Value) {
	var cities []string
	members := make(map[string][]int)
	for ci, k := range t.Columns {
		if keep != nil && !keep(k.City) {
			continue
		}
		if _, ok := members[k.City]; !ok {
			cities = append(cities, k.City)
		}
		members[k.City] = append(members[k.City], ci)
	}

	out := make([][]Value, len(cities))
	row := make([]Value, 0)
	for i, city := range cities {
		out[i] = make([]Value, t.Len())
		for r := 0; r < t.Len(); r++ {
			row = row[:0]
			for _, ci := range members[city] {
				row = append(row, t.Cells[ci][r])
			}
			out[i][r] = meanOf(row)
		}
	}
	return cities, out
}

// CityMonthlyMeans averages each city's stations per row, then averages those
// city values per (year, month). Columns carry the city with an empty Station.
func CityMonthlyMeans(t *Table) *MonthlyTable {
	cities, cells := cityRowMeans(t, nil)
	keys := make([]ColumnKey, len(cities))
	for i, c := range cities {
		keys[i] = ColumnKey{City: c}
	}
	months, groups := monthGroups(t)
	return monthlyMeans(keys, cells, months, groups)
}

// ChosenMonthlyMeans restricts the table to rows in years and columns in
// cities, then applies the two-stage city averaging of CityMonthlyMeans. The
// result is long form, ordered by year, month and city order in the table.
// Groups with no reading at all are kept with a Missing mean.
func ChosenMonthlyMeans(t *Table, years []int, cities []string) []CityMonth {
	yearSet := make(map[int]struct{}, len(years))
	for _, y := range years {
		yearSet[y] = struct{}{}
	}
	citySet := make(map[string]struct{}, len(cities))
	for _, c := range cities {
		citySet[c] = struct{}{}
	}

	names, cells := cityRowMeans(t, func(city string) bool {
		_, ok := citySet[city]
		return ok
	})
	if len(names) == 0 {
		return nil
	}

	months, groups := monthGroups(t)
	var out []CityMonth
	buf := make([]Value, 0)
	for gi, ym := range months {
		if _, ok := yearSet[ym.Year]; !ok {
			continue
		}
		for ci, city := range names {
			buf = buf[:0]
			for _, r := range groups[gi] {
				buf = append(buf, cells[ci][r])
			}
			out = append(out, CityMonth{Year: ym.Year, Month: ym.Month, City: city, Mean: meanOf(buf)})
		}
	}
	return out
}
