package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyRawTable means a raw table has no header or no timestamp column.
var ErrEmptyRawTable = errors.New("raw table has no columns")

// ColumnKey is the two-level (city, station) identifier of a measurement column.
type ColumnKey struct {
	City    string
	Station string
}

func (k ColumnKey) String() string {
	return k.City + "/" + k.Station
}

// RawTable is one decoded yearly sheet. Header[0] names the timestamp column and
// Header[1:] the station codes; each row has the same layout.
type RawTable struct {
	Year   int
	Header []string
	Rows   [][]string
}

// preambleLabels are first-column values of GIOŚ sheet rows that describe the
// columns instead of holding readings.
var preambleLabels = map[string]struct{}{
	"nr":               {},
	"kod stacji":       {},
	"wskaźnik":         {},
	"czas uśredniania": {},
	"jednostka":        {},
	"kod stanowiska":   {},
}

// IsPreambleRow reports whether a row's first cell is a sheet preamble label.
func IsPreambleRow(first string) bool {
	_, ok := preambleLabels[strings.ToLower(strings.TrimSpace(first))]
	return ok
}

// NewRawTable builds a RawTable from decoded sheet records, taking the header
// from records[headerRow]. Rows above the header are discarded.
func NewRawTable(year int, records [][]string, headerRow int) (RawTable, error) {
	if headerRow < 0 || headerRow >= len(records) {
		return RawTable{}, fmt.Errorf("header row %d out of range (%d records): %w", headerRow, len(records), ErrEmptyRawTable)
	}
	header := records[headerRow]
	if len(header) == 0 {
		return RawTable{}, ErrEmptyRawTable
	}
	return RawTable{
		Year:   year,
		Header: header,
		Rows:   records[headerRow+1:],
	}, nil
}

// Table is a normalized measurement table: one timestamp per row and one
// labeled column of values per station. Cells is column-major: Cells[c][r].
type Table struct {
	Times   []Timestamp
	Columns []ColumnKey
	Cells   [][]Value
}

// NewTable allocates an empty table with the given rows and columns.
func NewTable(times []Timestamp, columns []ColumnKey) *Table {
	cells := make([][]Value, len(columns))
	for i := range cells {
		cells[i] = make([]Value, len(times))
	}
	return &Table{Times: times, Columns: columns, Cells: cells}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Times) }

// Year returns the calendar year of a row; ok is false for a missing timestamp.
func (t *Table) Year(row int) (int, bool) {
	ts := t.Times[row]
	if !ts.Valid {
		return 0, false
	}
	return ts.Time.Year(), true
}

// Month returns the calendar month (1-12) of a row; ok is false for a missing
// timestamp.
func (t *Table) Month(row int) (int, bool) {
	ts := t.Times[row]
	if !ts.Valid {
		return 0, false
	}
	return int(ts.Time.Month()), true
}

// ColumnIndex returns the position of key, or -1.
func (t *Table) ColumnIndex(key ColumnKey) int {
	for i, k := range t.Columns {
		if k == key {
			return i
		}
	}
	return -1
}

// Column returns the values of key and whether it exists.
func (t *Table) Column(key ColumnKey) ([]Value, bool) {
	i := t.ColumnIndex(key)
	if i < 0 {
		return nil, false
	}
	return t.Cells[i], true
}

// Cities returns the distinct city labels in column order of first appearance.
func (t *Table) Cities() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, k := range t.Columns {
		if _, ok := seen[k.City]; ok {
			continue
		}
		seen[k.City] = struct{}{}
		out = append(out, k.City)
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		Times:   append([]Timestamp(nil), t.Times...),
		Columns: append([]ColumnKey(nil), t.Columns...),
		Cells:   make([][]Value, len(t.Cells)),
	}
	for i, col := range t.Cells {
		out.Cells[i] = append([]Value(nil), col...)
	}
	return out
}

// MissingCount returns the number of missing cells.
func (t *Table) MissingCount() int {
	n := 0
	for _, col := range t.Cells {
		for _, v := range col {
			if !v.Valid {
				n++
			}
		}
	}
	return n
}
