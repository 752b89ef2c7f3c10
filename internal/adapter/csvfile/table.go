package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// Reserved single-level columns of a persisted merged table.
const (
	ColumnTime  = "Data"
	ColumnYear  = "Rok"
	ColumnMonth = "Miesiąc"
)

var reservedColumns = map[string]struct{}{
	ColumnTime:  {},
	ColumnYear:  {},
	ColumnMonth: {},
}

// ErrTableHeader means a persisted table does not have the two-row header.
var ErrTableHeader = errors.New("invalid table header")

// WriteTable writes t with a two-row header: city labels (or the reserved
// column names) and station codes. Missing values are empty strings.
func WriteTable(w io.Writer, t *domain.Table) error {
	cw := csv.NewWriter(w)

	top := []string{ColumnTime, ColumnYear, ColumnMonth}
	bottom := []string{"", "", ""}
	for _, k := range t.Columns {
		top = append(top, k.City)
		bottom = append(bottom, k.Station)
	}
	if err := cw.Write(top); err != nil {
		return err
	}
	if err := cw.Write(bottom); err != nil {
		return err
	}

	rec := make([]string, len(top))
	for r := range t.Times {
		rec[0] = domain.FormatTimestamp(t.Times[r])
		rec[1], rec[2] = "", ""
		if y, ok := t.Year(r); ok {
			rec[1] = strconv.Itoa(y)
		}
		if m, ok := t.Month(r); ok {
			rec[2] = strconv.Itoa(m)
		}
		for c := range t.Columns {
			rec[3+c] = domain.FormatValue(t.Cells[c][r])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable reads a table written by WriteTable or by a pandas two-level
// header export. Second-row cells starting with "Unnamed" count as empty.
// Year and month columns are ignored; they derive from the timestamp.
func ReadTable(r io.Reader) (*domain.Table, error) {
	cr, err := newReader(r)
	if err != nil {
		return nil, err
	}
	top, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	bottom, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(bottom) != len(top) {
		return nil, fmt.Errorf("header rows have %d and %d cells: %w", len(top), len(bottom), ErrTableHeader)
	}

	timeCol := -1
	var cols []int
	var keys []domain.ColumnKey
	for i := range top {
		city := strings.TrimSpace(top[i])
		station := strings.TrimSpace(bottom[i])
		if strings.HasPrefix(station, "Unnamed") {
			station = ""
		}
		if station == "" {
			if _, ok := reservedColumns[city]; !ok {
				return nil, fmt.Errorf("column %d %q has no station code: %w", i, city, ErrTableHeader)
			}
			if city == ColumnTime {
				timeCol = i
			}
			continue
		}
		cols = append(cols, i)
		keys = append(keys, domain.ColumnKey{City: city, Station: station})
	}
	if timeCol < 0 {
		return nil, fmt.Errorf("no %s column: %w", ColumnTime, ErrTableHeader)
	}

	var times []domain.Timestamp
	var rows [][]domain.Value
	line := 2
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if isBlank(rec) {
			continue
		}
		times = append(times, domain.ParseTimestamp(cell(rec, timeCol), domain.FormatFlexible))
		vals := make([]domain.Value, len(cols))
		for j, c := range cols {
			v, ok := domain.ParseValue(cell(rec, c))
			if !ok {
				return nil, fmt.Errorf("line %d, column %s: invalid value %q", line, keys[j], cell(rec, c))
			}
			vals[j] = v
		}
		rows = append(rows, vals)
	}

	t := domain.NewTable(times, keys)
	for r, vals := range rows {
		for c, v := range vals {
			t.Cells[c][r] = v
		}
	}
	return t, nil
}

func cell(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return rec[i]
}

// SaveTable writes t to path, creating parent directories.
func SaveTable(path string, t *domain.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteTable(f, t); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// LoadTable reads a persisted table from path.
func LoadTable(path string) (*domain.Table, error) {
	var t *domain.Table
	err := readFile(path, func(r io.Reader) error {
		var err error
		t, err = ReadTable(r)
		return err
	})
	return t, err
}
