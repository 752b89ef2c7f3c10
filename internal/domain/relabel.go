package domain

import "strings"

// NormalizeReport summarizes lenient conversions made while normalizing one
// yearly table. Nothing in it is fatal; the pipeline logs and counts it.
type NormalizeReport struct {
	Year           int
	Rows           int
	PreambleRows   int
	UnparsedTimes  int
	InvalidCells   int
	MissingCells   int
	Unmapped       []string // canonical codes without metadata, labeled UnknownLabel
	Collisions     []string // canonical codes fed by more than one raw column
	BlankHeaders   int
	RenamedColumns int
}

// RenameColumns rewrites legacy station codes to canonical ones. Identifiers
// that are not legacy codes, including the timestamp column name, pass through.
func RenameColumns(header []string, r *Resolver) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = r.Canonical(strings.TrimSpace(h))
	}
	return out
}

// Label attaches the (city, station) key to a canonical code.
func Label(code string, r *Resolver) ColumnKey {
	return ColumnKey{City: r.City(code), Station: code}
}

// Normalize turns one raw yearly sheet into a labeled table: preamble rows are
// dropped, station codes renamed and labeled, timestamps parsed with format and
// midnight-corrected, and cells converted to values.
func Normalize(raw RawTable, format TimestampFormat, r *Resolver) (*Table, NormalizeReport, error) {
	rep := NormalizeReport{Year: raw.Year}
	if len(raw.Header) == 0 {
		return nil, rep, ErrEmptyRawTable
	}

	renamed := RenameColumns(raw.Header, r)
	// Output column for each raw column; -1 for skipped ones.
	target := make([]int, len(raw.Header))
	target[0] = -1
	var keys []ColumnKey
	byCode := make(map[string]int)
	var codes []string
	for i := 1; i < len(renamed); i++ {
		code := renamed[i]
		if code == "" {
			target[i] = -1
			rep.BlankHeaders++
			continue
		}
		if code != strings.TrimSpace(raw.Header[i]) {
			rep.RenamedColumns++
		}
		if idx, dup := byCode[code]; dup {
			target[i] = idx
			rep.Collisions = append(rep.Collisions, code)
			continue
		}
		byCode[code] = len(keys)
		target[i] = len(keys)
		keys = append(keys, Label(code, r))
		codes = append(codes, code)
	}
	rep.Unmapped = r.Unmapped(codes)

	rows := make([][]string, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		if len(row) == 0 {
			continue
		}
		if IsPreambleRow(row[0]) {
			rep.PreambleRows++
			continue
		}
		rows = append(rows, row)
	}
	rep.Rows = len(rows)

	stamps := make([]string, len(rows))
	for i, row := range rows {
		stamps[i] = row[0]
	}
	times, unparsed := NormalizeTimes(stamps, format)
	rep.UnparsedTimes = unparsed

	t := NewTable(times, keys)
	for ri, row := range rows {
		for ci := 1; ci < len(raw.Header); ci++ {
			col := target[ci]
			if col < 0 || ci >= len(row) {
				continue
			}
			v, ok := ParseValue(row[ci])
			if !ok {
				rep.InvalidCells++
			}
			// First-seen column wins; a colliding column only fills its gaps.
			if !t.Cells[col][ri].Valid {
				t.Cells[col][ri] = v
			}
		}
	}
	rep.MissingCells = t.MissingCount()
	return t, rep, nil
}

// Relabel re-resolves the station codes of an already normalized table against
// r and returns a new table. Applying it twice with the same resolver gives the
// same result as applying it once.
func Relabel(t *Table, r *Resolver) *Table {
	var keys []ColumnKey
	target := make([]int, len(t.Columns))
	byKey := make(map[ColumnKey]int)
	for i, k := range t.Columns {
		key := Label(r.Canonical(k.Station), r)
		if idx, ok := byKey[key]; ok {
			target[i] = idx
			continue
		}
		byKey[key] = len(keys)
		target[i] = len(keys)
		keys = append(keys, key)
	}

	out := NewTable(append([]Timestamp(nil), t.Times...), keys)
	for i, col := range t.Cells {
		dst := out.Cells[target[i]]
		for row, v := range col {
			if !dst[row].Valid {
				dst[row] = v
			}
		}
	}
	return out
}
