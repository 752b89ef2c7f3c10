package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTables means Merge was called without input.
	ErrNoTables = errors.New("no tables to merge")

	// ErrNoCommonStations means no station is present in every input year.
	ErrNoCommonStations = errors.New("no station is present in every year")

	// ErrTooFewStations means the common stations fall below MergeOptions.MinStations
	// under PolicyFail.
	ErrTooFewStations = errors.New("too few stations common to every year")
)

// ShrinkPolicy decides what Merge does when the common station set is smaller
// than MergeOptions.MinStations.
type ShrinkPolicy int

const (
	// PolicyFail returns ErrTooFewStations.
	PolicyFail ShrinkPolicy = iota
	// PolicyWarn returns the merged table and flags MergeReport.BelowThreshold.
	PolicyWarn
)

// ParseShrinkPolicy maps "fail" and "warn" to a policy.
func ParseShrinkPolicy(s string) (ShrinkPolicy, error) {
	switch s {
	case "fail", "":
		return PolicyFail, nil
	case "warn":
		return PolicyWarn, nil
	default:
		return PolicyFail, fmt.Errorf("unknown merge policy %q", s)
	}
}

// MergeOptions tunes the cross-year merge.
type MergeOptions struct {
	MinStations int
	Policy      ShrinkPolicy
}

// MergeReport describes what the merge kept and dropped.
type MergeReport struct {
	Rows           int
	Stations       int
	Dropped        [][]ColumnKey // per input table, columns absent from some other year
	BelowThreshold bool
}

// DroppedCount returns the total number of dropped input columns.
func (m MergeReport) DroppedCount() int {
	n := 0
	for _, d := range m.Dropped {
		n += len(d)
	}
	return n
}

// Merge concatenates the rows of tables in order and keeps only the columns
// present in every table, in the column order of the first one. Inputs are not
// modified.
func Merge(tables []*Table, opts MergeOptions) (*Table, MergeReport, error) {
	var rep MergeReport
	if len(tables) == 0 {
		return nil, rep, ErrNoTables
	}

	common := commonColumns(tables)
	rep.Dropped = make([][]ColumnKey, len(tables))
	for i, t := range tables {
		for _, k := range t.Columns {
			if _, ok := common[k]; !ok {
				rep.Dropped[i] = append(rep.Dropped[i], k)
			}
		}
	}

	var keys []ColumnKey
	for _, k := range tables[0].Columns {
		if _, ok := common[k]; ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, rep, ErrNoCommonStations
	}
	rep.Stations = len(keys)
	if len(keys) < opts.MinStations {
		if opts.Policy == PolicyFail {
			return nil, rep, fmt.Errorf("%d of %d required: %w", len(keys), opts.MinStations, ErrTooFewStations)
		}
		rep.BelowThreshold = true
	}

	total := 0
	for _, t := range tables {
		total += t.Len()
	}
	times := make([]Timestamp, 0, total)
	for _, t := range tables {
		times = append(times, t.Times...)
	}
	out := NewTable(times, keys)
	for ci, k := range keys {
		dst := out.Cells[ci][:0]
		for _, t := range tables {
			src, _ := t.Column(k)
			dst = append(dst, src...)
		}
		out.Cells[ci] = dst
	}
	rep.Rows = out.Len()
	return out, rep, nil
}

func commonColumns(tables []*Table) map[ColumnKey]struct{} {
	common := make(map[ColumnKey]struct{}, len(tables[0].Columns))
	for _, k := range tables[0].Columns {
		common[k] = struct{}{}
	}
	for _, t := range tables[1:] {
		present := make(map[ColumnKey]struct{}, len(t.Columns))
		for _, k := range t.Columns {
			present[k] = struct{}{}
		}
		for k := range common {
			if _, ok := present[k]; !ok {
				delete(common, k)
			}
		}
	}
	return common
}
