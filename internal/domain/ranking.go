package domain

import "sort"

// RankEntry is one ranked station.
type RankEntry struct {
	Station  ColumnKey
	Exceeded int
	Observed int
}

// RankingResult holds the k least- and k most-exceeding stations of a year.
// Both halves are in ascending order of Exceeded, so Most ends with the worst
// station. They overlap when the year has fewer than 2k ranked stations.
type RankingResult struct {
	Year  int
	Least []RankEntry
	Most  []RankEntry
}

// Empty reports whether the ranking has no entries.
func (r RankingResult) Empty() bool {
	return len(r.Least) == 0 && len(r.Most) == 0
}

// Entries returns Least followed by Most.
func (r RankingResult) Entries() []RankEntry {
	out := make([]RankEntry, 0, len(r.Least)+len(r.Most))
	out = append(out, r.Least...)
	return append(out, r.Most...)
}

// RankStations sorts the stations of year by exceedance days, ascending and
// stable in table order, and returns the first and last k. A year absent from
// ex, or k <= 0, gives an empty result. Stations without any daily mean that
// year are not ranked.
func RankStations(ex *ExceedanceTable, year, k int) RankingResult {
	res := RankingResult{Year: year}
	yi := ex.YearIndex(year)
	if yi < 0 || k <= 0 {
		return res
	}

	entries := make([]RankEntry, 0, len(ex.Stations))
	for si, key := range ex.Stations {
		cell := ex.Cells[si][yi]
		if !cell.Valid() {
			continue
		}
		entries = append(entries, RankEntry{Station: key, Exceeded: cell.Exceeded, Observed: cell.Observed})
	}
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].Exceeded < entries[b].Exceeded })

	n := min(k, len(entries))
	res.Least = append([]RankEntry(nil), entries[:n]...)
	res.Most = append([]RankEntry(nil), entries[len(entries)-n:]...)
	return res
}
