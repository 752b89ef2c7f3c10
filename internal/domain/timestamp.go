package domain

import (
	"strings"
	"time"
)

// TimestampFormat selects the layout family of a vintage's timestamp column.
type TimestampFormat int

const (
	// FormatFlexible accepts the ISO-like layouts used from 2016 onwards.
	FormatFlexible TimestampFormat = iota
	// FormatLegacy is month/day/two-digit-year hour:minute, used by 2015.
	FormatLegacy
)

func (f TimestampFormat) String() string {
	if f == FormatLegacy {
		return "legacy"
	}
	return "flexible"
}

// TimestampLayout is how normalized timestamps are written back out.
const TimestampLayout = "2006-01-02 15:04:05"

const legacyLayout = "1/2/06 15:04"

// flexibleLayouts are tried in order; TimestampLayout comes first so that
// persisted tables parse on the first attempt.
var flexibleLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339,
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
}

// Timestamp is a row time that may be missing.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// At wraps a known time.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t, Valid: true}
}

// ParseTimestamp parses s with the given family. Unparseable input yields a
// missing Timestamp, never an error.
func ParseTimestamp(s string, format TimestampFormat) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}
	}
	if format == FormatLegacy {
		t, err := time.Parse(legacyLayout, s)
		if err != nil {
			return Timestamp{}
		}
		return At(t)
	}
	for _, layout := range flexibleLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return At(t.UTC())
		}
	}
	return Timestamp{}
}

// CorrectMidnight moves a reading stamped exactly 00:00:00 to 23:59:59 of the
// previous day. Missing timestamps and every other time of day are unchanged.
func CorrectMidnight(ts Timestamp) Timestamp {
	if !ts.Valid {
		return ts
	}
	h, m, s := ts.Time.Clock()
	if h == 0 && m == 0 && s == 0 && ts.Time.Nanosecond() == 0 {
		return At(ts.Time.Add(-time.Second))
	}
	return ts
}

// NormalizeTimes parses and midnight-corrects a timestamp column. It returns
// the normalized column and the number of values that could not be parsed.
func NormalizeTimes(raw []string, format TimestampFormat) ([]Timestamp, int) {
	out := make([]Timestamp, len(raw))
	unparsed := 0
	for i, s := range raw {
		ts := ParseTimestamp(s, format)
		if !ts.Valid {
			unparsed++
		}
		out[i] = CorrectMidnight(ts)
	}
	return out, unparsed
}

// FormatTimestamp renders a Timestamp for the persisted table.
func FormatTimestamp(ts Timestamp) string {
	if !ts.Valid {
		return ""
	}
	return ts.Time.Format(TimestampLayout)
}

// dayOf truncates a time to its calendar day.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
