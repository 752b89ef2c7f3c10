package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(s string) Timestamp {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		panic(err)
	}
	return At(t)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		format TimestampFormat
		want   Timestamp
	}{
		{"legacy short", "1/1/15 1:00", FormatLegacy, ts("2015-01-01 01:00:00")},
		{"legacy padded", "01/02/15 13:00", FormatLegacy, ts("2015-01-02 13:00:00")},
		{"legacy rejects iso", "2015-01-01 01:00:00", FormatLegacy, Timestamp{}},
		{"iso seconds", "2018-03-04 05:00:00", FormatFlexible, ts("2018-03-04 05:00:00")},
		{"iso minutes", "2018-03-04 05:00", FormatFlexible, ts("2018-03-04 05:00:00")},
		{"iso T", "2018-03-04T05:00:00", FormatFlexible, ts("2018-03-04 05:00:00")},
		{"polish dotted", "04.03.2018 05:00", FormatFlexible, ts("2018-03-04 05:00:00")},
		{"us slashed", "3/4/2018 05:00", FormatFlexible, ts("2018-03-04 05:00:00")},
		{"surrounding space", "  2018-03-04 05:00:00 ", FormatFlexible, ts("2018-03-04 05:00:00")},
		{"empty", "", FormatFlexible, Timestamp{}},
		{"garbage", "Kod stanowiska", FormatFlexible, Timestamp{}},
		{"bad month", "2018-13-04 05:00:00", FormatFlexible, Timestamp{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTimestamp(tt.in, tt.format)
			assert.Equal(t, tt.want.Valid, got.Valid)
			if tt.want.Valid {
				assert.True(t, tt.want.Time.Equal(got.Time), "got %v", got.Time)
			}
		})
	}
}

func TestCorrectMidnight(t *testing.T) {
	tests := []struct {
		name string
		in   Timestamp
		want Timestamp
	}{
		{"afternoon unchanged", ts("2021-01-15 14:30:00"), ts("2021-01-15 14:30:00")},
		{"midnight to previous day", ts("2021-01-15 00:00:00"), ts("2021-01-14 23:59:59")},
		{"late minute unchanged", ts("2023-01-17 23:59:00"), ts("2023-01-17 23:59:00")},
		{"crosses month", ts("2021-02-01 00:00:00"), ts("2021-01-31 23:59:59")},
		{"crosses year", ts("2022-01-01 00:00:00"), ts("2021-12-31 23:59:59")},
		{"leap day", ts("2024-03-01 00:00:00"), ts("2024-02-29 23:59:59")},
		{"one second past midnight unchanged", ts("2021-02-01 00:00:01"), ts("2021-02-01 00:00:01")},
		{"missing stays missing", Timestamp{}, Timestamp{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CorrectMidnight(tt.in))
		})
	}
}

func TestNormalizeTimes(t *testing.T) {
	raw := []string{"", "2023-01-15 14:30:00", "2023-01-17 23:59:59", "2023-01-18 00:00:00", "nonsense"}

	got, unparsed := NormalizeTimes(raw, FormatFlexible)
	require.Len(t, got, len(raw))
	assert.Equal(t, 2, unparsed)
	assert.False(t, got[0].Valid)
	assert.Equal(t, ts("2023-01-15 14:30:00"), got[1])
	assert.Equal(t, ts("2023-01-17 23:59:59"), got[2])
	// Intended near-duplicate of the previous row.
	assert.Equal(t, ts("2023-01-17 23:59:59"), got[3])
	assert.False(t, got[4].Valid)
}

func TestNormalizeTimes_LegacyVintage(t *testing.T) {
	got, unparsed := NormalizeTimes([]string{"12/31/15 23:00", "1/1/16 0:00"}, FormatLegacy)
	assert.Zero(t, unparsed)
	assert.Equal(t, ts("2015-12-31 23:00:00"), got[0])
	assert.Equal(t, ts("2015-12-31 23:59:59"), got[1])
}

func TestNormalizeTimes_Idempotent(t *testing.T) {
	first, _ := NormalizeTimes([]string{"2021-02-01 00:00:00", "2021-02-01 01:00:00", "x"}, FormatFlexible)

	formatted := make([]string, len(first))
	for i, v := range first {
		formatted[i] = FormatTimestamp(v)
	}
	second, _ := NormalizeTimes(formatted, FormatFlexible)
	assert.Equal(t, first, second)

	for _, v := range first {
		assert.Equal(t, v, CorrectMidnight(v))
	}
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "2021-01-31 23:59:59", FormatTimestamp(ts("2021-01-31 23:59:59")))
	assert.Empty(t, FormatTimestamp(Timestamp{}))
}
