package mockdata

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Days = 2
	return opts
}

func TestYearRecords_LegacyVintage(t *testing.T) {
	recs := YearRecords(2015, DefaultStations, testOptions())

	header := recs[0]
	assert.Equal(t, "Kod stacji", header[0])
	assert.Contains(t, header, "MzWarszNiepo")
	assert.NotContains(t, header, "MzWarAlNiepo")
	assert.NotContains(t, header, "PmGdaWyzwole")

	assert.True(t, domain.IsPreambleRow(recs[1][0]))
	assert.True(t, domain.IsPreambleRow(recs[2][0]))
	assert.Equal(t, "1/1/15 01:00", recs[3][0])
	assert.Len(t, recs, 1+2+48)
	assert.Equal(t, "1/3/15 00:00", recs[len(recs)-1][0])
}

func TestYearRecords_CurrentVintage(t *testing.T) {
	recs := YearRecords(2024, DefaultStations, testOptions())

	assert.Equal(t, "MzWarAlNiepo", recs[0][1])
	assert.Contains(t, recs[0], "PmGdaWyzwole")
	assert.Len(t, recs, 1+4+48)
	assert.Equal(t, "2024-01-01 01:00:00", recs[5][0])

	for _, row := range recs[5:] {
		require.Len(t, row, len(recs[0]))
		for _, cell := range row[1:] {
			v, ok := domain.ParseValue(cell)
			require.True(t, ok, cell)
			if v.Valid {
				assert.GreaterOrEqual(t, v.Float, 1.0)
			}
		}
	}
}

func TestYearRecords_Deterministic(t *testing.T) {
	a := YearRecords(2021, DefaultStations, testOptions())
	b := YearRecords(2021, DefaultStations, testOptions())
	assert.Equal(t, a, b)

	other := testOptions()
	other.Seed++
	assert.NotEqual(t, a, YearRecords(2021, DefaultStations, other))
}

func TestMetadata(t *testing.T) {
	recs := MetadataRecords(DefaultStations)
	require.Len(t, recs, len(DefaultStations)+1)
	assert.Equal(t, "Kod stacji", recs[0][1])

	r, err := domain.NewResolver(DomainStations(DefaultStations))
	require.NoError(t, err)
	assert.Equal(t, "MpKrakAlKras", r.Canonical("MpKrakowWIOSAKra6117"))
	assert.Equal(t, "Katowice", r.City("SlKatoKossut"))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "2018_PM25_1g.csv", FileName(2018))
}

func TestWrite_ReadBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, []int{2015, 2024}, DefaultStations, testOptions()))

	src := csvfile.NewSource(filepath.Join(dir, MetadataFile), []csvfile.YearFile{
		{Year: 2015, Path: filepath.Join(dir, FileName(2015))},
		{Year: 2024, Path: filepath.Join(dir, FileName(2024))},
	})
	ds, err := src.Extract(context.Background())
	require.NoError(t, err)

	require.Len(t, ds.Stations, len(DefaultStations))
	assert.Equal(t, "MpKrakowWIOSAKra6117", ds.Stations[2].LegacyCodes)
	assert.Equal(t, "małopolskie", ds.Stations[2].Region)
	require.Len(t, ds.Years, 2)
	assert.Equal(t, YearRecords(2015, DefaultStations, testOptions()), append([][]string{ds.Years[0].Header}, ds.Years[0].Rows...))
}
