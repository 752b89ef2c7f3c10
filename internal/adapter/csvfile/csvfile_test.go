package csvfile

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func at(s string) domain.Timestamp {
	t, err := time.Parse(domain.TimestampLayout, s)
	if err != nil {
		panic(err)
	}
	return domain.At(t)
}

const rawSemicolon = "\xEF\xBB\xBFNr;1;2\n" +
	"Kod stacji;DsWrocAlWisn;MpKrakAlKras\n" +
	"Wskaźnik;PM2.5;PM2.5\n" +
	"1/1/15 1:00;12,5;30\n" +
	"1/1/15 2:00;;31\n"

func TestDecodeRaw_SemicolonWithBOM(t *testing.T) {
	raw, err := DecodeRaw(strings.NewReader(rawSemicolon), 2015, 1)
	require.NoError(t, err)

	assert.Equal(t, 2015, raw.Year)
	assert.Equal(t, []string{"Kod stacji", "DsWrocAlWisn", "MpKrakAlKras"}, raw.Header)
	require.Len(t, raw.Rows, 3)
	assert.Equal(t, []string{"1/1/15 2:00", "", "31"}, raw.Rows[2])
}

func TestDecodeRaw_Comma(t *testing.T) {
	raw, err := DecodeRaw(strings.NewReader("Kod stacji,A,B\n2018-01-01 01:00:00,1.5,2\n"), 2018, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kod stacji", "A", "B"}, raw.Header)
	assert.Len(t, raw.Rows, 1)
}

func TestDecodeRaw_HeaderRowOutOfRange(t *testing.T) {
	_, err := DecodeRaw(strings.NewReader("a,b\n"), 2018, 4)
	assert.ErrorIs(t, err, domain.ErrEmptyRawTable)
}

const metadataPL = "Nr,Kod stacji,Kod międzynarodowy,Nazwa stacji,\"Stary Kod stacji \n(o ile inny od aktualnego)\",Województwo,Miejscowość\n" +
	"1,DsWrocAlWisn,PL0194A,Wrocław - Wiśniowa,\"DsWrocWisA, DsWroc001\",DOLNOŚLĄSKIE,Wrocław\n" +
	"2,MpKrakAlKras,PL0012A,Kraków - Krasińskiego,MpKrak002,MAŁOPOLSKIE, Kraków \n" +
	",,,,,,\n"

func TestDecodeMetadata_PolishHeaders(t *testing.T) {
	stations, err := DecodeMetadata(strings.NewReader(metadataPL))
	require.NoError(t, err)

	want := []domain.Station{
		{Code: "DsWrocAlWisn", LegacyCodes: "DsWrocWisA, DsWroc001", City: "Wrocław", Region: "DOLNOŚLĄSKIE"},
		{Code: "MpKrakAlKras", LegacyCodes: "MpKrak002", City: "Kraków", Region: "MAŁOPOLSKIE"},
	}
	if diff := cmp.Diff(want, stations); diff != "" {
		t.Errorf("stations mismatch (-want +got):\n%s", diff)
	}

	r, err := domain.NewResolver(stations)
	require.NoError(t, err)
	assert.Equal(t, "DsWrocAlWisn", r.Canonical("DsWroc001"))
}

func TestDecodeMetadata_EnglishHeadersWithoutOptional(t *testing.T) {
	stations, err := DecodeMetadata(strings.NewReader("canonical_code;city\nA;Gdańsk\n"))
	require.NoError(t, err)
	assert.Equal(t, []domain.Station{{Code: "A", City: "Gdańsk"}}, stations)
}

func TestDecodeMetadata_MissingColumns(t *testing.T) {
	_, err := DecodeMetadata(strings.NewReader("name,city\nx,y\n"))
	assert.ErrorIs(t, err, ErrMetadataColumn)

	_, err = DecodeMetadata(strings.NewReader("Kod stacji,Nazwa\nx,y\n"))
	assert.ErrorIs(t, err, ErrMetadataColumn)

	_, err = DecodeMetadata(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMetadataColumn)
}

func sampleTable() *domain.Table {
	tbl := domain.NewTable(
		[]domain.Timestamp{at("2015-01-01 01:00:00"), {}, at("2015-01-31 23:59:59")},
		[]domain.ColumnKey{{City: "Warszawa", Station: "MzWarAlNiepo"}, {City: domain.UnknownLabel, Station: "XxUnknown"}},
	)
	tbl.Cells[0] = []domain.Value{domain.Some(12.5), domain.Missing, domain.Some(40)}
	tbl.Cells[1] = []domain.Value{domain.Missing, domain.Some(3), domain.Some(0)}
	return tbl
}

func TestTable_RoundTrip(t *testing.T) {
	tbl := sampleTable()

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, tbl))

	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "Data,Rok,Miesiąc,Warszawa,Nieznane", lines[0])
	assert.Equal(t, ",,,MzWarAlNiepo,XxUnknown", lines[1])
	assert.Equal(t, "2015-01-01 01:00:00,2015,1,12.5,", lines[2])
	assert.Equal(t, ",,,,3", lines[3])

	back, err := ReadTable(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(tbl, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadTable_PandasHeader(t *testing.T) {
	in := "Data,Rok,Miesiąc,Kraków,Kraków\n" +
		"Unnamed: 0_level_1,Unnamed: 1_level_1,Unnamed: 2_level_1,A,B\n" +
		"2018-01-01 01:00:00,2018,1,1.0,\n" +
		"2018-01-01 02:00:00,2018,1,2.0,4.0\n"

	tbl, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []domain.ColumnKey{{City: "Kraków", Station: "A"}, {City: "Kraków", Station: "B"}}, tbl.Columns)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []domain.Value{domain.Missing, domain.Some(4)}, tbl.Cells[1])
}

func TestReadTable_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"single header row", "Data,Warszawa\n"},
		{"station missing", "Data,Warszawa\n,\n"},
		{"no time column", "Rok,Warszawa\n,A\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}

	_, err := ReadTable(strings.NewReader("Data,Warszawa\n,A\n2018-01-01 01:00:00,abc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Warszawa/A")
}

func TestSaveAndLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "merged.csv")
	require.NoError(t, SaveTable(path, sampleTable()))

	back, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, 3, back.Len())

	_, err = LoadTable(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSource_Extract(t *testing.T) {
	dir := t.TempDir()
	meta := filepath.Join(dir, "meta.csv")
	y15 := filepath.Join(dir, "2015.csv")
	y18 := filepath.Join(dir, "2018.csv")
	require.NoError(t, os.WriteFile(meta, []byte(metadataPL), 0o600))
	require.NoError(t, os.WriteFile(y15, []byte(rawSemicolon), 0o600))
	require.NoError(t, os.WriteFile(y18, []byte("Kod stacji,DsWrocAlWisn\n2018-01-01 01:00:00,3\n"), 0o600))

	src := NewSource(meta, []YearFile{{Year: 2015, Path: y15, HeaderRow: 1}, {Year: 2018, Path: y18}})
	ds, err := src.Extract(context.Background())
	require.NoError(t, err)

	assert.Len(t, ds.Stations, 2)
	require.Len(t, ds.Years, 2)
	assert.Equal(t, 2015, ds.Years[0].Year)
	assert.Equal(t, "DsWrocAlWisn", ds.Years[1].Header[1])
}

func TestSource_ExtractMissingYear(t *testing.T) {
	dir := t.TempDir()
	meta := filepath.Join(dir, "meta.csv")
	require.NoError(t, os.WriteFile(meta, []byte(metadataPL), 0o600))

	src := NewSource(meta, []YearFile{{Year: 2021, Path: filepath.Join(dir, "nope.csv")}})
	_, err := src.Extract(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "year 2021")
}

func TestReportWriter_Load(t *testing.T) {
	dir := t.TempDir()
	tbl := sampleTable()
	run := &domain.Run{
		ID:     "run-1",
		Merged: tbl,
		Report: domain.BuildReport(tbl, domain.RegionMap{"MzWarAlNiepo": "MAZOWIECKIE"}, domain.ReportOptions{
			RankK:        1,
			ChosenYears:  []int{2015},
			ChosenCities: []string{"Warszawa"},
		}),
	}

	n, err := NewReportWriter(dir, discardLogger()).Load(context.Background(), run)
	require.NoError(t, err)
	assert.Positive(t, n)

	for _, name := range []string{MergedFile, StationMonthlyFile, CityMonthlyFile, ChosenMonthlyFile, ExceedancesFile, RegionExceedanceFile, RankingFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	ex, err := os.ReadFile(filepath.Join(dir, ExceedancesFile))
	require.NoError(t, err)
	assert.Equal(t, "city,station,year,exceeded,observed\n"+
		"Warszawa,MzWarAlNiepo,2015,1,2\n"+
		"Nieznane,XxUnknown,2015,0,1\n", string(ex))

	rank, err := os.ReadFile(filepath.Join(dir, RankingFile))
	require.NoError(t, err)
	assert.Contains(t, string(rank), "2015,least,1,Nieznane,XxUnknown,0,1")
	assert.Contains(t, string(rank), "2015,most,1,Warszawa,MzWarAlNiepo,1,2")
}
