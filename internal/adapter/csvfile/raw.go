package csvfile

import (
	"context"
	"fmt"
	"io"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// DecodeRaw reads one yearly export. headerRow is the record holding the
// station codes; records above it are dropped.
func DecodeRaw(r io.Reader, year, headerRow int) (domain.RawTable, error) {
	records, err := readAll(r)
	if err != nil {
		return domain.RawTable{}, err
	}
	return domain.NewRawTable(year, records, headerRow)
}

// ReadRaw reads a yearly export from disk.
func ReadRaw(path string, year, headerRow int) (domain.RawTable, error) {
	var raw domain.RawTable
	err := readFile(path, func(r io.Reader) error {
		var err error
		raw, err = DecodeRaw(r, year, headerRow)
		return err
	})
	return raw, err
}

// YearFile locates one yearly export on disk.
type YearFile struct {
	Year      int
	Path      string
	HeaderRow int
}

// Source reads the metadata file and every yearly export of a run.
// It implements pipeline.Extractor.
type Source struct {
	metadataPath string
	files        []YearFile
}

// NewSource creates a Source. Years are extracted in the order of files.
func NewSource(metadataPath string, files []YearFile) *Source {
	return &Source{metadataPath: metadataPath, files: files}
}

// Extract reads the metadata and every yearly file.
func (s *Source) Extract(ctx context.Context) (domain.Dataset, error) {
	var ds domain.Dataset
	stations, err := ReadMetadata(s.metadataPath)
	if err != nil {
		return ds, err
	}
	ds.Stations = stations

	for _, f := range s.files {
		if err := ctx.Err(); err != nil {
			return ds, err
		}
		raw, err := ReadRaw(f.Path, f.Year, f.HeaderRow)
		if err != nil {
			return ds, fmt.Errorf("year %d: %w", f.Year, err)
		}
		ds.Years = append(ds.Years, raw)
	}
	return ds, nil
}
