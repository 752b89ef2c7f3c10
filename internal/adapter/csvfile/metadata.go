package csvfile

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// ErrMetadataColumn means a required metadata column was not found.
var ErrMetadataColumn = errors.New("metadata column not found")

// Column headers are matched case-insensitively by prefix, so GIOŚ headers
// carrying a parenthesized note still match.
var (
	codeHeaders   = []string{"kod stacji", "canonical_code", "code"}
	legacyHeaders = []string{"stary kod stacji", "legacy_codes"}
	cityHeaders   = []string{"miejscowość", "miejscowosc", "city"}
	regionHeaders = []string{"województwo", "wojewodztwo", "region"}
)

func findColumn(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if normHeader(h) == name {
				return i
			}
		}
	}
	for _, name := range names {
		for i, h := range header {
			if strings.HasPrefix(normHeader(h), name) {
				return i
			}
		}
	}
	return -1
}

// DecodeMetadata reads the station metadata table. Code and city columns are
// required; legacy codes and region are optional. Blank lines are skipped.
func DecodeMetadata(r io.Reader) ([]domain.Station, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty metadata: %w", ErrMetadataColumn)
	}

	header := records[0]
	code := findColumn(header, codeHeaders)
	city := findColumn(header, cityHeaders)
	if code < 0 {
		return nil, fmt.Errorf("station code: %w", ErrMetadataColumn)
	}
	if city < 0 {
		return nil, fmt.Errorf("city: %w", ErrMetadataColumn)
	}
	legacy := findColumn(header, legacyHeaders)
	region := findColumn(header, regionHeaders)

	field := func(rec []string, i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	stations := make([]domain.Station, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		stations = append(stations, domain.Station{
			Code:        field(rec, code),
			LegacyCodes: field(rec, legacy),
			City:        field(rec, city),
			Region:      field(rec, region),
		})
	}
	return stations, nil
}

// ReadMetadata reads the station metadata table from disk.
func ReadMetadata(path string) ([]domain.Station, error) {
	var stations []domain.Station
	err := readFile(path, func(r io.Reader) error {
		var err error
		stations, err = DecodeMetadata(r)
		return err
	})
	return stations, err
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
