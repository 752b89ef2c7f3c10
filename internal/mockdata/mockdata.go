// Package mockdata generates deterministic synthetic GIOŚ exports: station
// metadata and hourly PM2.5 sheets in the layout of each archive vintage.
package mockdata

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// Station is a synthetic monitoring station.
type Station struct {
	Code   string
	Legacy string // code used by legacy vintages, empty if unchanged
	City   string
	Region string
	Base   float64 // annual mean concentration
	From   int     // first year with a column, 0 for every year
}

// DefaultStations covers four cities, one renamed station, and one station
// that only reports in later years.
var DefaultStations = []Station{
	{Code: "MzWarAlNiepo", Legacy: "MzWarszNiepo", City: "Warszawa", Region: "mazowieckie", Base: 22},
	{Code: "MzWarKondrat", City: "Warszawa", Region: "mazowieckie", Base: 18},
	{Code: "MpKrakAlKras", Legacy: "MpKrakowWIOSAKra6117", City: "Kraków", Region: "małopolskie", Base: 31},
	{Code: "SlKatoKossut", City: "Katowice", Region: "śląskie", Base: 27},
	{Code: "PmGdaLeczkow", City: "Gdańsk", Region: "pomorskie", Base: 12},
	{Code: "PmGdaWyzwole", City: "Gdańsk", Region: "pomorskie", Base: 13, From: 2021},
}

// Options controls generation.
type Options struct {
	Seed        uint64
	Days        int   // days per year from 1 January, 0 for the whole year
	LegacyYears []int // years written with legacy codes and short timestamps
	MissingRate float64
}

// DefaultOptions matches the archive set the service is configured for.
func DefaultOptions() Options {
	return Options{Seed: 2015, LegacyYears: []int{2015}, MissingRate: 0.02}
}

// MetadataRecords returns the metadata sheet, header first.
func MetadataRecords(stations []Station) [][]string {
	out := [][]string{{"Nr", "Kod stacji", "Stary Kod stacji", "Nazwa stacji", "Województwo", "Miejscowość"}}
	for i, s := range stations {
		out = append(out, []string{strconv.Itoa(i + 1), s.Code, s.Legacy, s.City + " " + s.Code, s.Region, s.City})
	}
	return out
}

// DomainStations returns the metadata as parsed stations.
func DomainStations(stations []Station) []domain.Station {
	out := make([]domain.Station, len(stations))
	for i, s := range stations {
		out[i] = domain.Station{Code: s.Code, LegacyCodes: s.Legacy, City: s.City, Region: s.Region}
	}
	return out
}

// YearRecords returns one yearly sheet. The first record holds station codes,
// followed by preamble rows and then one row per hour. Readings are stamped at
// the end of their hour, so the last reading of a day carries the next day's
// midnight.
func YearRecords(year int, stations []Station, opts Options) [][]string {
	legacy := slices.Contains(opts.LegacyYears, year)
	rng := rand.New(rand.NewPCG(opts.Seed, uint64(year)))

	var cols []Station
	for _, s := range stations {
		if s.From == 0 || year >= s.From {
			cols = append(cols, s)
		}
	}

	header := []string{"Kod stacji"}
	for _, s := range cols {
		code := s.Code
		if legacy && s.Legacy != "" {
			code = s.Legacy
		}
		header = append(header, code)
	}
	out := [][]string{header}
	out = append(out, preamble(len(cols), legacy)...)

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	if opts.Days > 0 {
		end = start.AddDate(0, 0, opts.Days)
	}
	for ts := start.Add(time.Hour); !ts.After(end); ts = ts.Add(time.Hour) {
		row := make([]string, 0, len(cols)+1)
		row = append(row, stamp(ts, legacy))
		for _, s := range cols {
			if rng.Float64() < opts.MissingRate {
				row = append(row, "")
				continue
			}
			row = append(row, reading(concentration(s.Base, ts, rng), legacy))
		}
		out = append(out, row)
	}
	return out
}

func preamble(n int, legacy bool) [][]string {
	labels := []string{"Wskaźnik", "Czas uśredniania", "Jednostka", "Kod stanowiska"}
	values := []string{"PM2.5", "1g", "ug/m3", ""}
	if legacy {
		labels, values = labels[:2], values[:2]
	}
	out := make([][]string, len(labels))
	for i, label := range labels {
		row := []string{label}
		for range n {
			row = append(row, values[i])
		}
		out[i] = row
	}
	return out
}

func stamp(ts time.Time, legacy bool) string {
	if legacy {
		return ts.Format("1/2/06 15:04")
	}
	return ts.Format(domain.TimestampLayout)
}

// concentration is the station base scaled up in winter and at night, plus
// noise, floored at 1.
func concentration(base float64, ts time.Time, rng *rand.Rand) float64 {
	season := 1 + 0.6*math.Cos(2*math.Pi*float64(ts.YearDay())/365)
	diurnal := 1 + 0.2*math.Cos(2*math.Pi*float64(ts.Hour()-22)/24)
	v := base*season*diurnal + rng.NormFloat64()*base*0.25
	return math.Max(1, math.Round(v*10)/10)
}

// reading formats a value; legacy vintages use decimal commas.
func reading(v float64, legacy bool) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	if legacy {
		return strings.Replace(s, ".", ",", 1)
	}
	return s
}

// FileName is the yearly file name the service expects by default.
func FileName(year int) string {
	return fmt.Sprintf("%d_PM25_1g.csv", year)
}

// MetadataFile is the metadata file name the service expects by default.
const MetadataFile = "Metadane_oczyszczone.csv"

// Write stores the metadata sheet and one sheet per year in dir under the
// default file names.
func Write(dir string, years []int, stations []Station, opts Options) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := writeCSV(filepath.Join(dir, MetadataFile), ';', MetadataRecords(stations)); err != nil {
		return err
	}
	for _, year := range years {
		if err := writeCSV(filepath.Join(dir, FileName(year)), ',', YearRecords(year, stations, opts)); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, comma rune, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	w.Comma = comma
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
