// Command genmock writes deterministic synthetic GIOŚ exports: a station
// metadata sheet and one hourly PM2.5 sheet per year, each in the layout of
// its archive vintage. The output feeds the ETL in local runs and tests.
//
// Usage:
//
//	go run ./cmd/genmock -out data -years 2015,2018,2021,2024 -days 0
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/couchcryptid/air-quality-etl/internal/mockdata"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	defaults := mockdata.DefaultOptions()

	out := flag.String("out", "data", "output directory")
	yearsFlag := flag.String("years", "2015,2018,2021,2024", "comma-separated years to generate")
	legacyFlag := flag.String("legacy-years", "2015", "years written with legacy codes and timestamps")
	days := flag.Int("days", 0, "days per year from 1 January, 0 for the whole year")
	seed := flag.Uint64("seed", defaults.Seed, "random seed")
	missing := flag.Float64("missing-rate", defaults.MissingRate, "share of readings left empty")
	flag.Parse()

	years, err := parseYears(*yearsFlag)
	if err != nil {
		return fmt.Errorf("-years: %w", err)
	}
	if len(years) == 0 {
		flag.Usage()
		return fmt.Errorf("missing required flag: -years")
	}
	legacy, err := parseYears(*legacyFlag)
	if err != nil {
		return fmt.Errorf("-legacy-years: %w", err)
	}
	if *missing < 0 || *missing >= 1 {
		return fmt.Errorf("-missing-rate must be in [0, 1)")
	}

	opts := mockdata.Options{Seed: *seed, Days: *days, LegacyYears: legacy, MissingRate: *missing}
	if err := mockdata.Write(*out, years, mockdata.DefaultStations, opts); err != nil {
		return err
	}

	log.Printf("wrote %s with %d stations", mockdata.MetadataFile, len(mockdata.DefaultStations))
	for _, y := range years {
		log.Printf("wrote %s", mockdata.FileName(y))
	}
	return nil
}

func parseYears(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		out = append(out, y)
	}
	return out, nil
}
