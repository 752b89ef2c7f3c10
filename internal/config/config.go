package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// YearFile is one yearly raw measurement file.
type YearFile struct {
	Year int
	Path string
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	MetadataPath         string
	YearFiles            []YearFile // sorted by year
	HeaderRows           map[int]int
	LegacyTimestampYears []int
	OutputDir            string
	SQLitePath           string

	Threshold         float64
	RankYear          int
	RankK             int
	ChosenYears       []int
	ChosenCities      []string
	MinCommonStations int
	MergePolicy       domain.ShrinkPolicy
	ChartsEnabled     bool

	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaReportTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

const defaultYearFiles = "2015=data/2015_PM25_1g.csv,2018=data/2018_PM25_1g.csv," +
	"2021=data/2021_PM25_1g.csv,2024=data/2024_PM25_1g.csv"

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	yearFiles, err := parseYearFiles(sharedcfg.EnvOrDefault("YEAR_FILES", defaultYearFiles))
	if err != nil {
		return nil, err
	}
	headerRows, err := parseHeaderRows(os.Getenv("HEADER_ROWS"))
	if err != nil {
		return nil, err
	}
	legacyYears, err := parseYears("LEGACY_TIMESTAMP_YEARS", sharedcfg.EnvOrDefault("LEGACY_TIMESTAMP_YEARS", "2015"))
	if err != nil {
		return nil, err
	}
	chosenYears, err := parseYears("CHOSEN_YEARS", sharedcfg.EnvOrDefault("CHOSEN_YEARS", "2015,2024"))
	if err != nil {
		return nil, err
	}

	threshold, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("EXCEEDANCE_THRESHOLD", "15"), 64)
	if err != nil || threshold <= 0 {
		return nil, errors.New("invalid EXCEEDANCE_THRESHOLD")
	}
	rankYear, err := strconv.Atoi(sharedcfg.EnvOrDefault("RANK_YEAR", "0"))
	if err != nil || rankYear < 0 {
		return nil, errors.New("invalid RANK_YEAR")
	}
	rankK, err := strconv.Atoi(sharedcfg.EnvOrDefault("RANK_K", "3"))
	if err != nil || rankK <= 0 {
		return nil, errors.New("invalid RANK_K")
	}
	minStations, err := strconv.Atoi(sharedcfg.EnvOrDefault("MIN_COMMON_STATIONS", "1"))
	if err != nil || minStations < 1 {
		return nil, errors.New("invalid MIN_COMMON_STATIONS")
	}
	policy, err := domain.ParseShrinkPolicy(sharedcfg.EnvOrDefault("MERGE_POLICY", "fail"))
	if err != nil {
		return nil, errors.New("invalid MERGE_POLICY")
	}

	cfg := &Config{
		MetadataPath:         sharedcfg.EnvOrDefault("METADATA_PATH", "data/Metadane_oczyszczone.csv"),
		YearFiles:            yearFiles,
		HeaderRows:           headerRows,
		LegacyTimestampYears: legacyYears,
		OutputDir:            sharedcfg.EnvOrDefault("OUTPUT_DIR", "out"),
		SQLitePath:           os.Getenv("SQLITE_PATH"),

		Threshold:         threshold,
		RankYear:          rankYear,
		RankK:             rankK,
		ChosenYears:       chosenYears,
		ChosenCities:      splitList(sharedcfg.EnvOrDefault("CHOSEN_CITIES", "Warszawa,Katowice")),
		MinCommonStations: minStations,
		MergePolicy:       policy,
		ChartsEnabled:     os.Getenv("CHARTS_ENABLED") == "true",

		KafkaEnabled:     os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaReportTopic: sharedcfg.EnvOrDefault("KAFKA_REPORT_TOPIC", "pm25-exceedances"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.MetadataPath == "" {
		return nil, errors.New("METADATA_PATH is required")
	}
	if len(cfg.YearFiles) == 0 {
		return nil, errors.New("YEAR_FILES is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if strings.TrimSpace(cfg.KafkaReportTopic) == "" {
			return nil, errors.New("KAFKA_REPORT_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

// TimestampFormat returns the timestamp family of a yearly file.
func (c *Config) TimestampFormat(year int) domain.TimestampFormat {
	for _, y := range c.LegacyTimestampYears {
		if y == year {
			return domain.FormatLegacy
		}
	}
	return domain.FormatFlexible
}

// HeaderRow returns the row index holding station codes in a yearly file.
func (c *Config) HeaderRow(year int) int {
	return c.HeaderRows[year]
}

// Years returns the configured years in ascending order.
func (c *Config) Years() []int {
	out := make([]int, len(c.YearFiles))
	for i, yf := range c.YearFiles {
		out[i] = yf.Year
	}
	return out
}

// parseYearFiles parses "2015=path,2018=path".
func parseYearFiles(s string) ([]YearFile, error) {
	var out []YearFile
	seen := make(map[int]struct{})
	for _, part := range splitList(s) {
		year, path, err := splitPair(part)
		if err != nil || path == "" {
			return nil, fmt.Errorf("invalid YEAR_FILES entry %q", part)
		}
		if _, dup := seen[year]; dup {
			return nil, fmt.Errorf("invalid YEAR_FILES: year %d listed twice", year)
		}
		seen[year] = struct{}{}
		out = append(out, YearFile{Year: year, Path: path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

// parseHeaderRows parses "2018=1,2021=0".
func parseHeaderRows(s string) (map[int]int, error) {
	out := make(map[int]int)
	for _, part := range splitList(s) {
		year, v, err := splitPair(part)
		if err != nil {
			return nil, fmt.Errorf("invalid HEADER_ROWS entry %q", part)
		}
		row, err := strconv.Atoi(v)
		if err != nil || row < 0 {
			return nil, fmt.Errorf("invalid HEADER_ROWS entry %q", part)
		}
		out[year] = row
	}
	return out, nil
}

func parseYears(name, s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q", name, part)
		}
		out = append(out, y)
	}
	return out, nil
}

func splitPair(s string) (int, string, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok {
		return 0, "", errors.New("missing '='")
	}
	year, err := strconv.Atoi(strings.TrimSpace(k))
	if err != nil {
		return 0, "", err
	}
	return year, strings.TrimSpace(v), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
