// Package cli implements the aqreport command: ad-hoc report queries over a
// persisted merged table and the SQLite run store.
package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/couchcryptid/air-quality-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// Setting keys. Each can come from a flag, an AQREPORT_* environment variable
// or the config file, in that order of precedence.
const (
	keyMerged       = "merged"
	keyMetadata     = "metadata"
	keyDB           = "db"
	keyFormat       = "format"
	keyThreshold    = "threshold"
	keyChosenYears  = "chosen_years"
	keyChosenCities = "chosen_cities"
	keyRankYear     = "rank_year"
	keyRankK        = "rank_k"
)

type app struct {
	v       *viper.Viper
	cfgFile string
}

// NewRootCommand builds the aqreport command tree. Output goes to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	a := &app{v: viper.New()}
	a.v.SetEnvPrefix("AQREPORT")
	a.v.AutomaticEnv()
	a.v.SetDefault(keyMerged, "out/"+csvfile.MergedFile)
	a.v.SetDefault(keyFormat, "csv")
	a.v.SetDefault(keyThreshold, domain.DefaultThreshold)
	a.v.SetDefault(keyRankK, 3)

	root := &cobra.Command{
		Use:           "aqreport",
		Short:         "Query PM2.5 reports from a merged measurement table",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.readConfig()
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "YAML config file")
	pf.String(keyMerged, "", "merged table CSV")
	pf.String(keyFormat, "", "output format: csv or table")
	pf.Float64(keyThreshold, 0, "daily mean threshold in µg/m³")
	for _, key := range []string{keyMerged, keyFormat, keyThreshold} {
		_ = a.v.BindPFlag(key, pf.Lookup(key))
	}

	root.AddCommand(
		a.stationsCommand(),
		a.citiesCommand(),
		a.chosenCommand(),
		a.exceedanceCommand(),
		a.regionsCommand(),
		a.rankCommand(),
		a.runsCommand(),
	)
	return root
}

func (a *app) readConfig() error {
	if a.cfgFile == "" {
		return nil
	}
	a.v.SetConfigFile(a.cfgFile)
	if err := a.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func (a *app) loadTable() (*domain.Table, error) {
	path := a.v.GetString(keyMerged)
	if path == "" {
		return nil, fmt.Errorf("--%s is required", keyMerged)
	}
	return csvfile.LoadTable(path)
}

func (a *app) threshold() (float64, error) {
	t := a.v.GetFloat64(keyThreshold)
	if t <= 0 {
		return 0, fmt.Errorf("invalid threshold %v", t)
	}
	return t, nil
}

// stringList reads a list setting. A single comma-separated value, as set from
// the environment, is split.
func (a *app) stringList(key string) []string {
	raw := a.v.GetStringSlice(key)
	if len(raw) == 1 {
		raw = strings.Split(raw[0], ",")
	}
	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (a *app) intList(key string) ([]int, error) {
	var out []int
	for _, s := range a.stringList(key) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q", key, s)
		}
		out = append(out, n)
	}
	return out, nil
}

// write renders header-first rows as CSV or as an aligned table.
func (a *app) write(cmd *cobra.Command, rows [][]string) error {
	out := cmd.OutOrStdout()
	switch format := a.v.GetString(keyFormat); format {
	case "csv", "":
		w := csv.NewWriter(out)
		return w.WriteAll(rows)
	case "table":
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, row := range rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
