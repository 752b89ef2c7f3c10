package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/air-quality-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/air-quality-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

func (a *app) stationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stations",
		Short: "Monthly mean per station",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := a.loadTable()
			if err != nil {
				return err
			}
			return a.write(cmd, csvfile.MonthlyRows(domain.StationMonthlyMeans(t), true))
		},
	}
}

func (a *app) citiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cities",
		Short: "Monthly mean per city (station means averaged per row first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := a.loadTable()
			if err != nil {
				return err
			}
			return a.write(cmd, csvfile.MonthlyRows(domain.CityMonthlyMeans(t), false))
		},
	}
}

func (a *app) chosenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chosen",
		Short: "Monthly city means restricted to chosen years and cities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			years, err := a.intList(keyChosenYears)
			if err != nil {
				return err
			}
			cities := a.stringList(keyChosenCities)
			if len(years) == 0 || len(cities) == 0 {
				return errors.New("--years and --cities are required")
			}
			t, err := a.loadTable()
			if err != nil {
				return err
			}
			rows := csvfile.ChosenRows(domain.ChosenMonthlyMeans(t, years, cities))
			if rows == nil {
				return fmt.Errorf("none of %s found in the table", strings.Join(cities, ", "))
			}
			return a.write(cmd, rows)
		},
	}
	cmd.Flags().String("years", "", "comma-separated years")
	cmd.Flags().String("cities", "", "comma-separated city names")
	_ = a.v.BindPFlag(keyChosenYears, cmd.Flags().Lookup("years"))
	_ = a.v.BindPFlag(keyChosenCities, cmd.Flags().Lookup("cities"))
	return cmd
}

func (a *app) exceedanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exceedance",
		Short: "Days per station and year with a daily mean above the threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ex, err := a.exceedances()
			if err != nil {
				return err
			}
			return a.write(cmd, csvfile.ExceedanceRows(ex))
		},
	}
}

func (a *app) regionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regions",
		Short: "Exceedance days summed per region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.v.GetString(keyMetadata)
			if path == "" {
				return fmt.Errorf("--%s is required", keyMetadata)
			}
			stations, err := csvfile.ReadMetadata(path)
			if err != nil {
				return err
			}
			r, err := domain.NewResolver(stations)
			if err != nil {
				return err
			}
			if !r.HasRegions() {
				return errors.New("metadata has no region column")
			}
			ex, err := a.exceedances()
			if err != nil {
				return err
			}
			return a.write(cmd, csvfile.RegionRows(domain.RegionExceedances(ex, r)))
		},
	}
	cmd.Flags().String(keyMetadata, "", "station metadata CSV")
	_ = a.v.BindPFlag(keyMetadata, cmd.Flags().Lookup(keyMetadata))
	return cmd
}

func (a *app) rankCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "The k least and k most exceeding stations of a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k := a.v.GetInt(keyRankK)
			if k <= 0 {
				return fmt.Errorf("invalid k %d", k)
			}
			ex, err := a.exceedances()
			if err != nil {
				return err
			}
			year := a.v.GetInt(keyRankYear)
			if year == 0 && len(ex.Years) > 0 {
				year = ex.Years[len(ex.Years)-1]
			}
			res := domain.RankStations(ex, year, k)
			if res.Empty() {
				return fmt.Errorf("no station has data for %d", year)
			}
			return a.write(cmd, csvfile.RankingRows(res))
		},
	}
	cmd.Flags().Int("year", 0, "year to rank, latest when 0")
	cmd.Flags().Int("k", 0, "stations per bucket")
	_ = a.v.BindPFlag(keyRankYear, cmd.Flags().Lookup("year"))
	_ = a.v.BindPFlag(keyRankK, cmd.Flags().Lookup("k"))
	return cmd
}

func (a *app) runsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Pipeline runs stored in the SQLite database, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.v.GetString(keyDB)
			if path == "" {
				return fmt.Errorf("--%s is required", keyDB)
			}
			store, err := sqlite.Open(path, discardLogger())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Runs(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{{"id", "generated_at", "years", "stations", "rows", "threshold"}}
			for _, r := range runs {
				years := make([]string, len(r.Years))
				for i, y := range r.Years {
					years[i] = strconv.Itoa(y)
				}
				rows = append(rows, []string{
					r.ID,
					r.GeneratedAt.Format(time.RFC3339),
					strings.Join(years, " "),
					strconv.Itoa(r.Stations),
					strconv.Itoa(r.Rows),
					strconv.FormatFloat(r.Threshold, 'f', -1, 64),
				})
			}
			return a.write(cmd, rows)
		},
	}
	cmd.Flags().String(keyDB, "", "SQLite database path")
	_ = a.v.BindPFlag(keyDB, cmd.Flags().Lookup(keyDB))
	return cmd
}

func (a *app) exceedances() (*domain.ExceedanceTable, error) {
	threshold, err := a.threshold()
	if err != nil {
		return nil, err
	}
	t, err := a.loadTable()
	if err != nil {
		return nil, err
	}
	return domain.CountExceedances(t, threshold), nil
}
