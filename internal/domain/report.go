package domain

// ReportOptions selects the reporting outputs computed from a merged table.
type ReportOptions struct {
	Threshold    float64
	RankYear     int
	RankK        int
	ChosenYears  []int
	ChosenCities []string
}

// Report bundles every aggregate the pipeline publishes for one run.
type Report struct {
	StationMonthly *MonthlyTable
	CityMonthly    *MonthlyTable
	Chosen         []CityMonth
	Exceedances    *ExceedanceTable
	Regions        *RegionExceedanceTable
	Ranking        RankingResult
}

// BuildReport runs the aggregation engine over a merged table. Regions is nil
// when lookup is nil. A zero Threshold means DefaultThreshold; a zero RankYear
// means the latest year in the table.
func BuildReport(t *Table, lookup RegionLookup, opts ReportOptions) Report {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	rep := Report{
		StationMonthly: StationMonthlyMeans(t),
		CityMonthly:    CityMonthlyMeans(t),
		Exceedances:    CountExceedances(t, threshold),
	}
	if len(opts.ChosenYears) > 0 && len(opts.ChosenCities) > 0 {
		rep.Chosen = ChosenMonthlyMeans(t, opts.ChosenYears, opts.ChosenCities)
	}
	if lookup != nil {
		rep.Regions = RegionExceedances(rep.Exceedances, lookup)
	}

	year := opts.RankYear
	if year == 0 && len(rep.Exceedances.Years) > 0 {
		year = rep.Exceedances.Years[len(rep.Exceedances.Years)-1]
	}
	rep.Ranking = RankStations(rep.Exceedances, year, opts.RankK)
	return rep
}
