// Command aqreport prints PM2.5 report tables computed from a merged table
// written by the ETL, and lists runs stored in its SQLite database.
//
// Usage:
//
//	aqreport exceedance --merged out/merged.csv --threshold 15
//	aqreport rank --year 2024 --k 3
//	aqreport chosen --years 2015,2024 --cities Warszawa,Katowice --format table
//	aqreport runs --db out/aq.db
package main

import (
	"fmt"
	"os"

	"github.com/couchcryptid/air-quality-etl/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
