package domain

import "time"

// Dataset is the raw input of one pipeline run.
type Dataset struct {
	Stations []Station
	Years    []RawTable
}

// Run is the output of one pipeline run.
type Run struct {
	ID          string
	GeneratedAt time.Time
	Years       []int
	Merged      *Table
	Normalize   []NormalizeReport
	Merge       MergeReport
	Report      Report
}
