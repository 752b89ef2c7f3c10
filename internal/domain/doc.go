// Package domain models hourly PM2.5 station series from the GIOŚ
// (Główny Inspektorat Ochrony Środowiska) yearly measurement archives and the
// aggregates computed from them.
//
// # Data Source
//
// The inspectorate publishes one archive per year. Each archive holds a
// "<year>_PM25_1g" sheet: one column per measurement station, one row per hour.
// Station metadata (current code, superseded codes, city, voivodeship) is
// published separately. Retrieval and spreadsheet decoding happen outside this
// package; the domain consumes already-decoded tables of strings.
//
// # GIOŚ Data Conventions
//
// Sheet preamble:
//
//	The first rows of a sheet describe the columns rather than holding readings.
//	Their first cell is one of "Nr", "Kod stacji", "Wskaźnik",
//	"Czas uśredniania", "Jednostka" or "Kod stanowiska". The row carrying the
//	station codes is the header; the rest are dropped (see [IsPreambleRow]).
//
// Station codes:
//
//	Codes were reorganized over the years: "MpKrakAlKras" replaced
//	"MpKrakowWIOSAKra6117", for example. The metadata "Stary Kod stacji" field
//	lists every superseded code of a station, comma separated. Older archives
//	use the old codes; [Resolver] rewrites them to the current code.
//
// Timestamp format:
//
//	2015:        "1/1/15 1:00"          month/day/two-digit-year, hour:minute
//	later years: "2018-01-01 01:00:00"  ISO-like; see [FormatFlexible]
//
//	A reading labelled 00:00 closes the previous day: "2021-02-01 00:00:00"
//	is the average of the hour ending at midnight of 31 January. Such rows are
//	moved to 23:59:59 of the previous day (see [CorrectMidnight]) so that day,
//	month and year grouping puts them where they belong.
//
// Readings:
//
//	Concentrations in µg/m³, sometimes with a comma decimal separator ("12,5").
//	Gaps are empty cells or a token recognized by [IsMissingToken]. Anything else
//	that is not a number is treated as missing and counted as invalid.
//
// # Aggregation Conventions
//
// Means always exclude missing cells; a group with no readings has a missing
// mean rather than zero. City means weight each station equally per hour before
// averaging over time. Exceedance days compare a calendar-day mean against the
// WHO 24-hour guideline of 15 µg/m³ ([DefaultThreshold]) with a strict "greater
// than".
package domain
