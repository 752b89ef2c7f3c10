package domain

import (
	"math"
	"strconv"
	"strings"
)

// Value is a concentration reading that may be missing.
type Value struct {
	Float float64
	Valid bool
}

// Missing is the explicit no-value marker.
var Missing = Value{}

// Some wraps a finite reading. Non-finite input yields Missing.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing
	}
	return Value{Float: v, Valid: true}
}

// missingTokens are the spellings upstream archives and pandas exports use for
// an absent reading. Compared after trimming and lower-casing.
var missingTokens = map[string]struct{}{
	"":        {},
	"-":       {},
	"--":      {},
	"na":      {},
	"n/a":     {},
	"nan":     {},
	"null":    {},
	"none":    {},
	"brak":    {},
	"b.d.":    {},
	"#n/a":    {},
	"<na>":    {},
	"#value!": {},
}

// IsMissingToken reports whether s is a recognized spelling of "no reading".
func IsMissingToken(s string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseValue converts a raw cell to a Value. The second result is false when the
// cell was neither a number nor a recognized missing token; the returned Value
// is Missing in that case too.
func ParseValue(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if IsMissingToken(s) {
		return Missing, true
	}
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	// Comma decimals ("12,5") appear in some vintages; a comma is never a
	// thousands separator for hourly concentrations.
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Missing, false
	}
	v := Some(f)
	return v, v.Valid
}

// FormatValue renders a Value for the persisted table: missing is an empty string.
func FormatValue(v Value) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}
