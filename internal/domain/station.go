package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// UnknownLabel is the city or region label used for codes absent from metadata.
const UnknownLabel = "Nieznane"

var (
	// ErrLegacyCodeConflict means one legacy code is claimed by two stations.
	ErrLegacyCodeConflict = errors.New("legacy code maps to more than one station")

	// ErrDuplicateStation means a canonical code appears in two metadata records.
	ErrDuplicateStation = errors.New("duplicate canonical station code")

	// ErrMissingStationCode means a metadata record has no canonical code.
	ErrMissingStationCode = errors.New("metadata record without station code")

	// ErrLegacyIsCanonical means a legacy code of one station is the canonical
	// code of another, so the identifier names two stations.
	ErrLegacyIsCanonical = errors.New("legacy code is another station's canonical code")
)

// Station is one metadata record.
type Station struct {
	Code        string
	LegacyCodes string // comma separated, as published
	City        string
	Region      string
}

// Conflict describes one metadata integrity violation.
type Conflict struct {
	Err    error
	Code   string   // offending legacy or canonical code
	Owners []string // canonical codes involved
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s (%s)", c.Err, c.Code, strings.Join(c.Owners, ", "))
}

// IntegrityError collects every conflict found while building a Resolver.
type IntegrityError struct {
	Conflicts []Conflict
}

func (e *IntegrityError) Error() string {
	parts := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		parts[i] = c.String()
	}
	return "station metadata integrity: " + strings.Join(parts, "; ")
}

// Is matches the sentinel of any contained conflict.
func (e *IntegrityError) Is(target error) bool {
	for _, c := range e.Conflicts {
		if c.Err == target {
			return true
		}
	}
	return false
}

// Resolver holds the lookup tables built from station metadata. It is
// read-only after NewResolver returns and safe for concurrent use.
type Resolver struct {
	legacy map[string]string // legacy code -> canonical code
	city   map[string]string // canonical code -> city
	region map[string]string // canonical code -> region
}

// NewResolver builds the legacy, city and region lookups. Every integrity
// violation is reported at once in an *IntegrityError; no partial resolver is
// returned in that case.
func NewResolver(stations []Station) (*Resolver, error) {
	r := &Resolver{
		legacy: make(map[string]string),
		city:   make(map[string]string, len(stations)),
		region: make(map[string]string),
	}

	var conflicts []Conflict
	for i, s := range stations {
		code := strings.TrimSpace(s.Code)
		if code == "" {
			conflicts = append(conflicts, Conflict{
				Err:  ErrMissingStationCode,
				Code: fmt.Sprintf("record %d", i+1),
			})
			continue
		}
		if _, dup := r.city[code]; dup {
			conflicts = append(conflicts, Conflict{Err: ErrDuplicateStation, Code: code, Owners: []string{code}})
			continue
		}
		r.city[code] = strings.TrimSpace(s.City)
		if region := strings.TrimSpace(s.Region); region != "" {
			r.region[code] = region
		}

		for _, old := range SplitLegacyCodes(s.LegacyCodes) {
			owner, seen := r.legacy[old]
			if seen && owner != code {
				conflicts = append(conflicts, Conflict{Err: ErrLegacyCodeConflict, Code: old, Owners: []string{owner, code}})
				continue
			}
			r.legacy[old] = code
		}
	}

	// Checked once every canonical code is known, so record order does not matter.
	olds := make([]string, 0, len(r.legacy))
	for old := range r.legacy {
		olds = append(olds, old)
	}
	sort.Strings(olds)
	for _, old := range olds {
		owner := r.legacy[old]
		if _, canonical := r.city[old]; canonical && old != owner {
			conflicts = append(conflicts, Conflict{Err: ErrLegacyIsCanonical, Code: old, Owners: []string{owner, old}})
		}
	}

	if len(conflicts) > 0 {
		return nil, &IntegrityError{Conflicts: conflicts}
	}
	return r, nil
}

// SplitLegacyCodes splits a comma-separated legacy code field, trimming each
// token and dropping empty ones.
func SplitLegacyCodes(field string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	parts := strings.Split(field, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}

// Canonical returns the current code for a legacy code. Codes that are not
// legacy codes (already canonical, or unknown) are returned unchanged.
func (r *Resolver) Canonical(code string) string {
	if canonical, ok := r.legacy[code]; ok {
		return canonical
	}
	return code
}

// City returns the city of a canonical code, or UnknownLabel.
func (r *Resolver) City(code string) string {
	if city, ok := r.city[code]; ok && city != "" {
		return city
	}
	return UnknownLabel
}

// Region returns the region of a canonical code, or UnknownLabel.
func (r *Resolver) Region(code string) string {
	if region, ok := r.region[code]; ok {
		return region
	}
	return UnknownLabel
}

// Known reports whether a canonical code has a metadata record.
func (r *Resolver) Known(code string) bool {
	_, ok := r.city[code]
	return ok
}

// HasRegions reports whether any metadata record carried a region.
func (r *Resolver) HasRegions() bool {
	return len(r.region) > 0
}

// LegacyMap returns a copy of the legacy -> canonical lookup.
func (r *Resolver) LegacyMap() map[string]string {
	out := make(map[string]string, len(r.legacy))
	for k, v := range r.legacy {
		out[k] = v
	}
	return out
}

// CityMap returns a copy of the canonical -> city lookup.
func (r *Resolver) CityMap() map[string]string {
	out := make(map[string]string, len(r.city))
	for k, v := range r.city {
		out[k] = v
	}
	return out
}

// Unmapped returns the sorted, de-duplicated codes that have no metadata
// record after legacy resolution.
func (r *Resolver) Unmapped(codes []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range codes {
		c = r.Canonical(c)
		if r.Known(c) {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
