package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWarsaw = "Warszawa"
	testKrakow = "Kraków"
	testGdansk = "Gdańsk"
)

func sampleStations() []Station {
	return []Station{
		{Code: "stacja1", LegacyCodes: "old1, old2", City: testWarsaw, Region: "mazowieckie"},
		{Code: "stacja2", City: testKrakow, Region: "małopolskie"},
		{Code: "stacja3", LegacyCodes: "old3", City: testGdansk},
	}
}

func TestNewResolver(t *testing.T) {
	r, err := NewResolver(sampleStations())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"old1": "stacja1",
		"old2": "stacja1",
		"old3": "stacja3",
	}, r.LegacyMap())
	assert.Equal(t, map[string]string{
		"stacja1": testWarsaw,
		"stacja2": testKrakow,
		"stacja3": testGdansk,
	}, r.CityMap())
	assert.True(t, r.HasRegions())
}

func TestNewResolver_Whitespace(t *testing.T) {
	r, err := NewResolver([]Station{
		{Code: "stacja1", LegacyCodes: " old1, old2 ", City: " Warszawa "},
	})
	require.NoError(t, err)

	legacy := r.LegacyMap()
	assert.Equal(t, "stacja1", legacy["old1"])
	assert.Equal(t, "stacja1", legacy["old2"])
	assert.NotContains(t, legacy, " old1 ")
	assert.Equal(t, testWarsaw, r.City("stacja1"))
}

func TestNewResolver_NoLegacyCodes(t *testing.T) {
	stations := sampleStations()
	for i := range stations {
		stations[i].LegacyCodes = ""
	}

	r, err := NewResolver(stations)
	require.NoError(t, err)
	assert.Empty(t, r.LegacyMap())
	assert.Equal(t, testWarsaw, r.City("stacja1"))
	assert.Equal(t, testKrakow, r.City("stacja2"))
}

func TestNewResolver_LegacyConflict(t *testing.T) {
	_, err := NewResolver([]Station{
		{Code: "A", LegacyCodes: "old1", City: testWarsaw},
		{Code: "B", LegacyCodes: "old2, old1", City: testKrakow},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLegacyCodeConflict))

	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	require.Len(t, ie.Conflicts, 1)
	assert.Equal(t, "old1", ie.Conflicts[0].Code)
	assert.Equal(t, []string{"A", "B"}, ie.Conflicts[0].Owners)
	assert.Contains(t, err.Error(), "old1")
}

func TestNewResolver_DuplicateStation(t *testing.T) {
	_, err := NewResolver([]Station{
		{Code: "A", City: testWarsaw},
		{Code: "A", City: testKrakow},
		{Code: " ", City: testGdansk},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateStation)
	assert.ErrorIs(t, err, ErrMissingStationCode)
	assert.NotErrorIs(t, err, ErrLegacyCodeConflict)
}

func TestNewResolver_RepeatedLegacyCodeSameOwner(t *testing.T) {
	r, err := NewResolver([]Station{
		{Code: "A", LegacyCodes: "old1,old1, A", City: testWarsaw},
	})
	require.NoError(t, err)
	assert.Equal(t, "A", r.Canonical("old1"))
	assert.Equal(t, "A", r.Canonical("A"))
}

func TestSplitLegacyCodes(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"old1", []string{"old1"}},
		{" old1 , old2 ", []string{"old1", "old2"}},
		{"old1,,  ,old2,", []string{"old1", "old2"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLegacyCodes(tt.in))
		})
	}
}

func TestResolver_UnknownFallbacks(t *testing.T) {
	r, err := NewResolver(sampleStations())
	require.NoError(t, err)

	assert.Equal(t, "not-a-code", r.Canonical("not-a-code"))
	assert.Equal(t, UnknownLabel, r.City("not-a-code"))
	assert.Equal(t, UnknownLabel, r.Region("stacja3"))
	assert.Equal(t, "mazowieckie", r.Region("stacja1"))
	assert.False(t, r.Known("not-a-code"))
}

func TestResolver_Unmapped(t *testing.T) {
	r, err := NewResolver(sampleStations())
	require.NoError(t, err)

	got := r.Unmapped([]string{"stacja1", "zz", "old1", "aa", "zz"})
	assert.Equal(t, []string{"aa", "zz"}, got)
	assert.Empty(t, r.Unmapped([]string{"old3", "stacja2"}))
}

func TestNewResolver_LegacyIsCanonical(t *testing.T) {
	// B is both a station and a legacy code of A; C chains to B.
	_, err := NewResolver([]Station{
		{Code: "A", LegacyCodes: "B", City: "X"},
		{Code: "B", LegacyCodes: "C", City: "Y"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLegacyIsCanonical)
	assert.NotErrorIs(t, err, ErrLegacyCodeConflict)

	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	require.Len(t, ie.Conflicts, 1)
	assert.Equal(t, "B", ie.Conflicts[0].Code)
	assert.Equal(t, []string{"A", "B"}, ie.Conflicts[0].Owners)
}

func TestNewResolver_LegacyIsCanonicalAnyOrder(t *testing.T) {
	_, err := NewResolver([]Station{
		{Code: "B", LegacyCodes: "C", City: "Y"},
		{Code: "A", LegacyCodes: "B", City: "X"},
	})
	assert.ErrorIs(t, err, ErrLegacyIsCanonical)
}
