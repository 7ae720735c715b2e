package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const heliRef = "https://mars.nasa.gov/mars2020-raw-images/pub/ods/surface/sol/00054/ids/edr/browse/heli/HNM_0054_0671129012_000ECM_N0030000HELI00000_000085J_320.jpg"

func TestReferenceFilename(t *testing.T) {
	assert.Equal(t, "HNM_0054_0671129012_000ECM_N0030000HELI00000_000085J_320.jpg", Reference(heliRef).Filename())
	assert.Equal(t, "a.png", Reference("http://x/y/a.png?size=2").Filename())
	assert.Equal(t, "plain", Reference("plain").Filename())
}

func TestReferenceDay(t *testing.T) {
	d, ok := Reference(heliRef).Day()
	require.True(t, ok)
	assert.Equal(t, Day(54), d)

	_, ok = Reference("http://x/no-day/a.png").Day()
	assert.False(t, ok)

	_, ok = Reference("http://x/sol/abc/a.png").Day()
	assert.False(t, ok)
}

func TestDayEncoding(t *testing.T) {
	assert.Equal(t, "sol/00054", Day(54).Fragment())
	assert.Equal(t, "54", Day(54).Key())

	d, err := ParseDay("998")
	require.NoError(t, err)
	assert.Equal(t, Day(998), d)

	_, err = ParseDay("-1")
	assert.Error(t, err)
}

func TestSortKeyUsesSpacecraftClock(t *testing.T) {
	early := Reference("http://x/sol/00054/heli/HNM_0054_0671129012_000ECM_Z.jpg")
	late := Reference("http://x/sol/00054/heli/HNM_0054_0671129100_000ECM_A.jpg")
	assert.Less(t, early.SortKey(), late.SortKey())

	assert.Equal(t, "frame.png", SortKey("frame.png"))
}

func TestTaxonomyLookup(t *testing.T) {
	tax := DefaultTaxonomy()
	in, ok := tax.Instrument("helicopterCameras", "navigationCamera")
	require.True(t, ok)
	assert.Equal(t, "heli/HNM", in.Fragment)

	_, ok = tax.Instrument("helicopterCameras", "missing")
	assert.False(t, ok)
}

func TestLookupVehicle(t *testing.T) {
	v, err := LookupVehicle("ingenuity")
	require.NoError(t, err)
	assert.Equal(t, []string{"helicopterCameras"}, v.Families)

	_, err = LookupVehicle("curiosity")
	assert.Error(t, err)
}

func TestIndexDaysSorted(t *testing.T) {
	idx := Index{"100": {}, "9": {}, "54": {}, "bogus": {}}
	assert.Equal(t, []Day{9, 54, 100}, idx.Days())
}
