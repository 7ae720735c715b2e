package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"marsfeed/pkg/models"
)

func ref(day int, fragment, name string) models.Reference {
	return models.Reference(fmt.Sprintf("https://mars.nasa.gov/raw/pub/ods/surface/sol/%05d/ids/edr/browse/%s%s.png", day, fragment, name))
}

func newClassifier() *Classifier {
	return NewClassifier(models.DefaultTaxonomy(), 2, 998)
}

func TestInsertKeepsIndependentPartitions(t *testing.T) {
	index := make(models.Index)
	a := []models.Reference{"a"}
	b := []models.Reference{"b"}
	c := []models.Reference{"c"}

	Insert(index, 5, "engineeringCameras", "frontHazcamLeft", a)
	Insert(index, 6, "scienceCameras", "mastcamZLeft", b)
	Insert(index, 5, "scienceCameras", "mastcamZRight", c)

	assert.Equal(t, a, index["5"]["engineeringCameras"]["frontHazcamLeft"])
	assert.Equal(t, b, index["6"]["scienceCameras"]["mastcamZLeft"])
	assert.Equal(t, c, index["5"]["scienceCameras"]["mastcamZRight"])

	// leaf overwrite leaves siblings alone
	Insert(index, 5, "engineeringCameras", "frontHazcamLeft", b)
	assert.Equal(t, b, index["5"]["engineeringCameras"]["frontHazcamLeft"])
	assert.Equal(t, c, index["5"]["scienceCameras"]["mastcamZRight"])
}

func TestClassify(t *testing.T) {
	refs := []models.Reference{
		ref(54, "heli/HNM", "_1"),
		ref(54, "ncam/NLF", "_1"),
		ref(54, "heli/HNM", "_2"),
		ref(55, "zcam/ZL", "_1"),
		ref(1, "heli/HNM", "_early"),
		ref(999, "heli/HNM", "_late"),
		ref(56, "unknown/XX", "_1"),
		"https://mars.nasa.gov/no-day/heli/HNM_1.png",
	}

	index := newClassifier().Classify(refs)

	require.Len(t, index, 2)
	assert.Equal(t, []models.Reference{refs[0], refs[2]}, index["54"]["helicopterCameras"]["navigationCamera"])
	assert.Equal(t, []models.Reference{refs[1]}, index["54"]["engineeringCameras"]["navigationCameraLeft"])
	assert.Equal(t, []models.Reference{refs[3]}, index["55"]["scienceCameras"]["mastcamZLeft"])
	assert.NotContains(t, index, "1")
	assert.NotContains(t, index, "56")
	assert.NotContains(t, index["55"], "helicopterCameras")
}

func TestClassifyFirstMatchWins(t *testing.T) {
	tax := models.Taxonomy{
		{Name: "wide", Instruments: []models.Instrument{{Name: "prefix", Fragment: "cam/Z"}}},
		{Name: "narrow", Instruments: []models.Instrument{{Name: "exact", Fragment: "cam/ZL"}}},
	}
	r := ref(10, "cam/ZL", "_1")

	index := NewClassifier(tax, 0, 100).Classify([]models.Reference{r})

	assert.Equal(t, []models.Reference{r}, index["10"]["wide"]["prefix"])
	assert.NotContains(t, index["10"], "narrow")
}

func TestClassifyMonotonicGrowth(t *testing.T) {
	l2 := []models.Reference{
		ref(10, "heli/HNM", "_a"),
		ref(11, "ncam/NRF", "_a"),
		ref(10, "heli/HNM", "_b"),
		ref(10, "heli/HSF", "_a"),
		ref(11, "ncam/NRF", "_b"),
		ref(12, "pixl/PC", "_a"),
	}
	l1 := []models.Reference{l2[0], l2[2], l2[4]}

	c := newClassifier()
	small := c.Classify(l1)
	large := c.Classify(l2)

	for day, families := range small {
		for family, instruments := range families {
			for instrument, refs := range instruments {
				assertSubsequence(t, refs, large[day][family][instrument])
			}
		}
	}
}

func assertSubsequence(t *testing.T, sub, full []models.Reference) {
	t.Helper()
	i := 0
	for _, r := range full {
		if i < len(sub) && sub[i] == r {
			i++
		}
	}
	assert.Equal(t, len(sub), i, "%v is not an ordered subsequence of %v", sub, full)
}

func sampleIndex() models.Index {
	return newClassifier().Classify([]models.Reference{
		ref(10, "heli/HNM", "_a"),
		ref(11, "heli/HNM", "_b"),
		ref(11, "ncam/NLF", "_b"),
		ref(12, "heli/HNM", "_c"),
		ref(12, "heli/HNM", "_d"),
	})
}

func TestLookupAbsentDay(t *testing.T) {
	got := Lookup(sampleIndex(), 400)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRangeOfOneEqualsLookup(t *testing.T) {
	index := sampleIndex()
	for _, d := range []models.Day{10, 11, 12, 13} {
		assert.Equal(t, Lookup(index, d), Range(index, d, d))
	}
}

func TestRangeConcatenatesDays(t *testing.T) {
	index := sampleIndex()

	got := Range(index, 10, 12)

	want := append(append(append([]models.Reference{},
		Lookup(index, 10)["helicopterCameras"]["navigationCamera"]...),
		Lookup(index, 11)["helicopterCameras"]["navigationCamera"]...),
		Lookup(index, 12)["helicopterCameras"]["navigationCamera"]...)
	assert.Equal(t, want, got["helicopterCameras"]["navigationCamera"])
	assert.Len(t, got["engineeringCameras"]["navigationCameraLeft"], 1)

	// split ranges merged afterwards give the same leaves
	left := Range(index, 10, 11)
	right := Range(index, 12, 12)
	combined := make(models.DayImages)
	mergeInto(combined, left)
	mergeInto(combined, right)
	assert.Equal(t, got, combined)
}

func TestRangeDoesNotAliasIndex(t *testing.T) {
	index := sampleIndex()
	got := Range(index, 12, 12)
	got["helicopterCameras"]["navigationCamera"][0] = "mutated"

	assert.NotEqual(t, models.Reference("mutated"), index["12"]["helicopterCameras"]["navigationCamera"][0])
}

func TestRangeInverted(t *testing.T) {
	assert.Empty(t, Range(sampleIndex(), 12, 10))
}

func TestForVehicle(t *testing.T) {
	images := Lookup(sampleIndex(), 11)

	heli := ForVehicle(models.Ingenuity, images)
	assert.Contains(t, heli, "helicopterCameras")
	assert.NotContains(t, heli, "engineeringCameras")

	rover := ForVehicle(models.Perseverance, images)
	assert.Contains(t, rover, "engineeringCameras")
	assert.NotContains(t, rover, "scienceCameras")
}
