// Package catalog builds and queries the day/family/instrument index of
// raw-image references.
package catalog

import (
	"strings"

	"marsfeed/pkg/models"
)

// Insert stores refs at index[day][family][instrument], creating the day and
// family levels when absent. Only the leaf is replaced.
func Insert(index models.Index, day models.Day, family, instrument string, refs []models.Reference) {
	images, ok := index[day.Key()]
	if !ok {
		images = make(models.DayImages)
		index[day.Key()] = images
	}
	instruments, ok := images[family]
	if !ok {
		instruments = make(map[string][]models.Reference)
		images[family] = instruments
	}
	instruments[instrument] = refs
}

// Classifier partitions references by day and instrument.
type Classifier struct {
	taxonomy models.Taxonomy
	minDay   models.Day
	maxDay   models.Day
}

// NewClassifier creates a classifier scanning days in [minDay, maxDay].
func NewClassifier(taxonomy models.Taxonomy, minDay, maxDay int) *Classifier {
	return &Classifier{
		taxonomy: taxonomy,
		minDay:   models.Day(minDay),
		maxDay:   models.Day(maxDay),
	}
}

type leafKey struct {
	day        models.Day
	family     string
	instrument string
}

// Classify builds a fresh index. A reference lands in the first instrument,
// in taxonomy order, whose fragment it contains; references outside the day
// bounds or matching no instrument are dropped. Encounter order is kept and
// empty leaves never appear.
func (c *Classifier) Classify(refs []models.Reference) models.Index {
	leaves := make(map[leafKey][]models.Reference)
	var order []leafKey

	for _, ref := range refs {
		day, ok := ref.Day()
		if !ok || day < c.minDay || day > c.maxDay {
			continue
		}
		family, instrument, ok := c.match(ref)
		if !ok {
			continue
		}
		key := leafKey{day: day, family: family, instrument: instrument}
		if _, seen := leaves[key]; !seen {
			order = append(order, key)
		}
		leaves[key] = append(leaves[key], ref)
	}

	index := make(models.Index)
	for _, key := range order {
		Insert(index, key.day, key.family, key.instrument, leaves[key])
	}
	return index
}

func (c *Classifier) match(ref models.Reference) (string, string, bool) {
	s := string(ref)
	for _, family := range c.taxonomy {
		for _, in := range family.Instruments {
			if strings.Contains(s, in.Fragment) {
				return family.Name, in.Name, true
			}
		}
	}
	return "", "", false
}

// Lookup returns a copy of the images for one day, empty when absent.
func Lookup(index models.Index, day models.Day) models.DayImages {
	out := make(models.DayImages)
	mergeInto(out, index[day.Key()])
	return out
}

// Range merges every day in [d0, d1], concatenating instrument lists in
// ascending day order. d0 > d1 yields an empty result.
func Range(index models.Index, d0, d1 models.Day) models.DayImages {
	out := make(models.DayImages)
	for d := d0; d <= d1; d++ {
		mergeInto(out, index[d.Key()])
	}
	return out
}

func mergeInto(dst, src models.DayImages) {
	for family, instruments := range src {
		for instrument, refs := range instruments {
			if len(refs) == 0 {
				continue
			}
			if dst[family] == nil {
				dst[family] = make(map[string][]models.Reference)
			}
			merged := make([]models.Reference, 0, len(dst[family][instrument])+len(refs))
			merged = append(merged, dst[family][instrument]...)
			dst[family][instrument] = append(merged, refs...)
		}
	}
}

// ForVehicle keeps only the families belonging to vehicle.
func ForVehicle(vehicle models.Vehicle, images models.DayImages) models.DayImages {
	out := make(models.DayImages)
	for _, family := range vehicle.Families {
		if instruments, ok := images[family]; ok {
			out[family] = instruments
		}
	}
	return out
}

// References returns the refs for one instrument of one day.
func References(index models.Index, day models.Day, family, instrument string) []models.Reference {
	return index[day.Key()][family][instrument]
}
