package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Reference is an image URL as found in the raw-image catalog. Its path
// carries the day ("sol/00054") and an instrument fragment ("heli/HNM").
type Reference string

// Filename returns the trailing path segment without any query string.
func (r Reference) Filename() string {
	s := string(r)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

const dayMarker = "sol/"

// Day parses the positional day segment. ok is false when the reference
// carries no well-formed "sol/NNNNN" segment.
func (r Reference) Day() (Day, bool) {
	s := string(r)
	i := strings.Index(s, dayMarker)
	if i < 0 {
		return 0, false
	}
	rest := s[i+len(dayMarker):]
	end := strings.IndexByte(rest, '/')
	if end < 0 {
		end = len(rest)
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil || n < 0 || end == 0 {
		return 0, false
	}
	return Day(n), true
}

// SortKey orders frames of one day by the spacecraft clock embedded in the
// filename (third underscore-separated field), falling back to the name.
func (r Reference) SortKey() string {
	return SortKey(r.Filename())
}

const clockWidth = 20

// SortKey derives a frame ordering key from a bare filename.
func SortKey(filename string) string {
	parts := strings.Split(filename, "_")
	if len(parts) >= 3 && isDigits(parts[2]) {
		clock := parts[2]
		if len(clock) < clockWidth {
			clock = strings.Repeat("0", clockWidth-len(clock)) + clock
		}
		return clock + "_" + filename
	}
	return filename
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Day is a mission day index (sol).
type Day int

// Key is the string form used as a map key in persisted documents.
func (d Day) Key() string { return strconv.Itoa(int(d)) }

// Fragment is the zero-padded path encoding used inside references.
func (d Day) Fragment() string { return fmt.Sprintf("%s%05d", dayMarker, int(d)) }

// ParseDay parses a persisted day key.
func ParseDay(key string) (Day, error) {
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid day key %q", key)
	}
	return Day(n), nil
}

// Instrument is a leaf of the taxonomy.
type Instrument struct {
	Name     string
	Fragment string
}

// Family groups instruments. Instrument order is the match order.
type Family struct {
	Name        string
	Instruments []Instrument
}

// Taxonomy is the ordered two-level family/instrument enumeration.
type Taxonomy []Family

// Instrument finds a leaf by family and instrument name.
func (t Taxonomy) Instrument(family, instrument string) (Instrument, bool) {
	for _, f := range t {
		if f.Name != family {
			continue
		}
		for _, in := range f.Instruments {
			if in.Name == instrument {
				return in, true
			}
		}
	}
	return Instrument{}, false
}

// DefaultTaxonomy returns the Mars 2020 camera taxonomy.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		{Name: "engineeringCameras", Instruments: []Instrument{
			{Name: "navigationCameraLeft", Fragment: "ncam/NLF"},
			{Name: "navigationCameraRight", Fragment: "ncam/NRF"},
			{Name: "frontHazcamLeft", Fragment: "fcam/FLF"},
			{Name: "frontHazcamRight", Fragment: "fcam/FRF"},
			{Name: "rearHazcamLeft", Fragment: "rcam/RLF"},
			{Name: "rearHazcamRight", Fragment: "rcam/RRF"},
			{Name: "sampleCachingSystem", Fragment: "cachecam/CCF"},
		}},
		{Name: "scienceCameras", Instruments: []Instrument{
			{Name: "mastcamZLeft", Fragment: "zcam/ZL"},
			{Name: "mastcamZRight", Fragment: "zcam/ZR"},
			{Name: "medaSkyCam", Fragment: "meda/WSM"},
			{Name: "pixlMicroContextCamera", Fragment: "pixl/PC"},
			{Name: "sherlocWatson", Fragment: "shrlc/SIF"},
			{Name: "sherlocContextImage", Fragment: "shrlc/SC"},
			{Name: "superCamRemoteMicroImager", Fragment: "scam/LRF"},
		}},
		{Name: "helicopterCameras", Instruments: []Instrument{
			{Name: "navigationCamera", Fragment: "heli/HNM"},
			{Name: "colorCamera", Fragment: "heli/HSF"},
		}},
	}
}

// Vehicle selects the families relevant to one platform.
type Vehicle struct {
	Name     string
	Families []string
}

var (
	Perseverance = Vehicle{Name: "perseverance", Families: []string{"engineeringCameras", "scienceCameras"}}
	Ingenuity    = Vehicle{Name: "ingenuity", Families: []string{"helicopterCameras"}}
)

// LookupVehicle resolves a vehicle by name.
func LookupVehicle(name string) (Vehicle, error) {
	switch name {
	case Perseverance.Name:
		return Perseverance, nil
	case Ingenuity.Name:
		return Ingenuity, nil
	default:
		return Vehicle{}, fmt.Errorf("unknown vehicle %q", name)
	}
}

// DayImages maps family -> instrument -> references for a day or day range.
type DayImages map[string]map[string][]Reference

// Count returns the number of references held.
func (d DayImages) Count() int {
	n := 0
	for _, instruments := range d {
		for _, refs := range instruments {
			n += len(refs)
		}
	}
	return n
}

// Index is the classified index keyed by Day.Key().
type Index map[string]DayImages

// Days returns the index days in ascending order, ignoring malformed keys.
func (idx Index) Days() []Day {
	days := make([]Day, 0, len(idx))
	for key := range idx {
		if d, err := ParseDay(key); err == nil {
			days = append(days, d)
		}
	}
	slices.Sort(days)
	return days
}
