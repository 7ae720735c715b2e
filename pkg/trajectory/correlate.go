package trajectory

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"marsfeed/pkg/catalog"
	"marsfeed/pkg/config"
	errs "marsfeed/pkg/errors"
	"marsfeed/pkg/logger"
	"marsfeed/pkg/models"
)

// Document kinds
const (
	KindCurrent   = "current"
	KindWaypoints = "waypoints"
	KindPath      = "path"
	KindFlight    = "flight"
)

// Property names read from and written to features
const (
	PropDay      = "sol"
	PropCode     = "RMC"
	PropFromCode = "fromRMC"
	PropToCode   = "toRMC"
	PropImages   = "images"
	PropInitDay  = "initSol"
	PropEndDay   = "endSol"
)

// ResolutionError reports a path segment whose boundary codes did not map
// to exactly one waypoint each.
type ResolutionError struct {
	Document    string
	Feature     int
	FromCode    string
	ToCode      string
	FromMatches int
	ToMatches   int
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s feature %d: cannot resolve day range %q..%q (%d and %d waypoint matches)",
		e.Document, e.Feature, e.FromCode, e.ToCode, e.FromMatches, e.ToMatches)
}

// Report is the outcome of one correlation run
type Report struct {
	Documents  map[string]*FeatureCollection
	Enriched   int
	Unresolved []*ResolutionError
	Failures   []errs.ItemFailure
}

// Correlator attaches classified images to trajectory features
type Correlator struct {
	index  models.Index
	docs   []config.DocumentConfig
	strict bool
	logger logger.Logger
}

// NewCorrelator creates a correlator. In strict mode the first unresolved
// segment aborts the run; otherwise it is skipped and reported.
func NewCorrelator(index models.Index, docs []config.DocumentConfig, strict bool, log logger.Logger) *Correlator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Correlator{index: index, docs: docs, strict: strict, logger: log}
}

// Correlate enriches every configured document found in fetched. The
// collections are modified in place and returned in the report.
func (c *Correlator) Correlate(fetched map[string]*FeatureCollection) (*Report, error) {
	report := &Report{Documents: make(map[string]*FeatureCollection, len(c.docs))}

	for _, doc := range c.docs {
		fc, ok := fetched[doc.Name]
		if !ok || fc == nil {
			return nil, fmt.Errorf("document %s was not fetched", doc.Name)
		}
		vehicle, err := models.LookupVehicle(doc.Vehicle)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.Name, err)
		}
		for _, pos := range fc.Dropped {
			report.Failures = append(report.Failures, errs.ItemFailure{
				Stage: "correlate",
				Item:  fmt.Sprintf("%s#%d", doc.Name, pos),
				Error: "null feature dropped",
			})
		}
		if len(fc.Dropped) > 0 {
			c.logger.WarnWithFields("Dropped null features", map[string]interface{}{
				"document": doc.Name,
				"count":    len(fc.Dropped),
			})
		}

		switch doc.Kind {
		case KindCurrent, KindWaypoints, KindFlight:
			c.enrichPoints(doc, vehicle, fc, report)
		case KindPath:
			waypoints, ok := fetched[doc.Waypoints]
			if !ok || waypoints == nil {
				return nil, fmt.Errorf("document %s: waypoints %s were not fetched", doc.Name, doc.Waypoints)
			}
			if err := c.enrichSegments(doc, vehicle, fc, waypoints, report); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("document %s has unknown kind %q", doc.Name, doc.Kind)
		}
		report.Documents[doc.Name] = fc
	}
	return report, nil
}

func (c *Correlator) enrichPoints(doc config.DocumentConfig, vehicle models.Vehicle, fc *FeatureCollection, report *Report) {
	for i, feature := range fc.Features {
		day, ok := dayOf(feature.Properties[PropDay])
		if !ok {
			c.logger.WarnWithFields("Feature has no usable day", map[string]interface{}{
				"document": doc.Name,
				"feature":  i,
			})
			report.Failures = append(report.Failures, errs.ItemFailure{
				Stage: "correlate",
				Item:  fmt.Sprintf("%s#%d", doc.Name, i),
				Error: "missing or invalid sol",
			})
			continue
		}
		if doc.SkipDayZero && day == 0 {
			continue
		}
		feature.Properties[PropImages] = catalog.ForVehicle(vehicle, catalog.Lookup(c.index, day))
		report.Enriched++
	}
}

func (c *Correlator) enrichSegments(doc config.DocumentConfig, vehicle models.Vehicle, fc, waypoints *FeatureCollection, report *Report) error {
	for i, feature := range fc.Features {
		from, to := StitchCodes(fc.Features, i)
		d0, d1, err := ResolveDayRange(waypoints, from, to)
		if err != nil {
			var resErr *ResolutionError
			if !errors.As(err, &resErr) {
				return err
			}
			resErr.Document = doc.Name
			resErr.Feature = i
			if c.strict {
				return resErr
			}
			c.logger.WarnWithFields("Skipping unresolved segment", map[string]interface{}{
				"document": doc.Name,
				"feature":  i,
				"from":     from,
				"to":       to,
			})
			report.Unresolved = append(report.Unresolved, resErr)
			report.Failures = append(report.Failures, errs.ItemFailure{
				Stage: "correlate",
				Item:  fmt.Sprintf("%s#%d", doc.Name, i),
				Error: resErr.Error(),
			})
			continue
		}

		feature.Properties[PropImages] = catalog.ForVehicle(vehicle, catalog.Range(c.index, d0, d1))
		feature.Properties[PropInitDay] = int(d0)
		feature.Properties[PropEndDay] = int(d1)
		report.Enriched++
	}
	return nil
}

// StitchCodes returns the boundary codes of segment i. A blank fromCode
// takes the previous segment's toCode and a blank toCode takes the next
// segment's fromCode, as received.
func StitchCodes(segments []*Feature, i int) (from, to string) {
	from = codeOf(segments[i].Properties[PropFromCode])
	to = codeOf(segments[i].Properties[PropToCode])
	if from == "" && i > 0 {
		from = codeOf(segments[i-1].Properties[PropToCode])
	}
	if to == "" && i+1 < len(segments) {
		to = codeOf(segments[i+1].Properties[PropFromCode])
	}
	return from, to
}

// ResolveDayRange maps two boundary codes to days through the waypoint
// features. Each code must match exactly one waypoint.
func ResolveDayRange(waypoints *FeatureCollection, from, to string) (models.Day, models.Day, error) {
	fromDays := daysForCode(waypoints, from)
	toDays := daysForCode(waypoints, to)
	if len(fromDays) != 1 || len(toDays) != 1 {
		return 0, 0, &ResolutionError{
			FromCode:    from,
			ToCode:      to,
			FromMatches: len(fromDays),
			ToMatches:   len(toDays),
		}
	}
	return fromDays[0], toDays[0], nil
}

func daysForCode(waypoints *FeatureCollection, code string) []models.Day {
	if code == "" {
		return nil
	}
	var days []models.Day
	for _, wp := range waypoints.Features {
		if codeOf(wp.Properties[PropCode]) != code {
			continue
		}
		day, ok := dayOf(wp.Properties[PropDay])
		if !ok {
			continue
		}
		days = append(days, day)
	}
	return days
}

// codeOf normalises a motion-counter code, which may arrive as a string or
// a number, to its trimmed text form.
func codeOf(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(c)
	case json.Number:
		return c.String()
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case int:
		return strconv.Itoa(c)
	default:
		return strings.TrimSpace(fmt.Sprint(c))
	}
}

func dayOf(v interface{}) (models.Day, bool) {
	var f float64
	switch d := v.(type) {
	case json.Number:
		n, err := d.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case float64:
		f = d
	case int:
		f = float64(d)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(d))
		if err != nil {
			return 0, false
		}
		f = float64(n)
	default:
		return 0, false
	}
	if f < 0 || f != math.Trunc(f) {
		return 0, false
	}
	return models.Day(f), true
}
