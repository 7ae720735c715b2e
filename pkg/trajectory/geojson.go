package trajectory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// FeatureCollection is a GeoJSON feature collection. Members other than
// "type" and "features" (crs, name, bbox...) are kept and written back.
type FeatureCollection struct {
	Type     string
	Features []*Feature
	Extra    map[string]json.RawMessage

	// Dropped lists the positions of null entries in the received features
	// array. They are not written back.
	Dropped []int
}

// Feature is a GeoJSON feature. Geometry is passed through untouched and
// foreign members such as bbox are kept in Extra.
type Feature struct {
	Type       string
	ID         json.RawMessage
	Geometry   json.RawMessage
	Properties map[string]interface{}
	Extra      map[string]json.RawMessage
}

func (fc *FeatureCollection) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}

	fc.Type = "FeatureCollection"
	if raw, ok := members["type"]; ok {
		if err := json.Unmarshal(raw, &fc.Type); err != nil {
			return fmt.Errorf("invalid type member: %w", err)
		}
		delete(members, "type")
	}
	fc.Features = nil
	fc.Dropped = nil
	if raw, ok := members["features"]; ok {
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("invalid features member: %w", err)
		}
		for i, entry := range entries {
			if isNull(entry) {
				fc.Dropped = append(fc.Dropped, i)
				continue
			}
			feature := &Feature{}
			if err := json.Unmarshal(entry, feature); err != nil {
				return fmt.Errorf("invalid feature %d: %w", i, err)
			}
			fc.Features = append(fc.Features, feature)
		}
		delete(members, "features")
	}
	fc.Extra = members
	return nil
}

func (fc FeatureCollection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	typ, err := json.Marshal(fc.Type)
	if err != nil {
		return nil, err
	}
	buf.Write(typ)
	writeMembers(&buf, fc.Extra, "type", "features")

	features := fc.Features
	if features == nil {
		features = []*Feature{}
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`,"features":`)
	buf.Write(raw)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes properties with json.Number so numeric values are
// written back exactly as received.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}

	*f = Feature{Type: "Feature", Properties: make(map[string]interface{})}
	if raw, ok := members["type"]; ok {
		if err := json.Unmarshal(raw, &f.Type); err != nil {
			return fmt.Errorf("invalid type member: %w", err)
		}
	}
	f.ID = members["id"]
	f.Geometry = members["geometry"]
	if raw := members["properties"]; len(raw) > 0 && !isNull(raw) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&f.Properties); err != nil {
			return fmt.Errorf("invalid properties: %w", err)
		}
	}
	for _, k := range []string{"type", "id", "geometry", "properties"} {
		delete(members, k)
	}
	if len(members) > 0 {
		f.Extra = members
	}
	return nil
}

func (f Feature) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	typ, err := json.Marshal(f.Type)
	if err != nil {
		return nil, err
	}
	buf.Write(typ)
	if len(f.ID) > 0 {
		buf.WriteString(`,"id":`)
		buf.Write(f.ID)
	}
	buf.WriteString(`,"geometry":`)
	if len(f.Geometry) > 0 {
		buf.Write(f.Geometry)
	} else {
		buf.WriteString("null")
	}
	props, err := json.Marshal(f.Properties)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`,"properties":`)
	buf.Write(props)
	writeMembers(&buf, f.Extra, "type", "id", "geometry", "properties")
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeMembers appends extra members in key order, skipping reserved names
func writeMembers(buf *bytes.Buffer, extra map[string]json.RawMessage, reserved ...string) {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if !slices.Contains(reserved, k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		name, _ := json.Marshal(k)
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(extra[k])
	}
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
