package calmroute

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSegmentsGeoJSON(t *testing.T) {
	content := `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"properties": {"name": "Камергерский переулок"},
				"geometry": {
					"type": "LineString",
					"coordinates": [[37.6000, 55.7500], [37.6030, 55.7500]]
				}
			},
			{
				"type": "Feature",
				"properties": {},
				"geometry": {
					"type": "MultiLineString",
					"coordinates": [
						[[37.6000, 55.7510], [37.6030, 55.7510]],
						[[37.6000, 55.7520], [37.6030, 55.7520]]
					]
				}
			},
			{
				"type": "Feature",
				"properties": {},
				"geometry": {
					"type": "Point",
					"coordinates": [37.6000, 55.7500]
				}
			}
		]
	}`
	fileName := filepath.Join(t.TempDir(), "streets.geojson")
	if err := os.WriteFile(fileName, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	segments, err := LoadSegmentsGeoJSON(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 3 {
		t.Fatalf("LineString and both MultiLineString parts must load: expected 3 segments, got %d", len(segments))
	}
	if segments[0].StreetName != "Камергерский переулок" {
		t.Errorf("Street name must be parsed, but got '%s'", segments[0].StreetName)
	}
	if segments[0].Geom[0] != (GeoPoint{Lat: 55.7500, Lon: 37.6000}) {
		t.Errorf("Coordinates must be read in [lon, lat] order, but got %s", segments[0].Geom[0])
	}
}

func TestOSMSegmentSourceXML(t *testing.T) {
	content := `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
	<node id="1" version="1" lat="55.7500" lon="37.6000"/>
	<node id="2" version="1" lat="55.7500" lon="37.6010"/>
	<node id="3" version="1" lat="55.7500" lon="37.6020"/>
	<node id="4" version="1" lat="55.7510" lon="37.6010"/>
	<way id="100" version="1">
		<nd ref="1"/>
		<nd ref="2"/>
		<nd ref="3"/>
		<tag k="highway" v="footway"/>
		<tag k="name" v="Никольская улица"/>
	</way>
	<way id="101" version="1">
		<nd ref="2"/>
		<nd ref="4"/>
		<tag k="highway" v="residential"/>
	</way>
	<way id="102" version="1">
		<nd ref="1"/>
		<nd ref="3"/>
		<tag k="highway" v="motorway"/>
	</way>
</osm>`
	fileName := filepath.Join(t.TempDir(), "extract.osm")
	if err := os.WriteFile(fileName, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	source := NewOSMSegmentSource(fileName, nil, false)
	segments, err := source.Segments(testGraphBBox)
	if err != nil {
		t.Fatal(err)
	}
	// Footway splits at the intersection node '2', residential gives one more
	// segment, motorway is not walkable
	if len(segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(segments))
	}
	if segments[0].StreetName != "Никольская улица" {
		t.Errorf("Way name must be carried to segments, but got '%s'", segments[0].StreetName)
	}
	if segments[0].Geom[len(segments[0].Geom)-1] != (GeoPoint{Lat: 55.7500, Lon: 37.6010}) {
		t.Errorf("First segment must end at intersection node, but ends at %s", segments[0].Geom[len(segments[0].Geom)-1])
	}

	// Segments feed graph construction directly
	graph, err := BuildStreetGraph(StaticSegments(segments), testGraphBBox, defaultSnapToleranceMeters)
	if err != nil {
		t.Fatal(err)
	}
	if graph.NumNodes() != 4 || graph.NumEdges() != 3 {
		t.Errorf("Graph must have 4 nodes and 3 edges, but got %d and %d", graph.NumNodes(), graph.NumEdges())
	}
}

func TestOSMSegmentSourceCustomTags(t *testing.T) {
	source := NewOSMSegmentSource("extract.osm", []string{"footway"}, false)
	if len(source.Tags) != 1 {
		t.Errorf("Custom tag list must replace the default one, but got %d tags", len(source.Tags))
	}
	if _, ok := source.Tags["footway"]; !ok {
		t.Errorf("Custom tag 'footway' must be present")
	}
	source = NewOSMSegmentSource("extract.osm", nil, false)
	if _, ok := source.Tags["residential"]; !ok {
		t.Errorf("Default tag set must contain 'residential'")
	}
	if _, ok := source.Tags["motorway"]; ok {
		t.Errorf("Default tag set must not contain 'motorway'")
	}
}

func TestOSMSegmentSourceBadExtension(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "extract.txt")
	if err := os.WriteFile(fileName, []byte("not an osm file"), 0644); err != nil {
		t.Fatal(err)
	}
	source := NewOSMSegmentSource(fileName, nil, false)
	if _, err := source.Segments(testGraphBBox); err == nil {
		t.Errorf("Unsupported file extension must produce error")
	}
}
