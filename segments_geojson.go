package calmroute

import (
	"io/ioutil"

	geojson "github.com/paulmach/go.geojson"
	"github.com/pkg/errors"
)

// LoadSegmentsGeoJSON reads street segments from GeoJSON FeatureCollection file.
// LineString and MultiLineString features are accepted, the rest is ignored.
func LoadSegmentsGeoJSON(fileName string) (StaticSegments, error) {
	bytes, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "File read")
	}
	collection, err := geojson.UnmarshalFeatureCollection(bytes)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't parse GeoJSON from file '%s'", fileName)
	}
	segments := StaticSegments{}
	for _, feature := range collection.Features {
		if feature.Geometry == nil {
			continue
		}
		name := ""
		if s, err := feature.PropertyString("name"); err == nil {
			name = s
		}
		lines := [][][]float64{}
		switch {
		case feature.Geometry.IsLineString():
			lines = append(lines, feature.Geometry.LineString)
		case feature.Geometry.IsMultiLineString():
			lines = append(lines, feature.Geometry.MultiLineString...)
		default:
			continue
		}
		for _, line := range lines {
			geom := make([]GeoPoint, 0, len(line))
			for _, coord := range line {
				if len(coord) < 2 {
					continue
				}
				// GeoJSON stores positions as [longitude, latitude]
				geom = append(geom, GeoPoint{Lon: coord[0], Lat: coord[1]})
			}
			if len(geom) < 2 {
				continue
			}
			segments = append(segments, Segment{Geom: geom, StreetName: name})
		}
	}
	return segments, nil
}
