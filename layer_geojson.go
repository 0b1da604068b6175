package calmroute

import (
	"fmt"
	"io/ioutil"

	geojson "github.com/paulmach/go.geojson"
	"github.com/pkg/errors"
)

// readLayerMetrics extracts known measurement properties from GeoJSON feature.
// Missing properties stay zero valued and contribute nothing to penalties.
func readLayerMetrics(feature *geojson.Feature) Metrics {
	metrics := Metrics{}
	if v, err := feature.PropertyFloat64("noise_db"); err == nil {
		metrics.NoiseDB = v
	}
	if v, err := feature.PropertyInt("crowd_level"); err == nil {
		metrics.CrowdLevel = v
	}
	if v, err := feature.PropertyFloat64("light_lux"); err == nil {
		metrics.LightLux = v
	}
	if v, err := feature.PropertyBool("puddles"); err == nil {
		metrics.Puddles = v
	}
	return metrics
}

// LoadLayerPolygonsGeoJSON reads polygons of single layer type from GeoJSON
// FeatureCollection file. Outer rings only, features of other geometry types
// are ignored.
func LoadLayerPolygonsGeoJSON(fileName string, layer LayerType) ([]LayerPolygon, error) {
	if !layer.Valid() {
		return nil, fmt.Errorf("unsupported layer type: '%s'", layer)
	}
	bytes, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "File read")
	}
	collection, err := geojson.UnmarshalFeatureCollection(bytes)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't parse GeoJSON from file '%s'", fileName)
	}
	polygons := []LayerPolygon{}
	for i, feature := range collection.Features {
		if feature.Geometry == nil || !feature.Geometry.IsPolygon() || len(feature.Geometry.Polygon) == 0 {
			continue
		}
		outerRing := feature.Geometry.Polygon[0]
		ring := make([]GeoPoint, 0, len(outerRing))
		for _, coord := range outerRing {
			if len(coord) < 2 {
				continue
			}
			// GeoJSON stores positions as [longitude, latitude]
			ring = append(ring, GeoPoint{Lon: coord[0], Lat: coord[1]})
		}
		if len(ring) < 3 {
			continue
		}
		id := fmt.Sprintf("%s_%03d", layer, i)
		if s, err := feature.PropertyString("id"); err == nil && s != "" {
			id = s
		}
		polygon := NewLayerPolygon(id, layer, ring, readLayerMetrics(feature))
		if s, err := feature.PropertyString("street_name"); err == nil {
			polygon.StreetName = s
		}
		polygons = append(polygons, polygon)
	}
	return polygons, nil
}

// LoadLayerStoreGeoJSON builds layer store from per-layer GeoJSON files
func LoadLayerStoreGeoJSON(layerFiles map[LayerType]string, verbose bool) (*LayerStore, error) {
	allPolygons := []LayerPolygon{}
	for _, layer := range layerTypesOrdered {
		fileName, ok := layerFiles[layer]
		if !ok || fileName == "" {
			continue
		}
		polygons, err := LoadLayerPolygonsGeoJSON(fileName, layer)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't load layer '%s'", layer)
		}
		if verbose {
			fmt.Printf("Loaded %d polygons for layer '%s' from '%s'\n", len(polygons), layer, fileName)
		}
		allPolygons = append(allPolygons, polygons...)
	}
	return NewLayerStore(allPolygons), nil
}
