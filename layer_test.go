package calmroute

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func squareRing(centerLat, centerLon, size float64) []GeoPoint {
	return []GeoPoint{
		{Lat: centerLat - size, Lon: centerLon - size},
		{Lat: centerLat - size, Lon: centerLon + size},
		{Lat: centerLat + size, Lon: centerLon + size},
		{Lat: centerLat + size, Lon: centerLon - size},
	}
}

func TestMetricsValueForLayer(t *testing.T) {
	metrics := Metrics{NoiseDB: 72.5, CrowdLevel: 4, LightLux: 120.0, Puddles: true}
	if v := metrics.ValueForLayer(LayerNoise); v != 72.5 {
		t.Errorf("Noise value must be 72.5, but got %f", v)
	}
	if v := metrics.ValueForLayer(LayerCrowd); v != 4.0 {
		t.Errorf("Crowd value must be 4, but got %f", v)
	}
	if v := metrics.ValueForLayer(LayerLight); v != 120.0 {
		t.Errorf("Light value must be 120, but got %f", v)
	}
	if v := metrics.ValueForLayer(LayerPuddles); v != 1.0 {
		t.Errorf("Puddles value must be 1, but got %f", v)
	}
	if v := (Metrics{}).ValueForLayer(LayerPuddles); v != 0.0 {
		t.Errorf("No puddles must give 0, but got %f", v)
	}
}

func TestNewLayerPolygonClosedRing(t *testing.T) {
	ring := squareRing(55.76, 37.61, 0.001)
	closed := append(copyLine(ring), ring[0])
	polygon := NewLayerPolygon("p1", LayerNoise, closed, Metrics{NoiseDB: 80})
	if len(polygon.Ring) != 4 {
		t.Errorf("Duplicated closing point must be dropped: expected 4 points, got %d", len(polygon.Ring))
	}
	bound := polygon.Bound()
	want := BBox{MinLat: 55.759, MinLon: 37.609, MaxLat: 55.761, MaxLon: 37.611}
	if Round(bound.MinLat, 1e-9) != Round(want.MinLat, 1e-9) || Round(bound.MaxLon, 1e-9) != Round(want.MaxLon, 1e-9) {
		t.Errorf("Polygon bound must be %v, but got %v", want, bound)
	}
}

func TestLayerStoreQuery(t *testing.T) {
	store := NewLayerStore([]LayerPolygon{
		NewLayerPolygon("n1", LayerNoise, squareRing(55.76, 37.61, 0.001), Metrics{NoiseDB: 80}),
		NewLayerPolygon("n2", LayerNoise, squareRing(55.90, 37.61, 0.001), Metrics{NoiseDB: 60}),
		NewLayerPolygon("c1", LayerCrowd, squareRing(55.76, 37.61, 0.001), Metrics{CrowdLevel: 4}),
	})
	bbox := BBox{MinLat: 55.75, MinLon: 37.60, MaxLat: 55.77, MaxLon: 37.62}
	noise, err := store.Query(LayerNoise, bbox)
	if err != nil {
		t.Error(err)
	}
	if len(noise) != 1 || noise[0].ID != "n1" {
		t.Errorf("Query must return single polygon 'n1', but got %v", noise)
	}
	crowd, err := store.Query(LayerCrowd, bbox)
	if err != nil {
		t.Error(err)
	}
	if len(crowd) != 1 || crowd[0].ID != "c1" {
		t.Errorf("Query must return single polygon 'c1', but got %v", crowd)
	}
	light, err := store.Query(LayerLight, bbox)
	if err != nil {
		t.Error(err)
	}
	if len(light) != 0 {
		t.Errorf("Layer without polygons must give empty result, but got %v", light)
	}
}

type failingSource struct{}

func (failingSource) Query(layer LayerType, bbox BBox) ([]LayerPolygon, error) {
	return nil, fmt.Errorf("source is down")
}

func TestFallbackSource(t *testing.T) {
	bbox := BBox{MinLat: 55.75, MinLon: 37.60, MaxLat: 55.77, MaxLon: 37.62}
	primary := NewLayerStore([]LayerPolygon{
		NewLayerPolygon("p1", LayerLight, squareRing(55.76, 37.61, 0.001), Metrics{LightLux: 150}),
	})
	fallback := NewLayerStore([]LayerPolygon{
		NewLayerPolygon("f1", LayerLight, squareRing(55.76, 37.61, 0.001), Metrics{LightLux: 90}),
		NewLayerPolygon("f2", LayerNoise, squareRing(55.76, 37.61, 0.001), Metrics{NoiseDB: 70}),
	})

	source := FallbackSource{Primary: primary, Fallback: fallback}
	polygons, err := source.Query(LayerLight, bbox)
	if err != nil {
		t.Error(err)
	}
	if len(polygons) != 1 || polygons[0].ID != "p1" {
		t.Errorf("Primary source with data must win, but got %v", polygons)
	}

	// Primary has nothing for the layer
	polygons, err = source.Query(LayerNoise, bbox)
	if err != nil {
		t.Error(err)
	}
	if len(polygons) != 1 || polygons[0].ID != "f2" {
		t.Errorf("Empty primary must fall back, but got %v", polygons)
	}

	// Primary is broken
	source = FallbackSource{Primary: failingSource{}, Fallback: fallback}
	polygons, err = source.Query(LayerLight, bbox)
	if err != nil {
		t.Error(err)
	}
	if len(polygons) != 1 || polygons[0].ID != "f1" {
		t.Errorf("Failing primary must fall back, but got %v", polygons)
	}
}

func TestSwappableSource(t *testing.T) {
	bbox := BBox{MinLat: 55.75, MinLon: 37.60, MaxLat: 55.77, MaxLon: 37.62}
	old := NewLayerStore([]LayerPolygon{
		NewLayerPolygon("old", LayerNoise, squareRing(55.76, 37.61, 0.001), Metrics{NoiseDB: 70}),
	})
	source := NewSwappableSource(old)
	polygons, _ := source.Query(LayerNoise, bbox)
	if len(polygons) != 1 || polygons[0].ID != "old" {
		t.Errorf("Source must serve initial store, but got %v", polygons)
	}
	source.Replace(NewLayerStore([]LayerPolygon{
		NewLayerPolygon("new", LayerNoise, squareRing(55.76, 37.61, 0.001), Metrics{NoiseDB: 90}),
	}))
	polygons, _ = source.Query(LayerNoise, bbox)
	if len(polygons) != 1 || polygons[0].ID != "new" {
		t.Errorf("Source must serve replaced store, but got %v", polygons)
	}
}

func TestSyntheticSourceDeterminism(t *testing.T) {
	source := NewSyntheticSource(GeoPoint{Lat: 55.7558, Lon: 37.6173}, 20, 42)
	bbox := BBox{MinLat: 55.75, MinLon: 37.60, MaxLat: 55.77, MaxLon: 37.62}
	first, err := source.Query(LayerNoise, bbox)
	if err != nil {
		t.Error(err)
	}
	second, err := source.Query(LayerNoise, bbox)
	if err != nil {
		t.Error(err)
	}
	if len(first) != 20 {
		t.Errorf("Source must generate 20 polygons, but got %d", len(first))
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Same query must produce identical polygons")
	}
	for i, polygon := range first {
		if polygon.Metrics.NoiseDB < 50.0 || polygon.Metrics.NoiseDB > 85.0 {
			t.Errorf("Polygon %d: noise %f is out of heuristic range", i, polygon.Metrics.NoiseDB)
		}
		if polygon.Metrics.CrowdLevel < 1 || polygon.Metrics.CrowdLevel > 5 {
			t.Errorf("Polygon %d: crowd level %d is out of range", i, polygon.Metrics.CrowdLevel)
		}
	}
}

func TestLoadLayerPolygonsGeoJSON(t *testing.T) {
	content := `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"properties": {"id": "noise_tverskaya", "noise_db": 82.5, "street_name": "Тверская улица"},
				"geometry": {
					"type": "Polygon",
					"coordinates": [[[37.60, 55.75], [37.62, 55.75], [37.62, 55.77], [37.60, 55.77], [37.60, 55.75]]]
				}
			},
			{
				"type": "Feature",
				"properties": {"noise_db": 64.0},
				"geometry": {
					"type": "Point",
					"coordinates": [37.61, 55.76]
				}
			}
		]
	}`
	fileName := filepath.Join(t.TempDir(), "noise.geojson")
	if err := os.WriteFile(fileName, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	polygons, err := LoadLayerPolygonsGeoJSON(fileName, LayerNoise)
	if err != nil {
		t.Fatal(err)
	}
	if len(polygons) != 1 {
		t.Fatalf("Non-polygon features must be ignored: expected 1 polygon, got %d", len(polygons))
	}
	polygon := polygons[0]
	if polygon.ID != "noise_tverskaya" {
		t.Errorf("Polygon ID must be taken from properties, but got '%s'", polygon.ID)
	}
	if polygon.Metrics.NoiseDB != 82.5 {
		t.Errorf("Noise must be 82.5, but got %f", polygon.Metrics.NoiseDB)
	}
	if polygon.StreetName != "Тверская улица" {
		t.Errorf("Street name must be parsed, but got '%s'", polygon.StreetName)
	}
	if len(polygon.Ring) != 4 {
		t.Errorf("Closed GeoJSON ring must be stored open: expected 4 points, got %d", len(polygon.Ring))
	}
}

func TestLoadLayerPolygonsGeoJSONBadLayer(t *testing.T) {
	if _, err := LoadLayerPolygonsGeoJSON("whatever.geojson", LayerType("snowdrifts")); err == nil {
		t.Errorf("Unsupported layer type must produce error")
	}
}
