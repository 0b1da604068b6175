package calmroute

import (
	"fmt"

	geojson "github.com/paulmach/go.geojson"
)

// PrepareGeoJSONLinestring returns GeoJSON representation of LineString
func PrepareGeoJSONLinestring(pts []GeoPoint) string {
	pts2d := make([][]float64, len(pts))
	for i := range pts {
		pts2d[i] = []float64{pts[i].Lon, pts[i].Lat}
	}
	b, err := geojson.NewLineStringGeometry(pts2d).MarshalJSON()
	if err != nil {
		fmt.Printf("Warning. Can not convert geometry to geojson format: %s", err.Error())
		return ""
	}
	return string(b)
}

// PrepareGeoJSONPoint returns GeoJSON representation of Point
func PrepareGeoJSONPoint(pt GeoPoint) string {
	b, err := geojson.NewPointGeometry([]float64{pt.Lon, pt.Lat}).MarshalJSON()
	if err != nil {
		fmt.Printf("Warning. Can not convert geometry to geojson format: %s", err.Error())
		return ""
	}
	return string(b)
}

// RouteToGeoJSON returns route as GeoJSON feature with metrics in properties
func RouteToGeoJSON(result *RouteResult) (string, error) {
	pts2d := make([][]float64, len(result.Path))
	for i := range result.Path {
		pts2d[i] = []float64{result.Path[i].Lon, result.Path[i].Lat}
	}
	feature := geojson.NewFeature(geojson.NewLineStringGeometry(pts2d))
	feature.SetProperty("distance_m", result.DistanceMeters)
	feature.SetProperty("cost", result.Cost)
	for layer, average := range result.Averages {
		feature.SetProperty(fmt.Sprintf("avg_%s", layer), average)
	}
	b, err := feature.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
