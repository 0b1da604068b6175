package calmroute

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// PrepareWKTLinestring returns WKT representation of LineString
func PrepareWKTLinestring(pts []GeoPoint) string {
	line := make(orb.LineString, len(pts))
	for i := range pts {
		line[i] = orb.Point{pts[i].Lon, pts[i].Lat}
	}
	return wkt.MarshalString(line)
}

// PrepareWKTPoint returns WKT representation of Point
func PrepareWKTPoint(pt GeoPoint) string {
	return wkt.MarshalString(orb.Point{pt.Lon, pt.Lat})
}
