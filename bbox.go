package calmroute

import (
	"fmt"
	"math"
)

// BBox is axis-aligned bounding rectangle in geographic coordinates
type BBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// NewBBox returns bounding box built from given corners
func NewBBox(minLat, minLon, maxLat, maxLon float64) (BBox, error) {
	b := BBox{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
	if minLat > maxLat || minLon > maxLon {
		return b, fmt.Errorf("malformed bounding box: min corner (%f, %f) exceeds max corner (%f, %f)", minLat, minLon, maxLat, maxLon)
	}
	if !b.bottomLeft().Valid() || !b.topRight().Valid() {
		return b, fmt.Errorf("bounding box corners are out of geographic ranges: %v", b)
	}
	return b, nil
}

func (b BBox) bottomLeft() GeoPoint {
	return GeoPoint{Lat: b.MinLat, Lon: b.MinLon}
}

func (b BBox) topRight() GeoPoint {
	return GeoPoint{Lat: b.MaxLat, Lon: b.MaxLon}
}

// Intersects checks if two bounding boxes have common area (shared border counts too)
func (b BBox) Intersects(other BBox) bool {
	return !(other.MaxLon < b.MinLon ||
		other.MinLon > b.MaxLon ||
		other.MaxLat < b.MinLat ||
		other.MinLat > b.MaxLat)
}

// ContainsPoint checks if point lies inside of bounding box (borders included)
func (b BBox) ContainsPoint(pt GeoPoint) bool {
	return pt.Lat >= b.MinLat && pt.Lat <= b.MaxLat && pt.Lon >= b.MinLon && pt.Lon <= b.MaxLon
}

// PadFraction expands bounding box by given fraction of its own span on every side
func (b BBox) PadFraction(fraction float64) BBox {
	latPad := (b.MaxLat - b.MinLat) * fraction
	lonPad := (b.MaxLon - b.MinLon) * fraction
	return BBox{
		MinLat: b.MinLat - latPad,
		MinLon: b.MinLon - lonPad,
		MaxLat: b.MaxLat + latPad,
		MaxLon: b.MaxLon + lonPad,
	}
}

// PadMeters expands bounding box by given distance on every side.
// Conversion meters -> degrees is equirectangular, same as in CircleApprox.
func (b BBox) PadMeters(meters float64) BBox {
	latPad := meters / metersPerDegree
	midLat := (b.MinLat + b.MaxLat) / 2.0
	lonScale := math.Cos(degreesToRadians(midLat))
	if lonScale < 1e-6 {
		lonScale = 1e-6
	}
	lonPad := meters / (metersPerDegree * lonScale)
	return BBox{
		MinLat: b.MinLat - latPad,
		MinLon: b.MinLon - lonPad,
		MaxLat: b.MaxLat + latPad,
		MaxLon: b.MaxLon + lonPad,
	}
}

// lineBBox returns bounding box of given polyline
func lineBBox(pts []GeoPoint) BBox {
	b := BBox{MinLat: math.MaxFloat64, MinLon: math.MaxFloat64, MaxLat: -math.MaxFloat64, MaxLon: -math.MaxFloat64}
	for _, pt := range pts {
		if pt.Lat < b.MinLat {
			b.MinLat = pt.Lat
		}
		if pt.Lat > b.MaxLat {
			b.MaxLat = pt.Lat
		}
		if pt.Lon < b.MinLon {
			b.MinLon = pt.Lon
		}
		if pt.Lon > b.MaxLon {
			b.MaxLon = pt.Lon
		}
	}
	return b
}
