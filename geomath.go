package calmroute

import (
	"fmt"
	"math"
)

const (
	earthRadiusMeters = 6370986.884258304
	pi180             = math.Pi / 180.0
	pi180Rev          = 180.0 / math.Pi

	// metersPerDegree is length of one degree of latitude (also one degree of
	// longitude on the equator) on the sphere of radius earthRadiusMeters
	metersPerDegree = earthRadiusMeters * pi180

	collinearEps = 1e-12
)

// GeoPoint representation of point on Earth
type GeoPoint struct {
	Lat float64
	Lon float64
}

// String returns pretty printed value for GeoPoint
func (gp GeoPoint) String() string {
	return fmt.Sprintf("Lon: %f | Lat: %f", gp.Lon, gp.Lat)
}

// Valid checks if latitude and longitude are in acceptable ranges
func (gp GeoPoint) Valid() bool {
	return gp.Lat >= -90.0 && gp.Lat <= 90.0 && gp.Lon >= -180.0 && gp.Lon <= 180.0
}

// degreesToRadians deg = r * pi / 180
func degreesToRadians(d float64) float64 {
	return d * pi180
}

// radiansTodegrees r = deg  * 180 / pi
func radiansTodegrees(d float64) float64 {
	return d * pi180Rev
}

// greatCircleDistance returns distance between two geo-points (meters)
func greatCircleDistance(p, q GeoPoint) float64 {
	lat1 := degreesToRadians(p.Lat)
	lon1 := degreesToRadians(p.Lon)
	lat2 := degreesToRadians(q.Lat)
	lon2 := degreesToRadians(q.Lon)
	diffLat := lat2 - lat1
	diffLon := lon2 - lon1
	a := math.Pow(math.Sin(diffLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(diffLon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return c * earthRadiusMeters
}

// getSphericalLength returns length for given line (meters)
func getSphericalLength(line []GeoPoint) float64 {
	totalLength := 0.0
	if len(line) < 2 {
		return totalLength
	}
	for i := 1; i < len(line); i++ {
		totalLength += greatCircleDistance(line[i-1], line[i])
	}
	return totalLength
}

// pointInRing checks if point lies inside of closed ring (ray casting technique).
// Ring is supposed to be stored without duplicated closing point. Points on ring
// boundary are treated as inner ones.
func pointInRing(pt GeoPoint, ring []GeoPoint) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		if pointOnSegment(pt, ring[i], ring[(i+1)%n]) {
			return true
		}
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		pi := ring[i]
		pj := ring[j]
		if (pi.Lat > pt.Lat) != (pj.Lat > pt.Lat) {
			crossLon := (pj.Lon-pi.Lon)*(pt.Lat-pi.Lat)/(pj.Lat-pi.Lat) + pi.Lon
			if pt.Lon < crossLon {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// crossProduct returns z-component of cross product for vectors (p->q) and (p->r).
// Coordinates are assumed to be Euclidean: Lon == X, Lat == Y
func crossProduct(p, q, r GeoPoint) float64 {
	return (q.Lon-p.Lon)*(r.Lat-p.Lat) - (q.Lat-p.Lat)*(r.Lon-p.Lon)
}

// pointOnSegment checks if point r lies on segment p-q (collinear and within bounds)
func pointOnSegment(r, p, q GeoPoint) bool {
	if math.Abs(crossProduct(p, q, r)) > collinearEps {
		return false
	}
	return r.Lon >= math.Min(p.Lon, q.Lon)-collinearEps && r.Lon <= math.Max(p.Lon, q.Lon)+collinearEps &&
		r.Lat >= math.Min(p.Lat, q.Lat)-collinearEps && r.Lat <= math.Max(p.Lat, q.Lat)+collinearEps
}

// segmentsIntersect checks if two segments intersect (including touch and collinear overlap)
// p1, p2 - first segment
// p3, p4 - second segment
// Note: Euclidean space
func segmentsIntersect(p1, p2, p3, p4 GeoPoint) bool {
	d1 := crossProduct(p3, p4, p1)
	d2 := crossProduct(p3, p4, p2)
	d3 := crossProduct(p1, p2, p3)
	d4 := crossProduct(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if pointOnSegment(p1, p3, p4) || pointOnSegment(p2, p3, p4) {
		return true
	}
	if pointOnSegment(p3, p1, p2) || pointOnSegment(p4, p1, p2) {
		return true
	}
	return false
}

// segmentIntersectsRing checks if segment a-b crosses (or touches) any edge of closed ring
func segmentIntersectsRing(a, b GeoPoint, ring []GeoPoint) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		if segmentsIntersect(a, b, ring[i], ring[(i+1)%n]) {
			return true
		}
	}
	return false
}

// lineIntersectsRing checks if any segment of polyline crosses any edge of closed ring
func lineIntersectsRing(line []GeoPoint, ring []GeoPoint) bool {
	for i := 1; i < len(line); i++ {
		if segmentIntersectsRing(line[i-1], line[i], ring) {
			return true
		}
	}
	return false
}

// CircleApprox generates regular numPoints-gon approximating circle of given radius around
// center. Useful for layer sources measuring point-like objects (a mall, a construction site)
// with an effect radius. Meter-to-degree conversion is equirectangular, so it is valid for
// radii under a few hundred meters and useless near poles.
func CircleApprox(center GeoPoint, radiusMeters float64, numPoints int) []GeoPoint {
	if numPoints < 3 {
		numPoints = 3
	}
	latDelta := radiusMeters / metersPerDegree
	lonScale := math.Cos(degreesToRadians(center.Lat))
	if lonScale < 1e-6 {
		lonScale = 1e-6
	}
	lonDelta := radiusMeters / (metersPerDegree * lonScale)
	ring := make([]GeoPoint, numPoints)
	for i := 0; i < numPoints; i++ {
		angle := 2.0 * math.Pi * float64(i) / float64(numPoints)
		ring[i] = GeoPoint{
			Lat: center.Lat + latDelta*math.Sin(angle),
			Lon: center.Lon + lonDelta*math.Cos(angle),
		}
	}
	return ring
}

// reverseLine reverses order of points in given line. Returns new slice
func reverseLine(pts []GeoPoint) []GeoPoint {
	inputLen := len(pts)
	output := make([]GeoPoint, inputLen)
	for i, n := range pts {
		j := inputLen - i - 1
		output[j] = n
	}
	return output
}

// copyLine copies points of given line. Returns new slice
func copyLine(pts []GeoPoint) []GeoPoint {
	output := make([]GeoPoint, len(pts))
	copy(output, pts)
	return output
}
