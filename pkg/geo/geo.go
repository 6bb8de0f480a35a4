// Package geo provides the spherical-distance and containment primitives
// shared by the storage backends. Every backend computes proximity with the
// same haversine formula (or a native index honouring the same semantics) so
// query results do not depend on backend choice.
package geo

import (
	"math"

	"fieldops/pkg/domain"
)

// EarthRadiusMeters is the mean Earth radius used for all distance math.
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle distance between two positions in
// meters, using the haversine formula on a spherical Earth.
func Distance(a, b domain.Position) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dLat := (b.Lat() - a.Lat()) * math.Pi / 180
	dLng := (b.Lng() - a.Lng()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ContainsPoint reports whether p lies inside the polygon. The outer ring
// bounds the area; any further rings are holes. Points on an edge are
// treated as inside.
func ContainsPoint(rings [][]domain.Position, p domain.Position) bool {
	if len(rings) == 0 {
		return false
	}
	if !inRing(rings[0], p) {
		return false
	}
	for _, hole := range rings[1:] {
		if inRing(hole, p) {
			return false
		}
	}
	return true
}

// ContainsGeometry reports whether every coordinate of g lies inside the
// polygon, mirroring $geoWithin semantics for whole-geometry containment.
func ContainsGeometry(rings [][]domain.Position, g domain.Geometry) bool {
	positions := g.Positions()
	if len(positions) == 0 {
		return false
	}
	for _, p := range positions {
		if !ContainsPoint(rings, p) {
			return false
		}
	}
	return true
}

// inRing is a ray-casting point-in-ring test with an explicit on-edge check.
func inRing(ring []domain.Position, p domain.Position) bool {
	inside := false
	n := len(ring)
	if n == 0 {
		return false
	}
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lng(), ring[i].Lat()
		xj, yj := ring[j].Lng(), ring[j].Lat()
		if onSegment(xi, yi, xj, yj, p.Lng(), p.Lat()) {
			return true
		}
		if (yi > p.Lat()) != (yj > p.Lat()) {
			x := (xj-xi)*(p.Lat()-yi)/(yj-yi) + xi
			if p.Lng() < x {
				inside = !inside
			}
		}
	}
	return inside
}

func onSegment(x1, y1, x2, y2, x, y float64) bool {
	cross := (x2-x1)*(y-y1) - (y2-y1)*(x-x1)
	if math.Abs(cross) > 1e-12 {
		return false
	}
	return math.Min(x1, x2)-1e-12 <= x && x <= math.Max(x1, x2)+1e-12 &&
		math.Min(y1, y2)-1e-12 <= y && y <= math.Max(y1, y2)+1e-12
}
