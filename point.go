package heatmap

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/s2"
)

// Point is a weighted geographic sample.
// Points are values and never change once added to a PointSet.
type Point struct {
	Coordinate s2.LatLng
	// Intensity scales the peak of the point's falloff, clamped to [0, 1].
	Intensity float32
}

// NewPoint returns a full-intensity point at the given coordinate in degrees.
func NewPoint(lat, lng float64) Point {
	return Point{Coordinate: s2.LatLngFromDegrees(lat, lng), Intensity: 1}
}

// MapPoint returns the point's position on the map plane.
func (p Point) MapPoint() r2.Point {
	return MapPointFromLatLng(p.Coordinate)
}

// weight returns the intensity clamped to [0, 1] as a float64.
// NaN weighs nothing.
func (p Point) weight() float64 {
	if p.Intensity != p.Intensity {
		return 0
	}
	return float64(clamp01(p.Intensity))
}
