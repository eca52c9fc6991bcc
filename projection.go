package heatmap

import (
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// WorldSize is the edge length of the projected plane in map units.
// The plane is a square Web-Mercator projection of the world with its
// origin at the north-west corner and Y growing southward.
const WorldSize = 1 << 28

// MaxLatitude is the latitude at which the Mercator plane is cut off.
const MaxLatitude = 85.05112877980659

// MapPointFromLatLng projects a geographic coordinate onto the map plane.
// Latitudes beyond ±MaxLatitude are clamped; longitudes wrap.
func MapPointFromLatLng(ll s2.LatLng) r2.Point {
	ll = ll.Normalized()
	lat := math.Max(-MaxLatitude, math.Min(MaxLatitude, ll.Lat.Degrees()))
	lng := ll.Lng.Degrees()

	sin := math.Sin(lat * math.Pi / 180)
	x := (lng + 180) / 360
	y := 0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)

	return r2.Point{X: x * WorldSize, Y: y * WorldSize}
}

// LatLngFromMapPoint is the inverse of MapPointFromLatLng.
func LatLngFromMapPoint(p r2.Point) s2.LatLng {
	lng := p.X/WorldSize*360 - 180
	lat := math.Atan(math.Sinh(math.Pi*(1-2*p.Y/WorldSize))) * 180 / math.Pi
	return s2.LatLng{Lat: s1.Angle(lat) * s1.Degree, Lng: s1.Angle(lng) * s1.Degree}
}

// MapRect returns the map-plane rectangle with the given origin and size.
// A negative width or height yields r2.EmptyRect. A zero size yields a
// degenerate, non-empty rectangle.
func MapRect(x, y, width, height float64) r2.Rect {
	if width < 0 || height < 0 {
		return r2.EmptyRect()
	}
	return r2.Rect{
		X: r1.Interval{Lo: x, Hi: x + width},
		Y: r1.Interval{Lo: y, Hi: y + height},
	}
}

// MapRectFromLatLngBounds projects a south-west/north-east corner pair.
func MapRectFromLatLngBounds(sw, ne s2.LatLng) r2.Rect {
	return r2.RectFromPoints(MapPointFromLatLng(sw), MapPointFromLatLng(ne))
}

// CircleIntersectsRect reports whether a circle touches a rectangle.
// The test is boundary inclusive: a circle tangent to an edge intersects.
// A radius at or below 1e-9 is treated as a single point.
func CircleIntersectsRect(center r2.Point, radius float64, rect r2.Rect) bool {
	if radius <= pointRadiusEpsilon {
		return rect.ContainsPoint(center)
	}
	if rect.IsEmpty() {
		return false
	}

	// Closest point of the rectangle to the circle center.
	closest := rect.ClampPoint(center)
	d := center.Sub(closest)
	return d.X*d.X+d.Y*d.Y <= radius*radius
}

const pointRadiusEpsilon = 1e-9
