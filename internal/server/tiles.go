package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/gogpu/heatmap"
)

// MaxZoom is the deepest zoom level whose tiles are at least one map unit.
const MaxZoom = 28

var errBadTile = errors.New("invalid tile address")

// ParseTile parses z, x and y path segments. y may carry a ".png" suffix.
func ParseTile(zs, xs, ys string) (maptile.Tile, error) {
	ys = strings.TrimSuffix(ys, ".png")

	z, err := strconv.ParseUint(zs, 10, 8)
	if err != nil || z > MaxZoom {
		return maptile.Tile{}, fmt.Errorf("%w: zoom %q", errBadTile, zs)
	}
	x, err := strconv.ParseUint(xs, 10, 32)
	if err != nil {
		return maptile.Tile{}, fmt.Errorf("%w: x %q", errBadTile, xs)
	}
	y, err := strconv.ParseUint(ys, 10, 32)
	if err != nil {
		return maptile.Tile{}, fmt.Errorf("%w: y %q", errBadTile, ys)
	}

	n := uint64(1) << z
	if x >= n || y >= n {
		return maptile.Tile{}, fmt.Errorf("%w: %d/%d/%d outside the zoom level", errBadTile, z, x, y)
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), nil
}

// TileViewport returns the map-plane rectangle covered by a slippy-map tile.
// Tile rows grow southward like the plane's Y axis, so the mapping is exact.
func TileViewport(t maptile.Tile) r2.Rect {
	edge := float64(uint64(heatmap.WorldSize) >> t.Z)
	return heatmap.MapRect(float64(t.X)*edge, float64(t.Y)*edge, edge, edge)
}

// TileZoomScale is the zoom scale at which a tile is shown tileSize pixels
// wide.
func TileZoomScale(t maptile.Tile, tileSize int) float64 {
	return float64(tileSize) / float64(uint64(heatmap.WorldSize) >> t.Z)
}

// TileAt returns the tile at zoom z containing a coordinate in degrees.
func TileAt(lat, lng float64, z maptile.Zoom) maptile.Tile {
	return maptile.At(orb.Point{lng, lat}, z)
}

// BoundOf converts a map-plane rectangle to a geographic bound.
func BoundOf(r r2.Rect) orb.Bound {
	nw := heatmap.LatLngFromMapPoint(r.Lo())
	se := heatmap.LatLngFromMapPoint(r.Hi())
	return orb.Bound{
		Min: orb.Point{nw.Lng.Degrees(), se.Lat.Degrees()},
		Max: orb.Point{se.Lng.Degrees(), nw.Lat.Degrees()},
	}
}
