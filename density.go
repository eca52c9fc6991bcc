package heatmap

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r2"
)

// MaxTileEdgeLimit is the largest tile edge, in pixels, a renderer accepts.
const MaxTileEdgeLimit = 4096

// ErrInvalidDimensions is returned when a tile buffer cannot be allocated
// for the requested size.
var ErrInvalidDimensions = errors.New("heatmap: invalid tile dimensions")

// newDensityBuffer allocates a zeroed single-channel density buffer.
func newDensityBuffer(width, height int) (*image.Gray, error) {
	if err := checkTileSize(width, height); err != nil {
		return nil, err
	}
	return image.NewGray(image.Rect(0, 0, width, height)), nil
}

// newTileImage allocates a fully transparent premultiplied RGBA buffer.
func newTileImage(width, height int) (*image.RGBA, error) {
	if err := checkTileSize(width, height); err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

func checkTileSize(width, height int) error {
	if width <= 0 || height <= 0 || width > MaxTileEdgeLimit || height > MaxTileEdgeLimit {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return nil
}

// Rasterize renders the density field of points into dst.
//
// dst covers viewport, a map-plane rectangle, at scale pixels per map unit.
// Each point whose falloff circle of the given radius (map units) touches
// the viewport contributes a linear radial falloff: full intensity in the
// pixel containing the point, zero at radius*scale pixels. Contributions
// are composited like white drawn over black with source-over, so each one
// lights a fraction of what is still unlit: v' = v + (255-v)*alpha.
// Overlapping points saturate toward 255 and never exceed it.
//
// dst is cleared to 0 first. Rasterize returns the number of points drawn.
func Rasterize(dst *image.Gray, viewport r2.Rect, scale float64, points []Point, radius float64) int {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	for y := range h {
		off := dst.PixOffset(b.Min.X, b.Min.Y+y)
		clear(dst.Pix[off : off+w])
	}

	lo := viewport.Lo()
	pxRadius := radius * scale
	drawn := 0

	for _, p := range points {
		mp := p.MapPoint()
		if !CircleIntersectsRect(mp, radius, viewport) {
			continue
		}
		alpha := p.weight()
		if alpha <= 0 {
			continue
		}

		cx := (mp.X - lo.X) * scale
		cy := (mp.Y - lo.Y) * scale
		if radius <= pointRadiusEpsilon || pxRadius <= pointRadiusEpsilon {
			plot(dst, int(math.Floor(cx)), int(math.Floor(cy)), alpha)
		} else {
			splat(dst, cx, cy, pxRadius, alpha)
		}
		drawn++
	}

	return drawn
}

// plot lights a single pixel, relative to the buffer origin.
func plot(dst *image.Gray, x, y int, alpha float64) {
	b := dst.Bounds()
	if x < 0 || y < 0 || x >= b.Dx() || y >= b.Dy() {
		return
	}
	i := dst.PixOffset(b.Min.X+x, b.Min.Y+y)
	dst.Pix[i] = lighten(dst.Pix[i], alpha)
}

// splat composites one radial falloff centered at (cx, cy) in pixel space.
func splat(dst *image.Gray, cx, cy, r, alpha float64) {
	b := dst.Bounds()
	x0 := max(int(math.Floor(cx-r)), 0)
	x1 := min(int(math.Ceil(cx+r)), b.Dx()-1)
	y0 := max(int(math.Floor(cy-r)), 0)
	y1 := min(int(math.Ceil(cy+r)), b.Dy()-1)

	for y := y0; y <= y1; y++ {
		dy := cellGap(cy, y)
		row := dst.Pix[dst.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := x0; x <= x1; x++ {
			dx := cellGap(cx, x)
			d := math.Sqrt(dx*dx + dy*dy)
			if d >= r {
				continue
			}
			row[x] = lighten(row[x], alpha*(1-d/r))
		}
	}
}

// cellGap is the distance along one axis from c to the pixel cell [i, i+1].
func cellGap(c float64, i int) float64 {
	lo := float64(i)
	switch {
	case c < lo:
		return lo - c
	case c > lo+1:
		return c - lo - 1
	}
	return 0
}

// lighten applies white at the given coverage over v.
func lighten(v uint8, alpha float64) uint8 {
	return v + uint8(math.Round(float64(255-v)*alpha))
}
