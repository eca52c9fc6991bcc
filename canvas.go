package heatmap

import (
	"image"

	"github.com/golang/geo/r2"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Canvas is the destination a Renderer draws finished tiles onto.
//
// DrawImage composites img so that it exactly covers viewport, a map-plane
// rectangle, scaling as needed. Implementations must not retain img after
// DrawImage returns.
type Canvas interface {
	DrawImage(viewport r2.Rect, img image.Image)
}

// ImageCanvas is a Canvas backed by an in-memory RGBA image covering a
// fixed region of the map plane.
type ImageCanvas struct {
	// Image is the destination raster.
	Image *image.RGBA
	// Region is the map-plane rectangle that Image covers.
	Region r2.Rect
	// Interpolator scales tiles whose size differs from their destination.
	// Nil uses draw.BiLinear.
	Interpolator draw.Interpolator
}

// NewImageCanvas creates a canvas of the given pixel size covering region.
func NewImageCanvas(width, height int, region r2.Rect) *ImageCanvas {
	return &ImageCanvas{
		Image:  image.NewRGBA(image.Rect(0, 0, width, height)),
		Region: region,
	}
}

// PixelsPerUnit returns the canvas resolution along each axis.
func (c *ImageCanvas) PixelsPerUnit() r2.Point {
	size := c.Region.Size()
	b := c.Image.Bounds()
	if size.X <= 0 || size.Y <= 0 {
		return r2.Point{}
	}
	return r2.Point{X: float64(b.Dx()) / size.X, Y: float64(b.Dy()) / size.Y}
}

// DrawImage composites img over the part of the canvas that viewport maps
// to. Parts of viewport outside Region are clipped.
func (c *ImageCanvas) DrawImage(viewport r2.Rect, img image.Image) {
	ppu := c.PixelsPerUnit()
	if ppu.X == 0 || ppu.Y == 0 || viewport.IsEmpty() || img == nil {
		return
	}
	sb := img.Bounds()
	if sb.Empty() {
		return
	}

	size := viewport.Size()
	if size.X <= 0 || size.Y <= 0 {
		return
	}

	db := c.Image.Bounds()
	ox := float64(db.Min.X) + (viewport.X.Lo-c.Region.X.Lo)*ppu.X
	oy := float64(db.Min.Y) + (viewport.Y.Lo-c.Region.Y.Lo)*ppu.Y
	kx := size.X * ppu.X / float64(sb.Dx())
	ky := size.Y * ppu.Y / float64(sb.Dy())

	// Pixel-aligned 1:1 placement needs no resampling.
	if kx == 1 && ky == 1 && ox == float64(int(ox)) && oy == float64(int(oy)) {
		r := image.Rect(int(ox), int(oy), int(ox)+sb.Dx(), int(oy)+sb.Dy())
		draw.Draw(c.Image, r, img, sb.Min, draw.Over)
		return
	}

	interp := c.Interpolator
	if interp == nil {
		interp = draw.BiLinear
	}
	s2d := f64.Aff3{
		kx, 0, ox - kx*float64(sb.Min.X),
		0, ky, oy - ky*float64(sb.Min.Y),
	}
	interp.Transform(c.Image, s2d, img, sb, draw.Over, nil)
}
