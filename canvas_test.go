package heatmap

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestImageCanvasOneToOne(t *testing.T) {
	region := MapRect(1000, 2000, 64, 64)
	c := NewImageCanvas(64, 64, region)
	red := color.RGBA{R: 200, A: 200}

	c.DrawImage(region, solid(64, 64, red))

	for _, p := range []image.Point{{0, 0}, {63, 63}, {31, 17}} {
		if got := c.Image.RGBAAt(p.X, p.Y); got != red {
			t.Errorf("pixel %v = %v, want %v", p, got, red)
		}
	}
}

func TestImageCanvasScalesDown(t *testing.T) {
	region := MapRect(0, 0, 1024, 1024)
	c := NewImageCanvas(256, 256, region)
	blue := color.RGBA{B: 255, A: 255}

	c.DrawImage(region, solid(512, 512, blue))

	if got := c.Image.RGBAAt(128, 128); got != blue {
		t.Errorf("center = %v, want %v", got, blue)
	}
}

func TestImageCanvasPlacesSubViewport(t *testing.T) {
	region := MapRect(0, 0, 100, 100)
	c := NewImageCanvas(100, 100, region)
	green := color.RGBA{G: 255, A: 255}

	// Right half of the region.
	c.DrawImage(MapRect(50, 0, 50, 100), solid(50, 100, green))

	if got := c.Image.RGBAAt(25, 50); got.A != 0 {
		t.Errorf("left half = %v, want untouched", got)
	}
	if got := c.Image.RGBAAt(75, 50); got != green {
		t.Errorf("right half = %v, want %v", got, green)
	}
}

func TestImageCanvasComposesOver(t *testing.T) {
	region := MapRect(0, 0, 8, 8)
	c := NewImageCanvas(8, 8, region)
	white := color.RGBA{255, 255, 255, 255}
	draw.Draw(c.Image, c.Image.Bounds(), image.NewUniform(white), image.Point{}, draw.Src)

	// Fully transparent tile leaves the background alone.
	c.DrawImage(region, image.NewRGBA(image.Rect(0, 0, 8, 8)))
	if got := c.Image.RGBAAt(4, 4); got != white {
		t.Errorf("pixel = %v, want background %v", got, white)
	}
}

func TestImageCanvasIgnoresDegenerateInput(t *testing.T) {
	c := NewImageCanvas(8, 8, MapRect(0, 0, 0, 0))
	c.DrawImage(MapRect(0, 0, 8, 8), solid(8, 8, color.RGBA{R: 255, A: 255}))
	if got := c.Image.RGBAAt(0, 0); got.A != 0 {
		t.Error("canvas with an empty region must ignore draws")
	}

	c = NewImageCanvas(8, 8, MapRect(0, 0, 8, 8))
	c.DrawImage(MapRect(0, 0, 8, 8), nil)
	c.DrawImage(MapRect(0, 0, 8, 8), image.NewRGBA(image.Rectangle{}))
}

func TestImageCanvasIgnoresInvertedViewport(t *testing.T) {
	region := MapRect(0, 0, 8, 8)
	c := NewImageCanvas(8, 8, region)
	red := color.RGBA{R: 255, A: 255}

	tests := []struct {
		name     string
		viewport r2.Rect
	}{
		{"inverted Y", r2.Rect{X: r1.Interval{Lo: 0, Hi: 8}, Y: r1.Interval{Lo: 8, Hi: 0}}},
		{"zero height", MapRect(0, 4, 8, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.DrawImage(tt.viewport, solid(8, 8, red))
			for _, p := range []image.Point{{0, 0}, {4, 4}, {7, 7}} {
				if got := c.Image.RGBAAt(p.X, p.Y); got.A != 0 {
					t.Errorf("pixel %v = %v, want untouched", p, got)
				}
			}
		})
	}
}
