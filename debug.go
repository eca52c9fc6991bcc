package heatmap

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	debugBorder = color.RGBA{R: 0xff, G: 0x00, B: 0xff, A: 0xff}
	debugLabel  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	debugShadow = color.RGBA{A: 0xc0}
)

var debugPrinter = message.NewPrinter(language.English)

// stampDebug draws a one pixel border around img and a label in its top
// left corner with the tile's data version, zoom scale and the number of
// points that were drawn.
func stampDebug(img *image.RGBA, key TileKey, drawn int) {
	b := img.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		img.SetRGBA(x, b.Min.Y, debugBorder)
		img.SetRGBA(x, b.Max.Y-1, debugBorder)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		img.SetRGBA(b.Min.X, y, debugBorder)
		img.SetRGBA(b.Max.X-1, y, debugBorder)
	}

	face := basicfont.Face7x13
	label := debugPrinter.Sprintf("v%d z%.4g n%d", key.Version, key.ZoomScale, drawn)
	origin := fixed.P(b.Min.X+4, b.Min.Y+4+face.Ascent)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(debugShadow),
		Face: face,
		Dot:  origin.Add(fixed.P(1, 1)),
	}
	d.DrawString(label)

	d.Src = image.NewUniform(debugLabel)
	d.Dot = origin
	d.DrawString(label)
}
