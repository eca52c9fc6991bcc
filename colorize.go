package heatmap

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/heatmap/internal/parallel"
)

// ErrSizeMismatch is returned when a density buffer and its color buffer
// differ in size.
var ErrSizeMismatch = errors.New("heatmap: buffer size mismatch")

// Colorize maps every density value in src through ramp and writes the
// premultiplied result into dst.
//
// dst uses the image.RGBA layout: row-major, Stride bytes per row, four
// bytes per pixel in the order [R, G, B, A], color channels premultiplied
// by alpha.
//
// Rows are processed in disjoint bands on pool. The ramp is read-only, so
// the output is identical however the rows are partitioned. A nil pool
// colorizes on the calling goroutine.
func Colorize(dst *image.RGBA, src *image.Gray, ramp *Ramp, pool *parallel.WorkerPool) error {
	sb, db := src.Bounds(), dst.Bounds()
	if sb.Dx() != db.Dx() || sb.Dy() != db.Dy() {
		return fmt.Errorf("%w: density %v, color %v", ErrSizeMismatch, sb.Size(), db.Size())
	}

	w := sb.Dx()
	lut := &ramp.premul

	pool.ForRows(sb.Dy(), func(lo, hi int) {
		for y := lo; y < hi; y++ {
			in := src.Pix[src.PixOffset(sb.Min.X, sb.Min.Y+y):][:w]
			out := dst.Pix[dst.PixOffset(db.Min.X, db.Min.Y+y):][:4*w]
			for x, v := range in {
				c := lut[v]
				px := out[4*x : 4*x+4 : 4*x+4]
				px[0] = c[0]
				px[1] = c[1]
				px[2] = c[2]
				px[3] = c[3]
			}
		}
	})

	return nil
}
