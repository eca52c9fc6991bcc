package heatmap

import (
	"bytes"
	"errors"
	"image"
	"testing"

	"github.com/gogpu/heatmap/internal/parallel"
)

func gradientDensity(w, h int) *image.Gray {
	src := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			src.Pix[y*src.Stride+x] = uint8((x + y*7) % 256)
		}
	}
	return src
}

func TestColorizeMapsThroughRamp(t *testing.T) {
	src := gradientDensity(64, 16)
	dst := image.NewRGBA(src.Bounds())
	ramp := StandardRamp()

	if err := Colorize(dst, src, ramp, nil); err != nil {
		t.Fatalf("Colorize failed: %v", err)
	}

	for y := range 16 {
		for x := range 64 {
			v := src.Pix[y*src.Stride+x]
			want := ramp.Premultiplied(v)
			i := dst.PixOffset(x, y)
			got := [4]uint8{dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3]}
			if got != want {
				t.Fatalf("pixel (%d,%d) density %d = %v, want %v", x, y, v, got, want)
			}
		}
	}
}

func TestColorizeZeroIsTransparent(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	dst := image.NewRGBA(src.Bounds())
	for i := range dst.Pix {
		dst.Pix[i] = 0xAA
	}

	if err := Colorize(dst, src, StandardRamp(), nil); err != nil {
		t.Fatal(err)
	}
	for i, b := range dst.Pix {
		if b != 0 {
			t.Fatalf("Pix[%d] = %d, want 0", i, b)
		}
	}
}

func TestColorizePremultiplied(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 1, 1))
	src.Pix[0] = 255
	dst := image.NewRGBA(src.Bounds())

	if err := Colorize(dst, src, StandardRamp(), nil); err != nil {
		t.Fatal(err)
	}
	r, g, b, a := dst.Pix[0], dst.Pix[1], dst.Pix[2], dst.Pix[3]
	// Red at 95% alpha.
	if a != 242 || r != 242 || g != 0 || b != 0 {
		t.Errorf("top of ramp = [%d %d %d %d], want [242 0 0 242]", r, g, b, a)
	}
	if r > a || g > a || b > a {
		t.Error("premultiplied channels must not exceed alpha")
	}
}

func TestColorizeDeterministicAcrossPools(t *testing.T) {
	src := gradientDensity(257, 131)
	ramp := InvertedRamp()

	want := image.NewRGBA(src.Bounds())
	if err := Colorize(want, src, ramp, nil); err != nil {
		t.Fatal(err)
	}

	for _, workers := range []int{1, 2, 3, 8} {
		pool := parallel.NewWorkerPool(workers)
		got := image.NewRGBA(src.Bounds())
		if err := Colorize(got, src, ramp, pool); err != nil {
			t.Fatal(err)
		}
		pool.Close()

		if !bytes.Equal(got.Pix, want.Pix) {
			t.Errorf("workers=%d: output differs from inline colorize", workers)
		}
	}
}

func TestColorizeSubImage(t *testing.T) {
	full := gradientDensity(32, 32)
	src := full.SubImage(image.Rect(8, 8, 24, 24)).(*image.Gray)
	dst := image.NewRGBA(image.Rect(0, 0, 16, 16))

	if err := Colorize(dst, src, StandardRamp(), nil); err != nil {
		t.Fatal(err)
	}
	want := StandardRamp().Premultiplied(full.GrayAt(8, 8).Y)
	got := [4]uint8(dst.Pix[0:4])
	if got != want {
		t.Errorf("first pixel = %v, want %v", got, want)
	}
}

func TestColorizeSizeMismatch(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 10, 10))
	dst := image.NewRGBA(image.Rect(0, 0, 10, 11))

	err := Colorize(dst, src, StandardRamp(), nil)
	if !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Colorize error = %v, want ErrSizeMismatch", err)
	}
}
