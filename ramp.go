package heatmap

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRamp is returned when a color stop table cannot form a ramp.
var ErrInvalidRamp = errors.New("heatmap: invalid color ramp")

// ColorStop is one control point of a color ramp.
// Threshold is the density value (0-255) at which Color is reached exactly.
type ColorStop struct {
	Threshold uint8
	Color     RGBA
}

// Ramp maps an 8-bit density value to a color by piecewise-linear
// interpolation between ascending color stops.
//
// All 256 results are computed once by NewRamp, so ColorAt and
// Premultiplied are table lookups. A Ramp is immutable and safe for
// concurrent use.
type Ramp struct {
	stops  []ColorStop
	lut    [256]RGBA
	premul [256][4]uint8
}

// NewRamp creates a ramp from the given stops.
//
// The stops must be non-empty, have non-decreasing thresholds and color
// components in [0, 1]. Equal consecutive thresholds produce a hard step.
func NewRamp(stops ...ColorStop) (*Ramp, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("%w: no color stops", ErrInvalidRamp)
	}
	for i, s := range stops {
		if !s.Color.valid() {
			return nil, fmt.Errorf("%w: stop %d color %v out of range", ErrInvalidRamp, i, s.Color)
		}
		if i > 0 && s.Threshold < stops[i-1].Threshold {
			return nil, fmt.Errorf("%w: stop %d threshold %d below previous %d",
				ErrInvalidRamp, i, s.Threshold, stops[i-1].Threshold)
		}
	}

	r := &Ramp{stops: append([]ColorStop(nil), stops...)}
	for i := range 256 {
		c := r.interpolate(uint8(i))
		r.lut[i] = c
		r.premul[i] = c.PremultipliedBytes()
	}
	return r, nil
}

// MustRamp is like NewRamp but panics on an invalid table.
// Intended for package-level ramp definitions.
func MustRamp(stops ...ColorStop) *Ramp {
	r, err := NewRamp(stops...)
	if err != nil {
		panic(err)
	}
	return r
}

// ColorAt returns the straight (non-premultiplied) color for a density value.
func (r *Ramp) ColorAt(intensity uint8) RGBA {
	return r.lut[intensity]
}

// Premultiplied returns the premultiplied 8-bit color for a density value
// in image.RGBA byte order.
func (r *Ramp) Premultiplied(intensity uint8) [4]uint8 {
	return r.premul[intensity]
}

// Stops returns a copy of the ramp's color stops.
func (r *Ramp) Stops() []ColorStop {
	return append([]ColorStop(nil), r.stops...)
}

// interpolate evaluates the stop table directly. Used to fill the LUT.
func (r *Ramp) interpolate(v uint8) RGBA {
	stops := r.stops
	if v <= stops[0].Threshold {
		return stops[0].Color
	}

	last := stops[len(stops)-1]
	if v > last.Threshold {
		return last.Color
	}

	for i := 1; i < len(stops); i++ {
		curr := stops[i]
		if v > curr.Threshold {
			continue
		}
		if v == curr.Threshold {
			return curr.Color
		}
		prev := stops[i-1]
		factor := float32(1)
		if curr.Threshold != prev.Threshold {
			factor = float32(v-prev.Threshold) / float32(curr.Threshold-prev.Threshold)
			factor = clamp01(factor)
		}
		return prev.Color.Lerp(curr.Color, factor)
	}

	return last.Color
}

var (
	standardRamp = MustRamp(
		ColorStop{0, RGBA{0, 0, 0, 0}},       // transparent
		ColorStop{50, RGBA{0, 0, 1, 0.4}},    // light blue
		ColorStop{100, RGBA{0, 1, 1, 0.6}},   // cyan
		ColorStop{150, RGBA{0, 1, 0, 0.75}},  // green
		ColorStop{200, RGBA{1, 1, 0, 0.85}},  // yellow
		ColorStop{225, RGBA{1, 0.5, 0, 0.9}}, // orange
		ColorStop{255, RGBA{1, 0, 0, 0.95}},  // red, not white
	)

	invertedRamp = MustRamp(
		ColorStop{0, RGBA{0, 0, 0, 0}},
		ColorStop{60, RGBA{1, 0, 0, 0.4}},
		ColorStop{100, RGBA{1, 0.5, 0, 0.6}},
		ColorStop{150, RGBA{1, 1, 0, 0.75}},
		ColorStop{200, RGBA{0, 1, 0, 0.85}},
		ColorStop{225, RGBA{0, 1, 1, 0.9}},
		ColorStop{245, RGBA{0, 0, 1, 0.95}},
		ColorStop{255, RGBA{0, 0, 1, 0.5}},
	)
)

// StandardRamp returns the cold-to-hot ramp: transparent, blue, cyan,
// green, yellow, orange, red.
func StandardRamp() *Ramp { return standardRamp }

// InvertedRamp returns the hot-to-cold ramp: transparent, red, orange,
// yellow, green, cyan, blue, fading out at the very top.
func InvertedRamp() *Ramp { return invertedRamp }

// RampByName resolves "standard" or "inverted". Any other value is parsed
// as a stop table with ParseRamp.
func RampByName(name string) (*Ramp, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "standard":
		return StandardRamp(), nil
	case "inverted":
		return InvertedRamp(), nil
	}
	return ParseRamp(name)
}

// ParseRamp parses a stop table of the form
//
//	"0:#00000000,100:#0000ff,255:#ff0000"
//
// Each entry is a threshold (0-255) and a hex color accepted by Hex.
func ParseRamp(s string) (*Ramp, error) {
	var stops []ColorStop
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		th, col, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("%w: entry %q is not threshold:color", ErrInvalidRamp, entry)
		}
		t, err := strconv.ParseUint(strings.TrimSpace(th), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: threshold %q: %v", ErrInvalidRamp, th, err)
		}
		c, err := Hex(strings.TrimSpace(col))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRamp, err)
		}
		stops = append(stops, ColorStop{Threshold: uint8(t), Color: c})
	}
	return NewRamp(stops...)
}
