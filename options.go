package heatmap

import (
	"fmt"
	"math"
)

// Defaults for a Renderer created without options.
const (
	// DefaultBaseRadius is the falloff radius of a point, in map units at
	// zoom scale 1.
	DefaultBaseRadius = 35.0

	// DefaultMaxTileEdge is the longest edge, in pixels, of a rendered tile.
	DefaultMaxTileEdge = 512
)

// Option configures a Renderer during creation.
//
// Example:
//
//	r, err := heatmap.NewRenderer(points,
//		heatmap.WithColorRamp(heatmap.InvertedRamp()),
//		heatmap.WithCacheCapacity(256),
//	)
type Option func(*options)

type options struct {
	baseRadius    float64
	maxTileEdge   int
	cacheCapacity int
	ramp          *Ramp
	workers       int
	debug         bool
}

func defaultOptions() options {
	return options{
		baseRadius:    DefaultBaseRadius,
		maxTileEdge:   DefaultMaxTileEdge,
		cacheCapacity: DefaultCacheCapacity,
		ramp:          StandardRamp(),
		workers:       0, // GOMAXPROCS
	}
}

func (o *options) validate() error {
	if math.IsNaN(o.baseRadius) || math.IsInf(o.baseRadius, 0) || o.baseRadius < 0 {
		return fmt.Errorf("heatmap: invalid base radius %v", o.baseRadius)
	}
	if o.maxTileEdge <= 0 || o.maxTileEdge > MaxTileEdgeLimit {
		return fmt.Errorf("%w: max tile edge %d", ErrInvalidDimensions, o.maxTileEdge)
	}
	if o.cacheCapacity <= 0 {
		return fmt.Errorf("heatmap: invalid cache capacity %d", o.cacheCapacity)
	}
	if o.ramp == nil {
		return fmt.Errorf("%w: nil ramp", ErrInvalidRamp)
	}
	return nil
}

// WithBaseRadius sets the point falloff radius in map units at zoom scale 1.
// The radius drawn at zoom scale z is radius / z.
func WithBaseRadius(radius float64) Option {
	return func(o *options) {
		o.baseRadius = radius
	}
}

// WithMaxTileEdge sets the pixel length of a tile's longer edge.
// Must be in (0, MaxTileEdgeLimit].
func WithMaxTileEdge(edge int) Option {
	return func(o *options) {
		o.maxTileEdge = edge
	}
}

// WithCacheCapacity sets how many tiles the renderer keeps.
func WithCacheCapacity(tiles int) Option {
	return func(o *options) {
		o.cacheCapacity = tiles
	}
}

// WithColorRamp selects the color ramp. See StandardRamp, InvertedRamp and
// NewRamp.
func WithColorRamp(r *Ramp) Option {
	return func(o *options) {
		o.ramp = r
	}
}

// WithWorkers sets the number of colorizer workers.
// Zero or negative uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithDebugOverlay stamps every rendered tile with its border and a label
// showing the data version, zoom scale and point count.
func WithDebugOverlay(enabled bool) Option {
	return func(o *options) {
		o.debug = enabled
	}
}
