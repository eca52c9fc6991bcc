package heatmap

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/golang/geo/r2"

	"github.com/gogpu/heatmap/internal/parallel"
)

// Errors returned by Renderer.
var (
	// ErrInvalidViewport is returned for a viewport with a non-positive or
	// non-finite size, or a non-positive or non-finite zoom scale.
	ErrInvalidViewport = errors.New("heatmap: invalid viewport")

	// ErrNoPoints is returned by RenderTile when the point set is empty.
	// DrawTile treats it as "nothing to draw".
	ErrNoPoints = errors.New("heatmap: no points")

	// ErrRenderFailed is returned when a single tile render aborted.
	// The cache is left untouched.
	ErrRenderFailed = errors.New("heatmap: tile render failed")
)

// Renderer draws density heatmap tiles for a PointSet and caches them per
// viewport, zoom scale and data version.
//
// A Renderer is safe for concurrent use. Concurrent requests for different
// tiles render in parallel; each render colorizes on a shared worker pool.
type Renderer struct {
	points *PointSet
	opts   options
	cache  *TileCache
	pool   *parallel.WorkerPool

	renders  atomic.Uint64
	failures atomic.Uint64
}

// NewRenderer creates a renderer for points.
//
// The renderer registers itself as the point set's change hook, so every
// replacement of the points invalidates the tile cache immediately.
// Tiles are additionally checked against the point set version on every
// draw.
func NewRenderer(points *PointSet, opts ...Option) (*Renderer, error) {
	if points == nil {
		return nil, errors.New("heatmap: nil point set")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	r := &Renderer{
		points: points,
		opts:   o,
		cache:  NewTileCache(o.cacheCapacity),
		pool:   parallel.NewWorkerPool(o.workers),
	}
	r.cache.InvalidateAll(points.Version())
	points.OnChange(r.pointsChanged)

	return r, nil
}

func (r *Renderer) pointsChanged(version uint64) {
	if r.cache.Advance(version) {
		Logger().Info("heatmap: points changed, tile cache invalidated", "version", version)
	}
}

// Points returns the point set the renderer draws.
func (r *Renderer) Points() *PointSet {
	return r.points
}

// Ramp returns the renderer's color ramp.
func (r *Renderer) Ramp() *Ramp {
	return r.opts.ramp
}

// MaxTileEdge returns the pixel length of a rendered tile's longer edge.
func (r *Renderer) MaxTileEdge() int {
	return r.opts.maxTileEdge
}

// DrawTile draws the heatmap for viewport at zoomScale onto dst, rendering
// and caching the tile first if needed.
//
// An empty point set draws nothing and returns nil. dst may be nil to only
// warm the cache.
func (r *Renderer) DrawTile(viewport r2.Rect, zoomScale float64, dst Canvas) error {
	tile, _, err := r.RenderTile(viewport, zoomScale)
	if errors.Is(err, ErrNoPoints) {
		return nil
	}
	if err != nil {
		return err
	}
	if dst != nil {
		dst.DrawImage(viewport, tile.Image)
	}
	return nil
}

// RenderTile returns the tile for viewport at zoomScale and whether it came
// from the cache.
//
// zoomScale is the ratio of screen pixels to map units, as in a map view's
// zoom scale. The returned image is shared with the cache and must be
// treated as read-only.
func (r *Renderer) RenderTile(viewport r2.Rect, zoomScale float64) (*Tile, bool, error) {
	version := r.points.Version()
	if r.cache.Advance(version) {
		Logger().Info("heatmap: stale tiles dropped", "version", version)
	}

	key := NewTileKey(viewport, zoomScale, version)
	if tile, ok := r.cache.Lookup(key); ok {
		Logger().Debug("heatmap: tile cache hit", "key", key)
		return tile, true, nil
	}

	points, snapVersion := r.points.Snapshot()
	if len(points) == 0 {
		Logger().Debug("heatmap: no points to draw", "version", snapVersion)
		return nil, false, ErrNoPoints
	}
	if snapVersion != version {
		// The points changed since the lookup; render what was read.
		key.Version = snapVersion
		r.cache.Advance(snapVersion)
	}

	if err := checkViewport(viewport, zoomScale); err != nil {
		Logger().Warn("heatmap: tile skipped", "err", err)
		return nil, false, err
	}

	tile, err := r.render(key, points)
	if err != nil {
		r.failures.Add(1)
		Logger().Warn("heatmap: tile render failed", "key", key, "err", err)
		return nil, false, err
	}
	r.renders.Add(1)

	if r.cache.Insert(tile) {
		Logger().Debug("heatmap: tile cache miss, tile added",
			"key", key, "tilesAdded", r.cache.Stats().TilesAdded)
	} else {
		Logger().Debug("heatmap: tile rendered for superseded version, not cached", "key", key)
	}
	return tile, false, nil
}

func checkViewport(viewport r2.Rect, zoomScale float64) error {
	size := viewport.Size()
	for _, v := range [...]float64{viewport.X.Lo, viewport.Y.Lo, size.X, size.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidViewport, viewport)
		}
	}
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("%w: size %vx%v", ErrInvalidViewport, size.X, size.Y)
	}
	if math.IsNaN(zoomScale) || math.IsInf(zoomScale, 0) || zoomScale <= 0 {
		return fmt.Errorf("%w: zoom scale %v", ErrInvalidViewport, zoomScale)
	}
	return nil
}

// TileSize returns the pixel size of the tile rendered for a viewport of
// the given map-plane size and the map-units-to-pixels scale used.
// The longer edge is maxEdge pixels.
func TileSize(size r2.Point, maxEdge int) (width, height int, scale float64) {
	scale = float64(maxEdge) / math.Max(size.X, size.Y)
	return pixelEdge(size.X * scale), pixelEdge(size.Y * scale), scale
}

// pixelEdge rounds a scaled edge up to whole pixels, ignoring float noise
// so an edge of exactly maxEdge stays maxEdge.
func pixelEdge(v float64) int {
	return max(int(math.Ceil(v-1e-9)), 1)
}

// render rasterizes and colorizes one tile. A panic is recovered and
// reported as ErrRenderFailed.
func (r *Renderer) render(key TileKey, points []Point) (tile *Tile, err error) {
	defer func() {
		if p := recover(); p != nil {
			tile = nil
			err = fmt.Errorf("%w: %v", ErrRenderFailed, p)
		}
	}()

	viewport := key.Viewport()
	w, h, scale := TileSize(viewport.Size(), r.opts.maxTileEdge)

	density, err := newDensityBuffer(w, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
	img, err := newTileImage(w, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}

	radius := r.opts.baseRadius / key.ZoomScale
	drawn := Rasterize(density, viewport, scale, points, radius)

	if err := Colorize(img, density, r.opts.ramp, r.pool); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
	if r.opts.debug {
		stampDebug(img, key, drawn)
	}

	return &Tile{Key: key, Image: img}, nil
}

// Invalidate drops every cached tile.
func (r *Renderer) Invalidate() {
	version := max(r.points.Version(), r.cache.Version())
	r.cache.InvalidateAll(version)
	Logger().Info("heatmap: tile cache cleared", "version", version)
}

// RendererStats reports renderer activity. Cache counters restart on every
// invalidation; Renders and Failures count for the renderer's lifetime.
type RendererStats struct {
	Cache    TileCacheStats
	Renders  uint64
	Failures uint64
}

// Stats returns the current counters.
func (r *Renderer) Stats() RendererStats {
	return RendererStats{
		Cache:    r.cache.Stats(),
		Renders:  r.renders.Load(),
		Failures: r.failures.Load(),
	}
}

// Close stops the colorizer workers. Tiles requested after Close are still
// rendered, on the calling goroutine.
func (r *Renderer) Close() {
	r.pool.Close()
}
