package heatmap

import (
	"encoding/binary"
	"hash/fnv"
	"image"
	"math"
	"sync/atomic"

	"github.com/golang/geo/r2"

	"github.com/gogpu/heatmap/cache"
)

// DefaultCacheCapacity is the default number of tiles kept in memory.
const DefaultCacheCapacity = 100

// TileKey identifies one rendered tile: the viewport it covers, the zoom it
// was rendered at and the point data version it was rendered from.
// Keys that differ in any field never alias.
type TileKey struct {
	MinX, MinY    float64
	Width, Height float64
	ZoomScale     float64
	Version       uint64
}

// NewTileKey builds the key for a viewport at a zoom scale and data version.
func NewTileKey(viewport r2.Rect, zoomScale float64, version uint64) TileKey {
	size := viewport.Size()
	return TileKey{
		MinX:      viewport.X.Lo,
		MinY:      viewport.Y.Lo,
		Width:     size.X,
		Height:    size.Y,
		ZoomScale: zoomScale,
		Version:   version,
	}
}

// Viewport returns the map-plane rectangle the key covers.
func (k TileKey) Viewport() r2.Rect {
	return MapRect(k.MinX, k.MinY, k.Width, k.Height)
}

func hashTileKey(k TileKey) uint64 {
	h := fnv.New64a()
	var buf [48]byte
	for i, f := range [5]float64{k.MinX, k.MinY, k.Width, k.Height, k.ZoomScale} {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(f))
	}
	binary.LittleEndian.PutUint64(buf[40:], k.Version)
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

// Tile is a rendered, colorized tile.
//
// The image is owned by the cache once inserted. Callers receive it as a
// read-only view and must not modify its pixels.
type Tile struct {
	Key   TileKey
	Image *image.RGBA
}

// TileCacheStats is a snapshot of tile cache counters.
// Counters restart from zero on every InvalidateAll.
type TileCacheStats struct {
	cache.Stats
	TilesAdded uint64
	Version    uint64
}

// TileCache is a bounded, concurrent cache of rendered tiles tagged with
// the point data version they were rendered from.
//
// The cache only admits tiles of its current version. A render that began
// before an invalidation therefore cannot repopulate the cache with stale
// pixels once InvalidateAll has returned.
type TileCache struct {
	tiles   *cache.ShardedCache[TileKey, *Tile]
	version atomic.Uint64
	added   atomic.Uint64
}

// NewTileCache creates a tile cache holding at most capacity tiles.
// A non-positive capacity selects DefaultCacheCapacity.
func NewTileCache(capacity int) *TileCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &TileCache{
		tiles: cache.NewSharded[TileKey, *Tile](capacity, hashTileKey),
	}
}

// Lookup returns the cached tile for key, if present.
func (c *TileCache) Lookup(key TileKey) (*Tile, bool) {
	return c.tiles.Get(key)
}

// Insert stores t, evicting the least recently used tile when full.
// It reports false, storing nothing, when t was rendered for a version
// other than the cache's current one.
func (c *TileCache) Insert(t *Tile) bool {
	if t == nil || t.Image == nil {
		return false
	}
	ok := c.tiles.SetIf(t.Key, t, func() bool {
		return t.Key.Version == c.version.Load()
	})
	if ok {
		c.added.Add(1)
	}
	return ok
}

// InvalidateAll drops every tile, resets the statistics and makes version
// the only version admitted from now on.
func (c *TileCache) InvalidateAll(version uint64) {
	c.tiles.ClearWith(func() {
		c.version.Store(version)
		c.added.Store(0)
		c.tiles.ResetStats()
	})
}

// Advance invalidates the cache if version is newer than the current one.
// It reports whether an invalidation happened.
func (c *TileCache) Advance(version uint64) bool {
	if version <= c.version.Load() {
		return false
	}
	// Re-check under the gate: a concurrent Advance may have won, and its
	// tiles must survive.
	return c.tiles.ClearIf(
		func() bool { return version > c.version.Load() },
		func() {
			c.version.Store(version)
			c.added.Store(0)
			c.tiles.ResetStats()
		},
	)
}

// Version returns the data version the cache currently admits.
func (c *TileCache) Version() uint64 {
	return c.version.Load()
}

// Len returns the number of cached tiles.
func (c *TileCache) Len() int {
	return c.tiles.Len()
}

// Capacity returns the maximum number of cached tiles.
func (c *TileCache) Capacity() int {
	return c.tiles.Capacity()
}

// Stats returns the current counters.
func (c *TileCache) Stats() TileCacheStats {
	return TileCacheStats{
		Stats:      c.tiles.Stats(),
		TilesAdded: c.added.Load(),
		Version:    c.version.Load(),
	}
}
