package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/gogpu/heatmap"
)

var errNoStore = errors.New("no point store configured")

// maxBodySize bounds uploaded point collections.
const maxBodySize = 64 << 20

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"points": s.points.Len(),
	})
}

// handleTile handles GET /tiles/:z/:x/:y.png
func (s *Server) handleTile(c *gin.Context) {
	t, err := ParseTile(c.Param("z"), c.Param("x"), c.Param("y"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewport := TileViewport(t)
	zoomScale := TileZoomScale(t, s.cfg.TileSize)

	// Tiles no point can reach are empty; skip rendering and caching them.
	reach := s.points.BoundingRect().ExpandedByMargin(s.cfg.BaseRadius / zoomScale)
	if !reach.Intersects(viewport) {
		c.Status(http.StatusNoContent)
		return
	}

	tile, hit, err := s.renderer.RenderTile(viewport, zoomScale)
	switch {
	case errors.Is(err, heatmap.ErrNoPoints):
		c.Status(http.StatusNoContent)
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tile render failed"})
		return
	}

	canvas := heatmap.NewImageCanvas(s.cfg.TileSize, s.cfg.TileSize, viewport)
	canvas.DrawImage(viewport, tile.Image)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas.Image); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tile encoding failed"})
		return
	}

	cache := "MISS"
	if hit {
		cache = "HIT"
	}
	c.Header("X-Cache", cache)
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleStats(c *gin.Context) {
	stats := s.renderer.Stats()
	c.JSON(http.StatusOK, gin.H{
		"points":  s.points.Len(),
		"version": s.points.Version(),
		"cache": gin.H{
			"len":         stats.Cache.Len,
			"capacity":    stats.Cache.Capacity,
			"hits":        stats.Cache.Hits,
			"misses":      stats.Cache.Misses,
			"hit_rate":    stats.Cache.HitRate,
			"evictions":   stats.Cache.Evictions,
			"rejected":    stats.Cache.Rejected,
			"tiles_added": stats.Cache.TilesAdded,
		},
		"renders":  stats.Renders,
		"failures": stats.Failures,
	})
}

// handleBounds returns the bounding box of the points as a GeoJSON feature.
func (s *Server) handleBounds(c *gin.Context) {
	rect := s.points.BoundingRect()
	if rect.IsEmpty() {
		c.Status(http.StatusNoContent)
		return
	}

	f := geojson.NewFeature(BoundOf(rect).ToPolygon())
	f.Properties["count"] = s.points.Len()
	f.Properties["version"] = s.points.Version()
	c.JSON(http.StatusOK, f)
}

// handlePutPoints replaces all points with a GeoJSON FeatureCollection of
// Point or MultiPoint features. A numeric "intensity" property sets the
// weight of a feature's points (default 1).
func (s *Server) handlePutPoints(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid GeoJSON: " + err.Error()})
		return
	}
	points, err := pointsFromFeatures(fc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.replacePoints(c.Request.Context(), points); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saving points failed"})
		return
	}

	heatmap.Logger().Info("points replaced",
		"count", len(points), "subject", c.GetString(subjectKey), "request_id", c.GetString(requestIDKey))
	c.JSON(http.StatusOK, gin.H{"count": len(points), "version": s.points.Version()})
}

// replacePoints persists points, when a store is configured, and then
// publishes them to the renderer.
func (s *Server) replacePoints(ctx context.Context, points []heatmap.Point) error {
	s.replaceMu.Lock()
	defer s.replaceMu.Unlock()

	if s.store != nil {
		if err := s.store.Replace(ctx, points); err != nil {
			return err
		}
	}
	s.points.SetPoints(points)
	return nil
}

func (s *Server) handleReload(c *gin.Context) {
	n, err := s.LoadPoints(c.Request.Context())
	if errors.Is(err, errNoStore) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading points failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n, "version": s.points.Version()})
}

func pointsFromFeatures(fc *geojson.FeatureCollection) ([]heatmap.Point, error) {
	var points []heatmap.Point
	for i, f := range fc.Features {
		intensity := float32(f.Properties.MustFloat64("intensity", 1))
		if intensity < 0 || intensity > 1 {
			return nil, fmt.Errorf("feature %d: intensity must be in [0, 1]", i)
		}

		var coords []orb.Point
		switch g := f.Geometry.(type) {
		case orb.Point:
			coords = []orb.Point{g}
		case orb.MultiPoint:
			coords = g
		default:
			return nil, fmt.Errorf("feature %d: geometry must be Point or MultiPoint, got %s", i, geometryType(f.Geometry))
		}

		for _, p := range coords {
			if p.Lat() < -90 || p.Lat() > 90 || p.Lon() < -180 || p.Lon() > 180 {
				return nil, fmt.Errorf("feature %d: coordinate %v out of range", i, p)
			}
			points = append(points, heatmap.Point{
				Coordinate: s2.LatLngFromDegrees(p.Lat(), p.Lon()),
				Intensity:  intensity,
			})
		}
	}
	return points, nil
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "null"
	}
	return g.GeoJSONType()
}
