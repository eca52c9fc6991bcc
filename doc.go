// Package heatmap renders density heatmaps as map overlay tiles.
//
// # Overview
//
// Geographic points are projected onto a Web-Mercator map plane. For each
// requested tile, every point near the tile contributes a radial falloff
// to an 8-bit density field, the density is mapped to color through a
// Ramp, and the result is stored as a premultiplied RGBA image in a
// bounded tile cache keyed by viewport, zoom scale and data version.
//
// # Quick Start
//
//	points := heatmap.NewPointSet(
//		heatmap.NewPoint(45.4642, 9.1900),
//		heatmap.NewPoint(45.4700, 9.1800),
//	)
//
//	r, err := heatmap.NewRenderer(points)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer r.Close()
//
//	viewport := heatmap.MapRect(x, y, width, height)
//	canvas := heatmap.NewImageCanvas(256, 256, viewport)
//	if err := r.DrawTile(viewport, 256/width, canvas); err != nil {
//		log.Fatal(err)
//	}
//
// # Coordinate System
//
// The map plane is WorldSize units on each side:
//   - Origin (0,0) at longitude -180, latitude +MaxLatitude
//   - X increases east
//   - Y increases south
//
// A viewport is an r2.Rect on this plane. The zoom scale is the number of
// screen pixels per map unit; the falloff radius of a point is
// BaseRadius / zoomScale map units.
//
// # Invalidation
//
// Replacing the contents of a PointSet bumps its version. The renderer
// clears its tile cache on the change hook and again lazily when it sees a
// newer version on a draw. The cache admits only tiles rendered for its
// current version, so a render racing with an update never leaves stale
// tiles behind.
//
// # Logging
//
// The package is silent by default. See SetLogger.
package heatmap
