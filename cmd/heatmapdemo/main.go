// Command heatmapdemo renders one heatmap tile to a PNG file.
//
// Points are either generated around a center coordinate or loaded from a
// heatmapd SQLite database.
package main

import (
	"context"
	"flag"
	"image/png"
	"log"
	"math"
	"math/rand/v2"
	"os"

	"github.com/paulmach/orb/maptile"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/heatmap"
	"github.com/gogpu/heatmap/internal/server"
	"github.com/gogpu/heatmap/internal/store"
)

func main() {
	var (
		lat    = flag.Float64("lat", 45.4642, "center latitude")
		lng    = flag.Float64("lng", 9.1900, "center longitude")
		zoom   = flag.Uint("zoom", 13, "tile zoom level")
		count  = flag.Int("n", 2000, "number of random points")
		spread = flag.Float64("spread", 0.01, "standard deviation of random points, in degrees")
		seed   = flag.Uint64("seed", 1, "random seed")
		dbPath = flag.String("db", "", "load points from this SQLite database instead")
		ramp   = flag.String("ramp", "standard", `color ramp: "standard", "inverted" or a stop table`)
		size   = flag.Int("size", 512, "output image size")
		debug  = flag.Bool("debug", false, "stamp the tile with debug information")
		output = flag.String("output", "heatmap.png", "output file")
	)
	flag.Parse()

	var points []heatmap.Point
	if *dbPath != "" {
		st, err := store.Open(context.Background(), *dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		points, err = st.Load(context.Background())
		st.Close()
		if err != nil {
			log.Fatalf("Failed to load points: %v", err)
		}
	} else {
		points = randomPoints(*lat, *lng, *spread, *count, *seed)
	}

	r, err := heatmap.RampByName(*ramp)
	if err != nil {
		log.Fatalf("Invalid ramp: %v", err)
	}
	renderer, err := heatmap.NewRenderer(heatmap.NewPointSet(points...),
		heatmap.WithColorRamp(r),
		heatmap.WithMaxTileEdge(*size),
		heatmap.WithDebugOverlay(*debug),
	)
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}
	defer renderer.Close()

	tile := server.TileAt(*lat, *lng, maptile.Zoom(*zoom))
	viewport := server.TileViewport(tile)
	canvas := heatmap.NewImageCanvas(*size, *size, viewport)

	if err := renderer.DrawTile(viewport, server.TileZoomScale(tile, *size), canvas); err != nil {
		log.Fatalf("Failed to render: %v", err)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	if err := png.Encode(f, canvas.Image); err != nil {
		f.Close()
		log.Fatalf("Failed to save: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	p := message.NewPrinter(language.English)
	log.Print(p.Sprintf("Tile %d/%d/%d with %d points saved to %s (%dx%d)",
		tile.Z, tile.X, tile.Y, len(points), *output, *size, *size))
}

// randomPoints scatters n points normally around a center.
func randomPoints(lat, lng, spread float64, n int, seed uint64) []heatmap.Point {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	points := make([]heatmap.Point, 0, n)
	for range n {
		la := math.Max(-90, math.Min(90, lat+rng.NormFloat64()*spread))
		lo := lng + rng.NormFloat64()*spread
		p := heatmap.NewPoint(la, lo)
		p.Intensity = float32(0.3 + 0.7*rng.Float64())
		points = append(points, p)
	}
	return points
}
