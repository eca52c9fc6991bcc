// Command heatmapd serves heatmap tiles for points stored in SQLite.
//
// Usage:
//
//	heatmapd -addr :8080 -db ./data/points.db
//
// Tiles are served at /tiles/{z}/{x}/{y}.png. Points are replaced with
// PUT /api/v1/points (a GeoJSON FeatureCollection), protected by an
// HS256 bearer token when JWT_SECRET or -jwt-secret is set.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gogpu/heatmap"
	"github.com/gogpu/heatmap/internal/config"
	"github.com/gogpu/heatmap/internal/server"
	"github.com/gogpu/heatmap/internal/store"
)

func main() {
	if err := run(); err != nil {
		heatmap.Logger().Error("heatmapd failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	heatmap.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	opts, err := cfg.RendererOptions()
	if err != nil {
		return err
	}
	renderer, err := heatmap.NewRenderer(heatmap.NewPointSet(), opts...)
	if err != nil {
		return err
	}
	defer renderer.Close()

	srv := server.New(cfg, renderer, st)
	n, err := srv.LoadPoints(ctx)
	if err != nil {
		return err
	}
	heatmap.Logger().Info("points loaded", "count", n, "db", cfg.DBPath)

	return srv.Run(ctx)
}
