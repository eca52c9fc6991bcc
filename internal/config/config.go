// Package config loads the tile server configuration from the environment
// and command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/gogpu/heatmap"
)

// Config is the tile server configuration.
type Config struct {
	Addr      string
	DBPath    string
	JWTSecret string // empty disables authentication of write endpoints

	Ramp          string
	BaseRadius    float64
	TileSize      int // pixel size of served tiles
	MaxTileEdge   int // pixel size of rendered tiles
	CacheCapacity int
	Workers       int
	Debug         bool
	LogLevel      slog.Level
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:          ":8080",
		DBPath:        "./data/points.db",
		Ramp:          "standard",
		BaseRadius:    heatmap.DefaultBaseRadius,
		TileSize:      256,
		MaxTileEdge:   heatmap.DefaultMaxTileEdge,
		CacheCapacity: heatmap.DefaultCacheCapacity,
		LogLevel:      slog.LevelInfo,
	}
}

// Load builds the configuration from defaults, then environment variables
// (PORT, DB_PATH, JWT_SECRET, HEATMAP_*), then args.
func Load(args []string) (*Config, error) {
	cfg := Default()
	if err := cfg.fromEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("heatmapd", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HMAC secret for write endpoints (empty disables auth)")
	fs.StringVar(&cfg.Ramp, "ramp", cfg.Ramp, `color ramp: "standard", "inverted" or a stop table`)
	fs.Float64Var(&cfg.BaseRadius, "radius", cfg.BaseRadius, "point radius in map units at zoom scale 1")
	fs.IntVar(&cfg.TileSize, "tile-size", cfg.TileSize, "served tile size in pixels")
	fs.IntVar(&cfg.MaxTileEdge, "max-tile-edge", cfg.MaxTileEdge, "rendered tile size in pixels")
	fs.IntVar(&cfg.CacheCapacity, "cache", cfg.CacheCapacity, "number of cached tiles")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "colorizer workers (0 = GOMAXPROCS)")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "stamp tiles with debug information")
	fs.TextVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) fromEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		if !strings.Contains(v, ":") {
			v = ":" + v
		}
		c.Addr = v
	}
	str("DB_PATH", &c.DBPath)
	str("JWT_SECRET", &c.JWTSecret)
	str("HEATMAP_RAMP", &c.Ramp)
	num("HEATMAP_TILE_SIZE", &c.TileSize)
	num("HEATMAP_MAX_TILE_EDGE", &c.MaxTileEdge)
	num("HEATMAP_CACHE", &c.CacheCapacity)
	num("HEATMAP_WORKERS", &c.Workers)

	if v, ok := lookup("HEATMAP_RADIUS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: HEATMAP_RADIUS: %w", err))
		} else {
			c.BaseRadius = f
		}
	}
	if v, ok := lookup("HEATMAP_DEBUG"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: HEATMAP_DEBUG: %w", err))
		} else {
			c.Debug = b
		}
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("config: LOG_LEVEL: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Validate checks ranges that the renderer does not check itself.
func (c *Config) Validate() error {
	if c.TileSize <= 0 || c.TileSize > heatmap.MaxTileEdgeLimit {
		return fmt.Errorf("config: tile size %d out of range", c.TileSize)
	}
	if _, err := heatmap.RampByName(c.Ramp); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// RendererOptions translates the configuration into renderer options.
func (c *Config) RendererOptions() ([]heatmap.Option, error) {
	ramp, err := heatmap.RampByName(c.Ramp)
	if err != nil {
		return nil, err
	}
	return []heatmap.Option{
		heatmap.WithColorRamp(ramp),
		heatmap.WithBaseRadius(c.BaseRadius),
		heatmap.WithMaxTileEdge(c.MaxTileEdge),
		heatmap.WithCacheCapacity(c.CacheCapacity),
		heatmap.WithWorkers(c.Workers),
		heatmap.WithDebugOverlay(c.Debug),
	}, nil
}
