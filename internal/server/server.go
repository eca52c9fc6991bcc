// Package server exposes a heatmap renderer as a slippy-map tile server.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gogpu/heatmap"
	"github.com/gogpu/heatmap/internal/config"
	"github.com/gogpu/heatmap/internal/store"
)

// Server serves heatmap tiles and the point management API.
type Server struct {
	cfg      *config.Config
	renderer *heatmap.Renderer
	points   *heatmap.PointSet
	store    *store.Store // nil when running without persistence
	engine   *gin.Engine

	// replaceMu serializes point replacement so the store and the point set
	// always end up holding the same upload.
	replaceMu sync.Mutex
}

// New creates a server for renderer. st may be nil, in which case point
// updates are kept in memory only and reload is unavailable.
func New(cfg *config.Config, renderer *heatmap.Renderer, st *store.Store) *Server {
	s := &Server{
		cfg:      cfg,
		renderer: renderer,
		points:   renderer.Points(),
		store:    st,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger())

	r.GET("/health", s.handleHealth)
	r.GET("/tiles/:z/:x/:y", s.handleTile)

	api := r.Group("/api/v1")
	{
		api.GET("/stats", s.handleStats)
		api.GET("/points/bounds", s.handleBounds)

		write := api.Group("/points", Auth(s.cfg.JWTSecret))
		{
			write.PUT("", s.handlePutPoints)
			write.POST("/reload", s.handleReload)
		}
	}

	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// LoadPoints replaces the in-memory points with the stored ones.
func (s *Server) LoadPoints(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, errNoStore
	}
	s.replaceMu.Lock()
	defer s.replaceMu.Unlock()

	points, err := s.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	s.points.SetPoints(points)
	return len(points), nil
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		heatmap.Logger().Info("tile server listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
