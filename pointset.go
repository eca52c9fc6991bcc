package heatmap

import (
	"sync"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s2"
)

// PointSet is the mutable container of heatmap points.
//
// Every replacement of the contents bumps Version exactly once and drops
// the cached bounding rectangle. Readers never see a partially replaced
// set. PointSet is safe for concurrent use.
type PointSet struct {
	mu       sync.RWMutex
	points   []Point
	version  uint64
	bounds   r2.Rect
	boundsOK bool
	onChange func(version uint64)
}

// NewPointSet creates a point set holding a copy of points.
// The initial version is 0.
func NewPointSet(points ...Point) *PointSet {
	return &PointSet{points: append([]Point(nil), points...)}
}

// SetData replaces the contents with full-intensity points at the given
// coordinates.
func (s *PointSet) SetData(coords []s2.LatLng) {
	points := make([]Point, len(coords))
	for i, c := range coords {
		points[i] = Point{Coordinate: c, Intensity: 1}
	}
	s.replace(points)
}

// SetPoints replaces the contents with a copy of points.
func (s *PointSet) SetPoints(points []Point) {
	s.replace(append([]Point(nil), points...))
}

// Clear removes all points.
func (s *PointSet) Clear() {
	s.replace(nil)
}

func (s *PointSet) replace(points []Point) {
	s.mu.Lock()
	s.points = points
	s.version++
	s.boundsOK = false
	version := s.version
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook(version)
	}
}

// OnChange installs the hook called synchronously after every replacement
// with the new version. Only one hook is kept; a later call replaces it.
func (s *PointSet) OnChange(fn func(version uint64)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Version returns the data version, incremented once per replacement.
func (s *PointSet) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len returns the number of points.
func (s *PointSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// Snapshot returns a private copy of the points together with the version
// they belong to.
func (s *PointSet) Snapshot() ([]Point, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Point(nil), s.points...), s.version
}

// BoundingRect returns the smallest map-plane rectangle covering every
// point. It is computed on first access after a replacement and cached.
// An empty set yields r2.EmptyRect().
func (s *PointSet) BoundingRect() r2.Rect {
	s.mu.RLock()
	if s.boundsOK {
		b := s.bounds
		s.mu.RUnlock()
		return b
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.boundsOK {
		b := r2.EmptyRect()
		for _, p := range s.points {
			b = b.AddPoint(p.MapPoint())
		}
		s.bounds = b
		s.boundsOK = true
	}
	return s.bounds
}
