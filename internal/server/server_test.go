package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/paulmach/orb/maptile"

	"github.com/gogpu/heatmap"
	"github.com/gogpu/heatmap/internal/config"
	"github.com/gogpu/heatmap/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	milanLat = 45.4642
	milanLng = 9.19
)

func newTestServer(t *testing.T, cfg *config.Config, st *store.Store, points ...heatmap.Point) *Server {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	r, err := heatmap.NewRenderer(heatmap.NewPointSet(points...), heatmap.WithMaxTileEdge(cfg.MaxTileEdge))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Close)
	return New(cfg, r, st)
}

func do(s *Server, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func milanTilePath(z int) string {
	tile := TileAt(milanLat, milanLng, maptile.Zoom(z))
	return fmt.Sprintf("/tiles/%d/%d/%d.png", tile.Z, tile.X, tile.Y)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, nil, heatmap.NewPoint(milanLat, milanLng))
	w := do(s, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Status string `json:"status"`
		Points int    `json:"points"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Points != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestTileEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil, heatmap.NewPoint(milanLat, milanLng))
	path := milanTilePath(12)

	w := do(s, http.MethodGet, path, "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET %s status = %d, body %s", path, w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if got := w.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("first X-Cache = %q, want MISS", got)
	}

	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("invalid PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 256 || b.Dy() != 256 {
		t.Errorf("tile size = %v, want 256x256", b.Size())
	}

	w = do(s, http.MethodGet, path, "")
	if got := w.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second X-Cache = %q, want HIT", got)
	}
}

func TestTileEndpointEmpty(t *testing.T) {
	s := newTestServer(t, nil, nil, heatmap.NewPoint(milanLat, milanLng))

	// Far from the only point.
	if w := do(s, http.MethodGet, "/tiles/12/0/0.png", ""); w.Code != http.StatusNoContent {
		t.Errorf("distant tile status = %d, want 204", w.Code)
	}

	empty := newTestServer(t, nil, nil)
	if w := do(empty, http.MethodGet, milanTilePath(12), ""); w.Code != http.StatusNoContent {
		t.Errorf("tile without points status = %d, want 204", w.Code)
	}
	if n := empty.renderer.Stats().Cache.Len; n != 0 {
		t.Errorf("empty tiles cached: %d", n)
	}
}

func TestTileEndpointBadAddress(t *testing.T) {
	s := newTestServer(t, nil, nil, heatmap.NewPoint(milanLat, milanLng))
	for _, path := range []string{"/tiles/3/8/0.png", "/tiles/abc/0/0.png", "/tiles/40/0/0.png"} {
		if w := do(s, http.MethodGet, path, ""); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", path, w.Code)
		}
	}
}

func TestBounds(t *testing.T) {
	s := newTestServer(t, nil, nil, heatmap.NewPoint(45, 9), heatmap.NewPoint(46, 10))

	w := do(s, http.MethodGet, "/api/v1/points/bounds", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var f struct {
		Type     string `json:"type"`
		Geometry struct {
			Type        string         `json:"type"`
			Coordinates [][][2]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &f); err != nil {
		t.Fatal(err)
	}
	if f.Type != "Feature" || f.Geometry.Type != "Polygon" || f.Properties["count"] != float64(2) {
		t.Errorf("bounds feature = %+v", f)
	}

	minLng, minLat := 180.0, 90.0
	for _, c := range f.Geometry.Coordinates[0] {
		minLng = min(minLng, c[0])
		minLat = min(minLat, c[1])
	}
	if minLng < 8.999 || minLng > 9.001 || minLat < 44.999 || minLat > 45.001 {
		t.Errorf("south-west corner = (%v, %v), want (9, 45)", minLng, minLat)
	}

	empty := newTestServer(t, nil, nil)
	if w := do(empty, http.MethodGet, "/api/v1/points/bounds", ""); w.Code != http.StatusNoContent {
		t.Errorf("empty bounds status = %d, want 204", w.Code)
	}
}

const twoPoints = `{
	"type": "FeatureCollection",
	"features": [
		{"type": "Feature", "geometry": {"type": "Point", "coordinates": [9.19, 45.4642]}, "properties": {"intensity": 0.5}},
		{"type": "Feature", "geometry": {"type": "MultiPoint", "coordinates": [[9.2, 45.47], [9.21, 45.48]]}, "properties": null}
	]
}`

func TestPutPoints(t *testing.T) {
	st, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	s := newTestServer(t, nil, st)
	w := do(s, http.MethodPut, "/api/v1/points", twoPoints)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	if s.points.Len() != 3 || s.points.Version() != 1 {
		t.Errorf("points: Len() = %d, Version() = %d; want 3 and 1", s.points.Len(), s.points.Version())
	}
	pts, _ := s.points.Snapshot()
	if pts[0].Intensity != 0.5 || pts[1].Intensity != 1 {
		t.Errorf("intensities = %v, %v; want 0.5, 1", pts[0].Intensity, pts[1].Intensity)
	}
	if n, _ := st.Count(context.Background()); n != 3 {
		t.Errorf("stored points = %d, want 3", n)
	}

	// The new points are visible on the next tile request.
	if w := do(s, http.MethodGet, milanTilePath(12), ""); w.Code != http.StatusOK {
		t.Errorf("tile after PUT status = %d, want 200", w.Code)
	}
}

// multiPoint returns a FeatureCollection with one MultiPoint feature of n
// points, all on latitude lat.
func multiPoint(lat float64, n int) string {
	coords := make([]string, n)
	for i := range coords {
		coords[i] = fmt.Sprintf("[%v, %v]", milanLng+float64(i)*0.001, lat)
	}
	return `{"type": "FeatureCollection", "features": [{"type": "Feature",
		"geometry": {"type": "MultiPoint", "coordinates": [` + strings.Join(coords, ",") + `]},
		"properties": {}}]}`
}

func TestPutPointsConcurrentUploadsAgree(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	s := newTestServer(t, nil, st)

	const uploads = 8
	var wg sync.WaitGroup
	for i := 1; i <= uploads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w := do(s, http.MethodPut, "/api/v1/points", multiPoint(float64(i), i)); w.Code != http.StatusOK {
				t.Errorf("upload %d status = %d, body %s", i, w.Code, w.Body.String())
			}
		}()
	}
	wg.Wait()

	stored, err := st.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	live, _ := s.points.Snapshot()
	if len(stored) != len(live) {
		t.Fatalf("store holds %d points, renderer holds %d", len(stored), len(live))
	}
	if got, want := stored[0].Coordinate.Lat.Degrees(), live[0].Coordinate.Lat.Degrees(); math.Abs(got-want) > 1e-9 {
		t.Errorf("store holds the upload at latitude %v, renderer the one at %v", got, want)
	}
	if s.points.Version() != uploads {
		t.Errorf("Version() = %d, want %d", s.points.Version(), uploads)
	}
}

func TestPutPointsRejectsBadInput(t *testing.T) {
	s := newTestServer(t, nil, nil)
	tests := map[string]string{
		"not json":    `{"type":`,
		"line string": `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{}}]}`,
		"intensity":   `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"intensity":2}}]}`,
		"latitude":    `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[0,95]},"properties":{}}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if w := do(s, http.MethodPut, "/api/v1/points", body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
	if s.points.Version() != 0 {
		t.Error("rejected input must not replace points")
	}
}

func signedToken(t *testing.T, method jwt.SigningMethod, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   "ingest",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPutPointsAuth(t *testing.T) {
	cfg := config.Default()
	cfg.JWTSecret = "test-secret"
	s := newTestServer(t, cfg, nil)

	tests := []struct {
		name   string
		header []string
		want   int
	}{
		{"no token", nil, http.StatusUnauthorized},
		{"garbage", []string{"Authorization", "Bearer abc"}, http.StatusUnauthorized},
		{"wrong secret", []string{"Authorization", "Bearer " + signedToken(t, jwt.SigningMethodHS256, "other")}, http.StatusUnauthorized},
		{"wrong algorithm", []string{"Authorization", "Bearer " + signedToken(t, jwt.SigningMethodHS512, "test-secret")}, http.StatusUnauthorized},
		{"valid", []string{"Authorization", "Bearer " + signedToken(t, jwt.SigningMethodHS256, "test-secret")}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, http.MethodPut, "/api/v1/points", twoPoints, tt.header...)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	// Read endpoints stay public.
	if w := do(s, http.MethodGet, "/api/v1/stats", ""); w.Code != http.StatusOK {
		t.Errorf("stats status = %d, want 200", w.Code)
	}
}

func TestReload(t *testing.T) {
	s := newTestServer(t, nil, nil)
	if w := do(s, http.MethodPost, "/api/v1/points/reload", ""); w.Code != http.StatusConflict {
		t.Errorf("reload without store status = %d, want 409", w.Code)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.Add(ctx, []heatmap.Point{heatmap.NewPoint(1, 2), heatmap.NewPoint(3, 4)}); err != nil {
		t.Fatal(err)
	}

	s = newTestServer(t, nil, st)
	w := do(s, http.MethodPost, "/api/v1/points/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Count   int    `json:"count"`
		Version uint64 `json:"version"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 2 || body.Version != 1 || s.points.Len() != 2 {
		t.Errorf("reload body = %+v, points = %d", body, s.points.Len())
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t, nil, nil, heatmap.NewPoint(milanLat, milanLng))
	path := milanTilePath(10)
	do(s, http.MethodGet, path, "")
	do(s, http.MethodGet, path, "")

	w := do(s, http.MethodGet, "/api/v1/stats", "")
	var body struct {
		Points int `json:"points"`
		Cache  struct {
			Len        int    `json:"len"`
			Hits       uint64 `json:"hits"`
			TilesAdded uint64 `json:"tiles_added"`
		} `json:"cache"`
		Renders uint64 `json:"renders"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Points != 1 || body.Cache.Len != 1 || body.Cache.Hits != 1 || body.Cache.TilesAdded != 1 || body.Renders != 1 {
		t.Errorf("stats = %+v", body)
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := do(s, http.MethodGet, "/health", "")
	if _, err := uuid.Parse(w.Header().Get(requestIDHeader)); err != nil {
		t.Errorf("generated request ID %q is not a UUID", w.Header().Get(requestIDHeader))
	}

	id := uuid.NewString()
	w = do(s, http.MethodGet, "/health", "", requestIDHeader, id)
	if got := w.Header().Get(requestIDHeader); got != id {
		t.Errorf("request ID = %q, want reused %q", got, id)
	}

	w = do(s, http.MethodGet, "/health", "", requestIDHeader, "not-a-uuid")
	if got := w.Header().Get(requestIDHeader); got == "not-a-uuid" {
		t.Error("malformed request ID must be replaced")
	}
}
