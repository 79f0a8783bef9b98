package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cwq-lab/denguewatch/internal/cluster"
	"github.com/cwq-lab/denguewatch/internal/core/config"
	"github.com/cwq-lab/denguewatch/internal/mapview"
	"github.com/cwq-lab/denguewatch/internal/state"
)

const fcBody = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"LOCALITY": "Bedok North Ave 1", "CASE_SIZE": 4},
      "geometry": {"type": "Polygon", "coordinates": [[[103.93, 1.33], [103.94, 1.33], [103.94, 1.34], [103.93, 1.33]]]}
    }
  ]
}`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, latest *state.Latest) http.Handler {
	t.Helper()
	return NewRouter(discard(), latest, mapview.New(config.Config{}))
}

func TestLatestClusters_BeforeFirstPoll(t *testing.T) {
	h := newTestRouter(t, state.New())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dengue/latest", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 before a snapshot exists", rec.Code)
	}
}

func TestLatestClusters_ServesSnapshotVerbatim(t *testing.T) {
	latest := state.New()
	at := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	snap, err := cluster.Parse([]byte(fcBody), at)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	latest.SetSnapshot(snap)
	h := newTestRouter(t, latest)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dengue/latest", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if gen := rec.Header().Get("X-Snapshot-Generation"); gen != "1" {
		t.Fatalf("X-Snapshot-Generation = %q, want 1", gen)
	}
	if got := rec.Header().Get("X-Snapshot-Fetched-At"); got != "2026-08-26T09:00:00Z" {
		t.Fatalf("X-Snapshot-Fetched-At = %q", got)
	}
	if rec.Body.String() != fcBody {
		t.Fatal("body must be the upstream document unmodified")
	}
}

func TestLatestRisk(t *testing.T) {
	latest := state.New()
	h := newTestRouter(t, latest)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/risk/latest", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 before a surface is computed", rec.Code)
	}

	latest.SetRisk([]byte(`{"type": "FeatureCollection", "features": []}`), 2, time.Now())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/risk/latest", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gen := rec.Header().Get("X-Snapshot-Generation"); gen != "2" {
		t.Fatalf("X-Snapshot-Generation = %q, want 2", gen)
	}
}

func TestHealthEndpoints(t *testing.T) {
	latest := state.New()
	h := newTestRouter(t, latest)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503 before the first poll", rec.Code)
	}

	snap, err := cluster.Parse([]byte(fcBody), time.Now())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	latest.SetSnapshot(snap)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d after snapshot", rec.Code)
	}
}

func TestMapView_Route(t *testing.T) {
	h := newTestRouter(t, state.New())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/map/view", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var view struct {
		Center struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"center"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view.Center.Lat != 1.3521 || view.Center.Lng != 103.8198 {
		t.Fatalf("center = %+v, want the island default", view.Center)
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := newTestRouter(t, state.New())

	req := httptest.NewRequest(http.MethodOptions, "/api/dengue/latest", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatal("preflight must carry CORS headers")
	}
}
