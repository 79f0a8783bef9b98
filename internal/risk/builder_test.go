package risk

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cwq-lab/denguewatch/internal/cluster"
	"github.com/cwq-lab/denguewatch/internal/core/model"
)

// gridMapper fakes rasterization deterministically: each geometry maps to
// cells derived from the rounded coordinates of its first vertex.
type gridMapper struct{}

func (gridMapper) CellsForGeometry(geom json.RawMessage, res int) (model.Cells, error) {
	var tmp struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(geom, &tmp); err != nil {
		return nil, err
	}
	var ring [][]float64
	switch tmp.Type {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(tmp.Coordinates, &coords); err != nil {
			return nil, err
		}
		ring = coords[0]
	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(tmp.Coordinates, &coords); err != nil {
			return nil, err
		}
		ring = coords[0][0]
	}
	var cells model.Cells
	for _, xy := range ring {
		// two decimal places is roughly one fake cell per km
		cells = append(cells, fmt.Sprintf("%.2f|%.2f", xy[0], xy[1]))
	}
	sort.Strings(cells)
	return slices.Compact(cells), nil
}

const builderBoundaries = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"SUBZONE_N": "BEDOK NORTH"},
      "geometry": {"type": "Polygon", "coordinates": [[[103.93, 1.33], [103.94, 1.33], [103.94, 1.34], [103.93, 1.34], [103.93, 1.33]]]}
    },
    {
      "type": "Feature",
      "properties": {"SUBZONE_N": "TAMPINES EAST"},
      "geometry": {"type": "Polygon", "coordinates": [[[103.95, 1.35], [103.96, 1.35], [103.96, 1.36], [103.95, 1.36], [103.95, 1.35]]]}
    }
  ]
}`

// one cluster entirely inside the BEDOK NORTH fake grid
const builderClusters = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"LOCALITY": "Bedok North Ave 1", "CASE_SIZE": 8},
      "geometry": {"type": "Polygon", "coordinates": [[[103.93, 1.33], [103.94, 1.33], [103.94, 1.34], [103.93, 1.33]]]}
    }
  ]
}`

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	w, err := DeriveWeights(DefaultMatrix())
	if err != nil {
		t.Fatalf("DeriveWeights: %v", err)
	}
	b := NewBuilder(discardLog(), gridMapper{}, 9, NewEngine(w, 14*24*time.Hour))
	if err := b.SetBoundaries([]byte(builderBoundaries)); err != nil {
		t.Fatalf("SetBoundaries: %v", err)
	}
	return b
}

func TestBuilder_NotReadyBeforeBoundaries(t *testing.T) {
	w, _ := DeriveWeights(DefaultMatrix())
	b := NewBuilder(discardLog(), gridMapper{}, 9, NewEngine(w, 14*24*time.Hour))
	if b.Ready() {
		t.Fatal("builder must not be ready without boundaries")
	}

	snap, err := cluster.Parse([]byte(builderClusters), time.Now())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, _, err := b.Compute(time.Now(), snap, nil, nil); err == nil {
		t.Fatal("Compute must refuse without the boundary layer")
	}
}

func TestBuilder_ComputeRanksClusteredSubzoneFirst(t *testing.T) {
	b := newTestBuilder(t)
	if !b.Ready() {
		t.Fatal("builder must be ready after boundaries load")
	}

	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	snap, err := cluster.Parse([]byte(builderClusters), now)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	surface, scores, err := b.Compute(now, snap, nil, nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(scores))
	}
	if scores[0].Subzone != "BEDOK NORTH" {
		t.Fatalf("top subzone = %s, want the one holding the cluster", scores[0].Subzone)
	}
	if scores[0].Score <= scores[1].Score {
		t.Fatalf("scores not ordered: %v", scores)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(surface, &fc); err != nil {
		t.Fatalf("unmarshal surface: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("surface has %d features, want 2", len(fc.Features))
	}
}

// The static-layer loader runs in its own goroutine while the poll pipeline
// reads and computes; the builder must tolerate both sides at once.
func TestBuilder_ConcurrentLayerLoadAndCompute(t *testing.T) {
	w, err := DeriveWeights(DefaultMatrix())
	if err != nil {
		t.Fatalf("DeriveWeights: %v", err)
	}
	b := NewBuilder(discardLog(), gridMapper{}, 9, NewEngine(w, 14*24*time.Hour))

	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	snap, err := cluster.Parse([]byte(builderClusters), now)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if err := b.SetBoundaries([]byte(builderBoundaries)); err != nil {
				t.Errorf("SetBoundaries: %v", err)
				return
			}
			b.SetPopulation(map[string]float64{"BEDOK NORTH": 45210})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if !b.Ready() {
				continue
			}
			_ = b.Boundaries()
			if _, _, err := b.Compute(now, snap, nil, nil); err != nil {
				t.Errorf("Compute: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	if _, scores, err := b.Compute(now, snap, nil, nil); err != nil || len(scores) != 2 {
		t.Fatalf("final Compute: scores=%d err=%v", len(scores), err)
	}
}

func TestBuilder_WeatherShiftsRanking(t *testing.T) {
	b := newTestBuilder(t)
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

	// no active clusters: ranking rides on the weather columns alone
	empty, err := cluster.Parse([]byte(`{"type": "FeatureCollection", "features": []}`), now)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	rain := map[string]float64{"TAMPINES EAST": 180, "BEDOK NORTH": 20}
	_, scores, err := b.Compute(now, empty, rain, nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if scores[0].Subzone != "TAMPINES EAST" {
		t.Fatalf("top = %s, want the rain-soaked subzone", scores[0].Subzone)
	}
}
