package risk

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwq-lab/denguewatch/internal/cluster"
	"github.com/cwq-lab/denguewatch/internal/core/model"
	"github.com/cwq-lab/denguewatch/internal/core/observability"
)

// CellMapper rasterizes a geometry to H3 cells.
type CellMapper interface {
	CellsForGeometry(geom json.RawMessage, res int) (model.Cells, error)
}

// Builder assembles scoring inputs from the static layers (boundaries,
// population, vegetation) plus the per-poll snapshot and weather maps, and
// runs the engine. The layer loader and the poll pipeline run in separate
// goroutines, so layer access goes through mu.
type Builder struct {
	log    *slog.Logger
	mapper CellMapper
	res    int
	engine *Engine

	mu         sync.RWMutex
	boundaries []Boundary
	subzones   []Subzone
	population map[string]float64
	vegetation map[string]float64
}

func NewBuilder(log *slog.Logger, mapper CellMapper, res int, engine *Engine) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		log:        log,
		mapper:     mapper,
		res:        res,
		engine:     engine,
		population: map[string]float64{},
		vegetation: map[string]float64{},
	}
}

// SetBoundaries parses and rasterizes the subzone boundary collection.
// Subzones whose geometry cannot be rasterized are dropped with a warning.
func (b *Builder) SetBoundaries(body []byte) error {
	boundaries, err := ParseBoundaries(body)
	if err != nil {
		return err
	}

	subzones := make([]Subzone, 0, len(boundaries))
	for _, bd := range boundaries {
		cells, err := b.mapper.CellsForGeometry(bd.Geometry, b.res)
		if err != nil {
			b.log.Warn("subzone rasterization failed", "subzone", bd.Name, "err", err)
			continue
		}
		subzones = append(subzones, Subzone{Name: bd.Name, Cells: cells})
	}
	if len(subzones) == 0 {
		return fmt.Errorf("boundaries: no subzone rasterized")
	}

	b.mu.Lock()
	b.boundaries = boundaries
	b.subzones = subzones
	b.mu.Unlock()
	return nil
}

func (b *Builder) Boundaries() []Boundary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.boundaries
}

// Ready reports whether the static boundary layer is loaded; without it no
// risk surface can be computed.
func (b *Builder) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subzones) > 0
}

func (b *Builder) SetPopulation(bySubzone map[string]float64) {
	if bySubzone == nil {
		return
	}
	b.mu.Lock()
	b.population = bySubzone
	b.mu.Unlock()
}

func (b *Builder) SetVegetation(bySubzone map[string]float64) {
	if bySubzone == nil {
		return
	}
	b.mu.Lock()
	b.vegetation = bySubzone
	b.mu.Unlock()
}

// Compute scores the snapshot against the loaded layers and returns the
// serialized surface plus the scores.
func (b *Builder) Compute(
	now time.Time,
	snap *cluster.Snapshot,
	rainfallBySubzone map[string]float64,
	minTempBySubzone map[string]float64,
) ([]byte, []model.SubzoneScore, error) {
	b.mu.RLock()
	boundaries := b.boundaries
	subzones := b.subzones
	vegetation := b.vegetation
	population := b.population
	b.mu.RUnlock()

	if len(subzones) == 0 {
		return nil, nil, fmt.Errorf("risk: boundary layer not loaded")
	}
	start := time.Now()

	loads := make([]ClusterLoad, 0, snap.Len())
	for i, f := range snap.Features() {
		cells, err := b.mapper.CellsForGeometry(f.Geometry, b.res)
		if err != nil {
			b.log.Warn("cluster rasterization failed", "index", i, "err", err)
			continue
		}
		loads = append(loads, ClusterLoad{
			Cells:      cells,
			Cases:      snap.Entries[i].Cases,
			ObservedAt: snap.FetchedAt,
		})
	}

	scores := b.engine.Score(now, Inputs{
		Subzones:            subzones,
		Clusters:            loads,
		RainfallBySubzone:   rainfallBySubzone,
		MinTempBySubzone:    minTempBySubzone,
		VegetationBySubzone: vegetation,
		PopulationBySubzone: population,
	})

	surface, err := Surface(scores, boundaries)
	if err != nil {
		return nil, nil, err
	}
	observability.ObserveRiskCompute(time.Since(start).Seconds())
	return surface, scores, nil
}
