// Package h3mapper rasterizes GeoJSON geometries into H3 cells. Cluster
// outlines and subzone boundaries are mapped at the same resolution so the
// risk engine can attribute cluster case load to subzones by cell overlap.
package h3mapper

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	h3 "github.com/uber/h3-go/v4"

	"github.com/cwq-lab/denguewatch/internal/core/model"
	"github.com/cwq-lab/denguewatch/internal/geojson"
)

const defaultMemoSize = 4096

type Mapper struct {
	memo *lru.Cache[string, model.Cells]
}

// New builds a mapper with a polyfill memo. Subzone boundaries never change
// and cluster outlines persist across many polls, so the memo hit rate is
// high in steady state.
func New() (*Mapper, error) {
	memo, err := lru.New[string, model.Cells](defaultMemoSize)
	if err != nil {
		return nil, fmt.Errorf("polyfill memo: %w", err)
	}
	return &Mapper{memo: memo}, nil
}

// CellsForGeometry returns the sorted unique H3 cells covering a GeoJSON
// Polygon, MultiPolygon or Point.
func (m *Mapper) CellsForGeometry(geom json.RawMessage, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}

	gh, err := geojson.GeometryHash(geom, geojson.DefaultHashPrecision)
	if err != nil {
		return nil, err
	}
	memoKey := fmt.Sprintf("%s:%d", gh, res)
	if cells, ok := m.memo.Get(memoKey); ok {
		return cells, nil
	}

	cells, err := cellsUncached(geom, res)
	if err != nil {
		return nil, err
	}
	m.memo.Add(memoKey, cells)
	return cells, nil
}

func cellsUncached(geom json.RawMessage, res int) (model.Cells, error) {
	var hdr struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(geom, &hdr); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	switch hdr.Type {
	case "Point":
		var tmp struct {
			Coordinates []float64 `json:"coordinates"` // [lon,lat]
		}
		if err := json.Unmarshal(geom, &tmp); err != nil {
			return nil, fmt.Errorf("parse point coords: %w", err)
		}
		if len(tmp.Coordinates) < 2 {
			return nil, errors.New("point needs lon,lat")
		}
		cell, err := h3.LatLngToCell(h3.LatLng{Lat: tmp.Coordinates[1], Lng: tmp.Coordinates[0]}, res)
		if err != nil {
			return nil, fmt.Errorf("h3 point: %w", err)
		}
		return model.Cells{cell.String()}, nil

	case "Polygon":
		var tmp struct {
			Coordinates [][][]float64 `json:"coordinates"` // [ring][i][lon,lat]
		}
		if err := json.Unmarshal(geom, &tmp); err != nil {
			return nil, fmt.Errorf("parse polygon coords: %w", err)
		}
		return polyfillRings(tmp.Coordinates, res)

	case "MultiPolygon":
		var tmp struct {
			Coordinates [][][][]float64 `json:"coordinates"` // [poly][ring][i][lon,lat]
		}
		if err := json.Unmarshal(geom, &tmp); err != nil {
			return nil, fmt.Errorf("parse multipolygon coords: %w", err)
		}
		if len(tmp.Coordinates) == 0 {
			return nil, errors.New("empty multipolygon")
		}
		seen := make(map[string]struct{})
		var out []string
		for pi, rings := range tmp.Coordinates {
			cells, err := polyfillRings(rings, res)
			if err != nil {
				return nil, fmt.Errorf("polygon %d: %w", pi, err)
			}
			for _, c := range cells {
				if _, ok := seen[c]; !ok {
					seen[c] = struct{}{}
					out = append(out, c)
				}
			}
		}
		sort.Strings(out)
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported GeoJSON type: %s", hdr.Type)
	}
}

// Overlap counts cells present in both sets. Inputs must be the sorted
// slices this package produces.
func Overlap(a, b model.Cells) int {
	i, j, n := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			n++
			i++
			j++
		}
	}
	return n
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

func polyfillRings(rings [][][]float64, res int) (model.Cells, error) {
	if len(rings) == 0 {
		return nil, errors.New("empty polygon")
	}
	outer := toLoop(rings[0])
	if len(outer) < 4 {
		return nil, errors.New("outer ring has < 4 vertices")
	}
	var holes []h3.GeoLoop
	for i := 1; i < len(rings); i++ {
		h := toLoop(rings[i])
		if len(h) < 4 {
			return nil, fmt.Errorf("hole %d has < 4 vertices", i-1)
		}
		holes = append(holes, h)
	}

	poly := h3.GeoPolygon{GeoLoop: outer, Holes: holes}
	indexes, err := h3.PolygonToCells(poly, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	out := make([]string, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// Convert a GeoJSON ring [[lon,lat], ...] to an h3.GeoLoop (in degrees).
// If the ring is explicitly closed (last == first), drop the trailing duplicate.
func toLoop(coords [][]float64) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(coords))
	for _, xy := range coords {
		if len(xy) < 2 {
			continue
		}
		loop = append(loop, h3.LatLng{Lat: xy[1], Lng: xy[0]})
	}
	if len(loop) >= 2 {
		last := loop[len(loop)-1]
		first := loop[0]
		if last.Lat == first.Lat && last.Lng == first.Lng {
			loop = loop[:len(loop)-1]
		}
	}
	return loop
}
