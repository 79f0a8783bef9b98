package geojson

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// DefaultHashPrecision is the coordinate rounding used when identifying
// clusters across snapshots. 6 decimal places is ~11cm at the equator,
// well below the fidelity of the upstream cluster outlines.
const DefaultHashPrecision = 6

// GeometryHash computes a stable identity hash for a GeoJSON geometry:
// coordinates are rounded, polygon rings oriented, and multi-geometries
// sorted, so the same outline always hashes the same regardless of how the
// upstream serialized it.
func GeometryHash(geomRaw json.RawMessage, precision int) (string, error) {
	if len(bytes.TrimSpace(geomRaw)) == 0 || bytes.Equal(geomRaw, []byte("null")) {
		return "gh:null", nil
	}
	var g any
	if err := json.Unmarshal(geomRaw, &g); err != nil {
		return "", fmt.Errorf("parse geometry: %w", err)
	}
	normalized, err := normalizeGeometry(g, precision)
	if err != nil {
		return "", fmt.Errorf("normalize geometry: %w", err)
	}
	buf, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("marshal normalized geometry: %w", err)
	}
	sum := sha256.Sum256(buf)
	return fmt.Sprintf("gh:%x", sum[:]), nil
}

func normalizeGeometry(g any, precision int) (any, error) {
	m, ok := g.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("geometry must be object")
	}
	typ, _ := m["type"].(string)
	coords := m["coordinates"]
	switch typ {
	case "Point":
		return map[string]any{"type": "Point", "coordinates": roundPos(coords, precision)}, nil
	case "MultiPoint":
		return map[string]any{"type": "MultiPoint", "coordinates": roundPosArray(coords, precision)}, nil
	case "LineString":
		return map[string]any{"type": "LineString", "coordinates": roundPosArray(coords, precision)}, nil
	case "MultiLineString":
		return map[string]any{"type": "MultiLineString", "coordinates": roundPosArray2(coords, precision)}, nil
	case "Polygon":
		rings := orientRings(roundPosArray2(coords, precision))
		return map[string]any{"type": "Polygon", "coordinates": rings}, nil
	case "MultiPolygon":
		mp := roundPosArray3(coords, precision)
		for i := range mp {
			mp[i] = orientRings(mp[i])
		}
		sort.Slice(mp, func(i, j int) bool { return lexPoly(mp[i], mp[j]) < 0 })
		return map[string]any{"type": "MultiPolygon", "coordinates": mp}, nil
	case "GeometryCollection":
		arr, _ := m["geometries"].([]any)
		out := make([]any, 0, len(arr))
		for _, gi := range arr {
			ng, err := normalizeGeometry(gi, precision)
			if err != nil {
				return nil, err
			}
			out = append(out, ng)
		}
		sort.Slice(out, func(i, j int) bool {
			bi, _ := json.Marshal(out[i])
			bj, _ := json.Marshal(out[j])
			return bytes.Compare(bi, bj) < 0
		})
		return map[string]any{"type": "GeometryCollection", "geometries": out}, nil
	default:
		return m, nil
	}
}

func roundPos(v any, p int) []any {
	a, _ := v.([]any)
	if len(a) == 0 {
		return nil
	}
	out := make([]any, len(a))
	for i := range a {
		if f, ok := a[i].(float64); ok {
			out[i] = roundFloat(f, p)
		} else {
			out[i] = a[i]
		}
	}
	return out
}

func roundPosArray(v any, p int) [][]any {
	a, _ := v.([]any)
	out := make([][]any, len(a))
	for i := range a {
		out[i] = roundPos(a[i], p)
	}
	return out
}

func roundPosArray2(v any, p int) [][][]any {
	a, _ := v.([]any)
	out := make([][][]any, len(a))
	for i := range a {
		out[i] = roundPosArray(a[i], p)
	}
	return out
}

func roundPosArray3(v any, p int) [][][][]any {
	a, _ := v.([]any)
	out := make([][][][]any, len(a))
	for i := range a {
		out[i] = roundPosArray2(a[i], p)
	}
	return out
}

func roundFloat(f float64, p int) float64 {
	scale := math.Pow10(p)
	return math.Round(f*scale) / scale
}

// orientRings rewinds each ring to start at its lexicographically smallest
// vertex and drops an explicit closing vertex, so ring rotation and closure
// do not change the hash.
func orientRings(rings [][][]any) [][][]any {
	for ri, ring := range rings {
		if len(ring) == 0 {
			continue
		}
		if len(ring) >= 2 && posEqual(ring[0], ring[len(ring)-1]) {
			ring = ring[:len(ring)-1]
		}
		min := 0
		for i := 1; i < len(ring); i++ {
			if lexPos(ring[i], ring[min]) < 0 {
				min = i
			}
		}
		rotated := make([][]any, 0, len(ring))
		rotated = append(rotated, ring[min:]...)
		rotated = append(rotated, ring[:min]...)
		rings[ri] = rotated
	}
	return rings
}

func posEqual(a, b []any) bool {
	return lexPos(a, b) == 0
}

func lexPos(a, b []any) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		af, aok := a[i].(float64)
		bf, bok := b[i].(float64)
		if aok && bok {
			if af < bf {
				return -1
			}
			if af > bf {
				return 1
			}
			continue
		}
	}
	return len(a) - len(b)
}

func lexPoly(a, b [][][]any) int {
	ba, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return bytes.Compare(ba, bb)
}
