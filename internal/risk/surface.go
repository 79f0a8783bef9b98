package risk

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/cwq-lab/denguewatch/internal/core/model"
	"github.com/cwq-lab/denguewatch/internal/geojson"
)

// Boundary is one subzone polygon from the Master Plan 2019 boundary set.
type Boundary struct {
	Name     string
	Geometry json.RawMessage
}

// ParseBoundaries decodes the subzone boundary FeatureCollection. Features
// without a recognizable subzone name are skipped.
func ParseBoundaries(body []byte) ([]Boundary, error) {
	fc, err := geojson.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("boundaries: %w", err)
	}
	out := make([]Boundary, 0, len(fc.Features))
	for _, f := range fc.Features {
		name, ok := f.PropString("SUBZONE_N", "subzone", "Name", "PLN_AREA_N")
		if !ok {
			continue
		}
		out = append(out, Boundary{Name: name, Geometry: f.Geometry})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("boundaries: no named subzone features")
	}
	return out, nil
}

// Centroid approximates a boundary center as the mean of its outer ring
// vertices. Good enough for nearest-station assignment at subzone scale.
func Centroid(geom json.RawMessage) (model.LatLng, error) {
	var hdr struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(geom, &hdr); err != nil {
		return model.LatLng{}, fmt.Errorf("centroid: parse geometry: %w", err)
	}

	var ring [][]float64
	switch hdr.Type {
	case "Polygon":
		var tmp struct {
			Coordinates [][][]float64 `json:"coordinates"`
		}
		if err := json.Unmarshal(geom, &tmp); err != nil {
			return model.LatLng{}, fmt.Errorf("centroid: parse polygon: %w", err)
		}
		if len(tmp.Coordinates) == 0 {
			return model.LatLng{}, fmt.Errorf("centroid: empty polygon")
		}
		ring = tmp.Coordinates[0]
	case "MultiPolygon":
		var tmp struct {
			Coordinates [][][][]float64 `json:"coordinates"`
		}
		if err := json.Unmarshal(geom, &tmp); err != nil {
			return model.LatLng{}, fmt.Errorf("centroid: parse multipolygon: %w", err)
		}
		if len(tmp.Coordinates) == 0 || len(tmp.Coordinates[0]) == 0 {
			return model.LatLng{}, fmt.Errorf("centroid: empty multipolygon")
		}
		ring = tmp.Coordinates[0][0]
	default:
		return model.LatLng{}, fmt.Errorf("centroid: unsupported type %s", hdr.Type)
	}

	var lat, lng float64
	n := 0
	for _, xy := range ring {
		if len(xy) < 2 {
			continue
		}
		lng += xy[0]
		lat += xy[1]
		n++
	}
	if n == 0 {
		return model.LatLng{}, fmt.Errorf("centroid: ring has no vertices")
	}
	return model.LatLng{Lat: lat / float64(n), Lng: lng / float64(n)}, nil
}

// NearestBySubzone assigns each boundary the value of the closest station.
// Subzones get no entry when the station set or value map is empty.
func NearestBySubzone(boundaries []Boundary, stations []model.Station, valueByStation map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(boundaries))
	if len(stations) == 0 || len(valueByStation) == 0 {
		return out
	}
	for _, b := range boundaries {
		c, err := Centroid(b.Geometry)
		if err != nil {
			continue
		}
		best := ""
		bestDist := math.MaxFloat64
		for _, s := range stations {
			if _, ok := valueByStation[s.ID]; !ok {
				continue
			}
			d := haversineKm(c, s.Location)
			if d < bestDist {
				bestDist = d
				best = s.ID
			}
		}
		if best != "" {
			out[b.Name] = valueByStation[best]
		}
	}
	return out
}

const earthRadiusKm = 6371.0

func haversineKm(a, b model.LatLng) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	la := a.Lat * math.Pi / 180
	lb := b.Lat * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(la)*math.Cos(lb)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Surface serializes the scored subzones as a GeoJSON FeatureCollection
// suitable for direct rendering.
func Surface(scores []model.SubzoneScore, boundaries []Boundary) ([]byte, error) {
	geomByName := make(map[string]json.RawMessage, len(boundaries))
	for _, b := range boundaries {
		geomByName[b.Name] = b.Geometry
	}

	type feature struct {
		Type       string          `json:"type"`
		Geometry   json.RawMessage `json:"geometry"`
		Properties map[string]any  `json:"properties"`
	}
	type collection struct {
		Type     string    `json:"type"`
		Features []feature `json:"features"`
	}

	fc := collection{Type: "FeatureCollection"}
	for _, s := range scores {
		geom, ok := geomByName[s.Subzone]
		if !ok {
			continue
		}
		fc.Features = append(fc.Features, feature{
			Type:     "Feature",
			Geometry: geom,
			Properties: map[string]any{
				"subzone": s.Subzone,
				"score":   s.Score,
				"band":    string(s.Band),
			},
		})
	}

	buf, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("marshal risk surface: %w", err)
	}
	return buf, nil
}
