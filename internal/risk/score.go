package risk

import (
	"sort"
	"time"

	"github.com/cwq-lab/denguewatch/internal/core/model"
	h3mapper "github.com/cwq-lab/denguewatch/internal/mapper/h3"
)

// Subzone is a scoring unit: a named boundary rasterized to H3 cells.
type Subzone struct {
	Name  string
	Cells model.Cells
}

// ClusterLoad is one active cluster rasterized to cells with its
// recency-weighted case count inputs.
type ClusterLoad struct {
	Cells      model.Cells
	Cases      float64
	ObservedAt time.Time
}

// Inputs carries the per-subzone indicator values for one scoring round.
// Missing map entries score as zero for that indicator.
type Inputs struct {
	Subzones []Subzone
	Clusters []ClusterLoad

	RainfallBySubzone   map[string]float64
	MinTempBySubzone    map[string]float64
	VegetationBySubzone map[string]float64
	PopulationBySubzone map[string]float64
}

type Engine struct {
	weights  Weights
	halfLife time.Duration
}

func NewEngine(w Weights, halfLife time.Duration) *Engine {
	return &Engine{weights: w, halfLife: halfLife}
}

// Score produces one SubzoneScore per input subzone, sorted by descending
// score. Each indicator is min-max normalized across subzones before the
// AHP-weighted sum; cluster case load is attributed to subzones by the
// fraction of cluster cells falling inside the subzone.
func (e *Engine) Score(now time.Time, in Inputs) []model.SubzoneScore {
	n := len(in.Subzones)
	if n == 0 {
		return nil
	}

	caseLoad := make([]float64, n)
	for i, sz := range in.Subzones {
		for _, cl := range in.Clusters {
			if len(cl.Cells) == 0 {
				continue
			}
			ov := h3mapper.Overlap(cl.Cells, sz.Cells)
			if ov == 0 {
				continue
			}
			frac := float64(ov) / float64(len(cl.Cells))
			caseLoad[i] += cl.Cases * frac * recencyWeight(now.Sub(cl.ObservedAt), e.halfLife)
		}
	}

	cols := map[string][]float64{
		model.IndCaseLoad:   caseLoad,
		model.IndRainfall:   column(in.Subzones, in.RainfallBySubzone),
		model.IndMinTemp:    invert(column(in.Subzones, in.MinTempBySubzone)),
		model.IndVegetation: column(in.Subzones, in.VegetationBySubzone),
		model.IndPopDensity: column(in.Subzones, in.PopulationBySubzone),
	}
	for k, v := range cols {
		cols[k] = normalize(v)
	}

	out := make([]model.SubzoneScore, n)
	for i, sz := range in.Subzones {
		var s float64
		for _, ind := range Indicators {
			s += e.weights.ByIndicator[ind] * cols[ind][i]
		}
		out[i] = model.SubzoneScore{Subzone: sz.Name, Score: s, Band: Band(s)}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Subzone < out[j].Subzone
	})
	return out
}

// Band maps a normalized score into the four display bands.
func Band(score float64) model.RiskBand {
	switch {
	case score < 0.25:
		return model.BandLow
	case score < 0.5:
		return model.BandModerate
	case score < 0.75:
		return model.BandHigh
	default:
		return model.BandVeryHigh
	}
}

func column(subzones []Subzone, byName map[string]float64) []float64 {
	out := make([]float64, len(subzones))
	for i, sz := range subzones {
		out[i] = byName[sz.Name]
	}
	return out
}

// invert flips a column so that lower raw values score higher. Lower
// minimum temperature correlates with higher transmission in the lagged
// model, so the temperature column is inverted before normalization.
func invert(col []float64) []float64 {
	var max float64
	for _, v := range col {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(col))
	for i, v := range col {
		out[i] = max - v
	}
	return out
}

func normalize(col []float64) []float64 {
	if len(col) == 0 {
		return col
	}
	min, max := col[0], col[0]
	for _, v := range col[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(col))
	if max == min {
		return out
	}
	for i, v := range col {
		out[i] = (v - min) / (max - min)
	}
	return out
}
