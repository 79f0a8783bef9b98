// Package cluster models dengue cluster snapshots and their evolution.
package cluster

import (
	"fmt"
	"time"

	"github.com/cwq-lab/denguewatch/internal/geojson"
)

// Entry is one active cluster, identified across snapshots by the hash of
// its outline.
type Entry struct {
	Hash     string
	Locality string
	Cases    float64
}

// Snapshot is the cluster feature collection at one fetch instant. Raw is
// the upstream body verbatim; it is what the API serves.
type Snapshot struct {
	Raw       []byte
	FetchedAt time.Time
	Entries   []Entry

	fc *geojson.FeatureCollection
}

// Parse validates body as a cluster FeatureCollection and derives the
// per-cluster identity entries.
func Parse(body []byte, fetchedAt time.Time) (*Snapshot, error) {
	fc, err := geojson.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("cluster snapshot: %w", err)
	}

	entries := make([]Entry, 0, len(fc.Features))
	for i, f := range fc.Features {
		h, err := geojson.GeometryHash(f.Geometry, geojson.DefaultHashPrecision)
		if err != nil {
			return nil, fmt.Errorf("cluster %d: %w", i, err)
		}
		cases, _ := f.PropNumber("CASE_SIZE", "case_size", "cases")
		locality, _ := f.PropString("LOCALITY", "locality", "NAME", "description")
		entries = append(entries, Entry{Hash: h, Locality: locality, Cases: cases})
	}

	raw := make([]byte, len(body))
	copy(raw, body)

	return &Snapshot{
		Raw:       raw,
		FetchedAt: fetchedAt,
		Entries:   entries,
		fc:        fc,
	}, nil
}

// Features exposes the parsed collection for scoring and rasterization.
func (s *Snapshot) Features() []geojson.Feature {
	if s.fc == nil {
		return nil
	}
	return s.fc.Features
}

func (s *Snapshot) Len() int { return len(s.Entries) }

// TotalCases sums the case counts over all active clusters.
func (s *Snapshot) TotalCases() float64 {
	var sum float64
	for _, e := range s.Entries {
		sum += e.Cases
	}
	return sum
}
