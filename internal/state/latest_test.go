package state

import (
	"errors"
	"testing"
	"time"

	"github.com/cwq-lab/denguewatch/internal/cluster"
)

const fcBody = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"LOCALITY": "Bedok North Ave 1", "CASE_SIZE": "4"},
      "geometry": {"type": "Polygon", "coordinates": [[[103.93, 1.33], [103.94, 1.33], [103.94, 1.34], [103.93, 1.33]]]}
    }
  ]
}`

func mustSnapshot(t *testing.T, at time.Time) *cluster.Snapshot {
	t.Helper()
	s, err := cluster.Parse([]byte(fcBody), at)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return s
}

func TestLatest_EmptyHolder(t *testing.T) {
	l := New()
	if l.Ready() {
		t.Fatal("fresh holder must not be ready")
	}
	if _, _, err := l.Snapshot(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Snapshot err = %v, want ErrNoSnapshot", err)
	}
	if _, err := l.Age(time.Now()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Age err = %v, want ErrNoSnapshot", err)
	}
	if _, _, err := l.Risk(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Risk err = %v, want ErrNoSnapshot", err)
	}
}

func TestLatest_GenerationIsMonotonic(t *testing.T) {
	l := New()
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

	if gen := l.SetSnapshot(mustSnapshot(t, now)); gen != 1 {
		t.Fatalf("first generation = %d, want 1", gen)
	}
	if gen := l.SetSnapshot(mustSnapshot(t, now.Add(5*time.Minute))); gen != 2 {
		t.Fatalf("second generation = %d, want 2", gen)
	}

	snap, gen, err := l.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if gen != 2 {
		t.Fatalf("gen = %d, want 2", gen)
	}
	if !snap.FetchedAt.Equal(now.Add(5 * time.Minute)) {
		t.Fatal("holder must serve the newest snapshot")
	}
	if !l.Ready() {
		t.Fatal("holder must be ready after a snapshot")
	}
}

func TestLatest_Age(t *testing.T) {
	l := New()
	at := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	l.SetSnapshot(mustSnapshot(t, at))

	age, err := l.Age(at.Add(7 * time.Minute))
	if err != nil {
		t.Fatalf("Age: %v", err)
	}
	if age != 7*time.Minute {
		t.Fatalf("age = %v, want 7m", age)
	}
}

func TestLatest_Risk(t *testing.T) {
	l := New()
	at := time.Now()
	l.SetRisk([]byte(`{"type": "FeatureCollection", "features": []}`), 3, at)

	surface, gen, err := l.Risk()
	if err != nil {
		t.Fatalf("Risk: %v", err)
	}
	if gen != 3 || len(surface) == 0 {
		t.Fatalf("gen = %d, surface = %q", gen, surface)
	}
}
