// Package state holds the in-memory snapshot the API serves from.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/cwq-lab/denguewatch/internal/cluster"
	"github.com/cwq-lab/denguewatch/internal/core/observability"
)

// ErrNoSnapshot is returned before the first successful poll.
var ErrNoSnapshot = errors.New("no snapshot available yet")

// Latest is the authoritative in-memory snapshot holder. The poller swaps
// snapshots in; HTTP handlers read. Generation is monotonic and starts at 1
// for the first snapshot.
type Latest struct {
	mu   sync.RWMutex
	snap *cluster.Snapshot
	gen  uint64

	risk     []byte
	riskGen  uint64
	riskTime time.Time
}

func New() *Latest { return &Latest{} }

// SetSnapshot swaps in a new cluster snapshot and returns its generation.
func (l *Latest) SetSnapshot(s *cluster.Snapshot) uint64 {
	l.mu.Lock()
	l.gen++
	l.snap = s
	gen := l.gen
	l.mu.Unlock()

	observability.SetSnapshotGeneration(gen)
	observability.SetSnapshotClusters(s.Len())
	return gen
}

// Snapshot returns the current snapshot and its generation.
func (l *Latest) Snapshot() (*cluster.Snapshot, uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.snap == nil {
		return nil, 0, ErrNoSnapshot
	}
	return l.snap, l.gen, nil
}

// Ready reports whether at least one snapshot has been stored.
func (l *Latest) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap != nil
}

// Age returns how stale the current snapshot is.
func (l *Latest) Age(now time.Time) (time.Duration, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.snap == nil {
		return 0, ErrNoSnapshot
	}
	return now.Sub(l.snap.FetchedAt), nil
}

// SetRisk stores the serialized risk surface computed for snapshot
// generation gen.
func (l *Latest) SetRisk(surface []byte, gen uint64, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.risk = surface
	l.riskGen = gen
	l.riskTime = at
}

// Risk returns the current serialized risk surface.
func (l *Latest) Risk() ([]byte, uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.risk == nil {
		return nil, 0, ErrNoSnapshot
	}
	return l.risk, l.riskGen, nil
}
