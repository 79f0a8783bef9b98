// Package notify publishes snapshot-update events for downstream
// consumers (alerting, archival, cache invalidation).
package notify

import (
	"context"
	"time"
)

// Event describes one snapshot generation change. Added/Removed/Changed
// carry cluster outline hashes; Cells lists the H3 cells touched by the
// change so consumers can invalidate spatially.
type Event struct {
	Generation uint64    `json:"generation"`
	FetchedAt  time.Time `json:"fetchedAt"`
	Clusters   int       `json:"clusters"`
	TotalCases float64   `json:"totalCases"`
	Added      []string  `json:"added,omitempty"`
	Removed    []string  `json:"removed,omitempty"`
	Changed    []string  `json:"changed,omitempty"`
	Cells      []string  `json:"h3Cells,omitempty"`
}

type Notifier interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop is used when notification is disabled.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
