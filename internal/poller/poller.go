// Package poller runs the periodic cluster refresh. Every interval it
// fetches the latest dengue cluster collection, validates it, swaps it into
// the snapshot holder and hands the change downstream. No single failed
// fetch ever stops the schedule.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cwq-lab/denguewatch/internal/cluster"
	"github.com/cwq-lab/denguewatch/internal/core/observability"
	"github.com/cwq-lab/denguewatch/internal/geojson"
	"github.com/cwq-lab/denguewatch/internal/logger"
	"github.com/cwq-lab/denguewatch/internal/state"
	"github.com/cwq-lab/denguewatch/internal/upstream"
)

// Fetcher returns the raw cluster GeoJSON body.
type Fetcher interface {
	FetchClusters(ctx context.Context) ([]byte, error)
}

// OnUpdate is invoked after a snapshot has been stored. Implementations
// must tolerate being called from the poll goroutine.
type OnUpdate func(ctx context.Context, snap *cluster.Snapshot, gen uint64, diff cluster.Diff)

type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger
	OnUpdate OnUpdate

	// Now is overridable for tests.
	Now func() time.Time
}

type Poller struct {
	fetch    Fetcher
	latest   *state.Latest
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
	onUpdate OnUpdate
	now      func() time.Time
}

func New(fetch Fetcher, latest *state.Latest, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Poller{
		fetch:    fetch,
		latest:   latest,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		log:      opts.Logger,
		onUpdate: opts.OnUpdate,
		now:      opts.Now,
	}
}

// Run polls immediately, then on every tick until ctx is canceled. The
// loop body runs to completion before the next tick is honored, so a slow
// upstream can never stack overlapping fetches.
func (p *Poller) Run(ctx context.Context) error {
	ctx = logger.WithComponent(ctx, "poller")
	p.log.InfoContext(ctx, "cluster poller started", "interval", p.interval.String())

	p.pollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.InfoContext(ctx, "cluster poller stopped")
			return nil
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// pollOnce fetches and stores one snapshot. Every failure mode is logged
// and swallowed here; nothing propagates past this call site.
func (p *Poller) pollOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	fetchCtx = logger.WithSource(fetchCtx, "dengue")

	body, err := p.fetch.FetchClusters(fetchCtx)
	if err != nil {
		p.observeFetchError(ctx, err)
		p.refreshAge()
		return
	}

	fetchedAt := p.now()
	snap, err := cluster.Parse(body, fetchedAt)
	if err != nil {
		observability.IncPoll("decode_error")
		p.log.ErrorContext(ctx, "cluster snapshot rejected", "err", err)
		p.refreshAge()
		return
	}

	prev, _, _ := p.latest.Snapshot()
	diff := cluster.Compare(prev, snap)
	gen := p.latest.SetSnapshot(snap)

	observability.IncPoll("ok")
	observability.SetSnapshotAgeSeconds(0)
	p.log.InfoContext(ctx, "cluster snapshot stored",
		"generation", gen,
		"clusters", snap.Len(),
		"cases", snap.TotalCases(),
		"added", len(diff.Added),
		"removed", len(diff.Removed),
		"changed", len(diff.Changed),
	)

	if p.onUpdate != nil {
		p.onUpdate(ctx, snap, gen, diff)
	}
}

func (p *Poller) observeFetchError(ctx context.Context, err error) {
	var se *upstream.StatusError
	var ae *upstream.APIError
	switch {
	case errors.As(err, &se):
		observability.IncPoll("http_error")
		p.log.ErrorContext(ctx, "cluster fetch failed", "status", se.Code, "err", err)
	case errors.As(err, &ae):
		observability.IncPoll("api_error")
		p.log.ErrorContext(ctx, "cluster fetch rejected by upstream", "code", ae.Code, "err", err)
	case errors.Is(err, geojson.ErrEmptyBody):
		observability.IncPoll("decode_error")
		p.log.ErrorContext(ctx, "cluster fetch returned empty body", "err", err)
	default:
		observability.IncPoll("transport_error")
		p.log.ErrorContext(ctx, "cluster fetch failed", "err", err)
	}
}

func (p *Poller) refreshAge() {
	if age, err := p.latest.Age(p.now()); err == nil {
		observability.SetSnapshotAgeSeconds(age.Seconds())
	}
}
