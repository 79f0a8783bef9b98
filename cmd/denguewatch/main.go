package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cwq-lab/denguewatch/internal/cluster"
	"github.com/cwq-lab/denguewatch/internal/core/config"
	"github.com/cwq-lab/denguewatch/internal/core/httpclient"
	"github.com/cwq-lab/denguewatch/internal/core/model"
	"github.com/cwq-lab/denguewatch/internal/core/observability"
	"github.com/cwq-lab/denguewatch/internal/lag"
	"github.com/cwq-lab/denguewatch/internal/logger"
	h3mapper "github.com/cwq-lab/denguewatch/internal/mapper/h3"
	"github.com/cwq-lab/denguewatch/internal/mapview"
	"github.com/cwq-lab/denguewatch/internal/notify"
	"github.com/cwq-lab/denguewatch/internal/poller"
	"github.com/cwq-lab/denguewatch/internal/risk"
	"github.com/cwq-lab/denguewatch/internal/server"
	"github.com/cwq-lab/denguewatch/internal/state"
	"github.com/cwq-lab/denguewatch/internal/store"
	"github.com/cwq-lab/denguewatch/internal/upstream"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load(".env")

	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "denguewatch",
	}, os.Stdout)
	log := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	log.Info("starting denguewatch",
		"addr", cfg.Addr,
		"version", Version,
		"poll_interval", cfg.PollInterval.String())

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		log.Warn("sources catalog fell back to defaults", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.NewOutbound()
	up := upstream.New(log, httpClient, sources)

	mapper, err := h3mapper.New()
	if err != nil {
		log.Error("mapper init failed", "err", err)
		return 1
	}

	weights, err := risk.DeriveWeights(risk.DefaultMatrix())
	if err != nil {
		log.Error("ahp weight derivation failed", "err", err)
		return 1
	}
	log.Info("ahp weights derived", "cr", weights.CR)

	engine := risk.NewEngine(weights, cfg.DecayHalfLife)
	builder := risk.NewBuilder(log, mapper, cfg.H3Res, engine)

	latest := state.New()

	var cache *store.Client
	if cfg.RedisEnabled {
		c, err := store.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("snapshot cache unavailable, continuing without", "err", err)
		} else {
			cache = c
			defer func() { _ = cache.Close() }()
			warmStart(ctx, cfg, log, cache, latest)
		}
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.Enabled {
		k, err := notify.NewKafka(log, notify.KafkaConfig{
			Brokers: cfg.Notify.Brokers,
			Topic:   cfg.Notify.Topic,
		})
		if err != nil {
			log.Warn("kafka notifier unavailable, continuing without", "err", err)
		} else {
			notifier = k
			defer func() { _ = notifier.Close() }()
		}
	}

	go loadStaticLayers(ctx, cfg, log, up, builder, 5*time.Minute)

	onUpdate := func(ctx context.Context, snap *cluster.Snapshot, gen uint64, diff cluster.Diff) {
		if cache != nil {
			persistSnapshot(ctx, cfg, log, cache, snap, gen)
		}
		recomputeRisk(ctx, cfg, log, up, builder, latest, cache, snap, gen)
		publishUpdate(ctx, log, notifier, mapper, cfg.H3Res, snap, gen, diff)
	}

	p := poller.New(up, latest, poller.Options{
		Interval: cfg.PollInterval,
		Timeout:  cfg.PollTimeout,
		Logger:   log,
		OnUpdate: onUpdate,
	})
	go func() {
		_ = p.Run(ctx)
	}()

	view := mapview.New(cfg)
	router := server.NewRouter(log, latest, view)
	if err := server.Run(ctx, cfg, log, router); err != nil {
		log.Error("http server failed", "err", err)
		return 1
	}
	log.Info("denguewatch stopped")
	return 0
}

// warmStart restores the last cached snapshot so the API can serve before
// the first poll completes.
func warmStart(ctx context.Context, cfg config.Config, log *slog.Logger, cache *store.Client, latest *state.Latest) {
	opCtx, cancel := context.WithTimeout(ctx, cfg.CacheOpTimeout)
	defer cancel()

	buf, err := cache.Get(opCtx, store.LatestKey("dengue"))
	if err != nil {
		if !errors.Is(err, store.ErrMiss) {
			log.Warn("warm start read failed", "err", err)
		}
		return
	}
	env, err := store.DecodeEnvelope(buf)
	if err != nil {
		log.Warn("warm start envelope rejected", "err", err)
		return
	}
	snap, err := cluster.Parse(env.Body, env.FetchedAt)
	if err != nil {
		log.Warn("warm start snapshot rejected", "err", err)
		return
	}
	gen := latest.SetSnapshot(snap)
	log.Info("warm start snapshot restored", "generation", gen, "clusters", snap.Len())
}

func persistSnapshot(ctx context.Context, cfg config.Config, log *slog.Logger, cache *store.Client, snap *cluster.Snapshot, gen uint64) {
	buf, err := store.EncodeEnvelope(store.Envelope{
		FetchedAt:  snap.FetchedAt,
		Generation: gen,
		Body:       snap.Raw,
	})
	if err != nil {
		log.Warn("snapshot persist encode failed", "err", err)
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, cfg.CacheOpTimeout)
	defer cancel()
	if err := cache.Set(opCtx, store.LatestKey("dengue"), buf, cfg.SnapshotTTL); err != nil {
		log.Warn("snapshot persist failed", "err", err)
	}
	if err := cache.Set(opCtx, store.GenerationKey("dengue", gen), buf, cfg.SnapshotTTL); err != nil {
		log.Warn("generation persist failed", "generation", gen, "err", err)
	}
}

// loadStaticLayers fetches subzone boundaries and population, retrying
// each until it loads or ctx ends. Risk scoring stays disabled until the
// boundary layer is in; population scores zero until its layer lands.
func loadStaticLayers(ctx context.Context, cfg config.Config, log *slog.Logger, up *upstream.Client, builder *risk.Builder, retryEvery time.Duration) {
	popLoaded := false
	for {
		if !builder.Ready() {
			fetchCtx, cancel := context.WithTimeout(ctx, cfg.PollTimeout)
			body, err := up.FetchBoundaries(fetchCtx)
			cancel()
			if err == nil {
				err = builder.SetBoundaries(body)
			}
			if err != nil {
				log.Warn("boundary layer load failed", "err", err)
			} else {
				log.Info("boundary layer loaded", "boundaries", len(builder.Boundaries()))
			}
		}

		if builder.Ready() && !popLoaded {
			popCtx, cancel := context.WithTimeout(ctx, cfg.PollTimeout)
			recs, err := up.FetchPopulation(popCtx, 0)
			cancel()
			if err != nil {
				log.Warn("population layer load failed", "err", err)
			} else {
				byName := make(map[string]float64, len(recs))
				for _, r := range recs {
					byName[r.Subzone] = r.Population
				}
				builder.SetPopulation(byName)
				popLoaded = true
				log.Info("population layer loaded", "subzones", len(byName))
			}
		}

		if builder.Ready() && popLoaded {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryEvery):
		}
	}
}

// recomputeRisk pulls the lagged weather for the scoring window and
// rebuilds the risk surface for the new snapshot.
func recomputeRisk(
	ctx context.Context,
	cfg config.Config,
	log *slog.Logger,
	up *upstream.Client,
	builder *risk.Builder,
	latest *state.Latest,
	cache *store.Client,
	snap *cluster.Snapshot,
	gen uint64,
) {
	if !builder.Ready() {
		return
	}

	now := time.Now()
	day := lag.Day(now, cfg.LagMonths)
	start, end := lag.Window(now, cfg.LagMonths)

	rainfall := fetchLagged(ctx, cfg, log, up, upstream.Rainfall, day, start, end, builder, lag.SumByStation)
	minTemp := fetchLagged(ctx, cfg, log, up, upstream.AirTemperature, day, start, end, builder, lag.MinByStation)

	surface, scores, err := builder.Compute(now, snap, rainfall, minTemp)
	if err != nil {
		log.Warn("risk recompute failed", "err", err)
		return
	}
	latest.SetRisk(surface, gen, now)
	log.Info("risk surface recomputed", "generation", gen, "subzones", len(scores))

	if cache != nil {
		opCtx, cancel := context.WithTimeout(ctx, cfg.CacheOpTimeout)
		defer cancel()
		if err := cache.Set(opCtx, store.RiskKey(gen), surface, cfg.SnapshotTTL); err != nil {
			log.Warn("risk persist failed", "err", err)
		}
	}
}

func fetchLagged(
	ctx context.Context,
	cfg config.Config,
	log *slog.Logger,
	up *upstream.Client,
	kind upstream.WeatherKind,
	day string,
	start, end time.Time,
	builder *risk.Builder,
	aggregate func([]model.Reading) map[string]float64,
) map[string]float64 {
	fetchCtx, cancel := context.WithTimeout(ctx, cfg.PollTimeout)
	defer cancel()

	obs, err := up.FetchWeather(fetchCtx, kind, day)
	if err != nil {
		log.Warn("lagged weather fetch failed", "kind", string(kind), "err", err)
		return nil
	}
	byStation := aggregate(lag.Filter(obs.Readings, start, end))
	return risk.NearestBySubzone(builder.Boundaries(), obs.Stations, byStation)
}

// publishUpdate emits the snapshot-update event, including the H3 cells of
// clusters that appeared or changed so consumers can invalidate spatially.
func publishUpdate(
	ctx context.Context,
	log *slog.Logger,
	notifier notify.Notifier,
	mapper *h3mapper.Mapper,
	res int,
	snap *cluster.Snapshot,
	gen uint64,
	diff cluster.Diff,
) {
	touched := make(map[string]struct{}, len(diff.Added)+len(diff.Changed))
	for _, h := range diff.Added {
		touched[h] = struct{}{}
	}
	for _, h := range diff.Changed {
		touched[h] = struct{}{}
	}

	var cells []string
	seen := map[string]struct{}{}
	feats := snap.Features()
	for i, e := range snap.Entries {
		if _, ok := touched[e.Hash]; !ok {
			continue
		}
		cs, err := mapper.CellsForGeometry(feats[i].Geometry, res)
		if err != nil {
			continue
		}
		for _, c := range cs {
			if _, dup := seen[c]; !dup {
				seen[c] = struct{}{}
				cells = append(cells, c)
			}
		}
	}

	err := notifier.Publish(ctx, notify.Event{
		Generation: gen,
		FetchedAt:  snap.FetchedAt,
		Clusters:   snap.Len(),
		TotalCases: snap.TotalCases(),
		Added:      diff.Added,
		Removed:    diff.Removed,
		Changed:    diff.Changed,
		Cells:      cells,
	})
	if err != nil {
		log.Warn("snapshot event publish failed", "err", err)
	}
}
