// fetchctl is the one-shot acquisition tool: it pulls a dataset from the
// open-data APIs and writes the raw body with provenance metadata into the
// data directory, one timestamped file per fetch.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cwq-lab/denguewatch/internal/core/config"
	"github.com/cwq-lab/denguewatch/internal/core/httpclient"
	"github.com/cwq-lab/denguewatch/internal/logger"
	"github.com/cwq-lab/denguewatch/internal/upstream"
)

type rawArtifact struct {
	FetchedAt time.Time       `json:"fetchedAt"`
	Source    string          `json:"source"`
	Date      string          `json:"date,omitempty"`
	Records   int             `json:"records"`
	Data      json.RawMessage `json:"data"`
}

func main() {
	os.Exit(run())
}

func run() int {
	datasetFlag := flag.String("dataset", "dengue", "dataset to fetch: dengue|weather|population|boundaries|all")
	dateFlag := flag.String("date", "", "optional date (YYYY-MM-DD) for weather, year for population")
	flag.Parse()

	_ = godotenv.Load(".env")
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   true,
		Component: "fetchctl",
	}, os.Stderr)
	log := logger.NewSlog(&zl)

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		log.Warn("sources catalog fell back to defaults", "err", err)
	}

	up := upstream.New(log, httpclient.NewOutbound(), sources)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var failed bool
	for _, ds := range datasets(*datasetFlag) {
		if err := fetchOne(ctx, cfg, up, ds, *dateFlag); err != nil {
			log.Error("fetch failed", "dataset", ds, "err", err)
			failed = true
			continue
		}
		log.Info("fetch complete", "dataset", ds)
	}
	if failed {
		return 1
	}
	return 0
}

func datasets(arg string) []string {
	if strings.EqualFold(strings.TrimSpace(arg), "all") {
		return []string{"dengue", "weather", "population", "boundaries"}
	}
	return []string{strings.ToLower(strings.TrimSpace(arg))}
}

func fetchOne(ctx context.Context, cfg config.Config, up *upstream.Client, dataset, date string) error {
	switch dataset {
	case "dengue":
		body, err := up.FetchClusters(ctx)
		if err != nil {
			return err
		}
		return writeArtifact(cfg.DataDir, "dengue", "dengue_clusters", date, body, -1)

	case "boundaries":
		body, err := up.FetchBoundaries(ctx)
		if err != nil {
			return err
		}
		return writeArtifact(cfg.DataDir, "boundaries", "subzone_boundaries", date, body, -1)

	case "weather":
		for _, kind := range []upstream.WeatherKind{upstream.AirTemperature, upstream.Rainfall} {
			obs, err := up.FetchWeather(ctx, kind, date)
			if err != nil {
				return err
			}
			body, err := json.Marshal(obs)
			if err != nil {
				return fmt.Errorf("encode %s observation: %w", kind, err)
			}
			name := strings.ReplaceAll(string(kind), "-", "_")
			if err := writeArtifact(cfg.DataDir, "weather/"+name, name, date, body, len(obs.Readings)); err != nil {
				return err
			}
		}
		return nil

	case "population":
		year := 0
		if date != "" {
			if _, err := fmt.Sscanf(date, "%d", &year); err != nil {
				return fmt.Errorf("population date must be a year: %w", err)
			}
		}
		recs, err := up.FetchPopulation(ctx, year)
		if err != nil {
			return err
		}
		body, err := json.Marshal(recs)
		if err != nil {
			return fmt.Errorf("encode population records: %w", err)
		}
		return writeArtifact(cfg.DataDir, "population", "population_by_subzone", date, body, len(recs))

	default:
		return fmt.Errorf("unknown dataset %q", dataset)
	}
}

// writeArtifact stores the body under dir with a timestamped name. records
// < 0 means "count GeoJSON features from the body".
func writeArtifact(dataDir, subdir, prefix, date string, body []byte, records int) error {
	dir := filepath.Join(dataDir, filepath.FromSlash(subdir))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	if records < 0 {
		var fc struct {
			Features []json.RawMessage `json:"features"`
		}
		if err := json.Unmarshal(body, &fc); err == nil {
			records = len(fc.Features)
		} else {
			records = 0
		}
	}

	now := time.Now().UTC()
	art := rawArtifact{
		FetchedAt: now,
		Source:    prefix,
		Date:      date,
		Records:   records,
		Data:      body,
	}
	buf, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	suffix := "latest"
	if date != "" {
		suffix = date
	}
	name := fmt.Sprintf("%s_%s_%s.json", prefix, suffix, now.Format("20060102T150405Z"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
