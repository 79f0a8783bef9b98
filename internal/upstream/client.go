// Package upstream fetches datasets from Singapore's open-data APIs: the
// v1 poll-download flow for dengue clusters and subzone boundaries, the v2
// real-time weather endpoints, and the datastore search for population.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwq-lab/denguewatch/internal/core/config"
	"github.com/cwq-lab/denguewatch/internal/core/observability"
)

// maxBodyBytes caps upstream response bodies. Cluster collections are a
// few hundred KB; anything near this limit is a broken feed.
const maxBodyBytes = 32 << 20

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Source string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s: unexpected status %d", e.Source, e.Code)
}

// APIError reports a poll-download envelope with a non-zero code.
type APIError struct {
	Source string
	Code   int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream %s: api error code %d: %s", e.Source, e.Code, e.Msg)
}

type Client struct {
	log     *slog.Logger
	http    *http.Client
	sources config.Sources
}

func New(log *slog.Logger, httpClient *http.Client, sources config.Sources) *Client {
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{log: log, http: httpClient, sources: sources}
}

// FetchClusters returns the latest dengue cluster GeoJSON body.
func (c *Client) FetchClusters(ctx context.Context) ([]byte, error) {
	return c.fetchPollDownload(ctx, "dengue", c.sources.Dengue.DatasetID)
}

// FetchBoundaries returns the Master Plan 2019 subzone boundary GeoJSON.
func (c *Client) FetchBoundaries(ctx context.Context) ([]byte, error) {
	return c.fetchPollDownload(ctx, "boundaries", c.sources.Boundaries.DatasetID)
}

// fetchPollDownload runs the two-step download: the dataset endpoint hands
// back a signed URL, the second request fetches the actual body.
func (c *Client) fetchPollDownload(ctx context.Context, source, datasetID string) ([]byte, error) {
	initURL := fmt.Sprintf("%s/%s/poll-download", c.sources.PollDownloadBase, datasetID)

	body, err := c.get(ctx, source, initURL)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Code   int    `json:"code"`
		ErrMsg string `json:"errMsg"`
		Data   struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("upstream %s: decode poll-download envelope: %w", source, err)
	}
	if envelope.Code != 0 {
		return nil, &APIError{Source: source, Code: envelope.Code, Msg: envelope.ErrMsg}
	}
	if envelope.Data.URL == "" {
		return nil, fmt.Errorf("upstream %s: poll-download returned no data url", source)
	}

	c.log.DebugContext(ctx, "poll-download data url obtained", "source", source)
	return c.get(ctx, source, envelope.Data.URL)
}

func (c *Client) get(ctx context.Context, source, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: build request: %w", source, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency(source, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", source, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Source: source, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("upstream %s: read body: %w", source, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("upstream %s: body exceeds %d bytes", source, maxBodyBytes)
	}
	return body, nil
}

// IsTransient reports whether err is worth noting as a transport-level
// failure rather than a decode problem.
func IsTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
