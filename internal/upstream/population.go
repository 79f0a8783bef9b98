package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PopulationRecord is one subzone's resident count for a census year.
type PopulationRecord struct {
	Subzone    string
	Year       int
	Population float64
}

// FetchPopulation queries the datastore search endpoint for resident
// population by subzone. year 0 means the latest published year.
func (c *Client) FetchPopulation(ctx context.Context, year int) ([]PopulationRecord, error) {
	u, err := url.Parse(c.sources.DatastoreSearch)
	if err != nil {
		return nil, fmt.Errorf("upstream population: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("resource_id", c.sources.Population.ResourceID)
	limit := c.sources.Population.Limit
	if limit <= 0 {
		limit = 1000
	}
	q.Set("limit", strconv.Itoa(limit))
	if year > 0 {
		filters, _ := json.Marshal(map[string]int{"year": year})
		q.Set("filters", string(filters))
	}
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, "population", u.String())
	if err != nil {
		return nil, err
	}

	var payload struct {
		Success bool `json:"success"`
		Result  struct {
			Records []map[string]any `json:"records"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("upstream population: decode: %w", err)
	}
	if !payload.Success {
		return nil, fmt.Errorf("upstream population: datastore search unsuccessful")
	}

	out := make([]PopulationRecord, 0, len(payload.Result.Records))
	for _, rec := range payload.Result.Records {
		r := PopulationRecord{
			Subzone:    asString(rec, "subzone", "subzone_name", "SZ"),
			Population: asNumber(rec, "population", "resident_count", "count"),
		}
		if y := asNumber(rec, "year", "time"); y > 0 {
			r.Year = int(y)
		}
		if r.Subzone == "" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func asString(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := foldKey(rec, k); ok {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func asNumber(rec map[string]any, keys ...string) float64 {
	for _, k := range keys {
		v, ok := foldKey(rec, k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t
		case string:
			if n, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func foldKey(rec map[string]any, key string) (any, bool) {
	if v, ok := rec[key]; ok {
		return v, true
	}
	for k, v := range rec {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}
