// Package geojson parses and validates GeoJSON feature collections.
package geojson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNotFeatureCollection = errors.New("not a GeoJSON FeatureCollection")
	ErrEmptyBody            = errors.New("empty body")
)

type Feature struct {
	Type       string          `json:"type"`
	ID         any             `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Decode parses body as a FeatureCollection. Every feature must carry a
// geometry; features typed anything other than "Feature" are rejected.
func Decode(body []byte) (*FeatureCollection, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}
	var fc FeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%w (got type %q)", ErrNotFeatureCollection, fc.Type)
	}
	for i, f := range fc.Features {
		if f.Type != "Feature" {
			return nil, fmt.Errorf("feature %d: unexpected type %q", i, f.Type)
		}
		if len(bytes.TrimSpace(f.Geometry)) == 0 || bytes.Equal(f.Geometry, []byte("null")) {
			return nil, fmt.Errorf("feature %d: missing geometry", i)
		}
	}
	return &fc, nil
}

// PropNumber returns the first numeric property matching any of the given
// keys. Upstream feeds are inconsistent about casing and sometimes encode
// numbers as strings.
func (f Feature) PropNumber(keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := lookupFold(f.Properties, k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t, true
		case string:
			if n, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return n, true
			}
		case json.Number:
			if n, err := t.Float64(); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// PropString returns the first string property matching any of the keys.
func (f Feature) PropString(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := lookupFold(f.Properties, k); ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func lookupFold(props map[string]any, key string) (any, bool) {
	if v, ok := props[key]; ok {
		return v, true
	}
	for k, v := range props {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}
