package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Sources is the catalog of upstream datasets. It mirrors the layout of
// config/sources.yaml; when the file is absent the baked-in data.gov.sg
// defaults are used.
type Sources struct {
	PollDownloadBase string `yaml:"poll_download_base"`
	DatastoreSearch  string `yaml:"datastore_search"`

	Dengue struct {
		DatasetID string `yaml:"dataset_id"`
	} `yaml:"dengue"`

	Boundaries struct {
		DatasetID string `yaml:"dataset_id"`
	} `yaml:"boundaries"`

	Population struct {
		ResourceID string `yaml:"resource_id"`
		Limit      int    `yaml:"limit"`
	} `yaml:"population"`

	Weather struct {
		AirTemperature string `yaml:"air_temperature"`
		Rainfall       string `yaml:"rainfall"`
	} `yaml:"weather"`
}

func DefaultSources() Sources {
	var s Sources
	s.PollDownloadBase = "https://api-open.data.gov.sg/v1/public/api/datasets"
	s.DatastoreSearch = "https://data.gov.sg/api/action/datastore_search"
	s.Dengue.DatasetID = "d_dbfabf16158d1b0e1c420627c0819168"
	s.Boundaries.DatasetID = "d_8594ae9ff96d0c708bc2af633048edfb"
	s.Population.ResourceID = "d_a1b1b1b9f6b79b6f6f3a0e55a9b0a1db"
	s.Population.Limit = 1000
	s.Weather.AirTemperature = "https://api-open.data.gov.sg/v2/real-time/api/air-temperature"
	s.Weather.Rainfall = "https://api-open.data.gov.sg/v2/real-time/api/rainfall"
	return s
}

// LoadSources reads the catalog file, filling unset fields from the
// defaults. A missing file is not an error.
func LoadSources(path string) (Sources, error) {
	def := DefaultSources()
	if path == "" {
		return def, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return def, nil
		}
		return def, fmt.Errorf("read sources file %q: %w", path, err)
	}
	s := def
	if err := yaml.Unmarshal(buf, &s); err != nil {
		return def, fmt.Errorf("parse sources file %q: %w", path, err)
	}
	return s, nil
}
