// Package model defines core domain types shared across the service.
package model

import "time"

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// MapView is the state a front end needs to initialize the map surface.
type MapView struct {
	Center      LatLng `json:"center"`
	Zoom        int    `json:"zoom"`
	TileURL     string `json:"tileUrl"`
	Attribution string `json:"attribution"`
}

// RiskBand classifies a subzone risk score.
type RiskBand string

const (
	BandLow      RiskBand = "low"
	BandModerate RiskBand = "moderate"
	BandHigh     RiskBand = "high"
	BandVeryHigh RiskBand = "very_high"
)

// Indicator names used by the risk engine. Order is the row/column order of
// the AHP comparison matrix.
const (
	IndCaseLoad   = "case_load"
	IndRainfall   = "rainfall_lag"
	IndMinTemp    = "min_temp_lag"
	IndVegetation = "vegetation"
	IndPopDensity = "pop_density"
)

// Reading is one observation from a weather station.
type Reading struct {
	StationID string    `json:"stationId"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Station describes a weather station position.
type Station struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location LatLng `json:"location"`
}

// SubzoneScore is one row of the risk surface.
type SubzoneScore struct {
	Subzone string   `json:"subzone"`
	Score   float64  `json:"score"`
	Band    RiskBand `json:"band"`
}

type Cells []string
