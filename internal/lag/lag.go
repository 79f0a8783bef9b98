// Package lag builds temporally lagged weather features. The underlying
// model fits best with rainfall and lowest air temperature lagging the
// cluster data by two months.
package lag

import (
	"time"

	"github.com/cwq-lab/denguewatch/internal/core/model"
)

// daysPerMonth matches the acquisition convention of 30-day months, so the
// lag date lines up with historically archived files.
const daysPerMonth = 30

// Day returns the UTC date months back from now, formatted for the
// real-time weather API's date parameter.
func Day(now time.Time, months int) string {
	return now.UTC().AddDate(0, 0, -months*daysPerMonth).Format("2006-01-02")
}

// Window returns the UTC day bounds [start, end) for the lagged date.
func Window(now time.Time, months int) (time.Time, time.Time) {
	d := now.UTC().AddDate(0, 0, -months*daysPerMonth)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// Filter keeps readings falling inside [start, end).
func Filter(readings []model.Reading, start, end time.Time) []model.Reading {
	var out []model.Reading
	for _, r := range readings {
		t := r.Timestamp.UTC()
		if !t.Before(start) && t.Before(end) {
			out = append(out, r)
		}
	}
	return out
}

// SumByStation totals readings per station; the rainfall feature is the
// day's accumulated depth.
func SumByStation(readings []model.Reading) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range readings {
		out[r.StationID] += r.Value
	}
	return out
}

// MinByStation keeps the lowest reading per station; the temperature
// feature is the day's minimum.
func MinByStation(readings []model.Reading) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range readings {
		if v, ok := out[r.StationID]; !ok || r.Value < v {
			out[r.StationID] = r.Value
		}
	}
	return out
}
