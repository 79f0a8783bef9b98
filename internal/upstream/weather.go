package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/cwq-lab/denguewatch/internal/core/model"
)

type WeatherKind string

const (
	AirTemperature WeatherKind = "air-temperature"
	Rainfall       WeatherKind = "rainfall"
)

// WeatherObservation is one v2 real-time API response: the reporting
// stations plus their readings for the requested date.
type WeatherObservation struct {
	Kind     WeatherKind
	Stations []model.Station
	Readings []model.Reading
}

// FetchWeather pulls one real-time weather dataset. An empty date means the
// latest observations; otherwise date is YYYY-MM-DD, which is how the lag
// builder requests historical windows.
func (c *Client) FetchWeather(ctx context.Context, kind WeatherKind, date string) (*WeatherObservation, error) {
	var endpoint string
	switch kind {
	case AirTemperature:
		endpoint = c.sources.Weather.AirTemperature
	case Rainfall:
		endpoint = c.sources.Weather.Rainfall
	default:
		return nil, fmt.Errorf("unknown weather kind %q", kind)
	}

	if date != "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("upstream %s: parse endpoint: %w", kind, err)
		}
		q := u.Query()
		q.Set("date", date)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	body, err := c.get(ctx, string(kind), endpoint)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Code         int    `json:"code"`
		ErrorMessage string `json:"errorMsg"`
		Data         struct {
			Stations []struct {
				ID       string `json:"id"`
				Name     string `json:"name"`
				Location struct {
					Latitude  float64 `json:"latitude"`
					Longitude float64 `json:"longitude"`
				} `json:"location"`
			} `json:"stations"`
			Readings []struct {
				Timestamp time.Time `json:"timestamp"`
				Data      []struct {
					StationID string  `json:"stationId"`
					Value     float64 `json:"value"`
				} `json:"data"`
			} `json:"readings"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("upstream %s: decode: %w", kind, err)
	}
	if payload.Code != 0 {
		return nil, &APIError{Source: string(kind), Code: payload.Code, Msg: payload.ErrorMessage}
	}

	obs := &WeatherObservation{Kind: kind}
	for _, s := range payload.Data.Stations {
		obs.Stations = append(obs.Stations, model.Station{
			ID:   s.ID,
			Name: s.Name,
			Location: model.LatLng{
				Lat: s.Location.Latitude,
				Lng: s.Location.Longitude,
			},
		})
	}
	for _, r := range payload.Data.Readings {
		for _, d := range r.Data {
			obs.Readings = append(obs.Readings, model.Reading{
				StationID: d.StationID,
				Value:     d.Value,
				Timestamp: r.Timestamp,
			})
		}
	}
	return obs, nil
}
