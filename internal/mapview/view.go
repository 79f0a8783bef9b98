// Package mapview owns the map surface state a front end initializes from.
package mapview

import (
	"encoding/json"
	"net/http"

	"github.com/cwq-lab/denguewatch/internal/core/config"
	"github.com/cwq-lab/denguewatch/internal/core/model"
)

// Singapore city center; the dashboard always opens here.
const (
	DefaultLat  = 1.3521
	DefaultLng  = 103.8198
	DefaultZoom = 12
)

// New builds the view state from config, falling back to the Singapore
// defaults for any unset value. Construction cannot fail.
func New(cfg config.Config) model.MapView {
	v := model.MapView{
		Center:      model.LatLng{Lat: cfg.MapCenterLat, Lng: cfg.MapCenterLng},
		Zoom:        cfg.MapZoom,
		TileURL:     cfg.TileURL,
		Attribution: cfg.TileAttrib,
	}
	if v.Center.Lat == 0 && v.Center.Lng == 0 {
		v.Center = model.LatLng{Lat: DefaultLat, Lng: DefaultLng}
	}
	if v.Zoom <= 0 {
		v.Zoom = DefaultZoom
	}
	if v.TileURL == "" {
		v.TileURL = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	}
	if v.Attribution == "" {
		v.Attribution = "© OpenStreetMap contributors"
	}
	return v
}

// Handler serves the view state as JSON.
func Handler(v model.MapView) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
}
