package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type NotifyCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type Config struct {
	Addr     string
	LogLevel string

	// Poller
	PollInterval time.Duration
	PollTimeout  time.Duration

	// Snapshot cache
	RedisAddr      string
	RedisEnabled   bool
	SnapshotTTL    time.Duration
	CacheOpTimeout time.Duration

	// Risk engine
	H3Res         int
	LagMonths     int
	DecayHalfLife time.Duration

	// Map surface
	MapCenterLat   float64
	MapCenterLng   float64
	MapZoom        int
	TileURL        string
	TileAttrib     string

	// Upstream catalog
	SourcesFile string
	DataDir     string

	Notify NotifyCfg
}

func FromEnv() Config {
	res := getint("H3_RES", 9)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	return Config{
		Addr:     getenv("ADDR", ":8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		PollInterval: getduration("POLL_INTERVAL", 5*time.Minute),
		PollTimeout:  getduration("POLL_TIMEOUT", 45*time.Second),

		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		RedisEnabled:   getbool("REDIS_ENABLED", false),
		SnapshotTTL:    getduration("SNAPSHOT_TTL", 30*time.Minute),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),

		H3Res:         res,
		LagMonths:     getint("LAG_MONTHS", 2),
		DecayHalfLife: getduration("DECAY_HALF_LIFE", 14*24*time.Hour),

		MapCenterLat: getfloat("MAP_CENTER_LAT", 1.3521),
		MapCenterLng: getfloat("MAP_CENTER_LNG", 103.8198),
		MapZoom:      getint("MAP_ZOOM", 12),
		TileURL:      getenv("TILE_URL", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"),
		TileAttrib:   getenv("TILE_ATTRIB", "© OpenStreetMap contributors"),

		SourcesFile: getenv("SOURCES_FILE", "config/sources.yaml"),
		DataDir:     getenv("DATA_DIR", "data/raw"),

		Notify: NotifyCfg{
			Enabled: getbool("NOTIFY_ENABLED", false),
			Brokers: split(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("KAFKA_TOPIC", "dengue-snapshot-updates"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func split(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
