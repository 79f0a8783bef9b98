package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cwq-lab/denguewatch/internal/state"
)

// HandleLatestClusters serves the current cluster snapshot verbatim as it
// came from upstream; 503 until the first successful poll.
func HandleLatestClusters(log *slog.Logger, latest *state.Latest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, gen, err := latest.Snapshot()
		if err != nil {
			if errors.Is(err, state.ErrNoSnapshot) {
				http.Error(w, "no cluster snapshot yet", http.StatusServiceUnavailable)
				return
			}
			log.ErrorContext(r.Context(), "snapshot read failed", "err", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("X-Snapshot-Generation", strconv.FormatUint(gen, 10))
		w.Header().Set("X-Snapshot-Fetched-At", snap.FetchedAt.UTC().Format("2006-01-02T15:04:05Z"))
		_, _ = w.Write(snap.Raw)
	}
}

// HandleLatestRisk serves the risk surface for the current generation; 503
// until one has been computed.
func HandleLatestRisk(log *slog.Logger, latest *state.Latest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surface, gen, err := latest.Risk()
		if err != nil {
			if errors.Is(err, state.ErrNoSnapshot) {
				http.Error(w, "no risk surface yet", http.StatusServiceUnavailable)
				return
			}
			log.ErrorContext(r.Context(), "risk read failed", "err", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("X-Snapshot-Generation", strconv.FormatUint(gen, 10))
		_, _ = w.Write(surface)
	}
}
