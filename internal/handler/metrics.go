package handler

import (
	"fmt"
	"net/http"

	"github.com/listkeeper/listkeeper/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeSeries(w, "listkeeper_commands_total", "command", snap.Commands)
	writeSeries(w, "listkeeper_commands_denied_total", "reason", snap.CommandsDenied)
	writeSeries(w, "listkeeper_registrations_total", "outcome", snap.Registrations)

	writeMetric(w, "listkeeper_store_errors_total %d\n", snap.StoreErrors)
	writeMetric(w, "listkeeper_store_duration_seconds_count %d\n", snap.StoreDurationCount)
	writeMetric(w, "listkeeper_store_duration_seconds_sum %.6f\n", float64(snap.StoreDurationTotalNs)/1e9)

	writeSeries(w, "listkeeper_game_rolls_total", "game", snap.GameRolls)
	writeSeries(w, "listkeeper_game_wins_total", "game", snap.GameWins)
}

func writeSeries(w http.ResponseWriter, name, label string, series []metrics.LabeledCount) {
	for _, c := range series {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, c.Label, c.Value)
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
