package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/listkeeper/listkeeper/internal/metrics"
)

func TestMetricsHandler_Exposition(t *testing.T) {
	rec := metrics.NewInMemory()
	rec.IncCommand("allow")
	rec.IncCommand("allow")
	rec.IncCommandDenied("cooldown")
	rec.IncRegistration("created")
	rec.IncStoreError()
	rec.ObserveStoreDuration(1500 * time.Millisecond)
	rec.IncGameRoll("slot", true)
	rec.IncGameRoll("oracle", false)

	h := NewMetricsHandler(rec)
	w := httptest.NewRecorder()
	h.Metrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected Content-Type: %s", ct)
	}

	body := w.Body.String()
	for _, line := range []string{
		`listkeeper_commands_total{command="allow"} 2`,
		`listkeeper_commands_denied_total{reason="cooldown"} 1`,
		`listkeeper_registrations_total{outcome="created"} 1`,
		`listkeeper_store_errors_total 1`,
		`listkeeper_store_duration_seconds_count 1`,
		`listkeeper_store_duration_seconds_sum 1.500000`,
		`listkeeper_game_rolls_total{game="oracle"} 1`,
		`listkeeper_game_rolls_total{game="slot"} 1`,
		`listkeeper_game_wins_total{game="slot"} 1`,
	} {
		if !strings.Contains(body, line+"\n") {
			t.Errorf("missing %q in:\n%s", line, body)
		}
	}
	if strings.Contains(body, `listkeeper_game_wins_total{game="oracle"}`) {
		t.Error("oracle had no wins and should not be reported")
	}
}

func TestMetricsHandler_NoSnapshotter(t *testing.T) {
	h := NewMetricsHandler(nil)
	w := httptest.NewRecorder()
	h.Metrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}
