package metrics

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestSetCurrentState(t *testing.T) {
	all := []string{"active", "idle", "display_sleep", "system_sleep"}

	SetCurrentState("idle", all)

	for _, s := range all {
		want := 0.0
		if s == "idle" {
			want = 1
		}
		if got := testutil.ToFloat64(CurrentState.WithLabelValues(s)); got != want {
			t.Errorf("CurrentState{%s} = %v, want %v", s, got, want)
		}
	}

	SetCurrentState("active", all)
	if got := testutil.ToFloat64(CurrentState.WithLabelValues("idle")); got != 0 {
		t.Errorf("CurrentState{idle} = %v after switching, want 0", got)
	}
}

func TestServerServesMetricsAndHealth(t *testing.T) {
	srv := NewServer("127.0.0.1:0", zerolog.Nop())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = srv.Stop() }()

	TicksTotal.Inc()

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("/health = %d %q, want 200 OK", resp.StatusCode, body)
	}

	resp, err = http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "idlewatch_ticks_total") {
		t.Error("expected idlewatch_ticks_total in /metrics output")
	}
}
