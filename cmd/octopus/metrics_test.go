package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"octopyenergy/internal/providers"
)

func TestMetricsHandler_ExposesClientMetrics(t *testing.T) {
	t.Parallel()

	reg := newMetricsRegistry()
	metrics := providers.NewMetrics(reg)
	metrics.PagesFetched.Add(3)
	metrics.ReadingsDecoded.WithLabelValues("rest").Add(250)

	srv := httptest.NewServer(metricsHandler(reg))
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	for _, want := range []string{
		"octopus_consumption_pages_fetched_total 3",
		`octopus_readings_decoded_total{api="rest"} 250`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestStartMetricsServer_ServesUntilClosed(t *testing.T) {
	t.Parallel()

	reg := newMetricsRegistry()
	providers.NewMetrics(reg).PagesFetched.Inc()

	server, err := startMetricsServer("127.0.0.1:0", reg, zap.NewNop())
	if err != nil {
		t.Fatalf("startMetricsServer: %v", err)
	}
	resp, err := http.Get("http://" + server.addr + "/metrics")
	if err != nil {
		server.Close()
		t.Fatalf("GET /metrics: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		server.Close()
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}
	server.Close()

	select {
	case <-server.done:
	default:
		t.Fatalf("serve loop still running after Close")
	}
}
