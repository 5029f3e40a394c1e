package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	prom "github.com/prometheus/client_golang/prometheus"
)

type fakeSource struct {
	snapshot goAuthClient.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goAuthClient.MetricsSnapshot {
	return f.snapshot
}

func (f fakeSource) AuditDropped() uint64 {
	return f.dropped
}

func sampleSource() fakeSource {
	return fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters: map[goAuthClient.MetricID]uint64{
				goAuthClient.MetricLoginSuccess:     7,
				goAuthClient.MetricRefreshCoalesced: 4,
			},
			Histograms: map[goAuthClient.MetricID][]uint64{
				goAuthClient.MetricRefreshLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			HistogramSums: map[goAuthClient.MetricID]time.Duration{
				goAuthClient.MetricRefreshLatency: 1500 * time.Millisecond,
			},
		},
		dropped: 2,
	}
}

func TestRenderEmptySnapshot(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{})
	out := exp.Render()
	if !strings.Contains(out, "goauthclient_login_success_total 0\n") {
		t.Fatalf("expected zero login counter, got:\n%s", out)
	}
	if strings.Contains(out, "goauthclient_refresh_latency_seconds") {
		t.Fatalf("histogram must be omitted when not recorded")
	}
}

func TestRenderCountersAndHistogram(t *testing.T) {
	out := NewPrometheusExporterFromSource(sampleSource()).Render()

	for _, want := range []string{
		"goauthclient_login_success_total 7\n",
		"goauthclient_refresh_coalesced_total 4\n",
		"goauthclient_audit_dropped_total 2\n",
		`goauthclient_refresh_latency_seconds_bucket{le="0.05"} 1` + "\n",
		`goauthclient_refresh_latency_seconds_bucket{le="5"} 28` + "\n",
		`goauthclient_refresh_latency_seconds_bucket{le="+Inf"} 36` + "\n",
		"goauthclient_refresh_latency_seconds_sum 1.5\n",
		"goauthclient_refresh_latency_seconds_count 36\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestCollectorGather(t *testing.T) {
	registry := prom.NewRegistry()
	if err := registry.Register(NewPrometheusExporterFromSource(sampleSource())); err != nil {
		t.Fatalf("Register: %v", err)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	byName := make(map[string]int, len(families))
	for i, mf := range families {
		byName[mf.GetName()] = i
	}

	idx, ok := byName["goauthclient_login_success_total"]
	if !ok {
		t.Fatalf("login counter not gathered")
	}
	if v := families[idx].GetMetric()[0].GetCounter().GetValue(); v != 7 {
		t.Fatalf("expected 7, got %v", v)
	}

	idx, ok = byName["goauthclient_refresh_latency_seconds"]
	if !ok {
		t.Fatalf("latency histogram not gathered")
	}
	h := families[idx].GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 36 {
		t.Fatalf("expected count 36, got %d", h.GetSampleCount())
	}
	if h.GetSampleSum() != 1.5 {
		t.Fatalf("expected sum 1.5, got %v", h.GetSampleSum())
	}
	if len(h.GetBucket()) != 7 {
		t.Fatalf("expected 7 finite buckets, got %d", len(h.GetBucket()))
	}

	idx, ok = byName["goauthclient_audit_dropped_total"]
	if !ok {
		t.Fatalf("audit dropped counter not gathered")
	}
	if v := families[idx].GetMetric()[0].GetCounter().GetValue(); v != 2 {
		t.Fatalf("expected 2, got %v", v)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	exp := NewPrometheusExporterFromSource(sampleSource())
	srv := httptest.NewServer(exp.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "goauthclient_refresh_coalesced_total 4") {
		t.Fatalf("metrics body missing counter:\n%s", body)
	}
}

func TestHandlerFromManager(t *testing.T) {
	cfg := goAuthClient.DefaultConfig()
	cfg.API.BaseURL = "http://127.0.0.1:1"
	m, err := goAuthClient.New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer m.Close()
	m.Metrics().Inc(goAuthClient.MetricLogout)

	out := NewPrometheusExporter(m).Render()
	if !strings.Contains(out, "goauthclient_logout_total 1\n") {
		t.Fatalf("expected logout counter from manager, got:\n%s", out)
	}
}
