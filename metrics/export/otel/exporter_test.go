package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

type fakeSource struct {
	mu            sync.RWMutex
	snapshot      goAuthClient.MetricsSnapshot
	audit         goAuthClient.AuditStats
	authenticated bool
	expiresIn     time.Duration
}

func (f *fakeSource) MetricsSnapshot() goAuthClient.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goAuthClient.MetricsSnapshot{
		Counters:      make(map[goAuthClient.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms:    make(map[goAuthClient.MetricID][]uint64, len(f.snapshot.Histograms)),
		HistogramSums: make(map[goAuthClient.MetricID]time.Duration, len(f.snapshot.HistogramSums)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	for k, v := range f.snapshot.HistogramSums {
		out.HistogramSums[k] = v
	}
	return out
}

func (f *fakeSource) AuditStats() goAuthClient.AuditStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.audit
}

func (f *fakeSource) IsAuthenticated() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.authenticated
}

func (f *fakeSource) TimeUntilExpiry() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.expiresIn
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

// int64Points returns the metric's int64 points keyed by the value of
// label; unlabelled points are keyed by "".
func int64Points(t *testing.T, m metricdata.Metrics, label string) map[string]int64 {
	t.Helper()
	var points []metricdata.DataPoint[int64]
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		points = data.DataPoints
	case metricdata.Gauge[int64]:
		points = data.DataPoints
	default:
		t.Fatalf("%s: unexpected data type %T", m.Name, m.Data)
	}
	out := make(map[string]int64, len(points))
	for _, p := range points {
		v, _ := p.Attributes.Value(attribute.Key(label))
		out[v.AsString()] = p.Value
	}
	return out
}

func float64Point(t *testing.T, m metricdata.Metrics) float64 {
	t.Helper()
	gauge, ok := m.Data.(metricdata.Gauge[float64])
	if !ok || len(gauge.DataPoints) != 1 {
		t.Fatalf("%s: unexpected data %#v", m.Name, m.Data)
	}
	return gauge.DataPoints[0].Value
}

func mustGet(t *testing.T, got map[string]metricdata.Metrics, name string) metricdata.Metrics {
	t.Helper()
	m, ok := got[name]
	if !ok {
		t.Fatalf("metric %s not collected", name)
	}
	return m
}

func TestExporterCollectsCountersAndLatency(t *testing.T) {
	reader, provider := newReader()

	src := &fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters: map[goAuthClient.MetricID]uint64{
				goAuthClient.MetricLoginSuccess:     3,
				goAuthClient.MetricRefreshCoalesced: 5,
			},
			Histograms: map[goAuthClient.MetricID][]uint64{
				goAuthClient.MetricRefreshLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
			HistogramSums: map[goAuthClient.MetricID]time.Duration{
				goAuthClient.MetricRefreshLatency: 2 * time.Second,
			},
		},
	}

	exp, err := newExporter(provider.Meter("goauthclient-test"), src)
	if err != nil {
		t.Fatalf("newExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	got := collect(t, reader)

	if v := int64Points(t, mustGet(t, got, "goauthclient_login_success_total"), "")[""]; v != 3 {
		t.Fatalf("login success: expected 3, got %d", v)
	}
	if v := int64Points(t, mustGet(t, got, "goauthclient_refresh_coalesced_total"), "")[""]; v != 5 {
		t.Fatalf("coalesced: expected 5, got %d", v)
	}

	buckets := int64Points(t, mustGet(t, got, "goauthclient_refresh_latency_seconds_bucket"), "le")
	if len(buckets) != 8 {
		t.Fatalf("expected 8 le buckets, got %v", buckets)
	}
	if buckets["0.05"] != 1 || buckets["1"] != 5 || buckets["+Inf"] != 8 {
		t.Fatalf("unexpected cumulative buckets %v", buckets)
	}
	if v := int64Points(t, mustGet(t, got, "goauthclient_refresh_latency_seconds_count"), "")[""]; v != 8 {
		t.Fatalf("count: expected 8, got %d", v)
	}
	if v := float64Point(t, mustGet(t, got, "goauthclient_refresh_latency_seconds_sum")); v != 2 {
		t.Fatalf("sum: expected 2, got %v", v)
	}
}

func TestExporterSessionAndAuditInstruments(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot:      goAuthClient.MetricsSnapshot{},
		audit:         goAuthClient.AuditStats{Delivered: 9, Dropped: 2, SinkFailures: 1},
		authenticated: true,
		expiresIn:     90 * time.Second,
	}

	exp, err := newExporter(provider.Meter("goauthclient-test"), src)
	if err != nil {
		t.Fatalf("newExporter failed: %v", err)
	}
	defer exp.Close()

	got := collect(t, reader)
	if v := int64Points(t, mustGet(t, got, "goauthclient_session_authenticated"), "")[""]; v != 1 {
		t.Fatalf("expected signed-in gauge 1, got %d", v)
	}
	if v := float64Point(t, mustGet(t, got, "goauthclient_session_expires_in_seconds")); v != 90 {
		t.Fatalf("expected 90s remaining, got %v", v)
	}
	audit := int64Points(t, mustGet(t, got, "goauthclient_audit_events_total"), "outcome")
	if audit["delivered"] != 9 || audit["dropped"] != 2 || audit["sink_failure"] != 1 {
		t.Fatalf("unexpected audit outcomes %v", audit)
	}

	src.mu.Lock()
	src.authenticated = false
	src.expiresIn = 0
	src.mu.Unlock()

	got = collect(t, reader)
	if v := int64Points(t, mustGet(t, got, "goauthclient_session_authenticated"), "")[""]; v != 0 {
		t.Fatalf("expected signed-out gauge 0, got %d", v)
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("goauthclient-test")

	if _, err := newExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil manager, got %v", err)
	}
	if _, err := newExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterReadsManagerSession(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
	}))
	defer api.Close()

	reader, provider := newReader()

	cfg := goAuthClient.DefaultConfig()
	cfg.API.BaseURL = api.URL
	cfg.Audit.Enabled = true
	m, err := goAuthClient.New().WithConfig(cfg).WithHTTPClient(api.Client()).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer m.Close()

	exp, err := NewOTelExporter(provider.Meter("goauthclient-test"), m)
	if err != nil {
		t.Fatalf("NewOTelExporter: %v", err)
	}
	defer exp.Close()

	if _, err := m.Login(context.Background(), "ada", "wrong"); err == nil {
		t.Fatalf("expected rejected login")
	}
	m.Metrics().Inc(goAuthClient.MetricForcedLogout)

	got := collect(t, reader)
	if v := int64Points(t, mustGet(t, got, "goauthclient_login_failure_total"), "")[""]; v != 1 {
		t.Fatalf("expected 1 login failure, got %d", v)
	}
	if v := int64Points(t, mustGet(t, got, "goauthclient_forced_logout_total"), "")[""]; v != 1 {
		t.Fatalf("expected 1 forced logout, got %d", v)
	}
	if v := int64Points(t, mustGet(t, got, "goauthclient_session_authenticated"), "")[""]; v != 0 {
		t.Fatalf("expected signed-out gauge, got %d", v)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()

	src := &fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters: map[goAuthClient.MetricID]uint64{
				goAuthClient.MetricLoginSuccess: 1,
			},
			Histograms: map[goAuthClient.MetricID][]uint64{
				goAuthClient.MetricRefreshLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := newExporter(provider.Meter("goauthclient-test"), src)
	if err != nil {
		t.Fatalf("newExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goAuthClient.MetricLoginSuccess] = v
			src.authenticated = v%2 == 0
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
