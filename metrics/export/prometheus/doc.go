// Package prometheus exposes goAuthClient metrics to Prometheus.
//
// [PrometheusExporter] implements prometheus.Collector over a
// [goAuthClient.Manager]. Register it with your own registry, or mount
// [PrometheusExporter.Handler], which serves it from a private registry via
// promhttp. Counter names are prefixed goauthclient_*_total; the single
// histogram is goauthclient_refresh_latency_seconds.
//
// The exporter never touches the global default registry and never mutates
// Manager state.
package prometheus
