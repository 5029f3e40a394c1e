// Package otel publishes a Manager's session metrics as OpenTelemetry
// observable instruments.
//
// [NewOTelExporter] registers:
//
//   - one Int64ObservableCounter per Manager counter;
//   - the refresh latency histogram as a cumulative bucket gauge labelled
//     by le, plus count and sum gauges;
//   - goauthclient_session_authenticated (0 or 1) and
//     goauthclient_session_expires_in_seconds;
//   - goauthclient_audit_events_total labelled by outcome.
//
// A single callback reads the Manager on each collection cycle. Callers own
// the MeterProvider.
package otel
