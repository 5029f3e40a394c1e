package internaldefs

import (
	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// CounterDef binds a counter MetricID to its exported name.
type CounterDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its exported name.
type HistogramDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported Manager counter.
var CounterDefs = []CounterDef{
	{ID: goAuthClient.MetricLoginSuccess, Name: "goauthclient_login_success_total", Help: "Successful logins."},
	{ID: goAuthClient.MetricLoginFailure, Name: "goauthclient_login_failure_total", Help: "Failed logins."},
	{ID: goAuthClient.MetricRefreshSuccess, Name: "goauthclient_refresh_success_total", Help: "Successful credential refreshes."},
	{ID: goAuthClient.MetricRefreshFailure, Name: "goauthclient_refresh_failure_total", Help: "Failed credential refreshes."},
	{ID: goAuthClient.MetricRefreshCoalesced, Name: "goauthclient_refresh_coalesced_total", Help: "Refresh requests that joined an in-flight refresh."},
	{ID: goAuthClient.MetricRefreshSkipped, Name: "goauthclient_refresh_skipped_total", Help: "Refresh requests answered with an already newer credential."},
	{ID: goAuthClient.MetricRefreshDiscarded, Name: "goauthclient_refresh_discarded_total", Help: "Refresh results dropped because the session changed."},
	{ID: goAuthClient.MetricLogout, Name: "goauthclient_logout_total", Help: "User requested logouts."},
	{ID: goAuthClient.MetricForcedLogout, Name: "goauthclient_forced_logout_total", Help: "Logouts forced by refresh failure."},
	{ID: goAuthClient.MetricSessionExpired, Name: "goauthclient_session_expired_total", Help: "Sessions ended by credential expiry."},
	{ID: goAuthClient.MetricSessionRestored, Name: "goauthclient_session_restored_total", Help: "Sessions restored from storage."},
	{ID: goAuthClient.MetricRequestAuthFailed, Name: "goauthclient_request_auth_failed_total", Help: "Protected requests answered with 401 or 403."},
	{ID: goAuthClient.MetricRequestRetried, Name: "goauthclient_request_retried_total", Help: "Protected requests retried after refresh."},
	{ID: goAuthClient.MetricAuthorizationFailure, Name: "goauthclient_authorization_failure_total", Help: "Protected requests rejected after the retry."},
}

// HistogramDefs lists every exported Manager histogram.
var HistogramDefs = []HistogramDef{
	{ID: goAuthClient.MetricRefreshLatency, Name: "goauthclient_refresh_latency_seconds", Help: "Refresh round trip latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// raw bucket is +Inf.
var HistogramUpperBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// HistogramBounds are the le label values for the raw buckets.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "goauthclient_audit_dropped_total"

// AuditEventsName counts audit events by outcome label.
const AuditEventsName = "goauthclient_audit_events_total"

// Session gauges read from the Manager at collection time.
const (
	SessionAuthenticatedName = "goauthclient_session_authenticated"
	SessionExpiresInName     = "goauthclient_session_expires_in_seconds"
)

// NormalizeBuckets copies raw into a fixed 8-bucket array, zero filling or
// truncating as needed.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
