package internaldefs

import (
	tenauth "github.com/arlox-io/tenauth"
)

// CounterDef binds a metric ID to its exported name and help text.
type CounterDef struct {
	ID   tenauth.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram metric ID to its exported name and help
// text.
type HistogramDef struct {
	ID   tenauth.MetricID
	Name string
	Help string
}

// CounterDefs is the canonical export order of all counters. Both
// exporters iterate this slice so the two backends always agree on
// names and ordering.
var CounterDefs = []CounterDef{
	{ID: tenauth.MetricTokenIssued, Name: "tenauth_token_issued_total", Help: "Successfully issued access tokens."},
	{ID: tenauth.MetricTokenRejected, Name: "tenauth_token_rejected_total", Help: "Rejected token grant attempts."},
	{ID: tenauth.MetricGrantRateLimited, Name: "tenauth_grant_rate_limited_total", Help: "Rate-limited token grant attempts."},
	{ID: tenauth.MetricAuthzAllowed, Name: "tenauth_authz_allowed_total", Help: "Authorization decisions that permitted access."},
	{ID: tenauth.MetricAuthzForbidden, Name: "tenauth_authz_forbidden_total", Help: "Authorization decisions denied by policy."},
	{ID: tenauth.MetricAuthzUnauthenticated, Name: "tenauth_authz_unauthenticated_total", Help: "Authorization attempts with an invalid or missing token."},
	{ID: tenauth.MetricCacheHit, Name: "tenauth_cache_hit_total", Help: "Principal cache hits."},
	{ID: tenauth.MetricCacheMiss, Name: "tenauth_cache_miss_total", Help: "Principal cache misses."},
}

// HistogramDefs lists the exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: tenauth.MetricAuthorizeLatency, Name: "tenauth_authorize_latency_seconds", Help: "Authorize latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// core histogram layout.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are the bounds as instrument-name-safe suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets widens a raw bucket slice to the fixed 8-bucket
// layout, tolerating short or missing slices from disabled histograms.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// both Prometheus and OTel histogram conventions expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
