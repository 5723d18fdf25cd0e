package tenauth

import (
	"context"
	"io"

	internalaudit "github.com/arlox-io/tenauth/internal/audit"
	internalmetrics "github.com/arlox-io/tenauth/internal/metrics"
	"github.com/arlox-io/tenauth/principal"
)

// Principal is the validated identity derived from an access token.
// See [principal.Principal]; re-exported here so integrators rarely need
// to import the subpackage directly.
type Principal = principal.Principal

// TokenResponse is the success payload of a token grant.
type TokenResponse struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}

// UserRecord is the credential record returned by [UserProvider].
// Authorities are the raw role names assigned to the user; the issuer
// canonicalizes them with the configured authority prefix before they
// enter a token.
type UserRecord struct {
	UserID       string
	Identifier   string
	TenantID     string
	PasswordHash string
	Authorities  []string
	Scopes       []string
}

// ClientRecord is a registered OAuth client. SecretHash is an argon2id
// PHC string; plaintext secrets are never stored.
type ClientRecord struct {
	ClientID   string
	SecretHash string
}

// UserProvider is the interface callers implement to integrate tenauth
// with their user database. Lookups are by login identifier; the engine
// never enumerates users.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
}

// ClientProvider resolves registered OAuth clients by client_id.
type ClientProvider interface {
	GetClientByID(ctx context.Context, clientID string) (ClientRecord, error)
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit
// dispatcher. Implementations must be safe for concurrent use.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter or histogram bucket in the
// in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricTokenIssued counts successful grants of any type.
	MetricTokenIssued = internalmetrics.MetricTokenIssued
	// MetricTokenRejected counts grant failures (credentials, client, grant state).
	MetricTokenRejected = internalmetrics.MetricTokenRejected
	// MetricGrantRateLimited counts token-endpoint throttle hits.
	MetricGrantRateLimited = internalmetrics.MetricGrantRateLimited
	// MetricAuthzAllowed counts permitted authorization decisions.
	MetricAuthzAllowed = internalmetrics.MetricAuthzAllowed
	// MetricAuthzForbidden counts policy denials (valid token, missing role).
	MetricAuthzForbidden = internalmetrics.MetricAuthzForbidden
	// MetricAuthzUnauthenticated counts rejected tokens on the authorization path.
	MetricAuthzUnauthenticated = internalmetrics.MetricAuthzUnauthenticated
	// MetricCacheHit counts principal cache hits.
	MetricCacheHit = internalmetrics.MetricCacheHit
	// MetricCacheMiss counts principal cache misses.
	MetricCacheMiss = internalmetrics.MetricCacheMiss
	// MetricAuthorizeLatency is the Authorize latency histogram.
	MetricAuthorizeLatency = internalmetrics.MetricAuthorizeLatency
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
