package tenauth

import (
	internalaudit "github.com/arlox-io/tenauth/internal/audit"
)

// Audit event types emitted by the engine.
const (
	auditTokenIssued          = "token.issued"
	auditTokenRejected        = "token.rejected"
	auditGrantCreated         = "grant.created"
	auditGrantExchanged       = "grant.exchanged"
	auditGrantRateLimited     = "grant.rate_limited"
	auditAuthzAllowed         = "authz.allowed"
	auditAuthzForbidden       = "authz.forbidden"
	auditAuthzUnauthenticated = "authz.unauthenticated"
)

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *internalaudit.Dispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}
