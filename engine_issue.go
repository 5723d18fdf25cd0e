package tenauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arlox-io/tenauth/internal"
	"github.com/arlox-io/tenauth/internal/rate"
)

// PasswordGrant exchanges a username/password pair for an access token.
// Lookup failures and verification failures are indistinguishable to the
// caller; both consume a throttle attempt and return
// ErrInvalidCredentials.
func (e *Engine) PasswordGrant(ctx context.Context, identifier, pass string) (TokenResponse, error) {
	if e == nil || e.jwtManager == nil {
		return TokenResponse{}, ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)

	if err := e.rateLimiter.CheckGrant(ctx, identifier, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metrics.Inc(MetricGrantRateLimited)
			e.emitGrantAudit(ctx, auditGrantRateLimited, identifier, "", false, "grant throttled")
			return TokenResponse{}, ErrGrantRateLimited
		}
		return TokenResponse{}, err
	}

	user, err := e.userProvider.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return TokenResponse{}, e.failGrant(ctx, identifier, ip, "unknown identifier")
	}

	ok, err := e.passwordHash.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		return TokenResponse{}, e.failGrant(ctx, identifier, ip, "password mismatch")
	}

	if strings.TrimSpace(user.TenantID) == "" {
		// A user without a tenant cannot receive a token the converter
		// would later accept.
		e.metrics.Inc(MetricTokenRejected)
		e.emitGrantAudit(ctx, auditTokenRejected, user.UserID, "", false, "user record has no tenant")
		return TokenResponse{}, ErrMissingTenant
	}

	if err := e.rateLimiter.ResetGrant(ctx, identifier, ip); err != nil {
		return TokenResponse{}, err
	}

	resp, err := e.mint(user.UserID, user.TenantID, user.Authorities, user.Scopes)
	if err != nil {
		e.metrics.Inc(MetricTokenRejected)
		return TokenResponse{}, err
	}

	e.metrics.Inc(MetricTokenIssued)
	e.emitGrantAudit(ctx, auditTokenIssued, user.UserID, user.TenantID, true, "")
	return resp, nil
}

// PasswordGrantForClient is PasswordGrant with client authentication in
// front. The client is verified before any user lookup, so a bad client
// secret never consumes a credential throttle attempt.
func (e *Engine) PasswordGrantForClient(ctx context.Context, clientID, clientSecret, identifier, pass string) (TokenResponse, error) {
	if e == nil || e.jwtManager == nil {
		return TokenResponse{}, ErrEngineNotReady
	}
	if err := e.authenticateClient(ctx, clientID, clientSecret); err != nil {
		return TokenResponse{}, err
	}
	return e.PasswordGrant(ctx, identifier, pass)
}

// authenticateClient resolves and verifies an OAuth client. Unknown
// clients and secret mismatches are indistinguishable.
func (e *Engine) authenticateClient(ctx context.Context, clientID, clientSecret string) error {
	if e.clientProvider == nil {
		return errors.New("client provider required for client-authenticated grants")
	}

	client, err := e.clientProvider.GetClientByID(ctx, clientID)
	if err != nil {
		e.metrics.Inc(MetricTokenRejected)
		e.emitGrantAudit(ctx, auditTokenRejected, "", "", false, "unknown client")
		return ErrInvalidClient
	}
	ok, err := e.passwordHash.Verify(clientSecret, client.SecretHash)
	if err != nil || !ok {
		e.metrics.Inc(MetricTokenRejected)
		e.emitGrantAudit(ctx, auditTokenRejected, "", "", false, "client secret mismatch")
		return ErrInvalidClient
	}
	return nil
}

// CreateAuthorizationCode issues a one-time code binding a user snapshot
// to a client. The code is opaque, unguessable, and redeemable exactly
// once within Grant.CodeTTL.
func (e *Engine) CreateAuthorizationCode(ctx context.Context, clientID, identifier string) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrEngineNotReady
	}
	if e.clientProvider == nil {
		return "", errors.New("client provider required for authorization code grants")
	}

	if _, err := e.clientProvider.GetClientByID(ctx, clientID); err != nil {
		return "", ErrInvalidClient
	}

	user, err := e.userProvider.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if strings.TrimSpace(user.TenantID) == "" {
		return "", ErrMissingTenant
	}

	code, err := internal.NewGrantCode(e.config.Grant.CodeLength)
	if err != nil {
		return "", err
	}

	record := &grantRecord{
		ClientID:    clientID,
		UserID:      user.UserID,
		TenantID:    user.TenantID,
		Authorities: e.canonicalAuthorities(user.Authorities),
		Scopes:      user.Scopes,
		ExpiresAt:   time.Now().Add(e.config.Grant.CodeTTL).Unix(),
	}

	if err := e.grantStore.Save(ctx, code, record, e.config.Grant.CodeTTL); err != nil {
		return "", err
	}

	e.emitGrantAudit(ctx, auditGrantCreated, user.UserID, user.TenantID, true, "")
	return code, nil
}

// AuthorizationCodeGrant redeems a one-time code for an access token.
// The client must authenticate and must be the client the code was
// issued to; consumed, expired, and unknown codes are indistinguishable.
func (e *Engine) AuthorizationCodeGrant(ctx context.Context, clientID, clientSecret, code string) (TokenResponse, error) {
	if e == nil || e.jwtManager == nil {
		return TokenResponse{}, ErrEngineNotReady
	}
	if err := e.authenticateClient(ctx, clientID, clientSecret); err != nil {
		return TokenResponse{}, err
	}

	record, err := e.grantStore.Consume(ctx, code)
	if err != nil {
		if errors.Is(err, errGrantNotFound) {
			e.metrics.Inc(MetricTokenRejected)
			e.emitGrantAudit(ctx, auditTokenRejected, "", "", false, "grant expired or consumed")
			return TokenResponse{}, ErrExpiredGrant
		}
		return TokenResponse{}, err
	}

	if record.ClientID != clientID {
		e.metrics.Inc(MetricTokenRejected)
		e.emitGrantAudit(ctx, auditTokenRejected, record.UserID, record.TenantID, false, "code issued to another client")
		return TokenResponse{}, ErrExpiredGrant
	}

	resp, err := e.mint(record.UserID, record.TenantID, record.Authorities, record.Scopes)
	if err != nil {
		e.metrics.Inc(MetricTokenRejected)
		return TokenResponse{}, err
	}

	e.metrics.Inc(MetricTokenIssued)
	e.emitGrantAudit(ctx, auditGrantExchanged, record.UserID, record.TenantID, true, "")
	return resp, nil
}

// mint signs an access token under the configured claims mapping. Role
// authorities always travel in the mapped authorities claim; the scope
// claim, when configured, carries only OAuth scopes.
func (e *Engine) mint(subjectID, tenantID string, authorities, scopes []string) (TokenResponse, error) {
	m := e.config.Claims

	appClaims := map[string]any{
		m.SubjectClaim:     subjectID,
		m.TenantClaim:      tenantID,
		m.AuthoritiesClaim: e.canonicalAuthorities(authorities),
		"jti":              uuid.NewString(),
	}
	if m.ScopeClaim != "" && len(scopes) > 0 {
		appClaims[m.ScopeClaim] = strings.Join(scopes, " ")
	}

	token, _, err := e.jwtManager.Mint(appClaims, time.Now())
	if err != nil {
		return TokenResponse{}, fmt.Errorf("mint access token: %w", err)
	}

	return TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(e.jwtManager.TTL().Seconds()),
	}, nil
}

// canonicalAuthorities normalizes raw role names with the configured
// authority prefix so issuance and conversion agree on the vocabulary.
func (e *Engine) canonicalAuthorities(raw []string) []string {
	prefix := e.config.Claims.AuthorityPrefix

	out := make([]string, 0, len(raw))
	for _, a := range raw {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if prefix != "" && !strings.HasPrefix(a, prefix) {
			a = prefix + a
		}
		out = append(out, a)
	}
	return out
}

// failGrant charges one throttle attempt and returns the uniform
// credential failure.
func (e *Engine) failGrant(ctx context.Context, identifier, ip, reason string) error {
	e.metrics.Inc(MetricTokenRejected)
	e.emitGrantAudit(ctx, auditTokenRejected, identifier, "", false, reason)

	if err := e.rateLimiter.IncrementGrant(ctx, identifier, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metrics.Inc(MetricGrantRateLimited)
			return ErrGrantRateLimited
		}
		return err
	}
	return ErrInvalidCredentials
}

func (e *Engine) emitGrantAudit(ctx context.Context, eventType, subjectID, tenantID string, success bool, reason string) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		SubjectID: subjectID,
		TenantID:  tenantID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     reason,
	})
}
