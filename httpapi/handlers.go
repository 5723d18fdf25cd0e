package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	tenauth "github.com/arlox-io/tenauth"
	"github.com/arlox-io/tenauth/middleware"
)

// oauthError is the RFC 6749 error body returned by the token endpoint.
type oauthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	ctx := tenauth.WithClientIP(r.Context(), remoteIP(r))

	var (
		resp tenauth.TokenResponse
		err  error
	)
	switch grantType := r.PostFormValue("grant_type"); grantType {
	case "password":
		identifier := r.PostFormValue("username")
		secret := r.PostFormValue("password")
		if identifier == "" || secret == "" {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
			return
		}
		if clientID, clientSecret, ok := r.BasicAuth(); ok {
			resp, err = s.engine.PasswordGrantForClient(ctx, clientID, clientSecret, identifier, secret)
		} else {
			resp, err = s.engine.PasswordGrant(ctx, identifier, secret)
		}

	case "authorization_code":
		code := r.PostFormValue("code")
		if code == "" {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "code is required")
			return
		}
		clientID, clientSecret, ok := r.BasicAuth()
		if !ok {
			clientID = r.PostFormValue("client_id")
			clientSecret = r.PostFormValue("client_secret")
		}
		if clientID == "" {
			writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication required")
			return
		}
		resp, err = s.engine.AuthorizationCodeGrant(ctx, clientID, clientSecret, code)

	case "":
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "grant_type is required")
		return

	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "")
		return
	}

	if err != nil {
		s.writeGrantError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

// writeGrantError maps engine errors onto OAuth2 wire errors. Credential
// and grant failures share invalid_grant so the endpoint leaks nothing
// about which part failed; all of them are authentication failures and
// answer 401.
func (s *Server) writeGrantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tenauth.ErrInvalidCredentials),
		errors.Is(err, tenauth.ErrExpiredGrant),
		errors.Is(err, tenauth.ErrMissingTenant):
		writeOAuthError(w, http.StatusUnauthorized, "invalid_grant", "")
	case errors.Is(err, tenauth.ErrInvalidClient):
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "")
	case errors.Is(err, tenauth.ErrGrantRateLimited):
		writeOAuthError(w, http.StatusTooManyRequests, "invalid_grant", "too many attempts")
	default:
		s.logger.Error("token endpoint failure", zap.Error(err))
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	subs, err := s.directory.Subscriptions(r.Context(), p.TenantID)
	if err != nil {
		s.logger.Error("subscription lookup failed", zap.Error(err), zap.String("tenant", p.TenantID))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]Subscription{"subscriptions": subs})
}

func (s *Server) handleDropdown(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	kind := chi.URLParam(r, "kind")
	options, err := s.directory.Dropdown(r.Context(), p.TenantID, kind)
	if err != nil {
		if errors.Is(err, ErrUnknownKind) {
			http.Error(w, "unknown dropdown kind", http.StatusNotFound)
			return
		}
		s.logger.Error("dropdown lookup failed", zap.Error(err), zap.String("tenant", p.TenantID), zap.String("kind", kind))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]Option{"options": options})
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, oauthError{Error: code, Description: description})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
