package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rndhub/go-rnd-hub/config"
	"github.com/rndhub/go-rnd-hub/internal/api"
	"github.com/rndhub/go-rnd-hub/internal/types"
)

// Middleware authenticates requests from the session cookie.
type Middleware struct {
	service SessionService
	cfg     config.SessionConfig
}

func NewMiddleware(service SessionService, cfg config.SessionConfig) *Middleware {
	return &Middleware{service: service, cfg: cfg}
}

// TokenFromRequest extracts the session token from the cookie, if present.
func (m *Middleware) TokenFromRequest(r *http.Request) (uuid.UUID, bool) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return uuid.Nil, false
	}
	token, err := uuid.Parse(cookie.Value)
	if err != nil {
		return uuid.Nil, false
	}
	return token, true
}

// WriteCookie sets the session cookie for the given session.
func (m *Middleware) WriteCookie(w http.ResponseWriter, sess *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    sess.Token.String(),
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// WriteAnonymousCookie replaces the session cookie with a fresh token that
// has no server-side row behind it. Used after logout so the browser never
// keeps presenting the old authenticated token.
func (m *Middleware) WriteAnonymousCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    uuid.NewString(),
		Path:     "/",
		Expires:  time.Now().Add(m.cfg.TTL),
		HttpOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (m *Middleware) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireAuth rejects requests without a live session and attaches the
// caller identity to the context for everything downstream.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := m.TokenFromRequest(r)
		if !ok {
			api.ErrorResponse(w, r, http.StatusUnauthorized, "authentication required")
			return
		}

		sess, err := m.service.Current(r.Context(), token)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				// Unknown and expired tokens look the same to the caller.
				m.ClearCookie(w)
				api.ErrorResponse(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			// A store failure is not an auth verdict; the cookie stays.
			api.ErrorResponse(w, r, http.StatusInternalServerError, "session lookup failed")
			return
		}

		ctx := ContextWithIdentity(r.Context(), Identity{
			ID:       sess.UserID,
			Username: sess.Username,
			Role:     sess.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a route group on an exact role. Must run after RequireAuth.
func (m *Middleware) RequireRole(role types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := GetIdentityFromContext(r.Context())
			if !ok {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if id.Role != role {
				api.ErrorResponse(w, r, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
