package oauth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"

	"github.com/rndhub/go-rnd-hub/config"
	"github.com/rndhub/go-rnd-hub/internal/api"
	"github.com/rndhub/go-rnd-hub/internal/api/session"
	"github.com/rndhub/go-rnd-hub/internal/types"
)

// AccountProvisioner is the slice of the credential service the provider
// callback needs.
type AccountProvisioner interface {
	GetOrCreateUserFromProvider(ctx context.Context, provider string, gothUser goth.User) (*types.User, error)
}

// Setup registers the configured providers with goth and installs the
// cookie store gothic uses for its state parameter.
func Setup(cfg config.OAuthConfig) {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options.HttpOnly = true
	gothic.Store = store

	goth.UseProviders(
		google.New(cfg.GoogleKey, cfg.GoogleSecret, cfg.GoogleCallback, "email", "profile"),
	)
}

type HandlerImpl struct {
	provisioner    AccountProvisioner
	sessionService session.SessionService
	sessionMW      *session.Middleware
	logger         *slog.Logger
}

func NewHandlerImpl(provisioner AccountProvisioner, sessionService session.SessionService, sessionMW *session.Middleware, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		provisioner:    provisioner,
		sessionService: sessionService,
		sessionMW:      sessionMW,
		logger:         logger,
	}
}

// withProvider rewrites the chi URL param into the query string gothic reads.
func withProvider(r *http.Request) *http.Request {
	q := r.URL.Query()
	q.Set("provider", chi.URLParam(r, "provider"))
	r.URL.RawQuery = q.Encode()
	return r
}

// Begin handles GET /auth/{provider} and redirects to the provider.
func (h *HandlerImpl) Begin(w http.ResponseWriter, r *http.Request) {
	r = withProvider(r)
	if gothUser, err := gothic.CompleteUserAuth(w, r); err == nil {
		h.finishLogin(w, r, gothUser)
		return
	}
	gothic.BeginAuthHandler(w, r)
}

// Callback handles GET /auth/{provider}/callback.
func (h *HandlerImpl) Callback(w http.ResponseWriter, r *http.Request) {
	r = withProvider(r)
	gothUser, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Provider auth failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusUnauthorized, "provider authentication failed")
		return
	}
	h.finishLogin(w, r, gothUser)
}

func (h *HandlerImpl) finishLogin(w http.ResponseWriter, r *http.Request, gothUser goth.User) {
	provider := chi.URLParam(r, "provider")

	user, err := h.provisioner.GetOrCreateUserFromProvider(r.Context(), provider, gothUser)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to provision provider user", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "login failed")
		return
	}

	if !user.IsActive {
		api.ErrorResponse(w, r, http.StatusForbidden, "account is disabled, contact an administrator")
		return
	}

	var oldToken *uuid.UUID
	if token, ok := h.sessionMW.TokenFromRequest(r); ok {
		oldToken = &token
	}
	newSession, err := h.sessionService.Establish(r.Context(), user, oldToken)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to establish session", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "login failed")
		return
	}
	h.sessionMW.WriteCookie(w, newSession)

	http.Redirect(w, r, session.LandingRoute(user.Role), http.StatusFound)
}
