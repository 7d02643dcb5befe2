package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rndhub/go-rnd-hub/internal/api"
	"github.com/rndhub/go-rnd-hub/internal/api/session"
	"github.com/rndhub/go-rnd-hub/internal/types"
)

type HandlerImpl struct {
	authService    AuthService
	sessionService session.SessionService
	sessionMW      *session.Middleware
	logger         *slog.Logger
}

func NewHandlerImpl(authService AuthService, sessionService session.SessionService, sessionMW *session.Middleware, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		authService:    authService,
		sessionService: sessionService,
		sessionMW:      sessionMW,
		logger:         logger,
	}
}

// Register handles POST /auth/register.
func (h *HandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.authService.Register(r.Context(), req)
	if err != nil {
		var verrs types.ValidationErrors
		if errors.As(err, &verrs) {
			api.ValidationErrorResponse(w, r, verrs)
			return
		}
		h.logger.ErrorContext(r.Context(), "Register failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "registration failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]string{"user_id": id.String()})
}

// Login handles POST /auth/login. On success the session token is rotated
// and the role's landing route is returned for the client to follow.
func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.authService.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, types.ErrUnauthenticated) {
			api.ErrorResponse(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.ErrorContext(r.Context(), "Login failed", slog.Any("error", err))
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

	sess, err := h.sessionService.Establish(r.Context(), user, oldToken)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to establish session", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "login failed")
		return
	}
	h.sessionMW.WriteCookie(w, sess)

	api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{
		UserID:     user.ID.String(),
		Username:   user.Username,
		Role:       user.Role.String(),
		RedirectTo: session.LandingRoute(user.Role),
		Message:    "logged in",
	})
}

// Logout handles POST /auth/logout. The server-side row is removed and the
// browser gets a fresh token with nothing behind it.
func (h *HandlerImpl) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := h.sessionMW.TokenFromRequest(r); ok {
		if err := h.sessionService.Destroy(r.Context(), token); err != nil {
			h.logger.ErrorContext(r.Context(), "Failed to destroy session", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "logout failed")
			return
		}
	}
	h.sessionMW.WriteAnonymousCookie(w)

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "logged out"})
}

// Me handles GET /auth/me for the authenticated caller.
func (h *HandlerImpl) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := session.GetIdentityFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), id.ID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "user not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Failed to load user", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to load user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// ChangePassword handles POST /auth/change-password for the authenticated
// caller. The new-password confirmation is a transport-level check; the
// service only sees the agreed value.
func (h *HandlerImpl) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := session.GetIdentityFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		api.ValidationErrorResponse(w, r, []string{"passwords do not match"})
		return
	}

	err := h.authService.ChangePassword(r.Context(), id.ID, req.OldPassword, req.NewPassword)
	if err != nil {
		var verrs types.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			api.ValidationErrorResponse(w, r, verrs)
		case errors.Is(err, types.ErrUnauthenticated):
			api.ErrorResponse(w, r, http.StatusUnauthorized, "current password is incorrect")
		default:
			h.logger.ErrorContext(r.Context(), "Change password failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to change password")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "password changed"})
}

// AdminSetPassword handles POST /admin/users/set-password.
func (h *HandlerImpl) AdminSetPassword(w http.ResponseWriter, r *http.Request) {
	var req AdminSetPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.authService.AdminSetPassword(r.Context(), userID, req.NewPassword); err != nil {
		var verrs types.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			api.ValidationErrorResponse(w, r, verrs)
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "user not found")
		default:
			h.logger.ErrorContext(r.Context(), "Admin set password failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to set password")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "password updated"})
}

// AdminInitiateReset handles POST /admin/users/initiate-reset. The token is
// returned to the admin for out-of-band delivery.
func (h *HandlerImpl) AdminInitiateReset(w http.ResponseWriter, r *http.Request) {
	var req AdminResetRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid user id")
		return
	}

	token, err := h.authService.AdminInitiateReset(r.Context(), userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "user not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Initiate reset failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to initiate reset")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, AdminResetResponse{ResetToken: token})
}

// ResetPassword handles POST /auth/reset-password with an admin-issued token.
func (h *HandlerImpl) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err := h.authService.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		var verrs types.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			api.ValidationErrorResponse(w, r, verrs)
		case errors.Is(err, types.ErrUnauthenticated):
			api.ErrorResponse(w, r, http.StatusUnauthorized, "reset token is invalid or expired")
		default:
			h.logger.ErrorContext(r.Context(), "Reset password failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to reset password")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "password reset"})
}

func parseUserIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid user id")
		return uuid.Nil, false
	}
	return userID, true
}

// AdminDeactivateUser handles POST /admin/users/{userID}/deactivate. Open
// sessions are revoked alongside the flag.
func (h *HandlerImpl) AdminDeactivateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserIDParam(w, r)
	if !ok {
		return
	}

	if err := h.authService.DeactivateUser(r.Context(), userID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "user not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Deactivate failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to deactivate user")
		return
	}

	if err := h.sessionService.DestroyAllForUser(r.Context(), userID); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to revoke sessions", slog.Any("error", err))
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "user deactivated"})
}

// AdminReactivateUser handles POST /admin/users/{userID}/reactivate.
func (h *HandlerImpl) AdminReactivateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserIDParam(w, r)
	if !ok {
		return
	}

	if err := h.authService.ReactivateUser(r.Context(), userID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "user not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Reactivate failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to reactivate user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "user reactivated"})
}
