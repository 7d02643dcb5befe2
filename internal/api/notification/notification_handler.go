package notification

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rndhub/go-rnd-hub/internal/api"
	"github.com/rndhub/go-rnd-hub/internal/api/related"
	"github.com/rndhub/go-rnd-hub/internal/api/session"
	"github.com/rndhub/go-rnd-hub/internal/types"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type HandlerImpl struct {
	notificationService NotificationService
	resolver            related.RelatedResolver
	logger              *slog.Logger
}

func NewHandlerImpl(notificationService NotificationService, resolver related.RelatedResolver, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		notificationService: notificationService,
		resolver:            resolver,
		logger:              logger,
	}
}

func identity(w http.ResponseWriter, r *http.Request) (session.Identity, bool) {
	id, ok := session.GetIdentityFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "authentication required")
	}
	return id, ok
}

// List handles GET /notifications?unread=true&limit=&offset=.
func (h *HandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit, offset := api.ParseLimitOffset(r, defaultPageSize, maxPageSize)

	page, err := h.notificationService.ListForUser(r.Context(), id.ID, unreadOnly, limit, offset)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "List notifications failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, page)
}

// UnreadCount handles GET /notifications/unread-count.
func (h *HandlerImpl) UnreadCount(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	count, err := h.notificationService.UnreadCount(r.Context(), id.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Unread count failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to count notifications")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, UnreadCount{Count: count})
}

func notificationIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid notification id")
		return uuid.Nil, false
	}
	return id, true
}

// Related handles GET /notifications/{notificationID}/related. The target
// may be gone by the time a notification is viewed; that is a normal
// outcome, not an error.
func (h *HandlerImpl) Related(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	notificationID, ok := notificationIDParam(w, r)
	if !ok {
		return
	}

	n, err := h.notificationService.Get(r.Context(), id.ID, notificationID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Load notification failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to load notification")
		return
	}

	result, err := h.resolver.Resolve(r.Context(), n.Related)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Resolve related entity failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to resolve related entity")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

// MarkAsRead handles POST /notifications/{notificationID}/read.
func (h *HandlerImpl) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	notificationID, ok := notificationIDParam(w, r)
	if !ok {
		return
	}

	if err := h.notificationService.MarkAsRead(r.Context(), id.ID, notificationID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Mark as read failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to mark notification read")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "notification marked read"})
}

// MarkAllAsRead handles POST /notifications/read-all.
func (h *HandlerImpl) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.notificationService.MarkAllAsRead(r.Context(), id.ID); err != nil {
		h.logger.ErrorContext(r.Context(), "Mark all as read failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to mark notifications read")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "all notifications marked read"})
}

// Delete handles DELETE /notifications/{notificationID}.
func (h *HandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	notificationID, ok := notificationIDParam(w, r)
	if !ok {
		return
	}

	if err := h.notificationService.Delete(r.Context(), id.ID, notificationID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Delete notification failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to delete notification")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// DeleteAll handles DELETE /notifications.
func (h *HandlerImpl) DeleteAll(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.notificationService.DeleteAllForUser(r.Context(), id.ID); err != nil {
		h.logger.ErrorContext(r.Context(), "Delete all notifications failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to delete notifications")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// AdminCreate handles POST /admin/notifications. Other subsystems publish
// notifications through the service; this endpoint is for operators.
func (h *HandlerImpl) AdminCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.notificationService.Create(r.Context(), req)
	if err != nil {
		var verrs types.ValidationErrors
		if errors.As(err, &verrs) {
			api.ValidationErrorResponse(w, r, verrs)
			return
		}
		h.logger.ErrorContext(r.Context(), "Create notification failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to create notification")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, n)
}
