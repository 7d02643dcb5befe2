package notification

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/rndhub/go-rnd-hub/app/observability/metrics"
	"github.com/rndhub/go-rnd-hub/internal/types"
)

var _ NotificationService = (*NotificationServiceImpl)(nil)

// NotificationService owns the per-user notification feed. Every operation
// that touches an existing notification is scoped to its owner; a caller
// probing someone else's notification sees the same not-found as a missing
// one.
type NotificationService interface {
	Create(ctx context.Context, req CreateRequest) (*types.Notification, error)
	Get(ctx context.Context, userID, notificationID uuid.UUID) (*types.Notification, error)
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) (*Page, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkAsRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID, notificationID uuid.UUID) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

type NotificationServiceImpl struct {
	logger *slog.Logger
	repo   NotificationRepo
}

func NewNotificationService(repo NotificationRepo, logger *slog.Logger) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *NotificationServiceImpl) Create(ctx context.Context, req CreateRequest) (*types.Notification, error) {
	ctx, span := otel.Tracer("NotificationService").Start(ctx, "Create")
	defer span.End()
	l := s.logger.With(slog.String("method", "Create"))

	var verrs types.ValidationErrors
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		verrs = append(verrs, "user id is not valid")
	}
	if strings.TrimSpace(req.Title) == "" {
		verrs = append(verrs, "title is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		verrs = append(verrs, "message is required")
	}

	related := types.RelatedRef{}
	if req.RelatedType != "" || req.RelatedID != "" {
		if req.RelatedType == "" || req.RelatedID == "" {
			verrs = append(verrs, "related type and related id must be supplied together")
		} else {
			relatedID, err := uuid.Parse(req.RelatedID)
			if err != nil {
				verrs = append(verrs, "related id is not valid")
			} else {
				// Only the closed set is writable; old rows with a kind
				// this version no longer knows still resolve to "no
				// related entity" on read.
				switch kind := types.RelatedKind(req.RelatedType); kind {
				case types.RelatedProject, types.RelatedDocument, types.RelatedUser:
					related = types.RelatedRef{Kind: kind, ID: relatedID}
				default:
					verrs = append(verrs, "related type must be project, document or user")
				}
			}
		}
	}

	if len(verrs) > 0 {
		span.SetStatus(codes.Error, "validation failed")
		return nil, verrs
	}

	n := &types.Notification{
		UserID:  userID,
		Title:   req.Title,
		Message: req.Message,
		Type:    req.Type,
		Related: related,
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, err
	}

	metrics.Get().NotificationsCreatedTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", n.Type)))
	l.DebugContext(ctx, "Notification created",
		slog.String("notificationID", n.ID.String()),
		slog.String("userID", userID.String()))
	span.SetStatus(codes.Ok, "created")
	return n, nil
}

func (s *NotificationServiceImpl) Get(ctx context.Context, userID, notificationID uuid.UUID) (*types.Notification, error) {
	return s.requireOwned(ctx, userID, notificationID)
}

func (s *NotificationServiceImpl) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) (*Page, error) {
	ctx, span := otel.Tracer("NotificationService").Start(ctx, "ListForUser")
	defer span.End()

	notifications, err := s.repo.GetForUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	total, err := s.repo.CountForUser(ctx, userID, unreadOnly)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}

	span.SetStatus(codes.Ok, "listed")
	return &Page{
		Notifications: notifications,
		Total:         total,
		Limit:         limit,
		Offset:        offset,
		TotalPages:    totalPages,
	}, nil
}

func (s *NotificationServiceImpl) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// requireOwned loads the notification and hides it behind not-found when the
// caller is not its owner.
func (s *NotificationServiceImpl) requireOwned(ctx context.Context, userID, notificationID uuid.UUID) (*types.Notification, error) {
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, types.ErrNotFound
	}
	return n, nil
}

func (s *NotificationServiceImpl) MarkAsRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	ctx, span := otel.Tracer("NotificationService").Start(ctx, "MarkAsRead")
	defer span.End()

	n, err := s.requireOwned(ctx, userID, notificationID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if n.IsRead {
		// Already read; nothing to do.
		span.SetStatus(codes.Ok, "already read")
		return nil
	}
	if err := s.repo.MarkAsRead(ctx, notificationID); err != nil {
		span.RecordError(err)
		return err
	}
	span.SetStatus(codes.Ok, "marked read")
	return nil
}

func (s *NotificationServiceImpl) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("NotificationService").Start(ctx, "MarkAllAsRead")
	defer span.End()

	if err := s.repo.MarkAllAsRead(ctx, userID); err != nil {
		span.RecordError(err)
		return err
	}
	span.SetStatus(codes.Ok, "marked all read")
	return nil
}

func (s *NotificationServiceImpl) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	ctx, span := otel.Tracer("NotificationService").Start(ctx, "Delete")
	defer span.End()

	if _, err := s.requireOwned(ctx, userID, notificationID); err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.repo.Delete(ctx, notificationID); err != nil {
		span.RecordError(err)
		return err
	}
	span.SetStatus(codes.Ok, "deleted")
	return nil
}

func (s *NotificationServiceImpl) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("NotificationService").Start(ctx, "DeleteAllForUser")
	defer span.End()

	if err := s.repo.DeleteAllForUser(ctx, userID); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.InfoContext(ctx, "All notifications deleted",
		slog.String("method", "DeleteAllForUser"), slog.String("userID", userID.String()))
	span.SetStatus(codes.Ok, "deleted all")
	return nil
}
