package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rndhub/go-rnd-hub/internal/api"
	"github.com/rndhub/go-rnd-hub/internal/types"
)

var _ NotificationRepo = (*PostgresNotificationRepo)(nil)

// NotificationRepo persists per-user notifications.
type NotificationRepo interface {
	// Insert stores a new notification. Notifications are always created
	// unread; the stored row gets its id and created_at written back.
	Insert(ctx context.Context, n *types.Notification) error

	// GetForUser returns a window of the user's feed, newest first.
	GetForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]types.Notification, error)
	CountForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) (int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)

	GetByID(ctx context.Context, id uuid.UUID) (*types.Notification, error)

	// MarkAsRead is idempotent: marking an already-read notification is a
	// no-op, not an error.
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error

	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

type PostgresNotificationRepo struct {
	logger *slog.Logger
	pgpool api.PGXPool
}

func NewPostgresNotificationRepo(pgpool api.PGXPool, logger *slog.Logger) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func relatedColumns(r types.RelatedRef) (relatedType *string, relatedID *uuid.UUID) {
	if r.None() {
		return nil, nil
	}
	kind := string(r.Kind)
	id := r.ID
	return &kind, &id
}

func (r *PostgresNotificationRepo) Insert(ctx context.Context, n *types.Notification) error {
	relatedType, relatedID := relatedColumns(n.Related)
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO notifications (user_id, title, message, type, related_type, related_id, is_read)
         VALUES ($1, $2, $3, $4, $5, $6, FALSE)
         RETURNING id, created_at`,
		n.UserID, n.Title, n.Message, n.Type, relatedType, relatedID).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	n.IsRead = false
	return nil
}

func scanNotification(row pgx.Row) (*types.Notification, error) {
	var n types.Notification
	var relatedType *string
	var relatedID *uuid.UUID
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type,
		&relatedType, &relatedID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	if relatedType != nil && relatedID != nil {
		n.Related = types.RelatedRef{Kind: types.RelatedKind(*relatedType), ID: *relatedID}
	}
	return &n, nil
}

const notificationColumns = `id, user_id, title, message, type, related_type, related_id, is_read, created_at`

func (r *PostgresNotificationRepo) GetForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]types.Notification, error) {
	query := "SELECT " + notificationColumns + " FROM notifications WHERE user_id = $1"
	if unreadOnly {
		query += " AND NOT is_read"
	}
	query += " ORDER BY created_at DESC LIMIT $2 OFFSET $3"

	rows, err := r.pgpool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]types.Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

func (r *PostgresNotificationRepo) CountForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM notifications WHERE user_id = $1"
	if unreadOnly {
		query += " AND NOT is_read"
	}
	var count int
	if err := r.pgpool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

func (r *PostgresNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.CountForUser(ctx, userID, true)
}

func (r *PostgresNotificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.Notification, error) {
	row := r.pgpool.QueryRow(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = $1", id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("query notification: %w", err)
	}
	return n, nil
}

func (r *PostgresNotificationRepo) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresNotificationRepo) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.pgpool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresNotificationRepo) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.pgpool.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete notifications for user: %w", err)
	}
	return nil
}
