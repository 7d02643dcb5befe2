package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rndhub/go-rnd-hub/internal/api"
	"github.com/rndhub/go-rnd-hub/internal/types"
)

var _ SessionRepo = (*PostgresSessionRepo)(nil)

// SessionRepo persists server-side sessions.
type SessionRepo interface {
	Create(ctx context.Context, sess *Session) error

	// Get returns types.ErrNotFound for unknown or expired tokens. Expired
	// rows are removed on the way out.
	Get(ctx context.Context, token uuid.UUID) (*Session, error)

	Delete(ctx context.Context, token uuid.UUID) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error

	// Replace atomically removes the old token and inserts the new session,
	// so login always changes the session identifier.
	Replace(ctx context.Context, oldToken uuid.UUID, sess *Session) error
}

type PostgresSessionRepo struct {
	logger *slog.Logger
	pgpool api.PGXPool
}

func NewPostgresSessionRepo(pgpool api.PGXPool, logger *slog.Logger) *PostgresSessionRepo {
	return &PostgresSessionRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const insertSessionQuery = `INSERT INTO sessions (token, user_id, username, role, created_at, expires_at)
         VALUES ($1, $2, $3, $4, $5, $6)`

func (r *PostgresSessionRepo) Create(ctx context.Context, sess *Session) error {
	_, err := r.pgpool.Exec(ctx, insertSessionQuery,
		sess.Token, sess.UserID, sess.Username, sess.Role.String(), sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *PostgresSessionRepo) Get(ctx context.Context, token uuid.UUID) (*Session, error) {
	var sess Session
	var role string
	err := r.pgpool.QueryRow(ctx,
		`SELECT token, user_id, username, role, created_at, expires_at
         FROM sessions WHERE token = $1`, token).
		Scan(&sess.Token, &sess.UserID, &sess.Username, &role, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("query session: %w", err)
	}

	if time.Now().After(sess.ExpiresAt) {
		if _, err := r.pgpool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
			r.logger.WarnContext(ctx, "Failed to delete expired session", slog.Any("error", err))
		}
		return nil, types.ErrNotFound
	}

	parsed, ok := types.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("session %s has unknown role %q", token, role)
	}
	sess.Role = parsed
	return &sess, nil
}

func (r *PostgresSessionRepo) Delete(ctx context.Context, token uuid.UUID) error {
	if _, err := r.pgpool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *PostgresSessionRepo) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.pgpool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete sessions for user: %w", err)
	}
	return nil
}

func (r *PostgresSessionRepo) Replace(ctx context.Context, oldToken uuid.UUID, sess *Session) error {
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin session replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, oldToken); err != nil {
		return fmt.Errorf("delete old session: %w", err)
	}
	if _, err = tx.Exec(ctx, insertSessionQuery,
		sess.Token, sess.UserID, sess.Username, sess.Role.String(), sess.CreatedAt, sess.ExpiresAt); err != nil {
		return fmt.Errorf("insert replacement session: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit session replace: %w", err)
	}
	return nil
}
