package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/rndhub/go-rnd-hub/config"
	"github.com/rndhub/go-rnd-hub/internal/types"
)

var _ SessionService = (*SessionServiceImpl)(nil)

// SessionService issues and resolves server-side session tokens.
type SessionService interface {
	// Establish creates a fresh session for the user. When oldToken is
	// non-nil, the old session is destroyed in the same transaction so the
	// token visible to the browser always changes on login.
	Establish(ctx context.Context, user *types.User, oldToken *uuid.UUID) (*Session, error)

	// Current resolves a token into its session, or types.ErrNotFound.
	Current(ctx context.Context, token uuid.UUID) (*Session, error)

	Destroy(ctx context.Context, token uuid.UUID) error
	DestroyAllForUser(ctx context.Context, userID uuid.UUID) error
}

type SessionServiceImpl struct {
	logger *slog.Logger
	repo   SessionRepo
	cfg    config.SessionConfig
}

func NewSessionService(repo SessionRepo, cfg config.SessionConfig, logger *slog.Logger) *SessionServiceImpl {
	return &SessionServiceImpl{
		logger: logger,
		repo:   repo,
		cfg:    cfg,
	}
}

func (s *SessionServiceImpl) Establish(ctx context.Context, user *types.User, oldToken *uuid.UUID) (*Session, error) {
	ctx, span := otel.Tracer("SessionService").Start(ctx, "Establish")
	defer span.End()
	l := s.logger.With(slog.String("method", "Establish"), slog.String("userID", user.ID.String()))

	now := time.Now()
	sess := &Session{
		Token:     uuid.New(),
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}

	var err error
	if oldToken != nil {
		err = s.repo.Replace(ctx, *oldToken, sess)
	} else {
		err = s.repo.Create(ctx, sess)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "establish failed")
		return nil, fmt.Errorf("failed to establish session: %w", err)
	}

	l.DebugContext(ctx, "Session established")
	span.SetStatus(codes.Ok, "established")
	return sess, nil
}

func (s *SessionServiceImpl) Current(ctx context.Context, token uuid.UUID) (*Session, error) {
	return s.repo.Get(ctx, token)
}

func (s *SessionServiceImpl) Destroy(ctx context.Context, token uuid.UUID) error {
	if err := s.repo.Delete(ctx, token); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Session destroyed", slog.String("method", "Destroy"))
	return nil
}

func (s *SessionServiceImpl) DestroyAllForUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.DeleteAllForUser(ctx, userID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "All sessions destroyed for user",
		slog.String("method", "DestroyAllForUser"), slog.String("userID", userID.String()))
	return nil
}
