package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/rndhub/go-rnd-hub/app/observability/metrics"
	"github.com/rndhub/go-rnd-hub/config"
	"github.com/rndhub/go-rnd-hub/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService owns credential verification and account lifecycle.
type AuthService interface {
	// Authenticate matches identifier against username first, then email.
	// Any failure surfaces as types.ErrUnauthenticated; callers never learn
	// whether the account exists or which step failed.
	Authenticate(ctx context.Context, identifier, password string) (*types.User, error)

	// Register creates a new active account with the default role.
	// Validation failures come back as types.ValidationErrors.
	Register(ctx context.Context, req RegisterRequest) (uuid.UUID, error)

	// ChangePassword requires proof of the current password.
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error

	// AdminSetPassword overwrites a user's password without old-password
	// proof. Callers must have already gated on the admin role.
	AdminSetPassword(ctx context.Context, userID uuid.UUID, newPassword string) error

	// AdminInitiateReset issues a short-lived single-purpose reset token
	// for the given account.
	AdminInitiateReset(ctx context.Context, userID uuid.UUID) (string, error)

	// ResetPassword consumes a reset token and sets the new password.
	ResetPassword(ctx context.Context, token, newPassword string) error

	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
	GetOrCreateUserFromProvider(ctx context.Context, provider string, gothUser goth.User) (*types.User, error)

	DeactivateUser(ctx context.Context, userID uuid.UUID) error
	ReactivateUser(ctx context.Context, userID uuid.UUID) error
}

type AuthServiceImpl struct {
	logger *slog.Logger
	repo   AuthRepo
	hasher PasswordHasher
	cfg    config.AuthConfig
}

func NewAuthService(repo AuthRepo, hasher PasswordHasher, cfg config.AuthConfig, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger: logger,
		repo:   repo,
		hasher: hasher,
		cfg:    cfg,
	}
}

func (s *AuthServiceImpl) Authenticate(ctx context.Context, identifier, password string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Authenticate")
	defer span.End()
	l := s.logger.With(slog.String("method", "Authenticate"))

	metrics.Get().LoginAttemptsTotal.Add(ctx, 1)

	fail := func(reason string) (*types.User, error) {
		metrics.Get().LoginFailuresTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", reason)))
		l.DebugContext(ctx, "Authentication failed", slog.String("reason", reason))
		span.SetStatus(codes.Error, "authentication failed")
		return nil, types.ErrUnauthenticated
	}

	user, err := s.repo.GetUserByUsername(ctx, identifier)
	if errors.Is(err, types.ErrNotFound) {
		user, err = s.repo.GetUserByEmail(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fail("unknown_identifier")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return fail("bad_password")
	}

	span.SetStatus(codes.Ok, "authenticated")
	return user, nil
}

func (s *AuthServiceImpl) Register(ctx context.Context, req RegisterRequest) (uuid.UUID, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()
	l := s.logger.With(slog.String("method", "Register"))

	metrics.Get().RegisterRequestsTotal.Add(ctx, 1)

	var verrs types.ValidationErrors
	if strings.TrimSpace(req.Firstname) == "" {
		verrs = append(verrs, "first name is required")
	}
	if strings.TrimSpace(req.Lastname) == "" {
		verrs = append(verrs, "last name is required")
	}
	if strings.TrimSpace(req.Username) == "" {
		verrs = append(verrs, "username is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		verrs = append(verrs, "email is required")
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		verrs = append(verrs, "email address is not valid")
	}
	if req.Password == "" {
		verrs = append(verrs, "password is required")
	} else if len(req.Password) < s.cfg.MinPasswordLength {
		verrs = append(verrs, fmt.Sprintf("password must be at least %d characters", s.cfg.MinPasswordLength))
	}
	if req.Password != req.ConfirmPassword {
		verrs = append(verrs, "passwords do not match")
	}

	// Uniqueness checks only run when the fields are present; a blank
	// username should report "required", not "taken".
	if strings.TrimSpace(req.Username) != "" {
		taken, err := s.repo.UsernameExists(ctx, req.Username)
		if err != nil {
			span.RecordError(err)
			return uuid.Nil, fmt.Errorf("failed to check username: %w", err)
		}
		if taken {
			verrs = append(verrs, "username is already taken")
		}
	}
	if strings.TrimSpace(req.Email) != "" {
		taken, err := s.repo.EmailExists(ctx, req.Email)
		if err != nil {
			span.RecordError(err)
			return uuid.Nil, fmt.Errorf("failed to check email: %w", err)
		}
		if taken {
			verrs = append(verrs, "email is already registered")
		}
	}

	if len(verrs) > 0 {
		span.SetStatus(codes.Error, "validation failed")
		return uuid.Nil, verrs
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		span.RecordError(err)
		return uuid.Nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &types.User{
		Username:     req.Username,
		Email:        req.Email,
		Firstname:    req.Firstname,
		Lastname:     req.Lastname,
		PasswordHash: hashed,
		Role:         types.RoleResearcher,
		IsActive:     true,
	}

	id, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, types.ErrConflict) {
			// Lost the race against a concurrent registration.
			return uuid.Nil, types.ValidationErrors{"username or email is already taken"}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return uuid.Nil, fmt.Errorf("failed to create user: %w", err)
	}

	l.InfoContext(ctx, "User registered", slog.String("userID", id.String()))
	span.SetStatus(codes.Ok, "registered")
	return id, nil
}

func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ChangePassword")
	defer span.End()
	l := s.logger.With(slog.String("method", "ChangePassword"), slog.String("userID", userID.String()))

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to fetch user: %w", err)
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		l.DebugContext(ctx, "Old password mismatch")
		span.SetStatus(codes.Error, "old password mismatch")
		return types.ErrUnauthenticated
	}

	if err := s.setPassword(ctx, userID, newPassword); err != nil {
		span.RecordError(err)
		return err
	}

	l.InfoContext(ctx, "Password changed")
	span.SetStatus(codes.Ok, "password changed")
	return nil
}

func (s *AuthServiceImpl) AdminSetPassword(ctx context.Context, userID uuid.UUID, newPassword string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "AdminSetPassword")
	defer span.End()
	l := s.logger.With(slog.String("method", "AdminSetPassword"), slog.String("userID", userID.String()))

	if err := s.setPassword(ctx, userID, newPassword); err != nil {
		span.RecordError(err)
		return err
	}

	l.InfoContext(ctx, "Password set by administrator")
	span.SetStatus(codes.Ok, "password set")
	return nil
}

// setPassword applies the length policy, hashes and stores.
func (s *AuthServiceImpl) setPassword(ctx context.Context, userID uuid.UUID, newPassword string) error {
	if len(newPassword) < s.cfg.MinPasswordLength {
		return types.ValidationErrors{
			fmt.Sprintf("password must be at least %d characters", s.cfg.MinPasswordLength),
		}
	}
	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, hashed); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (s *AuthServiceImpl) AdminInitiateReset(ctx context.Context, userID uuid.UUID) (string, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "AdminInitiateReset")
	defer span.End()
	l := s.logger.With(slog.String("method", "AdminInitiateReset"), slog.String("userID", userID.String()))

	// Admins see a real not-found here; the endpoint is already gated on
	// the admin role, so there is nothing left to enumerate.
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		span.RecordError(err)
		return "", err
	}

	now := time.Now()
	claims := ResetClaims{
		UserID:  userID.String(),
		Purpose: resetPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.ResetTokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.ResetTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.ResetTokenSecret))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}

	l.InfoContext(ctx, "Reset token issued")
	span.SetStatus(codes.Ok, "token issued")
	return signed, nil
}

func (s *AuthServiceImpl) ResetPassword(ctx context.Context, token, newPassword string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ResetPassword")
	defer span.End()
	l := s.logger.With(slog.String("method", "ResetPassword"))

	claims := &ResetClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.ResetTokenSecret), nil
	}, jwt.WithIssuer(s.cfg.ResetTokenIssuer))
	if err != nil || !parsed.Valid || claims.Purpose != resetPurpose {
		l.DebugContext(ctx, "Reset token rejected", slog.Any("error", err))
		span.SetStatus(codes.Error, "invalid reset token")
		return types.ErrUnauthenticated
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		span.SetStatus(codes.Error, "invalid reset token subject")
		return types.ErrUnauthenticated
	}

	if err := s.setPassword(ctx, userID, newPassword); err != nil {
		span.RecordError(err)
		return err
	}

	l.InfoContext(ctx, "Password reset", slog.String("userID", userID.String()))
	span.SetStatus(codes.Ok, "password reset")
	return nil
}

func (s *AuthServiceImpl) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *AuthServiceImpl) GetOrCreateUserFromProvider(ctx context.Context, provider string, gothUser goth.User) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "GetOrCreateUserFromProvider")
	defer span.End()
	l := s.logger.With(slog.String("method", "GetOrCreateUserFromProvider"), slog.String("provider", provider))

	user, err := s.repo.GetUserByEmail(ctx, gothUser.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to look up provider user: %w", err)
	}

	// First login via this provider: provision an account. The random
	// password hash keeps the local login path closed until the user sets
	// a password of their own.
	randomSecret := uuid.NewString() + uuid.NewString()
	hashed, err := s.hasher.Hash(randomSecret)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to hash placeholder password: %w", err)
	}

	username := gothUser.NickName
	if username == "" {
		username = strings.Split(gothUser.Email, "@")[0]
	}

	newUser := &types.User{
		Username:     username,
		Email:        gothUser.Email,
		Firstname:    gothUser.FirstName,
		Lastname:     gothUser.LastName,
		PasswordHash: hashed,
		Role:         types.RoleResearcher,
		IsActive:     true,
	}

	id, err := s.repo.CreateUser(ctx, newUser)
	if err != nil {
		if errors.Is(err, types.ErrConflict) {
			// Username collision; retry with a suffix derived from the id.
			newUser.Username = username + "-" + uuid.NewString()[:8]
			id, err = s.repo.CreateUser(ctx, newUser)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "provisioning failed")
			return nil, fmt.Errorf("failed to provision provider user: %w", err)
		}
	}
	newUser.ID = id

	l.InfoContext(ctx, "Provisioned user from provider", slog.String("userID", id.String()))
	span.SetStatus(codes.Ok, "provisioned")
	return newUser, nil
}

func (s *AuthServiceImpl) DeactivateUser(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "DeactivateUser")
	defer span.End()

	if err := s.repo.DeactivateUser(ctx, userID); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.InfoContext(ctx, "User deactivated", slog.String("userID", userID.String()))
	span.SetStatus(codes.Ok, "deactivated")
	return nil
}

func (s *AuthServiceImpl) ReactivateUser(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ReactivateUser")
	defer span.End()

	if err := s.repo.ReactivateUser(ctx, userID); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.InfoContext(ctx, "User reactivated", slog.String("userID", userID.String()))
	span.SetStatus(codes.Ok, "reactivated")
	return nil
}
