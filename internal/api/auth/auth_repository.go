package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rndhub/go-rnd-hub/internal/api"
	"github.com/rndhub/go-rnd-hub/internal/types"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo defines the contract for credential persistence.
type AuthRepo interface {
	// GetUserByUsername returns types.ErrNotFound when no row matches.
	GetUserByUsername(ctx context.Context, username string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error)

	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	// CreateUser inserts a new user and returns the assigned id.
	// Returns types.ErrConflict on a username/email unique violation.
	CreateUser(ctx context.Context, user *types.User) (uuid.UUID, error)

	// UpdatePassword stores a new digest. Returns types.ErrNotFound when
	// the user does not exist.
	UpdatePassword(ctx context.Context, userID uuid.UUID, newHashedPassword string) error

	// DeactivateUser marks a user as inactive; never a hard delete.
	DeactivateUser(ctx context.Context, userID uuid.UUID) error
	ReactivateUser(ctx context.Context, userID uuid.UUID) error
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool api.PGXPool
}

func NewPostgresAuthRepo(pgpool api.PGXPool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id, username, email, firstname, lastname, password_hash, role, is_active, created_at, updated_at`

func (r *PostgresAuthRepo) scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Firstname, &u.Lastname,
		&u.PasswordHash, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	parsed, ok := types.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("user %s has unknown role %q", u.ID, role)
	}
	u.Role = parsed
	return &u, nil
}

func (r *PostgresAuthRepo) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	row := r.pgpool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username)
	return r.scanUser(row)
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	row := r.pgpool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email)
	return r.scanUser(row)
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	row := r.pgpool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", userID)
	return r.scanUser(row)
}

func (r *PostgresAuthRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pgpool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)", username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("username exists check: %w", err)
	}
	return exists, nil
}

func (r *PostgresAuthRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pgpool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)", email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("email exists check: %w", err)
	}
	return exists, nil
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, user *types.User) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO users (username, email, firstname, lastname, password_hash, role, is_active)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING id`,
		user.Username, user.Email, user.Firstname, user.Lastname,
		user.PasswordHash, user.Role.String(), user.IsActive).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Unique violation on username or email; the validation pass
			// should catch this first, this covers the race.
			return uuid.Nil, fmt.Errorf("%w: %s", types.ErrConflict, pgErr.ConstraintName)
		}
		return uuid.Nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return id, nil
}

func (r *PostgresAuthRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, newHashedPassword string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		newHashedPassword, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("update password: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresAuthRepo) DeactivateUser(ctx context.Context, userID uuid.UUID) error {
	return r.setActive(ctx, userID, false)
}

func (r *PostgresAuthRepo) ReactivateUser(ctx context.Context, userID uuid.UUID) error {
	return r.setActive(ctx, userID, true)
}

func (r *PostgresAuthRepo) setActive(ctx context.Context, userID uuid.UUID, active bool) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("update is_active: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
