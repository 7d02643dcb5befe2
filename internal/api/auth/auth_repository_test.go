package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rndhub/go-rnd-hub/internal/types"
)

func newMockRepo(t *testing.T) (*PostgresAuthRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewPostgresAuthRepo(mockPool, slog.Default()), mockPool
}

func userRows(u *types.User) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "username", "email", "firstname", "lastname",
		"password_hash", "role", "is_active", "created_at", "updated_at",
	}).AddRow(u.ID, u.Username, u.Email, u.Firstname, u.Lastname,
		u.PasswordHash, u.Role.String(), u.IsActive, u.CreatedAt, u.UpdatedAt)
}

func TestGetUserByUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		want := &types.User{
			ID:           uuid.New(),
			Username:     "mcurie",
			Email:        "marie@example.com",
			PasswordHash: "digest",
			Role:         types.RoleResearcher,
			IsActive:     true,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		mockPool.ExpectQuery("SELECT (.+) FROM users WHERE username").
			WithArgs("mcurie").
			WillReturnRows(userRows(want))

		got, err := repo.GetUserByUsername(ctx, "mcurie")

		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, types.RoleResearcher, got.Role)
		require.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery("SELECT (.+) FROM users WHERE username").
			WithArgs("nobody").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetUserByUsername(ctx, "nobody")

		assert.ErrorIs(t, err, types.ErrNotFound)
		require.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UnknownRoleRejected", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		bad := &types.User{ID: uuid.New(), Username: "mcurie", Role: types.Role("superuser")}
		mockPool.ExpectQuery("SELECT (.+) FROM users WHERE username").
			WithArgs("mcurie").
			WillReturnRows(userRows(bad))

		_, err := repo.GetUserByUsername(ctx, "mcurie")

		assert.Error(t, err)
		require.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()

	user := &types.User{
		Username:     "mcurie",
		Email:        "marie@example.com",
		PasswordHash: "digest",
		Role:         types.RoleResearcher,
		IsActive:     true,
	}

	t.Run("Success", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		newID := uuid.New()
		mockPool.ExpectQuery("INSERT INTO users").
			WithArgs(user.Username, user.Email, user.Firstname, user.Lastname,
				user.PasswordHash, user.Role.String(), user.IsActive).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(newID))

		id, err := repo.CreateUser(ctx, user)

		require.NoError(t, err)
		assert.Equal(t, newID, id)
		require.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UniqueViolationIsConflict", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery("INSERT INTO users").
			WithArgs(user.Username, user.Email, user.Firstname, user.Lastname,
				user.PasswordHash, user.Role.String(), user.IsActive).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

		_, err := repo.CreateUser(ctx, user)

		assert.ErrorIs(t, err, types.ErrConflict)
		require.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		userID := uuid.New()
		mockPool.ExpectExec("UPDATE users SET password_hash").
			WithArgs("newdigest", pgxmock.AnyArg(), userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.UpdatePassword(ctx, userID, "newdigest")

		require.NoError(t, err)
		require.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UnknownUser", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		userID := uuid.New()
		mockPool.ExpectExec("UPDATE users SET password_hash").
			WithArgs("newdigest", pgxmock.AnyArg(), userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdatePassword(ctx, userID, "newdigest")

		assert.ErrorIs(t, err, types.ErrNotFound)
		require.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestDeactivateUser(t *testing.T) {
	ctx := context.Background()

	repo, mockPool := newMockRepo(t)
	userID := uuid.New()
	mockPool.ExpectExec("UPDATE users SET is_active").
		WithArgs(false, pgxmock.AnyArg(), userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.DeactivateUser(ctx, userID))
	require.NoError(t, mockPool.ExpectationsWereMet())
}
