package notification

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rndhub/go-rnd-hub/internal/types"
)

func newMockRepo(t *testing.T) (*PostgresNotificationRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewPostgresNotificationRepo(mockPool, slog.Default()), mockPool
}

func TestInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("NoRelatedReference", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		n := &types.Notification{
			UserID:  uuid.New(),
			Title:   "Project approved",
			Message: "Your project was approved",
			Type:    "info",
		}
		newID := uuid.New()
		mockPool.ExpectQuery("INSERT INTO notifications").
			WithArgs(n.UserID, n.Title, n.Message, n.Type, (*string)(nil), (*uuid.UUID)(nil)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(newID, time.Now()))

		err := repo.Insert(ctx, n)

		require.NoError(t, err)
		assert.Equal(t, newID, n.ID)
		assert.False(t, n.IsRead)
		require.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("WithRelatedReference", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		projectID := uuid.New()
		n := &types.Notification{
			UserID:  uuid.New(),
			Title:   "t",
			Message: "m",
			Type:    "info",
			Related: types.RelatedRef{Kind: types.RelatedProject, ID: projectID},
		}
		kind := "project"
		mockPool.ExpectQuery("INSERT INTO notifications").
			WithArgs(n.UserID, n.Title, n.Message, n.Type, &kind, &projectID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), time.Now()))

		require.NoError(t, repo.Insert(ctx, n))
		require.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGetForUser(t *testing.T) {
	ctx := context.Background()
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()
	projectID := uuid.New()
	kind := "project"

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "title", "message", "type",
		"related_type", "related_id", "is_read", "created_at",
	}).
		AddRow(uuid.New(), userID, "newest", "m", "info", &kind, &projectID, false, time.Now()).
		AddRow(uuid.New(), userID, "older", "m", "info", (*string)(nil), (*uuid.UUID)(nil), true, time.Now().Add(-time.Hour))

	mockPool.ExpectQuery("SELECT (.+) FROM notifications WHERE user_id").
		WithArgs(userID, 20, 0).
		WillReturnRows(rows)

	got, err := repo.GetForUser(ctx, userID, false, 20, 0)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.RelatedProject, got[0].Related.Kind)
	assert.Equal(t, projectID, got[0].Related.ID)
	assert.True(t, got[1].Related.None())
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestGetForUserWindowing(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	emptyRows := func() *pgxmock.Rows {
		return pgxmock.NewRows([]string{
			"id", "user_id", "title", "message", "type",
			"related_type", "related_id", "is_read", "created_at",
		})
	}

	t.Run("OffsetAndLimitForwarded", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		// Second page of ten: rows 11-20 of the newest-first ordering.
		mockPool.ExpectQuery("SELECT (.+) FROM notifications WHERE user_id (.+) ORDER BY created_at DESC LIMIT \\$2 OFFSET \\$3").
			WithArgs(userID, 10, 10).
			WillReturnRows(emptyRows())

		_, err := repo.GetForUser(ctx, userID, false, 10, 10)

		require.NoError(t, err)
		require.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UnreadFilterKeepsWindow", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery("SELECT (.+) FROM notifications WHERE user_id = \\$1 AND NOT is_read ORDER BY created_at DESC LIMIT \\$2 OFFSET \\$3").
			WithArgs(userID, 5, 15).
			WillReturnRows(emptyRows())

		_, err := repo.GetForUser(ctx, userID, true, 5, 15)

		require.NoError(t, err)
		require.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRepoMarkAsRead(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		id := uuid.New()
		mockPool.ExpectExec("UPDATE notifications SET is_read").
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkAsRead(ctx, id))
	})

	t.Run("Missing", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		id := uuid.New()
		mockPool.ExpectExec("UPDATE notifications SET is_read").
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, repo.MarkAsRead(ctx, id), types.ErrNotFound)
	})
}

func TestRepoMarkAllAsRead(t *testing.T) {
	ctx := context.Background()
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()

	// Zero affected rows is fine; there may be nothing unread.
	mockPool.ExpectExec("UPDATE notifications SET is_read").
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.MarkAllAsRead(ctx, userID))
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepoDeleteAllForUser(t *testing.T) {
	ctx := context.Background()
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()

	mockPool.ExpectExec("DELETE FROM notifications WHERE user_id").
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, repo.DeleteAllForUser(ctx, userID))
	require.NoError(t, mockPool.ExpectationsWereMet())
}
