package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rndhub/go-rnd-hub/config"
	"github.com/rndhub/go-rnd-hub/internal/types"
)

// MockSessionRepo is a mock implementation of the SessionRepo interface
type MockSessionRepo struct {
	mock.Mock
}

func (m *MockSessionRepo) Create(ctx context.Context, sess *Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *MockSessionRepo) Get(ctx context.Context, token uuid.UUID) (*Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockSessionRepo) Delete(ctx context.Context, token uuid.UUID) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockSessionRepo) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSessionRepo) Replace(ctx context.Context, oldToken uuid.UUID, sess *Session) error {
	args := m.Called(ctx, oldToken, sess)
	return args.Error(0)
}

func testService(repo SessionRepo) *SessionServiceImpl {
	return NewSessionService(repo, config.SessionConfig{
		CookieName: "test_session",
		TTL:        time.Hour,
	}, slog.Default())
}

func TestEstablish(t *testing.T) {
	ctx := context.Background()
	user := &types.User{ID: uuid.New(), Username: "mcurie", Role: types.RoleResearcher}

	t.Run("FreshSession", func(t *testing.T) {
		mockRepo := new(MockSessionRepo)
		mockRepo.On("Create", ctx, mock.MatchedBy(func(s *Session) bool {
			return s.UserID == user.ID && s.Username == "mcurie" && s.Token != uuid.Nil
		})).Return(nil).Once()

		sess, err := testService(mockRepo).Establish(ctx, user, nil)

		require.NoError(t, err)
		assert.Equal(t, user.Role, sess.Role)
		assert.True(t, sess.ExpiresAt.After(time.Now()))
		mockRepo.AssertExpectations(t)
	})

	t.Run("ReplacesOldToken", func(t *testing.T) {
		mockRepo := new(MockSessionRepo)
		oldToken := uuid.New()
		mockRepo.On("Replace", ctx, oldToken, mock.MatchedBy(func(s *Session) bool {
			// The replacement never reuses the presented token.
			return s.Token != oldToken
		})).Return(nil).Once()

		sess, err := testService(mockRepo).Establish(ctx, user, &oldToken)

		require.NoError(t, err)
		assert.NotEqual(t, oldToken, sess.Token)
		mockRepo.AssertNotCalled(t, "Create")
		mockRepo.AssertExpectations(t)
	})
}

func TestLandingRoute(t *testing.T) {
	assert.Equal(t, "/admin/users", LandingRoute(types.RoleAdmin))
	assert.Equal(t, "/projects", LandingRoute(types.RoleProjectManager))
	assert.Equal(t, "/dashboard", LandingRoute(types.RoleResearcher))
	assert.Equal(t, "/dashboard", LandingRoute(types.RoleDepartmentHead))
	assert.Equal(t, "/dashboard", LandingRoute(types.RoleFacultyMember))
}
