package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rndhub/go-rnd-hub/internal/api/related"
	"github.com/rndhub/go-rnd-hub/internal/api/session"
	"github.com/rndhub/go-rnd-hub/internal/types"
)

// MockNotificationService is a mock implementation of the NotificationService interface
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Create(ctx context.Context, req CreateRequest) (*types.Notification, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Notification), args.Error(1)
}

func (m *MockNotificationService) Get(ctx context.Context, userID, notificationID uuid.UUID) (*types.Notification, error) {
	args := m.Called(ctx, userID, notificationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Notification), args.Error(1)
}

func (m *MockNotificationService) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) (*Page, error) {
	args := m.Called(ctx, userID, unreadOnly, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Page), args.Error(1)
}

func (m *MockNotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationService) MarkAsRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *MockNotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockNotificationService) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *MockNotificationService) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockResolver is a mock implementation of related.RelatedResolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, ref types.RelatedRef) (related.Result, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(related.Result), args.Error(1)
}

func authedRequest(method, target string, userID uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := session.ContextWithIdentity(req.Context(), session.Identity{
		ID: userID, Username: "mcurie", Role: types.RoleResearcher,
	})
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func TestListHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("DefaultsAndUnreadFilter", func(t *testing.T) {
		mockSvc := new(MockNotificationService)
		mockSvc.On("ListForUser", mock.Anything, userID, true, 20, 0).
			Return(&Page{Notifications: []types.Notification{}, Total: 0, Limit: 20}, nil).Once()

		handler := NewHandlerImpl(mockSvc, new(MockResolver), slog.Default())
		req := authedRequest(http.MethodGet, "/notifications?unread=true", userID, nil)
		rr := httptest.NewRecorder()
		handler.List(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("LimitClamped", func(t *testing.T) {
		mockSvc := new(MockNotificationService)
		mockSvc.On("ListForUser", mock.Anything, userID, false, 100, 40).
			Return(&Page{}, nil).Once()

		handler := NewHandlerImpl(mockSvc, new(MockResolver), slog.Default())
		req := authedRequest(http.MethodGet, "/notifications?limit=5000&offset=40", userID, nil)
		rr := httptest.NewRecorder()
		handler.List(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("NoIdentity", func(t *testing.T) {
		handler := NewHandlerImpl(new(MockNotificationService), new(MockResolver), slog.Default())
		req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
		rr := httptest.NewRecorder()
		handler.List(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestUnreadCountHandler(t *testing.T) {
	userID := uuid.New()
	mockSvc := new(MockNotificationService)
	mockSvc.On("UnreadCount", mock.Anything, userID).Return(7, nil).Once()

	handler := NewHandlerImpl(mockSvc, new(MockResolver), slog.Default())
	req := authedRequest(http.MethodGet, "/notifications/unread-count", userID, nil)
	rr := httptest.NewRecorder()
	handler.UnreadCount(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp UnreadCount
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.Count)
}

func TestMarkAsReadHandler(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockSvc := new(MockNotificationService)
		mockSvc.On("MarkAsRead", mock.Anything, userID, notificationID).Return(nil).Once()

		handler := NewHandlerImpl(mockSvc, new(MockResolver), slog.Default())
		req := authedRequest(http.MethodPost, "/notifications/"+notificationID.String()+"/read", userID,
			map[string]string{"notificationID": notificationID.String()})
		rr := httptest.NewRecorder()
		handler.MarkAsRead(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("SomeoneElsesNotification", func(t *testing.T) {
		mockSvc := new(MockNotificationService)
		mockSvc.On("MarkAsRead", mock.Anything, userID, notificationID).
			Return(types.ErrNotFound).Once()

		handler := NewHandlerImpl(mockSvc, new(MockResolver), slog.Default())
		req := authedRequest(http.MethodPost, "/notifications/"+notificationID.String()+"/read", userID,
			map[string]string{"notificationID": notificationID.String()})
		rr := httptest.NewRecorder()
		handler.MarkAsRead(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("MalformedID", func(t *testing.T) {
		mockSvc := new(MockNotificationService)
		handler := NewHandlerImpl(mockSvc, new(MockResolver), slog.Default())
		req := authedRequest(http.MethodPost, "/notifications/garbage/read", userID,
			map[string]string{"notificationID": "garbage"})
		rr := httptest.NewRecorder()
		handler.MarkAsRead(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockSvc.AssertNotCalled(t, "MarkAsRead")
	})
}

func TestRelatedHandler(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()
	projectID := uuid.New()

	t.Run("ResolvesLiveTarget", func(t *testing.T) {
		mockSvc := new(MockNotificationService)
		mockResolver := new(MockResolver)
		ref := types.RelatedRef{Kind: types.RelatedProject, ID: projectID}
		mockSvc.On("Get", mock.Anything, userID, notificationID).
			Return(&types.Notification{ID: notificationID, UserID: userID, Related: ref}, nil).Once()
		mockResolver.On("Resolve", mock.Anything, ref).
			Return(related.Result{Summary: &types.RelatedSummary{Kind: types.RelatedProject, ID: projectID, Title: "Fusion study"}}, nil).Once()

		handler := NewHandlerImpl(mockSvc, mockResolver, slog.Default())
		req := authedRequest(http.MethodGet, "/notifications/"+notificationID.String()+"/related", userID,
			map[string]string{"notificationID": notificationID.String()})
		rr := httptest.NewRecorder()
		handler.Related(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Fusion study")
		mockResolver.AssertExpectations(t)
	})

	t.Run("GoneTargetStillOK", func(t *testing.T) {
		mockSvc := new(MockNotificationService)
		mockResolver := new(MockResolver)
		ref := types.RelatedRef{Kind: types.RelatedDocument, ID: uuid.New()}
		mockSvc.On("Get", mock.Anything, userID, notificationID).
			Return(&types.Notification{ID: notificationID, UserID: userID, Related: ref}, nil).Once()
		mockResolver.On("Resolve", mock.Anything, ref).
			Return(related.Result{NotFound: true}, nil).Once()

		handler := NewHandlerImpl(mockSvc, mockResolver, slog.Default())
		req := authedRequest(http.MethodGet, "/notifications/"+notificationID.String()+"/related", userID,
			map[string]string{"notificationID": notificationID.String()})
		rr := httptest.NewRecorder()
		handler.Related(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var result related.Result
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
		assert.True(t, result.NotFound)
	})
}

func TestAdminCreateHandler(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		mockSvc := new(MockNotificationService)
		userID := uuid.New()
		created := &types.Notification{ID: uuid.New(), UserID: userID, Title: "t", Message: "m"}
		mockSvc.On("Create", mock.Anything, CreateRequest{
			UserID: userID.String(), Title: "t", Message: "m", Type: "info",
		}).Return(created, nil).Once()

		handler := NewHandlerImpl(mockSvc, new(MockResolver), slog.Default())
		body := `{"user_id":"` + userID.String() + `","title":"t","message":"m","type":"info"}`
		req := httptest.NewRequest(http.MethodPost, "/admin/notifications", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handler.AdminCreate(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Contains(t, rr.Body.String(), created.ID.String())
		mockSvc.AssertExpectations(t)
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		mockSvc := new(MockNotificationService)
		mockSvc.On("Create", mock.Anything, mock.AnythingOfType("notification.CreateRequest")).
			Return(nil, types.ValidationErrors{"title is required"}).Once()

		handler := NewHandlerImpl(mockSvc, new(MockResolver), slog.Default())
		req := httptest.NewRequest(http.MethodPost, "/admin/notifications",
			strings.NewReader(`{"user_id":"`+uuid.NewString()+`","message":"m"}`))
		rr := httptest.NewRecorder()
		handler.AdminCreate(rr, req)

		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "title is required")
	})
}
