package container

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rndhub/go-rnd-hub/config"
	"github.com/rndhub/go-rnd-hub/internal/api/auth"
	"github.com/rndhub/go-rnd-hub/internal/api/notification"
	"github.com/rndhub/go-rnd-hub/internal/api/oauth"
	"github.com/rndhub/go-rnd-hub/internal/api/related"
	"github.com/rndhub/go-rnd-hub/internal/api/session"
)

// Container wires repositories, services and handlers once at startup.
type Container struct {
	AuthService         auth.AuthService
	SessionService      session.SessionService
	NotificationService notification.NotificationService
	Resolver            related.RelatedResolver

	SessionMW *session.Middleware

	AuthHandler         *auth.HandlerImpl
	NotificationHandler *notification.HandlerImpl
	OAuthHandler        *oauth.HandlerImpl
}

func NewContainer(pool *pgxpool.Pool, cfg config.Config, logger *slog.Logger) *Container {
	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	sessionRepo := session.NewPostgresSessionRepo(pool, logger)
	notificationRepo := notification.NewPostgresNotificationRepo(pool, logger)

	authService := auth.NewAuthService(authRepo, auth.NewBcryptHasher(), cfg.Auth, logger)
	sessionService := session.NewSessionService(sessionRepo, cfg.Session, logger)
	notificationService := notification.NewNotificationService(notificationRepo, logger)

	resolver := related.NewResolver(
		related.NewProjectReader(pool, logger),
		related.NewDocumentReader(pool, logger),
		related.NewUserReader(pool, logger),
		logger,
	)

	sessionMW := session.NewMiddleware(sessionService, cfg.Session)

	oauth.Setup(cfg.OAuth)

	return &Container{
		AuthService:         authService,
		SessionService:      sessionService,
		NotificationService: notificationService,
		Resolver:            resolver,
		SessionMW:           sessionMW,
		AuthHandler:         auth.NewHandlerImpl(authService, sessionService, sessionMW, logger),
		NotificationHandler: notification.NewHandlerImpl(notificationService, resolver, logger),
		OAuthHandler:        oauth.NewHandlerImpl(authService, sessionService, sessionMW, logger),
	}
}
